package analysis

import (
	"fmt"

	"hotspot-advisor/models"
)

const (
	baseRiskScore = 5
	minRiskScore  = 0
	maxRiskScore  = 10

	// ROISentinelMonths stands for "never pays back".
	ROISentinelMonths = 999.0

	projectionDays     = 90
	conservativeFactor = 0.8
	optimisticFactor   = 1.2
)

// RiskInputs are the fetched device properties the risk rules look at.
type RiskInputs struct {
	Online       bool
	RewardScale  float64
	WitnessCount int
}

// RawRiskScore applies the risk rules in order, without clamping.
// The two low reward-scale rules can both fire.
func RawRiskScore(in RiskInputs) int {
	score := baseRiskScore
	if !in.Online {
		score += 3
	}
	if in.RewardScale < 0.5 {
		score += 2
	}
	if in.RewardScale < 0.7 {
		score += 1
	}
	if in.WitnessCount < 10 {
		score += 1
	}
	if in.WitnessCount > 20 {
		score -= 1
	}
	if in.RewardScale > 0.8 {
		score -= 1
	}
	return score
}

// RiskScore is RawRiskScore clamped to [0, 10].
func RiskScore(in RiskInputs) int {
	score := RawRiskScore(in)
	if score < minRiskScore {
		return minRiskScore
	}
	if score > maxRiskScore {
		return maxRiskScore
	}
	return score
}

func RiskBandFor(score int) models.RiskBand {
	switch {
	case score < 4:
		return models.RiskLow
	case score < 7:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

// ROIMonths returns how many months of earnings pay for the hardware.
func ROIMonths(hardwareCost, monthlyEarningsFiat float64) float64 {
	if monthlyEarningsFiat > 0 {
		return hardwareCost / monthlyEarningsFiat
	}
	return ROISentinelMonths
}

// Project90d spreads the average daily earnings over 90 days at three
// confidence levels.
func Project90d(avgDailyTokens, price float64) models.Projection {
	expected := avgDailyTokens * projectionDays
	conservative := expected * conservativeFactor
	optimistic := expected * optimisticFactor
	return models.Projection{
		Conservative: models.Amount{Tokens: conservative, Fiat: conservative * price},
		Expected:     models.Amount{Tokens: expected, Fiat: expected * price},
		Optimistic:   models.Amount{Tokens: optimistic, Fiat: optimistic * price},
	}
}

// Recommend picks the action for a risk score and payback period. The BUY
// check runs last and wins over SELL.
func Recommend(score int, roiMonths float64) models.Action {
	action := models.ActionHold
	if score > 7 {
		action = models.ActionSell
	}
	if score < 3 && roiMonths < 12 {
		action = models.ActionBuy
	}
	return action
}

func RiskFactors(in RiskInputs) []string {
	status := "Device offline"
	if in.Online {
		status = "Device online"
	}
	witnesses := "Low"
	if in.WitnessCount > 15 {
		witnesses = "Good"
	}
	scale := "Poor"
	if in.RewardScale > 0.7 {
		scale = "Good"
	}
	return []string{
		status,
		fmt.Sprintf("%d witnesses (%s)", in.WitnessCount, witnesses),
		fmt.Sprintf("Transmit scale: %.2f (%s)", in.RewardScale, scale),
	}
}

// Rationale explains the recommendation. The first matching row wins.
func Rationale(score int, roiMonths float64, witnessCount int, rewardScale float64) string {
	switch {
	case score > 7:
		return "High risk detected. Device may be offline or in poor location. Consider selling or relocating."
	case score < 3 && roiMonths < 12:
		return "Excellent performer with quick ROI. Strong buy signal if available."
	case witnessCount < 10:
		return "Limited witness density may impact earnings. Monitor closely for changes."
	case rewardScale < 0.5:
		return "Low transmit scale significantly reducing rewards. Consider relocation."
	default:
		return "Device performing at network average. Hold for steady passive income."
	}
}
