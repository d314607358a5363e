package models

import "time"

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

type RiskBand string

const (
	RiskLow    RiskBand = "Low"
	RiskMedium RiskBand = "Medium"
	RiskHigh   RiskBand = "High"
)

type Performance struct {
	MonthlyEarningsFiat float64 `json:"monthly_earnings_fiat"`
	AnnualEarningsFiat  float64 `json:"annual_earnings_fiat"`
	AvgDailyTokens      float64 `json:"avg_daily_tokens"`
}

type Valuation struct {
	HardwareCost float64 `json:"hardware_cost"`
	ROIMonths    float64 `json:"roi_months"`
	ROIYears     float64 `json:"roi_years"`
}

// Amount is a quantity expressed both in tokens and in fiat.
type Amount struct {
	Tokens float64 `json:"tokens"`
	Fiat   float64 `json:"fiat"`
}

type Projection struct {
	Conservative Amount `json:"conservative"`
	Expected     Amount `json:"expected"`
	Optimistic   Amount `json:"optimistic"`
}

type RiskAssessment struct {
	Score   int      `json:"score"` // 0..10
	Band    RiskBand `json:"band"`
	Factors []string `json:"factors"`
}

type Recommendation struct {
	Action    Action `json:"action"`
	Rationale string `json:"rationale"`
}

// AnalysisReport is the fused output of one analysis. It is built once and
// never modified afterwards.
type AnalysisReport struct {
	Device         DeviceSnapshot `json:"device"`
	Performance    Performance    `json:"performance"`
	Valuation      Valuation      `json:"valuation"`
	Projection90d  Projection     `json:"projection_90d"`
	Risk           RiskAssessment `json:"risk"`
	Recommendation Recommendation `json:"recommendation"`
	Timestamp      time.Time      `json:"timestamp"`
	Price          PriceQuote     `json:"price"`
}

// LedgerReceipt correlates a report with one ledger submission.
type LedgerReceipt struct {
	TransactionID string    `json:"transaction_id"`
	TopicID       string    `json:"topic_id"`
	SubmittedAt   time.Time `json:"submitted_at"`
}
