// Package agent turns a free text chat message into an analysis request.
package agent

import (
	"fmt"
	"regexp"
	"strings"

	"hotspot-advisor/models"
)

type Intent string

const (
	IntentAnalyze   Intent = "analyze_device"
	IntentCompare   Intent = "compare_devices"
	IntentPortfolio Intent = "portfolio"
	IntentGeneral   Intent = "general_question"
)

// NetworkHelium is the only network addresses are recognised for.
const NetworkHelium = "helium"

// minAddressLength filters out short matches that cannot be device addresses.
const minAddressLength = 30

var addressPattern = regexp.MustCompile(`11[a-zA-Z0-9]{40,}`)

var (
	analysisKeywords = []string{
		"analyze", "check", "evaluate", "assess", "review", "show",
		"tell me about", "what is", "how much", "earnings", "roi", "risk", "performance",
	}
	comparisonKeywords = []string{"compare", "versus", "vs", "better", "which", "difference"}
	portfolioKeywords  = []string{"portfolio", "my devices"}
)

// Classification is what the agent understood from one message.
type Classification struct {
	Intent     Intent   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Addresses  []string `json:"addresses,omitempty"`
	Network    string   `json:"network,omitempty"`
}

// Address returns the first device address found, or "".
func (c Classification) Address() string {
	if len(c.Addresses) == 0 {
		return ""
	}
	return c.Addresses[0]
}

// Classify extracts device addresses and the intent from message. Keyword
// matching is case insensitive and works on substrings.
func Classify(message string) Classification {
	addresses := extractAddresses(message)
	lower := strings.ToLower(message)

	if len(addresses) > 0 {
		c := Classification{Addresses: addresses, Network: NetworkHelium}
		switch {
		case containsAny(lower, comparisonKeywords):
			c.Intent, c.Confidence = IntentCompare, 0.85
		case containsAny(lower, analysisKeywords):
			c.Intent, c.Confidence = IntentAnalyze, 0.95
		default:
			c.Intent, c.Confidence = IntentAnalyze, 0.75
		}
		return c
	}

	if containsAny(lower, portfolioKeywords) {
		return Classification{Intent: IntentPortfolio, Confidence: 0.9}
	}
	return Classification{Intent: IntentGeneral, Confidence: 0.5}
}

func extractAddresses(message string) []string {
	var addresses []string
	seen := map[string]bool{}
	for _, m := range addressPattern.FindAllString(message, -1) {
		if len(m) <= minAddressLength || seen[m] {
			continue
		}
		seen[m] = true
		addresses = append(addresses, m)
	}
	return addresses
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// Reply is the chat answer for a classification, before any analysis ran.
func Reply(c Classification) string {
	switch c.Intent {
	case IntentAnalyze:
		return fmt.Sprintf("Analyzing Helium hotspot %s...\n\n"+
			"Fetching real-time data from the blockchain, getting live prices from Pyth Network, and calculating risk scores...",
			shorten(c.Address()))
	case IntentCompare:
		if len(c.Addresses) < 2 {
			return "I can compare multiple devices! Currently analyzing the first device. Add more addresses to compare performance."
		}
		return fmt.Sprintf("Comparing %d devices by monthly earnings...", len(c.Addresses))
	case IntentPortfolio:
		return "Portfolio tracking is coming soon! For now, I can analyze individual devices."
	default:
		return "I'm your DePIN analysis AI agent! I can:\n\n" +
			"- Analyze Helium hotspots\n" +
			"- Calculate ROI and earnings\n" +
			"- Assess risk scores\n" +
			"- Predict 90-day revenue\n\n" +
			"Just provide a device address to get started!"
	}
}

// Summary is a one line digest of a finished report.
func Summary(report models.AnalysisReport) string {
	return fmt.Sprintf("%s is %s. Risk %d/10 (%s), earning $%.2f a month. Recommendation: %s.",
		report.Device.Name, report.Device.Status(), report.Risk.Score, report.Risk.Band,
		report.Performance.MonthlyEarningsFiat, report.Recommendation.Action)
}

func shorten(address string) string {
	if len(address) > 10 {
		return address[:10]
	}
	return address
}
