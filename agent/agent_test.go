package agent

import (
	"strings"
	"testing"

	"hotspot-advisor/models"
)

const (
	condor = "112qB3YaH5bZkCnKA5uRH7tBtGNv2Y5B4smv1jsmvGQ2228YBoFu"
	mantis = "112MHi1gvL6jNfLVk2fKMq3EJNW6R8SLmPThc9cD4fKsKqXDpQcQ"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		message    string
		intent     Intent
		confidence float64
		addresses  []string
	}{
		{message: "Analyze " + condor, intent: IntentAnalyze, confidence: 0.95, addresses: []string{condor}},
		{message: "What are the EARNINGS of " + condor + "?", intent: IntentAnalyze, confidence: 0.95, addresses: []string{condor}},
		{message: condor, intent: IntentAnalyze, confidence: 0.75, addresses: []string{condor}},
		{message: "Which is better, " + condor + " or " + mantis + "?", intent: IntentCompare, confidence: 0.85, addresses: []string{condor, mantis}},
		// Comparison wins over analysis keywords.
		{message: "compare the roi of " + condor, intent: IntentCompare, confidence: 0.85, addresses: []string{condor}},
		{message: "analyze " + condor + " and " + condor, intent: IntentAnalyze, confidence: 0.95, addresses: []string{condor}},
		{message: "How is my Portfolio doing?", intent: IntentPortfolio, confidence: 0.9},
		{message: "show my devices", intent: IntentPortfolio, confidence: 0.9},
		{message: "analyze 112ABC", intent: IntentGeneral, confidence: 0.5},
		{message: "hello", intent: IntentGeneral, confidence: 0.5},
	}
	for _, test := range tests {
		c := Classify(test.message)
		if c.Intent != test.intent || c.Confidence != test.confidence {
			t.Errorf("Classify(%q): want %s/%v, got %s/%v", test.message, test.intent, test.confidence, c.Intent, c.Confidence)
		}
		if strings.Join(c.Addresses, ",") != strings.Join(test.addresses, ",") {
			t.Errorf("Classify(%q): want addresses %v, got %v", test.message, test.addresses, c.Addresses)
		}
		if (len(test.addresses) > 0) != (c.Network == NetworkHelium) {
			t.Errorf("Classify(%q): unexpected network %q", test.message, c.Network)
		}
	}
}

func TestReply(t *testing.T) {
	if got := Reply(Classify("analyze " + condor)); !strings.HasPrefix(got, "Analyzing Helium hotspot 112qB3YaH5...") {
		t.Errorf("Reply(analyze): got %q", got)
	}
	if got := Reply(Classify("compare " + condor)); !strings.Contains(got, "Add more addresses") {
		t.Errorf("Reply(compare one): got %q", got)
	}
	if got := Reply(Classify("compare " + condor + " vs " + mantis)); got != "Comparing 2 devices by monthly earnings..." {
		t.Errorf("Reply(compare two): got %q", got)
	}
	if got := Reply(Classify("portfolio")); !strings.Contains(got, "coming soon") {
		t.Errorf("Reply(portfolio): got %q", got)
	}
	if got := Reply(Classify("hi")); !strings.Contains(got, "Just provide a device address") {
		t.Errorf("Reply(general): got %q", got)
	}
}

func TestSummary(t *testing.T) {
	report := models.AnalysisReport{
		Device:         models.DeviceSnapshot{Name: "rough-crimson-yak"},
		Performance:    models.Performance{MonthlyEarningsFiat: 60.6},
		Risk:           models.RiskAssessment{Score: 10, Band: models.RiskHigh},
		Recommendation: models.Recommendation{Action: models.ActionSell},
	}
	expected := "rough-crimson-yak is offline. Risk 10/10 (High), earning $60.60 a month. Recommendation: SELL."
	if got := Summary(report); got != expected {
		t.Errorf("Summary: want %q, got %q", expected, got)
	}
}
