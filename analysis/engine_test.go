package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hotspot-advisor/ledger"
	"hotspot-advisor/models"
	"hotspot-advisor/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	healthyAddress = "112qB3YaH5bZkCnKA5uRH7tBtGNv2Y5B4smv1jsmvGQ2228YBoFu"
	mantisAddress  = "112MHi1gvL6jNfLVk2fKMq3EJNW6R8SLmPThc9cD4fKsKqXDpQcQ"
	offlineAddress = "112ABC"
	topicID        = "0x00000000000000000000000000000000000a11ce"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixedPrice struct {
	price float64
	err   error
}

func (f fixedPrice) GetPrice(_ context.Context, symbol string) (models.PriceQuote, error) {
	if f.err != nil {
		return models.PriceQuote{}, f.err
	}
	return models.PriceQuote{Symbol: symbol, Price: f.price, Source: models.SourceLive}, nil
}

type recordingNotary struct {
	mu      sync.Mutex
	txID    string
	err     error
	reports []models.AnalysisReport
}

func (n *recordingNotary) Submit(_ context.Context, _ string, report models.AnalysisReport) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, report)
	return n.txID, n.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	err    error
	events []AnalysedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, message.(AnalysedEvent))
	return p.err
}

type brokenSource struct{}

func (brokenSource) Snapshot(context.Context, string) (models.DeviceSnapshot, error) {
	return models.DeviceSnapshot{}, errors.New("connection refused")
}

func (brokenSource) RewardTotal(context.Context, string, int) (float64, error) {
	return 0, errors.New("connection refused")
}

func (brokenSource) WitnessCount(context.Context, string) (int, error) {
	return 0, errors.New("connection refused")
}

func newTestEngine(prices PriceSource, notary Notary, publisher Publisher) *Engine {
	gateway := telemetry.NewClient(brokenSource{}, telemetry.NewStaticSource(telemetry.DefaultRecords()))
	e := NewEngine(gateway, prices, notary, publisher, Options{
		HardwareCost:     400,
		TokenSymbol:      "HNT",
		RewardWindowDays: 30,
	})
	e.SetClock(func() time.Time { return fixedNow })
	return e
}

func TestAnalyzeHealthyDevice(t *testing.T) {
	e := newTestEngine(fixedPrice{price: 4.85}, nil, nil)

	result, err := e.Analyze(context.Background(), healthyAddress, "")
	require.NoError(t, err)
	assert.Empty(t, result.TransactionID)

	r := result.Report
	assert.Equal(t, "magnificent-lavender-condor", r.Device.Name)
	assert.Equal(t, models.SourceFallback, r.Device.Source)
	assert.Equal(t, 22, r.Device.WitnessCount)
	assert.InDelta(t, 222.13, r.Performance.MonthlyEarningsFiat, 0.001)
	assert.InDelta(t, 222.13*12, r.Performance.AnnualEarningsFiat, 0.01)
	assert.InDelta(t, 45.8/30, r.Performance.AvgDailyTokens, 1e-9)
	assert.InDelta(t, 400/222.13, r.Valuation.ROIMonths, 1e-6)
	assert.InDelta(t, 400/222.13/12, r.Valuation.ROIYears, 1e-6)

	// Reward scale 0.78 does not clear the 0.8 bonus, only the witness rule fires.
	assert.Equal(t, 4, r.Risk.Score)
	assert.Equal(t, models.RiskMedium, r.Risk.Band)
	assert.Equal(t, models.ActionHold, r.Recommendation.Action)
	assert.Equal(t, "Device performing at network average. Hold for steady passive income.", r.Recommendation.Rationale)
	assert.Equal(t, []string{"Device online", "22 witnesses (Good)", "Transmit scale: 0.78 (Good)"}, r.Risk.Factors)

	assert.InDelta(t, 45.8*3*0.8, r.Projection90d.Conservative.Tokens, 1e-9)
	assert.InDelta(t, 45.8*3, r.Projection90d.Expected.Tokens, 1e-9)
	assert.InDelta(t, 45.8*3*1.2, r.Projection90d.Optimistic.Tokens, 1e-9)
	assert.InDelta(t, 45.8*3*4.85, r.Projection90d.Expected.Fiat, 1e-9)
	assert.Equal(t, fixedNow, r.Timestamp)
	assert.Equal(t, 4.85, r.Price.Price)
}

func TestAnalyzeOfflineDevice(t *testing.T) {
	e := newTestEngine(fixedPrice{price: 4.85}, nil, nil)

	result, err := e.Analyze(context.Background(), offlineAddress, "")
	require.NoError(t, err)

	r := result.Report
	assert.False(t, r.Device.Online)
	assert.Equal(t, 10, r.Risk.Score)
	assert.Equal(t, models.RiskHigh, r.Risk.Band)
	assert.Equal(t, models.ActionSell, r.Recommendation.Action)
	assert.InDelta(t, 12.5*4.85, r.Performance.MonthlyEarningsFiat, 1e-9)
}

func TestAnalyzeZeroPriceUsesROISentinel(t *testing.T) {
	e := newTestEngine(fixedPrice{price: 0}, nil, nil)

	result, err := e.Analyze(context.Background(), healthyAddress, "")
	require.NoError(t, err)
	assert.Equal(t, ROISentinelMonths, result.Report.Valuation.ROIMonths)
	assert.Equal(t, 0.0, result.Report.Performance.MonthlyEarningsFiat)
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	e := newTestEngine(fixedPrice{price: 4.85}, nil, nil)

	first, err := e.Analyze(context.Background(), mantisAddress, "")
	require.NoError(t, err)
	second, err := e.Analyze(context.Background(), mantisAddress, "")
	require.NoError(t, err)
	assert.Equal(t, first.Report, second.Report)
}

func TestAnalyzeWithLedger(t *testing.T) {
	notary := &recordingNotary{txID: "0xabc"}
	publisher := &recordingPublisher{}
	e := newTestEngine(fixedPrice{price: 4.85}, notary, publisher)

	result, err := e.Analyze(context.Background(), healthyAddress, topicID)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", result.TransactionID)
	require.NotNil(t, result.Receipt)
	assert.Equal(t, models.LedgerReceipt{TransactionID: "0xabc", TopicID: topicID, SubmittedAt: fixedNow}, *result.Receipt)
	require.Len(t, notary.reports, 1)
	assert.Equal(t, result.Report, notary.reports[0])

	require.Len(t, publisher.events, 1)
	assert.Equal(t, "0xabc", publisher.events[0].TransactionID)
	assert.Equal(t, healthyAddress, publisher.events[0].Address)
}

func TestLedgerFailureLeavesReportUnchanged(t *testing.T) {
	plain := newTestEngine(fixedPrice{price: 4.85}, nil, nil)
	expected, err := plain.Analyze(context.Background(), healthyAddress, "")
	require.NoError(t, err)

	notary := &recordingNotary{err: &ledger.SubmissionError{TopicID: topicID, Err: errors.New("rejected")}}
	publisher := &recordingPublisher{err: errors.New("broker down")}
	e := newTestEngine(fixedPrice{price: 4.85}, notary, publisher)

	result, err := e.Analyze(context.Background(), healthyAddress, topicID)
	require.NoError(t, err)
	assert.Empty(t, result.TransactionID)
	assert.Nil(t, result.Receipt)
	assert.Equal(t, expected.Report, result.Report)
	assert.Len(t, notary.reports, 1)
}

func TestAnalyzeWithMissingLedgerCredentials(t *testing.T) {
	notary := ledger.NewNotary(ledger.Credentials{}, "", time.Second)
	e := newTestEngine(fixedPrice{price: 4.85}, notary, nil)

	result, err := e.Analyze(context.Background(), healthyAddress, topicID)
	require.NoError(t, err)
	assert.Empty(t, result.TransactionID)
	assert.Equal(t, "magnificent-lavender-condor", result.Report.Device.Name)
}

func TestAnalyzeSkipsLedgerWithoutTopic(t *testing.T) {
	notary := &recordingNotary{txID: "0xabc"}
	e := newTestEngine(fixedPrice{price: 4.85}, notary, nil)

	result, err := e.Analyze(context.Background(), healthyAddress, "")
	require.NoError(t, err)
	assert.Empty(t, result.TransactionID)
	assert.Nil(t, result.Receipt)
	assert.Empty(t, notary.reports)
}

func TestAnalyzePipelineFailure(t *testing.T) {
	priceErr := errors.New("price service said no")
	e := newTestEngine(fixedPrice{err: priceErr}, nil, nil)

	result, err := e.Analyze(context.Background(), healthyAddress, "")
	assert.Nil(t, result)
	var pipelineErr *PipelineError
	require.ErrorAs(t, err, &pipelineErr)
	assert.Equal(t, "failed to analyze device", err.Error())
	assert.ErrorIs(t, err, priceErr)

	noFallback := NewEngine(telemetry.NewClient(brokenSource{}, nil), fixedPrice{price: 4.85}, nil, nil, Options{HardwareCost: 400, TokenSymbol: "HNT"})
	_, err = noFallback.Analyze(context.Background(), healthyAddress, "")
	require.ErrorAs(t, err, &pipelineErr)
	var fetchErr *telemetry.FetchError
	assert.ErrorAs(t, err, &fetchErr)
}

// snapshotOnlySource answers snapshots but fails reward and witness calls.
type snapshotOnlySource struct {
	brokenSource
}

func (snapshotOnlySource) Snapshot(_ context.Context, address string) (models.DeviceSnapshot, error) {
	return models.DeviceSnapshot{Address: address, Name: "live-only", Online: true, RewardScale: 0.9}, nil
}

func TestAnalyzeToleratesMissingRewardsWithoutFallback(t *testing.T) {
	e := NewEngine(telemetry.NewClient(snapshotOnlySource{}, nil), fixedPrice{price: 4.85}, nil, nil, Options{HardwareCost: 400, TokenSymbol: "HNT"})

	result, err := e.Analyze(context.Background(), healthyAddress, "")
	require.NoError(t, err)
	r := result.Report
	assert.Equal(t, models.SourceLive, r.Device.Source)
	assert.Equal(t, 0, r.Device.WitnessCount)
	assert.Equal(t, 0.0, r.Performance.MonthlyEarningsFiat)
	assert.Equal(t, ROISentinelMonths, r.Valuation.ROIMonths)
}

func TestCompare(t *testing.T) {
	notary := &recordingNotary{txID: "0xabc"}
	e := newTestEngine(fixedPrice{price: 4.85}, notary, nil)

	reports, err := e.Compare(context.Background(), []string{offlineAddress, mantisAddress, healthyAddress})
	require.NoError(t, err)
	require.Len(t, reports, 3)
	assert.Equal(t, healthyAddress, reports[0].Device.Address)
	assert.Equal(t, mantisAddress, reports[1].Device.Address)
	assert.Equal(t, offlineAddress, reports[2].Device.Address)
	assert.Empty(t, notary.reports)

	failing := newTestEngine(fixedPrice{err: errors.New("down")}, nil, nil)
	_, err = failing.Compare(context.Background(), []string{healthyAddress, mantisAddress})
	var pipelineErr *PipelineError
	assert.ErrorAs(t, err, &pipelineErr)
}
