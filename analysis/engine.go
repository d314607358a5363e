package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"hotspot-advisor/metrics"
	"hotspot-advisor/models"
	"hotspot-advisor/telemetry"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"
)

const defaultRewardWindowDays = 30

// PriceSource quotes a token in fiat.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (models.PriceQuote, error)
}

// Notary anchors a finished report to a ledger topic.
type Notary interface {
	Submit(ctx context.Context, topicID string, report models.AnalysisReport) (string, error)
}

// Publisher receives a copy of every finished report.
type Publisher interface {
	Publish(ctx context.Context, message interface{}) error
}

// PipelineError is the only error Analyze returns. Its message never
// carries the cause; Unwrap does.
type PipelineError struct {
	Address string
	Err     error
}

func (e *PipelineError) Error() string {
	return "failed to analyze device"
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one analysis. TransactionID and Receipt are
// empty when no ledger topic was given or the ledger write failed.
type Result struct {
	Report        models.AnalysisReport `json:"report"`
	TransactionID string                `json:"transaction_id,omitempty"`
	Receipt       *models.LedgerReceipt `json:"receipt,omitempty"`
}

// AnalysedEvent is published after every successful analysis.
type AnalysedEvent struct {
	Address       string                `json:"address"`
	TransactionID string                `json:"transaction_id,omitempty"`
	Report        models.AnalysisReport `json:"report"`
}

type Options struct {
	HardwareCost     float64
	TokenSymbol      string
	RewardWindowDays int
}

type Engine struct {
	gateway   telemetry.Gateway
	prices    PriceSource
	notary    Notary
	publisher Publisher
	opts      Options
	now       func() time.Time
}

// NewEngine builds an engine over its collaborators. notary and publisher
// may be nil.
func NewEngine(gateway telemetry.Gateway, prices PriceSource, notary Notary, publisher Publisher, opts Options) *Engine {
	if opts.RewardWindowDays <= 0 {
		opts.RewardWindowDays = defaultRewardWindowDays
	}
	return &Engine{
		gateway:   gateway,
		prices:    prices,
		notary:    notary,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
	}
}

// SetClock replaces time.Now for report timestamps.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Analyze fetches the device's telemetry and token price, scores it and,
// when topicID is set, anchors the report on the ledger.
func (e *Engine) Analyze(ctx context.Context, address, topicID string) (*Result, error) {
	start := time.Now()

	report, err := e.buildReport(ctx, address)
	if err != nil {
		log.WithField("address", address).WithError(err).Error("Analysis failed")
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		metrics.AnalysisDurationSeconds.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, &PipelineError{Address: address, Err: err}
	}

	result := &Result{Report: report}
	if topicID != "" {
		if receipt := e.notarize(ctx, topicID, report); receipt != nil {
			result.Receipt = receipt
			result.TransactionID = receipt.TransactionID
		}
	}
	e.publish(ctx, address, result)

	metrics.AnalysesTotal.WithLabelValues("success").Inc()
	metrics.AnalysisDurationSeconds.WithLabelValues("success").Observe(time.Since(start).Seconds())
	log.WithFields(log.Fields{
		"address": address,
		"status":  report.Device.Status(),
		"score":   report.Risk.Score,
		"action":  report.Recommendation.Action,
	}).Info("Device analysed")
	return result, nil
}

func (e *Engine) buildReport(ctx context.Context, address string) (models.AnalysisReport, error) {
	var (
		snapshot    models.DeviceSnapshot
		rewardTotal float64
		witnesses   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshot, err = e.gateway.FetchSnapshot(gctx, address)
		return err
	})
	g.Go(func() error {
		var err error
		rewardTotal, err = e.gateway.FetchRewardTotal(gctx, address, e.opts.RewardWindowDays)
		return err
	})
	g.Go(func() error {
		var err error
		witnesses, err = e.gateway.FetchWitnessCount(gctx, address)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.AnalysisReport{}, err
	}

	quote, err := e.prices.GetPrice(ctx, e.opts.TokenSymbol)
	if err != nil {
		return models.AnalysisReport{}, fmt.Errorf("price of %s: %w", e.opts.TokenSymbol, err)
	}

	snapshot.WitnessCount = witnesses
	snapshot.RewardTotal30d = rewardTotal
	return e.compute(snapshot, quote), nil
}

// compute turns fetched state into a report. It is a pure function of its
// inputs apart from the timestamp.
func (e *Engine) compute(snapshot models.DeviceSnapshot, quote models.PriceQuote) models.AnalysisReport {
	monthly := snapshot.RewardTotal30d * quote.Price
	avgDaily := snapshot.RewardTotal30d / float64(e.opts.RewardWindowDays)
	roi := ROIMonths(e.opts.HardwareCost, monthly)

	in := RiskInputs{
		Online:       snapshot.Online,
		RewardScale:  snapshot.RewardScale,
		WitnessCount: snapshot.WitnessCount,
	}
	score := RiskScore(in)

	return models.AnalysisReport{
		Device: snapshot,
		Performance: models.Performance{
			MonthlyEarningsFiat: monthly,
			AnnualEarningsFiat:  monthly * 12,
			AvgDailyTokens:      avgDaily,
		},
		Valuation: models.Valuation{
			HardwareCost: e.opts.HardwareCost,
			ROIMonths:    roi,
			ROIYears:     roi / 12,
		},
		Projection90d: Project90d(avgDaily, quote.Price),
		Risk: models.RiskAssessment{
			Score:   score,
			Band:    RiskBandFor(score),
			Factors: RiskFactors(in),
		},
		Recommendation: models.Recommendation{
			Action:    Recommend(score, roi),
			Rationale: Rationale(score, roi, snapshot.WitnessCount, snapshot.RewardScale),
		},
		Timestamp: e.now().UTC(),
		Price:     quote,
	}
}

func (e *Engine) notarize(ctx context.Context, topicID string, report models.AnalysisReport) *models.LedgerReceipt {
	if e.notary == nil {
		log.WithField("topic", topicID).Warn("No ledger configured, skipping submission")
		return nil
	}
	submittedAt := e.now().UTC()
	txID, err := e.notary.Submit(ctx, topicID, report)
	if err != nil {
		log.WithField("topic", topicID).WithError(err).Warn("Failed to store analysis on the ledger, continuing")
		return nil
	}
	return &models.LedgerReceipt{
		TransactionID: txID,
		TopicID:       topicID,
		SubmittedAt:   submittedAt,
	}
}

func (e *Engine) publish(ctx context.Context, address string, result *Result) {
	if e.publisher == nil {
		return
	}
	event := AnalysedEvent{
		Address:       address,
		TransactionID: result.TransactionID,
		Report:        result.Report,
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		log.WithField("address", address).WithError(err).Warn("Failed to publish analysed event")
		metrics.PublishErrorTotal.Inc()
	}
}

// Compare analyses several devices concurrently, without ledger writes, and
// orders them by monthly fiat earnings, best first. Any failed device fails
// the comparison.
func (e *Engine) Compare(ctx context.Context, addresses []string) ([]models.AnalysisReport, error) {
	reports := make([]models.AnalysisReport, len(addresses))
	g, gctx := errgroup.WithContext(ctx)
	for i, address := range addresses {
		i, address := i, address
		g.Go(func() error {
			result, err := e.Analyze(gctx, address, "")
			if err != nil {
				return err
			}
			reports[i] = result.Report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(reports, func(a, b int) bool {
		return reports[a].Performance.MonthlyEarningsFiat > reports[b].Performance.MonthlyEarningsFiat
	})
	return reports, nil
}
