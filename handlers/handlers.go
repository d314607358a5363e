package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"hotspot-advisor/agent"
	"hotspot-advisor/analysis"
	"hotspot-advisor/ledger"
	"hotspot-advisor/models"
	"hotspot-advisor/version"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

const maxCompareDevices = 10

var addressPattern = regexp.MustCompile(`^11[a-zA-Z0-9]{40,}$`)

type Analyzer interface {
	Analyze(ctx context.Context, address, topicID string) (*analysis.Result, error)
	Compare(ctx context.Context, addresses []string) ([]models.AnalysisReport, error)
}

type PriceBatcher interface {
	GetMultiplePrices(ctx context.Context, symbols []string) map[string]float64
}

type Ledger interface {
	CreateTopic(ctx context.Context) (string, error)
	Retrieve(ctx context.Context, topicID string, sequence int64) (*ledger.Message, error)
}

// Handlers is the HTTP surface of the advisor.
type Handlers struct {
	analyzer Analyzer
	prices   PriceBatcher
	ledger   Ledger
}

func NewHandlers(analyzer Analyzer, prices PriceBatcher, ledger Ledger) *Handlers {
	return &Handlers{
		analyzer: analyzer,
		prices:   prices,
		ledger:   ledger,
	}
}

type AnalyzeRequest struct {
	Address string `json:"address" binding:"required"`
	TopicID string `json:"topic_id"`
}

type CompareRequest struct {
	Addresses []string `json:"addresses" binding:"required"`
}

type AgentRequest struct {
	Message string `json:"message"`
	TopicID string `json:"topic_id"`
}

type ExtractedData struct {
	DeviceAddress string       `json:"device_address,omitempty"`
	Network       string       `json:"network,omitempty"`
	Action        agent.Intent `json:"action"`
}

type AgentResponse struct {
	Success       bool                    `json:"success"`
	Intent        agent.Intent            `json:"intent"`
	Confidence    float64                 `json:"confidence"`
	Response      string                  `json:"response"`
	ExtractedData ExtractedData           `json:"extracted_data"`
	Analysis      *analysis.Result        `json:"analysis,omitempty"`
	Reports       []models.AnalysisReport `json:"reports,omitempty"`
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": version.Service,
	})
}

func (h *Handlers) Version(c *gin.Context) {
	c.JSON(http.StatusOK, version.Get())
}

// Analyze runs the analysis pipeline for one device.
func (h *Handlers) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	address := strings.TrimSpace(req.Address)
	if !addressPattern.MatchString(address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid device address"})
		return
	}

	result, err := h.analyzer.Analyze(c.Request.Context(), address, strings.TrimSpace(req.TopicID))
	if err != nil {
		h.failure(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Compare analyses up to maxCompareDevices devices side by side.
func (h *Handlers) Compare(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(req.Addresses) < 2 || len(req.Addresses) > maxCompareDevices {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Between 2 and 10 addresses are required"})
		return
	}
	for i, address := range req.Addresses {
		req.Addresses[i] = strings.TrimSpace(address)
		if !addressPattern.MatchString(req.Addresses[i]) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid device address: " + address})
			return
		}
	}

	reports, err := h.analyzer.Compare(c.Request.Context(), req.Addresses)
	if err != nil {
		h.failure(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

// Agent answers a chat message. Messages naming one device run an analysis,
// messages naming several run a comparison.
func (h *Handlers) Agent(c *gin.Context) {
	var req AgentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}

	cls := agent.Classify(req.Message)
	resp := AgentResponse{
		Success:    true,
		Intent:     cls.Intent,
		Confidence: cls.Confidence,
		Response:   agent.Reply(cls),
		ExtractedData: ExtractedData{
			DeviceAddress: cls.Address(),
			Network:       cls.Network,
			Action:        cls.Intent,
		},
	}
	log.WithFields(log.Fields{
		"intent":     cls.Intent,
		"confidence": cls.Confidence,
		"addresses":  len(cls.Addresses),
	}).Info("Agent message classified")

	switch {
	case cls.Intent == agent.IntentCompare && len(cls.Addresses) >= 2:
		addresses := cls.Addresses
		if len(addresses) > maxCompareDevices {
			addresses = addresses[:maxCompareDevices]
		}
		reports, err := h.analyzer.Compare(c.Request.Context(), addresses)
		if err != nil {
			h.failure(c, err)
			return
		}
		resp.Reports = reports
		resp.Response += "\n\nBest performer: " + agent.Summary(reports[0])
	case cls.Intent == agent.IntentAnalyze || cls.Intent == agent.IntentCompare:
		result, err := h.analyzer.Analyze(c.Request.Context(), cls.Address(), strings.TrimSpace(req.TopicID))
		if err != nil {
			h.failure(c, err)
			return
		}
		resp.Analysis = result
		resp.Response += "\n\n" + agent.Summary(result.Report)
	}
	c.JSON(http.StatusOK, resp)
}

// GetPrices returns fiat prices for a comma separated list of symbols.
// Symbols that fail to resolve are reported as 0.
func (h *Handlers) GetPrices(c *gin.Context) {
	var symbols []string
	for _, s := range strings.Split(c.Query("symbols"), ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbols query parameter is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"prices": h.prices.GetMultiplePrices(c.Request.Context(), symbols)})
}

// GetLedgerMessage reads back a report previously written to a topic.
func (h *Handlers) GetLedgerMessage(c *gin.Context) {
	seq, err := strconv.ParseInt(c.Param("seq"), 10, 64)
	if err != nil || seq < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sequence number"})
		return
	}

	msg, err := h.ledger.Retrieve(c.Request.Context(), c.Param("topic"), seq)
	if err != nil {
		log.WithError(err).Warn("Ledger message retrieval failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to retrieve ledger message"})
		return
	}
	c.JSON(http.StatusOK, msg)
}

// CreateLedgerTopic provisions a new topic for analysis results.
func (h *Handlers) CreateLedgerTopic(c *gin.Context) {
	topicID, err := h.ledger.CreateTopic(c.Request.Context())
	if err != nil {
		var cfgErr *ledger.ConfigError
		if errors.As(err, &cfgErr) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Ledger is not configured"})
			return
		}
		log.WithError(err).Error("Ledger topic creation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create ledger topic"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"topic_id": topicID, "memo": ledger.TopicMemo})
}

func (h *Handlers) failure(c *gin.Context, err error) {
	var pipelineErr *analysis.PipelineError
	if errors.As(err, &pipelineErr) {
		c.JSON(http.StatusBadGateway, gin.H{"error": pipelineErr.Error()})
		return
	}
	log.WithError(err).Error("Unexpected analysis error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
