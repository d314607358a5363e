package ledger

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"hotspot-advisor/metrics"
	"hotspot-advisor/models"

	"github.com/apex/log"
	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// SchemaVersion tags every message written by the notary.
const SchemaVersion = "1.0"

// TopicMemo describes the topics created by CreateTopic.
const TopicMemo = "DePIN Oracle Analysis Results"

// Message is the payload written to a topic.
type Message struct {
	Report        models.AnalysisReport `json:"report"`
	SubmittedAt   time.Time             `json:"submitted_at"`
	SchemaVersion string                `json:"schema_version"`
}

// Backend is the part of an Ethereum client the notary uses.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account ethcommon.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Dialer opens a Backend for an RPC URL.
type Dialer func(ctx context.Context, rpcURL string) (Backend, error)

func dialEthclient(ctx context.Context, rpcURL string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Credentials identify the account that signs ledger writes.
type Credentials struct {
	RPCURL     string
	AccountID  string // hex address of the signing account
	PrivateKey string // hex, with or without 0x
}

type session struct {
	backend    Backend
	privateKey *ecdsa.PrivateKey
	from       ethcommon.Address

	mu      sync.Mutex // serializes nonce assignment
	chainID *big.Int
}

// Notary writes reports to ledger topics and reads them back from a mirror.
// A topic is an address; each report is the calldata of one transaction
// sent to it. One Notary holds one lazily opened client shared by all
// callers.
type Notary struct {
	creds        Credentials
	dial         Dialer
	timeout      time.Duration
	mirrorURL    string
	mirrorAPIKey string
	httpClient   *http.Client
	now          func() time.Time

	once    sync.Once
	session *session
	initErr error
}

type Option func(*Notary)

// WithDialer replaces the ethclient dialer.
func WithDialer(d Dialer) Option {
	return func(n *Notary) {
		n.dial = d
	}
}

// WithClock replaces time.Now for submission timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Notary) {
		n.now = now
	}
}

// WithMirrorAPIKey sets the api key sent to the mirror.
func WithMirrorAPIKey(key string) Option {
	return func(n *Notary) {
		n.mirrorAPIKey = key
	}
}

func NewNotary(creds Credentials, mirrorURL string, timeout time.Duration, opts ...Option) *Notary {
	n := &Notary{
		creds:      creds,
		dial:       dialEthclient,
		timeout:    timeout,
		mirrorURL:  strings.TrimRight(mirrorURL, "/"),
		httpClient: &http.Client{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// connect opens the shared session on first use. A configuration error is
// remembered and returned to every later caller.
func (n *Notary) connect(ctx context.Context) (*session, error) {
	n.once.Do(func() {
		n.session, n.initErr = n.open(ctx)
		if n.initErr != nil {
			log.WithError(n.initErr).Error("Ledger client initialization failed")
		}
	})
	return n.session, n.initErr
}

func (n *Notary) open(ctx context.Context) (*session, error) {
	var missing []string
	if n.creds.RPCURL == "" {
		missing = append(missing, "rpc url")
	}
	if n.creds.AccountID == "" {
		missing = append(missing, "account id")
	}
	if n.creds.PrivateKey == "" {
		missing = append(missing, "private key")
	}
	if len(missing) > 0 {
		return nil, &ConfigError{Missing: missing}
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(n.creds.PrivateKey, "0x"))
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("error converting private key: %w", err)}
	}
	publicKeyECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, &ConfigError{Err: errors.New("error creating ECDSA public key")}
	}
	from := crypto.PubkeyToAddress(*publicKeyECDSA)

	if !ethcommon.IsHexAddress(n.creds.AccountID) {
		return nil, &ConfigError{Err: fmt.Errorf("account id %q is not a hex address", n.creds.AccountID)}
	}
	if ethcommon.HexToAddress(n.creds.AccountID) != from {
		return nil, &ConfigError{Err: fmt.Errorf("private key belongs to %s, not to account %s", from.Hex(), n.creds.AccountID)}
	}

	backend, err := n.dial(ctx, n.creds.RPCURL)
	if err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("error creating ledger client with url %s: %w", n.creds.RPCURL, err)}
	}

	log.Infof("Ledger client initialized, account: %v", from.Hex())
	return &session{
		backend:    backend,
		privateKey: privateKey,
		from:       from,
	}, nil
}

// CreateTopic provisions a new topic for analysis results and returns its
// id. Only a configured notary may create topics.
func (n *Notary) CreateTopic(ctx context.Context) (string, error) {
	s, err := n.connect(ctx)
	if err != nil {
		return "", err
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("error generating topic key: %w", err)
	}
	topic := crypto.PubkeyToAddress(key.PublicKey)
	log.WithFields(log.Fields{
		"topic": topic.Hex(),
		"memo":  TopicMemo,
		"admin": s.from.Hex(),
	}).Info("Ledger topic created")
	return topic.Hex(), nil
}

// Submit writes report to topicID and returns the transaction id once the
// ledger has accepted it.
func (n *Notary) Submit(ctx context.Context, topicID string, report models.AnalysisReport) (string, error) {
	txID, err := n.submit(ctx, topicID, report)
	if err != nil {
		metrics.LedgerSubmissionsTotal.WithLabelValues("error").Inc()
		return "", &SubmissionError{TopicID: topicID, Err: err}
	}
	metrics.LedgerSubmissionsTotal.WithLabelValues("success").Inc()
	return txID, nil
}

func (n *Notary) submit(ctx context.Context, topicID string, report models.AnalysisReport) (string, error) {
	s, err := n.connect(ctx)
	if err != nil {
		return "", err
	}
	if !ethcommon.IsHexAddress(topicID) {
		return "", fmt.Errorf("malformed topic id %q", topicID)
	}
	topic := ethcommon.HexToAddress(topicID)

	payload, err := json.Marshal(Message{
		Report:        report,
		SubmittedAt:   n.now().UTC(),
		SchemaVersion: SchemaVersion,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	tx, err := s.send(ctx, topic, payload)
	if err != nil {
		return "", err
	}
	log.Infof("Ledger transaction %s sent to topic %s", tx.Hash().Hex(), topic.Hex())

	receipt, err := bind.WaitMined(ctx, s.backend, tx)
	if err != nil {
		return "", fmt.Errorf("waiting for receipt of %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", fmt.Errorf("transaction %s rejected by the ledger", tx.Hash().Hex())
	}

	cost := new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), tx.GasPrice())
	log.WithFields(log.Fields{
		"tx":       tx.Hash().Hex(),
		"gas_used": receipt.GasUsed,
		"cost":     decimal.NewFromBigInt(cost, -18).String(),
	}).Info("Ledger transaction confirmed")

	return tx.Hash().Hex(), nil
}

func (s *session) send(ctx context.Context, topic ethcommon.Address, payload []byte) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chainID == nil {
		chainID, err := s.backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("error getting chain ID: %w", err)
		}
		s.chainID = chainID
	}

	nonce, err := s.backend.PendingNonceAt(ctx, s.from)
	if err != nil {
		return nil, fmt.Errorf("error getting nonce: %w", err)
	}
	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting gas price: %w", err)
	}
	gas, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: s.from,
		To:   &topic,
		Data: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("error estimating gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &topic,
		Value:    big.NewInt(0),
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     payload,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("error signing transaction: %w", err)
	}
	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("error sending transaction: %w", err)
	}
	return signed, nil
}
