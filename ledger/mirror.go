package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var errMessageNotFound = errors.New("message not found")

// explorerResponse is the envelope of an Etherscan compatible account API.
// Result is a list on success and a string on failure.
type explorerResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type explorerTx struct {
	Hash    string `json:"hash"`
	To      string `json:"to"`
	Input   string `json:"input"`
	IsError string `json:"isError"`
}

// Retrieve reads message number sequence of topicID back from the mirror.
// Sequence numbers start at 1 and count the successful transactions sent to
// the topic address, oldest first.
func (n *Notary) Retrieve(ctx context.Context, topicID string, sequence int64) (*Message, error) {
	msg, err := n.retrieve(ctx, topicID, sequence)
	if err != nil {
		return nil, &RetrievalError{TopicID: topicID, Sequence: sequence, Err: err}
	}
	return msg, nil
}

func (n *Notary) retrieve(ctx context.Context, topicID string, sequence int64) (*Message, error) {
	if n.mirrorURL == "" {
		return nil, errors.New("no mirror url configured")
	}
	if !ethcommon.IsHexAddress(topicID) {
		return nil, fmt.Errorf("malformed topic id %q", topicID)
	}
	if sequence < 1 {
		return nil, fmt.Errorf("sequence number %d out of range", sequence)
	}
	topic := ethcommon.HexToAddress(topicID)

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	txs, err := n.topicTransactions(ctx, topic)
	if err != nil {
		return nil, err
	}
	if sequence > int64(len(txs)) {
		return nil, errMessageNotFound
	}

	raw, err := hexutil.Decode(txs[sequence-1].Input)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message body: %w", err)
	}
	return decodeMessage(raw)
}

// topicTransactions lists the successful transactions carrying data to topic.
func (n *Notary) topicTransactions(ctx context.Context, topic ethcommon.Address) ([]explorerTx, error) {
	target, err := url.Parse(n.mirrorURL)
	if err != nil {
		return nil, fmt.Errorf("bad mirror url: %w", err)
	}
	query := target.Query()
	query.Set("module", "account")
	query.Set("action", "txlist")
	query.Set("address", topic.Hex())
	query.Set("startblock", "0")
	query.Set("endblock", "99999999")
	query.Set("sort", "asc")
	if n.mirrorAPIKey != "" {
		query.Set("apikey", n.mirrorAPIKey)
	}
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mirror request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("mirror returned status %d: %s", resp.StatusCode, string(body))
	}

	var envelope explorerResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode mirror response: %w", err)
	}
	if envelope.Status != "1" {
		if strings.HasPrefix(envelope.Message, "No transactions found") {
			return nil, errMessageNotFound
		}
		return nil, fmt.Errorf("mirror error %q: %s", envelope.Message, string(envelope.Result))
	}

	var all []explorerTx
	if err := json.Unmarshal(envelope.Result, &all); err != nil {
		return nil, fmt.Errorf("failed to decode mirror transactions: %w", err)
	}
	txs := all[:0]
	for _, tx := range all {
		if !ethcommon.IsHexAddress(tx.To) || ethcommon.HexToAddress(tx.To) != topic {
			continue
		}
		if tx.IsError != "" && tx.IsError != "0" {
			continue
		}
		if len(tx.Input) <= len("0x") {
			continue
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// decodeMessage parses a payload and rejects anything the notary did not
// write.
func decodeMessage(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message payload: %w", err)
	}
	if msg.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("unsupported schema version %q", msg.SchemaVersion)
	}
	if msg.Report.Device.Address == "" || msg.SubmittedAt.IsZero() {
		return nil, errors.New("message payload carries no report")
	}
	return &msg, nil
}
