package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// explorerFor serves an Etherscan style txlist over the transactions the
// backend accepted, followed by extra entries.
func explorerFor(t *testing.T, backend *fakeBackend, extra ...explorerTx) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("module") != "account" || q.Get("action") != "txlist" || q.Get("sort") != "asc" {
			t.Errorf("explorer: unexpected query %s", r.URL.RawQuery)
		}
		if q.Get("apikey") == "revoked" {
			json.NewEncoder(w).Encode(map[string]interface{}{"status": "0", "message": "NOTOK", "result": "Invalid API Key"})
			return
		}
		address := ethcommon.HexToAddress(q.Get("address"))

		var result []explorerTx
		backend.mu.Lock()
		for _, tx := range backend.sent {
			if tx.To() == nil || *tx.To() != address {
				continue
			}
			result = append(result, explorerTx{
				Hash:    tx.Hash().Hex(),
				To:      strings.ToLower(tx.To().Hex()),
				Input:   hexutil.Encode(tx.Data()),
				IsError: "0",
			})
		}
		backend.mu.Unlock()
		for _, tx := range extra {
			if ethcommon.HexToAddress(tx.To) == address {
				result = append(result, tx)
			}
		}

		if len(result) == 0 {
			json.NewEncoder(w).Encode(map[string]interface{}{"status": "0", "message": "No transactions found", "result": []explorerTx{}})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "1", "message": "OK", "result": result})
	}))
}

func TestSubmitThenRetrieve(t *testing.T) {
	backend := &fakeBackend{receiptStatus: types.ReceiptStatusSuccessful}
	mirror := explorerFor(t, backend)
	defer mirror.Close()

	submittedAt := time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC)
	n := NewNotary(newTestCredentials(t), mirror.URL+"/", time.Second,
		WithDialer(func(context.Context, string) (Backend, error) { return backend, nil }),
		WithClock(func() time.Time { return submittedAt }))

	first := testReport()
	elsewhere := testReport()
	elsewhere.Device.Name = "elsewhere"
	second := testReport()
	second.Device.Name = "steep-cobalt-mantis"
	second.Risk.Score = 6
	if _, err := n.Submit(context.Background(), topicHex, first); err != nil {
		t.Fatalf("Submit(first): unexpected error %v", err)
	}
	if _, err := n.Submit(context.Background(), otherTopicHex, elsewhere); err != nil {
		t.Fatalf("Submit(elsewhere): unexpected error %v", err)
	}
	if _, err := n.Submit(context.Background(), topicHex, second); err != nil {
		t.Fatalf("Submit(second): unexpected error %v", err)
	}

	msg, err := n.Retrieve(context.Background(), topicHex, 1)
	if err != nil {
		t.Fatalf("Retrieve(1): unexpected error %v", err)
	}
	if msg.Report.Device.Name != first.Device.Name || msg.SchemaVersion != SchemaVersion || !msg.SubmittedAt.Equal(submittedAt) {
		t.Errorf("Retrieve(1): unexpected message %+v", msg)
	}

	// Messages to other topics do not shift the sequence.
	msg, err = n.Retrieve(context.Background(), topicHex, 2)
	if err != nil {
		t.Fatalf("Retrieve(2): unexpected error %v", err)
	}
	if msg.Report.Device.Name != "steep-cobalt-mantis" || msg.Report.Risk.Score != 6 {
		t.Errorf("Retrieve(2): unexpected report %+v", msg.Report)
	}

	msg, err = n.Retrieve(context.Background(), otherTopicHex, 1)
	if err != nil || msg.Report.Device.Name != "elsewhere" {
		t.Errorf("Retrieve(other, 1): want the other topic's message, got %+v, %v", msg, err)
	}

	_, err = n.Retrieve(context.Background(), topicHex, 3)
	var retErr *RetrievalError
	if !errors.As(err, &retErr) || !errors.Is(err, errMessageNotFound) {
		t.Errorf("Retrieve(3): want *RetrievalError wrapping errMessageNotFound, got %v", err)
	}
}

const otherTopicHex = "0x00000000000000000000000000000000000b0b00"

func TestRetrieveRejectsForeignPayloads(t *testing.T) {
	legacy, _ := json.Marshal(map[string]interface{}{
		"timestamp": 1714564801000,
		"analysis":  map[string]interface{}{"device": map[string]string{"name": "magnificent-lavender-condor"}},
		"version":   "1.0",
	})
	future, _ := json.Marshal(Message{Report: testReport(), SubmittedAt: time.Now(), SchemaVersion: "2.0"})
	empty, _ := json.Marshal(map[string]string{"schema_version": SchemaVersion})
	valid, _ := json.Marshal(Message{Report: testReport(), SubmittedAt: time.Now(), SchemaVersion: SchemaVersion})

	to := strings.ToLower(topicHex)
	mirror := explorerFor(t, &fakeBackend{},
		explorerTx{Hash: "0x01", To: to, Input: hexutil.Encode(legacy), IsError: "0"},
		explorerTx{Hash: "0x02", To: to, Input: hexutil.Encode(future), IsError: "0"},
		explorerTx{Hash: "0x03", To: to, Input: hexutil.Encode(empty), IsError: "0"},
		explorerTx{Hash: "0x04", To: to, Input: hexutil.Encode([]byte("not json")), IsError: "0"},
		// Failed and empty transactions are not messages.
		explorerTx{Hash: "0x05", To: to, Input: hexutil.Encode(valid), IsError: "1"},
		explorerTx{Hash: "0x06", To: to, Input: "0x", IsError: "0"},
		explorerTx{Hash: "0x07", To: to, Input: hexutil.Encode(valid), IsError: "0"},
	)
	defer mirror.Close()

	n := NewNotary(Credentials{}, mirror.URL, time.Second)
	for seq := int64(1); seq <= 4; seq++ {
		msg, err := n.Retrieve(context.Background(), topicHex, seq)
		var retErr *RetrievalError
		if !errors.As(err, &retErr) || msg != nil {
			t.Errorf("Retrieve(%d): want *RetrievalError, got %+v, %v", seq, msg, err)
		}
	}

	msg, err := n.Retrieve(context.Background(), topicHex, 5)
	if err != nil || msg.Report.Device.Name != testReport().Device.Name {
		t.Errorf("Retrieve(5): want the valid message, got %+v, %v", msg, err)
	}
	if _, err := n.Retrieve(context.Background(), topicHex, 6); !errors.Is(err, errMessageNotFound) {
		t.Errorf("Retrieve(6): want errMessageNotFound, got %v", err)
	}
}

func TestRetrieveFailures(t *testing.T) {
	mirror := explorerFor(t, &fakeBackend{})
	defer mirror.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream failure", http.StatusBadGateway)
	}))
	defer down.Close()

	tests := []struct {
		name     string
		notary   *Notary
		topic    string
		sequence int64
	}{
		{
			name:     "empty topic",
			notary:   NewNotary(Credentials{}, mirror.URL, time.Second),
			topic:    topicHex,
			sequence: 1,
		}, {
			name:     "malformed topic",
			notary:   NewNotary(Credentials{}, mirror.URL, time.Second),
			topic:    "0.0.12345",
			sequence: 1,
		}, {
			name:     "sequence below one",
			notary:   NewNotary(Credentials{}, mirror.URL, time.Second),
			topic:    topicHex,
			sequence: 0,
		}, {
			name:     "mirror rejects the api key",
			notary:   NewNotary(Credentials{}, mirror.URL, time.Second, WithMirrorAPIKey("revoked")),
			topic:    topicHex,
			sequence: 1,
		}, {
			name:     "mirror unavailable",
			notary:   NewNotary(Credentials{}, down.URL, time.Second),
			topic:    topicHex,
			sequence: 1,
		}, {
			name:     "no mirror configured",
			notary:   NewNotary(Credentials{}, "", time.Second),
			topic:    topicHex,
			sequence: 1,
		},
	}
	for _, test := range tests {
		_, err := test.notary.Retrieve(context.Background(), test.topic, test.sequence)
		var retErr *RetrievalError
		if !errors.As(err, &retErr) {
			t.Errorf("%s: want *RetrievalError, got %v", test.name, err)
			continue
		}
		if retErr.Sequence != test.sequence || retErr.TopicID != test.topic {
			t.Errorf("%s: unexpected error fields %+v", test.name, retErr)
		}
	}
}
