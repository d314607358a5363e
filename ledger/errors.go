package ledger

import (
	"fmt"
	"strings"
)

// ConfigError means the ledger credentials are missing or unusable.
type ConfigError struct {
	Missing []string
	Err     error
}

func (e *ConfigError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("ledger is not configured, missing %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("ledger configuration: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// SubmissionError is returned for any failed ledger write.
type SubmissionError struct {
	TopicID string
	Err     error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit to topic %s: %v", e.TopicID, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// RetrievalError is returned when a message cannot be read back from the mirror.
type RetrievalError struct {
	TopicID  string
	Sequence int64
	Err      error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve message %d from topic %s: %v", e.Sequence, e.TopicID, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}
