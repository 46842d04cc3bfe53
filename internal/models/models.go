package models

import "time"

// Status represents the terminal state of one verified case.
type Status string

const (
	// StatusSucceeded means the provider returned a scorable response.
	StatusSucceeded Status = "succeeded"
	// StatusExhaustedRetries means every attempt failed at the transport level.
	StatusExhaustedRetries Status = "exhausted_retries"
	// StatusInternalError means the worker itself faulted while handling the case.
	StatusInternalError Status = "internal_error"
)

// Check tags select validators per test case via the registry.
const (
	CheckToolCalls         = "tool_calls"
	CheckTriggerSimilarity = "trigger_similarity"
	CheckReasoningOnly     = "reasoning_only"
	CheckLanguageFollowing = "language_following"
	CheckRepeatNGram       = "repeat_n_gram"
)

// Detail keys shared between the trigger-similarity validator and the
// aggregator, so confusion-matrix counts can be rebuilt from stored verdicts.
const (
	DetailExpectedTrigger = "expected"
	DetailActualTrigger   = "actual"
)

// TestCase is one immutable suite entry, read from a JSONL line.
type TestCase struct {
	// Index is the 1-based line number in the suite file.
	Index int
	// ID is a stable content hash of the prepared request.
	ID string
	// Raw is the payload exactly as read from the suite.
	Raw map[string]any
	// Prepared is the payload as sent to the provider: verification-only
	// fields stripped, roles rewritten, model forced.
	Prepared map[string]any

	// CheckTypes lists validator tags declared on the case.
	CheckTypes []string
	// ExpectToolCall is the reference deployment's trigger label, when known.
	ExpectToolCall *bool
	// ExpectLanguage is the instructed response language (BCP-47), when set.
	ExpectLanguage string
}

// Verdict is one validator's judgment of one response.
type Verdict struct {
	Validator string         `json:"validator"`
	Triggered bool           `json:"triggered"`
	Passed    bool           `json:"passed"`
	Detail    map[string]any `json:"detail,omitempty"`
	// Err records a validator-internal failure; when set the verdict is
	// not applicable and Triggered/Passed are meaningless.
	Err string `json:"error,omitempty"`
}

// Applicable reports whether the verdict counts toward its metric.
func (v Verdict) Applicable() bool {
	return v.Err == "" && v.Triggered
}

// QueryResult is the durable per-case record written to the detailed output.
// Results are unique by ID within a result set; an incremental run replaces
// the whole record for an ID, never patches it.
type QueryResult struct {
	ID           string             `json:"id"`
	Index        int                `json:"data_index"`
	Status       Status             `json:"status"`
	Request      map[string]any     `json:"request"`
	Response     map[string]any     `json:"response,omitempty"`
	Error        string             `json:"error,omitempty"`
	FinishReason string             `json:"finish_reason,omitempty"`
	Provider     string             `json:"provider,omitempty"`
	Verdicts     map[string]Verdict `json:"verdicts"`
	Attempts     int                `json:"attempts"`
	DurationMs   int64              `json:"duration_ms"`
	LastRunAt    time.Time          `json:"last_run_at"`
}

// Succeeded reports whether the case reached a scorable response.
func (r *QueryResult) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// Verdict returns the stored verdict for a validator name, if present.
func (r *QueryResult) Verdict(name string) (Verdict, bool) {
	v, ok := r.Verdicts[name]
	return v, ok
}
