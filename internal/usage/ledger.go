// Package usage provides the one-way usage ledger the gateway reports token
// consumption to. The ledger is an external collaborator from the core's
// point of view: failures here must never fail the calling operation.
package usage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/overture-dev/overture/internal/constants"
	"github.com/overture-dev/overture/internal/errors"
)

// Entry is one usage-ledger record.
type Entry struct {
	// UserID attributes the consumption.
	UserID string `json:"user_id"`

	// TaskID links the consumption back to a task, when known.
	TaskID string `json:"task_id,omitempty"`

	// UseCase is the gateway purpose that consumed the tokens.
	UseCase constants.UseCase `json:"use_case"`

	// ModelID is the model that served the call.
	ModelID string `json:"model_id"`

	// InputTokens is the prompt token count.
	InputTokens int `json:"input_tokens"`

	// OutputTokens is the completion token count.
	OutputTokens int `json:"output_tokens"`

	// TotalTokens is input plus output.
	TotalTokens int `json:"total_tokens"`

	// RecordedAt is when the entry was appended.
	RecordedAt time.Time `json:"recorded_at"`
}

// Ledger records usage entries. Implementations must be safe for
// concurrent use.
type Ledger interface {
	// Record appends one entry.
	Record(ctx context.Context, entry Entry) error
}

// FileLedger appends entries to a JSON-lines file under the Overture home.
type FileLedger struct {
	path string
	mu   sync.Mutex
}

// NewFileLedger creates a ledger writing to <home>/usage.jsonl.
func NewFileLedger(home string) (*FileLedger, error) {
	if home == "" {
		return nil, errors.Wrap(errors.ErrEmptyValue, "ledger home directory")
	}
	if err := os.MkdirAll(home, 0o750); err != nil {
		return nil, errors.Wrap(err, "failed to create ledger directory")
	}
	return &FileLedger{path: filepath.Join(home, constants.UsageLedgerFileName)}, nil
}

// Record appends one entry in JSON-lines format.
func (l *FileLedger) Record(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "failed to marshal usage entry")
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return errors.Wrap(err, "failed to open usage ledger")
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(data); err != nil {
		return errors.Wrap(err, "failed to append usage entry")
	}
	return nil
}

// Compile-time check that FileLedger implements Ledger.
var _ Ledger = (*FileLedger)(nil)

// Nop is a Ledger that discards entries. Used when usage accounting is
// disabled or unavailable.
type Nop struct{}

// Record discards the entry.
func (Nop) Record(_ context.Context, _ Entry) error {
	return nil
}

// Compile-time check that Nop implements Ledger.
var _ Ledger = Nop{}
