package incident

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// GrantIncidentArgs describes a grant whose debit committed but whose entry
// was never written. The debit is not reversed; the record is for manual review.
type GrantIncidentArgs struct {
	AccountID  uuid.UUID `json:"account_id"`
	UID        string    `json:"uid"`
	Region     string    `json:"region"`
	Cost       int64     `json:"cost"`
	DebitTxID  uuid.UUID `json:"debit_tx_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (GrantIncidentArgs) Kind() string { return "grant_incident" }

// Recorder persists incidents. Recording the same debit twice must be a no-op
// so that River retries are safe.
type Recorder interface {
	Record(ctx context.Context, args GrantIncidentArgs) error
}

type GrantIncidentWorker struct {
	river.WorkerDefaults[GrantIncidentArgs]
	recorder Recorder
	log      *slog.Logger
}

func NewGrantIncidentWorker(recorder Recorder, log *slog.Logger) *GrantIncidentWorker {
	if log == nil {
		log = slog.Default()
	}
	return &GrantIncidentWorker{recorder: recorder, log: log}
}

func (w *GrantIncidentWorker) Work(ctx context.Context, job *river.Job[GrantIncidentArgs]) error {
	args := job.Args
	if err := w.recorder.Record(ctx, args); err != nil {
		return fmt.Errorf("record grant incident for debit %s: %w", args.DebitTxID, err)
	}
	w.log.Warn("grant incident recorded",
		"job_id", job.ID,
		"account_id", args.AccountID,
		"uid", args.UID,
		"region", args.Region,
		"cost", args.Cost,
		"debit_tx_id", args.DebitTxID,
		"reason", args.Reason,
	)
	return nil
}
