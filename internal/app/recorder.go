package app

import (
	"context"
	"fmt"

	"evaluation-service/internal/domain"
	"github.com/rs/zerolog"
)

// ResultStore is the primary store of result records. Writes must be idempotent on record ID.
type ResultStore interface {
	SaveResult(ctx context.Context, record domain.ResultRecord) error
}

// PendingQueue holds records the primary store rejected.
type PendingQueue interface {
	Push(ctx context.Context, record domain.ResultRecord) error
	// Pop returns ok=false when the queue is empty.
	Pop(ctx context.Context) (record domain.ResultRecord, ok bool, err error)
}

// ResultRecorder writes to the store and falls back to the pending queue.
type ResultRecorder struct {
	store   ResultStore
	pending PendingQueue
	log     zerolog.Logger
}

// NewResultRecorder builds a recorder; pending may be nil.
func NewResultRecorder(store ResultStore, pending PendingQueue, log zerolog.Logger) *ResultRecorder {
	return &ResultRecorder{
		store:   store,
		pending: pending,
		log:     log.With().Str("component", "result_recorder").Logger(),
	}
}

func (r *ResultRecorder) SaveResult(ctx context.Context, record domain.ResultRecord) error {
	err := r.store.SaveResult(ctx, record)
	if err == nil {
		return nil
	}
	if r.pending == nil {
		return fmt.Errorf("save result %s: %w", record.ID, err)
	}
	if qerr := r.pending.Push(ctx, record); qerr != nil {
		r.log.Error().Err(qerr).Str("result_id", record.ID).Msg("pending queue push failed")
		return fmt.Errorf("save result %s: %w", record.ID, err)
	}
	r.log.Warn().Err(err).Str("result_id", record.ID).Msg("result queued for reconciliation")
	return fmt.Errorf("%w: %v", domain.ErrResultQueued, err)
}

// Reconciler moves queued records into the primary store.
type Reconciler struct {
	store   ResultStore
	pending PendingQueue
	log     zerolog.Logger
}

func NewReconciler(store ResultStore, pending PendingQueue, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		pending: pending,
		log:     log.With().Str("component", "reconciler").Logger(),
	}
}

// Drain saves queued records until the queue is empty or the store fails again.
// A record that fails is pushed back. It returns the number of records saved.
func (r *Reconciler) Drain(ctx context.Context) (int, error) {
	saved := 0
	for {
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		record, ok, err := r.pending.Pop(ctx)
		if err != nil {
			return saved, fmt.Errorf("pop pending result: %w", err)
		}
		if !ok {
			return saved, nil
		}
		if err := r.store.SaveResult(ctx, record); err != nil {
			if perr := r.pending.Push(ctx, record); perr != nil {
				r.log.Error().Err(perr).Interface("record", record).Msg("requeue failed")
			}
			return saved, fmt.Errorf("save result %s: %w", record.ID, err)
		}
		saved++
		r.log.Info().Str("result_id", record.ID).Msg("pending result reconciled")
	}
}
