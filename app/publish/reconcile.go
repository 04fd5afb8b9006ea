package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/internal/metrics"
	"github.com/OdyseeTeam/mintstudio/internal/tasks"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"

	"github.com/hibiken/asynq"
)

const (
	DefaultMintTimeout = 15 * time.Minute
	reconcileRetries   = 5
	// Requests newer than the task by more than this belong to a later mint.
	supersedeGrace = time.Minute
)

const (
	ReconcileSettled    = "settled"
	ReconcileCleared    = "cleared"
	ReconcileSuperseded = "superseded"
	ReconcileGone       = "gone"
)

// Changes announces that a publish record changed.
type Changes interface {
	Notify(ctx context.Context, publishID string) error
}

// TaskScheduler enqueues delayed tasks, deduplicated by id.
type TaskScheduler interface {
	Schedule(ctx context.Context, taskType, id string, payload any, delay time.Duration, retry int) error
}

// BusScheduler schedules mint reconciliation on the task bus.
type BusScheduler struct {
	bus   TaskScheduler
	delay time.Duration
}

func NewBusScheduler(bus TaskScheduler, mintTimeout time.Duration) *BusScheduler {
	if mintTimeout <= 0 {
		mintTimeout = DefaultMintTimeout
	}
	return &BusScheduler{bus: bus, delay: mintTimeout}
}

// ScheduleReconcile queues a check on the mint in p. Scheduling the same mint twice queues one check.
func (s *BusScheduler) ScheduleReconcile(ctx context.Context, p tasks.ReconcileMintPayload) error {
	id := fmt.Sprintf("%s:%d", p.PublishID, p.RequestedAt.UnixMilli())
	return s.bus.Schedule(ctx, tasks.TaskReconcileMint, id, p, s.delay, reconcileRetries)
}

// Reconciler clears the minting flag of publishes whose mint never produced a token.
// It calls the content service with its own service credentials.
type Reconciler struct {
	store   Store
	changes Changes
	logger  logging.KVLogger
}

func NewReconciler(store Store, changes Changes, logger logging.KVLogger) *Reconciler {
	if logger == nil {
		logger = logging.NoopKVLogger{}
	}
	return &Reconciler{store: store, changes: changes, logger: logger}
}

// Reconcile checks on the mint described by p and returns the decision taken.
func (r *Reconciler) Reconcile(ctx context.Context, p tasks.ReconcileMintPayload) (string, error) {
	log := r.logger.With("publish_id", p.PublishID, "account_id", p.AccountID)
	pub, err := r.store.GetPublish(ctx, "", p.PublishID)
	if errors.IsKind(err, errors.KindNotFound) {
		metrics.MintReconciliations.WithLabelValues(ReconcileGone).Inc()
		return ReconcileGone, nil
	}
	if err != nil {
		return "", err
	}

	result := ReconcileCleared
	switch {
	case pub.Minted() || !pub.IsMinting:
		result = ReconcileSettled
	case pub.MintRequestedAt != nil && pub.MintRequestedAt.Sub(p.RequestedAt) > supersedeGrace:
		result = ReconcileSuperseded
	}
	if result != ReconcileCleared {
		metrics.MintReconciliations.WithLabelValues(result).Inc()
		log.Debug("mint reconciliation skipped", "result", result)
		return result, nil
	}

	if err := r.store.SetMinting(ctx, "", p.PublishID, false); err != nil {
		return "", err
	}
	metrics.MintReconciliations.WithLabelValues(result).Inc()
	log.Info("stuck mint cleared", "requested_at", p.RequestedAt)
	if r.changes != nil {
		if err := r.changes.Notify(ctx, p.PublishID); err != nil {
			log.Warn("change notification failed", "err", err)
		}
	}
	return result, nil
}

// HandleTask is the task bus handler for tasks.TaskReconcileMint.
func (r *Reconciler) HandleTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.ReconcileMintPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("cannot decode payload: %v: %w", err, asynq.SkipRetry)
	}
	_, err := r.Reconcile(ctx, p)
	return err
}
