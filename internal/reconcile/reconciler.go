// Package reconcile flushes the durable sync queue to the scorer of record
// and folds its authoritative results back into the local ledger.
//
// The queue is strictly ordered: a failed head entry halts the flush and is
// retried first next time. Entries the scorer refuses outright are marked
// rejected and stop blocking the queue.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dersual/Focus-Friendship-MVP/internal/digest"
	"github.com/dersual/Focus-Friendship-MVP/internal/ledger"
	"github.com/dersual/Focus-Friendship-MVP/internal/progression"
	"github.com/dersual/Focus-Friendship-MVP/internal/remote"
	"github.com/dersual/Focus-Friendship-MVP/internal/session"
	"github.com/dersual/Focus-Friendship-MVP/internal/store"
	"github.com/dersual/Focus-Friendship-MVP/internal/xp"
)

var tracer trace.Tracer = otel.Tracer("github.com/dersual/Focus-Friendship-MVP/internal/reconcile")

// Defaults used when Options leaves a field zero.
const (
	DefaultInterval       = 60 * time.Second
	DefaultCallTimeout    = 5 * time.Second
	DefaultRetention      = 100
	DefaultBatchSize      = 50
	DefaultInitialBackoff = 5 * time.Second
	DefaultMaxBackoff     = 5 * time.Minute
)

// Options configures a Reconciler.
type Options struct {
	Logger *slog.Logger

	// Interval is the period of the background flush.
	Interval time.Duration
	// CallTimeout bounds each call to the scorer.
	CallTimeout time.Duration
	// Retention is how many synced entries survive pruning.
	Retention int
	// BatchSize is the most entries one flush sends.
	BatchSize int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	Now func() time.Time
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.Retention <= 0 {
		o.Retention = DefaultRetention
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = DefaultInitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = DefaultMaxBackoff
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Result summarizes one flush.
type Result struct {
	Synced   int
	Rejected int
	Pruned   int
	// Adopted is set when the queue drained and the scorer's user state
	// replaced the local copy.
	Adopted bool
}

// Reconciler owns the client side of the sync queue.
type Reconciler struct {
	store  *store.Store
	ledger *ledger.Service
	client remote.ScoringClient
	opts   Options
	logger *slog.Logger

	// sem serializes flushes; kick wakes Run early.
	sem  chan struct{}
	kick chan struct{}
}

// New creates a reconciler that sends the queue held in st to client.
func New(st *store.Store, l *ledger.Service, client remote.ScoringClient, opts Options) *Reconciler {
	opts.defaults()
	return &Reconciler{
		store:  st,
		ledger: l,
		client: client,
		opts:   opts,
		logger: opts.Logger,
		sem:    make(chan struct{}, 1),
		kick:   make(chan struct{}, 1),
	}
}

// Enqueue places a terminal record on the queue. Records that already have
// an entry keep it.
func (r *Reconciler) Enqueue(ctx context.Context, rec session.Record, penalty *progression.Penalty) (store.QueueEntry, error) {
	if !rec.Terminal() {
		return store.QueueEntry{}, fmt.Errorf("enqueue session %s: record has not ended", rec.ID)
	}
	u, err := r.store.ReadUser(ctx, rec.UserID)
	if err != nil {
		return store.QueueEntry{}, err
	}
	payload, sum, err := digest.Encode(ledger.NewPayload(rec, penalty, u))
	if err != nil {
		return store.QueueEntry{}, fmt.Errorf("encode sync payload: %w", err)
	}
	e, err := r.store.Enqueue(ctx, rec.ID, payload, sum, r.opts.Now())
	if err != nil {
		return store.QueueEntry{}, err
	}
	r.Kick()
	return e, nil
}

// Kick asks a running Run loop to flush now.
func (r *Reconciler) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Flush sends pending entries in order until the queue drains, a batch is
// done, or an entry fails. A transient failure is returned as *SyncError
// and leaves that entry at the head.
func (r *Reconciler) Flush(ctx context.Context) (Result, error) {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	defer func() { <-r.sem }()

	ctx, span := tracer.Start(ctx, "reconcile.Flush")
	defer span.End()

	var res Result
	pending, err := r.store.Pending(ctx, r.opts.BatchSize)
	if err != nil {
		return res, fmt.Errorf("read sync queue: %w", err)
	}
	span.SetAttributes(attribute.Int("queue.pending", len(pending)))

	for i, e := range pending {
		resp, err := r.send(ctx, e)
		if err != nil {
			if IsPermanent(err) {
				if err := r.reject(ctx, e, err); err != nil {
					return res, err
				}
				res.Rejected++
				continue
			}
			if markErr := r.store.MarkFailed(ctx, e.Sequence, err); markErr != nil {
				return res, markErr
			}
			serr := &SyncError{SessionID: e.SessionID, Attempt: e.Attempts + 1, Err: err}
			r.logger.Warn("sync halted", "session_id", e.SessionID, "position", i, "attempt", serr.Attempt, "err", err)
			span.RecordError(serr)
			return res, serr
		}
		if err := r.accept(ctx, e, resp); err != nil {
			return res, err
		}
		res.Synced++

		if i == len(pending)-1 && len(pending) < r.opts.BatchSize {
			if _, err := r.ledger.AdoptState(ctx, resp.NewUserState.User.ID, resp.NewUserState.User, resp.NewUserState.Pet); err != nil {
				return res, err
			}
			res.Adopted = true
		}
	}

	pruned, err := r.prune(ctx)
	if err != nil {
		return res, err
	}
	res.Pruned = pruned
	return res, nil
}

func (r *Reconciler) send(ctx context.Context, e store.QueueEntry) (*remote.EndSessionResponse, error) {
	p, err := ledger.DecodePayload(e.Payload)
	if err != nil {
		return nil, Permanent(err)
	}
	ctx, cancel := context.WithTimeout(ctx, r.opts.CallTimeout)
	defer cancel()
	resp, err := r.client.EndSession(ctx, &remote.EndSessionRequest{Session: p, Digest: e.Digest})
	if err != nil {
		return nil, classify(err)
	}
	if resp.NewUserState.User.ID == "" {
		resp.NewUserState.User.ID = p.UserID
	}
	return resp, nil
}

func (r *Reconciler) accept(ctx context.Context, e store.QueueEntry, resp *remote.EndSessionResponse) error {
	award := xp.Award{XP: resp.AwardedXP, PetXP: resp.PetXP, Breakdown: resp.Breakdown}
	rec, applied, err := r.ledger.ApplyAuthoritative(ctx, e.SessionID, award)
	switch {
	case errors.Is(err, store.ErrNotFound):
		r.logger.Debug("synced session no longer stored locally", "session_id", e.SessionID)
	case err != nil:
		return err
	case !applied:
		r.logger.Debug("authoritative award arrived after fallback", "session_id", e.SessionID, "source", rec.AwardSource)
	}
	return r.store.MarkSynced(ctx, e.Sequence, store.QueueStatusAccepted, r.opts.Now())
}

func (r *Reconciler) reject(ctx context.Context, e store.QueueEntry, cause error) error {
	r.logger.Warn("session rejected by scorer", "session_id", e.SessionID, "err", cause)
	if err := r.store.MarkSynced(ctx, e.Sequence, store.QueueStatusRejected, r.opts.Now()); err != nil {
		return err
	}
	if _, err := r.ledger.Finalize(ctx, e.SessionID, session.AwardRejected); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// prune drops old synced entries once few entries are waiting.
func (r *Reconciler) prune(ctx context.Context) (int, error) {
	stats, err := r.store.QueueStats(ctx)
	if err != nil {
		return 0, err
	}
	if stats.Pending > r.opts.BatchSize || stats.Synced <= r.opts.Retention {
		return 0, nil
	}
	return r.store.PruneSynced(ctx, r.opts.Retention)
}

// Stats reports the queue depth and the head entry's last failure.
func (r *Reconciler) Stats(ctx context.Context) (store.QueueStats, error) {
	return r.store.QueueStats(ctx)
}

// Run flushes on start, every Interval, and whenever Kick is called. After
// a failed flush the next attempt backs off exponentially instead.
func (r *Reconciler) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		case <-r.kick:
		}

		wait := r.opts.Interval
		res, err := r.Flush(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			failures++
			wait = r.backoff(failures)
			r.logger.Warn("sync failed", "failures", failures, "retry_in", wait.Round(time.Second), "err", err)
		default:
			if failures > 0 || res.Synced > 0 || res.Rejected > 0 {
				r.logger.Info("sync complete", "synced", res.Synced, "rejected", res.Rejected, "pruned", res.Pruned)
			}
			failures = 0
		}
		timer.Reset(wait)
	}
}

// backoff computes the wait after the given number of consecutive failures.
func (r *Reconciler) backoff(failures int) time.Duration {
	wait := float64(r.opts.InitialBackoff) * math.Pow(2, float64(failures-1))
	if wait > float64(r.opts.MaxBackoff) {
		wait = float64(r.opts.MaxBackoff)
	}

	// Add ±20% jitter.
	jitter := wait * 0.2 * (2*rand.Float64() - 1)
	wait += jitter

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}
