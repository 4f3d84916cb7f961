package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sfd-aulas-api/internal/dto"
	"github.com/noah-isme/sfd-aulas-api/internal/scheduling"
	appErrors "github.com/noah-isme/sfd-aulas-api/pkg/errors"
	"github.com/noah-isme/sfd-aulas-api/pkg/events"
	"github.com/noah-isme/sfd-aulas-api/pkg/jobs"
)

const stateRefreshJobType = "aula.state.refresh"

type changeSubscriber interface {
	Subscribe(ctx context.Context, handler events.Handler) (events.Subscription, error)
}

// StateRefreshConfig tunes the background refresher.
type StateRefreshConfig struct {
	Interval time.Duration
	Workers  int
	Retries  int
}

// StateService keeps stored aula states in line with the calculator. It
// refreshes an aula whenever the change feed reports a write to it and sweeps
// every aula on a fixed interval so time-driven transitions are picked up.
type StateService struct {
	aulaCore
	feed  changeSubscriber
	cfg   StateRefreshConfig
	queue *jobs.Queue

	mu     sync.Mutex
	cancel context.CancelFunc
	sub    events.Subscription
	wg     sync.WaitGroup
}

// NewStateService constructs a StateService. feed may be nil, in which case
// only the periodic sweep and explicit refreshes run.
func NewStateService(deps AulaDeps, feed changeSubscriber, cfg StateRefreshConfig) *StateService {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	svc := &StateService{aulaCore: newAulaCore(deps), feed: feed, cfg: cfg}
	retries := cfg.Retries
	if retries == 0 {
		retries = -1
	}
	svc.queue = jobs.NewQueue("aula-state", svc.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: 256,
		MaxRetries: retries,
		Logger:     svc.deps.Logger,
	})
	return svc
}

// Refresh recomputes the derived state of one aula and stores it when it
// differs, replacing a manually set state too. The write only lands if the
// stored state has not moved meanwhile.
func (s *StateService) Refresh(ctx context.Context, id string) (*dto.StateRefreshResult, error) {
	aula, err := s.loadAula(ctx, id)
	if err != nil {
		return nil, err
	}
	result := &dto.StateRefreshResult{AulaID: id, Previous: aula.State, Current: aula.State}
	sessions, err := s.loadSessions(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	derived := scheduling.ComputeState(s.clock, now, scheduling.StateInputFor(*aula, sessions, now))
	if !derived.Differs(aula.State) {
		if derived.IsNoChange() {
			result.Skipped = "insufficient schedule data"
		}
		return result, nil
	}
	next, _ := derived.Get()

	changed, err := s.deps.Aulas.UpdateState(ctx, nil, id, aula.State, next)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store aula state")
	}
	if !changed {
		result.Skipped = "state changed concurrently"
		return result, nil
	}

	result.Current = next
	result.Changed = true
	s.deps.Metrics.RecordStateTransition(aula.State, next)
	s.notify(ctx, events.KindStateChanged, id, aula.Revision)
	s.deps.Logger.Info("aula state refreshed",
		zap.String("aula_id", id),
		zap.String("from", string(aula.State)),
		zap.String("to", string(next)),
	)
	return result, nil
}

// Enqueue schedules a background refresh of one aula. Requests for an aula
// already waiting in the queue are coalesced.
func (s *StateService) Enqueue(id string) error {
	_, err := s.queue.Enqueue(jobs.Job{ID: id, Type: stateRefreshJobType, Key: id, Payload: id})
	return err
}

// RefreshAll enqueues every aula and reports how many were queued.
func (s *StateService) RefreshAll(ctx context.Context) (int, error) {
	ids, err := s.deps.Aulas.ListIDs(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list aulas")
	}
	queued := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return queued, err
		}
		if err := s.Enqueue(id); err != nil {
			return queued, err
		}
		queued++
	}
	return queued, nil
}

// Start launches the worker pool, the change feed subscription and the
// periodic sweep.
func (s *StateService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.queue.Start(runCtx)

	if s.feed != nil {
		sub, err := s.feed.Subscribe(runCtx, s.handleEvent)
		if err != nil {
			cancel()
			s.queue.Stop()
			return err
		}
		s.sub = sub
	}
	s.cancel = cancel

	s.wg.Add(1)
	go s.sweep(runCtx)

	s.deps.Logger.Info("aula state refresher started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("workers", s.cfg.Workers),
		zap.Bool("change_feed", s.feed != nil),
	)
	return nil
}

// Stop ends the subscription, the sweep and the workers.
func (s *StateService) Stop() {
	s.mu.Lock()
	cancel, sub := s.cancel, s.sub
	s.cancel, s.sub = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	if sub != nil {
		_ = sub.Close()
	}
	cancel()
	s.wg.Wait()
	s.queue.Stop()
}

func (s *StateService) sweep(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.runSweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

func (s *StateService) runSweep(ctx context.Context) {
	queued, err := s.RefreshAll(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.deps.Logger.Warn("state sweep incomplete", zap.Int("queued", queued), zap.Error(err))
		return
	}
	s.deps.Logger.Debug("state sweep queued", zap.Int("aulas", queued))
}

// handleEvent reacts to committed changes. Every change drops cached reads;
// writes other than state refreshes schedule a refresh of the aula.
func (s *StateService) handleEvent(ctx context.Context, evt events.ChangeEvent) {
	s.deps.Cache.InvalidateAula(ctx, evt.AulaID)
	if evt.Removed() || evt.Kind == events.KindStateChanged {
		return
	}
	if err := s.Enqueue(evt.AulaID); err != nil {
		s.deps.Logger.Warn("failed to queue state refresh", zap.String("aula_id", evt.AulaID), zap.Error(err))
	}
}

func (s *StateService) handleJob(ctx context.Context, job jobs.Job) error {
	id, _ := job.Payload.(string)
	if id == "" {
		id = job.Key
	}
	_, err := s.Refresh(ctx, id)
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Code == appErrors.ErrNotFound.Code {
		return nil
	}
	return err
}
