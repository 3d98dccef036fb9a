package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	appLog "schedview/internal/log"
	"schedview/internal/schedule"
)

// Store holds the current schedule snapshot. Readers get an immutable
// schedule.State; a reload swaps in a whole new one.
type Store struct {
	loader schedule.Loader

	current atomic.Pointer[schedule.State]

	// reloadMu keeps scheduled reloads from overlapping.
	reloadMu sync.Mutex

	cronMu sync.Mutex
	cron   *cron.Cron
}

// NewStore creates an empty Store. Call Load before serving.
func NewStore(loader schedule.Loader) *Store {
	return &Store{loader: loader}
}

// State returns the current snapshot. Before the first Load it is a
// not-ready state.
func (s *Store) State() schedule.State {
	if st := s.current.Load(); st != nil {
		return *st
	}
	return schedule.State{Err: schedule.ErrNotLoaded}
}

// Load performs the single startup load. A failure is stored as the
// current state and returned; it is not retried.
func (s *Store) Load(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	st := schedule.Load(ctx, s.loader)
	s.current.Store(&st)
	if st.Err != nil {
		appLog.Error("schedule load failed", st.Err)
		return st.Err
	}
	appLog.Info("schedule loaded", "sessions", len(st.Doc.Sessions()), "days", len(st.Doc.Days()))
	return nil
}

// Refresh loads a new snapshot. On failure the previous good snapshot
// keeps serving; a previous failed state is replaced only by success.
func (s *Store) Refresh(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	st := schedule.Load(ctx, s.loader)
	if st.Err != nil {
		prev := s.current.Load()
		if prev == nil || !prev.Ready() {
			s.current.Store(&st)
		}
		appLog.Error("schedule refresh failed; keeping previous snapshot", st.Err)
		return st.Err
	}
	s.current.Store(&st)
	appLog.Info("schedule refreshed", "sessions", len(st.Doc.Sessions()))
	return nil
}

// StartRefresh schedules Refresh with a standard five-field cron spec.
// An empty spec disables refresh and returns nil. Each run gets its own
// timeout-bounded context derived from ctx.
func (s *Store) StartRefresh(ctx context.Context, spec string, loc *time.Location, timeout time.Duration) error {
	if spec == "" {
		return nil
	}
	s.cronMu.Lock()
	defer s.cronMu.Unlock()
	if s.cron != nil {
		return errors.New("snapshot: refresh already started")
	}
	if loc == nil {
		loc = time.Local
	}

	c := cron.New(cron.WithLocation(loc))
	_, err := c.AddFunc(spec, func() {
		runCtx := ctx
		var cancel context.CancelFunc = func() {}
		if timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		defer cancel()
		_ = s.Refresh(runCtx)
	})
	if err != nil {
		return fmt.Errorf("snapshot: invalid refresh spec %q: %w", spec, err)
	}

	s.cron = c
	c.Start()
	appLog.Info("schedule refresh enabled", "spec", spec, "timezone", loc.String())

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts scheduled refreshes and waits for a running one to finish.
func (s *Store) Stop() {
	s.cronMu.Lock()
	c := s.cron
	s.cron = nil
	s.cronMu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
}
