package backend

import (
	"errors"
	"sync"
	"time"

	"github.com/standardbeagle/tgrep/internal/config"
	"github.com/standardbeagle/tgrep/internal/debug"
	"github.com/standardbeagle/tgrep/internal/search"
)

// ErrNotInitialized is returned when State is used before Init.
var ErrNotInitialized = errors.New("backend state not initialized")

// State owns the process-wide resources shared by every invocation: the
// local engine's worker pool and the accelerator handle. Init and Shutdown
// each take effect once; later calls return the first result.
type State struct {
	initOnce     sync.Once
	shutdownOnce sync.Once
	initErr      error
	shutdownErr  error

	mu    sync.RWMutex
	local *Local
	accel *Accelerated
}

var (
	processState     *State
	processStateOnce sync.Once
)

// Process returns the lazily created process-wide State.
func Process() *State {
	processStateOnce.Do(func() {
		processState = &State{}
	})
	return processState
}

// Init builds the engine and accelerator from cfg and engine options.
func (s *State) Init(cfg *config.Config, opts search.Options) error {
	s.initOnce.Do(func() {
		engine, err := search.NewEngine(opts)
		if err != nil {
			s.initErr = err
			return
		}

		s.mu.Lock()
		s.local = NewLocal(engine)
		if cfg.Accelerator.Enabled {
			timeout := time.Duration(cfg.Accelerator.ProbeTimeoutMs) * time.Millisecond
			s.accel = NewAccelerated(cfg.Accelerator.Command, timeout)
		}
		s.mu.Unlock()
		debug.LogBackend("state initialized: threads=%d accelerator=%v\n", engine.Threads(), cfg.Accelerator.Enabled)
	})
	return s.initErr
}

// Local returns the local backend.
func (s *State) Local() (*Local, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.local == nil {
		return nil, ErrNotInitialized
	}
	return s.local, nil
}

// Accelerator returns the accelerator, or nil when it is disabled.
func (s *State) Accelerator() *Accelerated {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accel
}

// Shutdown releases the engine's worker pool.
func (s *State) Shutdown() error {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.local != nil {
			s.shutdownErr = s.local.engine.Close()
			s.local = nil
		}
		s.accel = nil
	})
	return s.shutdownErr
}
