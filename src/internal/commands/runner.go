package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maksimkurb/keen-dnsset/src/internal/log"
)

// RestartableRunner runs a function in a goroutine and restarts it with
// exponential backoff when it returns an error or panics. A nil return or
// cancellation of the context ends the runner.
type RestartableRunner struct {
	cfg     RunnerConfig
	runFunc func(ctx context.Context) error

	mu           sync.RWMutex
	running      bool
	cancel       context.CancelFunc
	done         chan struct{}
	lastError    error
	restartCount int
}

// RunnerConfig contains configuration for RestartableRunner.
type RunnerConfig struct {
	Name           string
	MaxRestarts    int           // 0 = unlimited restarts
	RestartBackoff time.Duration // Initial backoff (default: 1s)
	MaxBackoff     time.Duration // Max backoff (default: 30s)
	StopTimeout    time.Duration // How long Stop waits (default: 30s)
}

// NewRestartableRunner creates a new restartable runner.
func NewRestartableRunner(cfg RunnerConfig, runFunc func(ctx context.Context) error) *RestartableRunner {
	if cfg.RestartBackoff == 0 {
		cfg.RestartBackoff = time.Second
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = 30 * time.Second
	}
	return &RestartableRunner{cfg: cfg, runFunc: runFunc}
}

// Start starts the runner in a goroutine.
func (r *RestartableRunner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("%s is already running", r.cfg.Name)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true
	r.restartCount = 0
	r.lastError = nil

	go r.runLoop(runCtx, r.done)
	return nil
}

// Stop cancels the runner and waits for the current run to return.
func (r *RestartableRunner) Stop() error {
	r.mu.RLock()
	if !r.running {
		r.mu.RUnlock()
		return nil
	}
	cancel, done := r.cancel, r.done
	r.mu.RUnlock()

	cancel()

	select {
	case <-done:
		return nil
	case <-time.After(r.cfg.StopTimeout):
		return fmt.Errorf("%s: timeout waiting for stop", r.cfg.Name)
	}
}

// Done is closed when the runner has stopped for good.
func (r *RestartableRunner) Done() <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.done
}

// IsRunning returns true if the runner is currently running.
func (r *RestartableRunner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// LastError returns the last error that occurred.
func (r *RestartableRunner) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastError
}

// RestartCount returns the number of restarts that have occurred.
func (r *RestartableRunner) RestartCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.restartCount
}

func (r *RestartableRunner) runLoop(ctx context.Context, done chan struct{}) {
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		close(done)
	}()

	backoff := r.cfg.RestartBackoff
	for {
		err := r.runWithRecovery(ctx)

		r.mu.Lock()
		r.lastError = err
		r.mu.Unlock()

		if ctx.Err() != nil {
			log.Debugf("%s: stopped", r.cfg.Name)
			return
		}
		if err == nil {
			log.Infof("%s: exited cleanly", r.cfg.Name)
			return
		}

		r.mu.Lock()
		r.restartCount++
		restarts := r.restartCount
		r.mu.Unlock()

		if r.cfg.MaxRestarts > 0 && restarts >= r.cfg.MaxRestarts {
			log.Errorf("%s: max restarts (%d) reached, giving up. Last error: %v", r.cfg.Name, r.cfg.MaxRestarts, err)
			return
		}

		log.Errorf("%s: crashed with error: %v. Restarting in %v (restart #%d)", r.cfg.Name, err, backoff, restarts)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}
}

// runWithRecovery runs the function and recovers from panics.
func (r *RestartableRunner) runWithRecovery(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()
	return r.runFunc(ctx)
}
