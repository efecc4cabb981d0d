package autoscroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pipprompter/server/internal/domain"
)

var (
	ErrInvalidInterval = errors.New("tick interval must be positive")
	ErrInvalidStep     = errors.New("scroll step must be positive")
)

type iStateRepo interface {
	Get() domain.PresentationState
	MergeFunc(func(domain.PresentationState) domain.Patch) (domain.PresentationState, []domain.FieldError)
	Subscribe(buffer int) (string, <-chan domain.PresentationState, error)
	Unsubscribe(id string) error
}

type Config struct {
	Interval time.Duration
	// Step is the percentage advanced per tick for each unit of speed.
	Step float64
	// Loop wraps progress back to 0 on the tick after it reached 100.
	Loop bool
}

func (c Config) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidInterval
	}
	if c.Step <= 0 {
		return ErrInvalidStep
	}

	return nil
}

// Advance computes the next scroll progress: speed*step percent further,
// clamped to 100. With loop set, a progress already at 100 restarts at 0.
func Advance(current, speed, step float64, loop bool) float64 {
	if loop && current >= domain.MaxScrollProgress {
		return domain.MinScrollProgress
	}

	return domain.ClampScrollProgress(current + speed*step)
}

// Driver advances scroll progress while auto-scroll is on. It has two
// states: stopped (no timer) and running (exactly one timer goroutine).
type Driver struct {
	stateRepo iStateRepo
	cfg       Config
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	speed  float64

	timers atomic.Int32
	ticks  atomic.Uint64
}

func NewDriver(stateRepo iStateRepo, cfg Config, logger *slog.Logger) *Driver {
	return &Driver{
		stateRepo: stateRepo,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run follows state changes until ctx is done, then stops the timer.
func (d *Driver) Run(ctx context.Context) error {
	id, snapshots, err := d.stateRepo.Subscribe(1)
	if err != nil {
		return fmt.Errorf("failed to subscribe to state: %w", err)
	}
	defer d.stateRepo.Unsubscribe(id)
	defer d.Stop()

	d.Observe(d.stateRepo.Get())
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-snapshots:
			if !ok {
				return nil
			}
			d.Observe(s)
		}
	}
}

// Observe performs the transition implied by a snapshot.
func (d *Driver) Observe(s domain.PresentationState) {
	d.mu.Lock()
	defer d.mu.Unlock()

	running := d.cancel != nil
	switch {
	case !s.AutoScroll:
		if running {
			d.stopLocked()
			d.logger.Info("autoscroll stopped")
		}
	case !running:
		d.startLocked(s.Speed)
	case s.Speed != d.speed:
		d.stopLocked()
		d.startLocked(s.Speed)
	}
}

// Stop cancels the timer. Stopping a stopped driver is a no-op.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
}

func (d *Driver) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.cancel != nil
}

// ActiveTimers reports how many timer goroutines are alive.
func (d *Driver) ActiveTimers() int {
	return int(d.timers.Load())
}

func (d *Driver) Ticks() uint64 {
	return d.ticks.Load()
}

func (d *Driver) startLocked(speed float64) {
	if err := d.cfg.Validate(); err != nil {
		d.logger.Error("failed to start autoscroll timer", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done
	d.speed = speed

	d.timers.Add(1)
	go d.loop(ctx, done)

	d.logger.Info("autoscroll started", "speed", speed, "interval", d.cfg.Interval)
}

func (d *Driver) stopLocked() {
	if d.cancel == nil {
		return
	}

	d.cancel()
	<-d.done
	d.cancel = nil
	d.done = nil
}

func (d *Driver) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer d.timers.Add(-1)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

func (d *Driver) tick() {
	state, _ := d.stateRepo.MergeFunc(func(current domain.PresentationState) domain.Patch {
		if !current.AutoScroll {
			return nil
		}

		return domain.Patch{
			domain.FieldScrollProgress: Advance(current.ScrollProgress, current.Speed, d.cfg.Step, d.cfg.Loop),
		}
	})
	d.ticks.Add(1)

	d.logger.Debug("autoscroll tick", "scroll_progress", state.ScrollProgress, "revision", state.Revision)
}
