// Package poll reads one tag on a fixed interval and keeps a short
// history ring.
package poll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tagscan/logging"
	"tagscan/session"
)

const (
	// DefaultInterval between reads.
	DefaultInterval = 5 * time.Second

	// DefaultHistoryDepth is how many samples the ring retains.
	DefaultHistoryDepth = 10
)

// Sample is one poll result. Exactly one of Value and Err is set.
type Sample struct {
	Time  time.Time
	Value *session.Value
	Err   error
}

// Poller reads a single tag path on a fixed interval. A Poller runs at
// most once: after Stop (or context cancellation) it cannot be
// restarted.
type Poller struct {
	sess     session.Session
	path     string
	interval time.Duration
	depth    int

	mu      sync.Mutex
	ring    []Sample
	subs    []func(Sample)
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option adjusts a Poller.
type Option func(*Poller)

// WithInterval sets the read interval. Non-positive values keep the
// default.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithHistoryDepth sets the ring capacity. Non-positive values keep
// the default.
func WithHistoryDepth(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.depth = n
		}
	}
}

// New creates a poller for one tag path on an open session. The path
// should already be canonical; the poller reads it verbatim.
func New(sess session.Session, path string, opts ...Option) *Poller {
	p := &Poller{
		sess:     sess,
		path:     path,
		interval: DefaultInterval,
		depth:    DefaultHistoryDepth,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Path returns the polled tag path.
func (p *Poller) Path() string {
	return p.path
}

// Subscribe registers a callback invoked on the poll goroutine for
// every sample, errors included. Must be called before Start.
func (p *Poller) Subscribe(fn func(Sample)) {
	if p == nil || fn == nil {
		return
	}
	p.mu.Lock()
	p.subs = append(p.subs, fn)
	p.mu.Unlock()
}

// Start begins polling: one read immediately, then one per tick. It
// returns an error if the poller already ran.
func (p *Poller) Start(ctx context.Context) error {
	if p == nil || p.sess == nil {
		return fmt.Errorf("Start: no session")
	}

	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return fmt.Errorf("Start: poller for %s already ran", p.path)
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	logging.DebugLog("poll", "polling %s every %v", p.path, p.interval)

	go p.run(ctx)

	return nil
}

// Stop ends polling and waits for the poll goroutine to exit. The
// poller cannot be started again.
func (p *Poller) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	started := p.started
	p.stopped = true
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()

	if started {
		<-p.done
	}
}

// Done is closed when the poll goroutine has exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// History returns the retained samples, oldest first. The returned
// slice is a copy.
func (p *Poller) History() []Sample {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Sample, len(p.ring))
	copy(out, p.ring)
	return out
}

func (p *Poller) run(ctx context.Context) {
	defer func() {
		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()
		close(p.done)
		logging.DebugLog("poll", "stopped polling %s", p.path)
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	value, err := p.sess.Read(ctx, p.path)
	sample := Sample{Time: time.Now(), Value: value, Err: err}
	if err != nil {
		sample.Value = nil
		logging.DebugLog("poll", "read %s failed: %v", p.path, err)
	}

	p.mu.Lock()
	p.ring = append(p.ring, sample)
	if len(p.ring) > p.depth {
		p.ring = p.ring[len(p.ring)-p.depth:]
	}
	subs := p.subs
	p.mu.Unlock()

	for _, fn := range subs {
		fn(sample)
	}
}
