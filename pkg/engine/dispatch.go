package engine

import (
	"sync"
	"sync/atomic"
)

// DispatchMode selects how per-rule work queues are executed.
type DispatchMode string

const (
	// DispatchDedicated gives every active rule its own goroutine. A
	// slow rule only delays its own future firings.
	DispatchDedicated DispatchMode = "dedicated"

	// DispatchPooled runs all rules on a shared worker pool with
	// per-rule serial chaining. Cheaper at scale; a saturated pool can
	// delay unrelated rules.
	DispatchPooled DispatchMode = "pooled"
)

const (
	defaultQueueSize = 64
	defaultPoolSize  = 8
)

// DispatchConfig configures the trigger dispatcher.
type DispatchConfig struct {
	// Mode selects dedicated-goroutine-per-rule or pooled execution.
	Mode DispatchMode `json:"mode" yaml:"mode"`

	// QueueSize bounds each rule's pending trigger queue.
	QueueSize int `json:"queueSize" yaml:"queueSize"`

	// PoolSize is the worker count for pooled mode.
	PoolSize int `json:"poolSize" yaml:"poolSize"`
}

// dispatcher hands out per-rule sequencers. Whatever the mode, a
// sequencer processes its submitted work strictly one item at a time in
// submission order, and different sequencers run independently.
type dispatcher interface {
	// sequencer creates the execution context for one rule.
	sequencer() sequencer

	// shutdown stops shared workers, if any.
	shutdown()
}

// sequencer is one rule's FIFO execution context.
type sequencer interface {
	// submit enqueues work without blocking. It reports false when the
	// queue is full or the sequencer is disposed.
	submit(task func()) bool

	// running reports whether submitted work is still pending or
	// executing.
	running() bool

	// dispose releases the execution context. Queued work is abandoned;
	// in-flight work finishes. Idempotent.
	dispose()
}

// newDispatcher builds a dispatcher from configuration, applying
// defaults for zero values.
func newDispatcher(cfg DispatchConfig) dispatcher {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	switch cfg.Mode {
	case DispatchPooled:
		poolSize := cfg.PoolSize
		if poolSize <= 0 {
			poolSize = defaultPoolSize
		}
		return newPooledDispatcher(poolSize, queueSize)
	default:
		return &dedicatedDispatcher{queueSize: queueSize}
	}
}

// dedicatedDispatcher gives each sequencer its own goroutine.
type dedicatedDispatcher struct {
	queueSize int
}

func (d *dedicatedDispatcher) sequencer() sequencer {
	s := &dedicatedSequencer{
		tasks: make(chan func(), d.queueSize),
		quit:  make(chan struct{}),
	}
	go s.loop()
	return s
}

func (d *dedicatedDispatcher) shutdown() {}

type dedicatedSequencer struct {
	tasks   chan func()
	quit    chan struct{}
	pending atomic.Int64
	once    sync.Once
}

func (s *dedicatedSequencer) loop() {
	for {
		select {
		case <-s.quit:
			return
		case task := <-s.tasks:
			task()
			s.pending.Add(-1)
		}
	}
}

func (s *dedicatedSequencer) submit(task func()) bool {
	select {
	case <-s.quit:
		return false
	default:
	}
	select {
	case s.tasks <- task:
		s.pending.Add(1)
		return true
	default:
		return false
	}
}

func (s *dedicatedSequencer) running() bool {
	return s.pending.Load() > 0
}

func (s *dedicatedSequencer) dispose() {
	s.once.Do(func() {
		close(s.quit)
		// Queued tasks are abandoned; an in-flight task may still
		// decrement past zero, which running() treats as not running.
		s.pending.Store(0)
	})
}

// pooledDispatcher shares a fixed worker pool across all sequencers.
// Each sequencer chains its queued work so at most one of its tasks is
// on the pool at a time, preserving per-rule serialization. The ready
// list grows as needed; it holds at most one drain chain per active
// sequencer, so submitting a chain never blocks the trigger that fired.
type pooledDispatcher struct {
	mu        sync.Mutex
	cond      *sync.Cond
	ready     []func()
	stopped   bool
	queueSize int
}

func newPooledDispatcher(poolSize, queueSize int) *pooledDispatcher {
	d := &pooledDispatcher{queueSize: queueSize}
	d.cond = sync.NewCond(&d.mu)
	for i := 0; i < poolSize; i++ {
		go d.worker()
	}
	return d
}

func (d *pooledDispatcher) worker() {
	for {
		d.mu.Lock()
		for len(d.ready) == 0 && !d.stopped {
			d.cond.Wait()
		}
		if d.stopped {
			d.mu.Unlock()
			return
		}
		task := d.ready[0]
		d.ready = d.ready[1:]
		d.mu.Unlock()

		task()
	}
}

// enqueue hands a drain chain to the pool. It never blocks; it reports
// false once the dispatcher is shut down.
func (d *pooledDispatcher) enqueue(task func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	d.ready = append(d.ready, task)
	d.cond.Signal()
	return true
}

func (d *pooledDispatcher) sequencer() sequencer {
	return &pooledSequencer{d: d}
}

func (d *pooledDispatcher) shutdown() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.cond.Broadcast()
}

type pooledSequencer struct {
	d        *pooledDispatcher
	mu       sync.Mutex
	queue    []func()
	active   bool
	disposed bool
	inflight int
}

func (s *pooledSequencer) submit(task func()) bool {
	s.mu.Lock()
	if s.disposed || len(s.queue) >= s.d.queueSize {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, task)
	s.inflight++
	schedule := !s.active
	if schedule {
		s.active = true
	}
	s.mu.Unlock()

	if schedule && !s.d.enqueue(s.drain) {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
		return false
	}
	return true
}

// drain runs the sequencer's queued tasks one at a time on the pool
// worker that picked it up, then releases the chain.
func (s *pooledSequencer) drain() {
	for {
		s.mu.Lock()
		if s.disposed || len(s.queue) == 0 {
			s.active = false
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		task()

		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
	}
}

func (s *pooledSequencer) running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

func (s *pooledSequencer) dispose() {
	s.mu.Lock()
	s.disposed = true
	dropped := len(s.queue)
	s.queue = nil
	s.inflight -= dropped
	s.mu.Unlock()
}
