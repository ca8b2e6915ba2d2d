package chat

import (
	"sync"
	"time"
)

// Scheduler runs delayed conversation effects. Every effect re-checks the
// state it expects, so a scheduler may run effects early or not at all.
type Scheduler interface {
	Schedule(delay time.Duration, fn func())
}

// ImmediateScheduler runs every effect synchronously, ignoring the delay.
type ImmediateScheduler struct{}

func (ImmediateScheduler) Schedule(_ time.Duration, fn func()) { fn() }

// ManualScheduler queues effects until the caller steps through them.
type ManualScheduler struct {
	mu     sync.Mutex
	queue  []scheduled
	delays []time.Duration
}

type scheduled struct {
	delay time.Duration
	fn    func()
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) Schedule(delay time.Duration, fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, scheduled{delay: delay, fn: fn})
	m.delays = append(m.delays, delay)
	m.mu.Unlock()
}

// Pending returns the number of queued effects
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Delays returns every delay ever scheduled, in order
func (m *ManualScheduler) Delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.delays...)
}

// RunNext runs the oldest queued effect. It reports false when the queue is empty.
func (m *ManualScheduler) RunNext() bool {
	m.mu.Lock()
	if len(m.queue) == 0 {
		m.mu.Unlock()
		return false
	}
	next := m.queue[0]
	m.queue = m.queue[1:]
	m.mu.Unlock()

	next.fn()
	return true
}

// RunAll runs effects until the queue drains, including ones queued while running.
func (m *ManualScheduler) RunAll() int {
	n := 0
	for m.RunNext() {
		n++
	}
	return n
}

// TimerScheduler runs effects on real timers. At most one effect is pending;
// scheduling another runs the pending one first.
type TimerScheduler struct {
	mu      sync.Mutex
	seq     uint64
	timer   *time.Timer
	pending func()
	wg      sync.WaitGroup
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

func (s *TimerScheduler) Schedule(delay time.Duration, fn func()) {
	s.Flush()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := s.seq
	s.pending = fn
	s.wg.Add(1)
	s.timer = time.AfterFunc(delay, func() { s.fire(id) })
}

func (s *TimerScheduler) fire(id uint64) {
	s.mu.Lock()
	if id != s.seq || s.pending == nil {
		s.mu.Unlock()
		return
	}
	fn := s.take()
	s.mu.Unlock()

	defer s.wg.Done()
	fn()
}

// take clears the pending effect. Callers hold mu.
func (s *TimerScheduler) take() func() {
	fn := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return fn
}

// Flush runs the pending effect now, if any.
func (s *TimerScheduler) Flush() {
	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		return
	}
	fn := s.take()
	s.mu.Unlock()

	defer s.wg.Done()
	fn()
}

// Stop drops the pending effect without running it.
func (s *TimerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return
	}
	s.take()
	s.wg.Done()
}

// Wait blocks until no effect is pending or running.
func (s *TimerScheduler) Wait() {
	s.wg.Wait()
}
