// Package scheduler delivers rhythm callbacks with bounded jitter. Events
// are scheduled against the authoritative audio clock, slightly ahead of
// their due time, so a short-interval polling loop has margin to fire
// them punctually despite timer jitter. Visual times lead audio times by
// a compensation offset, decoupling perceived sync from engine latency.
package scheduler

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock is the authoritative audio time source in seconds. Satisfied by
// the engine; the scheduler never reads the wall clock for event timing.
type Clock interface {
	Now() float64
}

// EventType labels a rhythm event.
type EventType string

const (
	EventClick       EventType = "click"
	EventBeat        EventType = "beat"
	EventDownbeat    EventType = "downbeat"
	EventSubdivision EventType = "subdivision"
)

// Callback receives the event's audio time, its compensated visual time,
// and the beat index (always 0 for one-shot events).
type Callback func(audioTime, visualTime float64, beatIndex int)

// defaultPollInterval is the rescan period of the firing loop.
const defaultPollInterval = 25 * time.Millisecond

// Config holds scheduler construction options.
type Config struct {
	Clock        Clock         // required
	Calibration  Calibration   // zero value selects desktop defaults
	PollInterval time.Duration // default 25ms
	OnError      func(error)   // receives callback panics; optional
}

type event struct {
	id         uuid.UUID
	parent     uuid.UUID // non-nil UUID groups a repeating chain
	typ        EventType
	audioTime  float64
	visualTime float64
	callback   Callback
	interval   float64 // seconds; > 0 marks a repeating event
	beatIndex  int
	seq        uint64
}

// Scheduler owns the event table and the polling loop. The loop runs
// only while events are pending; it starts on the first schedule and
// stops itself when the table drains.
//
// Callbacks run on the scheduler goroutine while the event pass holds
// the scheduler's lock; that is what makes CancelEvent synchronous: a
// cancelled event cannot fire once CancelEvent returns. The flip side:
// callbacks must not call back into the scheduler.
type Scheduler struct {
	mu         sync.Mutex
	clock      Clock
	events     map[uuid.UUID]*event
	seq        uint64
	lookahead  float64 // seconds
	visualComp float64 // seconds
	latency    float64 // seconds, diagnostic only
	class      DeviceClass
	poll       time.Duration
	running    bool
	onError    func(error)
}

// New creates a scheduler over the given clock.
func New(config Config) (*Scheduler, error) {
	if config.Clock == nil {
		return nil, fmt.Errorf("scheduler requires a clock")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}
	cal := config.Calibration
	if cal == (Calibration{}) {
		cal = CalibrationFor(DeviceClassDesktop)
	}
	cal = cal.normalized()

	return &Scheduler{
		clock:      config.Clock,
		events:     make(map[uuid.UUID]*event),
		lookahead:  cal.Lookahead.Seconds(),
		visualComp: cal.VisualCompensation.Seconds(),
		latency:    cal.EstimatedLatency.Seconds(),
		class:      cal.Class,
		poll:       config.PollInterval,
		onError:    config.OnError,
	}, nil
}

// ScheduleEvent schedules a one-shot event delay seconds from now on
// the audio clock and returns its id.
func (s *Scheduler) ScheduleEvent(typ EventType, delay float64, cb Callback) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := s.newEventLocked(typ, delay, cb)
	s.events[ev.id] = ev
	s.ensureLoopLocked()
	return ev.id
}

// ScheduleRepeating schedules a self-rescheduling chain of events at a
// fixed interval, starting startDelay seconds from now. The returned id
// is the chain's parent id; CancelEvent with it cancels the whole series
// atomically. Beat indices increase by one per firing.
func (s *Scheduler) ScheduleRepeating(typ EventType, interval float64, cb Callback, startDelay float64) uuid.UUID {
	if interval <= 0 {
		return uuid.Nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ev := s.newEventLocked(typ, startDelay, cb)
	ev.parent = ev.id
	ev.interval = interval
	s.events[ev.id] = ev
	s.ensureLoopLocked()
	return ev.id
}

// CancelEvent removes the event with the given id, or an entire
// repeating chain when id is a parent id. Cancellation is synchronous:
// once it returns, the event will not fire. Must not be called from
// inside an event callback.
func (s *Scheduler) CancelEvent(id uuid.UUID) bool {
	// One-shot events carry uuid.Nil as their parent, and uuid.Nil is
	// also what a rejected ScheduleRepeating returns. Matching it here
	// would wipe every one-shot event in the table.
	if id == uuid.Nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := false
	for key, ev := range s.events {
		if ev.id == id || ev.parent == id {
			delete(s.events, key)
			cancelled = true
		}
	}
	return cancelled
}

// CancelAll clears the event table; the polling loop stops on its next
// pass.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[uuid.UUID]*event)
}

// Pending returns the number of scheduled events.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// SetLookaheadTime retunes the lookahead window, clamped to safe bounds.
func (s *Scheduler) SetLookaheadTime(d time.Duration) {
	d = clampDuration(d, minLookahead, maxLookahead)
	s.mu.Lock()
	s.lookahead = d.Seconds()
	s.mu.Unlock()
}

// LookaheadTime returns the current lookahead window.
func (s *Scheduler) LookaheadTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.lookahead * float64(time.Second))
}

// SetVisualCompensation retunes the visual lead, clamped to safe bounds.
func (s *Scheduler) SetVisualCompensation(d time.Duration) {
	d = clampDuration(d, 0, maxVisualComp)
	s.mu.Lock()
	s.visualComp = d.Seconds()
	s.mu.Unlock()
}

// VisualCompensation returns the current visual lead.
func (s *Scheduler) VisualCompensation() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(s.visualComp * float64(time.Second))
}

// Calibration returns the scheduler's live calibration values.
func (s *Scheduler) Calibration() Calibration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Calibration{
		Class:              s.class,
		EstimatedLatency:   time.Duration(s.latency * float64(time.Second)),
		Lookahead:          time.Duration(s.lookahead * float64(time.Second)),
		VisualCompensation: time.Duration(s.visualComp * float64(time.Second)),
	}
}

func (s *Scheduler) newEventLocked(typ EventType, delay float64, cb Callback) *event {
	if delay < 0 {
		delay = 0
	}
	s.seq++
	audioTime := s.clock.Now() + delay
	return &event{
		id:         uuid.New(),
		typ:        typ,
		audioTime:  audioTime,
		visualTime: audioTime - s.visualComp,
		callback:   cb,
		seq:        s.seq,
	}
}

func (s *Scheduler) ensureLoopLocked() {
	if s.running {
		return
	}
	s.running = true
	go s.loop()
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for range ticker.C {
		if !s.pass() {
			return
		}
	}
}

// pass fires every event whose audio time has entered the lookahead
// window, in non-decreasing audioTime order (registration order breaks
// ties). It reads the clock once at entry, which keeps a pass cheap and
// its firing decision consistent. Returns false when the table drained
// and the loop should stop.
func (s *Scheduler) pass() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	horizon := now + s.lookahead

	var due []*event
	for _, ev := range s.events {
		if ev.audioTime <= horizon {
			due = append(due, ev)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].audioTime != due[j].audioTime {
			return due[i].audioTime < due[j].audioTime
		}
		return due[i].seq < due[j].seq
	})

	for _, ev := range due {
		delete(s.events, ev.id)
		if ev.interval > 0 {
			s.rescheduleLocked(ev)
		}
		s.fire(ev)
	}

	if len(s.events) == 0 {
		s.running = false
		return false
	}
	return true
}

// rescheduleLocked inserts the next link of a repeating chain before the
// current one fires, so cancellation from outside always has a live
// handle on the series.
func (s *Scheduler) rescheduleLocked(ev *event) {
	s.seq++
	next := &event{
		id:         uuid.New(),
		parent:     ev.parent,
		typ:        ev.typ,
		audioTime:  ev.audioTime + ev.interval,
		visualTime: ev.audioTime + ev.interval - s.visualComp,
		callback:   ev.callback,
		interval:   ev.interval,
		beatIndex:  ev.beatIndex + 1,
		seq:        s.seq,
	}
	s.events[next.id] = next
}

func (s *Scheduler) fire(ev *event) {
	defer func() {
		if r := recover(); r != nil && s.onError != nil {
			s.onError(fmt.Errorf("scheduler callback panic (%s): %v", ev.typ, r))
		}
	}()
	ev.callback(ev.audioTime, ev.visualTime, ev.beatIndex)
}
