package scheduler

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// manualClock is an audio clock the test advances by hand.
type manualClock struct {
	mu  sync.Mutex
	now float64
}

func (c *manualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(seconds float64) {
	c.mu.Lock()
	c.now += seconds
	c.mu.Unlock()
}

// firingLog records callback invocations across goroutines.
type firingLog struct {
	mu      sync.Mutex
	entries []firing
}

type firing struct {
	label      string
	audioTime  float64
	visualTime float64
	beatIndex  int
}

func (l *firingLog) callback(label string) Callback {
	return func(audioTime, visualTime float64, beatIndex int) {
		l.mu.Lock()
		l.entries = append(l.entries, firing{label, audioTime, visualTime, beatIndex})
		l.mu.Unlock()
	}
}

func (l *firingLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *firingLog) snapshot() []firing {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]firing, len(l.entries))
	copy(out, l.entries)
	return out
}

func newTestScheduler(t *testing.T) (*Scheduler, *manualClock, *firingLog) {
	t.Helper()
	clock := &manualClock{}
	s, err := New(Config{Clock: clock, PollInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.CancelAll)
	return s, clock, &firingLog{}
}

func waitForFirings(t *testing.T, log *firingLog, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if log.len() >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d firings, got %d", n, log.len())
}

func TestNewRequiresClock(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New without clock succeeded, want error")
	}
}

func TestEventsFireInTimeOrder(t *testing.T) {
	s, _, log := newTestScheduler(t)

	// Registration order deliberately disagrees with time order. All
	// three sit inside the default lookahead window, so one pass fires
	// them and ordering falls to the time sort.
	s.ScheduleEvent(EventBeat, 0.05, log.callback("middle"))
	s.ScheduleEvent(EventBeat, 0.02, log.callback("first"))
	s.ScheduleEvent(EventBeat, 0.08, log.callback("last"))

	waitForFirings(t, log, 3)
	got := log.snapshot()
	want := []string{"first", "middle", "last"}
	for i, w := range want {
		if got[i].label != w {
			t.Errorf("firing %d = %q, want %q", i, got[i].label, w)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].audioTime < got[i-1].audioTime {
			t.Errorf("audio times out of order: %v before %v", got[i-1].audioTime, got[i].audioTime)
		}
	}
}

func TestSimultaneousEventsFireInRegistrationOrder(t *testing.T) {
	s, _, log := newTestScheduler(t)

	s.ScheduleEvent(EventClick, 0.03, log.callback("a"))
	s.ScheduleEvent(EventClick, 0.03, log.callback("b"))
	s.ScheduleEvent(EventClick, 0.03, log.callback("c"))

	waitForFirings(t, log, 3)
	got := log.snapshot()
	for i, w := range []string{"a", "b", "c"} {
		if got[i].label != w {
			t.Errorf("firing %d = %q, want %q", i, got[i].label, w)
		}
	}
}

func TestEventBeyondLookaheadWaits(t *testing.T) {
	s, clock, log := newTestScheduler(t)

	s.ScheduleEvent(EventBeat, 1.0, log.callback("far"))
	time.Sleep(20 * time.Millisecond)
	if log.len() != 0 {
		t.Fatalf("event beyond lookahead fired %d times", log.len())
	}
	if s.Pending() != 1 {
		t.Fatalf("Pending() = %d, want 1", s.Pending())
	}

	clock.Advance(0.95)
	waitForFirings(t, log, 1)
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d after firing, want 0", s.Pending())
	}
}

func TestCancelEvent(t *testing.T) {
	s, _, log := newTestScheduler(t)

	id := s.ScheduleEvent(EventBeat, 10, log.callback("never"))
	if !s.CancelEvent(id) {
		t.Fatal("CancelEvent = false, want true")
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d after cancel, want 0", s.Pending())
	}
	if s.CancelEvent(id) {
		t.Error("second CancelEvent = true, want false")
	}
	if s.CancelEvent(uuid.New()) {
		t.Error("CancelEvent(random id) = true, want false")
	}

	time.Sleep(10 * time.Millisecond)
	if log.len() != 0 {
		t.Error("cancelled event fired")
	}
}

func TestRepeatingChain(t *testing.T) {
	s, _, log := newTestScheduler(t)

	id := s.ScheduleRepeating(EventBeat, 0.05, log.callback("beat"), 0)
	if id == uuid.Nil {
		t.Fatal("ScheduleRepeating returned uuid.Nil")
	}

	// With the clock frozen at zero only the links inside the lookahead
	// window (0, 0.05, 0.10) can fire.
	waitForFirings(t, log, 3)
	time.Sleep(20 * time.Millisecond)
	if got := log.len(); got != 3 {
		t.Fatalf("firings = %d with frozen clock, want 3", got)
	}

	got := log.snapshot()
	for i, f := range got {
		if f.beatIndex != i {
			t.Errorf("firing %d beat index = %d, want %d", i, f.beatIndex, i)
		}
		if want := 0.05 * float64(i); math.Abs(f.audioTime-want) > 1e-9 {
			t.Errorf("firing %d audio time = %v, want %v", i, f.audioTime, want)
		}
	}
}

func TestCancelRepeatingChainIsAtomic(t *testing.T) {
	s, clock, log := newTestScheduler(t)

	id := s.ScheduleRepeating(EventBeat, 0.05, log.callback("beat"), 0)
	waitForFirings(t, log, 3)

	// The chain always keeps its next link scheduled, so the parent id
	// cancels the entire series in one synchronous call.
	if !s.CancelEvent(id) {
		t.Fatal("CancelEvent(chain) = false, want true")
	}
	if s.Pending() != 0 {
		t.Fatalf("Pending() = %d after chain cancel, want 0", s.Pending())
	}

	fired := log.len()
	clock.Advance(10)
	time.Sleep(20 * time.Millisecond)
	if got := log.len(); got != fired {
		t.Errorf("firings = %d after cancel, want %d", got, fired)
	}
}

func TestCancelAll(t *testing.T) {
	s, _, log := newTestScheduler(t)

	s.ScheduleEvent(EventBeat, 5, log.callback("a"))
	s.ScheduleRepeating(EventClick, 1, log.callback("b"), 5)
	if s.Pending() != 2 {
		t.Fatalf("Pending() = %d, want 2", s.Pending())
	}

	s.CancelAll()
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d after CancelAll, want 0", s.Pending())
	}
}

func TestVisualTimeLeadsAudioTime(t *testing.T) {
	s, clock, log := newTestScheduler(t)
	clock.Advance(10)

	s.ScheduleEvent(EventDownbeat, 0.05, log.callback("db"))
	waitForFirings(t, log, 1)

	f := log.snapshot()[0]
	comp := s.VisualCompensation().Seconds()
	if comp <= 0 {
		t.Fatalf("VisualCompensation() = %v, want positive desktop default", comp)
	}
	if math.Abs(f.audioTime-10.05) > 1e-9 {
		t.Errorf("audio time = %v, want 10.05", f.audioTime)
	}
	if math.Abs((f.audioTime-f.visualTime)-comp) > 1e-6 {
		t.Errorf("visual lead = %v, want %v", f.audioTime-f.visualTime, comp)
	}
}

func TestTuningClamps(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	s.SetLookaheadTime(5 * time.Millisecond)
	if got := s.LookaheadTime(); got != minLookahead {
		t.Errorf("LookaheadTime() = %v, want floor %v", got, minLookahead)
	}
	s.SetLookaheadTime(2 * time.Second)
	if got := s.LookaheadTime(); got != maxLookahead {
		t.Errorf("LookaheadTime() = %v, want ceiling %v", got, maxLookahead)
	}
	s.SetLookaheadTime(200 * time.Millisecond)
	if got := s.LookaheadTime(); got != 200*time.Millisecond {
		t.Errorf("LookaheadTime() = %v, want 200ms", got)
	}

	s.SetVisualCompensation(time.Second)
	if got := s.VisualCompensation(); got != maxVisualComp {
		t.Errorf("VisualCompensation() = %v, want ceiling %v", got, maxVisualComp)
	}
	s.SetVisualCompensation(0)
	if got := s.VisualCompensation(); got != 0 {
		t.Errorf("VisualCompensation() = %v, want 0", got)
	}
}

func TestCallbackPanicDoesNotKillLoop(t *testing.T) {
	clock := &manualClock{}
	var mu sync.Mutex
	var caught error

	s, err := New(Config{
		Clock:        clock,
		PollInterval: time.Millisecond,
		OnError: func(err error) {
			mu.Lock()
			caught = err
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.CancelAll)

	log := &firingLog{}
	s.ScheduleEvent(EventClick, 0, func(float64, float64, int) { panic("boom") })
	s.ScheduleEvent(EventClick, 0.01, log.callback("after"))

	waitForFirings(t, log, 1)
	mu.Lock()
	defer mu.Unlock()
	if caught == nil {
		t.Error("callback panic not reported")
	}
}

func TestNegativeDelayFiresImmediately(t *testing.T) {
	s, clock, log := newTestScheduler(t)
	clock.Advance(5)

	s.ScheduleEvent(EventBeat, -1, log.callback("now"))
	waitForFirings(t, log, 1)
	if got := log.snapshot()[0].audioTime; math.Abs(got-5) > 1e-9 {
		t.Errorf("audio time = %v, want clamped to now (5)", got)
	}
}

func TestCancelNilIDLeavesTableUntouched(t *testing.T) {
	s, _, log := newTestScheduler(t)

	s.ScheduleEvent(EventBeat, 5, log.callback("a"))
	s.ScheduleEvent(EventClick, 6, log.callback("b"))

	// A rejected ScheduleRepeating hands back uuid.Nil; feeding that
	// handle into CancelEvent must not touch unrelated one-shot events.
	bad := s.ScheduleRepeating(EventBeat, 0, log.callback("no"), 0)
	if s.CancelEvent(bad) {
		t.Error("CancelEvent(uuid.Nil) = true, want false")
	}
	if got := s.Pending(); got != 2 {
		t.Errorf("Pending() = %d after nil cancel, want 2", got)
	}
}

func TestZeroIntervalRepeatRejected(t *testing.T) {
	s, _, log := newTestScheduler(t)

	if id := s.ScheduleRepeating(EventBeat, 0, log.callback("no"), 0); id != uuid.Nil {
		t.Errorf("ScheduleRepeating(interval 0) = %v, want uuid.Nil", id)
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", s.Pending())
	}
}
