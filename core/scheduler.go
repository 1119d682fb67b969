package core

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Scheduler is a sorted list of timers dispatched from the foreground loop
type Scheduler struct {
	clock Clock
	list  *Timer
}

// NewScheduler creates a scheduler reading time from clock
func NewScheduler(clock Clock) *Scheduler {
	return &Scheduler{clock: clock}
}

// timeBefore compares wrapping microsecond stamps
func timeBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// Schedule adds a timer to the schedule
func (s *Scheduler) Schedule(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	// Insert timer in sorted order
	// Implementation similar to Klipper's sched_add_timer
	s.insert(t)
}

// Cancel removes t if it is scheduled
func (s *Scheduler) Cancel(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for p := &s.list; *p != nil; p = &(*p).Next {
		if *p == t {
			*p = t.Next
			t.Next = nil
			return
		}
	}
}

// insert inserts a timer in sorted order by WakeTime
func (s *Scheduler) insert(t *Timer) {
	if s.list == nil || timeBefore(t.WakeTime, s.list.WakeTime) {
		t.Next = s.list
		s.list = t
		return
	}

	current := s.list
	for current.Next != nil && timeBefore(current.Next.WakeTime, t.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// pop removes the first timer if it is due
func (s *Scheduler) pop(now uint32) *Timer {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	t := s.list
	if t == nil || timeBefore(now, t.WakeTime) {
		return nil
	}
	s.list = t.Next
	t.Next = nil
	return t
}

// Dispatch runs every timer whose WakeTime has passed and returns how many
// ran. Handlers run with interrupts enabled and may mask them themselves.
func (s *Scheduler) Dispatch() int {
	now := s.clock.Micros()
	ran := 0
	for {
		timer := s.pop(now)
		if timer == nil {
			return ran
		}
		ran++
		if timer.Handler(timer) == SF_RESCHEDULE {
			s.Schedule(timer)
		}
	}
}

// Pending returns the number of scheduled timers
func (s *Scheduler) Pending() int {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	n := 0
	for t := s.list; t != nil; t = t.Next {
		n++
	}
	return n
}
