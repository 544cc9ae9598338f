package wmediumd

//
// Event scheduler
//

import "container/heap"

// JobFunc is the callback fired when a [Job] reaches its deadline.
type JobFunc func(sched *Scheduler, job *Job)

// Job is a unit of scheduled work. The zero value is ready to be
// filled in and handed to [Scheduler.Add]. A job must not be added
// again while it is still pending.
type Job struct {
	// Deadline is the absolute simulated time, in µs, at which
	// the job fires.
	Deadline uint64

	// Fn is the callback to fire.
	Fn JobFunc

	// Data is an opaque payload for the callback.
	Data any

	// seq breaks deadline ties in registration order.
	seq uint64

	// index is the position in the heap, or -1 when not pending.
	index int

	// pending records whether the job is in the heap.
	pending bool
}

// Pending returns true while the job sits in the scheduler.
func (j *Job) Pending() bool {
	return j.pending
}

// Scheduler fires jobs in non-decreasing deadline order, breaking
// ties in registration order. It owns the simulated clock: time only
// advances when [Scheduler.Advance] or [Scheduler.RunUntil] runs jobs.
// The zero value is a valid scheduler positioned at time zero.
//
// The scheduler is deliberately single-threaded: it is owned by the
// event loop and callbacks run between loop iterations. Callbacks
// may add and remove jobs but must not re-enter Advance.
type Scheduler struct {
	// now is the current simulated time in µs.
	now uint64

	// jobs is the pending-job heap.
	jobs jobHeap

	// seq is the registration counter.
	seq uint64
}

// Now returns the current simulated time in µs.
func (s *Scheduler) Now() uint64 {
	return s.now
}

// Pending returns the number of pending jobs.
func (s *Scheduler) Pending() int {
	return len(s.jobs)
}

// Add registers a job. A deadline in the past fires at the next
// Advance without moving the clock backwards.
func (s *Scheduler) Add(job *Job) {
	s.seq++
	job.seq = s.seq
	job.pending = true
	heap.Push(&s.jobs, job)
}

// Remove cancels a pending job. Removing a job that is not pending
// is a no-op.
func (s *Scheduler) Remove(job *Job) {
	if !job.pending {
		return
	}
	heap.Remove(&s.jobs, job.index)
	job.pending = false
}

// NextDeadline returns the deadline of the earliest pending job.
func (s *Scheduler) NextDeadline() (uint64, bool) {
	if len(s.jobs) == 0 {
		return 0, false
	}
	return s.jobs[0].Deadline, true
}

// Advance fires the earliest pending job, moving the clock to its
// deadline. It returns false when no job is pending.
func (s *Scheduler) Advance() bool {
	if len(s.jobs) == 0 {
		return false
	}
	job := heap.Pop(&s.jobs).(*Job)
	job.pending = false
	if job.Deadline > s.now {
		s.now = job.Deadline
	}
	job.Fn(s, job)
	return true
}

// RunUntil fires every job with a deadline at or before t, then
// moves the clock to t.
func (s *Scheduler) RunUntil(t uint64) {
	for len(s.jobs) > 0 && s.jobs[0].Deadline <= t {
		s.Advance()
	}
	if t > s.now {
		s.now = t
	}
}

// jobHeap orders jobs by deadline, then registration order.
type jobHeap []*Job

func (h jobHeap) Len() int {
	return len(h)
}

func (h jobHeap) Less(i, j int) bool {
	if h[i].Deadline != h[j].Deadline {
		return h[i].Deadline < h[j].Deadline
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	job := x.(*Job)
	job.index = len(*h)
	*h = append(*h, job)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	job.index = -1
	*h = old[:n-1]
	return job
}
