package wmediumd

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSchedulerFiresInDeadlineOrder(t *testing.T) {
	sched := &Scheduler{}

	var fired []string
	mkjob := func(name string, deadline uint64) *Job {
		return &Job{
			Deadline: deadline,
			Fn: func(sched *Scheduler, job *Job) {
				fired = append(fired, name)
			},
		}
	}

	sched.Add(mkjob("c", 300))
	sched.Add(mkjob("a", 100))
	sched.Add(mkjob("b", 200))

	for sched.Advance() {
	}

	expect := []string{"a", "b", "c"}
	if diff := cmp.Diff(expect, fired); diff != "" {
		t.Fatal(diff)
	}
	if sched.Now() != 300 {
		t.Fatal("expected clock at 300, got", sched.Now())
	}
}

func TestSchedulerBreaksTiesInRegistrationOrder(t *testing.T) {
	sched := &Scheduler{}

	var fired []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		sched.Add(&Job{
			Deadline: 50,
			Fn: func(sched *Scheduler, job *Job) {
				fired = append(fired, name)
			},
		})
	}

	sched.RunUntil(50)

	expect := []string{"first", "second", "third"}
	if diff := cmp.Diff(expect, fired); diff != "" {
		t.Fatal(diff)
	}
}

func TestSchedulerRemove(t *testing.T) {
	sched := &Scheduler{}

	var fired int
	keep := &Job{Deadline: 10, Fn: func(sched *Scheduler, job *Job) { fired++ }}
	drop := &Job{Deadline: 5, Fn: func(sched *Scheduler, job *Job) { fired += 100 }}
	sched.Add(keep)
	sched.Add(drop)

	sched.Remove(drop)
	if drop.Pending() {
		t.Fatal("removed job still pending")
	}
	// removing twice must be harmless
	sched.Remove(drop)

	sched.RunUntil(20)
	if fired != 1 {
		t.Fatal("expected only the kept job to fire, got", fired)
	}
	if sched.Pending() != 0 {
		t.Fatal("expected no pending jobs")
	}
}

func TestSchedulerRunUntilStopsAtBoundary(t *testing.T) {
	sched := &Scheduler{}

	var fired []uint64
	for _, deadline := range []uint64{10, 20, 30} {
		sched.Add(&Job{
			Deadline: deadline,
			Fn: func(sched *Scheduler, job *Job) {
				fired = append(fired, job.Deadline)
			},
		})
	}

	sched.RunUntil(20)

	expect := []uint64{10, 20}
	if diff := cmp.Diff(expect, fired); diff != "" {
		t.Fatal(diff)
	}
	if sched.Now() != 20 {
		t.Fatal("expected clock at 20, got", sched.Now())
	}
	if sched.Pending() != 1 {
		t.Fatal("expected one pending job")
	}
}

func TestSchedulerPeriodicReschedule(t *testing.T) {
	sched := &Scheduler{}

	var fireTimes []uint64
	job := &Job{Deadline: 100}
	job.Fn = func(sched *Scheduler, job *Job) {
		fireTimes = append(fireTimes, sched.Now())
		if len(fireTimes) < 3 {
			job.Deadline = sched.Now() + 100
			sched.Add(job)
		}
	}
	sched.Add(job)

	sched.RunUntil(1000)

	expect := []uint64{100, 200, 300}
	if diff := cmp.Diff(expect, fireTimes); diff != "" {
		t.Fatal(diff)
	}
}
