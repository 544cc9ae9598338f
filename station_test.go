package wmediumd

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestStationTableAddLookupRemove(t *testing.T) {
	table := &stationTable{}

	a := MAC{0x02, 0, 0, 0, 0, 1}
	b := MAC{0x02, 0, 0, 0, 0, 2}
	c := MAC{0x02, 0, 0, 0, 0, 3}

	for idx, addr := range []MAC{a, b, c} {
		sta, err := table.add(addr)
		if err != nil {
			t.Fatal(err)
		}
		if sta.Index != idx {
			t.Fatal("expected dense index", idx, "got", sta.Index)
		}
	}

	if _, err := table.add(b); !errors.Is(err, ErrStationExists) {
		t.Fatal("expected ErrStationExists, got", err)
	}

	if sta := table.lookupByAddr(b); sta == nil || sta.Addr != b {
		t.Fatal("lookup of b failed")
	}
	if sta := table.lookupByAddr(MAC{0xde, 0xad}); sta != nil {
		t.Fatal("lookup of unknown address must fail")
	}

	if err := table.remove(table.lookupByAddr(b)); err != nil {
		t.Fatal(err)
	}
	if table.len() != 2 {
		t.Fatal("expected 2 stations")
	}
	// indexes compact and stay dense
	for idx := 0; idx < table.len(); idx++ {
		if table.at(idx).Index != idx {
			t.Fatal("indexes not dense after removal")
		}
	}
}

func TestStationContentionWindows(t *testing.T) {
	sta := newStation(0, MAC{0x02, 0, 0, 0, 0, 1})

	expectMin := []uint32{3, 7, 15, 15}
	expectMax := []uint32{7, 15, 1023, 1023}
	for ac := 0; ac < NumACs; ac++ {
		if sta.queues[ac].cwMin != expectMin[ac] || sta.queues[ac].cwMax != expectMax[ac] {
			t.Fatalf("AC %d: cw %d/%d", ac, sta.queues[ac].cwMin, sta.queues[ac].cwMax)
		}
	}
}

func TestACQueueOps(t *testing.T) {
	q := &acQueue{}

	f1 := &Frame{Cookie: 1}
	f2 := &Frame{Cookie: 2}
	f3 := &Frame{Cookie: 3}
	f1.job.Deadline = 10
	f2.job.Deadline = 20
	f3.job.Deadline = 30

	if _, ok := q.lastDeadline(); ok {
		t.Fatal("empty queue must have no last deadline")
	}

	q.pushBack(f1)
	q.pushBack(f2)
	q.pushBack(f3)

	if d, ok := q.lastDeadline(); !ok || d != 30 {
		t.Fatal("expected last deadline 30")
	}

	q.remove(f2)
	var cookies []uint64
	for _, frame := range q.frames {
		cookies = append(cookies, frame.Cookie)
	}
	if diff := cmp.Diff([]uint64{1, 3}, cookies); diff != "" {
		t.Fatal(diff)
	}

	drained := q.drainMatching(func(frame *Frame) bool {
		return frame.Cookie == 1
	})
	if len(drained) != 1 || drained[0] != f1 {
		t.Fatal("drainMatching returned the wrong frames")
	}
	if len(q.frames) != 1 || q.frames[0] != f3 {
		t.Fatal("queue should only keep f3")
	}
}
