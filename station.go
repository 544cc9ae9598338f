package wmediumd

//
// Station table and access-category queues
//

import "errors"

// Contention-window bounds per access category.
var acCWMin = [NumACs]uint32{3, 7, 15, 15}
var acCWMax = [NumACs]uint32{7, 15, 1023, 1023}

// DefaultTXPowerDBm is the transmit power assumed when the
// configuration does not set one.
const DefaultTXPowerDBm = 20

// Station is one virtual radio on the medium. Stations are created
// by the configuration loader and live until shutdown or an explicit
// removal; the index stays stable for the station's lifetime and
// matches the station's row and column in the link matrices.
type Station struct {
	// Index is the dense station index in [0, N).
	Index int

	// Addr is the virtual MAC used for station addressing.
	Addr MAC

	// HWAddr identifies the radio instance on the kernel side. It
	// is refreshed from each transmit message.
	HWAddr MAC

	// X and Y are the position in meters.
	X float64
	Y float64

	// DirX and DirY are the movement vector applied every move
	// interval, in meters.
	DirX float64
	DirY float64

	// TXPowerDBm is the transmit power.
	TXPowerDBm int

	// queues are the per-access-category FIFO queues.
	queues [NumACs]acQueue

	// client is the first client that sent a frame from this
	// station, kept until that client is removed, or nil.
	client *Client
}

// newStation creates a station with the contention windows wired in.
func newStation(index int, addr MAC) *Station {
	sta := &Station{
		Index:      index,
		Addr:       addr,
		HWAddr:     addr,
		TXPowerDBm: DefaultTXPowerDBm,
	}
	for ac := 0; ac < NumACs; ac++ {
		sta.queues[ac].cwMin = acCWMin[ac]
		sta.queues[ac].cwMax = acCWMax[ac]
	}
	return sta
}

// acQueue is a FIFO of frames awaiting delivery for one access
// category of one station.
type acQueue struct {
	// cwMin and cwMax bound the contention window.
	cwMin uint32
	cwMax uint32

	// frames holds the queued frames in deadline order.
	frames []*Frame
}

// pushBack appends a frame.
func (q *acQueue) pushBack(frame *Frame) {
	q.frames = append(q.frames, frame)
}

// lastDeadline returns the deadline of the most recently queued
// frame, if any.
func (q *acQueue) lastDeadline() (uint64, bool) {
	if len(q.frames) == 0 {
		return 0, false
	}
	return q.frames[len(q.frames)-1].job.Deadline, true
}

// remove unlinks a frame from the queue.
func (q *acQueue) remove(frame *Frame) {
	for idx, cur := range q.frames {
		if cur == frame {
			q.frames = append(q.frames[:idx], q.frames[idx+1:]...)
			return
		}
	}
}

// drainMatching removes and returns every frame the predicate accepts.
func (q *acQueue) drainMatching(pred func(*Frame) bool) []*Frame {
	var drained []*Frame
	kept := q.frames[:0]
	for _, frame := range q.frames {
		if pred(frame) {
			drained = append(drained, frame)
			continue
		}
		kept = append(kept, frame)
	}
	for idx := len(kept); idx < len(q.frames); idx++ {
		q.frames[idx] = nil
	}
	q.frames = kept
	return drained
}

// ErrStationExists indicates a duplicate station address.
var ErrStationExists = errors.New("wmediumd: station: address already registered")

// ErrStationNotFound indicates an unknown station.
var ErrStationNotFound = errors.New("wmediumd: station: not found")

// stationTable holds the stations. Lookups are linear: the medium
// carries tens of stations, low hundreds at the extreme.
type stationTable struct {
	stations []*Station
}

// add registers a station at the next dense index.
func (t *stationTable) add(addr MAC) (*Station, error) {
	if sta := t.lookupByAddr(addr); sta != nil {
		return nil, ErrStationExists
	}
	sta := newStation(len(t.stations), addr)
	t.stations = append(t.stations, sta)
	return sta, nil
}

// remove drops a station and compacts the indexes. The caller is
// responsible for rebuilding the matrices afterwards.
func (t *stationTable) remove(sta *Station) error {
	for idx, cur := range t.stations {
		if cur == sta {
			t.stations = append(t.stations[:idx], t.stations[idx+1:]...)
			for ; idx < len(t.stations); idx++ {
				t.stations[idx].Index = idx
			}
			return nil
		}
	}
	return ErrStationNotFound
}

// lookupByAddr finds a station by virtual MAC.
func (t *stationTable) lookupByAddr(addr MAC) *Station {
	for _, sta := range t.stations {
		if sta.Addr == addr {
			return sta
		}
	}
	return nil
}

// len returns the station count.
func (t *stationTable) len() int {
	return len(t.stations)
}

// at returns the station at a dense index.
func (t *stationTable) at(index int) *Station {
	return t.stations[index]
}
