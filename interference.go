package wmediumd

//
// Interference accumulator
//

import "math"

// interferenceLink is one directional entry of the interference map.
type interferenceLink struct {
	// durationUsec accumulates medium-busy time within the window.
	durationUsec uint64

	// signalDBm is the latest sub-CCA signal seen from the source.
	signalDBm int

	// probCol is the collision probability derived from the
	// previous window.
	probCol float64
}

// Interference couples concurrent transmissions into a shared
// collision-probability map. Every window boundary the accumulated
// busy time of each directional link becomes that link's collision
// probability for the next window. A nil *Interference is a valid,
// disabled accumulator.
type Interference struct {
	// n is the station count.
	n int

	// links is the N×N map indexed by src*N + dst.
	links []interferenceLink

	// job is the periodic window-reset job.
	job Job
}

// NewInterference creates an accumulator for n stations.
func NewInterference(n int) *Interference {
	return &Interference{
		n:     n,
		links: make([]interferenceLink, n*n),
	}
}

// Start registers the periodic window-reset job.
func (in *Interference) Start(sched *Scheduler) {
	if in == nil {
		return
	}
	in.job.Deadline = sched.Now() + InterferenceWindowUsec
	in.job.Fn = in.onWindow
	sched.Add(&in.job)
}

// onWindow rolls the window: busy time becomes collision probability
// and the accumulator resets.
func (in *Interference) onWindow(sched *Scheduler, job *Job) {
	for src := 0; src < in.n; src++ {
		for dst := 0; dst < in.n; dst++ {
			if src == dst {
				continue
			}
			link := &in.links[src*in.n+dst]
			link.probCol = float64(link.durationUsec) / InterferenceWindowUsec
			link.durationUsec = 0
		}
	}
	job.Deadline = sched.Now() + InterferenceWindowUsec
	sched.Add(job)
}

// Update records a transmission from src with the given effective
// signal. A signal at or above the CCA threshold is decodable and
// contributes nothing; anything quieter loads every link out of src
// with the frame's duration. The return value reports whether the
// frame contributed interference, in which case delivery is skipped.
func (in *Interference) Update(src *Station, signalDBm int, durationUsec uint64) bool {
	if in == nil {
		return false
	}
	if signalDBm >= CCAThresholdDBm {
		return false
	}
	for dst := 0; dst < in.n; dst++ {
		if dst == src.Index {
			continue
		}
		link := &in.links[src.Index*in.n+dst]
		link.durationUsec += durationUsec
		link.signalDBm = signalDBm
	}
	return true
}

// Offset returns the SNR penalty, in dB, that concurrent senders
// inflict on the src->dst link. Every station other than the two
// endpoints contributes its recorded signal with its collision
// probability; the summed power converts back to dB and totals at or
// below one milliwatt cost nothing.
func (in *Interference) Offset(src, dst *Station, rng MediumRNG) int {
	if in == nil {
		return 0
	}
	totalMW := 0.0
	for other := 0; other < in.n; other++ {
		if other == src.Index || other == dst.Index {
			continue
		}
		link := &in.links[other*in.n+dst.Index]
		if link.probCol <= 0 {
			continue
		}
		if rng.Float64() > link.probCol {
			continue
		}
		totalMW += dbmToMilliwatt(link.signalDBm)
	}
	if totalMW <= 1 {
		return 0
	}
	return int(math.Round(10 * math.Log10(totalMW)))
}

// dbmToMilliwatt converts a signal to power relative to the noise
// floor, clamped to the [0.001, 1000] decade range.
func dbmToMilliwatt(signalDBm int) float64 {
	delta := NoiseFloorDBm - signalDBm
	switch {
	case delta >= 31:
		return 0.001
	case delta <= -31:
		return 1000
	default:
		return math.Pow(10, -float64(delta)/10)
	}
}
