package wmediumd

//
// The medium: frame scheduling pipeline and event loop
//

import (
	"context"
	"math/rand"
	"time"
)

// MediumRNG is a [Medium] view of a [rand.Rand] abstracted for testability.
type MediumRNG interface {
	// Float64 is like [rand.Rand.Float64].
	Float64() float64
}

var _ MediumRNG = &rand.Rand{}

// FadingFunc perturbs the received SNR of a link by an integer dB
// amount. The default returns zero.
type FadingFunc func(src, dst *Station) int

// MediumConfig contains config for creating a [Medium]. Make sure
// you initialize the fields marked as MANDATORY.
type MediumConfig struct {
	// Logger is the MANDATORY logger.
	Logger Logger

	// Model is the MANDATORY link model.
	Model LinkModel

	// Interference is the OPTIONAL interference accumulator.
	Interference *Interference

	// RNG is an OPTIONAL random number generator, used for
	// writing tests.
	RNG MediumRNG

	// Fading is the OPTIONAL fading hook.
	Fading FadingFunc

	// Metrics is the OPTIONAL data-plane metrics sink.
	Metrics *Metrics

	// Capture is the OPTIONAL PCAP capture sink.
	Capture *Capture
}

// Medium simulates the wireless medium for a set of stations. All of
// its state belongs to a single event-loop goroutine: transports post
// work through [Medium.Post] and every mutation happens between loop
// iterations. The zero value is invalid; use [NewMedium].
type Medium struct {
	// log is the logger.
	log Logger

	// sched is the event scheduler.
	sched *Scheduler

	// stations is the station table.
	stations stationTable

	// model is the link model.
	model LinkModel

	// intf is the interference accumulator, possibly nil.
	intf *Interference

	// rng drives error and collision draws.
	rng MediumRNG

	// fading is the per-link signal perturbation hook.
	fading FadingFunc

	// clients is the registered-client list.
	clients []*Client

	// metrics is the data-plane metrics sink, possibly nil.
	metrics *Metrics

	// capture is the PCAP sink, possibly nil.
	capture *Capture

	// pathLoss is set when the link model derives SNR from
	// positions, enabling the movement job.
	pathLoss *PathLossModel

	// moveJob advances moving stations.
	moveJob Job

	// statsJob logs the periodic airtime summary.
	statsJob Job

	// events carries work posted by transport goroutines.
	events chan func()
}

// NewMedium creates a [Medium].
func NewMedium(cfg *MediumConfig) *Medium {
	m := &Medium{
		log:     cfg.Logger,
		sched:   &Scheduler{},
		model:   cfg.Model,
		intf:    cfg.Interference,
		rng:     cfg.RNG,
		fading:  cfg.Fading,
		metrics: cfg.Metrics,
		capture: cfg.Capture,
		events:  make(chan func(), 128),
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if m.fading == nil {
		m.fading = func(src, dst *Station) int { return 0 }
	}
	if pl, ok := cfg.Model.(*PathLossModel); ok {
		m.pathLoss = pl
	}
	m.intf.Start(m.sched)
	m.maybeStartMovement()
	return m
}

// Scheduler exposes the medium's scheduler.
func (m *Medium) Scheduler() *Scheduler {
	return m.sched
}

// AddStation registers a station.
func (m *Medium) AddStation(addr MAC) (*Station, error) {
	return m.stations.add(addr)
}

// StationByAddr finds a station by virtual MAC.
func (m *Medium) StationByAddr(addr MAC) *Station {
	return m.stations.lookupByAddr(addr)
}

// Stations returns the station list in index order.
func (m *Medium) Stations() []*Station {
	return m.stations.stations
}

// maybeStartMovement registers the periodic movement job when the
// path-loss model is active, whether or not any station moves.
func (m *Medium) maybeStartMovement() {
	if m.pathLoss == nil {
		return
	}
	m.moveJob.Deadline = m.sched.Now() + MoveIntervalUsec
	m.moveJob.Fn = m.onMoveInterval
	m.sched.Add(&m.moveJob)
}

// onMoveInterval advances moving stations and recomputes the
// derived SNR matrix.
func (m *Medium) onMoveInterval(sched *Scheduler, job *Job) {
	moved := false
	for _, sta := range m.stations.stations {
		if sta.DirX == 0 && sta.DirY == 0 {
			continue
		}
		sta.X += sta.DirX
		sta.Y += sta.DirY
		moved = true
	}
	if moved {
		m.pathLoss.Recompute(m.stations.stations)
	}
	job.Deadline = sched.Now() + MoveIntervalUsec
	sched.Add(job)
}

// EnqueueFrame runs the scheduling pipeline for a freshly ingested
// frame: classify it into an access category, simulate the multi-rate
// retry chain, compute the delivery deadline, and register the
// delivery job.
func (m *Medium) EnqueueFrame(frame *Frame, hdr *Dot11Header) {
	src := frame.Sender
	frame.ac = hdr.AccessCategory(frame.Payload)

	// resolve the destination station for unicast frames
	var dst *Station
	if !frame.Dest.Multicast() {
		dst = m.stations.lookupByAddr(frame.Dest)
	}

	// receive-side SNR; multicast defers per-receiver evaluation
	// to delivery and reports the default
	snr := SNRDefault
	if dst != nil {
		snr = m.model.Signal(src, dst) - NoiseFloorDBm
		snr -= m.intf.Offset(src, dst, m.rng)
		snr += m.fading(src, dst)
	}
	frame.Signal = snr + NoiseFloorDBm

	noAck := !hdr.IsData() || frame.Dest.Multicast() || frame.Flags&TXCtlNoAck != 0
	sendTime := m.simulateMRR(frame, snr, dst, noAck)

	// serialize airtime across the medium: the frame starts after
	// the last frame of every queue at least as important as its
	// own access category, on any station
	start := m.sched.Now()
	for _, sta := range m.stations.stations {
		for ac := 0; ac <= frame.ac; ac++ {
			if d, ok := sta.queues[ac].lastDeadline(); ok && d > start {
				start = d
			}
		}
	}

	frame.job.Deadline = start + sendTime
	frame.job.Fn = m.deliverJob
	frame.job.Data = frame
	src.queues[frame.ac].pushBack(frame)
	m.sched.Add(&frame.job)
	m.metrics.frameEnqueued(frame)

	m.log.Debugf("wmediumd: enqueue %s -> %s ac=%d deadline=%d",
		src.Addr.String(), frame.Dest.String(), frame.ac, frame.job.Deadline)
}

// simulateMRR walks the multi-rate retry chain, accumulating the time
// the transmission occupies the medium and deciding whether the frame
// ends up acknowledged. On success the rate list is truncated to the
// attempts actually used.
func (m *Medium) simulateMRR(frame *Frame, snr int, dst *Station, noAck bool) uint64 {
	q := &frame.Sender.queues[frame.ac]
	cw := q.cwMin
	frameLen := len(frame.Payload)

	// in fixed-random mode the choice is drawn once and reused
	// across every attempt
	fixed := m.model.FixedRandom()
	var choice float64
	if fixed {
		choice = m.rng.Float64()
	}

	// multicast with an empty rate list is acknowledged with zero
	// duration; unicast with an empty list is delivered unacked
	if len(frame.TXRates) == 0 || frame.TXRates[0].Idx < 0 {
		if frame.Dest.Multicast() {
			frame.Flags |= TXStatAck
		}
		return 0
	}

	var sendTime uint64
	for i := 0; i < len(frame.TXRates); i++ {
		entry := frame.TXRates[i]
		if entry.Idx < 0 || entry.Count <= 0 {
			break
		}
		rate := RateIdxToRate(int(entry.Idx), frame.Freq)
		errProb := m.model.ErrorProb(snr, int(entry.Idx), frame.Freq, frameLen, frame.Sender, dst)
		for j := int8(0); j < entry.Count; j++ {
			frame.Duration = PktDurationUsec(frameLen, rate)
			sendTime += difsUsec + frame.Duration
			if noAck {
				frame.Flags |= TXStatAck
				m.truncateRates(frame, i, j)
				return sendTime
			}
			if j > 0 {
				sendTime += uint64(cw) * slotTimeUsec / 2
				cw = min(q.cwMax, 2*cw+1)
			}
			sendTime += ackDurationUsec(frame.Freq)
			if !fixed {
				choice = m.rng.Float64()
			}
			if choice > errProb {
				frame.Flags |= TXStatAck
				m.truncateRates(frame, i, j)
				return sendTime
			}
		}
	}
	return sendTime
}

// truncateRates records that the attempt j of entry i succeeded:
// the entry keeps the attempts used and every later entry becomes
// invalid.
func (m *Medium) truncateRates(frame *Frame, i int, j int8) {
	frame.TXRates[i].Count = j + 1
	for k := i + 1; k < len(frame.TXRates); k++ {
		frame.TXRates[k].Idx = -1
		frame.TXRates[k].Count = -1
	}
}

// Post hands work to the event loop. Transports call this from their
// reader goroutines; the callback runs on the loop goroutine.
func (m *Medium) Post(fn func()) {
	m.events <- fn
}

// Run drives the medium against the wall clock until the context is
// canceled: posted work runs as it arrives and scheduler jobs fire
// when their deadline maps to real time.
func (m *Medium) Run(ctx context.Context) error {
	start := time.Now()
	for {
		now := uint64(time.Since(start) / time.Microsecond)
		m.sched.RunUntil(now)

		var timerC <-chan time.Time
		var timer *time.Timer
		if deadline, ok := m.sched.NextDeadline(); ok {
			timer = time.NewTimer(time.Duration(deadline-now) * time.Microsecond)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case fn := <-m.events:
			fn()
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// RunVirtual drives the medium under external time control: posted
// work runs as it arrives and simulated time only advances when the
// time controller posts an advance.
func (m *Medium) RunVirtual(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-m.events:
			fn()
		}
	}
}
