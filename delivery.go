package wmediumd

//
// Delivery engine
//

// deliverJob is the scheduler callback bound to every frame.
func (m *Medium) deliverJob(sched *Scheduler, job *Job) {
	m.deliverFrame(job.Data.(*Frame))
}

// deliverFrame fires when a frame reaches its deadline: clone it to
// every matching receiver, then report the transmit status back to
// the source client. The frame leaves its queue here and is not
// referenced afterwards.
func (m *Medium) deliverFrame(frame *Frame) {
	src := frame.Sender
	src.queues[frame.ac].remove(frame)

	switch {
	case !frame.Acked():
		// the transmission still lit up the medium
		m.intf.Update(src, frame.Signal, frame.Duration)

	case frame.Dest.Multicast():
		m.deliverMulticast(frame)

	default:
		m.deliverUnicast(frame)
	}

	if m.capture != nil {
		m.capture.WriteFrame(frame.Payload, m.sched.Now())
	}
	m.sendTXInfo(frame)
	m.metrics.frameDelivered(frame)
}

// deliverMulticast re-evaluates the link to every station other than
// the source and clones the frame to each receiver that hears it.
func (m *Medium) deliverMulticast(frame *Frame) {
	src := frame.Sender
	rateIdx := 0
	if len(frame.TXRates) > 0 && frame.TXRates[0].Idx >= 0 {
		rateIdx = int(frame.TXRates[0].Idx)
	}
	for _, sta := range m.stations.stations {
		if sta == src {
			continue
		}
		snr := m.model.Signal(src, sta) - NoiseFloorDBm + m.fading(src, sta)
		signal := snr + NoiseFloorDBm
		if signal < CCAThresholdDBm {
			m.frameDropped(frame, sta, "below-cca")
			continue
		}
		// a contributing update means this sender drowned out
		// its vicinity for the tick; skip the emission
		if m.intf.Update(src, signal, frame.Duration) {
			m.frameDropped(frame, sta, "interference")
			continue
		}
		snr -= m.intf.Offset(src, sta, m.rng)
		errProb := m.model.ErrorProb(snr, rateIdx, frame.Freq, len(frame.Payload), src, sta)
		if m.rng.Float64() <= errProb {
			m.frameDropped(frame, sta, "error")
			continue
		}
		m.sendClone(sta, frame, snr+NoiseFloorDBm)
	}
}

// deliverUnicast clones the frame to the destination station.
func (m *Medium) deliverUnicast(frame *Frame) {
	src := frame.Sender
	dst := m.stations.lookupByAddr(frame.Dest)
	if dst == nil {
		m.intf.Update(src, frame.Signal, frame.Duration)
		return
	}
	if m.intf.Update(src, frame.Signal, frame.Duration) {
		m.frameDropped(frame, dst, "interference")
		return
	}
	m.sendClone(dst, frame, frame.Signal)
}

// frameDropped logs and counts a per-receiver drop. Drops surface at
// the default severity so a lossy medium is visible in the logs.
func (m *Medium) frameDropped(frame *Frame, dst *Station, reason string) {
	m.metrics.frameDropped(reason)
	m.log.Infof("wmediumd: drop %s -> %s: %s",
		frame.Sender.Addr.String(), dst.Addr.String(), reason)
}
