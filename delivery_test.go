package wmediumd

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBroadcastDelivery(t *testing.T) {
	// three stations; the link to station 1 is perfect, the link
	// to station 2 is inaudible
	model := NewSNRMatrixModel(3, BuiltinPERTable().ErrorProb)
	model.SetSNR(0, 2, -50)
	tm := newTestMedium(3, model, nil, 0.999)

	payload := mkFrame(fcDataPlain, staAddr(0), BroadcastMAC, -1, 60)
	tm.inject(t, &TXFrame{
		Transmitter: staAddr(0),
		Payload:     payload,
		Rates:       []TXRate{{Idx: 0, Count: 1}},
		Cookie:      11,
		Freq:        2412,
	})

	for tm.m.Scheduler().Advance() {
	}

	// each receiver is tested against its own link: station 1
	// hears the frame, station 2 sits below the CCA threshold
	expectClones := []cloneRecord{{
		Dst:    staAddr(1),
		Signal: SNRDefault + NoiseFloorDBm,
		Cookie: 11,
	}}
	if diff := cmp.Diff(expectClones, tm.transport.clones); diff != "" {
		t.Fatal(diff)
	}

	// the status report still goes out, acked without any ACK wait
	if len(tm.transport.infos) != 1 {
		t.Fatal("expected one status report")
	}
	if tm.transport.infos[0].Flags&TXStatAck == 0 {
		t.Fatal("broadcast frames count as acked")
	}
}

func TestBroadcastClonesEveryAudibleReceiver(t *testing.T) {
	tm := newTestMedium(3,
		NewSNRMatrixModel(3, BuiltinPERTable().ErrorProb), nil,
		0.999)

	payload := mkFrame(fcDataPlain, staAddr(0), BroadcastMAC, -1, 60)
	tm.inject(t, &TXFrame{
		Transmitter: staAddr(0),
		Payload:     payload,
		Rates:       []TXRate{{Idx: 0, Count: 1}},
		Cookie:      12,
		Freq:        2412,
	})
	for tm.m.Scheduler().Advance() {
	}

	// one clone per non-source station, none back to the source
	var dsts []MAC
	for _, clone := range tm.transport.clones {
		dsts = append(dsts, clone.Dst)
	}
	expect := []MAC{staAddr(1), staAddr(2)}
	if diff := cmp.Diff(expect, dsts); diff != "" {
		t.Fatal(diff)
	}
}

func TestStatusReportFollowsClones(t *testing.T) {
	tm := newTestMedium(2,
		NewSNRMatrixModel(2, BuiltinPERTable().ErrorProb), nil,
		0.999)

	tm.inject(t, dataTX(0, 1, 100, []TXRate{{Idx: 0, Count: 1}}, 13))
	for tm.m.Scheduler().Advance() {
	}

	expect := []string{"clone", "txinfo"}
	if diff := cmp.Diff(expect, tm.transport.order); diff != "" {
		t.Fatal(diff)
	}
}

func TestLoudEnoughButUndecodableSenderSkipsDelivery(t *testing.T) {
	// the sender is acked end to end (the PER ignores SNR) yet its
	// signal sits below the CCA threshold, so delivery turns into
	// an interference contribution instead of a reception
	model := NewSNRMatrixModel(2, func(snr int, rateIdx int, frameLen int) float64 {
		return 0
	})
	model.SetSNR(0, 1, -5)
	tm := newTestMedium(2, model, NewInterference(2), 0.999)

	tm.inject(t, dataTX(0, 1, 100, []TXRate{{Idx: 0, Count: 1}}, 14))
	frame := tm.m.StationByAddr(staAddr(0)).queues[ACBE].frames[0]
	deadline := frame.job.Deadline

	tm.m.Scheduler().RunUntil(deadline)

	if len(tm.transport.clones) != 0 {
		t.Fatal("an undecodable signal must not be delivered")
	}
	if len(tm.transport.infos) != 1 {
		t.Fatal("the status report still goes out")
	}

	// the busy time landed in the interference map
	if link := tm.m.intf.links[0*2+1]; link.durationUsec == 0 {
		t.Fatal("expected an interference contribution")
	}
}

func TestUnackedFrameOnlyContributesInterference(t *testing.T) {
	model := NewSNRMatrixModel(2, BuiltinPERTable().ErrorProb)
	model.SetSNR(0, 1, -50)
	tm := newTestMedium(2, model, NewInterference(2), 0.999)

	tm.inject(t, dataTX(0, 1, 100, []TXRate{{Idx: 0, Count: 2}}, 15))
	frame := tm.m.StationByAddr(staAddr(0)).queues[ACBE].frames[0]

	tm.m.Scheduler().RunUntil(frame.job.Deadline)

	if len(tm.transport.clones) != 0 {
		t.Fatal("a failed frame must not be delivered")
	}
	if link := tm.m.intf.links[0*2+1]; link.durationUsec == 0 {
		t.Fatal("expected an interference contribution")
	}
}
