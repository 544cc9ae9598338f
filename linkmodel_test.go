package wmediumd

import (
	"math"
	"testing"
)

func testStations(n int) []*Station {
	stations := make([]*Station, n)
	for idx := range stations {
		stations[idx] = newStation(idx, MAC{0x02, 0, 0, 0, 0, byte(idx + 1)})
	}
	return stations
}

func TestDefaultLinkModel(t *testing.T) {
	model := &DefaultLinkModel{PER: BuiltinPERTable().ErrorProb}
	stations := testStations(2)

	if got := model.Signal(stations[0], stations[1]); got != SNRDefault+NoiseFloorDBm {
		t.Fatal("expected default signal, got", got)
	}
	if model.FixedRandom() {
		t.Fatal("default model must re-draw per attempt")
	}
}

func TestSNRMatrixModel(t *testing.T) {
	model := NewSNRMatrixModel(3, BuiltinPERTable().ErrorProb)
	stations := testStations(3)

	// unset links carry the default SNR
	if got := model.Signal(stations[0], stations[2]); got != SNRDefault+NoiseFloorDBm {
		t.Fatal("expected default signal, got", got)
	}

	// explicit links apply to both directions
	model.SetSNR(0, 1, -50)
	if model.SNR(0, 1) != -50 || model.SNR(1, 0) != -50 {
		t.Fatal("SetSNR must set both directions")
	}
	if got := model.Signal(stations[0], stations[1]); got != -50+NoiseFloorDBm {
		t.Fatal("expected -141 dBm, got", got)
	}

	// one-way overrides touch a single direction
	model.SetSNROneWay(1, 0, 12)
	if model.SNR(1, 0) != 12 || model.SNR(0, 1) != -50 {
		t.Fatal("SetSNROneWay must set one direction")
	}
}

func TestErrorProbModel(t *testing.T) {
	model := NewErrorProbModel(2)
	stations := testStations(2)
	model.SetErrorProb(0, 1, 0.4)

	if !model.FixedRandom() {
		t.Fatal("the error-prob model draws once per frame")
	}
	if got := model.ErrorProb(0, 0, 2412, 100, stations[0], stations[1]); got != 0.4 {
		t.Fatal("expected 0.4, got", got)
	}
	// the probability ignores rate and length entirely
	if got := model.ErrorProb(30, 11, 5180, 1500, stations[0], stations[1]); got != 0.4 {
		t.Fatal("expected 0.4, got", got)
	}
	// multicast returns zero; the result is unused
	if got := model.ErrorProb(0, 0, 2412, 100, stations[0], nil); got != 0 {
		t.Fatal("expected 0 for multicast, got", got)
	}
	// the signal still reports the default
	if got := model.Signal(stations[0], stations[1]); got != SNRDefault+NoiseFloorDBm {
		t.Fatal("expected default signal, got", got)
	}
}

func TestPathLossModel(t *testing.T) {
	model := NewPathLossModel(2, 3.5, 0, BuiltinPERTable().ErrorProb)
	stations := testStations(2)
	stations[0].X, stations[0].Y = 0, 0
	stations[1].X, stations[1].Y = 10, 0
	model.Recompute(stations)

	// log-distance by hand for the 10 m link
	pl := pl0() + 10*3.5*math.Log10(10)
	expect := int(math.Round(float64(DefaultTXPowerDBm) - pl - NoiseFloorDBm))
	if got := model.SNR(0, 1); got != expect {
		t.Fatalf("expected SNR %d, got %d", expect, got)
	}

	// symmetric given symmetric tx power
	if model.SNR(0, 1) != model.SNR(1, 0) {
		t.Fatal("path loss must be symmetric")
	}

	// asymmetric tx power shifts one direction only
	stations[0].TXPowerDBm = 30
	model.Recompute(stations)
	if model.SNR(0, 1) != expect+10 {
		t.Fatal("higher tx power must raise the outgoing SNR")
	}
	if model.SNR(1, 0) != expect {
		t.Fatal("the return path must be unchanged")
	}

	// moving closer improves the link
	stations[1].X = 2
	model.Recompute(stations)
	if model.SNR(1, 0) <= expect {
		t.Fatal("shorter distance must raise the SNR")
	}
}
