package wmediumd

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mdlayher/netlink"
)

func TestTXRatesWireRoundTrip(t *testing.T) {
	rates := []TXRate{{Idx: 0, Count: 2}, {Idx: 4, Count: 1}, {Idx: -1, Count: -1}}
	got := decodeTXRates(encodeTXRates(rates))
	if diff := cmp.Diff(rates, got); diff != "" {
		t.Fatal(diff)
	}
}

func TestDecodeTXRatesCapsChainLength(t *testing.T) {
	raw := make([]byte, 2*(TXMaxRates+3))
	if got := decodeTXRates(raw); len(got) != TXMaxRates {
		t.Fatal("expected the chain capped at", TXMaxRates, "got", len(got))
	}
}

func TestDecodeHwsimAttrs(t *testing.T) {
	src := staAddr(0)
	payload := mkFrame(fcDataPlain, src, staAddr(1), -1, 40)

	ae := netlink.NewAttributeEncoder()
	ae.Bytes(hwsimAttrAddrTransmitter, src[:])
	ae.Bytes(hwsimAttrFrame, payload)
	ae.Uint32(hwsimAttrFlags, TXCtlReqStatus)
	ae.Bytes(hwsimAttrTXInfo, encodeTXRates([]TXRate{{Idx: 0, Count: 3}}))
	ae.Uint64(hwsimAttrCookie, 77)
	ae.Uint32(hwsimAttrFreq, 2437)
	raw, err := ae.Encode()
	if err != nil {
		t.Fatal(err)
	}

	tx, err := decodeHwsimAttrs(raw)
	if err != nil {
		t.Fatal(err)
	}
	expect := &TXFrame{
		Transmitter: src,
		Payload:     payload,
		Flags:       TXCtlReqStatus,
		Rates:       []TXRate{{Idx: 0, Count: 3}},
		Cookie:      77,
		Freq:        2437,
	}
	if diff := cmp.Diff(expect, tx); diff != "" {
		t.Fatal(diff)
	}
}

func TestDecodeHwsimAttrsRejectsMissingFrame(t *testing.T) {
	src := staAddr(0)
	ae := netlink.NewAttributeEncoder()
	ae.Bytes(hwsimAttrAddrTransmitter, src[:])
	raw, err := ae.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := decodeHwsimAttrs(raw); !errors.Is(err, ErrHwsimDecode) {
		t.Fatal("expected ErrHwsimDecode, got", err)
	}
}

func TestEncodeFrameAttrsRoundTrip(t *testing.T) {
	dst := newStation(1, staAddr(1))
	frame := &Frame{
		Payload: mkFrame(fcDataPlain, staAddr(0), staAddr(1), -1, 40),
		TXRates: []TXRate{{Idx: 2, Count: 1}},
		Freq:    2412,
	}

	raw, err := encodeFrameAttrs(frame, dst, -61)
	if err != nil {
		t.Fatal(err)
	}

	ad, err := netlink.NewAttributeDecoder(raw)
	if err != nil {
		t.Fatal(err)
	}
	var receiver MAC
	var rxRate, signal uint32
	var gotPayload []byte
	for ad.Next() {
		switch ad.Type() {
		case hwsimAttrAddrReceiver:
			copy(receiver[:], ad.Bytes())
		case hwsimAttrFrame:
			gotPayload = ad.Bytes()
		case hwsimAttrRXRate:
			rxRate = ad.Uint32()
		case hwsimAttrSignal:
			signal = ad.Uint32()
		}
	}
	if err := ad.Err(); err != nil {
		t.Fatal(err)
	}
	if receiver != dst.HWAddr {
		t.Fatal("wrong receiver address")
	}
	if diff := cmp.Diff(frame.Payload, gotPayload); diff != "" {
		t.Fatal(diff)
	}
	if rxRate != 2 {
		t.Fatal("wrong rx rate")
	}
	if int(int32(signal)) != -61 {
		t.Fatal("signal must round-trip as a signed value")
	}
}

func TestHwsimMsgFraming(t *testing.T) {
	attrs := []byte{1, 2, 3, 4, 5}
	raw := marshalHwsimMsg(hwsimCmdFrame, attrs)

	cmd, gotAttrs, err := unmarshalHwsimMsg(raw)
	if err != nil {
		t.Fatal(err)
	}
	if cmd != hwsimCmdFrame {
		t.Fatal("wrong command")
	}
	if diff := cmp.Diff(attrs, gotAttrs); diff != "" {
		t.Fatal(diff)
	}

	// trailing bytes beyond the declared length are ignored
	cmd, gotAttrs, err = unmarshalHwsimMsg(append(raw, 0xff, 0xff))
	if err != nil || cmd != hwsimCmdFrame || len(gotAttrs) != len(attrs) {
		t.Fatal("framing must honor the declared length")
	}

	// truncated and lying headers are rejected
	if _, _, err := unmarshalHwsimMsg(raw[:10]); !errors.Is(err, ErrHwsimDecode) {
		t.Fatal("expected ErrHwsimDecode for a short buffer")
	}
	bad := marshalHwsimMsg(hwsimCmdFrame, attrs)
	bad[0] = 0xff
	if _, _, err := unmarshalHwsimMsg(bad); !errors.Is(err, ErrHwsimDecode) {
		t.Fatal("expected ErrHwsimDecode for a lying header")
	}
}
