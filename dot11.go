package wmediumd

//
// 802.11 header dissector
//

import "errors"

// Access categories, in kernel numeric order: lower is more important.
const (
	// ACVO is the voice access category.
	ACVO = 0

	// ACVI is the video access category.
	ACVI = 1

	// ACBE is the best-effort access category.
	ACBE = 2

	// ACBK is the background access category.
	ACBK = 3

	// NumACs counts the access categories.
	NumACs = 4
)

// tidToAC maps an 802.1D traffic identifier to an access category. The
// QoS control field carries four TID bits; TIDs above seven are TSIDs
// and map like their low three bits.
var tidToAC = [16]int{
	ACBE, ACBK, ACBK, ACBE, ACVI, ACVI, ACVO, ACVO,
	ACBE, ACBK, ACBK, ACBE, ACVI, ACVI, ACVO, ACVO,
}

// frame-control field layout
const (
	fcTypeMgmt = 0
	fcTypeCtrl = 1
	fcTypeData = 2

	fcStypeQoSBit = 0x8

	fcToDS   = 0x0100
	fcFromDS = 0x0200
)

// dot11HeaderMinLen is the shortest header the ingress path accepts:
// enough to hold frame control, duration, addr1 and addr2.
const dot11HeaderMinLen = 16

// ErrDot11ShortFrame indicates the frame is too short to carry an
// 802.11 header.
var ErrDot11ShortFrame = errors.New("wmediumd: dot11: frame too short")

// Dot11Header is a dissected 802.11 MAC header. The zero value is
// invalid; use [DissectFrame] to create an instance.
type Dot11Header struct {
	// FrameControl is the raw frame-control field.
	FrameControl uint16

	// Addr1 is the receiver address.
	Addr1 MAC

	// Addr2 is the transmitter address.
	Addr2 MAC
}

// DissectFrame parses the fixed part of an 802.11 MAC header.
func DissectFrame(payload []byte) (*Dot11Header, error) {
	if len(payload) < dot11HeaderMinLen {
		return nil, ErrDot11ShortFrame
	}
	hdr := &Dot11Header{
		FrameControl: uint16(payload[0]) | uint16(payload[1])<<8,
	}
	copy(hdr.Addr1[:], payload[4:10])
	copy(hdr.Addr2[:], payload[10:16])
	return hdr, nil
}

// ftype returns the frame type bits.
func (h *Dot11Header) ftype() int {
	return int(h.FrameControl>>2) & 0x3
}

// stype returns the frame subtype bits.
func (h *Dot11Header) stype() int {
	return int(h.FrameControl>>4) & 0xf
}

// IsMgmt returns true for management frames.
func (h *Dot11Header) IsMgmt() bool {
	return h.ftype() == fcTypeMgmt
}

// IsData returns true for data frames.
func (h *Dot11Header) IsData() bool {
	return h.ftype() == fcTypeData
}

// IsQoSData returns true for QoS data frames.
func (h *Dot11Header) IsQoSData() bool {
	return h.IsData() && h.stype()&fcStypeQoSBit != 0
}

// uses4Addresses returns true when both DS bits are set and the
// header carries a fourth address before the QoS control field.
func (h *Dot11Header) uses4Addresses() bool {
	return h.FrameControl&fcToDS != 0 && h.FrameControl&fcFromDS != 0
}

// qosOffset is where the QoS control field lives.
func (h *Dot11Header) qosOffset() int {
	if h.uses4Addresses() {
		return 30
	}
	return 24
}

// AccessCategory classifies the frame for medium access: management
// and control frames ride the voice queue, non-QoS data rides best
// effort, QoS data maps its TID through the 802.1D table.
func (h *Dot11Header) AccessCategory(payload []byte) int {
	if !h.IsData() {
		return ACVO
	}
	if !h.IsQoSData() {
		return ACBE
	}
	off := h.qosOffset()
	if len(payload) < off+1 {
		return ACBE
	}
	return tidToAC[payload[off]&0xf]
}
