package wmediumd

//
// Data model
//

// MAC is a 48-bit IEEE 802 address.
type MAC [6]byte

// BroadcastMAC is the all-ones broadcast address.
var BroadcastMAC = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// String formats the address in the usual colon-separated form.
func (m MAC) String() string {
	const hexdigit = "0123456789abcdef"
	buf := make([]byte, 0, 17)
	for idx, octet := range m {
		if idx > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, hexdigit[octet>>4], hexdigit[octet&0xf])
	}
	return string(buf)
}

// Multicast returns true when the group bit is set.
func (m MAC) Multicast() bool {
	return m[0]&0x01 != 0
}

// Medium-wide constants in the data plane.
const (
	// NoiseFloorDBm is the noise floor.
	NoiseFloorDBm = -91

	// CCAThresholdDBm is the clear-channel-assessment threshold
	// below which a signal is not heard.
	CCAThresholdDBm = -90

	// SNRDefault is the signal-to-noise ratio assumed for links
	// that the configuration does not describe.
	SNRDefault = 30

	// InterferenceWindowUsec is the accumulation window after which
	// per-link busy time becomes a collision probability.
	InterferenceWindowUsec = 10000

	// MoveIntervalUsec is how often stations with a movement
	// vector advance their position.
	MoveIntervalUsec = 3 * 1000 * 1000
)

// TXMaxRates is the maximum length of a multi-rate-retry chain.
const TXMaxRates = 4

// TXRate is one entry of a multi-rate-retry chain: try the rate
// at Idx up to Count times. A negative Idx marks an unused entry.
type TXRate struct {
	// Idx is the rate index, or -1 when the entry is unused.
	Idx int8

	// Count is how many attempts to make at this rate.
	Count int8
}

// Frame transmit-control and status flags. The values mirror the
// kernel side so they round-trip through status reports unchanged.
const (
	// TXCtlReqStatus requests a status report for this frame.
	TXCtlReqStatus = 1 << 0

	// TXCtlNoAck asks the medium not to wait for an ACK.
	TXCtlNoAck = 1 << 1

	// TXStatAck reports that the frame was acknowledged.
	TXStatAck = 1 << 2
)

// Frame is an 802.11 frame in flight on the simulated medium. The
// zero value is invalid; frames are built by the ingress path from
// transmit messages and freed exactly once after delivery or when
// the originating client disconnects.
type Frame struct {
	// Payload contains the 802.11 frame bytes.
	Payload []byte

	// Cookie is the opaque identifier echoed in the status report.
	Cookie uint64

	// Flags holds the TXCtl and TXStat flags.
	Flags uint32

	// Freq is the operating frequency in MHz.
	Freq uint32

	// Sender is the transmitting station.
	Sender *Station

	// Dest is the destination address from the 802.11 header.
	Dest MAC

	// TXRates is the multi-rate-retry chain. After scheduling it
	// carries the attempts actually used (see the ACK truncation
	// rules in the scheduler).
	TXRates []TXRate

	// Signal is the computed signal at the receiver in dBm.
	Signal int

	// Duration is the time the frame occupies the medium in µs.
	Duration uint64

	// origin is the client this frame was ingested from.
	origin *Client

	// ac is the access category the frame was classified into.
	ac int

	// job is the pending delivery job in the scheduler.
	job Job
}

// Acked returns true when the ACK status flag is set.
func (f *Frame) Acked() bool {
	return f.Flags&TXStatAck != 0
}

// Logger is the logger we're using.
type Logger interface {
	// Debugf formats and emits a debug message.
	Debugf(format string, v ...any)

	// Debug emits a debug message.
	Debug(message string)

	// Infof formats and emits an informational message.
	Infof(format string, v ...any)

	// Info emits an informational message.
	Info(message string)

	// Warnf formats and emits a warning message.
	Warnf(format string, v ...any)

	// Warn emits a warning message.
	Warn(message string)
}

// NullLogger is a [Logger] that does not emit logs.
type NullLogger struct{}

// Debug implements Logger
func (nl *NullLogger) Debug(message string) {
	// nothing
}

// Debugf implements Logger
func (nl *NullLogger) Debugf(format string, v ...any) {
	// nothing
}

// Info implements Logger
func (nl *NullLogger) Info(message string) {
	// nothing
}

// Infof implements Logger
func (nl *NullLogger) Infof(format string, v ...any) {
	// nothing
}

// Warn implements Logger
func (nl *NullLogger) Warn(message string) {
	// nothing
}

// Warnf implements Logger
func (nl *NullLogger) Warnf(format string, v ...any) {
	// nothing
}

var _ Logger = &NullLogger{}
