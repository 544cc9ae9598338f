package wmediumd

//
// Client multiplexer
//

import "errors"

// ClientKind distinguishes the transports a client can ride.
type ClientKind int

const (
	// ClientNetlink is the kernel generic-netlink side.
	ClientNetlink = ClientKind(0)

	// ClientVhostUser is a vhost-user device.
	ClientVhostUser = ClientKind(1)

	// ClientAPISocket is a local API stream socket.
	ClientAPISocket = ClientKind(2)
)

// String names the kind for log messages.
func (k ClientKind) String() string {
	switch k {
	case ClientNetlink:
		return "netlink"
	case ClientVhostUser:
		return "vhost-user"
	case ClientAPISocket:
		return "api"
	default:
		return "unknown"
	}
}

// ClientTransport is the egress side of a client: the medium hands
// it cloned receptions and transmit-status reports to serialize onto
// whatever the client is connected through.
type ClientTransport interface {
	// SendFrame serializes a cloned reception for dst.
	SendFrame(frame *Frame, dst *Station, signalDBm int) error

	// SendTXInfo serializes a transmit-status report.
	SendTXInfo(frame *Frame) error

	// Close tears down the transport handle.
	Close() error
}

// Client is one connected peer of the medium. The zero value is
// invalid; use [Medium.AddClient].
type Client struct {
	// Kind tags the transport.
	Kind ClientKind

	// transport is the egress handle.
	transport ClientTransport
}

// ErrUnknownSender indicates a transmit message whose 802.11
// transmitter address matches no station.
var ErrUnknownSender = errors.New("wmediumd: client: unknown sender address")

// AddClient registers a client on the medium. Call from the event
// loop goroutine.
func (m *Medium) AddClient(kind ClientKind, transport ClientTransport) *Client {
	c := &Client{
		Kind:      kind,
		transport: transport,
	}
	m.clients = append(m.clients, c)
	m.log.Infof("wmediumd: client up (%s)", kind.String())
	return c
}

// RemoveClient detaches a client: stations it owned forget it, every
// queued frame it sourced is canceled together with its scheduler
// job, and the client record disappears. The transport handle stays
// open; it belongs to whoever detected the disconnect. Removing a
// client twice is harmless.
func (m *Medium) RemoveClient(c *Client) {
	for _, sta := range m.stations.stations {
		if sta.client == c {
			sta.client = nil
		}
		for ac := 0; ac < NumACs; ac++ {
			drained := sta.queues[ac].drainMatching(func(frame *Frame) bool {
				return frame.origin == c
			})
			for _, frame := range drained {
				m.sched.Remove(&frame.job)
				m.metrics.frameCanceled()
			}
		}
	}
	for idx, cur := range m.clients {
		if cur == c {
			m.clients = append(m.clients[:idx], m.clients[idx+1:]...)
			m.log.Infof("wmediumd: client down (%s)", c.Kind.String())
			break
		}
	}
}

// TXFrame is an ingress transmit message, decoded from whichever
// transport carried it.
type TXFrame struct {
	// Transmitter is the hardware address of the sending radio.
	Transmitter MAC

	// Payload is the 802.11 frame.
	Payload []byte

	// Flags carries the TXCtl flags.
	Flags uint32

	// Rates is the multi-rate-retry chain.
	Rates []TXRate

	// Cookie correlates the transmit with its status report.
	Cookie uint64

	// Freq is the operating frequency in MHz; zero means unknown.
	Freq uint32
}

// defaultFreqMHz is assumed when a transmit message carries no
// frequency.
const defaultFreqMHz = 2412

// InjectFrame attributes a transmit message to its source station
// and feeds it into the scheduling pipeline. Malformed and
// unattributable frames are logged and dropped; the client stays
// connected.
func (m *Medium) InjectFrame(c *Client, tx *TXFrame) error {
	hdr, err := DissectFrame(tx.Payload)
	if err != nil {
		m.log.Warnf("wmediumd: reject frame from %s client: %s", c.Kind.String(), err.Error())
		m.metrics.frameDropped("malformed")
		return err
	}

	sender := m.stations.lookupByAddr(hdr.Addr2)
	if sender == nil {
		m.log.Warnf("wmediumd: drop frame from unknown sender %s", hdr.Addr2.String())
		m.metrics.frameDropped("unknown-sender")
		return ErrUnknownSender
	}

	// the kernel side names the radio; remember it, and adopt the
	// client when the station has none yet
	sender.HWAddr = tx.Transmitter
	if sender.client == nil {
		sender.client = c
	}

	freq := tx.Freq
	if freq == 0 {
		freq = defaultFreqMHz
	}
	rates := tx.Rates
	if len(rates) > TXMaxRates {
		rates = rates[:TXMaxRates]
	}

	frame := &Frame{
		Payload: tx.Payload,
		Cookie:  tx.Cookie,
		Flags:   tx.Flags,
		Freq:    freq,
		Sender:  sender,
		Dest:    hdr.Addr1,
		TXRates: rates,
		origin:  c,
	}
	m.metrics.frameIngested()
	m.EnqueueFrame(frame, hdr)
	return nil
}

// sendClone emits a cloned reception to the receiver's client when
// it has one, and to every registered client otherwise.
func (m *Medium) sendClone(dst *Station, frame *Frame, signalDBm int) {
	if dst.client != nil {
		m.sendOrDrop(dst.client, func(c *Client) error {
			return c.transport.SendFrame(frame, dst, signalDBm)
		})
		m.metrics.cloneDelivered()
		return
	}
	for _, c := range m.snapshotClients() {
		if !m.clientRegistered(c) {
			continue
		}
		m.sendOrDrop(c, func(c *Client) error {
			return c.transport.SendFrame(frame, dst, signalDBm)
		})
	}
	m.metrics.cloneDelivered()
}

// sendTXInfo reports the transmit status back to the client the
// frame came from.
func (m *Medium) sendTXInfo(frame *Frame) {
	c := frame.origin
	if c == nil || !m.clientRegistered(c) {
		return
	}
	m.sendOrDrop(c, func(c *Client) error {
		return c.transport.SendTXInfo(frame)
	})
	m.metrics.txReport()
}

// sendOrDrop runs one egress operation and disconnects the client
// when its transport fails.
func (m *Medium) sendOrDrop(c *Client, send func(*Client) error) {
	if err := send(c); err != nil {
		m.log.Warnf("wmediumd: client send (%s): %s", c.Kind.String(), err.Error())
		m.RemoveClient(c)
		c.transport.Close()
	}
}

// clientRegistered reports whether c is still on the client list.
func (m *Medium) clientRegistered(c *Client) bool {
	for _, cur := range m.clients {
		if cur == c {
			return true
		}
	}
	return false
}

// snapshotClients copies the client list so egress failures can
// remove entries mid-iteration.
func (m *Medium) snapshotClients() []*Client {
	snapshot := make([]*Client, len(m.clients))
	copy(snapshot, m.clients)
	return snapshot
}
