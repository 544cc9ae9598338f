package wmediumd

//
// vhost-user device seam
//

// Virtqueue indexes of the hwsim vhost-user device.
const (
	// VQTX carries guest-to-host transmissions.
	VQTX = 0

	// VQRX carries host-to-guest cloned receptions.
	VQRX = 1
)

// VirtioDevice is the seam to the external vhost-user transport
// library. Messages on both queues are netlink-framed hwsim
// messages, the same wire form the API socket carries.
type VirtioDevice interface {
	// Receive returns the channel of VQ_TX buffers. The channel
	// closes when the device goes away.
	Receive() <-chan []byte

	// Send places a buffer on VQ_RX.
	Send(msg []byte) error

	// Close tears down the device.
	Close() error
}

// vhostClient adapts a [VirtioDevice] into a [ClientTransport].
type vhostClient struct {
	dev VirtioDevice
}

var _ ClientTransport = &vhostClient{}

// SendFrame implements ClientTransport
func (vc *vhostClient) SendFrame(frame *Frame, dst *Station, signalDBm int) error {
	attrs, err := encodeFrameAttrs(frame, dst, signalDBm)
	if err != nil {
		return err
	}
	return vc.dev.Send(marshalHwsimMsg(hwsimCmdFrame, attrs))
}

// SendTXInfo implements ClientTransport
func (vc *vhostClient) SendTXInfo(frame *Frame) error {
	attrs, err := encodeTXInfoAttrs(frame)
	if err != nil {
		return err
	}
	return vc.dev.Send(marshalHwsimMsg(hwsimCmdTXInfoFrame, attrs))
}

// Close implements ClientTransport
func (vc *vhostClient) Close() error {
	return vc.dev.Close()
}

// AttachVirtioDevice registers a vhost-user device as a client and
// starts pumping its TX queue into the event loop. Call from the
// event loop goroutine.
func (m *Medium) AttachVirtioDevice(dev VirtioDevice) *Client {
	c := m.AddClient(ClientVhostUser, &vhostClient{dev: dev})
	go func() {
		for raw := range dev.Receive() {
			cmd, attrs, err := unmarshalHwsimMsg(raw)
			if err != nil || cmd != hwsimCmdFrame {
				m.log.Warnf("wmediumd: vhost: dropping undecodable buffer")
				continue
			}
			tx, err := decodeHwsimAttrs(attrs)
			if err != nil {
				m.log.Warnf("wmediumd: vhost: %s", err.Error())
				continue
			}
			m.Post(func() { _ = m.InjectFrame(c, tx) })
		}
		m.Post(func() {
			m.RemoveClient(c)
			c.transport.Close()
		})
	}()
	return c
}
