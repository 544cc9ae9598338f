package wmediumd

//
// Generic-netlink transport (family MAC80211_HWSIM)
//

import (
	"encoding/binary"
	"errors"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
)

// HwsimFamilyName is the generic-netlink family the kernel driver
// registers.
const HwsimFamilyName = "MAC80211_HWSIM"

// commands, from the driver's uapi
const (
	hwsimCmdRegister    = 1
	hwsimCmdFrame       = 2
	hwsimCmdTXInfoFrame = 3
)

// attributes, from the driver's uapi
const (
	hwsimAttrAddrReceiver    = 1
	hwsimAttrAddrTransmitter = 2
	hwsimAttrFrame           = 3
	hwsimAttrFlags           = 4
	hwsimAttrRXRate          = 5
	hwsimAttrSignal          = 6
	hwsimAttrTXInfo          = 7
	hwsimAttrCookie          = 8
	hwsimAttrFreq            = 19
)

// ErrHwsimDecode indicates a transmit message we cannot decode.
var ErrHwsimDecode = errors.New("wmediumd: hwsim: malformed message")

// decodeHwsimAttrs decodes the attribute payload of a FRAME command
// into a [TXFrame].
func decodeHwsimAttrs(data []byte) (*TXFrame, error) {
	ad, err := netlink.NewAttributeDecoder(data)
	if err != nil {
		return nil, err
	}
	tx := &TXFrame{}
	for ad.Next() {
		switch ad.Type() {
		case hwsimAttrAddrTransmitter:
			raw := ad.Bytes()
			if len(raw) != len(tx.Transmitter) {
				return nil, ErrHwsimDecode
			}
			copy(tx.Transmitter[:], raw)
		case hwsimAttrFrame:
			tx.Payload = ad.Bytes()
		case hwsimAttrFlags:
			tx.Flags = ad.Uint32()
		case hwsimAttrTXInfo:
			tx.Rates = decodeTXRates(ad.Bytes())
		case hwsimAttrCookie:
			tx.Cookie = ad.Uint64()
		case hwsimAttrFreq:
			tx.Freq = ad.Uint32()
		}
	}
	if err := ad.Err(); err != nil {
		return nil, err
	}
	if tx.Payload == nil {
		return nil, ErrHwsimDecode
	}
	return tx, nil
}

// decodeTXRates unpacks the (s8 idx, u8 count) pairs of a TX_INFO
// attribute.
func decodeTXRates(raw []byte) []TXRate {
	rates := make([]TXRate, 0, TXMaxRates)
	for idx := 0; idx+1 < len(raw) && len(rates) < TXMaxRates; idx += 2 {
		rates = append(rates, TXRate{
			Idx:   int8(raw[idx]),
			Count: int8(raw[idx+1]),
		})
	}
	return rates
}

// encodeTXRates packs a rate chain into TX_INFO wire form.
func encodeTXRates(rates []TXRate) []byte {
	raw := make([]byte, 0, 2*len(rates))
	for _, rate := range rates {
		raw = append(raw, byte(rate.Idx), byte(rate.Count))
	}
	return raw
}

// encodeFrameAttrs builds the attribute payload of a cloned
// reception.
func encodeFrameAttrs(frame *Frame, dst *Station, signalDBm int) ([]byte, error) {
	rateIdx := int8(0)
	if len(frame.TXRates) > 0 && frame.TXRates[0].Idx >= 0 {
		rateIdx = frame.TXRates[0].Idx
	}
	ae := netlink.NewAttributeEncoder()
	ae.Bytes(hwsimAttrAddrReceiver, dst.HWAddr[:])
	ae.Bytes(hwsimAttrFrame, frame.Payload)
	ae.Uint32(hwsimAttrRXRate, uint32(rateIdx))
	ae.Uint32(hwsimAttrSignal, uint32(int32(signalDBm)))
	ae.Uint32(hwsimAttrFreq, frame.Freq)
	return ae.Encode()
}

// encodeTXInfoAttrs builds the attribute payload of a transmit
// status report.
func encodeTXInfoAttrs(frame *Frame) ([]byte, error) {
	ae := netlink.NewAttributeEncoder()
	ae.Bytes(hwsimAttrAddrTransmitter, frame.Sender.HWAddr[:])
	ae.Uint32(hwsimAttrFlags, frame.Flags)
	ae.Bytes(hwsimAttrTXInfo, encodeTXRates(frame.TXRates))
	ae.Uint32(hwsimAttrSignal, uint32(int32(frame.Signal)))
	ae.Uint64(hwsimAttrCookie, frame.Cookie)
	return ae.Encode()
}

// NetlinkTransport is the kernel-side client transport. The zero
// value is invalid; use [DialHwsim].
type NetlinkTransport struct {
	// conn is the generic-netlink connection.
	conn *genetlink.Conn

	// familyID is the resolved MAC80211_HWSIM family.
	familyID uint16

	// log is the logger.
	log Logger
}

var _ ClientTransport = &NetlinkTransport{}

// DialHwsim connects to generic netlink, resolves the hwsim family,
// and announces this process as the wireless medium.
func DialHwsim(logger Logger) (*NetlinkTransport, error) {
	conn, err := genetlink.Dial(nil)
	if err != nil {
		return nil, err
	}
	family, err := conn.GetFamily(HwsimFamilyName)
	if err != nil {
		conn.Close()
		return nil, err
	}
	nt := &NetlinkTransport{
		conn:     conn,
		familyID: family.ID,
		log:      logger,
	}
	if err := nt.register(); err != nil {
		conn.Close()
		return nil, err
	}
	return nt, nil
}

// register sends the REGISTER command claiming the medium role.
func (nt *NetlinkTransport) register() error {
	msg := genetlink.Message{
		Header: genetlink.Header{
			Command: hwsimCmdRegister,
			Version: 1,
		},
	}
	_, err := nt.conn.Send(msg, nt.familyID, netlink.Request)
	return err
}

// Serve reads transmit messages from the kernel and posts them to
// the medium's event loop. It returns when the connection breaks,
// after posting the client's removal.
func (nt *NetlinkTransport) Serve(m *Medium, c *Client) {
	for {
		msgs, _, err := nt.conn.Receive()
		if err != nil {
			nt.log.Warnf("wmediumd: netlink receive: %s", err.Error())
			_ = nt.Close()
			m.Post(func() { m.RemoveClient(c) })
			return
		}
		for _, msg := range msgs {
			if msg.Header.Command != hwsimCmdFrame {
				continue
			}
			tx, err := decodeHwsimAttrs(msg.Data)
			if err != nil {
				nt.log.Warnf("wmediumd: netlink frame: %s", err.Error())
				continue
			}
			m.Post(func() { _ = m.InjectFrame(c, tx) })
		}
	}
}

// SendFrame implements ClientTransport
func (nt *NetlinkTransport) SendFrame(frame *Frame, dst *Station, signalDBm int) error {
	attrs, err := encodeFrameAttrs(frame, dst, signalDBm)
	if err != nil {
		return err
	}
	msg := genetlink.Message{
		Header: genetlink.Header{
			Command: hwsimCmdFrame,
			Version: 1,
		},
		Data: attrs,
	}
	_, err = nt.conn.Send(msg, nt.familyID, netlink.Request)
	return err
}

// SendTXInfo implements ClientTransport
func (nt *NetlinkTransport) SendTXInfo(frame *Frame) error {
	attrs, err := encodeTXInfoAttrs(frame)
	if err != nil {
		return err
	}
	msg := genetlink.Message{
		Header: genetlink.Header{
			Command: hwsimCmdTXInfoFrame,
			Version: 1,
		},
		Data: attrs,
	}
	_, err = nt.conn.Send(msg, nt.familyID, netlink.Request)
	return err
}

// Close implements ClientTransport
func (nt *NetlinkTransport) Close() error {
	return nt.conn.Close()
}

// Raw netlink framing for transports that carry hwsim messages as
// opaque byte strings (the API socket and vhost-user virtqueues):
// a 16-byte nlmsghdr and a 4-byte genlmsghdr ahead of the attributes.
const (
	nlmsgHdrLen   = 16
	genlmsgHdrLen = 4

	// rawGenlMsgType stands in for the family ID, which is not
	// meaningful outside the kernel's registry.
	rawGenlMsgType = 0x10
)

// marshalHwsimMsg wraps an attribute payload in netlink headers.
func marshalHwsimMsg(cmd uint8, attrs []byte) []byte {
	buf := make([]byte, nlmsgHdrLen+genlmsgHdrLen+len(attrs))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(buf)))
	binary.LittleEndian.PutUint16(buf[4:6], rawGenlMsgType)
	buf[nlmsgHdrLen] = cmd
	buf[nlmsgHdrLen+1] = 1
	copy(buf[nlmsgHdrLen+genlmsgHdrLen:], attrs)
	return buf
}

// unmarshalHwsimMsg strips the netlink headers and returns the
// command and attribute payload.
func unmarshalHwsimMsg(raw []byte) (cmd uint8, attrs []byte, err error) {
	if len(raw) < nlmsgHdrLen+genlmsgHdrLen {
		return 0, nil, ErrHwsimDecode
	}
	msgLen := binary.LittleEndian.Uint32(raw[0:4])
	if int(msgLen) < nlmsgHdrLen+genlmsgHdrLen || int(msgLen) > len(raw) {
		return 0, nil, ErrHwsimDecode
	}
	return raw[nlmsgHdrLen], raw[nlmsgHdrLen+genlmsgHdrLen:msgLen], nil
}
