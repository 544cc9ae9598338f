package wmediumd

//
// API socket transport
//

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// API message types. The wire values are fixed by the protocol
// header; the rest of the daemon treats them as opaque tags.
const (
	apiMsgInvalid uint32 = iota
	apiMsgAck
	apiMsgRegister
	apiMsgUnregister
	apiMsgNetlink
)

// apiHeaderLen is the fixed message header: little-endian u32 type
// followed by u32 payload length.
const apiHeaderLen = 8

// apiMaxPayload bounds a message payload.
const apiMaxPayload = 1 << 20

// apiAckTimeout bounds the synchronous wait for a client's ACK.
const apiAckTimeout = 5 * time.Second

// ErrAPIProtocol indicates a malformed API-socket message.
var ErrAPIProtocol = errors.New("wmediumd: api: protocol violation")

// ErrAPIClosed indicates the API connection went away while an
// operation was in flight.
var ErrAPIClosed = errors.New("wmediumd: api: connection closed")

// APIServer accepts local API clients. The zero value is invalid;
// use [NewAPIServer].
type APIServer struct {
	// medium is the medium clients attach to.
	medium *Medium

	// log is the logger.
	log Logger
}

// NewAPIServer creates an [APIServer].
func NewAPIServer(medium *Medium, logger Logger) *APIServer {
	return &APIServer{
		medium: medium,
		log:    logger,
	}
}

// ListenAndServe binds a unix stream socket at path and serves
// clients until the listener fails.
func (s *APIServer) ListenAndServe(path string) error {
	_ = os.Remove(path)
	listener, err := net.Listen("unix", path)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections from an existing listener.
func (s *APIServer) Serve(listener net.Listener) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// apiClient is the egress side of one API connection. Responses to
// our messages are routed back by the connection's reader goroutine.
type apiClient struct {
	// conn is the stream socket.
	conn net.Conn

	// writeMu serializes writes from the event loop and the
	// reader's own request responses.
	writeMu sync.Mutex

	// acks receives response types routed by the reader; closed
	// when the reader exits.
	acks chan uint32
}

var _ ClientTransport = &apiClient{}

// writeMsg writes one framed message.
func (ac *apiClient) writeMsg(msgType uint32, payload []byte) error {
	ac.writeMu.Lock()
	defer ac.writeMu.Unlock()
	hdr := make([]byte, apiHeaderLen)
	binary.LittleEndian.PutUint32(hdr[0:4], msgType)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	if _, err := ac.conn.Write(hdr); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := ac.conn.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// sendAndAwaitAck writes a message and waits for the client's
// response header. This is the only synchronous back-pressure in
// the system.
func (ac *apiClient) sendAndAwaitAck(msgType uint32, payload []byte) error {
	if err := ac.writeMsg(msgType, payload); err != nil {
		return err
	}
	timer := time.NewTimer(apiAckTimeout)
	defer timer.Stop()
	select {
	case resp, ok := <-ac.acks:
		if !ok {
			return ErrAPIClosed
		}
		if resp != apiMsgAck {
			return ErrAPIProtocol
		}
		return nil
	case <-timer.C:
		return ErrAPIClosed
	}
}

// SendFrame implements ClientTransport
func (ac *apiClient) SendFrame(frame *Frame, dst *Station, signalDBm int) error {
	attrs, err := encodeFrameAttrs(frame, dst, signalDBm)
	if err != nil {
		return err
	}
	return ac.sendAndAwaitAck(apiMsgNetlink, marshalHwsimMsg(hwsimCmdFrame, attrs))
}

// SendTXInfo implements ClientTransport
func (ac *apiClient) SendTXInfo(frame *Frame) error {
	attrs, err := encodeTXInfoAttrs(frame)
	if err != nil {
		return err
	}
	return ac.sendAndAwaitAck(apiMsgNetlink, marshalHwsimMsg(hwsimCmdTXInfoFrame, attrs))
}

// Close implements ClientTransport
func (ac *apiClient) Close() error {
	return ac.conn.Close()
}

// handleConn runs the reader side of one API connection.
func (s *APIServer) handleConn(conn net.Conn) {
	ac := &apiClient{
		conn: conn,
		acks: make(chan uint32, 4),
	}

	// client is non-nil while this connection is registered; only
	// the event loop touches it
	var client *Client

	defer func() {
		close(ac.acks)
		conn.Close()
		s.medium.Post(func() {
			if client != nil {
				s.medium.RemoveClient(client)
				client = nil
			}
		})
	}()

	hdr := make([]byte, apiHeaderLen)
	for {
		if _, err := io.ReadFull(conn, hdr); err != nil {
			return
		}
		msgType := binary.LittleEndian.Uint32(hdr[0:4])
		msgLen := binary.LittleEndian.Uint32(hdr[4:8])
		if msgLen > apiMaxPayload {
			s.log.Warnf("wmediumd: api: oversized message (%d bytes)", msgLen)
			return
		}
		payload := make([]byte, msgLen)
		if _, err := io.ReadFull(conn, payload); err != nil {
			return
		}

		// responses to our own messages go back to the sender
		if msgType == apiMsgAck || msgType == apiMsgInvalid {
			select {
			case ac.acks <- msgType:
			default:
			}
			continue
		}

		done := make(chan uint32, 1)
		s.medium.Post(func() {
			done <- s.handleRequest(&client, ac, msgType, payload)
		})
		resp := <-done
		if err := ac.writeMsg(resp, nil); err != nil {
			return
		}
	}
}

// handleRequest runs one client request on the event loop and
// returns the response type.
func (s *APIServer) handleRequest(client **Client, ac *apiClient, msgType uint32, payload []byte) uint32 {
	switch msgType {
	case apiMsgRegister:
		if *client != nil {
			return apiMsgInvalid
		}
		*client = s.medium.AddClient(ClientAPISocket, ac)
		return apiMsgAck

	case apiMsgUnregister:
		if *client == nil {
			return apiMsgInvalid
		}
		s.medium.RemoveClient(*client)
		*client = nil
		return apiMsgAck

	case apiMsgNetlink:
		if *client == nil {
			return apiMsgInvalid
		}
		cmd, attrs, err := unmarshalHwsimMsg(payload)
		if err != nil || cmd != hwsimCmdFrame {
			return apiMsgInvalid
		}
		tx, err := decodeHwsimAttrs(attrs)
		if err != nil {
			return apiMsgInvalid
		}
		// attribution failures are logged and dropped without
		// penalizing the client
		_ = s.medium.InjectFrame(*client, tx)
		return apiMsgAck

	default:
		return apiMsgInvalid
	}
}
