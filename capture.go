package wmediumd

//
// PCAP capture of delivered frames
//

import (
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// Capture writes delivered frames to a PCAP file as raw 802.11
// records. The zero value is invalid; use [NewCapture]. The capture
// is owned by the event loop and needs no locking.
type Capture struct {
	// file is the open PCAP file.
	file *os.File

	// writer is the PCAP encoder.
	writer *pcapgo.Writer

	// log is the logger.
	log Logger

	// epoch anchors simulated microseconds to a wall-clock base
	// so the trace opens with sensible timestamps.
	epoch time.Time
}

// captureSnapLen is the per-record snapshot length.
const captureSnapLen = 65536

// NewCapture opens filename for writing and emits the PCAP file
// header.
func NewCapture(filename string, logger Logger) (*Capture, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	writer := pcapgo.NewWriter(file)
	if err := writer.WriteFileHeader(captureSnapLen, layers.LinkTypeIEEE802_11); err != nil {
		file.Close()
		return nil, err
	}
	return &Capture{
		file:   file,
		writer: writer,
		log:    logger,
		epoch:  time.Now(),
	}, nil
}

// WriteFrame appends one frame stamped at the given simulated time.
func (cp *Capture) WriteFrame(payload []byte, nowUsec uint64) {
	info := gopacket.CaptureInfo{
		Timestamp:     cp.epoch.Add(time.Duration(nowUsec) * time.Microsecond),
		CaptureLength: len(payload),
		Length:        len(payload),
	}
	if err := cp.writer.WritePacket(info, payload); err != nil {
		cp.log.Warnf("wmediumd: pcap write: %s", err.Error())
	}
}

// Close flushes and closes the PCAP file.
func (cp *Capture) Close() error {
	return cp.file.Close()
}
