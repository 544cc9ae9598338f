package wmediumd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/require"
)

func TestCaptureWritesDeliveredFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "medium.pcap")
	capture, err := NewCapture(path, &NullLogger{})
	require.NoError(t, err)

	model := NewSNRMatrixModel(2, BuiltinPERTable().ErrorProb)
	rng := &seqRNG{values: []float64{0.999}}
	m := NewMedium(&MediumConfig{
		Logger:  &NullLogger{},
		Model:   model,
		RNG:     rng,
		Capture: capture,
	})
	for idx := 0; idx < 2; idx++ {
		_, err := m.AddStation(staAddr(idx))
		require.NoError(t, err)
	}
	transport := &recordingTransport{}
	client := m.AddClient(ClientAPISocket, transport)

	tx := dataTX(0, 1, 100, []TXRate{{Idx: 0, Count: 1}}, 1)
	require.NoError(t, m.InjectFrame(client, tx))
	for m.Scheduler().Advance() {
	}
	require.NoError(t, capture.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	reader, err := pcapgo.NewReader(f)
	require.NoError(t, err)
	require.Equal(t, layers.LinkTypeIEEE802_11, reader.LinkType())

	data, ci, err := reader.ReadPacketData()
	require.NoError(t, err)
	require.Equal(t, len(tx.Payload), ci.Length)
	if diff := cmp.Diff(tx.Payload, data); diff != "" {
		t.Fatal(diff)
	}

	// exactly the one delivered frame
	_, _, err = reader.ReadPacketData()
	require.Error(t, err)
}
