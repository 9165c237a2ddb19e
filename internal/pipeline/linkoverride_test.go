package pipeline

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/googlesky/vpnspotter/internal/model"
)

// writePcapAmbiguousLinkType writes a classic pcap file whose global header
// "network" field this reader doesn't recognize, carrying Ethernet-framed
// UDP packets. Exercises the RunClassification -> pcapfile.OpenWithFallback
// -> Config.LinkOverride path end to end: without an override the frames
// are (wrongly) treated as headerless IP and fail to decode; with
// LinkOverride set to Ethernet they decode correctly.
func writePcapAmbiguousLinkType(t *testing.T, n int) string {
	t.Helper()
	const (
		magicLE         = 0xa1b2c3d4
		globalHeaderLen = 24
		recordHeaderLen = 16
		dltAmbiguous    = 276 // not dltEN10MB(1), not recognized by this reader
	)

	path := filepath.Join(t.TempDir(), "ambiguous.pcap")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	global := make([]byte, globalHeaderLen)
	binary.LittleEndian.PutUint32(global[0:4], magicLE)
	binary.LittleEndian.PutUint16(global[4:6], 2)
	binary.LittleEndian.PutUint16(global[6:8], 4)
	binary.LittleEndian.PutUint32(global[16:20], 65535)
	binary.LittleEndian.PutUint32(global[20:24], dltAmbiguous)
	if _, err := f.Write(global); err != nil {
		t.Fatalf("write global header: %v", err)
	}

	for i := 0; i < n; i++ {
		frame := make([]byte, 14+20+8+4) // ethernet + ip + udp + payload
		frame[14] = 0x45
		totalLen := 20 + 8 + 4
		frame[14+2] = byte(totalLen >> 8)
		frame[14+3] = byte(totalLen)
		copy(frame[14+12:14+16], []byte{10, 0, 0, 1})
		frame[14+9] = 17 // UDP
		frame[14+20] = byte(i)

		rec := make([]byte, recordHeaderLen)
		binary.LittleEndian.PutUint32(rec[0:4], uint32(1000+i))
		binary.LittleEndian.PutUint32(rec[4:8], uint32(i))
		binary.LittleEndian.PutUint32(rec[8:12], uint32(len(frame)))
		binary.LittleEndian.PutUint32(rec[12:16], uint32(len(frame)))
		if _, err := f.Write(rec); err != nil {
			t.Fatalf("write record header: %v", err)
		}
		if _, err := f.Write(frame); err != nil {
			t.Fatalf("write record data: %v", err)
		}
	}

	return path
}

func TestRunClassificationWithoutOverrideMisreadsAmbiguousLinkType(t *testing.T) {
	path := writePcapAmbiguousLinkType(t, 60)
	cfg := Config{InputPath: path, NbPacket: 50, NbByte: 4}

	_, err := RunClassification(cfg, nil)
	if err == nil {
		t.Fatalf("expected decode to fail without a link override on an ambiguous-dlt trace")
	}
}

func TestRunClassificationWithOverrideDecodesAmbiguousLinkType(t *testing.T) {
	path := writePcapAmbiguousLinkType(t, 60)
	eth := model.LinkEthernet
	cfg := Config{InputPath: path, NbPacket: 50, NbByte: 4, LinkOverride: &eth}

	result, err := RunClassification(cfg, nil)
	if err != nil {
		t.Fatalf("RunClassification with LinkOverride: %v", err)
	}
	if result == nil {
		t.Fatalf("expected a classification result")
	}
}
