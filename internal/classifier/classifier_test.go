package classifier

import (
	"math/rand"
	"testing"

	"github.com/googlesky/vpnspotter/internal/model"
)

const nbPacketsNeeded = 50

func buildRecords(n int, transport model.Transport, dir model.Direction, payloadFn func(i int) []byte) []model.PacketRecord {
	recs := make([]model.PacketRecord, n)
	for i := range recs {
		payload := payloadFn(i)
		recs[i] = model.PacketRecord{
			Transport:       transport,
			Direction:       dir,
			PacketSegmented: true,
			PayloadLength:   len(payload),
			Payload:         payload,
		}
	}
	return recs
}

// S1: stable headers, an incrementing counter column, stable trailer.
func TestClassifyStableAndIncrementColumns(t *testing.T) {
	const numBytes = 6
	records := buildRecords(200, model.TransportUDP, model.DirAToB, func(i int) []byte {
		return []byte{0x00, 0xC0, byte(i), 0xAA, 0xAA, 0xAA}
	})

	result := Classify(records, model.DirAToB, model.TransportUDP, numBytes, nbPacketsNeeded)

	want := []model.FieldType{
		model.TypeStable,
		model.TypeStable,
		model.TypeIncrement,
		model.TypeStable,
		model.TypeStable,
		model.TypeStable,
	}
	for i, w := range want {
		if result.FieldType[i] != w {
			t.Errorf("column %d = %v, want %v", i, result.FieldType[i], w)
		}
	}
}

// S2: a two-byte big-endian length prefix equal to payload_length exactly.
func TestClassifyDetectsLengthPrefix(t *testing.T) {
	const numBytes = 4
	rng := rand.New(rand.NewSource(1))
	records := buildRecords(200, model.TransportUDP, model.DirAToB, func(i int) []byte {
		length := 200 + rng.Intn(50)
		return []byte{byte(length >> 8), byte(length), byte(rng.Intn(256)), byte(rng.Intn(256))}
	})
	// PayloadLength must reflect the same length encoded in the prefix.
	for i := range records {
		b := records[i].Payload
		records[i].PayloadLength = int(b[0])<<8 | int(b[1])
	}

	result := Classify(records, model.DirAToB, model.TransportUDP, numBytes, nbPacketsNeeded)

	if result.FieldType[0] != model.TypeLength {
		t.Errorf("column 0 = %v, want Length", result.FieldType[0])
	}
	if result.FieldType[1] != model.TypeLength {
		t.Errorf("column 1 = %v, want Length", result.FieldType[1])
	}
}

// S3: fully random payloads classify as high entropy throughout.
func TestClassifyRandomPayloadsAreHighEntropy(t *testing.T) {
	const numBytes = 8
	rng := rand.New(rand.NewSource(42))
	records := buildRecords(200, model.TransportUDP, model.DirAToB, func(i int) []byte {
		b := make([]byte, numBytes)
		for j := range b {
			b[j] = byte(rng.Intn(256))
		}
		return b
	})

	result := Classify(records, model.DirAToB, model.TransportUDP, numBytes, nbPacketsNeeded)

	for i := 0; i < numBytes; i++ {
		if result.FieldType[i] != model.TypeHighEntropy {
			t.Errorf("column %d = %v, want HighEntropy", i, result.FieldType[i])
		}
	}
}

// Property #4: an Increment match must prevent Stable/HighEntropy from
// ever being evaluated for that column.
func TestIncrementMatchShortCircuitsLaterStrategies(t *testing.T) {
	const numBytes = 1
	records := buildRecords(200, model.TransportUDP, model.DirAToB, func(i int) []byte {
		return []byte{byte(i)}
	})

	result := Classify(records, model.DirAToB, model.TransportUDP, numBytes, nbPacketsNeeded)

	if result.FieldType[0] != model.TypeIncrement {
		t.Fatalf("column 0 = %v, want Increment", result.FieldType[0])
	}
	if result.FieldProb[0][model.TypeStable] != 0 {
		t.Errorf("stable ratio = %v, want 0 (never evaluated)", result.FieldProb[0][model.TypeStable])
	}
}

// Property #5: classifying the same records twice is idempotent.
func TestClassifyIsIdempotent(t *testing.T) {
	const numBytes = 4
	records := buildRecords(200, model.TransportUDP, model.DirAToB, func(i int) []byte {
		return []byte{0, byte(i), 0xAA, 0xBB}
	})

	r1 := Classify(records, model.DirAToB, model.TransportUDP, numBytes, nbPacketsNeeded)
	r2 := Classify(records, model.DirAToB, model.TransportUDP, numBytes, nbPacketsNeeded)

	for i := 0; i < numBytes; i++ {
		if r1.FieldType[i] != r2.FieldType[i] {
			t.Errorf("column %d differs across runs: %v vs %v", i, r1.FieldType[i], r2.FieldType[i])
		}
	}
}

func TestSelectSamplesSkipsHandshakeAndWrongDirection(t *testing.T) {
	records := buildRecords(40, model.TransportUDP, model.DirAToB, func(i int) []byte {
		return []byte{byte(i)}
	})
	records[35].Direction = model.DirBToA

	samples := selectSamples(records, model.DirAToB, model.TransportUDP, 100)
	if len(samples) != 9 { // 40 - 30 initial - 1 wrong-direction
		t.Errorf("got %d samples, want 9", len(samples))
	}
}

func TestSelectSamplesTCPRequiresSegmented(t *testing.T) {
	records := buildRecords(40, model.TransportTCP, model.DirAToB, func(i int) []byte {
		return []byte{byte(i)}
	})
	records[31].PacketSegmented = false

	samples := selectSamples(records, model.DirAToB, model.TransportTCP, 100)
	if len(samples) != 9 { // 40 - 30 initial - 1 unsegmented
		t.Errorf("got %d samples, want 9", len(samples))
	}
}
