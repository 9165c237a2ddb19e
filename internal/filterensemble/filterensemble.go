// Package filterensemble implements the three independent per-packet noise
// filters (latency, length-prefix correlation, zero-bit-run) and the vote
// aggregator that combines them into a segmentation decision and an
// analysis-direction choice.
package filterensemble

import (
	"errors"
	"sort"

	"github.com/googlesky/vpnspotter/internal/clock"
	"github.com/googlesky/vpnspotter/internal/model"
)

// ErrInsufficientPackets is returned when neither direction retains at
// least nbPacketsNeeded segmented records after the vote.
var ErrInsufficientPackets = errors.New("filterensemble: neither direction has enough segmented packets")

// Config holds the per-run filter selection and thresholds. The three
// *Enabled flags come from the CLI's comma-separated -filter list; a
// disabled filter never contributes to a record's vote sum, it is not
// treated as a filter that always votes 0.
type Config struct {
	LatencyEnabled bool
	ZeroEnabled    bool
	LengthEnabled  bool

	NbFilterNeeded    int
	LatencyPercentage float64
	ZeroThreshold     int
}

// Apply runs the enabled filters over records in place, then the vote
// aggregator, and returns the chosen analysis direction (also written to
// records[0].TotalDirection).
func Apply(records []model.PacketRecord, numBytes int, nbPacketsNeeded int, cfg Config) (model.Direction, error) {
	if cfg.LatencyEnabled {
		filterByLatency(records, cfg.LatencyPercentage)
	}
	if cfg.LengthEnabled {
		filterByLength(records, numBytes)
	}
	if cfg.ZeroEnabled {
		filterByZero(records, cfg.ZeroThreshold)
	}
	return vote(records, cfg, nbPacketsNeeded)
}

type gapEntry struct {
	idx   int
	value int64
}

// filterByLatency computes inter-arrival gaps with a separate "previous
// timestamp" per direction, starting at the zero timeval, then ranks all
// gaps across both directions together and discards (marks NOT_USED) the
// lowest floor(percentage*N/100) of them.
func filterByLatency(records []model.PacketRecord, percentage float64) {
	var previous [2]model.Timestamp // indexed by model.Direction
	gaps := make([]gapEntry, len(records))

	for i, rec := range records {
		prev := previous[rec.Direction]
		gap := clock.Subtract(rec.Timestamp, prev)
		gaps[i] = gapEntry{idx: i, value: gap.Sec*1_000_000 + gap.Usec}
		previous[rec.Direction] = rec.Timestamp
	}

	sort.SliceStable(gaps, func(i, j int) bool { return gaps[i].value < gaps[j].value })

	n := len(gaps)
	discard := int(percentage * float64(n) / 100)
	if discard < 0 {
		discard = 0
	}
	if discard > n {
		discard = n
	}

	for rank, g := range gaps {
		records[g.idx].FilterByLatency = rank >= discard
	}
}

// neededLengthBytes returns the minimum number of bytes (1..4) required to
// represent payloadLength as an unsigned integer.
func neededLengthBytes(payloadLength int) int {
	switch {
	case payloadLength <= 0xFF:
		return 1
	case payloadLength <= 0xFFFF:
		return 2
	case payloadLength <= 0xFFFFFF:
		return 3
	default:
		return 4
	}
}

func readUintAt(payload []byte, offset, width int, bigEndian bool) int {
	v := 0
	if bigEndian {
		for i := 0; i < width; i++ {
			v = v<<8 | int(payload[offset+i])
		}
	} else {
		for i := width - 1; i >= 0; i-- {
			v = v<<8 | int(payload[offset+i])
		}
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// filterByLength scans, for each record, every offset where a k-byte
// big-endian or little-endian read could plausibly encode payload_length,
// where k is the minimal width needed to represent payload_length at all.
func filterByLength(records []model.PacketRecord, numBytes int) {
	for i := range records {
		rec := &records[i]
		k := neededLengthBytes(rec.PayloadLength)
		used := false
		for o := 0; o <= numBytes-k && !used; o++ {
			be := readUintAt(rec.Payload, o, k, true)
			le := readUintAt(rec.Payload, o, k, false)
			if absInt(be-rec.PayloadLength) <= 8 || absInt(le-rec.PayloadLength) <= 8 {
				used = true
			}
		}
		rec.FilterByLength = used
	}
}

// filterByZero marks a record USED iff its payload contains a run of at
// least zeroThreshold consecutive zero bits.
func filterByZero(records []model.PacketRecord, zeroThreshold int) {
	for i := range records {
		rec := &records[i]
		run := 0
		used := false
	scan:
		for _, b := range rec.Payload {
			for bit := 7; bit >= 0; bit-- {
				if b&(1<<uint(bit)) == 0 {
					run++
					if run >= zeroThreshold {
						used = true
						break scan
					}
				} else {
					run = 0
				}
			}
		}
		rec.FilterByZero = used
	}
}

// vote aggregates the enabled filter flags into packet_segmented and
// chooses the analysis direction. UDP traces bypass segmentation entirely:
// every record is marked segmented, and direction is whatever the
// normalizer's preliminary majority vote already assigned.
func vote(records []model.PacketRecord, cfg Config, nbPacketsNeeded int) (model.Direction, error) {
	isUDP := len(records) > 0 && records[0].Transport == model.TransportUDP

	if isUDP {
		// UDP traces skip segmentation entirely: every record is marked
		// segmented, and the count/threshold gate never runs. Direction is
		// whatever the normalizer's preliminary majority vote assigned.
		preliminary := records[0].TotalDirection
		for i := range records {
			records[i].PacketSegmented = true
			records[i].TotalDirection = preliminary
		}
		return preliminary, nil
	}

	for i := range records {
		rec := &records[i]
		sum := 0
		if cfg.LatencyEnabled && rec.FilterByLatency {
			sum++
		}
		if cfg.ZeroEnabled && rec.FilterByZero {
			sum++
		}
		if cfg.LengthEnabled && rec.FilterByLength {
			sum++
		}
		rec.PacketSegmented = sum >= cfg.NbFilterNeeded
	}

	var countAToB, countBToA int
	for _, rec := range records {
		if !rec.PacketSegmented {
			continue
		}
		if rec.Direction == model.DirAToB {
			countAToB++
		} else {
			countBToA++
		}
	}

	var total model.Direction
	switch {
	case countAToB >= nbPacketsNeeded:
		total = model.DirAToB
	case countBToA >= nbPacketsNeeded:
		total = model.DirBToA
	default:
		return 0, ErrInsufficientPackets
	}

	if len(records) > 0 {
		records[0].TotalDirection = total
	}
	return total, nil
}
