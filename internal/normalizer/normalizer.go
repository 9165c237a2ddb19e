// Package normalizer drives the frame decoder over a capture.FrameSource,
// building the per-payload record sequence the rest of the pipeline
// analyzes: one model.PacketRecord per frame that carries a usable L4
// payload, direction assigned relative to the first such record's source
// address, payload truncated or zero-padded to a fixed column count.
package normalizer

import (
	"errors"
	"fmt"
	"io"

	"github.com/googlesky/vpnspotter/internal/capture"
	"github.com/googlesky/vpnspotter/internal/decoder"
	"github.com/googlesky/vpnspotter/internal/model"
	"github.com/googlesky/vpnspotter/internal/vpnfields"
)

// ErrNoPayloadCarryingFrames is returned when a trace yields zero frames
// with a usable L4 payload — there is no endpoint pair to assign A/B
// against at all.
var ErrNoPayloadCarryingFrames = errors.New("normalizer: trace has no usable payload frames")

// Result is the output of a normalization pass: the built records plus the
// per-direction tallies the filter ensemble's preliminary direction choice
// and the "exactly one endpoint pair" precondition check are derived from.
type Result struct {
	Records       []model.PacketRecord
	CountAToB     int
	CountBToA     int
	EndpointPairs int // distinct {src,dst} address pairs observed among payload-carrying frames
	FramesScanned int // includes frames skipped by the decoder
}

// addrPair is an unordered {src,dst} key: A->B and B->A frames of the same
// conversation share one pair, matching the original's "either address
// falls outside the first packet's pair" rejection rather than treating the
// forward and reverse legs as two distinct endpoints.
type addrPair struct {
	lo, hi [4]byte
}

func makeAddrPair(a, b [4]byte) addrPair {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return addrPair{lo: a, hi: b}
			}
			return addrPair{lo: b, hi: a}
		}
	}
	return addrPair{lo: a, hi: b}
}

// Build consumes src to exhaustion (or until maxRecords payload-carrying
// records have been built, when maxRecords > 0) and returns the normalized
// record sequence. numBytes is the fixed payload column count B: each
// record's Payload is truncated or zero-padded to exactly numBytes.
func Build(src capture.FrameSource, numBytes int, maxRecords int) (Result, error) {
	var res Result
	var firstSrcIP [4]byte
	haveFirst := false
	seenPairs := make(map[addrPair]bool)

	for {
		if maxRecords > 0 && len(res.Records) >= maxRecords {
			break
		}

		frame, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("normalizer: read frame: %w", err)
		}
		res.FramesScanned++

		dres, err := decoder.Decode(frame)
		if err != nil {
			continue
		}

		seenPairs[makeAddrPair(dres.SrcIP, dres.DstIP)] = true
		if !haveFirst {
			firstSrcIP = dres.SrcIP
			haveFirst = true
		}

		direction := model.DirAToB
		if dres.SrcIP != firstSrcIP {
			direction = model.DirBToA
		}

		payload := payloadColumns(frame.Data, dres, numBytes)
		isTCP := dres.Transport == model.TransportTCP
		isUDP := !isTCP

		rec := model.PacketRecord{
			Timestamp:     frame.Timestamp,
			Transport:     dres.Transport,
			Direction:     direction,
			PayloadLength: dres.PayloadLength,
			Payload:       payload,
			PacketCount:   res.FramesScanned,
			OpenVPN: model.OpenVPNFields{
				Opcode:        vpnfields.OpenVPNOpcode(payload, isTCP),
				LengthHint:    vpnfields.OpenVPNLengthHint(payload, isTCP),
				PayloadLength: openvpnPayloadLength(dres.PayloadLength),
			},
			WireGuard: model.WireGuardFields{
				Opcode: vpnfields.WireGuardOpcode(payload, isUDP),
			},
			IKEv2: model.IKEv2Fields{
				Opcode: vpnfields.IKEv2Opcode(payload, isUDP),
				Marker: vpnfields.IKEv2Marker(payload, isUDP),
			},
		}

		if direction == model.DirAToB {
			res.CountAToB++
		} else {
			res.CountBToA++
		}

		res.Records = append(res.Records, rec)
	}

	res.EndpointPairs = len(seenPairs)

	if len(res.Records) == 0 {
		return res, ErrNoPayloadCarryingFrames
	}

	total := model.DirAToB
	if res.CountBToA > res.CountAToB {
		total = model.DirBToA
	}
	res.Records[0].TotalDirection = total

	return res, nil
}

// openvpnPayloadLength mirrors the original's separate OpenVPN-specific
// payload_length, which excludes the 2-byte length prefix TCP framing
// always has leading it. The 2 bytes are subtracted for UDP records too,
// although UDP framing carries no such prefix. Clamped at 0 so a
// shorter-than-prefix payload never wraps negative.
func openvpnPayloadLength(l4PayloadLength int) uint16 {
	n := l4PayloadLength - 2
	if n < 0 {
		n = 0
	}
	return uint16(n)
}

// payloadColumns returns the first numBytes bytes of the decoded L4
// payload, zero-padded if the real payload is shorter.
func payloadColumns(frameData []byte, dres decoder.Result, numBytes int) []byte {
	out := make([]byte, numBytes)
	end := dres.PayloadOffset + dres.PayloadLength
	if end > len(frameData) {
		end = len(frameData)
	}
	avail := frameData[dres.PayloadOffset:end]
	n := copy(out, avail)
	_ = n
	return out
}
