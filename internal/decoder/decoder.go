// Package decoder turns one raw captured link-layer frame into the
// transport protocol, payload offset, and payload length the normalizer
// needs — or a skip decision, mirroring the fixed-offset, bounds-checked
// byte walk the teacher's AF_PACKET capture path uses, generalized from
// "count bytes for a flow key" to "locate the application payload".
package decoder

import (
	"encoding/binary"
	"errors"

	"github.com/googlesky/vpnspotter/internal/model"
)

const (
	ethernetHeaderLen = 14
	udpHeaderLen      = 8

	ipProtoTCP = 6
	ipProtoUDP = 17
)

// ErrSkip is returned (possibly wrapped) for frames that carry no usable
// application payload: non-IPv4, malformed IP header, non-TCP/UDP
// transport, or zero-length payload. It is not a failure of the run — the
// normalizer simply moves on to the next frame.
var ErrSkip = errors.New("decoder: frame has no usable payload")

// Result describes where the application-layer payload lives within a
// decoded frame.
type Result struct {
	Transport     model.Transport
	SrcIP         [4]byte
	DstIP         [4]byte
	PayloadOffset int
	PayloadLength int
}

// Decode locates the application payload in a captured frame. It strips a
// 14-byte Ethernet header when the frame's link type is Ethernet, leaves
// the offset at zero otherwise, then parses a fixed-offset IPv4 header and
// branches on the protocol field for TCP/UDP header lengths.
func Decode(f model.Frame) (Result, error) {
	data := f.Data

	ethSize := 0
	if f.LinkType == model.LinkEthernet {
		ethSize = ethernetHeaderLen
	}
	if len(data) < ethSize+20 {
		return Result{}, ErrSkip
	}

	ip := data[ethSize:]
	versionIHL := ip[0]
	if versionIHL>>4 != 4 {
		return Result{}, ErrSkip
	}
	ihl := int(versionIHL&0x0f) * 4
	if ihl < 20 {
		return Result{}, ErrSkip
	}
	if len(ip) < ihl {
		return Result{}, ErrSkip
	}

	totalLen := int(binary.BigEndian.Uint16(ip[2:4]))
	if ihl > totalLen && totalLen != 0 {
		return Result{}, ErrSkip
	}

	var srcIP, dstIP [4]byte
	copy(srcIP[:], ip[12:16])
	copy(dstIP[:], ip[16:20])

	proto := ip[9]
	l4 := ip[ihl:]

	var l4HeaderLen int
	var transport model.Transport
	switch proto {
	case ipProtoTCP:
		if len(l4) < 14 {
			return Result{}, ErrSkip
		}
		dataOffset := int(l4[12]>>4) * 4
		l4HeaderLen = dataOffset
		transport = model.TransportTCP
	case ipProtoUDP:
		if len(l4) < udpHeaderLen {
			return Result{}, ErrSkip
		}
		l4HeaderLen = udpHeaderLen
		transport = model.TransportUDP
	default:
		return Result{}, ErrSkip
	}

	payloadLen := totalLen - ihl - l4HeaderLen
	if payloadLen <= 0 {
		return Result{}, ErrSkip
	}

	payloadOffset := ethSize + ihl + l4HeaderLen
	if len(data) < payloadOffset {
		return Result{}, ErrSkip
	}

	return Result{
		Transport:     transport,
		SrcIP:         srcIP,
		DstIP:         dstIP,
		PayloadOffset: payloadOffset,
		PayloadLength: payloadLen,
	}, nil
}
