// Package pcapfile implements a minimal reader for the classic
// tcpdump/libpcap capture file format (24-byte global header followed by a
// stream of 16-byte packet headers + frame bytes). It is deliberately
// thin: no pcapng, no nanosecond-resolution variant, no live capture —
// just enough to feed a capture.FrameSource from a file on disk, since the
// capture-file reader is an external collaborator to the analysis itself.
package pcapfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/googlesky/vpnspotter/internal/model"
)

const (
	magicLittleEndian = 0xa1b2c3d4
	magicSwapped      = 0xd4c3b2a1

	globalHeaderLen = 24
	recordHeaderLen = 16
)

// LinkType values from the pcap global header's "network" field that this
// reader understands; anything else is given the caller's fallback link
// type (LinkRaw for Open, so the decoder parses it starting at the IP
// header).
const (
	dltEN10MB = 1
)

// Reader is a capture.FrameSource over a classic pcap file.
type Reader struct {
	f        *os.File
	r        *bufio.Reader
	order    binary.ByteOrder
	linkType model.LinkType
}

// Open reads the global header from path and returns a Reader positioned
// at the first packet record. A global header "network" field this reader
// doesn't recognize by name falls back to LinkRaw; use OpenWithFallback to
// pick a different default when the caller has resolved a more specific
// link type out of band (e.g. from a live interface).
func Open(path string) (*Reader, error) {
	return OpenWithFallback(path, model.LinkRaw)
}

// OpenWithFallback behaves like Open, but uses fallback as the link type
// whenever the pcap global header's "network" field is ambiguous to this
// reader instead of always defaulting to LinkRaw.
func OpenWithFallback(path string, fallback model.LinkType) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pcapfile: open %s: %w", path, err)
	}

	r := bufio.NewReader(f)
	header := make([]byte, globalHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("pcapfile: read global header: %w", err)
	}

	var order binary.ByteOrder
	switch binary.LittleEndian.Uint32(header[0:4]) {
	case magicLittleEndian:
		order = binary.LittleEndian
	case magicSwapped:
		order = binary.BigEndian
	default:
		f.Close()
		return nil, fmt.Errorf("pcapfile: %s is not a classic pcap file", path)
	}

	network := order.Uint32(header[20:24])
	linkType := fallback
	if network == dltEN10MB {
		linkType = model.LinkEthernet
	}

	return &Reader{f: f, r: r, order: order, linkType: linkType}, nil
}

// Next reads the next packet record, returning io.EOF once the file is
// exhausted.
func (r *Reader) Next() (model.Frame, error) {
	header := make([]byte, recordHeaderLen)
	if _, err := io.ReadFull(r.r, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		return model.Frame{}, err
	}

	tsSec := r.order.Uint32(header[0:4])
	tsUsec := r.order.Uint32(header[4:8])
	caplen := r.order.Uint32(header[8:12])

	data := make([]byte, caplen)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return model.Frame{}, fmt.Errorf("pcapfile: truncated record: %w", err)
	}

	return model.Frame{
		Timestamp: model.Timestamp{Sec: int64(tsSec), Usec: int64(tsUsec)},
		LinkType:  r.linkType,
		Data:      data,
	}, nil
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}
