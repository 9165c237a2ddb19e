//go:build linux

// Package netmeta resolves the link-layer type of a named live network
// interface via netlink RTM_GETLINK, the same netlink.Conn/netlink.Message
// idiom the teacher's platform collector uses for SOCK_DIAG queries,
// repurposed here from socket enumeration to a one-shot link-type lookup.
package netmeta

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/googlesky/vpnspotter/internal/model"
	"github.com/mdlayher/netlink"
)

const (
	netlinkRoute = 0 // NETLINK_ROUTE

	rtmGetLink = 18 // RTM_GETLINK

	iflaIfname = 3 // IFLA_IFNAME attribute type

	arphrdEther = 1 // ARPHRD_ETHER
)

// ErrInterfaceNotFound is returned when no link with the given name appears
// in the RTM_GETLINK dump.
var ErrInterfaceNotFound = errors.New("netmeta: interface not found")

// ifInfomsg mirrors the kernel's struct ifinfomsg, the fixed header every
// RTM_GETLINK response carries ahead of its attribute list.
type ifInfomsg struct {
	Family uint8
	_      uint8
	Type   uint16
	Index  int32
	Flags  uint32
	Change uint32
}

const ifInfomsgLen = 16

// LinkType dials NETLINK_ROUTE, dumps all links, and returns the
// model.LinkType matching the named interface's hardware type: Ethernet
// for ARPHRD_ETHER, Raw for anything else (PPP, tunnel devices, loopback).
func LinkType(ifaceName string) (model.LinkType, error) {
	conn, err := netlink.Dial(netlinkRoute, nil)
	if err != nil {
		return model.LinkEthernet, fmt.Errorf("netmeta: dial netlink: %w", err)
	}
	defer conn.Close()

	req := netlink.Message{
		Header: netlink.Header{
			Type:  netlink.HeaderType(rtmGetLink),
			Flags: netlink.Request | netlink.Dump,
		},
		Data: make([]byte, ifInfomsgLen),
	}

	resp, err := conn.Execute(req)
	if err != nil {
		return model.LinkEthernet, fmt.Errorf("netmeta: RTM_GETLINK: %w", err)
	}

	for _, m := range resp {
		if len(m.Data) < ifInfomsgLen {
			continue
		}
		info := ifInfomsg{
			Family: m.Data[0],
			Type:   binary.LittleEndian.Uint16(m.Data[2:4]),
			Index:  int32(binary.LittleEndian.Uint32(m.Data[4:8])),
			Flags:  binary.LittleEndian.Uint32(m.Data[8:12]),
			Change: binary.LittleEndian.Uint32(m.Data[12:16]),
		}

		attrs, err := netlink.UnmarshalAttributes(m.Data[ifInfomsgLen:])
		if err != nil {
			continue
		}

		for _, a := range attrs {
			if a.Type != iflaIfname {
				continue
			}
			name := trimNullString(a.Data)
			if name != ifaceName {
				continue
			}
			if info.Type == arphrdEther {
				return model.LinkEthernet, nil
			}
			return model.LinkRaw, nil
		}
	}

	return model.LinkEthernet, ErrInterfaceNotFound
}

func trimNullString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
