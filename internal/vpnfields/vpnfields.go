// Package vpnfields implements the fixed-offset opcode/length extractors
// used by the OpenVPN, WireGuard, and IKEv2 heuristics. Every accessor is
// bounds-checked against the payload slice's length instead of trusting the
// caller, per the checked-byte-slice-view redesign: callers still must
// guarantee payload_length >= the extractor's minimum for a meaningful
// (non-zero) result, but an undersized slice never panics.
package vpnfields

import "encoding/binary"

// OpenVPNOpcode extracts the OpenVPN opcode: the top 5 bits of the opcode
// byte, which sits at offset 2 for TCP framing (after the 2-byte length
// prefix) and offset 0 for UDP.
func OpenVPNOpcode(payload []byte, isTCP bool) uint8 {
	off := 0
	if isTCP {
		off = 2
	}
	if len(payload) <= off {
		return 0
	}
	return payload[off] >> 3
}

// OpenVPNLengthHint extracts the big-endian 16-bit length prefix OpenVPN's
// TCP framing carries at offset 0. UDP framing has no such prefix.
func OpenVPNLengthHint(payload []byte, isTCP bool) uint16 {
	if !isTCP {
		return 0
	}
	if len(payload) < 2 {
		return 0
	}
	return binary.BigEndian.Uint16(payload[0:2])
}

// WireGuardOpcode extracts the low byte of WireGuard's little-endian
// message-type word (offset 0). UDP only.
func WireGuardOpcode(payload []byte, isUDP bool) uint8 {
	if !isUDP || len(payload) < 1 {
		return 0
	}
	return payload[0]
}

// IKEv2Opcode extracts the Exchange Type field at offset 18. UDP only.
func IKEv2Opcode(payload []byte, isUDP bool) uint8 {
	if !isUDP || len(payload) < 19 {
		return 0
	}
	return payload[18]
}

// IKEv2Marker extracts the first 4 bytes as a big-endian u32, used to
// discriminate the non-ESP marker (0x00000000) from an ESP SPI. UDP only.
func IKEv2Marker(payload []byte, isUDP bool) uint32 {
	if !isUDP || len(payload) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(payload[0:4])
}

// opcodeNames mirrors the OpenVPN opcode table used for debug output; index
// 0 is reserved (no packet ever carries opcode 0).
var opcodeNames = []string{
	"NONE",
	"P_CONTROL_HARD_RESET_CLIENT_V1",
	"P_CONTROL_HARD_RESET_SERVER_V1",
	"P_CONTROL_SOFT_RESET_V1",
	"P_CONTROL_V1",
	"P_ACK_V1",
	"P_DATA_V1",
	"P_CONTROL_HARD_RESET_CLIENT_V2",
	"P_CONTROL_HARD_RESET_SERVER_V2",
	"P_DATA_V2",
}

// OpenVPNOpcodeName returns the symbolic name for an OpenVPN opcode, or ""
// if the opcode is out of range.
func OpenVPNOpcodeName(opcode uint8) string {
	if int(opcode) >= len(opcodeNames) {
		return ""
	}
	return opcodeNames[opcode]
}
