// Command openvpn-fingerprint runs one of the two independent OpenVPN
// fingerprint checks against a captured trace and prints the verdict.
package main

import (
	"fmt"
	"os"

	"github.com/googlesky/vpnspotter/internal/pipeline"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <path> <opcode|ack>\n", os.Args[0])
		os.Exit(2)
	}

	path, check := os.Args[1], os.Args[2]

	isOpenVPN, err := pipeline.RunOpenVPNFingerprint(path, check)
	if err != nil {
		fmt.Fprintf(os.Stderr, "openvpn-fingerprint: %v\n", err)
		os.Exit(1)
	}

	if isOpenVPN {
		fmt.Println("openvpn")
	} else {
		fmt.Println("not openvpn")
	}
}
