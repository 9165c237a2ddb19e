package netmeta

import "net"

// DetectDefaultInterface returns the name of the interface that owns the
// local route to the public internet, used when -live_iface is left blank.
// It falls back to the first non-loopback, up interface with an address.
func DetectDefaultInterface() string {
	conn, err := net.Dial("udp4", "8.8.8.8:53")
	if err != nil {
		return fallbackInterface()
	}
	defer conn.Close()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return fallbackInterface()
	}
	targetIP := localAddr.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip != nil && ip.Equal(targetIP) {
				return iface.Name
			}
		}
	}

	return fallbackInterface()
}

func fallbackInterface() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if addrs, _ := iface.Addrs(); len(addrs) > 0 {
			return iface.Name
		}
	}
	return ""
}
