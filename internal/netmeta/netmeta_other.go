//go:build !linux

package netmeta

import (
	"errors"

	"github.com/googlesky/vpnspotter/internal/model"
)

// ErrUnsupportedPlatform is returned by LinkType on platforms without a
// netlink RTM_GETLINK implementation.
var ErrUnsupportedPlatform = errors.New("netmeta: link-type resolution requires linux")

// LinkType is unavailable outside Linux; callers fall back to the default
// Ethernet assumption.
func LinkType(ifaceName string) (model.LinkType, error) {
	return model.LinkEthernet, ErrUnsupportedPlatform
}
