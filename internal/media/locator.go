// Package media builds library descriptors from files and classifies source
// locators. The engine never decodes media itself; this package only probes
// metadata and decides whether a locator can be resolved by other devices.
package media

import (
	"net"
	"net/url"
	"strings"
)

// IsPortable reports whether other devices can resolve the locator. A
// local-only reference (file path, blob/data URL, loopback host) must never be
// announced as playable: the receiving device would get an unusable reference.
func IsPortable(locator string) bool {
	if strings.TrimSpace(locator) == "" {
		return false
	}

	u, err := url.Parse(locator)
	if err != nil {
		return false
	}

	switch u.Scheme {
	case "http", "https":
	default:
		// file:, blob:, data:, bare paths — all scoped to the creating device.
		return false
	}

	host := u.Hostname()
	if host == "" || host == "localhost" {
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return false
		}
	}
	return true
}
