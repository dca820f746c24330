package p2p

import (
	"net"
	"net/url"
	"testing"
)

func TestLanHostPort(t *testing.T) {
	cases := []struct {
		ip   string
		want string
	}{
		{"192.168.1.20", "192.168.1.20:7900"},
		{"2001:db8::1", "[2001:db8::1]:7900"},
	}
	for _, c := range cases {
		t.Run(c.ip, func(t *testing.T) {
			got := lanHostPort(net.ParseIP(c.ip), 7900)
			if got != c.want {
				t.Fatalf("lanHostPort(%s) = %q, want %q", c.ip, got, c.want)
			}

			// The address must survive as the host of a media locator.
			u, err := url.Parse("http://" + got + "/media/a.mp4")
			if err != nil {
				t.Fatalf("locator does not parse: %v", err)
			}
			if u.Hostname() != c.ip {
				t.Fatalf("locator host %q, want %q", u.Hostname(), c.ip)
			}
		})
	}
}
