package tracking

import (
	"net"
	"strings"
)

const (
	// DefaultProbeAddr is dialed over UDP only to learn the outbound interface;
	// no datagram is sent.
	DefaultProbeAddr = "8.8.8.8:80"
	// LoopbackAddress is used when the outbound address cannot be determined.
	LoopbackAddress = "127.0.0.1"
)

// OutboundAddress returns the IPv4 address the OS would route traffic to probe
// from. It never fails; any problem yields LoopbackAddress.
func OutboundAddress(probe string) string {
	if probe == "" {
		probe = DefaultProbeAddr
	}
	conn, err := net.Dial("udp4", probe)
	if err != nil {
		return LoopbackAddress
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP.To4() == nil || addr.IP.IsUnspecified() {
		return LoopbackAddress
	}
	return addr.IP.String()
}

// WithDetectedAddress fills a blank SourceAddress from the outbound interface.
func (r RecipientInfo) WithDetectedAddress(probe string) RecipientInfo {
	if strings.TrimSpace(r.SourceAddress) == "" {
		r.SourceAddress = OutboundAddress(probe)
	}
	return r
}
