package server

import (
	"net"

	"github.com/brightloom/vncd/config"
	"github.com/brightloom/vncd/encoding"
)

// resolveProfile turns the configured override (if any) and a
// connection's remote address into the encoding.NetworkProfile the
// selector reasons about: loopback addresses are treated as localhost,
// RFC 1918/4193 private ranges as LAN, and everything else as WAN.
func resolveProfile(override config.NetworkProfile, remote net.Addr) encoding.NetworkProfile {
	switch override {
	case config.ProfileLocalhost:
		return encoding.ProfileLocalhost
	case config.ProfileLAN:
		return encoding.ProfileLAN
	case config.ProfileWAN:
		return encoding.ProfileWAN
	}
	return detectProfile(remote)
}

func detectProfile(remote net.Addr) encoding.NetworkProfile {
	host, _, err := net.SplitHostPort(remote.String())
	if err != nil {
		host = remote.String()
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return encoding.ProfileWAN
	}
	if ip.IsLoopback() {
		return encoding.ProfileLocalhost
	}
	if ip.IsPrivate() {
		return encoding.ProfileLAN
	}
	return encoding.ProfileWAN
}
