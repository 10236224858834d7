// Package privacy reduces client network identifiers before they reach logs.
package privacy

import "net/netip"

// AnonymizeIP masks an address to the network it came from: /24 for IPv4
// (including IPv4-mapped IPv6) and /48 for IPv6. The result is the masked
// prefix in CIDR form, "unknown" for an empty input and "invalid" when the
// input does not parse.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap().WithZone("")

	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.String()
}
