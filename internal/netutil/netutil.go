// Package netutil holds small network-address helpers shared by the
// sender, listeners, and coordinator bootstrap: resolving the outbound
// interface, picking a multicast-capable interface, and minting multicast
// group addresses for new rooms.
package netutil

import (
	"crypto/rand"
	"fmt"
	"net"
)

// ResolveOutboundIP learns the local IPv4 address that would be used to
// reach dialAddr, by "dummy-connecting" a UDP socket to it: no packet is
// ever written, the kernel just has to pick a route and a source address
// for the connect(2) call. dialAddr is typically a well-known, always-up
// external host:port (e.g. "8.8.8.8:53"); it is never otherwise contacted.
func ResolveOutboundIP(dialAddr string) (net.IP, error) {
	conn, err := net.Dial("udp4", dialAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve outbound address: %w", err)
	}
	defer conn.Close()

	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("unexpected local address type %T", conn.LocalAddr())
	}
	return local.IP, nil
}

// FindInterfaceByIP validates ip as IPv4 and returns the non-loopback
// network interface that has it assigned.
func FindInterfaceByIP(ip net.IP) (*net.Interface, error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("not a valid IPv4 address: %v", ip)
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ifaceIP net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ifaceIP = v.IP
			case *net.IPAddr:
				ifaceIP = v.IP
			}

			if ifaceIP != nil && ifaceIP.Equal(ip) {
				return &iface, nil
			}
		}
	}

	return nil, fmt.Errorf("IP %v not found on any non-loopback interface", ip)
}

// MulticastInterface returns the first interface that is up and supports
// multicast. Interface *selection policy* is out of scope for this system
// (treated as a thin collaborator, see SPEC_FULL.md §1) — this picks
// whichever viable interface comes first so that joining a group always
// has somewhere concrete to bind.
func MulticastInterface() (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		if iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		return &iface, nil
	}

	return nil, fmt.Errorf("no multicast-capable network interface found")
}

// inExcludedSubrange reports whether a 239.x.0.0 group with the given
// second octet falls outside the range room multicast groups are drawn
// from: 239.1.0.0 - 239.255.255.255, i.e. 239.0.0.0/8 with the
// 239.0.0.0/16 (reserved for local scoping conventions) and 239.192.0.0/14
// (organization-local scope) subranges excluded.
func inExcludedSubrange(secondOctet byte) bool {
	if secondOctet == 0 {
		return true // 239.0.0.0/16
	}
	if secondOctet >= 192 && secondOctet <= 195 {
		return true // 239.192.0.0/14
	}
	return false
}

// RandomMulticastGroup returns a random IPv4 multicast address in the
// administratively-scoped range, suitable for a fresh room.
func RandomMulticastGroup() (net.IP, error) {
	for {
		var octets [3]byte
		if _, err := rand.Read(octets[:]); err != nil {
			return nil, fmt.Errorf("failed to generate random multicast address: %w", err)
		}

		if inExcludedSubrange(octets[0]) {
			continue
		}

		return net.IPv4(239, octets[0], octets[1], octets[2]), nil
	}
}

func ValidatePort(port uint16) error {
	if port == 0 {
		return fmt.Errorf("port cannot be 0")
	}
	return nil
}

func FormatAddress(ip net.IP, port uint16) string {
	return fmt.Sprintf("%s:%d", ip.String(), port)
}
