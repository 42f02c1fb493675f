// Package datagram holds the two socket constructors shared by the
// sender and the listeners: a single broadcast-capable unicast socket,
// and per-room multicast group joins. Grounded on the teacher's
// internal/broadcast.Listen (SO_REUSEADDR/SO_REUSEPORT via
// golang.org/x/sys/unix) and internal/multicast's
// InitializeMulticastListener (IP_ADD_MEMBERSHIP via SetsockoptIPMreqn).
package datagram

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// NewBroadcastCapableSocket binds :port with SO_REUSEADDR/SO_REUSEPORT and
// enables SO_BROADCAST, so the returned socket both receives unicast and
// broadcast datagrams and can send broadcast ones. Every peer in the
// system binds the same well-known port this way.
func NewBroadcastCapableSocket(port uint16) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var opErr error
			err := c.Control(func(fd uintptr) {
				opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if opErr != nil {
					return
				}
				opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
				if opErr != nil {
					return
				}
				opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
			})
			if err != nil {
				return err
			}
			return opErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("datagram: failed to bind broadcast-capable socket on port %d: %w", port, err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("datagram: unexpected packet conn type %T", pc)
	}
	return conn, nil
}

// JoinMulticastGroup opens a receive socket bound to groupAddr's port,
// joins the group on iface via IP_ADD_MEMBERSHIP, and opens a second,
// connected socket for sends. Both sockets must be closed by the caller
// when the room is abandoned.
func JoinMulticastGroup(groupAddr *net.UDPAddr, iface *net.Interface) (recv *net.UDPConn, send *net.UDPConn, err error) {
	ip4 := groupAddr.IP.To4()
	if ip4 == nil {
		return nil, nil, fmt.Errorf("datagram: multicast group address must be IPv4, got %v", groupAddr.IP)
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var opErr error
			err := c.Control(func(fd uintptr) {
				opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if opErr != nil {
					return
				}
				opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
			})
			if err != nil {
				return err
			}
			return opErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", fmt.Sprintf(":%d", groupAddr.Port))
	if err != nil {
		return nil, nil, fmt.Errorf("datagram: failed to bind multicast receive socket: %w", err)
	}
	recv, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, nil, fmt.Errorf("datagram: unexpected packet conn type %T", pc)
	}

	rc, err := recv.SyscallConn()
	if err != nil {
		recv.Close()
		return nil, nil, fmt.Errorf("datagram: failed to access multicast socket fd: %w", err)
	}

	mreq := &unix.IPMreqn{
		Multiaddr: [4]byte{ip4[0], ip4[1], ip4[2], ip4[3]},
	}
	if iface != nil {
		mreq.Ifindex = int32(iface.Index)
	}

	var joinErr error
	if ctrlErr := rc.Control(func(fd uintptr) {
		joinErr = unix.SetsockoptIPMreqn(int(fd), unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq)
	}); ctrlErr != nil {
		recv.Close()
		return nil, nil, fmt.Errorf("datagram: failed to control multicast socket: %w", ctrlErr)
	}
	if joinErr != nil {
		recv.Close()
		return nil, nil, fmt.Errorf("datagram: failed to join multicast group %s: %w", groupAddr.IP, joinErr)
	}

	send, err = net.DialUDP("udp4", nil, groupAddr)
	if err != nil {
		recv.Close()
		return nil, nil, fmt.Errorf("datagram: failed to open multicast send socket: %w", err)
	}

	return recv, send, nil
}
