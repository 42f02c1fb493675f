package wire

import "net"

// DestinationKind selects which socket a Destination is sent through.
type DestinationKind int

const (
	DestUnicast DestinationKind = iota
	DestBroadcast
	DestMulticast
)

// Destination names where a Message should be sent: a specific peer's
// unicast address, the broadcast address on the well-known unicast port,
// or a room's multicast group.
type Destination struct {
	Kind DestinationKind
	Addr net.UDPAddr
}

func Unicast(addr net.UDPAddr) Destination {
	return Destination{Kind: DestUnicast, Addr: addr}
}

func Broadcast(port uint16) Destination {
	return Destination{Kind: DestBroadcast, Addr: net.UDPAddr{IP: net.IPv4bcast, Port: int(port)}}
}

func Multicast(groupAddr net.UDPAddr) Destination {
	return Destination{Kind: DestMulticast, Addr: groupAddr}
}
