// Package link carries rayon frames between nodes. An implementation owns
// the node's local interfaces; Send floods a frame to every neighbour
// sharing the interface's medium, and Inbound delivers received frames
// tagged with their ingress interface for the process lifetime.
package link

import (
	"net/netip"

	"github.com/encodeous/rayon/state"
)

type Inbound struct {
	Payload []byte
	Iface   state.Iface
}

type ActiveNeighbour struct {
	Endpoint netip.AddrPort
	Iface    state.Iface
}

type Layer interface {
	Interfaces() []state.LocalInterface
	// Send floods payload to all neighbours reachable on iface. Failures on
	// individual neighbours are isolated; the returned error only reports.
	Send(iface state.Iface, payload []byte) error
	Inbound() <-chan Inbound
	// ActiveNeighbours lists endpoints heard from recently.
	ActiveNeighbours() []ActiveNeighbour
	Close() error
}
