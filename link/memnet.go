package link

import (
	"fmt"
	"net/netip"
	"slices"
	"sync"

	"github.com/encodeous/rayon/state"
)

// Network is an in-memory shared-medium fabric. Each named bus behaves like
// one broadcast segment: a send on an attached interface is delivered to
// every other port on the same bus. Used to exercise full nodes without
// sockets.
type Network struct {
	mu    sync.Mutex
	buses map[string][]*memPort
}

type memPort struct {
	layer *Mem
	iface state.Iface
	bus   string
}

func NewNetwork() *Network {
	return &Network{buses: make(map[string][]*memPort)}
}

// Mem is one node's view of the fabric, implementing Layer.
type Mem struct {
	net     *Network
	node    string
	ifaces  []state.LocalInterface
	ports   []*memPort
	inbound chan Inbound
	mu      sync.Mutex
	closed  bool
	// FailSend, when set, simulates a transmit fault towards a receiving
	// node on a bus.
	FailSend func(bus, toNode string) bool
}

// Attach joins a node to the fabric; wiring maps each interface onto a bus.
func (n *Network) Attach(node string, ifaces []state.LocalInterface, wiring map[state.Iface]string) *Mem {
	m := &Mem{
		net:     n,
		node:    node,
		ifaces:  slices.Clone(ifaces),
		inbound: make(chan Inbound, 256),
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, itf := range ifaces {
		bus, ok := wiring[itf.Name]
		if !ok {
			continue // unwired interface, frames go nowhere
		}
		p := &memPort{layer: m, iface: itf.Name, bus: bus}
		m.ports = append(m.ports, p)
		n.buses[bus] = append(n.buses[bus], p)
	}
	return m
}

func (m *Mem) Interfaces() []state.LocalInterface {
	return m.ifaces
}

func (m *Mem) Send(iface state.Iface, payload []byte) error {
	var src *memPort
	for _, p := range m.ports {
		if p.iface == iface {
			src = p
			break
		}
	}
	if src == nil {
		return fmt.Errorf("unknown interface %s", iface)
	}
	m.net.mu.Lock()
	peers := slices.Clone(m.net.buses[src.bus])
	m.net.mu.Unlock()
	for _, p := range peers {
		if p.layer == m {
			continue
		}
		if m.FailSend != nil && m.FailSend(src.bus, p.layer.node) {
			continue
		}
		p.layer.deliver(Inbound{Payload: slices.Clone(payload), Iface: p.iface})
	}
	return nil
}

func (m *Mem) deliver(in Inbound) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.inbound <- in:
	default:
		// medium drops under backpressure, like any real segment
	}
}

func (m *Mem) Inbound() <-chan Inbound {
	return m.inbound
}

func (m *Mem) ActiveNeighbours() []ActiveNeighbour {
	active := make([]ActiveNeighbour, 0)
	m.net.mu.Lock()
	defer m.net.mu.Unlock()
	for _, p := range m.ports {
		for _, peer := range m.net.buses[p.bus] {
			if peer.layer != m {
				active = append(active, ActiveNeighbour{Endpoint: netip.AddrPort{}, Iface: p.iface})
			}
		}
	}
	return active
}

func (m *Mem) Close() error {
	m.net.mu.Lock()
	for _, p := range m.ports {
		bus := m.net.buses[p.bus]
		bus = slices.DeleteFunc(bus, func(q *memPort) bool { return q.layer == m })
		m.net.buses[p.bus] = bus
	}
	m.net.mu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.inbound)
	}
	return nil
}
