package state

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"time"
)

// Iface names a local network interface.
type Iface string

type LocalInterface struct {
	Name Iface
	Addr netip.Addr
}

// Via is one learned path to a destination: the distance recorded for a
// single interface. Local vias are seeded at startup and never change.
type Via struct {
	Distance uint8
	Local    bool
	// Pinned marks a seeded route that the staleness sweep must keep.
	Pinned      bool
	LearnedAt   time.Time
	RefreshedAt time.Time
}

// RouteEntry maps learned-via interface to distance for one destination.
// A known destination always has at least one via.
type RouteEntry struct {
	Vias map[Iface]Via
}

// Selected returns the via achieving the minimum recorded distance. Ties are
// broken by earliest LearnedAt, so an equal-cost update never churns the
// selection.
func (e *RouteEntry) Selected() (Iface, Via, bool) {
	var (
		best   Iface
		bestV  Via
		found  bool
		ifaces = make([]Iface, 0, len(e.Vias))
	)
	for i := range e.Vias {
		ifaces = append(ifaces, i)
	}
	slices.Sort(ifaces)
	for _, i := range ifaces {
		v := e.Vias[i]
		if !found || v.Distance < bestV.Distance ||
			(v.Distance == bestV.Distance && v.LearnedAt.Before(bestV.LearnedAt)) {
			best, bestV, found = i, v, true
		}
	}
	return best, bestV, found
}

// RouterState is the authoritative route table. It is owned by the main loop
// goroutine; all mutation flows through the merge functions in core.
type RouterState struct {
	Id         string
	Interfaces []LocalInterface
	Routes     map[netip.Prefix]*RouteEntry
}

func NewRouterState(id string) *RouterState {
	return &RouterState{
		Id:     id,
		Routes: make(map[netip.Prefix]*RouteEntry),
	}
}

// InitializeLocal seeds one zero-distance entry per local interface. Must run
// before any advertisement or forwarding activity.
func (rs *RouterState) InitializeLocal(ifaces []LocalInterface) {
	now := time.Now()
	rs.Interfaces = slices.Clone(ifaces)
	for _, itf := range ifaces {
		dest := AddrToPrefix(itf.Addr)
		rs.Routes[dest] = &RouteEntry{
			Vias: map[Iface]Via{
				itf.Name: {Distance: 0, Local: true, LearnedAt: now, RefreshedAt: now},
			},
		}
	}
}

// EffectiveDistance is the minimum over all recorded interface distances.
// Unknown destinations are at Infinity.
func (rs *RouterState) EffectiveDistance(dest netip.Prefix) uint8 {
	entry, ok := rs.Routes[dest]
	if !ok {
		return Infinity
	}
	_, via, ok := entry.Selected()
	if !ok {
		return Infinity
	}
	return via.Distance
}

// SelectedInterface is the interface achieving EffectiveDistance.
func (rs *RouterState) SelectedInterface(dest netip.Prefix) (Iface, bool) {
	entry, ok := rs.Routes[dest]
	if !ok {
		return "", false
	}
	iface, _, ok := entry.Selected()
	return iface, ok
}

func (rs *RouterState) IsLocalAddr(addr netip.Addr) bool {
	return slices.ContainsFunc(rs.Interfaces, func(itf LocalInterface) bool {
		return itf.Addr == addr
	})
}

func (rs *RouterState) GetInterface(name Iface) *LocalInterface {
	idx := slices.IndexFunc(rs.Interfaces, func(itf LocalInterface) bool {
		return itf.Name == name
	})
	if idx == -1 {
		return nil
	}
	return &rs.Interfaces[idx]
}

// StringRoutes renders the table for inspection, one destination per line.
func (rs *RouterState) StringRoutes() string {
	lines := make([]string, 0, len(rs.Routes))
	for dest, entry := range rs.Routes {
		iface, via, ok := entry.Selected()
		if !ok {
			continue
		}
		vias := make([]string, 0, len(entry.Vias))
		for i := range entry.Vias {
			vias = append(vias, string(i))
		}
		slices.Sort(vias)
		lines = append(lines, fmt.Sprintf("%s via %s (dist: %d, vias: %s)",
			dest, iface, via.Distance, strings.Join(vias, ",")))
	}
	slices.Sort(lines)
	return strings.Join(lines, "\n")
}

func AddrToPrefix(addr netip.Addr) netip.Prefix {
	res, err := addr.Prefix(addr.BitLen())
	if err != nil {
		panic(err)
	}
	return res
}
