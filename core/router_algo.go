package core

import (
	"net/netip"
	"slices"
	"time"

	"github.com/encodeous/rayon/protocol"
	"github.com/encodeous/rayon/state"
)

type RouterEvent int

// trace events

const (
	RouteAdded RouterEvent = iota
	RouteImproved
	RouteInvalidated
	StaleRouteDropped
	// PoisonIgnored is routine under split horizon: every neighbour that
	// routes through us poisons the route back
	PoisonIgnored
)

// warn events

const (
	NoRoute RouterEvent = iota + 1000
	RoutingAnomaly
	SendFailed
)

func (e RouterEvent) String() string {
	switch e {
	case RouteAdded:
		return "ROUTE_ADDED"
	case RouteImproved:
		return "ROUTE_IMPROVED"
	case RouteInvalidated:
		return "ROUTE_INVALIDATED"
	case StaleRouteDropped:
		return "STALE_ROUTE_DROPPED"
	case NoRoute:
		return "NO_ROUTE"
	case RoutingAnomaly:
		return "ROUTING_ANOMALY"
	case SendFailed:
		return "SEND_FAILED"
	case PoisonIgnored:
		return "POISON_IGNORED"
	default:
		return "UNKNOWN"
	}
}

// Transport is the side-effect sink for the routing algorithm. The live
// Router implements it against the link layer and the forwarding table; the
// test harness records events instead.
type Transport interface {
	SendAdvertisements(iface state.Iface, advs []protocol.Advertisement) error
	TableSetEgress(dest netip.Prefix, iface state.Iface)
	TableDeleteEgress(dest netip.Prefix)
	LookupEgress(dst netip.Addr) (state.Iface, bool)
	TransmitData(iface state.Iface, dst netip.Addr, payload []byte) error
	DeliverLocal(dst netip.Addr, payload []byte)
	Log(event RouterEvent, desc string, args ...any)
}

// BuildAdvertisements derives the announcement for one interface: every
// known destination at its effective distance, except that a destination
// whose selected interface is the advertising interface is poisoned
// (announced at infinity) rather than omitted. The receiver adds the hop
// cost, not us.
func BuildAdvertisements(rs *state.RouterState, iface state.Iface) []protocol.Advertisement {
	advs := make([]protocol.Advertisement, 0, len(rs.Routes))
	for dest, entry := range rs.Routes {
		sel, via, ok := entry.Selected()
		if !ok {
			continue
		}
		metric := via.Distance
		if sel == iface {
			// split horizon with poison reverse; this includes our own
			// addresses out their own interface, so a node is reached
			// through the addresses facing away from the caller
			metric = state.Infinity
		}
		advs = append(advs, protocol.Advertisement{Dest: dest, Metric: metric})
	}
	slices.SortFunc(advs, func(a, b protocol.Advertisement) int {
		return a.Dest.Addr().Compare(b.Dest.Addr())
	})
	return advs
}

// AdvertiseAll runs one advertisement pass over every local interface. A
// failing interface is reported and skipped; it never aborts the pass.
func AdvertiseAll(rs *state.RouterState, t Transport) {
	for _, itf := range rs.Interfaces {
		advs := BuildAdvertisements(rs, itf.Name)
		if len(advs) == 0 {
			continue
		}
		if err := t.SendAdvertisements(itf.Name, advs); err != nil {
			t.Log(SendFailed, "advertisement send failed", "iface", itf.Name, "err", err)
		}
	}
}

// ApplyAdvertisement merges one received (destination, distance) pair into
// the table, Bellman-Ford style, and reports whether the table changed. Each
// hop costs exactly 1, added on the receiving side.
func ApplyAdvertisement(rs *state.RouterState, t Transport, dest netip.Prefix, advMetric uint8, recvIface state.Iface) bool {
	candidate := AddDistance(advMetric, 1)
	entry, known := rs.Routes[dest]

	if known {
		if via, ok := entry.Vias[recvIface]; ok && via.Local {
			// locally originated routes are never overwritten
			return false
		}
	}

	if candidate >= state.Infinity {
		// the neighbour withdrew the route; only meaningful if we were
		// actually routing through it
		if !known {
			return false
		}
		sel, _, ok := entry.Selected()
		if !ok || sel != recvIface {
			t.Log(PoisonIgnored, "poison from non-selected interface", "dest", dest, "iface", recvIface)
			return false
		}
		delete(entry.Vias, recvIface)
		if len(entry.Vias) == 0 {
			delete(rs.Routes, dest)
			t.TableDeleteEgress(dest)
		} else {
			newSel, _, _ := entry.Selected()
			t.TableSetEgress(dest, newSel)
		}
		t.Log(RouteInvalidated, "route invalidated", "dest", dest, "iface", recvIface)
		return true
	}

	now := time.Now()

	if known {
		if via, ok := entry.Vias[recvIface]; ok && via.Distance <= candidate {
			// no improvement from this neighbour; an equal re-announcement
			// still refreshes staleness
			if via.Distance == candidate {
				via.RefreshedAt = now
				entry.Vias[recvIface] = via
			}
			return false
		}
	}

	if !known {
		rs.Routes[dest] = &state.RouteEntry{Vias: map[state.Iface]state.Via{
			recvIface: {Distance: candidate, LearnedAt: now, RefreshedAt: now},
		}}
		t.TableSetEgress(dest, recvIface)
		t.Log(RouteAdded, "route added", "dest", dest, "iface", recvIface, "dist", candidate)
		return true
	}

	_, cur, _ := entry.Selected()
	if candidate < cur.Distance {
		prev, had := entry.Vias[recvIface]
		learned := now
		if had {
			learned = prev.LearnedAt
		}
		// an improvement re-selects the destination; superseded learned
		// paths are dropped rather than kept as silent fallbacks, so a
		// later withdrawal leaves the destination unroutable instead of
		// reviving a stale route
		for iface, via := range entry.Vias {
			if iface != recvIface && !via.Local && !via.Pinned {
				delete(entry.Vias, iface)
			}
		}
		entry.Vias[recvIface] = state.Via{
			Distance:    candidate,
			Pinned:      had && prev.Pinned,
			LearnedAt:   learned,
			RefreshedAt: now,
		}
		t.TableSetEgress(dest, recvIface)
		t.Log(RouteImproved, "route improved", "dest", dest, "iface", recvIface, "dist", candidate)
		return true
	}
	return false
}

// ApplySeed loads a pre-seeded table snapshot from configuration. Seeded
// vias are pinned so the staleness sweep leaves them alone.
func ApplySeed(rs *state.RouterState, t Transport, seeds []state.SeedRoute) {
	now := time.Now()
	for _, seed := range seeds {
		iface := state.Iface(seed.Iface)
		entry, ok := rs.Routes[seed.Network]
		if !ok {
			entry = &state.RouteEntry{Vias: make(map[state.Iface]state.Via)}
			rs.Routes[seed.Network] = entry
		}
		if via, exists := entry.Vias[iface]; exists && via.Local {
			continue
		}
		entry.Vias[iface] = state.Via{
			Distance:    seed.Cost,
			Pinned:      true,
			LearnedAt:   now,
			RefreshedAt: now,
		}
		sel, _, _ := entry.Selected()
		t.TableSetEgress(seed.Network, sel)
	}
}

// SweepStale drops remote vias not refreshed within RouteExpiryTime and
// re-syncs the forwarding egress of every touched destination.
func SweepStale(rs *state.RouterState, t Transport) bool {
	now := time.Now()
	changed := false
	for dest, entry := range rs.Routes {
		dropped := false
		for iface, via := range entry.Vias {
			if via.Local || via.Pinned {
				continue
			}
			if now.Sub(via.RefreshedAt) > state.RouteExpiryTime {
				delete(entry.Vias, iface)
				t.Log(StaleRouteDropped, "stale route dropped", "dest", dest, "iface", iface)
				dropped = true
			}
		}
		if !dropped {
			continue
		}
		changed = true
		if len(entry.Vias) == 0 {
			delete(rs.Routes, dest)
			t.TableDeleteEgress(dest)
		} else {
			sel, _, _ := entry.Selected()
			t.TableSetEgress(dest, sel)
		}
	}
	return changed
}
