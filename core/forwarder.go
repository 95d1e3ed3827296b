package core

import (
	"net/netip"

	"github.com/encodeous/rayon/state"
)

// ForwardData decides what to do with a non-advertisement frame: deliver it
// locally, drop it with a report, or transmit it unchanged out the selected
// egress. Routing state is never mutated here.
func ForwardData(rs *state.RouterState, t Transport, dst netip.Addr, ingress state.Iface, payload []byte) {
	if rs.IsLocalAddr(dst) {
		t.DeliverLocal(dst, payload)
		return
	}
	egress, ok := t.LookupEgress(dst)
	if !ok {
		t.Log(NoRoute, "no route to destination", "dst", dst)
		return
	}
	if egress == ingress {
		// never loop a packet back out its ingress interface
		t.Log(RoutingAnomaly, "egress equals ingress", "dst", dst, "iface", ingress)
		return
	}
	if err := t.TransmitData(egress, dst, payload); err != nil {
		t.Log(SendFailed, "data transmit failed", "dst", dst, "iface", egress, "err", err)
	}
}
