package core

import (
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"testing"

	"github.com/encodeous/rayon/protocol"
	"github.com/encodeous/rayon/state"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type HarnessEvent struct {
	Message string
	Args    []any
}

func MakeEvent(msg string, args ...any) HarnessEvent {
	return HarnessEvent{
		Message: msg,
		Args:    args,
	}
}

// RouterHarness implements Transport by recording every side effect, and
// mirrors the forwarding cache in a plain map so tests can check the
// post-merge invariant.
type RouterHarness struct {
	actions []HarnessEvent
	Egress  map[netip.Prefix]state.Iface

	// fault injection
	FailAdvertiseOn map[state.Iface]error
	FailTransmit    error
}

func NewRouterHarness() *RouterHarness {
	return &RouterHarness{
		Egress: make(map[netip.Prefix]state.Iface),
	}
}

func (h *RouterHarness) SendAdvertisements(iface state.Iface, advs []protocol.Advertisement) error {
	if err, ok := h.FailAdvertiseOn[iface]; ok {
		return err
	}
	h.actions = append(h.actions, MakeEvent("SEND_ADVS", iface, advs))
	return nil
}

func (h *RouterHarness) TableSetEgress(dest netip.Prefix, iface state.Iface) {
	h.Egress[dest] = iface
	h.actions = append(h.actions, MakeEvent("SET_EGRESS", dest, iface))
}

func (h *RouterHarness) TableDeleteEgress(dest netip.Prefix) {
	delete(h.Egress, dest)
	h.actions = append(h.actions, MakeEvent("DEL_EGRESS", dest))
}

func (h *RouterHarness) LookupEgress(dst netip.Addr) (state.Iface, bool) {
	best := netip.Prefix{}
	var iface state.Iface
	found := false
	for dest, egress := range h.Egress {
		if dest.Contains(dst) && (!found || dest.Bits() > best.Bits()) {
			best, iface, found = dest, egress, true
		}
	}
	return iface, found
}

func (h *RouterHarness) TransmitData(iface state.Iface, dst netip.Addr, payload []byte) error {
	if h.FailTransmit != nil {
		return h.FailTransmit
	}
	h.actions = append(h.actions, MakeEvent("TRANSMIT", iface, dst, payload))
	return nil
}

func (h *RouterHarness) DeliverLocal(dst netip.Addr, payload []byte) {
	h.actions = append(h.actions, MakeEvent("DELIVER_LOCAL", dst, payload))
}

func (h *RouterHarness) Log(event RouterEvent, desc string, args ...any) {
	x := make([]any, 0)
	x = append(x, event)
	x = append(x, desc)
	x = append(x, args...)
	h.actions = append(h.actions, MakeEvent("LOG", x...))
}

// Logged reports whether the given event was logged since the last
// GetActions.
func (h *RouterHarness) Logged(event RouterEvent) bool {
	for _, action := range h.actions {
		if action.Message == "LOG" && len(action.Args) > 0 && action.Args[0] == event {
			return true
		}
	}
	return false
}

type HarnessEvents []HarnessEvent

func (h HarnessEvents) String() string {
	out := make([]string, 0)
	for _, action := range h {
		cur := action.Message
		for _, arg := range action.Args {
			cur += " " + fmt.Sprint(arg)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

func (h *RouterHarness) GetActions() HarnessEvents {
	x := make([]HarnessEvent, 0)
	for _, action := range h.actions {
		if action.Message != "LOG" {
			x = append(x, action)
		}
	}

	h.actions = make([]HarnessEvent, 0)
	return x
}

func (e HarnessEvents) contains(msg string, args ...any) bool {
	for _, event := range e {
		if event.Message == msg {
			if len(event.Args) >= len(args) {
				match := true
				for i, arg := range args {
					if !cmp.Equal(event.Args[i], arg, cmpopts.EquateComparable(netip.Prefix{}, netip.Addr{})) {
						match = false
						break
					}
				}
				if match {
					return true
				}
			}
		}
	}
	return false
}

func (e HarnessEvents) AssertContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		return
	}
	t.Fatal("Expected event not found: ", msg, " with args: ", args, " in ", e)
}

func (e HarnessEvents) AssertNotContains(t *testing.T, msg string, args ...any) {
	t.Helper()
	if e.contains(msg, args...) {
		t.Fatal("Unexpected event found: ", msg, " with args: ", args, " in ", e)
	}
}

func MakeRouterState(id string, ifaces ...state.LocalInterface) (*state.RouterState, *RouterHarness) {
	rs := state.NewRouterState(id)
	rs.InitializeLocal(ifaces)
	h := NewRouterHarness()
	for _, itf := range ifaces {
		h.Egress[state.AddrToPrefix(itf.Addr)] = itf.Name
	}
	return rs, h
}

func Itf(name, addr string) state.LocalInterface {
	return state.LocalInterface{Name: state.Iface(name), Addr: netip.MustParseAddr(addr)}
}

// CheckForwardingConsistency asserts ForwardingEntry[d] == SelectedInterface(d)
// for every known destination.
func CheckForwardingConsistency(t *testing.T, rs *state.RouterState, h *RouterHarness) {
	t.Helper()
	for dest := range rs.Routes {
		sel, ok := rs.SelectedInterface(dest)
		if !ok {
			t.Fatalf("destination %s has no selected interface", dest)
		}
		egress, ok := h.Egress[dest]
		if !ok {
			t.Fatalf("destination %s has no forwarding entry", dest)
		}
		if egress != sel {
			t.Fatalf("forwarding entry for %s is %s, selected interface is %s", dest, egress, sel)
		}
	}
	for dest := range h.Egress {
		if _, ok := rs.Routes[dest]; !ok {
			t.Fatalf("forwarding entry for %s has no route", dest)
		}
	}
}
