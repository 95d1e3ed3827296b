package core

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"

	"github.com/encodeous/rayon/link"
	"github.com/encodeous/rayon/protocol"
	"github.com/encodeous/rayon/state"
	"github.com/gaissmai/bart"
)

// Router owns the route table and keeps the forwarding table, a derived
// prefix index, consistent with it. All handlers run on the dispatch
// goroutine.
type Router struct {
	*state.State
	Link link.Layer
	// Forwarding caches destination -> selected egress for data lookup
	Forwarding bart.Table[state.Iface]
	pump       sync.WaitGroup
}

func (r *Router) Init(s *state.State) error {
	s.Log.Debug("init router")
	r.State = s
	s.RouterState = state.NewRouterState(s.NodeCfg.Id)

	ifaces := r.Link.Interfaces()
	if len(ifaces) == 0 {
		return state.ErrConfigurationMissing
	}
	s.InitializeLocal(ifaces)
	for _, itf := range ifaces {
		r.Forwarding.Insert(state.AddrToPrefix(itf.Addr), itf.Name)
	}
	ApplySeed(s.RouterState, r, s.NodeCfg.Seed)

	s.Log.Debug("schedule router tasks")
	s.Env.RepeatTask(advertiseRoutes, state.AdvertiseInterval)
	s.Env.RepeatTask(sweepRoutes, state.GcDelay)

	r.pump.Add(1)
	go r.pumpInbound()
	return nil
}

func (r *Router) Cleanup(s *state.State) error {
	err := r.Link.Close()
	r.pump.Wait()
	return err
}

// pumpInbound moves frames from the link layer onto the dispatch goroutine,
// so merges and forwarding never race the advertisement timer. It keeps
// draining during shutdown so link-layer receivers never block, discarding
// frames once the node is stopping.
func (r *Router) pumpInbound() {
	defer r.pump.Done()
	for in := range r.Link.Inbound() {
		if r.Env.Stopping.Load() {
			continue
		}
		r.Env.Dispatch(func(s *state.State) error {
			return handleFrame(s, in)
		})
	}
}

func handleFrame(s *state.State, in link.Inbound) error {
	r := Get[*Router](s)
	var f protocol.Frame
	if err := f.UnmarshalBinary(in.Payload); err != nil {
		s.Log.Warn("dropping malformed frame", "iface", in.Iface, "err", err)
		return nil
	}
	switch f.Kind {
	case protocol.KindAdvertisement:
		changed := false
		for _, adv := range f.Adv {
			if ApplyAdvertisement(s.RouterState, r, adv.Dest, adv.Metric, in.Iface) {
				changed = true
			}
		}
		if changed {
			// triggered update: re-advertise immediately instead of waiting
			// for the next periodic pass
			AdvertiseAll(s.RouterState, r)
		}
	case protocol.KindData:
		ForwardData(s.RouterState, r, f.Dst, in.Iface, f.Payload)
	}
	return nil
}

func advertiseRoutes(s *state.State) error {
	r := Get[*Router](s)
	AdvertiseAll(s.RouterState, r)
	return nil
}

func sweepRoutes(s *state.State) error {
	r := Get[*Router](s)
	if SweepStale(s.RouterState, r) {
		AdvertiseAll(s.RouterState, r)
	}
	return nil
}

// Transport implementation against the real link layer

func (r *Router) SendAdvertisements(iface state.Iface, advs []protocol.Advertisement) error {
	frames, err := protocol.BundleAdvertisements(advs, state.SafeMTU)
	if err != nil {
		return err
	}
	var errs []error
	for _, b := range frames {
		if err := r.Link.Send(iface, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Router) TableSetEgress(dest netip.Prefix, iface state.Iface) {
	r.Forwarding.Insert(dest, iface)
}

func (r *Router) TableDeleteEgress(dest netip.Prefix) {
	r.Forwarding.Delete(dest)
}

func (r *Router) LookupEgress(dst netip.Addr) (state.Iface, bool) {
	return r.Forwarding.Lookup(dst)
}

func (r *Router) TransmitData(iface state.Iface, dst netip.Addr, payload []byte) error {
	f := protocol.Frame{Kind: protocol.KindData, Dst: dst, Payload: payload}
	b, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	return r.Link.Send(iface, b)
}

func (r *Router) DeliverLocal(dst netip.Addr, payload []byte) {
	// local delivery is out of the routing core; surfacing it is enough
	r.Env.Log.Info("packet delivered locally", "dst", dst, "len", len(payload))
}

func (r *Router) Log(event RouterEvent, desc string, args ...any) {
	if event >= 1000 {
		r.Env.Log.Warn(fmt.Sprintf("%s %s", event.String(), desc), args...)
	} else {
		r.Env.Log.Debug(fmt.Sprintf("%s %s", event.String(), desc), args...)
	}
}
