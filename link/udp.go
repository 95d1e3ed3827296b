package link

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"slices"
	"sync"

	"github.com/encodeous/rayon/state"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// UDP emulates each local interface with one UDP socket. A send on an
// interface is written to every configured neighbour endpoint, approximating
// a shared medium.
type UDP struct {
	id      uuid.UUID
	log     *slog.Logger
	ifaces  []state.LocalInterface
	socks   map[state.Iface]*udpSocket
	inbound chan Inbound
	seen    *ttlcache.Cache[netip.AddrPort, state.Iface]
	wg      sync.WaitGroup
	closed  sync.Once
}

type udpSocket struct {
	cfg  state.InterfaceCfg
	conn *net.UDPConn
}

func NewUDP(cfg state.NodeCfg, log *slog.Logger) (*UDP, error) {
	u := &UDP{
		id:      uuid.New(),
		log:     log,
		ifaces:  cfg.LocalInterfaces(),
		socks:   make(map[state.Iface]*udpSocket),
		inbound: make(chan Inbound, 256),
		seen: ttlcache.New[netip.AddrPort, state.Iface](
			ttlcache.WithTTL[netip.AddrPort, state.Iface](state.NeighbourLivenessTTL),
		),
	}
	for _, itf := range cfg.Interfaces {
		conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(itf.Bind))
		if err != nil {
			for _, sock := range u.socks {
				_ = sock.conn.Close()
			}
			return nil, fmt.Errorf("bind %s on %s: %w", itf.Bind, itf.Name, err)
		}
		u.socks[state.Iface(itf.Name)] = &udpSocket{cfg: itf, conn: conn}
	}
	go u.seen.Start()
	for name, sock := range u.socks {
		u.wg.Add(1)
		go u.pump(name, sock)
	}
	log.Debug("link layer up", "id", u.id, "interfaces", len(u.socks))
	return u, nil
}

func (u *UDP) pump(name state.Iface, sock *udpSocket) {
	defer u.wg.Done()
	buf := make([]byte, 65535)
	for {
		n, from, err := sock.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			// socket closed on shutdown; anything else is a transient
			// receive fault and the loop keeps serving
			if errors.Is(err, net.ErrClosed) {
				return
			}
			u.log.Warn("receive failed", "iface", name, "err", err)
			continue
		}
		u.seen.Set(from, name, ttlcache.DefaultTTL)
		u.inbound <- Inbound{Payload: slices.Clone(buf[:n]), Iface: name}
	}
}

func (u *UDP) Interfaces() []state.LocalInterface {
	return u.ifaces
}

func (u *UDP) Send(iface state.Iface, payload []byte) error {
	sock, ok := u.socks[iface]
	if !ok {
		return fmt.Errorf("unknown interface %s", iface)
	}
	var errs []error
	for _, nb := range sock.cfg.Neighbours {
		_, err := sock.conn.WriteToUDPAddrPort(payload, nb)
		if err != nil {
			u.log.Warn("send failed", "iface", iface, "to", nb, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (u *UDP) Inbound() <-chan Inbound {
	return u.inbound
}

func (u *UDP) ActiveNeighbours() []ActiveNeighbour {
	active := make([]ActiveNeighbour, 0)
	for _, item := range u.seen.Items() {
		active = append(active, ActiveNeighbour{Endpoint: item.Key(), Iface: item.Value()})
	}
	slices.SortFunc(active, func(a, b ActiveNeighbour) int {
		return a.Endpoint.Compare(b.Endpoint)
	})
	return active
}

func (u *UDP) Close() error {
	var errs []error
	u.closed.Do(func() {
		u.seen.Stop()
		for _, sock := range u.socks {
			if err := sock.conn.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		u.wg.Wait()
		close(u.inbound)
	})
	return errors.Join(errs...)
}
