package state

import (
	"net/netip"
	"slices"
)

// InterfaceCfg describes one local interface of the emulated topology. The
// interface is backed by a UDP socket bound to Bind; Neighbours lists the
// endpoints sharing this interface's medium.
type InterfaceCfg struct {
	Name       string
	Addr       netip.Addr
	Bind       netip.AddrPort
	Neighbours []netip.AddrPort `yaml:",omitempty"`
}

// SeedRoute pre-seeds the route table at startup, for nodes that start with
// known routes rather than learning everything from advertisements.
type SeedRoute struct {
	Network netip.Prefix
	Iface   string
	Cost    uint8
	NextHop *netip.Addr `yaml:"next_hop,omitempty"`
}

// NodeCfg represents node-level configuration
type NodeCfg struct {
	Id         string
	Interfaces []InterfaceCfg
	Seed       []SeedRoute `yaml:",omitempty"`
	LogPath    string      `yaml:"log_path,omitempty"` // if not empty, rayon will also write logs to this file
	CtlPath    string      `yaml:"ctl_path,omitempty"` // unix socket used by `rayon inspect`
}

func (c *NodeCfg) GetInterfaceCfg(name string) *InterfaceCfg {
	idx := slices.IndexFunc(c.Interfaces, func(itf InterfaceCfg) bool {
		return itf.Name == name
	})
	if idx == -1 {
		return nil
	}
	return &c.Interfaces[idx]
}

// LocalInterfaces maps the configured interfaces into the table's seed set.
func (c *NodeCfg) LocalInterfaces() []LocalInterface {
	ifaces := make([]LocalInterface, 0, len(c.Interfaces))
	for _, itf := range c.Interfaces {
		ifaces = append(ifaces, LocalInterface{
			Name: Iface(itf.Name),
			Addr: itf.Addr,
		})
	}
	return ifaces
}
