package state

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validCfg() *NodeCfg {
	return &NodeCfg{
		Id: "r1",
		Interfaces: []InterfaceCfg{
			{
				Name: "eth0",
				Addr: netip.MustParseAddr("10.1.1.254"),
				Bind: netip.MustParseAddrPort("127.0.0.1:23001"),
			},
			{
				Name: "eth1",
				Addr: netip.MustParseAddr("10.2.2.254"),
				Bind: netip.MustParseAddrPort("127.0.0.1:23002"),
			},
		},
	}
}

func TestNodeConfigValidator(t *testing.T) {
	assert.NoError(t, NodeConfigValidator(validCfg()))
}

func TestNodeConfigValidatorNoInterfaces(t *testing.T) {
	cfg := validCfg()
	cfg.Interfaces = nil
	assert.ErrorIs(t, NodeConfigValidator(cfg), ErrConfigurationMissing)
}

func TestNodeConfigValidatorDuplicateInterface(t *testing.T) {
	cfg := validCfg()
	cfg.Interfaces[1].Name = "eth0"
	assert.Error(t, NodeConfigValidator(cfg))
}

func TestNodeConfigValidatorBadName(t *testing.T) {
	cfg := validCfg()
	cfg.Id = "Not Valid!"
	assert.Error(t, NodeConfigValidator(cfg))
}

func TestNodeConfigValidatorSeed(t *testing.T) {
	cfg := validCfg()
	cfg.Seed = []SeedRoute{
		{Network: netip.MustParsePrefix("10.3.3.0/24"), Iface: "eth0", Cost: 1},
	}
	assert.NoError(t, NodeConfigValidator(cfg))

	cfg.Seed[0].Iface = "eth9"
	assert.Error(t, NodeConfigValidator(cfg))

	cfg.Seed[0].Iface = "eth0"
	cfg.Seed[0].Cost = Infinity
	assert.Error(t, NodeConfigValidator(cfg))
}
