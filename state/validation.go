package state

import (
	"errors"
	"fmt"
	"regexp"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

// ErrConfigurationMissing indicates a node config with no usable
// local-interface set. Fatal at startup; the node must not proceed.
var ErrConfigurationMissing = errors.New("configuration has no local interfaces")

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func NodeConfigValidator(node *NodeCfg) error {
	err := NameValidator(node.Id)
	if err != nil {
		return err
	}
	if len(node.Interfaces) == 0 {
		return ErrConfigurationMissing
	}
	seen := make(map[string]bool)
	for _, itf := range node.Interfaces {
		if err := NameValidator(itf.Name); err != nil {
			return err
		}
		if seen[itf.Name] {
			return fmt.Errorf("duplicate interface name: %s", itf.Name)
		}
		seen[itf.Name] = true
		if !itf.Addr.IsValid() {
			return fmt.Errorf("interface %s has an invalid address", itf.Name)
		}
		if !itf.Bind.IsValid() {
			return fmt.Errorf("interface %s has an invalid bind", itf.Name)
		}
	}
	for _, seed := range node.Seed {
		if !seen[seed.Iface] {
			return fmt.Errorf("seed route %s references undefined interface %s", seed.Network, seed.Iface)
		}
		if !seed.Network.IsValid() {
			return fmt.Errorf("seed route has an invalid network on interface %s", seed.Iface)
		}
		if seed.Cost >= Infinity {
			return fmt.Errorf("seed route %s has cost %d >= %d", seed.Network, seed.Cost, Infinity)
		}
	}
	return nil
}
