package link

import (
	"net/netip"
	"testing"
	"time"

	"github.com/encodeous/rayon/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memIface(name, addr string) state.LocalInterface {
	return state.LocalInterface{Name: state.Iface(name), Addr: netip.MustParseAddr(addr)}
}

func recvOne(t *testing.T, m *Mem) Inbound {
	t.Helper()
	select {
	case in := <-m.Inbound():
		return in
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for inbound frame")
		return Inbound{}
	}
}

func TestMemFloodsBus(t *testing.T) {
	n := NewNetwork()
	a := n.Attach("a", []state.LocalInterface{memIface("eth0", "10.0.0.1")}, map[state.Iface]string{"eth0": "lan"})
	b := n.Attach("b", []state.LocalInterface{memIface("eth0", "10.0.0.2")}, map[state.Iface]string{"eth0": "lan"})
	c := n.Attach("c", []state.LocalInterface{memIface("eth0", "10.0.0.3")}, map[state.Iface]string{"eth0": "lan"})
	defer a.Close()
	defer b.Close()
	defer c.Close()

	require.NoError(t, a.Send("eth0", []byte("hi")))

	for _, peer := range []*Mem{b, c} {
		in := recvOne(t, peer)
		assert.Equal(t, []byte("hi"), in.Payload)
		assert.Equal(t, state.Iface("eth0"), in.Iface)
	}
	// the sender never hears its own frame
	select {
	case <-a.Inbound():
		t.Fatal("sender received its own frame")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemSeparateBuses(t *testing.T) {
	n := NewNetwork()
	r := n.Attach("r", []state.LocalInterface{
		memIface("eth0", "10.1.1.254"),
		memIface("eth1", "10.2.2.254"),
	}, map[state.Iface]string{"eth0": "lan1", "eth1": "lan2"})
	h1 := n.Attach("h1", []state.LocalInterface{memIface("eth0", "10.1.1.1")}, map[state.Iface]string{"eth0": "lan1"})
	h2 := n.Attach("h2", []state.LocalInterface{memIface("eth0", "10.2.2.1")}, map[state.Iface]string{"eth0": "lan2"})
	defer r.Close()
	defer h1.Close()
	defer h2.Close()

	require.NoError(t, r.Send("eth1", []byte("to-lan2")))
	in := recvOne(t, h2)
	assert.Equal(t, []byte("to-lan2"), in.Payload)
	select {
	case <-h1.Inbound():
		t.Fatal("frame leaked across buses")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemFailSendIsolation(t *testing.T) {
	n := NewNetwork()
	a := n.Attach("a", []state.LocalInterface{memIface("eth0", "10.0.0.1")}, map[state.Iface]string{"eth0": "lan"})
	b := n.Attach("b", []state.LocalInterface{memIface("eth0", "10.0.0.2")}, map[state.Iface]string{"eth0": "lan"})
	c := n.Attach("c", []state.LocalInterface{memIface("eth0", "10.0.0.3")}, map[state.Iface]string{"eth0": "lan"})
	defer a.Close()
	defer b.Close()
	defer c.Close()

	a.FailSend = func(bus, toNode string) bool { return toNode == "b" }
	require.NoError(t, a.Send("eth0", []byte("partial")))

	in := recvOne(t, c)
	assert.Equal(t, []byte("partial"), in.Payload)
	select {
	case <-b.Inbound():
		t.Fatal("frame delivered despite injected fault")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemCloseDetaches(t *testing.T) {
	n := NewNetwork()
	a := n.Attach("a", []state.LocalInterface{memIface("eth0", "10.0.0.1")}, map[state.Iface]string{"eth0": "lan"})
	b := n.Attach("b", []state.LocalInterface{memIface("eth0", "10.0.0.2")}, map[state.Iface]string{"eth0": "lan"})
	defer a.Close()

	require.NoError(t, b.Close())
	require.NoError(t, a.Send("eth0", []byte("late")))
	_, open := <-b.Inbound()
	assert.False(t, open)
}
