package core

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/encodeous/rayon/state"
)

// CtlServer exposes the current route table snapshot over a unix socket, for
// `rayon inspect`.
type CtlServer struct {
	ln net.Listener
}

func (c *CtlServer) Init(s *state.State) error {
	_ = os.Remove(s.NodeCfg.CtlPath)
	ln, err := net.Listen("unix", s.NodeCfg.CtlPath)
	if err != nil {
		return err
	}
	c.ln = ln
	go c.serve(s)
	return nil
}

func (c *CtlServer) Cleanup(s *state.State) error {
	err := c.ln.Close()
	_ = os.Remove(s.NodeCfg.CtlPath)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (c *CtlServer) serve(s *state.State) {
	for {
		conn, err := c.ln.Accept()
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			// the dispatch channel may close mid-shutdown under us
			defer func() { recover() }()
			if s.Stopping.Load() {
				return
			}
			res, err := s.Env.DispatchWait(func(st *state.State) (any, error) {
				return snapshot(st), nil
			})
			if err != nil {
				return
			}
			_, _ = io.WriteString(conn, res.(string))
		}()
	}
}

func snapshot(s *state.State) string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("Node: %s\n", s.RouterState.Id))
	sb.WriteString("Interfaces:\n")
	for _, itf := range s.RouterState.Interfaces {
		sb.WriteString(fmt.Sprintf(" - %s (%s)\n", itf.Name, itf.Addr))
	}
	r := Get[*Router](s)
	sb.WriteString("Active Neighbours:\n")
	active := r.Link.ActiveNeighbours()
	if len(active) == 0 {
		sb.WriteString(" (none)\n")
	}
	for _, nb := range active {
		sb.WriteString(fmt.Sprintf(" - %s on %s\n", nb.Endpoint, nb.Iface))
	}
	sb.WriteString("Routes:\n")
	routes := s.RouterState.StringRoutes()
	if routes == "" {
		sb.WriteString(" (none)\n")
	} else {
		sb.WriteString(routes + "\n")
	}
	return sb.String()
}

// IPCGet dials a running node's control socket and returns its snapshot.
func IPCGet(ctlPath string) (string, error) {
	conn, err := net.Dial("unix", ctlPath)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	res, err := io.ReadAll(conn)
	if err != nil {
		return "", err
	}
	return string(res), nil
}
