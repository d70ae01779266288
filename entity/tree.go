package entity

import (
	"net"
	"sync"

	"github.com/jgaa/wfde/internal/transfer"
)

// Server is the root of the entity tree: one process, owning zero or more
// Hosts.
type Server struct {
	Node

	mu    sync.RWMutex
	hosts map[string]*Host
}

// NewServer creates an empty, unparented Server node.
func NewServer(name string) *Server {
	return &Server{Node: newNode(name, TypeServer, nil), hosts: make(map[string]*Host)}
}

// AddHost creates and registers a Host under s.
func (s *Server) AddHost(name string) (*Host, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.hosts[name]; exists {
		return nil, &ErrDuplicateChild{Parent: s.Name(), Name: name}
	}

	h := &Host{Node: newNode(name, TypeHost, s), protocols: make(map[string]*Protocol)}
	s.hosts[name] = h

	return h, nil
}

// Hosts returns every registered Host, in no particular order.
func (s *Server) Hosts() []*Host {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Host, 0, len(s.hosts))
	for _, h := range s.hosts {
		out = append(out, h)
	}

	return out
}

// Host groups Protocols under a shared virtual identity (spec.md §4.9).
type Host struct {
	Node

	mu        sync.RWMutex
	protocols map[string]*Protocol
}

// AddProtocol creates and registers a Protocol under h.
func (h *Host) AddProtocol(name string) (*Protocol, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.protocols[name]; exists {
		return nil, &ErrDuplicateChild{Parent: h.Name(), Name: name}
	}

	p := &Protocol{Node: newNode(name, TypeProtocol, h), interfaces: make(map[string]*Interface)}
	h.protocols[name] = p

	return p, nil
}

// Protocols returns every registered Protocol, in no particular order.
func (h *Host) Protocols() []*Protocol {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Protocol, 0, len(h.protocols))
	for _, p := range h.protocols {
		out = append(out, p)
	}

	return out
}

// Protocol binds a wire protocol (only "ftp" is implemented) to the
// Interfaces that accept connections for it.
type Protocol struct {
	Node

	mu         sync.RWMutex
	interfaces map[string]*Interface
}

// AddInterface creates and registers an Interface under p, listening on
// listenAddr ("host:port").
func (p *Protocol) AddInterface(name, listenAddr string) (*Interface, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.interfaces[name]; exists {
		return nil, &ErrDuplicateChild{Parent: p.Name(), Name: name}
	}

	iface := &Interface{Node: newNode(name, TypeInterface, p), listenAddr: listenAddr}
	p.interfaces[name] = iface

	return iface, nil
}

// Interfaces returns every registered Interface, in no particular order.
func (p *Protocol) Interfaces() []*Interface {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Interface, 0, len(p.interfaces))
	for _, iface := range p.interfaces {
		out = append(out, iface)
	}

	return out
}

// Interface is a leaf node: one listening socket, with its own optional
// permission overrides layered on top of its Protocol/Host/Server ancestry,
// plus the acceptor-only settings (PASV range, advertised address, implicit
// TLS) that have no meaning anywhere else in the tree.
type Interface struct {
	Node

	listenAddr string

	PublicIP      net.IP
	PasvPortRange *transfer.PortRange
	Implicit      bool
}

// ListenAddr returns the "host:port" this interface accepts connections on.
func (iface *Interface) ListenAddr() string { return iface.listenAddr }
