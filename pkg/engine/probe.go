package engine

import (
	"net"
	"net/http"
	"time"

	"github.com/ivyci/enginectl/pkg/utils"
)

// DefaultProbeTimeout bounds a single network probe
const DefaultProbeTimeout = 2 * time.Second

// Probe reports whether the engine is up. Implementations must return quickly.
type Probe interface {
	Probe() bool
}

// ProbeFunc adapts a function to Probe
type ProbeFunc func() bool

// Probe implements Probe
func (f ProbeFunc) Probe() bool { return f() }

// PIDProbe is up while the handle's process is alive
type PIDProbe struct {
	Handle ProcessHandle
}

// Probe implements Probe
func (p PIDProbe) Probe() bool {
	return p.Handle != nil && p.Handle.Alive()
}

// PortProbe is up while a TCP connection to Address succeeds
type PortProbe struct {
	Address string
	Timeout time.Duration
}

// Probe implements Probe
func (p PortProbe) Probe() bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	conn, err := net.DialTimeout("tcp", p.Address, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// HTTPProbe is up while URL answers with a status below 500
type HTTPProbe struct {
	URL    string
	Client *http.Client
}

// NewHTTPProbe creates an HTTPProbe whose requests time out after timeout
func NewHTTPProbe(url string, timeout time.Duration) HTTPProbe {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return HTTPProbe{URL: url, Client: &http.Client{Timeout: timeout}}
}

// Probe implements Probe
func (p HTTPProbe) Probe() bool {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultProbeTimeout}
	}
	resp, err := client.Get(p.URL)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}

// LockFileProbe is up while the engine's lock file exists
type LockFileProbe struct {
	Path string
}

// Probe implements Probe
func (p LockFileProbe) Probe() bool {
	return utils.FileExists(p.Path)
}

// AnyProbe is up when any of its probes is up
type AnyProbe []Probe

// Probe implements Probe
func (a AnyProbe) Probe() bool {
	for _, p := range a {
		if p.Probe() {
			return true
		}
	}
	return false
}
