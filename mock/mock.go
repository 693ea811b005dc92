// Package mock provides a scriptable ChargingClient for testing.
package mock

import (
	"context"
	"sync"

	"github.com/ineyio/sessioncredit"
)

// Client is a mock charging authority for testing.
type Client struct {
	mu        sync.Mutex
	grant     sessioncredit.Grant
	staticErr error
	failAfter int
	finalAt   int
	calls     int
	reports   []sessioncredit.UsageReport
	grantFunc func(sessioncredit.UsageReport) (sessioncredit.Grant, error)
}

var _ sessioncredit.ChargingClient = (*Client)(nil)

// Option configures a mock Client.
type Option func(*Client)

// New creates a mock client with the given options. By default every
// report is answered with a non-final 1 MiB grant.
func New(opts ...Option) *Client {
	c := &Client{
		grant: sessioncredit.Grant{TotalVolume: 1 << 20},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithGrant sets the grant returned for every report.
func WithGrant(g sessioncredit.Grant) Option {
	return func(c *Client) { c.grant = g }
}

// WithError makes the client always return this error.
func WithError(err error) Option {
	return func(c *Client) { c.staticErr = err }
}

// WithFailAfter makes the client fail with ErrAuthorityUnavailable after
// n successful exchanges.
func WithFailAfter(n int) Option {
	return func(c *Client) { c.failAfter = n }
}

// WithFinalAt makes the n-th grant (1-based) final.
func WithFinalAt(n int) Option {
	return func(c *Client) { c.finalAt = n }
}

// WithGrantFunc overrides the response per report.
func WithGrantFunc(fn func(sessioncredit.UsageReport) (sessioncredit.Grant, error)) Option {
	return func(c *Client) { c.grantFunc = fn }
}

// SendUsage records the report and answers it per the configured script.
func (c *Client) SendUsage(_ context.Context, report sessioncredit.UsageReport) (sessioncredit.Grant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.calls++
	c.reports = append(c.reports, report)

	if c.grantFunc != nil {
		return c.grantFunc(report)
	}
	if c.staticErr != nil {
		return sessioncredit.Grant{}, c.staticErr
	}
	if c.failAfter > 0 && c.calls > c.failAfter {
		return sessioncredit.Grant{}, sessioncredit.ErrAuthorityUnavailable
	}

	g := c.grant
	if c.finalAt > 0 && c.calls >= c.finalAt {
		g.IsFinal = true
	}
	return g, nil
}

// Reports returns a copy of all reports received so far.
func (c *Client) Reports() []sessioncredit.UsageReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]sessioncredit.UsageReport, len(c.reports))
	copy(out, c.reports)
	return out
}

// Calls returns how many exchanges the client has served.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.calls
}
