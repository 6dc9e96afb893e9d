// Package auth implements the portal login gate: a single shared passkey
// plus a role derived from the email's local-part prefix.
package auth

import (
	"fmt"
	"strings"

	"github.com/ironlady-io/bridge/pkg/protocol"
)

const defaultPasskey = "leadership"

// Login failures are distinguishable so the portal can show the matching
// denial text.
var (
	ErrBadDomain   = fmt.Errorf("auth: only .com enterprise domains permitted")
	ErrBadPasskey  = fmt.Errorf("auth: invalid credentials")
	ErrEmptyFields = fmt.Errorf("auth: email and passkey are required")
)

// Gate checks portal credentials.
type Gate struct {
	passkey string
}

// Option configures a Gate.
type Option func(*Gate)

// WithPasskey overrides the shared passkey.
func WithPasskey(key string) Option {
	return func(g *Gate) { g.passkey = key }
}

func NewGate(opts ...Option) *Gate {
	g := &Gate{passkey: defaultPasskey}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Login validates the credentials and returns the mapped role. The domain
// check runs before the passkey check, matching the denial order shown to
// operators.
func (g *Gate) Login(email, passkey string) (protocol.Role, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || passkey == "" {
		return "", ErrEmptyFields
	}
	if !strings.HasSuffix(email, ".com") {
		return "", ErrBadDomain
	}
	if passkey != g.passkey {
		return "", ErrBadPasskey
	}
	return roleFor(email), nil
}

// roleFor maps the email prefix to a role; anything unrecognized gets the
// Support role.
func roleFor(email string) protocol.Role {
	switch {
	case strings.HasPrefix(email, "admin"):
		return protocol.RoleAdmin
	case strings.HasPrefix(email, "support"):
		return protocol.RoleSupport
	case strings.HasPrefix(email, "content"):
		return protocol.RoleContent
	default:
		return protocol.RoleSupport
	}
}
