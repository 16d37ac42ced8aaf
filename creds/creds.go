// Package creds implements the Credentials object from spec §3/§4.10.
// The original backs credentials with plain UNIX uid/gid; this repo's
// domain-stack expansion backs them with a signed JWT instead (§ DOMAIN
// STACK), giving the client something that actually round-trips as an
// opaque bearer token across the wire rather than two bare integers.
package creds

import (
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/julea-io/julea/cmn/cos"
)

// claims is the JWT payload: the fields the original JULEA credential
// object carries (user, group) plus standard registered claims.
type claims struct {
	jwt.RegisteredClaims
	User  string `json:"user"`
	Group string `json:"group"`
}

// Credentials wraps a signed token. It is immutable once created; every
// batch operation takes a read-only reference (spec §4.10's "ref-counted",
// realized here as an ordinary shared pointer since Go's GC already owns
// the lifetime decision).
type Credentials struct {
	token *jwt.Token
	raw   string
	user  string
	group string
}

// New mints fresh credentials for (user, group), signed with key using
// HS256. In production key is provisioned out of band; tests may use any
// non-empty byte slice.
func New(user, group string, key []byte) (*Credentials, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		User:  user,
		Group: group,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	raw, err := token.SignedString(key)
	if err != nil {
		return nil, cos.NewErrInvalidArgument("sign credentials: %v", err)
	}
	return &Credentials{token: token, raw: raw, user: user, group: group}, nil
}

// Parse verifies and decodes a bearer token received over the wire.
func Parse(raw string, key []byte) (*Credentials, error) {
	var c claims
	token, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) { return key, nil })
	if err != nil || !token.Valid {
		return nil, cos.NewErrInvalidArgument("invalid credentials token")
	}
	return &Credentials{token: token, raw: raw, user: c.User, group: c.Group}, nil
}

func (c *Credentials) User() string  { return c.user }
func (c *Credentials) Group() string { return c.group }

// Bearer returns the signed, wire-ready token string persisted under an
// item's "credentials" sub-document (spec §6).
func (c *Credentials) Bearer() string { return c.raw }
