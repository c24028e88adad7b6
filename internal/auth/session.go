// Package auth issues and verifies opaque session tickets that let a
// reconnecting player prove their identity without replaying their raw
// per-session secret a second time. This is additive: when session tickets
// are disabled, rejoin falls back to the raw-secret comparison in
// internal/lobby untouched.
package auth

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TicketIssuer signs and verifies session tickets with a single ed25519
// keypair generated at process startup.
type TicketIssuer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	ttl        time.Duration
}

// NewTicketIssuer generates a fresh ed25519 keypair. Tickets are only ever
// verified by the process that issued them, so a persisted key is
// unnecessary.
func NewTicketIssuer(ttl time.Duration) (*TicketIssuer, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key pair: %w", err)
	}
	return &TicketIssuer{privateKey: priv, publicKey: pub, ttl: ttl}, nil
}

// Issue signs a ticket binding playerID, lobbyID, and secret together.
func (ti *TicketIssuer) Issue(playerID, lobbyID, secret string) (string, error) {
	claims := jwt.MapClaims{
		"sub":    playerID,
		"lobby":  lobbyID,
		"secret": secret,
	}
	if ti.ttl > 0 {
		claims["exp"] = time.Now().Add(ti.ttl).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(ti.privateKey)
}

// Claims is the decoded, verified content of a session ticket.
type Claims struct {
	PlayerID string
	LobbyID  string
	Secret   string
}

// Verify parses and validates ticket, checking it was issued for the given
// lobby. A ticket issued for a different lobby, or that fails to verify for
// any other reason, returns an error — callers should fall back to the
// raw-secret rejoin path rather than treat this as fatal.
func (ti *TicketIssuer) Verify(ticket, lobbyID string) (Claims, error) {
	t, err := jwt.Parse(ticket, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ti.publicKey, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("parse ticket: %w", err)
	}
	if !t.Valid {
		return Claims{}, fmt.Errorf("invalid ticket")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("invalid ticket claims")
	}

	out := Claims{}
	out.PlayerID, _ = claims["sub"].(string)
	out.LobbyID, _ = claims["lobby"].(string)
	out.Secret, _ = claims["secret"].(string)

	if out.LobbyID != lobbyID {
		return Claims{}, fmt.Errorf("ticket issued for a different lobby")
	}
	return out, nil
}
