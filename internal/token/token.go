// Package token issues and verifies preview capability tokens. A token is
// a signed back-reference to a server-held PreviewSession: it grants the
// holder one narrow permission (confirm that specific preview before it
// expires) and never carries the payroll data itself. Revocation lives
// server-side; deleting the session invalidates every outstanding token
// that points at it.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/nukk-pain/smpain-hr/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenExpired is returned for a well-formed token past its expiry.
	ErrTokenExpired = errors.New("preview token expired")
	// ErrTokenInvalid is returned for malformed or badly signed tokens.
	ErrTokenInvalid = errors.New("preview token invalid")
)

// Claims are the verified contents of a preview token.
type Claims struct {
	SessionID uuid.UUID
	OwnerID   uuid.UUID
	FileName  string
	IssuedAt  time.Time
}

// Issuer signs and verifies preview tokens with an HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an issuer. TTL defaults to 30 minutes, matching the
// session lifetime it references.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Issuer{secret: secret, ttl: ttl}
}

type previewClaims struct {
	FileName string `json:"file"`
	jwt.RegisteredClaims
}

// Issue signs a token referencing the given session.
func (i *Issuer) Issue(session domain.PreviewSession) (string, error) {
	now := time.Now()
	claims := previewClaims{
		FileName: session.FileName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID.String(),
			Subject:   session.OwnerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign preview token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry and returns the claims. Whether
// the referenced session still exists is the coordinator's concern, not
// this package's.
func (i *Issuer) Verify(tokenString string) (Claims, error) {
	var claims previewClaims
	parsed, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return Claims{}, ErrTokenInvalid
	}

	sessionID, err := uuid.Parse(claims.ID)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: bad session id", ErrTokenInvalid)
	}
	ownerID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: bad owner id", ErrTokenInvalid)
	}

	out := Claims{
		SessionID: sessionID,
		OwnerID:   ownerID,
		FileName:  claims.FileName,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}
