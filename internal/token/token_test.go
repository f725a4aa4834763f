package token

import (
	"errors"
	"testing"
	"time"

	"github.com/nukk-pain/smpain-hr/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func testSession() domain.PreviewSession {
	return domain.NewPreviewSession(
		uuid.New(), "payroll.csv", 2025, 6,
		nil, domain.ProcessingReport{}, "digest", 30*time.Minute,
	)
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), time.Minute)
	session := testSession()

	signed, err := issuer.Issue(session)
	if err != nil {
		t.Fatalf("issue returned error: %v", err)
	}

	claims, err := issuer.Verify(signed)
	if err != nil {
		t.Fatalf("verify returned error: %v", err)
	}
	if claims.SessionID != session.ID {
		t.Fatalf("expected session id %s, got %s", session.ID, claims.SessionID)
	}
	if claims.OwnerID != session.OwnerID {
		t.Fatalf("expected owner id %s, got %s", session.OwnerID, claims.OwnerID)
	}
	if claims.FileName != "payroll.csv" {
		t.Fatalf("expected file name to round-trip, got %q", claims.FileName)
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), time.Minute)
	forger := NewIssuer([]byte("other-secret"), time.Minute)

	signed, err := forger.Issue(testSession())
	if err != nil {
		t.Fatalf("issue returned error: %v", err)
	}

	if _, err := issuer.Verify(signed); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign signature, got %v", err)
	}
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), time.Minute)

	if _, err := issuer.Verify("not.a.token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), time.Minute)
	session := testSession()

	claims := previewClaims{
		FileName: session.FileName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        session.ID.String(),
			Subject:   session.OwnerID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-30 * time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(issuer.secret)
	if err != nil {
		t.Fatalf("failed to sign expired token: %v", err)
	}

	if _, err := issuer.Verify(signed); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRejectsUnexpectedSigningMethod(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), time.Minute)

	// alg=none tokens must never verify, whatever their claims say.
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, previewClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}

	if _, err := issuer.Verify(unsigned); err == nil {
		t.Fatalf("expected verification failure for alg=none token")
	}
}
