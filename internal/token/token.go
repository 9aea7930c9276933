// Package token mints and verifies the signed tokens used by the login
// protocol. Each token class carries a distinct purpose claim so a token
// minted for one step can never be replayed at another: household tokens
// only bridge household selection to user login, activation tokens only
// authorise setting a first personal PIN, and session tokens carry the
// authenticated identity.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose scopes a token to a single step of the protocol.
type Purpose string

const (
	PurposeAccess     Purpose = "access"
	PurposeRefresh    Purpose = "refresh"
	PurposeHousehold  Purpose = "household"
	PurposeActivation Purpose = "activate"
)

// Token lifetimes.
const (
	AccessTTL     = 15 * time.Minute
	RefreshTTL    = 30 * 24 * time.Hour
	HouseholdTTL  = 10 * time.Minute
	ActivationTTL = 15 * time.Minute
)

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
	ErrWrongPurpose = errors.New("token not valid for this operation")
)

// Claims extends the registered JWT claims with household identity fields.
type Claims struct {
	jwt.RegisteredClaims
	UserID      int64   `json:"uid,omitempty"`
	HouseholdID int64   `json:"hid,omitempty"`
	Role        string  `json:"role,omitempty"`
	Purpose     Purpose `json:"purpose"`
}

// Signer mints and parses HS256 tokens with a shared secret.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// MintSession creates an access or refresh token carrying the full
// authenticated identity: user, household and role.
func (s *Signer) MintSession(userID, householdID int64, role string, purpose Purpose, ttl time.Duration) (string, error) {
	if purpose != PurposeAccess && purpose != PurposeRefresh {
		return "", fmt.Errorf("mint session: purpose %q is not a session purpose", purpose)
	}
	return s.mint(Claims{
		UserID:      userID,
		HouseholdID: householdID,
		Role:        role,
		Purpose:     purpose,
	}, ttl)
}

// MintHousehold creates the short-lived token returned by household
// selection. It identifies the household only; no user has authenticated
// yet.
func (s *Signer) MintHousehold(householdID int64) (string, error) {
	return s.mint(Claims{
		HouseholdID: householdID,
		Purpose:     PurposeHousehold,
	}, HouseholdTTL)
}

// MintActivation creates the short-lived token handed to an invited member
// whose temporary PIN checked out, authorising exactly one account
// activation.
func (s *Signer) MintActivation(userID, householdID int64) (string, error) {
	return s.mint(Claims{
		UserID:      userID,
		HouseholdID: householdID,
		Purpose:     PurposeActivation,
	}, ActivationTTL)
}

func (s *Signer) mint(claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Parse validates a token's signature and expiry and checks that it was
// minted for the wanted purpose. Expired tokens return ErrTokenExpired;
// a purpose mismatch returns ErrWrongPurpose; anything else malformed
// returns ErrTokenInvalid.
func (s *Signer) Parse(raw string, want Purpose) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Purpose != want {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}
