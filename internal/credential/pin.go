// Package credential hashes and verifies secret PINs: household PINs,
// personal PINs and temporary invitation PINs all go through the same
// bcrypt code path.
package credential

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Hasher performs bcrypt hashing on a bounded pool. bcrypt is deliberately
// slow; the semaphore caps concurrent hashes at GOMAXPROCS so a burst of
// logins cannot starve every other request of CPU.
type Hasher struct {
	sem  *semaphore.Weighted
	cost int
}

// NewHasher creates a Hasher with the given bcrypt cost. A cost of zero
// selects bcrypt.DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{
		sem:  semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
		cost: cost,
	}
}

// Hash returns the bcrypt hash of a PIN. The context bounds waiting for a
// pool slot only; once hashing starts it runs to completion.
func (h *Hasher) Hash(ctx context.Context, pin string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.sem.Release(1)

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(hash), nil
}

// Verify compares a PIN against a stored hash. A mismatch is not an error:
// it returns (false, nil), and the caller decides what failure that means.
// Errors are reserved for malformed hashes and pool acquisition failures.
func (h *Hasher) Verify(ctx context.Context, pin, hash string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("acquire hash slot: %w", err)
	}
	defer h.sem.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("verify pin: %w", err)
}
