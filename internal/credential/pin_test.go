package credential

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	ctx := context.Background()

	hash, err := h.Hash(ctx, "4321")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "4321" {
		t.Fatal("hash must not equal the pin")
	}

	ok, err := h.Verify(ctx, "4321", hash)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Error("correct pin should verify")
	}
}

func TestVerifyMismatchIsNotAnError(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	ctx := context.Background()

	hash, err := h.Hash(ctx, "4321")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	ok, err := h.Verify(ctx, "9999", hash)
	if err != nil {
		t.Fatalf("mismatch must not return an error, got %v", err)
	}
	if ok {
		t.Error("wrong pin should not verify")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	ok, err := h.Verify(context.Background(), "4321", "not-a-bcrypt-hash")
	if err == nil {
		t.Error("malformed hash should error")
	}
	if ok {
		t.Error("malformed hash should not verify")
	}
}

func TestHashesAreSalted(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	ctx := context.Background()

	h1, err := h.Hash(ctx, "4321")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := h.Hash(ctx, "4321")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same pin should differ")
	}
}
