package auth

import (
	"errors"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "hunter22" {
		t.Fatal("hash equals plaintext")
	}
	if !CheckPassword(hash, "hunter22") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "hunter23") {
		t.Error("expected wrong password to fail")
	}
}

func TestHashPasswordTooShort(t *testing.T) {
	_, err := HashPassword("abc")
	if !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("err = %v, want ErrPasswordTooShort", err)
	}
}

func TestCheckPasswordBadHash(t *testing.T) {
	if CheckPassword("not-a-hash", "whatever") {
		t.Error("expected garbage hash to fail")
	}
}
