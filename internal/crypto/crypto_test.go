package crypto

import (
	"errors"
	"strings"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestRoundtrip(t *testing.T) {
	s, err := NewSealer(testSecret)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	original := `{"userId":10,"role":"sales"}`
	sealed, err := s.Seal([]byte(original))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if sealed == original {
		t.Fatal("sealed text should differ from plaintext")
	}
	if strings.ContainsAny(sealed, "+/=;, ") {
		t.Errorf("sealed value must be cookie-safe, got %q", sealed)
	}

	opened, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(opened) != original {
		t.Errorf("roundtrip failed: got %q, want %q", opened, original)
	}
}

func TestRejectsShortSecret(t *testing.T) {
	if _, err := NewSealer("short"); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestDifferentCiphertexts(t *testing.T) {
	s, err := NewSealer(testSecret)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	enc1, err := s.Seal([]byte("same input"))
	if err != nil {
		t.Fatalf("Seal 1: %v", err)
	}
	enc2, err := s.Seal([]byte("same input"))
	if err != nil {
		t.Fatalf("Seal 2: %v", err)
	}

	if enc1 == enc2 {
		t.Error("two encryptions of the same plaintext should produce different ciphertexts (random nonce)")
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	s, err := NewSealer(testSecret)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	for _, input := range []string{
		"",
		"not base64 !!!",
		"dG9vc2hvcnQ", // valid base64, shorter than a nonce
	} {
		if _, err := s.Open(input); !errors.Is(err, ErrInvalidCiphertext) {
			t.Errorf("Open(%q): expected ErrInvalidCiphertext, got %v", input, err)
		}
	}
}

func TestOpenRejectsTampering(t *testing.T) {
	s, err := NewSealer(testSecret)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	sealed, err := s.Seal([]byte(`{"userId":10}`))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	// Flip one character of the encoded ciphertext.
	b := []byte(sealed)
	last := len(b) - 1
	if b[last] == 'A' {
		b[last] = 'B'
	} else {
		b[last] = 'A'
	}

	if _, err := s.Open(string(b)); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("expected ErrInvalidCiphertext for tampered value, got %v", err)
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	s1, _ := NewSealer(testSecret)
	s2, _ := NewSealer("ffffffffffffffffffffffffffffffff")

	sealed, err := s1.Seal([]byte("secret payload"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	if _, err := s2.Open(sealed); !errors.Is(err, ErrInvalidCiphertext) {
		t.Errorf("expected ErrInvalidCiphertext with wrong key, got %v", err)
	}
}
