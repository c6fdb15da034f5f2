package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, AddressLength)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	addr := NewAddress(BankPrefix, raw)

	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(BankPrefix)+"1") {
		t.Fatalf("unexpected encoding: %s", encoded)
	}

	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), raw) {
		t.Fatalf("round trip mismatch: %x", decoded.Bytes())
	}
	if decoded.Prefix() != BankPrefix {
		t.Fatalf("unexpected prefix: %s", decoded.Prefix())
	}
	if !decoded.Equal(addr) {
		t.Fatalf("decoded address not equal to original")
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "not-bech32", "bank1qqqq"} {
		if _, err := DecodeAddress(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestIsZero(t *testing.T) {
	if !(Address{}).IsZero() {
		t.Fatalf("empty address should be zero")
	}
	if !NewAddress(BankPrefix, make([]byte, AddressLength)).IsZero() {
		t.Fatalf("all-zero address should be zero")
	}
	raw := make([]byte, AddressLength)
	raw[0] = 1
	if NewAddress(BankPrefix, raw).IsZero() {
		t.Fatalf("non-zero address reported zero")
	}
}
