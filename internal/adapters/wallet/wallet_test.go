package wallet

import (
	"errors"
	"strings"
	"testing"
)

func TestNewIdentity(t *testing.T) {
	pk, err := GeneratePrivateKeyHex()
	if err != nil {
		t.Fatalf("GeneratePrivateKeyHex() error = %v", err)
	}

	id, err := NewIdentity(pk)
	if err != nil {
		t.Fatalf("NewIdentity() error = %v", err)
	}
	if !strings.HasPrefix(id.Hex(), "0x") || len(id.Hex()) != 42 {
		t.Errorf("unexpected address %q", id.Hex())
	}

	again, err := NewIdentity("  " + strings.TrimPrefix(pk, "0x") + "\n")
	if err != nil {
		t.Fatalf("NewIdentity() without prefix error = %v", err)
	}
	if again.Address != id.Address {
		t.Errorf("address mismatch %s != %s", again.Hex(), id.Hex())
	}
}

func TestNewIdentityInvalid(t *testing.T) {
	for _, input := range []string{"", "   ", "0x1234", "hello world"} {
		if _, err := NewIdentity(input); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("NewIdentity(%q) error = %v, want ErrInvalidKey", input, err)
		}
	}
}

func TestSignMessageRecovers(t *testing.T) {
	pk, _ := GeneratePrivateKeyHex()
	id, err := NewIdentity(pk)
	if err != nil {
		t.Fatalf("NewIdentity() error = %v", err)
	}
	signer := NewSigner(id, nil)

	sig, err := signer.SignMessage("hello questline")
	if err != nil {
		t.Fatalf("SignMessage() error = %v", err)
	}
	if len(sig) != 132 {
		t.Errorf("signature length = %d, want 132", len(sig))
	}
	if v := sig[len(sig)-2:]; v != "1b" && v != "1c" {
		t.Errorf("recovery byte = %s, want 1b or 1c", v)
	}

	got, err := RecoverAddress("hello questline", sig)
	if err != nil {
		t.Fatalf("RecoverAddress() error = %v", err)
	}
	if got != id.Address {
		t.Errorf("recovered %s, want %s", got.Hex(), id.Hex())
	}
}
