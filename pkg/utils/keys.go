package utils

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	bip32 "github.com/tyler-smith/go-bip32"
	bip39 "github.com/tyler-smith/go-bip39"
)

type KeyKind string

const (
	KeyKindMnemonic KeyKind = "mnemonic"
	KeyKindHex      KeyKind = "hex"
	KeyKindUnknown  KeyKind = "unknown"
)

const hardened = bip32.FirstHardenedChild

// DefaultDerivationPath is m/44'/60'/0'/0/0, the first Ethereum account.
var DefaultDerivationPath = []uint32{44 + hardened, 60 + hardened, hardened, 0, 0}

var hexKeyPattern = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)

// ClassifyKey tells a BIP-39 phrase from a 32-byte hex key.
func ClassifyKey(input string) KeyKind {
	input = strings.TrimSpace(input)
	switch {
	case bip39.IsMnemonicValid(input):
		return KeyKindMnemonic
	case hexKeyPattern.MatchString(strings.TrimPrefix(input, "0x")):
		return KeyKindHex
	}
	return KeyKindUnknown
}

func HexKey(input string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(input), "0x"))
}

// KeyFromMnemonic walks path from the seed's master key.
func KeyFromMnemonic(mnemonic, passphrase string, path []uint32) (*ecdsa.PrivateKey, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid BIP-39 mnemonic")
	}
	key, err := bip32.NewMasterKey(bip39.NewSeed(mnemonic, passphrase))
	if err != nil {
		return nil, err
	}
	for depth, index := range path {
		if key, err = key.NewChildKey(index); err != nil {
			return nil, fmt.Errorf("derive child at depth %d: %w", depth+1, err)
		}
	}
	return crypto.ToECDSA(key.Key)
}
