package model

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
)

// Identity is one account's key material. Read-only once built.
type Identity struct {
	PrivateKey *ecdsa.PrivateKey
	Address    common.Address
}

func (i Identity) Hex() string {
	return i.Address.Hex()
}
