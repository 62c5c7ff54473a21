package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ohmynofan/questline-bot/internal/domain/model"
	"github.com/ohmynofan/questline-bot/internal/platform/logger"
	"github.com/ohmynofan/questline-bot/pkg/utils"
)

// ErrInvalidKey is local-fatal: the account is skipped, never retried.
var ErrInvalidKey = errors.New("invalid account key")

// NewIdentity builds an Identity from a hex private key or a BIP-39 phrase.
func NewIdentity(raw string) (model.Identity, error) {
	data := strings.TrimSpace(raw)
	if data == "" {
		return model.Identity{}, fmt.Errorf("%w: empty input", ErrInvalidKey)
	}

	var (
		privateKey *ecdsa.PrivateKey
		err        error
	)
	switch utils.ClassifyKey(data) {
	case utils.KeyKindMnemonic:
		privateKey, err = utils.KeyFromMnemonic(data, "", utils.DefaultDerivationPath)
		if err != nil {
			return model.Identity{}, fmt.Errorf("%w: failed to read from seed phrase: %v", ErrInvalidKey, err)
		}
	case utils.KeyKindHex:
		privateKey, err = utils.HexKey(data)
		if err != nil {
			return model.Identity{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
	default:
		return model.Identity{}, fmt.Errorf("%w: secret phrase or private key required", ErrInvalidKey)
	}

	return model.Identity{PrivateKey: privateKey, Address: crypto.PubkeyToAddress(privateKey.PublicKey)}, nil
}

type Signer struct {
	identity model.Identity
	log      *logger.ClassLogger
}

func NewSigner(identity model.Identity, state *model.AccountState) *Signer {
	s := &Signer{identity: identity}
	s.log = logger.NewLogger(s, state)
	return s
}

func (s *Signer) Address() string {
	return s.identity.Hex()
}

// SignMessage produces an EIP-191 personal signature with v in {27, 28}.
func (s *Signer) SignMessage(message string) (string, error) {
	scope := "[SignMessage] Error :"
	if s.identity.PrivateKey == nil {
		return "", fmt.Errorf("%s wallet is not connected", scope)
	}

	msgHash := accounts.TextHash([]byte(message))
	signature, err := crypto.Sign(msgHash, s.identity.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("%s failed to sign message: %w", scope, err)
	}

	if signature[64] < 27 {
		signature[64] += 27
	}

	s.log.Debug("Message successfully signed")
	return hexutil.Encode(signature), nil
}

// RecoverAddress returns the signer of an EIP-191 signature.
func RecoverAddress(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, err
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("invalid signature length %d", len(sig))
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func GeneratePrivateKeyHex() (string, error) {
	pk, err := crypto.GenerateKey()
	if err != nil {
		return "", err
	}
	return hexutil.Encode(crypto.FromECDSA(pk)), nil
}
