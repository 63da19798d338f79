// Package identity loads the identity a prospector reports when it submits
// proofs. The identity is not verified by the ledger, it is only used to
// credit the miner.
package identity

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// KeyExtension marks a file holding an ECDSA private key.
const KeyExtension = ".ecdsa"

// ErrEmpty is returned when an identity file has no content.
var ErrEmpty = errors.New("identity file is empty")

// Load reads the identity stored at the path. A key file yields the
// account address of the key, any other file yields its trimmed content.
func Load(path string) (string, error) {
	if filepath.Ext(path) == KeyExtension {
		privateKey, err := crypto.LoadECDSA(path)
		if err != nil {
			return "", fmt.Errorf("loading key %q: %w", path, err)
		}

		return crypto.PubkeyToAddress(privateKey.PublicKey).String(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading identity: %w", err)
	}

	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", fmt.Errorf("%s: %w", path, ErrEmpty)
	}

	return id, nil
}
