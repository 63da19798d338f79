// Package nameservice reads the miners folder and creates a name service
// lookup for the miner identities that submit proofs.
package nameservice

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ardanlabs/powledger/foundation/blockchain/identity"
)

// identityExts are the file types holding miner identities.
var identityExts = map[string]bool{
	identity.KeyExtension: true,
	".txt":                true,
}

// NameService maintains a map of miner identities for name lookup.
type NameService struct {
	miners map[string]string
}

// New constructs a name service with the identities found in the folder. The
// name of a miner is the file name without the extension. A missing folder
// produces an empty name service.
func New(root string) (*NameService, error) {
	ns := NameService{
		miners: make(map[string]string),
	}

	if root == "" {
		return &ns, nil
	}

	fn := func(fileName string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		ext := filepath.Ext(fileName)
		if d.IsDir() || !identityExts[ext] {
			return nil
		}

		id, err := identity.Load(fileName)
		if err != nil {
			return err
		}

		ns.miners[id] = strings.TrimSuffix(filepath.Base(fileName), ext)

		return nil
	}

	if err := filepath.WalkDir(root, fn); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ns, nil
		}
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified miner.
func (ns *NameService) Lookup(miner string) string {
	name, exists := ns.miners[miner]
	if !exists {
		return miner
	}
	return name
}

// Copy returns a copy of the map of miners and names.
func (ns *NameService) Copy() map[string]string {
	cpy := make(map[string]string, len(ns.miners))
	for miner, name := range ns.miners {
		cpy[miner] = name
	}
	return cpy
}
