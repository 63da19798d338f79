package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/canonical"
)

// GenesisPreviousHash is the fixed previous hash of the first block.
const GenesisPreviousHash = "============="

// GenesisProof is the bootstrap proof of the first block.
const GenesisProof = 100

// =============================================================================

// Block represents a group of transactions batched together. A block is
// never changed once it is part of the chain.
type Block struct {
	Index        int     `json:"index"`
	Timestamp    float64 `json:"timestamp"`
	Transactions []any   `json:"transactions"`
	Proof        int64   `json:"proof"`
	PreviousHash string  `json:"previous_hash"`
}

// Timestamp converts a time into the seconds based value stored in a block.
func Timestamp(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

// fields returns the block as the generic value that is serialized.
func (b Block) fields() map[string]any {
	trans := b.Transactions
	if trans == nil {
		trans = []any{}
	}

	return map[string]any{
		"index":         b.Index,
		"timestamp":     b.Timestamp,
		"transactions":  trans,
		"proof":         b.Proof,
		"previous_hash": b.PreviousHash,
	}
}

// String returns the canonical serialization of the block. This is the
// string miners append proofs to and the input to Hash.
func (b Block) String() string {
	data, err := canonical.Marshal(b.fields())
	if err != nil {

		// Transactions are validated when they are added so this
		// should never happen.
		return fmt.Sprintf("invalid block %d: %s", b.Index, err)
	}

	return string(data)
}

// Hash returns the lowercase hex SHA-256 of the canonical serialization.
func (b Block) Hash() string {
	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// MarshalJSON renders the block with the canonical number formatting, so an
// integral timestamp still goes out as X.0. The encoder compacts the output,
// so the wire bytes differ from String only in spacing and escaping.
func (b Block) MarshalJSON() ([]byte, error) {
	return canonical.Marshal(b.fields())
}

// clone returns a copy of the block that shares no transaction data with b.
func (b Block) clone() Block {
	if b.Transactions != nil {
		trans := make([]any, len(b.Transactions))
		for i, tx := range b.Transactions {
			trans[i] = cloneValue(tx)
		}
		b.Transactions = trans
	}
	return b
}

// cloneValue copies the maps and slices of a decoded JSON value.
func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		l := make([]any, len(v))
		for i, e := range v {
			l[i] = cloneValue(e)
		}
		return l
	}
	return v
}

// UnmarshalJSON decodes a block keeping the transaction numbers intact.
func (b *Block) UnmarshalJSON(data []byte) error {
	var aux struct {
		Index        int             `json:"index"`
		Timestamp    float64         `json:"timestamp"`
		Transactions json.RawMessage `json:"transactions"`
		Proof        int64           `json:"proof"`
		PreviousHash string          `json:"previous_hash"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	trans := []any{}
	if len(aux.Transactions) > 0 && !bytes.Equal(aux.Transactions, []byte("null")) {
		v, err := canonical.Decode(aux.Transactions)
		if err != nil {
			return fmt.Errorf("transactions: %w", err)
		}

		list, ok := v.([]any)
		if !ok {
			return fmt.Errorf("transactions: expected a list, got %T", v)
		}
		trans = list
	}

	*b = Block{
		Index:        aux.Index,
		Timestamp:    aux.Timestamp,
		Transactions: trans,
		Proof:        aux.Proof,
		PreviousHash: aux.PreviousHash,
	}

	return nil
}
