package public

import (
	"encoding/json"

	"github.com/ardanlabs/powledger/foundation/blockchain/ledger"
)

// mineRequest is a proof submission. The pointers let validation tell a
// missing field apart from a zero value.
type mineRequest struct {
	Proof  *int64 `json:"proof" validate:"required"`
	ID     *int   `json:"id" validate:"required"`
	UserID string `json:"user_id"`
}

type mineResponse struct {
	Message string        `json:"message"`
	Block   *ledger.Block `json:"block,omitempty"`
}

type chain struct {
	Length int            `json:"length"`
	Blocks []ledger.Block `json:"block"`
}

type tip struct {
	LastBlock  ledger.Block `json:"last_block"`
	Difficulty int          `json:"difficulty"`
}

type newTx struct {
	Sender    string      `json:"sender" validate:"required"`
	Recipient string      `json:"recipient" validate:"required"`
	Amount    json.Number `json:"amount" validate:"required"`
}

type message struct {
	Message string `json:"message"`
}

type miner struct {
	Miner  string `json:"miner"`
	Name   string `json:"name"`
	Forged int    `json:"forged"`
}
