// Package ledger is the core API for the proof of work ledger. It owns the
// append only chain of blocks and the pending transactions, validates proof
// submissions and forges new blocks.
package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/canonical"
	"github.com/ardanlabs/powledger/foundation/blockchain/pow"
)

// DefaultDifficulty is the number of leading zeros required when the
// configuration doesn't specify one.
const DefaultDifficulty = 6

// Set of error variables for submission handling.
var (
	ErrBlockClaimed = errors.New("Block already claimed")
	ErrInvalidProof = errors.New("No New Block")
)

// EventHandler defines a function that is called when events
// occur in the processing of submissions.
type EventHandler func(v string, args ...any)

// =============================================================================

// Config represents the configuration required to start the ledger.
type Config struct {
	Difficulty int
	Clock      func() time.Time
	EvHandler  EventHandler
}

// Submission is a proof a miner claims solves the puzzle for the block
// with the specified id.
type Submission struct {
	ID    int
	Proof int64
	Miner string
}

// Ledger manages the chain. All methods are safe for concurrent use.
type Ledger struct {
	mu         sync.Mutex
	difficulty int
	clock      func() time.Time
	evHandler  EventHandler

	chain   []Block
	pending []any
	miners  map[string]int
}

// New constructs a ledger holding only the genesis block.
func New(cfg Config) (*Ledger, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	if cfg.Difficulty < 0 || cfg.Difficulty > pow.MaxDifficulty {
		return nil, fmt.Errorf("difficulty %d out of range [0, %d]", cfg.Difficulty, pow.MaxDifficulty)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	l := Ledger{
		difficulty: cfg.Difficulty,
		clock:      clock,
		evHandler:  ev,
		pending:    []any{},
		miners:     make(map[string]int),
	}

	genesis := l.AppendBlock(GenesisProof, GenesisPreviousHash)
	ev("ledger: New: genesis: blk[%s]", genesis.Hash())

	return &l, nil
}

// Difficulty returns the number of leading zeros a proof must produce.
func (l *Ledger) Difficulty() int {
	return l.difficulty
}

// AppendBlock forges a new block from the pending transactions and adds it
// to the chain. An empty previousHash links the block to the current last
// block. The proof is not validated here, see Submit.
func (l *Ledger) AppendBlock(proof int64, previousHash string) Block {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.appendBlock(proof, previousHash)
}

// appendBlock must be called with the lock held.
func (l *Ledger) appendBlock(proof int64, previousHash string) Block {
	if previousHash == "" {
		previousHash = l.chain[len(l.chain)-1].Hash()
	}

	block := Block{
		Index:        len(l.chain) + 1,
		Timestamp:    Timestamp(l.clock()),
		Transactions: l.pending,
		Proof:        proof,
		PreviousHash: previousHash,
	}

	l.pending = []any{}
	l.chain = append(l.chain, block)

	return block.clone()
}

// Submit validates a proof for the next block and forges it when the proof
// solves the puzzle for the current last block. The duplicate check, the
// validation and the append happen under one lock so two miners can't both
// win the same height.
func (l *Ledger) Submit(sub Submission) (Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.evHandler("ledger: Submit: started: id[%d] proof[%d] miner[%s]", sub.ID, sub.Proof, sub.Miner)

	if sub.ID <= len(l.chain) {
		l.evHandler("ledger: Submit: rejected: id[%d] length[%d]: %s", sub.ID, len(l.chain), ErrBlockClaimed)
		return Block{}, ErrBlockClaimed
	}

	last := l.chain[len(l.chain)-1]
	if !pow.ValidProof(last.String(), sub.Proof, l.difficulty) {
		l.evHandler("ledger: Submit: rejected: id[%d] proof[%d]: %s", sub.ID, sub.Proof, ErrInvalidProof)
		return Block{}, ErrInvalidProof
	}

	block := l.appendBlock(sub.Proof, last.Hash())
	if sub.Miner != "" {
		l.miners[sub.Miner]++
	}

	l.evHandler("ledger: Submit: FORGED: blk[%d] hash[%s] miner[%s]", block.Index, block.Hash(), sub.Miner)

	return block, nil
}

// AddTransaction adds a transaction to the pending set and returns the
// index of the block it will be forged into. The transaction must have a
// canonical form.
func (l *Ledger) AddTransaction(tx any) (int, error) {
	if _, err := canonical.Marshal(tx); err != nil {
		return 0, fmt.Errorf("transaction: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, tx)
	next := len(l.chain) + 1

	l.evHandler("ledger: AddTransaction: pending[%d] blk[%d]", len(l.pending), next)

	return next, nil
}

// =============================================================================

// LastBlock returns the block at the tip of the chain.
func (l *Ledger) LastBlock() Block {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.chain[len(l.chain)-1].clone()
}

// Tip returns the last block and the difficulty miners must solve for.
func (l *Ledger) Tip() (Block, int) {
	return l.LastBlock(), l.difficulty
}

// Length returns the number of blocks in the chain.
func (l *Ledger) Length() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.chain)
}

// Chain returns a copy of the chain. Callers may change the blocks they get
// back without affecting the ledger.
func (l *Ledger) Chain() []Block {
	l.mu.Lock()
	defer l.mu.Unlock()

	cpy := make([]Block, len(l.chain))
	for i, block := range l.chain {
		cpy[i] = block.clone()
	}

	return cpy
}

// Pending returns a copy of the transactions waiting for the next block.
func (l *Ledger) Pending() []any {
	l.mu.Lock()
	defer l.mu.Unlock()

	cpy := make([]any, len(l.pending))
	copy(cpy, l.pending)

	return cpy
}

// Miners returns the number of blocks forged by each miner.
func (l *Ledger) Miners() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cpy := make(map[string]int, len(l.miners))
	for miner, forged := range l.miners {
		cpy[miner] = forged
	}

	return cpy
}

// Verify walks the chain checking every block links to its parent.
func (l *Ledger) Verify() error {
	chain := l.Chain()

	for i, block := range chain {
		if block.Index != i+1 {
			return fmt.Errorf("block %d has index %d", i+1, block.Index)
		}

		if i == 0 {
			if block.PreviousHash != GenesisPreviousHash {
				return fmt.Errorf("genesis previous hash is %q", block.PreviousHash)
			}
			continue
		}

		if exp := chain[i-1].Hash(); block.PreviousHash != exp {
			return fmt.Errorf("block %d previous hash %s, exp %s", block.Index, block.PreviousHash, exp)
		}
	}

	return nil
}
