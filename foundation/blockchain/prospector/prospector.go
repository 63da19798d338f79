// Package prospector implements the mining side of the ledger. A prospector
// repeatedly fetches the tip of the chain, searches for a proof that solves
// the puzzle for it and submits the proof back to the ledger.
package prospector

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/ledger"
	"github.com/ardanlabs/powledger/foundation/blockchain/pow"
)

// ErrSearchTimeout is returned when no proof was found for a tip within
// the configured search timeout.
var ErrSearchTimeout = errors.New("search timed out")

// EventHandler defines a function that is called when events
// occur in the mining loop.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to start mining.
type Config struct {
	Client        *Client
	MinerID       string
	SearchTimeout time.Duration
	MaxBlocks     int
	EvHandler     EventHandler
}

// Result describes one round of mining.
type Result struct {
	ID         int
	Proof      int64
	Difficulty int
	Duration   time.Duration
	Response   MineResponse
}

// Prospector runs the mining loop against a single ledger.
type Prospector struct {
	client        *Client
	minerID       string
	searchTimeout time.Duration
	maxBlocks     int
	evHandler     EventHandler
	mined         atomic.Int64
}

// New constructs a prospector.
func New(cfg Config) (*Prospector, error) {
	if cfg.Client == nil {
		return nil, errors.New("client is required")
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	p := Prospector{
		client:        cfg.Client,
		minerID:       cfg.MinerID,
		searchTimeout: cfg.SearchTimeout,
		maxBlocks:     cfg.MaxBlocks,
		evHandler:     ev,
	}

	return &p, nil
}

// Mined returns the number of blocks this prospector has forged.
func (p *Prospector) Mined() int {
	return int(p.mined.Load())
}

// Run mines until the context is cancelled, the configured number of blocks
// is forged or the ledger sends back something that can't be understood.
// Rejected proofs and search timeouts don't stop the loop.
func (p *Prospector) Run(ctx context.Context) error {
	p.evHandler("prospector: Run: started: miner[%s]", p.minerID)
	defer func() {
		p.evHandler("prospector: Run: completed: mined[%d]", p.Mined())
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if p.maxBlocks > 0 && p.Mined() >= p.maxBlocks {
			return nil
		}

		res, err := p.MineOnce(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrSearchTimeout):
			p.evHandler("prospector: Run: search timed out, fetching a new tip")
			continue
		default:
			return err
		}

		switch {
		case res.Response.Forged():
			p.evHandler("prospector: Run: FORGED: blk[%d] mined[%d] difficulty[%d]", res.ID, p.Mined(), res.Difficulty)
		case res.Response.Error != "":
			p.evHandler("prospector: Run: rejected: blk[%d]: %s", res.ID, res.Response.Error)
		default:
			p.evHandler("prospector: Run: rejected: blk[%d]: %s", res.ID, res.Response.Message)
		}
	}
}

// MineOnce fetches the tip, searches for a proof and submits it.
func (p *Prospector) MineOnce(ctx context.Context) (Result, error) {
	tip, err := p.client.LastBlock(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("last block: %w", err)
	}

	id := tip.LastBlock.Index + 1
	p.evHandler("prospector: MineOnce: tip[%d] difficulty[%d]", tip.LastBlock.Index, tip.Difficulty)

	searchCtx := ctx
	if p.searchTimeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, p.searchTimeout)
		defer cancel()
	}

	start := time.Now()
	proof, err := pow.Search(searchCtx, tip.LastBlock.String(), tip.Difficulty, pow.EventHandler(p.evHandler))
	if err != nil {
		if ctx.Err() == nil {
			return Result{}, fmt.Errorf("blk[%d]: %w", id, ErrSearchTimeout)
		}
		return Result{}, fmt.Errorf("search: %w", err)
	}
	duration := time.Since(start)

	p.evHandler("prospector: MineOnce: proof[%d] blk[%d] duration[%v]", proof, id, duration)

	resp, err := p.client.Mine(ctx, MineRequest{Proof: proof, ID: id, UserID: p.minerID})
	if err != nil {
		return Result{}, fmt.Errorf("mine: %w", err)
	}

	if resp.Forged() {
		p.mined.Add(1)
	}

	res := Result{
		ID:         id,
		Proof:      proof,
		Difficulty: tip.Difficulty,
		Duration:   duration,
		Response:   resp,
	}

	return res, nil
}

// Verify fetches the full chain and checks every block links to its parent.
func (p *Prospector) Verify(ctx context.Context) (Chain, error) {
	chain, err := p.client.Chain(ctx)
	if err != nil {
		return Chain{}, fmt.Errorf("chain: %w", err)
	}

	if chain.Length != len(chain.Blocks) {
		return chain, fmt.Errorf("length %d doesn't match %d blocks", chain.Length, len(chain.Blocks))
	}

	for i, block := range chain.Blocks {
		if i == 0 {
			if block.PreviousHash != ledger.GenesisPreviousHash {
				return chain, fmt.Errorf("genesis previous hash is %q", block.PreviousHash)
			}
			continue
		}

		if exp := chain.Blocks[i-1].Hash(); block.PreviousHash != exp {
			return chain, fmt.Errorf("block %d previous hash %s, exp %s", block.Index, block.PreviousHash, exp)
		}
	}

	return chain, nil
}
