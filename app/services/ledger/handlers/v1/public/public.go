// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ardanlabs/powledger/business/sys/metrics"
	"github.com/ardanlabs/powledger/business/sys/validate"
	"github.com/ardanlabs/powledger/business/web/errs"
	"github.com/ardanlabs/powledger/foundation/blockchain/ledger"
	"github.com/ardanlabs/powledger/foundation/events"
	"github.com/ardanlabs/powledger/foundation/nameservice"
	"github.com/ardanlabs/powledger/foundation/web"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of ledger endpoints.
type Handlers struct {
	Log    *zap.SugaredLogger
	Ledger *ledger.Ledger
	NS     *nameservice.NameService
	WS     websocket.Upgrader
	Evts   *events.Events
}

// Mine validates a proof for the next block and forges the block when the
// proof solves the puzzle.
func (h Handlers) Mine(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req mineRequest
	if err := web.Decode(r, &req); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(req); err != nil {
		if missing := validate.GetFieldErrors(err).Missing(); len(missing) > 0 {
			err := fmt.Errorf("POST request must include %s", strings.Join(missing, " and "))
			return errs.NewTrusted(err, http.StatusBadRequest)
		}
		return err
	}

	sub := ledger.Submission{
		ID:    *req.ID,
		Proof: *req.Proof,
		Miner: req.UserID,
	}

	block, err := h.Ledger.Submit(sub)
	switch {
	case errors.Is(err, ledger.ErrBlockClaimed):
		metrics.AddRejected(ctx)
		return web.Respond(ctx, w, errs.Response{Error: err.Error()}, http.StatusOK)

	case errors.Is(err, ledger.ErrInvalidProof):
		metrics.AddRejected(ctx)
		return web.Respond(ctx, w, mineResponse{Message: err.Error()}, http.StatusBadRequest)

	case err != nil:
		return fmt.Errorf("submit: %w", err)
	}

	metrics.AddForged(ctx)

	resp := mineResponse{
		Message: "New Block Forged",
		Block:   &block,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Chain returns the full chain.
func (h Handlers) Chain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	blocks := h.Ledger.Chain()

	resp := chain{
		Length: len(blocks),
		Blocks: blocks,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// LastBlock returns the tip of the chain and the difficulty miners must
// solve for, so miners never hardcode it.
func (h Handlers) LastBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	block, difficulty := h.Ledger.Tip()

	resp := tip{
		LastBlock:  block,
		Difficulty: difficulty,
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// AddTransaction adds a transaction to the set forged into the next block.
func (h Handlers) AddTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var tx newTx
	if err := web.Decode(r, &tx); err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	if err := validate.Check(tx); err != nil {
		return err
	}

	v := map[string]any{
		"sender":    tx.Sender,
		"recipient": tx.Recipient,
		"amount":    tx.Amount,
	}

	index, err := h.Ledger.AddTransaction(v)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	h.Log.Infow("add tran", "traceid", web.GetTraceID(ctx), "sender", tx.Sender, "recipient", tx.Recipient, "amount", tx.Amount)

	resp := message{
		Message: fmt.Sprintf("Transaction will be added to Block %d", index),
	}

	return web.Respond(ctx, w, resp, http.StatusCreated)
}

// Miners returns the number of blocks forged by each miner, most first.
func (h Handlers) Miners(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	forged := h.Ledger.Miners()

	miners := make([]miner, 0, len(forged))
	for id, count := range forged {
		m := miner{
			Miner:  id,
			Name:   h.NS.Lookup(id),
			Forged: count,
		}
		miners = append(miners, m)
	}

	sort.Slice(miners, func(i, j int) bool {
		if miners[i].Forged != miners[j].Forged {
			return miners[i].Forged > miners[j].Forged
		}
		return miners[i].Miner < miners[j].Miner
	})

	return web.Respond(ctx, w, miners, http.StatusOK)
}

// Events handles a web socket to provide ledger events to a client.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	// The upgrade took over the connection so record the status
	// for the request logger.
	v.StatusCode = http.StatusSwitchingProtocols

	ch := h.Evts.Acquire(v.TraceID)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}
