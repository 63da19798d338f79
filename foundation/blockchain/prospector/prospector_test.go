package prospector_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ardanlabs/powledger/foundation/blockchain/ledger"
	"github.com/ardanlabs/powledger/foundation/blockchain/prospector"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

// stub is a minimal ledger front end. When rival is set, another miner
// forges the tip right before the first submission is processed.
type stub struct {
	ldg    *ledger.Ledger
	rival  atomic.Bool
	mines  atomic.Int32
	server *httptest.Server
}

func newStub(t *testing.T, difficulty int) *stub {
	ldg, err := ledger.New(ledger.Config{Difficulty: difficulty})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a ledger: %s", failed, err)
	}

	s := stub{ldg: ldg}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /last_block", func(w http.ResponseWriter, r *http.Request) {
		block, difficulty := ldg.Tip()
		json.NewEncoder(w).Encode(map[string]any{"last_block": block, "difficulty": difficulty})
	})
	mux.HandleFunc("POST /mine", func(w http.ResponseWriter, r *http.Request) {
		s.mines.Add(1)

		var req prospector.MineRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if s.rival.CompareAndSwap(true, false) {
			ldg.AppendBlock(42, "")
		}

		_, err := ldg.Submit(ledger.Submission{ID: req.ID, Proof: req.Proof, Miner: req.UserID})
		switch {
		case errors.Is(err, ledger.ErrBlockClaimed):
			json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		case errors.Is(err, ledger.ErrInvalidProof):
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"message": err.Error()})
		default:
			json.NewEncoder(w).Encode(map[string]string{"message": prospector.MessageForged})
		}
	})
	mux.HandleFunc("GET /chain", func(w http.ResponseWriter, r *http.Request) {
		blocks := ldg.Chain()
		json.NewEncoder(w).Encode(map[string]any{"length": len(blocks), "block": blocks})
	})

	s.server = httptest.NewServer(mux)
	t.Cleanup(s.server.Close)

	return &s
}

// =============================================================================

func Test_Run(t *testing.T) {
	t.Log("Given the need to keep mining after losing a block to another miner.")
	{
		s := newStub(t, 3)
		s.rival.Store(true)

		p, err := prospector.New(prospector.Config{
			Client:    prospector.NewClient(s.server.URL, nil),
			MinerID:   "miner1",
			MaxBlocks: 2,
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a prospector: %s", failed, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := p.Run(ctx); err != nil {
			t.Fatalf("\t%s\tShould be able to run: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to run.", success)

		if p.Mined() != 2 {
			t.Fatalf("\t%s\tShould have mined two blocks: %d", failed, p.Mined())
		}
		t.Logf("\t%s\tShould have mined two blocks.", success)

		if got := s.mines.Load(); got != 3 {
			t.Fatalf("\t%s\tShould have submitted three proofs: %d", failed, got)
		}
		t.Logf("\t%s\tShould have submitted three proofs.", success)

		if s.ldg.Length() != 4 || s.ldg.Miners()["miner1"] != 2 {
			t.Fatalf("\t%s\tShould have a rival block and two of ours: %d", failed, s.ldg.Length())
		}
		t.Logf("\t%s\tShould have a rival block and two of ours.", success)

		chain, err := p.Verify(ctx)
		if err != nil || chain.Length != 4 {
			t.Fatalf("\t%s\tShould be able to verify the chain: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to verify the chain.", success)
	}
}

func Test_MineOnceRejected(t *testing.T) {
	t.Log("Given the need to report a claimed block without failing.")
	{
		s := newStub(t, 2)
		s.rival.Store(true)

		p, err := prospector.New(prospector.Config{
			Client: prospector.NewClient(s.server.URL, nil),
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a prospector: %s", failed, err)
		}

		res, err := p.MineOnce(context.Background())
		if err != nil {
			t.Fatalf("\t%s\tShould be able to mine once: %s", failed, err)
		}
		t.Logf("\t%s\tShould be able to mine once.", success)

		if res.Response.Forged() || res.Response.Error != ledger.ErrBlockClaimed.Error() || res.ID != 2 {
			t.Fatalf("\t%s\tShould be told the block was claimed: %+v", failed, res)
		}
		t.Logf("\t%s\tShould be told the block was claimed.", success)

		if p.Mined() != 0 {
			t.Fatalf("\t%s\tShould not count the block: %d", failed, p.Mined())
		}
		t.Logf("\t%s\tShould not count the block.", success)
	}
}

func Test_Malformed(t *testing.T) {
	type table struct {
		name string
		path string
		body string
	}

	tt := []table{
		{name: "html-tip", path: "/last_block", body: "<html>oops</html>"},
		{name: "missing-difficulty", path: "/last_block", body: `{"last_block": {"index": 1}}`},
		{name: "unsolvable-difficulty", path: "/last_block", body: `{"last_block": {"index": 1}, "difficulty": 65}`},
		{name: "negative-difficulty", path: "/last_block", body: `{"last_block": {"index": 1}, "difficulty": -1}`},
		{name: "empty-mine", path: "/mine", body: `{}`},
	}

	t.Log("Given the need to stop on responses that can't be understood.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen handling %s.", testID, tst.name)
			{
				f := func(t *testing.T) {
					server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
						w.Write([]byte(tst.body))
					}))
					defer server.Close()

					client := prospector.NewClient(server.URL, nil)

					var err error
					switch tst.path {
					case "/last_block":
						_, err = client.LastBlock(context.Background())
					default:
						_, err = client.Mine(context.Background(), prospector.MineRequest{ID: 2})
					}

					if !errors.Is(err, prospector.ErrMalformedResponse) {
						t.Fatalf("\t%s\tTest %d:\tShould get a malformed response error: %v", failed, testID, err)
					}
					t.Logf("\t%s\tTest %d:\tShould get a malformed response error.", success, testID)
				}

				t.Run(tst.name, f)
			}
		}
	}
}

func Test_RunUnsolvableDifficulty(t *testing.T) {
	t.Log("Given the need to stop mining when the published difficulty can't be solved.")
	{
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"last_block": {"index": 1, "previous_hash": "=============", "proof": 100, "timestamp": 1.5, "transactions": []}, "difficulty": 65}`))
		}))
		defer server.Close()

		p, err := prospector.New(prospector.Config{
			Client: prospector.NewClient(server.URL, nil),
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a prospector: %s", failed, err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err = p.Run(ctx)
		if !errors.Is(err, prospector.ErrMalformedResponse) {
			t.Fatalf("\t%s\tShould end the run with a malformed response error : %v", failed, err)
		}
		t.Logf("\t%s\tShould end the run with a malformed response error.", success)

		if ctx.Err() != nil {
			t.Fatalf("\t%s\tShould stop before the deadline.", failed)
		}
		t.Logf("\t%s\tShould stop before the deadline.", success)
	}
}

func Test_SearchTimeout(t *testing.T) {
	t.Log("Given the need to give up on a tip that takes too long.")
	{
		s := newStub(t, 64)

		p, err := prospector.New(prospector.Config{
			Client:        prospector.NewClient(s.server.URL, nil),
			SearchTimeout: 10 * time.Millisecond,
		})
		if err != nil {
			t.Fatalf("\t%s\tShould be able to construct a prospector: %s", failed, err)
		}

		if _, err := p.MineOnce(context.Background()); !errors.Is(err, prospector.ErrSearchTimeout) {
			t.Fatalf("\t%s\tShould report a search timeout : %v", failed, err)
		}
		t.Logf("\t%s\tShould report a search timeout.", success)

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := p.Run(ctx); err != nil {
			t.Fatalf("\t%s\tShould keep running until the context ends: %s", failed, err)
		}
		t.Logf("\t%s\tShould keep running until the context ends.", success)

		if s.mines.Load() != 0 || p.Mined() != 0 {
			t.Fatalf("\t%s\tShould never submit an unsolved proof.", failed)
		}
		t.Logf("\t%s\tShould never submit an unsolved proof.", success)
	}
}
