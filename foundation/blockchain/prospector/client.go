package prospector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ardanlabs/powledger/foundation/blockchain/ledger"
	"github.com/ardanlabs/powledger/foundation/blockchain/pow"
)

// ErrMalformedResponse is returned when the ledger answers with something
// that isn't the expected JSON document.
var ErrMalformedResponse = errors.New("malformed response")

// Messages the ledger reports for a submission.
const (
	MessageForged  = "New Block Forged"
	MessageNoBlock = "No New Block"
)

// =============================================================================

// Tip is the ledger's answer to a last block query.
type Tip struct {
	LastBlock  ledger.Block `json:"last_block"`
	Difficulty int          `json:"difficulty"`
}

// Chain is the ledger's answer to a full chain query.
type Chain struct {
	Length int            `json:"length"`
	Blocks []ledger.Block `json:"block"`
}

// MineRequest is the proof submitted for a block.
type MineRequest struct {
	Proof  int64  `json:"proof"`
	ID     int    `json:"id"`
	UserID string `json:"user_id,omitempty"`
}

// MineResponse is the ledger's answer to a submission. Successful and
// rejected submissions carry a message, claimed and malformed ones an error.
type MineResponse struct {
	Message string        `json:"message,omitempty"`
	Error   string        `json:"error,omitempty"`
	Block   *ledger.Block `json:"block,omitempty"`
}

// Forged reports if the submission produced a new block.
func (mr MineResponse) Forged() bool {
	return mr.Message == MessageForged
}

// =============================================================================

// Client talks to a ledger over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient constructs a client for the ledger at the base url. A nil
// http client means the default client is used.
func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = http.DefaultClient
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
	}
}

// LastBlock retrieves the tip of the chain and the difficulty to mine at.
func (c *Client) LastBlock(ctx context.Context) (Tip, error) {
	var tip struct {
		LastBlock  *ledger.Block `json:"last_block"`
		Difficulty *int          `json:"difficulty"`
	}

	if err := c.send(ctx, http.MethodGet, "/last_block", nil, &tip); err != nil {
		return Tip{}, err
	}

	if tip.LastBlock == nil || tip.Difficulty == nil {
		return Tip{}, fmt.Errorf("%w: last block and difficulty are required", ErrMalformedResponse)
	}

	if d := *tip.Difficulty; d < 0 || d > pow.MaxDifficulty {
		return Tip{}, fmt.Errorf("%w: difficulty %d out of range", ErrMalformedResponse, d)
	}

	return Tip{LastBlock: *tip.LastBlock, Difficulty: *tip.Difficulty}, nil
}

// Chain retrieves the full chain.
func (c *Client) Chain(ctx context.Context) (Chain, error) {
	var chain Chain
	if err := c.send(ctx, http.MethodGet, "/chain", nil, &chain); err != nil {
		return Chain{}, err
	}

	return chain, nil
}

// Mine submits a proof for the block with the request's id.
func (c *Client) Mine(ctx context.Context, mr MineRequest) (MineResponse, error) {
	var resp MineResponse
	if err := c.send(ctx, http.MethodPost, "/mine", mr, &resp); err != nil {
		return MineResponse{}, err
	}

	if resp.Message == "" && resp.Error == "" {
		return MineResponse{}, fmt.Errorf("%w: no message or error", ErrMalformedResponse)
	}

	return resp, nil
}

// send is a helper function to send an HTTP request to the ledger. The
// ledger answers rejections with a 400 and a JSON body, so the body is
// decoded for every status.
func (c *Client) send(ctx context.Context, method string, path string, dataSend any, dataRecv any) error {
	var body io.Reader
	if dataSend != nil {
		data, err := json.Marshal(dataSend)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if dataSend != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, dataRecv); err != nil {
		return fmt.Errorf("%w: status[%d] body[%.200s]: %s", ErrMalformedResponse, resp.StatusCode, data, err)
	}

	return nil
}
