package mint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultEnginePath  = "/backend-wallet/send-transaction"
	defaultHTTPTimeout = 10 * time.Second
	maxErrorBody       = 4 << 10
)

// EngineClient submits contract calls to a transaction engine over HTTP.
type EngineClient struct {
	baseURL    string
	path       string
	token      string
	http       *http.Client
	ratePerSec float64
	limiter    *rate.Limiter
}

type engineTx struct {
	Type            string `json:"type"`
	ContractAddress string `json:"contractAddress"`
	Method          string `json:"method"`
	Params          []any  `json:"params"`
}

type enginePayload struct {
	ChainID      int64      `json:"chainId"`
	Transactions []engineTx `json:"transactions"`
}

type engineResponse struct {
	TransactionHash string          `json:"transactionHash"`
	ID              string          `json:"id"`
	Result          *engineResponse `json:"result,omitempty"`
}

func (r *engineResponse) txID() string {
	if r == nil {
		return ""
	}
	if r.TransactionHash != "" {
		return r.TransactionHash
	}
	if r.ID != "" {
		return r.ID
	}
	return r.Result.txID()
}

// NewEngineClient returns a client for the engine at baseURL.
func NewEngineClient(baseURL string, opts ...Option) (*EngineClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid engine url %q", baseURL)
	}
	e := &EngineClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    defaultEnginePath,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ratePerSec > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(e.ratePerSec), 1)
	}
	return e, nil
}

// Mint implements Gateway.
func (e *EngineClient) Mint(ctx context.Context, req Request) (string, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	body, err := json.Marshal(enginePayload{
		ChainID: req.ChainID,
		Transactions: []engineTx{{
			Type:            "contractCall",
			ContractAddress: req.ContractAddress,
			Method:          req.Method,
			Params:          req.Params,
		}},
	})
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+e.path, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("engine request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("%w: status %d: %s", ErrMintRejected, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out engineResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode engine response: %w", err)
	}
	id := out.txID()
	if id == "" {
		return "", ErrEmptyTxID
	}
	return id, nil
}
