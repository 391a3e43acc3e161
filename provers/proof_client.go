package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	types2 "github.com/kysee/zk-folding/provers/types"
)

// ErrMalformedResponse reports a proof-service response that does not
// carry both a proof and public signals.
var ErrMalformedResponse = errors.New("malformed proof-service response")

// ResponseAdapter converts a raw proof-service response body into the
// strict ProofResponse schema. Deployments facing provers with legacy
// response shapes install their own adapter; the default accepts the
// strict schema only.
type ResponseAdapter func(body []byte) (*types2.ProofResponse, error)

func strictResponseAdapter(body []byte) (*types2.ProofResponse, error) {
	var resp types2.ProofResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &resp, nil
}

// ProofClient calls the external proof-computation service. Transport
// errors are retried a bounded number of times with a fixed backoff and
// then surfaced; schema violations are never retried.
type ProofClient struct {
	Endpoint string
	Client   *http.Client
	Adapter  ResponseAdapter

	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
}

func NewProofClient(cfg *types2.Config, log zerolog.Logger) *ProofClient {
	return &ProofClient{
		Endpoint:   cfg.ProverEndpoint,
		Client:     &http.Client{Timeout: cfg.FetchTimeout},
		Adapter:    strictResponseAdapter,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		log:        log.With().Str("module", "proof-client").Logger(),
	}
}

// Compute POSTs the circuit inputs and returns the validated response.
func (c *ProofClient) Compute(ctx context.Context, payload *types2.ProofRequestPayload) (*types2.ProofResponse, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff):
			}
			c.log.Warn().Int("attempt", attempt).Err(lastErr).Msg("retrying proof computation")
		}

		body, err := c.post(ctx, reqBody)
		if err != nil {
			lastErr = err
			continue
		}

		resp, err := c.Adapter(body)
		if err != nil {
			// schema violation, retrying cannot help
			return nil, err
		}
		if len(resp.Proof) == 0 || len(resp.PublicSignals) == 0 {
			return nil, fmt.Errorf("%w: missing proof or publicSignals", ErrMalformedResponse)
		}
		return resp, nil
	}
	return nil, fmt.Errorf("proof computation failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *ProofClient) post(ctx context.Context, reqBody []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prover request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
