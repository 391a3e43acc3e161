package prover

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	types2 "github.com/kysee/zk-folding/provers/types"
	"github.com/kysee/zk-folding/types"
)

// APIFetcher implements BlockFetcher by calling a block-data REST endpoint
type APIFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewAPIFetcher creates a new APIFetcher with the given base URL
func NewAPIFetcher(baseURL string, timeout time.Duration) *APIFetcher {
	return &APIFetcher{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Block retrieves a block record
// GET /v1/chains/{chainID}/blocks/{blockNumber}
func (a *APIFetcher) Block(ctx context.Context, chainID, blockNumber uint64) (*types.RawBlock, error) {
	endpoint, err := url.Parse(a.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	endpoint.Path = fmt.Sprintf("/v1/chains/%d/blocks/%d", chainID, blockNumber)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("block request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var apiResponse types2.BlockAPIResponse
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return blockFromAPI(&apiResponse)
}

// blockFromAPI converts the wire record into a RawBlock, decoding
// hex-quantity number fields.
func blockFromAPI(r *types2.BlockAPIResponse) (*types.RawBlock, error) {
	number, err := parseQuantity(r.Number)
	if err != nil {
		return nil, fmt.Errorf("bad block number %q: %w", r.Number, err)
	}
	timestamp, err := parseQuantity(r.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("bad block timestamp %q: %w", r.Timestamp, err)
	}
	return &types.RawBlock{
		Hash:         r.Hash,
		Number:       number,
		Timestamp:    timestamp,
		Transactions: r.Transactions,
	}, nil
}

// parseQuantity accepts both 0x-prefixed and decimal quantities.
func parseQuantity(s string) (uint64, error) {
	if strings.HasPrefix(s, "0x") {
		return hexutil.DecodeUint64(s)
	}
	return strconv.ParseUint(s, 10, 64)
}
