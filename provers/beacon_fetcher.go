package prover

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/protolambda/zrnt/eth2/configs"
	"github.com/protolambda/ztyp/tree"

	types2 "github.com/kysee/zk-folding/provers/types"
	"github.com/kysee/zk-folding/types"
)

// BeaconFetcher implements BlockFetcher against a Beacon API endpoint,
// treating the slot number as the block number and projecting the
// execution payload into a RawBlock. Transaction leaves are the SSZ
// hash-tree roots of the payload transactions.
type BeaconFetcher struct {
	BaseURL string
	Client  *http.Client
}

func NewBeaconFetcher(baseURL string, timeout time.Duration) *BeaconFetcher {
	return &BeaconFetcher{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Block retrieves a beacon block by slot
// GET /eth/v2/beacon/blocks/{slot}
func (b *BeaconFetcher) Block(ctx context.Context, _ uint64, slot uint64) (*types.RawBlock, error) {
	endpoint, err := url.Parse(b.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	endpoint.Path = fmt.Sprintf("/eth/v2/beacon/blocks/%d", slot)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("beacon request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var blockResponse types2.BeaconBlockAPIResponse
	if err := json.Unmarshal(body, &blockResponse); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	spec := configs.Mainnet
	hFn := tree.GetHashFn()
	payload := &blockResponse.Data.Message.Body.ExecutionPayload

	transactions := make([]string, len(payload.Transactions))
	for i, tx := range payload.Transactions {
		leaf := tx.HashTreeRoot(spec, hFn)
		transactions[i] = leaf.String()
	}

	return &types.RawBlock{
		Hash:         payload.BlockHash.String(),
		Number:       uint64(payload.BlockNumber),
		Timestamp:    uint64(payload.Timestamp),
		Transactions: transactions,
	}, nil
}
