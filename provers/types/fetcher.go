package types

import (
	"context"
	"encoding/json"

	"github.com/kysee/zk-folding/types"
	"github.com/protolambda/zrnt/eth2/beacon/electra"
)

// BlockAPIResponse is the JSON block record served by a block-data source.
// Numeric fields arrive as hex-quantity strings.
type BlockAPIResponse struct {
	Hash         string   `json:"hash"`
	Number       string   `json:"number"`
	Timestamp    string   `json:"timestamp"`
	Transactions []string `json:"transactions"`
}

// BeaconBlockAPIResponse represents the Beacon API v2 response for blocks
type BeaconBlockAPIResponse struct {
	Version             string                    `json:"version"`
	ExecutionOptimistic bool                      `json:"execution_optimistic"`
	Finalized           bool                      `json:"finalized"`
	Data                electra.SignedBeaconBlock `json:"data"`
}

// BlockFetcher retrieves raw block data for (chainID, blockNumber).
// Implementations may be unreachable; callers treat errors as retryable.
type BlockFetcher interface {
	Block(ctx context.Context, chainID, blockNumber uint64) (*types.RawBlock, error)
}

// ProofParams sizes one external proving call.
type ProofParams struct {
	NProofs     int `json:"nProofs"`
	MerkleDepth int `json:"merkleDepth"`
	BlockDepth  int `json:"blockDepth"`
}

// ProofRequestPayload is the request body sent to the proof-computation
// service.
type ProofRequestPayload struct {
	Circuit string               `json:"circuit"`
	Inputs  []types.CircuitInput `json:"inputs"`
	Params  ProofParams          `json:"params"`
}

// ProofResponse is the strict response schema accepted from the
// proof-computation service. Proof and PublicSignals are mandatory.
type ProofResponse struct {
	Proof         json.RawMessage `json:"proof"`
	PublicSignals []string        `json:"publicSignals"`
	ProofID       string          `json:"proofId,omitempty"`
}

// ProofService is the external proof-computation collaborator.
type ProofService interface {
	Compute(ctx context.Context, payload *ProofRequestPayload) (*ProofResponse, error)
}
