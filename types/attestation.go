package types

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// RawBlock is the block record returned by a block-data source. Hash and
// transaction fields stay hex strings until validated, matching what the
// sources actually serve.
type RawBlock struct {
	Hash         string   `json:"hash"`
	Number       uint64   `json:"number"`
	Timestamp    uint64   `json:"timestamp"`
	Transactions []string `json:"transactions"`
}

// CircuitInput is one per-block attestation unit. All values are
// field-constrained before the struct leaves the builder.
type CircuitInput struct {
	ChainID       *big.Int   `json:"chainId"`
	BlockHash     *big.Int   `json:"blockHash"`
	MerkleRoot    *big.Int   `json:"merkleRoot"`
	Leaf          *big.Int   `json:"leaf"`
	PathElements  []*big.Int `json:"pathElements"`
	PathIndices   []int      `json:"pathIndices"`
	TargetChainID *big.Int   `json:"targetChainId"`
	BlockNumber   *big.Int   `json:"blockNumber"`
	Timestamp     *big.Int   `json:"timestamp"`
}

// ProofRequest tracks one unit of proving work. Records are owned by the
// registry; Pending transitions to Completed exactly once.
type ProofRequest struct {
	ID            uint64          `json:"id"`
	Requester     string          `json:"requester"`
	SourceChain   uint64          `json:"sourceChain"`
	BlockNumber   uint64          `json:"blockNumber"`
	StateRoot     common.Hash     `json:"stateRoot"`
	CreatedAt     time.Time       `json:"createdAt"`
	Completed     bool            `json:"isCompleted"`
	Valid         bool            `json:"isValid"`
	Proof         json.RawMessage `json:"proof,omitempty"`
	PublicSignals []string        `json:"publicSignals,omitempty"`
}

// FoldingBatch groups completed proofs for recursive folding. A proof id
// belongs to at most one batch ever.
type FoldingBatch struct {
	ID             uint64    `json:"id"`
	ProofIDs       []uint64  `json:"proofIds"`
	Requester      string    `json:"requester"`
	CreatedAt      time.Time `json:"createdAt"`
	RecursionDepth int       `json:"recursionDepth"`
	AggregatedHash HexBytes  `json:"aggregatedHash"`
	Completed      bool      `json:"isCompleted"`
}

// FoldedInstance is emitted once a batch completes folding. Immutable,
// uniquely associated with one batch.
type FoldedInstance struct {
	StepIn         *big.Int    `json:"stepIn"`
	StepOut        *big.Int    `json:"stepOut"`
	ProgramCounter uint64      `json:"programCounter"`
	StateRootIn    common.Hash `json:"stateRootIn"`
	StateRootOut   common.Hash `json:"stateRootOut"`
	NullifierHash  *big.Int    `json:"nullifierHash"`
	Valid          bool        `json:"isValid"`
}

// ProofOutcome is the boundary result of a proving or folding run, fed to
// the result codec.
type ProofOutcome struct {
	Success       bool            `json:"success"`
	ProofID       string          `json:"proofId,omitempty"`
	Err           string          `json:"error,omitempty"`
	SourceChain   uint64          `json:"sourceChain"`
	TargetChain   uint64          `json:"targetChain"`
	BlockNumber   uint64          `json:"blockNumber,omitempty"`
	Timestamp     int64           `json:"timestamp"`
	Proof         json.RawMessage `json:"proof,omitempty"`
	PublicSignals []string        `json:"publicSignals,omitempty"`
	Inputs        []CircuitInput  `json:"inputs,omitempty"`
}
