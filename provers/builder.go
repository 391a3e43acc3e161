package prover

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/protolambda/ztyp/tree"

	"github.com/kysee/zk-folding/merkle"
	"github.com/kysee/zk-folding/types"
)

var (
	ErrNilBlock          = errors.New("nil block")
	ErrInvalidBlockHash  = errors.New("invalid block hash")
	ErrTimestampTooOld   = errors.New("block timestamp before genesis")
	ErrTimestampInFuture = errors.New("block timestamp in the future")
)

// genesisEpoch is the origin chain's genesis time (beacon mainnet,
// 2020-12-01 12:00:23 UTC). Blocks cannot predate it.
const genesisEpoch = 1606824023

// maxFutureSkew is the tolerated clock drift for block timestamps.
const maxFutureSkew = 5 * time.Minute

// DefaultBlockHash is the placeholder used when a block record carries no
// hash, so that padding never aborts on short input sets.
const DefaultBlockHash = "0x0000000000000000000000000000000000000000000000000000000000000001"

var blockHashPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)

// InputBuilder assembles per-block attestation inputs for the proving
// circuit. All numeric and hash fields are field-constrained before a
// CircuitInput leaves this layer.
type InputBuilder struct {
	chainID       uint64
	targetChainID uint64
	merkleDepth   int

	now func() time.Time
}

func NewInputBuilder(chainID, targetChainID uint64, merkleDepth int) *InputBuilder {
	return &InputBuilder{
		chainID:       chainID,
		targetChainID: targetChainID,
		merkleDepth:   merkleDepth,
		now:           time.Now,
	}
}

// Prepare validates each block, derives the transaction Merkle root and the
// inclusion path of the first transaction as a representative sample, and
// emits one CircuitInput per block. The first invalid block aborts the
// whole batch.
func (b *InputBuilder) Prepare(blocks []*types.RawBlock) ([]types.CircuitInput, error) {
	inputs := make([]types.CircuitInput, 0, len(blocks))
	for i, blk := range blocks {
		if err := b.validateBlock(blk); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}

		leaves, err := transactionLeaves(blk)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}

		root, err := merkle.BuildTree(leaves, b.merkleDepth)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		path, err := merkle.DerivePath(leaves, 0, b.merkleDepth)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}

		hashBytes, err := types.HexToBytes(blockHashOrDefault(blk))
		if err != nil {
			return nil, fmt.Errorf("block %d: %w: %v", i, ErrInvalidBlockHash, err)
		}

		pathElements := make([]*big.Int, len(path.Siblings))
		for j, sibling := range path.Siblings {
			pathElements[j] = types.BytesToField(sibling[:])
		}
		pathIndices := make([]int, len(path.Directions))
		for j, d := range path.Directions {
			pathIndices[j] = int(d)
		}

		inputs = append(inputs, types.CircuitInput{
			ChainID:       types.Uint64ToField(b.chainID),
			BlockHash:     types.BytesToField(hashBytes),
			MerkleRoot:    types.BytesToField(root[:]),
			Leaf:          types.BytesToField(leaves[0][:]),
			PathElements:  pathElements,
			PathIndices:   pathIndices,
			TargetChainID: types.Uint64ToField(b.targetChainID),
			BlockNumber:   types.Uint64ToField(blk.Number),
			Timestamp:     types.Uint64ToField(blk.Timestamp),
		})
	}
	return inputs, nil
}

// PadToMinimum repeats the last input until len(inputs) >= nMin. An empty
// input set is padded with a placeholder input built from the fallback
// literals.
func (b *InputBuilder) PadToMinimum(inputs []types.CircuitInput, nMin int) []types.CircuitInput {
	if len(inputs) >= nMin {
		return inputs
	}
	padded := make([]types.CircuitInput, len(inputs), nMin)
	copy(padded, inputs)
	if len(padded) == 0 {
		padded = append(padded, b.placeholderInput())
	}
	for len(padded) < nMin {
		padded = append(padded, padded[len(padded)-1])
	}
	return padded
}

func (b *InputBuilder) validateBlock(blk *types.RawBlock) error {
	if blk == nil {
		return ErrNilBlock
	}
	if !blockHashPattern.MatchString(blockHashOrDefault(blk)) {
		return fmt.Errorf("%w: %q", ErrInvalidBlockHash, blk.Hash)
	}
	if blk.Timestamp < genesisEpoch {
		return fmt.Errorf("%w: %d", ErrTimestampTooOld, blk.Timestamp)
	}
	if blk.Timestamp > uint64(b.now().Add(maxFutureSkew).Unix()) {
		return fmt.Errorf("%w: %d", ErrTimestampInFuture, blk.Timestamp)
	}
	return nil
}

// transactionLeaves parses the block's transaction identifiers; a block
// with no transactions contributes its own hash as the single leaf.
func transactionLeaves(blk *types.RawBlock) ([]tree.Root, error) {
	ids := blk.Transactions
	if len(ids) == 0 {
		ids = []string{blockHashOrDefault(blk)}
	}
	leaves := make([]tree.Root, len(ids))
	for i, id := range ids {
		raw, err := types.HexToBytes(id)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("%w: transaction %d %q", ErrInvalidBlockHash, i, id)
		}
		copy(leaves[i][:], raw)
	}
	return leaves, nil
}

func blockHashOrDefault(blk *types.RawBlock) string {
	if blk.Hash == "" {
		return DefaultBlockHash
	}
	return blk.Hash
}

// placeholderInput is the padding unit for an empty batch.
func (b *InputBuilder) placeholderInput() types.CircuitInput {
	hashBytes, _ := types.HexToBytes(DefaultBlockHash)
	leaf := tree.Root{}
	copy(leaf[:], hashBytes)

	root, _ := merkle.BuildTree([]tree.Root{leaf}, b.merkleDepth)
	path, _ := merkle.DerivePath([]tree.Root{leaf}, 0, b.merkleDepth)

	pathElements := make([]*big.Int, len(path.Siblings))
	for j, sibling := range path.Siblings {
		pathElements[j] = types.BytesToField(sibling[:])
	}

	return types.CircuitInput{
		ChainID:       types.Uint64ToField(b.chainID),
		BlockHash:     types.BytesToField(hashBytes),
		MerkleRoot:    types.BytesToField(root[:]),
		Leaf:          types.BytesToField(leaf[:]),
		PathElements:  pathElements,
		PathIndices:   make([]int, len(path.Directions)),
		TargetChainID: types.Uint64ToField(b.targetChainID),
		BlockNumber:   types.Uint64ToField(0),
		Timestamp:     types.Uint64ToField(genesisEpoch),
	}
}
