package prover

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kysee/zk-folding/types"
)

var testNow = time.Unix(1_700_000_000, 0)

func newTestBuilder(depth int) *InputBuilder {
	b := NewInputBuilder(1, 137, depth)
	b.now = func() time.Time { return testNow }
	return b
}

func validBlock(number uint64) *types.RawBlock {
	return &types.RawBlock{
		Hash:      "0x" + strings.Repeat("ab", 32),
		Number:    number,
		Timestamp: uint64(testNow.Unix()) - 60,
		Transactions: []string{
			"0x" + strings.Repeat("11", 32),
			"0x" + strings.Repeat("22", 32),
		},
	}
}

func TestPrepareBuildsConstrainedInputs(t *testing.T) {
	b := newTestBuilder(2)

	inputs, err := b.Prepare([]*types.RawBlock{validBlock(100)})
	require.NoError(t, err)
	require.Len(t, inputs, 1)

	in := inputs[0]
	require.Equal(t, int64(1), in.ChainID.Int64())
	require.Equal(t, int64(137), in.TargetChainID.Int64())
	require.Equal(t, int64(100), in.BlockNumber.Int64())
	require.Len(t, in.PathElements, 2)
	require.Len(t, in.PathIndices, 2)
	require.Equal(t, []int{0, 0}, in.PathIndices, "first transaction is always the left-most leaf")
	for _, e := range in.PathElements {
		require.True(t, e.Cmp(types.FieldModulus) < 0)
	}
	require.True(t, in.BlockHash.Cmp(types.FieldModulus) < 0)
	require.True(t, in.MerkleRoot.Cmp(types.FieldModulus) < 0)
}

func TestPrepareFailsFastOnInvalidBlock(t *testing.T) {
	b := newTestBuilder(2)

	bad := validBlock(101)
	bad.Hash = "0xnot-a-hash"

	inputs, err := b.Prepare([]*types.RawBlock{validBlock(100), bad, validBlock(102)})
	require.ErrorIs(t, err, ErrInvalidBlockHash)
	require.Nil(t, inputs, "no partial results")
}

func TestValidateBlockRules(t *testing.T) {
	b := newTestBuilder(2)

	require.ErrorIs(t, b.validateBlock(nil), ErrNilBlock)

	badHash := validBlock(1)
	badHash.Hash = "0x1234"
	require.ErrorIs(t, b.validateBlock(badHash), ErrInvalidBlockHash)

	old := validBlock(1)
	old.Timestamp = genesisEpoch - 1
	require.ErrorIs(t, b.validateBlock(old), ErrTimestampTooOld)

	future := validBlock(1)
	future.Timestamp = uint64(testNow.Add(6 * time.Minute).Unix())
	require.ErrorIs(t, b.validateBlock(future), ErrTimestampInFuture)

	skewed := validBlock(1)
	skewed.Timestamp = uint64(testNow.Add(4 * time.Minute).Unix())
	require.NoError(t, b.validateBlock(skewed), "within skew tolerance")

	// missing hash falls back to the placeholder instead of failing
	noHash := validBlock(1)
	noHash.Hash = ""
	require.NoError(t, b.validateBlock(noHash))
}

func TestPrepareFallsBackToBlockHashLeaf(t *testing.T) {
	b := newTestBuilder(2)

	blk := validBlock(100)
	blk.Transactions = nil

	inputs, err := b.Prepare([]*types.RawBlock{blk})
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.Equal(t, 0, inputs[0].Leaf.Cmp(inputs[0].BlockHash),
		"block hash doubles as the single leaf")
}

func TestPadToMinimum(t *testing.T) {
	b := newTestBuilder(2)

	inputs, err := b.Prepare([]*types.RawBlock{validBlock(100)})
	require.NoError(t, err)

	padded := b.PadToMinimum(inputs, 3)
	require.Len(t, padded, 3)
	require.Equal(t, padded[0].BlockNumber, padded[2].BlockNumber, "repeats the last input")

	// already long enough: untouched
	same := b.PadToMinimum(padded, 2)
	require.Len(t, same, 3)

	// empty set pads with the placeholder input
	empty := b.PadToMinimum(nil, 2)
	require.Len(t, empty, 2)
	require.Equal(t, int64(0), empty[0].BlockNumber.Int64())
	require.Len(t, empty[0].PathElements, 2)
}
