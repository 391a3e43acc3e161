package circuit

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// BlockAttestationCircuit proves that a transaction leaf is included under
// the committed Merkle root of an attested remote-chain block, and binds
// the block metadata as public inputs.
type BlockAttestationCircuit struct {
	// Inclusion witness (private inputs)
	Leaf         frontend.Variable   `gnark:",secret"`
	PathElements []frontend.Variable `gnark:",secret"`
	PathIndices  []frontend.Variable `gnark:",secret"` // 0 = current node is left child, 1 = right

	// Attested block commitment (public inputs)
	MerkleRoot    frontend.Variable `gnark:",public"`
	ChainID       frontend.Variable `gnark:",public"`
	TargetChainID frontend.Variable `gnark:",public"`
	BlockHash     frontend.Variable `gnark:",public"`
	BlockNumber   frontend.Variable `gnark:",public"`
	Timestamp     frontend.Variable `gnark:",public"`

	// Path length, fixed at compile time
	Depth int `gnark:"-"`
}

// NewBlockAttestationCircuit allocates the path slices for the given depth.
// Always use this constructor; a zero-value circuit has no path capacity.
func NewBlockAttestationCircuit(depth int) *BlockAttestationCircuit {
	return &BlockAttestationCircuit{
		PathElements: make([]frontend.Variable, depth),
		PathIndices:  make([]frontend.Variable, depth),
		Depth:        depth,
	}
}

func (c *BlockAttestationCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	cur := c.Leaf
	for i := 0; i < c.Depth; i++ {
		api.AssertIsBoolean(c.PathIndices[i])

		// index bit 1 means the sibling sits to the left
		left := api.Select(c.PathIndices[i], c.PathElements[i], cur)
		right := api.Select(c.PathIndices[i], cur, c.PathElements[i])

		h.Reset()
		h.Write(left, right)
		cur = h.Sum()
	}
	api.AssertIsEqual(cur, c.MerkleRoot)

	// an attestation never targets its own chain
	api.AssertIsDifferent(c.ChainID, c.TargetChainID)

	return nil
}
