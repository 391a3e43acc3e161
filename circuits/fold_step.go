package circuit

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// FoldStepCircuit is one recursive folding step: it binds the running
// instance StepIn and the absorbed batch accumulator to StepOut.
type FoldStepCircuit struct {
	Accumulator frontend.Variable `gnark:",secret"`

	StepIn  frontend.Variable `gnark:",public"`
	StepOut frontend.Variable `gnark:",public"`
}

func (c *FoldStepCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.StepIn, c.Accumulator)
	api.AssertIsEqual(h.Sum(), c.StepOut)
	return nil
}
