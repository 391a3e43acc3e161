package types

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
)

// FieldModulus is the scalar-field modulus of the target proof system
// (BN254), the bound every circuit input must respect.
var FieldModulus = ecc.BN254.ScalarField()

// hashFieldBits keeps 256-bit hash values strictly below FieldModulus.
const hashFieldBits = 253

// ToField reduces v into [0, 2^bitWidth - 2] via v mod (2^bitWidth - 1).
// Idempotent for non-negative v.
func ToField(v *big.Int, bitWidth int) *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), uint(bitWidth))
	m.Sub(m, big.NewInt(1))
	return new(big.Int).Mod(v, m)
}

// HashToField folds a string into a field element with the accumulator
// hash = hash*31 + charCode (mod FieldModulus). Order-sensitive.
func HashToField(s string) *big.Int {
	h := new(big.Int)
	mul := big.NewInt(31)
	for _, r := range s {
		h.Mul(h, mul)
		h.Add(h, big.NewInt(int64(r)))
		h.Mod(h, FieldModulus)
	}
	return h
}

// BytesToField interprets b as a big-endian integer and constrains it to
// the hash bit budget the circuit accepts.
func BytesToField(b []byte) *big.Int {
	return ToField(new(big.Int).SetBytes(b), hashFieldBits)
}

// Uint64ToField constrains a uint64 to its own bit width.
func Uint64ToField(v uint64) *big.Int {
	return ToField(new(big.Int).SetUint64(v), 64)
}
