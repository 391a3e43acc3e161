package main

import (
	"bytes"
	"crypto/sha256"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/solidity"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/logger"
	circuit "github.com/kysee/zk-folding/circuits"
)

const rootDir = "."

// merkleDepth must match Config.MerkleDepth of the deployed aggregator.
const merkleDepth = 4

func main() {
	_, _, vk, err := SetupCircuit()
	if err != nil {
		println("error", err)
		return
	}

	if err := CreateSolidity(vk); err != nil {
		println("error", err)
	}
}

func SetupCircuit() (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	logger.Disable()

	if err := os.MkdirAll(filepath.Join(rootDir, ".build"), 0755); err != nil {
		return nil, nil, nil, err
	}
	ccsPath := filepath.Join(rootDir, ".build/BlockAttestationCircuit.ccs")
	pkPath := filepath.Join(rootDir, ".build/BlockAttestationCircuit.pk")
	vkPath := filepath.Join(rootDir, ".build/BlockAttestationCircuit.vk")

	//
	// Step 1: Compile circuit and save to file
	println("🕧 Compile BlockAttestationCircuit circuit...")
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder,
		circuit.NewBlockAttestationCircuit(merkleDepth))
	if err != nil {
		return nil, nil, nil, err
	}

	println("Constraint system saving to", ccsPath, "...")
	fccs, _ := os.Create(ccsPath)
	defer fccs.Close()
	_, err = ccs.WriteTo(fccs)
	if err != nil {
		return nil, nil, nil, err
	}
	println("constraints:", ccs.GetNbConstraints(), "public inputs:", ccs.GetNbPublicVariables())
	println("✅ Compile complete")

	//
	// Step 2: Setup (generate proving and verifying keys)
	println("🕧 Generating proving and verifying keys...")
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, nil, err
	}

	println("Proving key saving to", pkPath, "...")
	fpk, _ := os.Create(pkPath)
	defer fpk.Close()
	_, err = pk.WriteTo(fpk)
	if err != nil {
		return nil, nil, nil, err
	}

	println("Verifying key saving to", vkPath, "...")
	fvk, _ := os.Create(vkPath)
	defer fvk.Close()
	_, err = vk.WriteTo(fvk)
	if err != nil {
		return nil, nil, nil, err
	}
	println("✅ Setup complete")

	return ccs, pk, vk, nil
}

func CreateSolidity(vk groth16.VerifyingKey) error {
	path := "verifiers/attestation/contracts/AttestationVerifier.sol"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	var buf bytes.Buffer
	err := vk.ExportSolidity(&buf, solidity.WithHashToFieldFunction(sha256.New()))
	if err != nil {
		return err
	}

	err = os.WriteFile(path, buf.Bytes(), 0644)
	if err != nil {
		return err
	}

	println("✅ Solidity verifier generate to", path)
	return nil
}
