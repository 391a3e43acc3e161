package types

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Source types for a chain endpoint.
const (
	SourceAPI    = "api"
	SourceBeacon = "beacon"
)

// ChainEndpoint lists the block-data sources for one chain, tried in order.
// Source selects the endpoint protocol; the zero value means SourceAPI.
type ChainEndpoint struct {
	Primary   string
	Fallbacks []string
	Source    string
}

// Config holds the aggregation engine configuration
type Config struct {
	RootDir string

	// ChainID / TargetChainID identify the attested and consuming chains
	ChainID       uint64
	TargetChainID uint64

	// MerkleDepth is the inclusion-tree depth baked into the circuit
	MerkleDepth int

	// Folding invariants
	MinProofsPerBatch int
	MaxProofsPerBatch int
	MaxRecursionDepth int

	// ChainEndpoints maps a chain id to its block-data sources
	ChainEndpoints map[uint64]ChainEndpoint

	// ProverEndpoint is the external proof-computation service
	ProverEndpoint string

	// StartBlock is the first block the aggregation loop attests
	StartBlock uint64

	FetchTimeout time.Duration
	RetryBackoff time.Duration
	MaxRetries   int
}

func NewConfig(args ...string) *Config {
	// Parse configuration from environment variables or command line args
	config := Config{
		RootDir:           getEnv("ROOT", "."),
		ChainID:           getEnvUint("CHAIN_ID", 1),
		TargetChainID:     getEnvUint("TARGET_CHAIN_ID", 137),
		MerkleDepth:       4,
		MinProofsPerBatch: 3,
		MaxProofsPerBatch: 10,
		MaxRecursionDepth: 5,
		ProverEndpoint:    getEnv("PROVER_ENDPOINT", "http://localhost:8900"),
		FetchTimeout:      10 * time.Second,
		RetryBackoff:      1000 * time.Millisecond,
		MaxRetries:        3,
	}
	// the default endpoint is a beacon node, so the default source type
	// follows it
	config.ChainEndpoints = map[uint64]ChainEndpoint{
		config.ChainID: {
			Primary: getEnv("RPC_ENDPOINT", "https://lodestar-sepolia.chainsafe.io/"),
			Source:  getEnv("SOURCE_TYPE", SourceBeacon),
		},
	}

	for i := 0; i < len(args); i++ {
		if len(args) <= i+1 {
			panic(fmt.Errorf("missing argument for %s", args[i-1]))
		}

		switch args[i] {
		case "--root":
			config.RootDir = args[i+1]
			i++
		case "--chain":
			config.ChainID, _ = strconv.ParseUint(args[i+1], 10, 64)
			i++
		case "--target-chain":
			config.TargetChainID, _ = strconv.ParseUint(args[i+1], 10, 64)
			i++
		case "--merkle-depth":
			config.MerkleDepth, _ = strconv.Atoi(args[i+1])
			i++
		case "--min-proofs":
			config.MinProofsPerBatch, _ = strconv.Atoi(args[i+1])
			i++
		case "--max-proofs":
			config.MaxProofsPerBatch, _ = strconv.Atoi(args[i+1])
			i++
		case "--max-recursion":
			config.MaxRecursionDepth, _ = strconv.Atoi(args[i+1])
			i++
		case "--rpc":
			ep := config.ChainEndpoints[config.ChainID]
			ep.Primary = args[i+1]
			config.ChainEndpoints[config.ChainID] = ep
			i++
		case "--source":
			ep := config.ChainEndpoints[config.ChainID]
			ep.Source = args[i+1]
			config.ChainEndpoints[config.ChainID] = ep
			i++
		case "--prover":
			config.ProverEndpoint = args[i+1]
			i++
		case "--from-block":
			config.StartBlock, _ = strconv.ParseUint(args[i+1], 10, 64)
			i++
		}
	}

	return &config
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.ParseUint(value, 10, 64); err == nil {
			return v
		}
	}
	return defaultValue
}
