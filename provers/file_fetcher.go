package prover

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	types2 "github.com/kysee/zk-folding/provers/types"
	"github.com/kysee/zk-folding/types"
)

// FileFetcher implements BlockFetcher by reading block records from a local
// directory, one JSON file per block. Used for replays and tests.
type FileFetcher struct {
	Dir string
}

// NewFileFetcher creates a new FileFetcher rooted at the given directory
func NewFileFetcher(dir string) *FileFetcher {
	return &FileFetcher{
		Dir: dir,
	}
}

// Block reads and parses block-{chainID}-{blockNumber}.json
func (f *FileFetcher) Block(_ context.Context, chainID, blockNumber uint64) (*types.RawBlock, error) {
	path := filepath.Join(f.Dir, fmt.Sprintf("block-%d-%d.json", chainID, blockNumber))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	var record types2.BlockAPIResponse
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return blockFromAPI(&record)
}
