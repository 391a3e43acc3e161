package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	prover "github.com/kysee/zk-folding/provers"
	cfgtypes "github.com/kysee/zk-folding/provers/types"
	"github.com/kysee/zk-folding/types"
)

// stubFetcher serves deterministic in-memory blocks with two transactions
// each, the representative single-block scenario at merkle depth 2.
type stubFetcher struct {
	fail bool
}

func (s *stubFetcher) Block(_ context.Context, _ uint64, number uint64) (*types.RawBlock, error) {
	if s.fail {
		return nil, fmt.Errorf("connection refused")
	}
	return &types.RawBlock{
		Hash:      "0x" + strings.Repeat(fmt.Sprintf("%02x", byte(number)), 32),
		Number:    number,
		Timestamp: 1_700_000_000,
		Transactions: []string{
			"0x" + strings.Repeat("aa", 32),
			"0x" + strings.Repeat("bb", 32),
		},
	}, nil
}

func testConfig(t *testing.T, proverURL string) *cfgtypes.Config {
	t.Helper()
	return &cfgtypes.Config{
		RootDir:           t.TempDir(),
		ChainID:           1,
		TargetChainID:     137,
		MerkleDepth:       2,
		MinProofsPerBatch: 3,
		MaxProofsPerBatch: 10,
		MaxRecursionDepth: 3,
		ProverEndpoint:    proverURL,
		FetchTimeout:      2 * time.Second,
		RetryBackoff:      time.Millisecond,
		MaxRetries:        1,
	}
}

func proverServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload cfgtypes.ProofRequestPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.GreaterOrEqual(t, len(payload.Inputs), payload.Params.NProofs)

		_ = json.NewEncoder(w).Encode(cfgtypes.ProofResponse{
			Proof:         json.RawMessage(`{"pi_a":["1","2"],"protocol":"groth16"}`),
			PublicSignals: []string{"101", "102"},
			ProofID:       "e2e-proof",
		})
	}))
}

func TestAggregationEndToEnd(t *testing.T) {
	srv := proverServer(t)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	log := zerolog.Nop()

	agg, err := prover.NewAggregator(cfg, &stubFetcher{}, prover.NewProofClient(cfg, log), log)
	require.NoError(t, err)

	var compact bytes.Buffer
	agg.CompactSink = &compact

	outcome, err := agg.ProcessBlocks(context.Background(), "alice", []uint64{100, 101, 102})
	require.NoError(t, err)
	require.True(t, outcome.Success)
	require.Equal(t, "e2e-proof", outcome.ProofID)
	require.Len(t, outcome.Inputs, 3)

	// every request completed valid
	ids := agg.Registry.CompletedValid()
	require.Len(t, ids, 3)
	req, err := agg.Registry.Get(ids[0])
	require.NoError(t, err)
	require.True(t, req.Valid)
	require.NotEmpty(t, req.Proof)

	// compact channel record within budget
	line := bytes.TrimSpace(compact.Bytes())
	require.LessOrEqual(t, len(line), types.CompactResultLimit)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(line, &rec))
	require.Equal(t, true, rec["s"])
	require.Equal(t, float64(1), rec["cid"])
	require.Equal(t, float64(137), rec["tcid"])

	// full channel payload carries the proof artifact
	fullPath := filepath.Join(agg.FullDir, "proof-e2e-proof.json")
	data, err := os.ReadFile(fullPath)
	require.NoError(t, err)
	var full types.ProofOutcome
	require.NoError(t, json.Unmarshal(data, &full))
	require.Equal(t, []string{"101", "102"}, full.PublicSignals)
	require.Len(t, full.Inputs, 3)

	// fold the completed proofs into one instance
	instance, batchID, err := agg.FoldCompleted("alice")
	require.NoError(t, err)
	require.True(t, instance.Valid)
	require.Equal(t, uint64(cfg.MaxRecursionDepth), instance.ProgramCounter)

	batch, err := agg.Folding.GetBatch(batchID)
	require.NoError(t, err)
	require.True(t, batch.Completed)
	require.Equal(t, cfg.MaxRecursionDepth, batch.RecursionDepth)
	require.Equal(t, ids, batch.ProofIDs)

	// nothing left to fold: all proofs are permanently batched
	_, _, err = agg.FoldCompleted("alice")
	require.ErrorIs(t, err, prover.ErrBatchTooSmall)
}

func TestAggregationFetchFailureEmitsCompactRecord(t *testing.T) {
	srv := proverServer(t)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	log := zerolog.Nop()

	agg, err := prover.NewAggregator(cfg, &stubFetcher{fail: true}, prover.NewProofClient(cfg, log), log)
	require.NoError(t, err)

	var compact bytes.Buffer
	agg.CompactSink = &compact

	outcome, err := agg.ProcessBlocks(context.Background(), "alice", []uint64{100})
	require.NoError(t, err, "external failures surface as compact records, not raw errors")
	require.False(t, outcome.Success)

	line := bytes.TrimSpace(compact.Bytes())
	require.NotEmpty(t, line)
	require.LessOrEqual(t, len(line), types.CompactResultLimit)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(line, &rec))
	require.Equal(t, false, rec["s"])
	require.NotEmpty(t, rec["e"])
}

func TestAggregationProverFailureCompletesInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	log := zerolog.Nop()

	agg, err := prover.NewAggregator(cfg, &stubFetcher{}, prover.NewProofClient(cfg, log), log)
	require.NoError(t, err)
	agg.CompactSink = &bytes.Buffer{}

	outcome, err := agg.ProcessBlocks(context.Background(), "alice", []uint64{100})
	require.NoError(t, err)
	require.False(t, outcome.Success)

	// the request reached a terminal invalid state
	require.Empty(t, agg.Registry.CompletedValid())
	req, err := agg.Registry.Get(1)
	require.NoError(t, err)
	require.True(t, req.Completed)
	require.False(t, req.Valid)
}
