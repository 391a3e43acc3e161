package prover

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	types2 "github.com/kysee/zk-folding/provers/types"
)

func beaconBlockJSON(blockHash string) string {
	return fmt.Sprintf(`{
  "version": "electra",
  "execution_optimistic": false,
  "finalized": true,
  "data": {
    "message": {
      "slot": "200",
      "proposer_index": "7",
      "body": {
        "execution_payload": {
          "block_hash": "%s",
          "block_number": "200",
          "timestamp": "1700000000",
          "transactions": ["0x02f87001", "0x02f87002"]
        }
      }
    }
  }
}`, blockHash)
}

func beaconHandler(t *testing.T, blockHash string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/eth/v2/beacon/blocks/200", r.URL.Path)
		_, _ = io.WriteString(w, beaconBlockJSON(blockHash))
	}
}

func TestBeaconFetcherBlock(t *testing.T) {
	blockHash := "0x" + strings.Repeat("ef", 32)
	srv := httptest.NewServer(beaconHandler(t, blockHash))
	defer srv.Close()

	f := NewBeaconFetcher(srv.URL, time.Second)
	block, err := f.Block(context.Background(), 1, 200)
	require.NoError(t, err)
	require.Equal(t, blockHash, block.Hash)
	require.Equal(t, uint64(200), block.Number, "slot projected as block number")
	require.Equal(t, uint64(1700000000), block.Timestamp)

	// transaction leaves are hash-tree roots, not the raw payloads
	require.Len(t, block.Transactions, 2)
	for _, leaf := range block.Transactions {
		require.Regexp(t, "^0x[0-9a-f]{64}$", leaf)
	}
	require.NotEqual(t, block.Transactions[0], block.Transactions[1])
}

func TestBeaconFetcherErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewBeaconFetcher(srv.URL, time.Second)
	_, err := f.Block(context.Background(), 1, 200)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 503")
}

func TestFallbackFetcherBeaconSource(t *testing.T) {
	blockHash := "0x" + strings.Repeat("ef", 32)
	srv := httptest.NewServer(beaconHandler(t, blockHash))
	defer srv.Close()

	cfg := &types2.Config{
		ChainEndpoints: map[uint64]types2.ChainEndpoint{
			1: {Primary: srv.URL, Source: types2.SourceBeacon},
		},
		FetchTimeout: time.Second,
		RetryBackoff: time.Millisecond,
	}
	f := NewFallbackFetcher(cfg, zerolog.Nop())

	block, err := f.Block(context.Background(), 1, 200)
	require.NoError(t, err)
	require.Equal(t, blockHash, block.Hash)
	require.Equal(t, uint64(200), block.Number)
}
