package prover

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	types2 "github.com/kysee/zk-folding/provers/types"
)

func blockHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/v1/chains/1/blocks/"))
		_ = json.NewEncoder(w).Encode(types2.BlockAPIResponse{
			Hash:         "0x" + strings.Repeat("cd", 32),
			Number:       "0x64",
			Timestamp:    "1700000000",
			Transactions: []string{"0x" + strings.Repeat("01", 32)},
		})
	}
}

func TestAPIFetcherBlock(t *testing.T) {
	srv := httptest.NewServer(blockHandler(t))
	defer srv.Close()

	f := NewAPIFetcher(srv.URL, time.Second)
	block, err := f.Block(context.Background(), 1, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(100), block.Number, "hex quantity decoded")
	require.Equal(t, uint64(1700000000), block.Timestamp, "decimal quantity decoded")
	require.Len(t, block.Transactions, 1)
}

func TestAPIFetcherErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewAPIFetcher(srv.URL, time.Second)
	_, err := f.Block(context.Background(), 1, 100)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 404")
}

func TestFallbackFetcherUsesAlternateSource(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()
	healthy := httptest.NewServer(blockHandler(t))
	defer healthy.Close()

	cfg := &types2.Config{
		ChainEndpoints: map[uint64]types2.ChainEndpoint{
			1: {Primary: broken.URL, Fallbacks: []string{healthy.URL}},
		},
		FetchTimeout: time.Second,
		RetryBackoff: time.Millisecond,
	}
	f := NewFallbackFetcher(cfg, zerolog.Nop())

	block, err := f.Block(context.Background(), 1, 100)
	require.NoError(t, err)
	require.Equal(t, uint64(100), block.Number)
}

func TestFallbackFetcherAllSourcesDown(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	cfg := &types2.Config{
		ChainEndpoints: map[uint64]types2.ChainEndpoint{
			1: {Primary: broken.URL, Fallbacks: []string{broken.URL}},
		},
		FetchTimeout: time.Second,
		RetryBackoff: time.Millisecond,
	}
	f := NewFallbackFetcher(cfg, zerolog.Nop())

	_, err := f.Block(context.Background(), 1, 100)
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestFallbackFetcherUnknownChain(t *testing.T) {
	f := NewFallbackFetcher(&types2.Config{
		ChainEndpoints: map[uint64]types2.ChainEndpoint{},
		RetryBackoff:   time.Millisecond,
	}, zerolog.Nop())

	_, err := f.Block(context.Background(), 7, 1)
	require.ErrorIs(t, err, ErrSourceUnavailable)
}
