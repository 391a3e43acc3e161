package prover

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	types2 "github.com/kysee/zk-folding/provers/types"
	"github.com/kysee/zk-folding/types"
)

// ErrSourceUnavailable reports that every configured source for a chain
// failed. It wraps the last attempt's error.
var ErrSourceUnavailable = errors.New("block-data source unavailable")

// FallbackFetcher walks a chain's primary endpoint and its fallbacks in
// order, with a fixed backoff between attempts. Attempts are sequential so
// failure attribution stays unambiguous per source.
type FallbackFetcher struct {
	endpoints map[uint64][]types2.BlockFetcher
	backoff   time.Duration
	log       zerolog.Logger
}

func NewFallbackFetcher(cfg *types2.Config, log zerolog.Logger) *FallbackFetcher {
	endpoints := make(map[uint64][]types2.BlockFetcher, len(cfg.ChainEndpoints))
	for chainID, ep := range cfg.ChainEndpoints {
		sources := []types2.BlockFetcher{newSource(ep.Source, ep.Primary, cfg.FetchTimeout)}
		for _, u := range ep.Fallbacks {
			sources = append(sources, newSource(ep.Source, u, cfg.FetchTimeout))
		}
		endpoints[chainID] = sources
	}
	return &FallbackFetcher{
		endpoints: endpoints,
		backoff:   cfg.RetryBackoff,
		log:       log.With().Str("module", "fetcher").Logger(),
	}
}

// newSource builds the fetcher matching the endpoint's protocol.
func newSource(sourceType, endpoint string, timeout time.Duration) types2.BlockFetcher {
	if sourceType == types2.SourceBeacon {
		return NewBeaconFetcher(endpoint, timeout)
	}
	return NewAPIFetcher(endpoint, timeout)
}

func (f *FallbackFetcher) Block(ctx context.Context, chainID, blockNumber uint64) (*types.RawBlock, error) {
	sources, ok := f.endpoints[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: no endpoints configured for chain %d", ErrSourceUnavailable, chainID)
	}

	var lastErr error
	for i, source := range sources {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(f.backoff):
			}
		}
		block, err := source.Block(ctx, chainID, blockNumber)
		if err == nil {
			return block, nil
		}
		lastErr = err
		f.log.Warn().
			Uint64("chain", chainID).
			Uint64("block", blockNumber).
			Int("source", i).
			Err(err).
			Msg("block fetch attempt failed")
	}
	return nil, fmt.Errorf("%w: chain %d block %d: %v", ErrSourceUnavailable, chainID, blockNumber, lastErr)
}
