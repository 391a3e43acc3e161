package prover

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	cfgtypes "github.com/kysee/zk-folding/provers/types"
	"github.com/kysee/zk-folding/types"
)

// attestationCircuitName identifies the circuit requested from the
// external proving service.
const attestationCircuitName = "BlockAttestation"

// Aggregator wires the engine together: it fetches remote-chain blocks,
// builds circuit inputs, drives proof requests through the registry and
// the external prover, folds completed proofs and emits results on the
// compact and full channels.
type Aggregator struct {
	config  *cfgtypes.Config
	fetcher cfgtypes.BlockFetcher
	prover  cfgtypes.ProofService
	builder *InputBuilder

	Registry *ProofRegistry
	Folding  *FoldingManager

	// CompactSink receives every EncodeCompact record; FullDir receives
	// the unconstrained EncodeFull payloads, one file per outcome.
	CompactSink io.Writer
	FullDir     string

	log zerolog.Logger
}

// NewAggregator creates an Aggregator with the given collaborators
func NewAggregator(config *cfgtypes.Config, fetcher cfgtypes.BlockFetcher, prover cfgtypes.ProofService, log zerolog.Logger) (*Aggregator, error) {
	fullDir := filepath.Join(config.RootDir, "output")
	if err := os.MkdirAll(fullDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	registry := NewProofRegistry(log)
	return &Aggregator{
		config:      config,
		fetcher:     fetcher,
		prover:      prover,
		builder:     NewInputBuilder(config.ChainID, config.TargetChainID, config.MerkleDepth),
		Registry:    registry,
		Folding:     NewFoldingManager(registry, config.MinProofsPerBatch, config.MaxProofsPerBatch, config.MaxRecursionDepth, log),
		CompactSink: os.Stdout,
		FullDir:     fullDir,
		log:         log.With().Str("module", "aggregator").Logger(),
	}, nil
}

// ProcessBlocks attests one window of blocks: fetch each block (fail fast
// on the first unrecoverable fetch error), build and pad circuit inputs,
// register one proof request per block and dispatch a single proving call.
// External failures are converted into a compact failure outcome; input
// validation errors are returned to the caller untouched.
func (a *Aggregator) ProcessBlocks(ctx context.Context, requester string, blockNumbers []uint64) (*types.ProofOutcome, error) {
	blocks := make([]*types.RawBlock, 0, len(blockNumbers))
	for _, number := range blockNumbers {
		block, err := a.fetcher.Block(ctx, a.config.ChainID, number)
		if err != nil {
			a.log.Error().Uint64("block", number).Err(err).Msg("block fetch failed")
			return a.emitFailure(number, fmt.Sprintf("fetch block %d: %v", number, err)), nil
		}
		blocks = append(blocks, block)
	}

	inputs, err := a.builder.Prepare(blocks)
	if err != nil {
		return nil, err
	}
	padded := a.builder.PadToMinimum(inputs, a.config.MinProofsPerBatch)

	ids := make([]uint64, len(blocks))
	for i, block := range blocks {
		ids[i] = a.Registry.Submit(requester, a.config.ChainID, block.Number,
			common.HexToHash(blockHashOrDefault(block)))
	}

	resp, err := a.prover.Compute(ctx, &cfgtypes.ProofRequestPayload{
		Circuit: attestationCircuitName,
		Inputs:  padded,
		Params: cfgtypes.ProofParams{
			NProofs:     len(padded),
			MerkleDepth: a.config.MerkleDepth,
			BlockDepth:  a.config.MerkleDepth,
		},
	})
	if err != nil {
		a.log.Error().Err(err).Msg("proof computation failed")
		for _, id := range ids {
			if cerr := a.Registry.Complete(id, nil, nil, false); cerr != nil {
				a.log.Error().Uint64("id", id).Err(cerr).Msg("failed to record proving failure")
			}
		}
		return a.emitFailure(firstOrZero(blockNumbers), err.Error()), nil
	}

	for _, id := range ids {
		if cerr := a.Registry.Complete(id, resp.Proof, resp.PublicSignals, true); cerr != nil {
			a.log.Error().Uint64("id", id).Err(cerr).Msg("failed to record proving result")
		}
	}

	proofID := resp.ProofID
	if proofID == "" {
		proofID = fmt.Sprintf("req-%d", ids[0])
	}
	outcome := &types.ProofOutcome{
		Success:       true,
		ProofID:       proofID,
		SourceChain:   a.config.ChainID,
		TargetChain:   a.config.TargetChainID,
		BlockNumber:   firstOrZero(blockNumbers),
		Timestamp:     time.Now().Unix(),
		Proof:         resp.Proof,
		PublicSignals: resp.PublicSignals,
		Inputs:        padded,
	}
	a.emit(outcome, fmt.Sprintf("proof-%s.json", proofID))
	return outcome, nil
}

// FoldCompleted selects every completed, valid, unbatched proof (up to the
// batch maximum), opens a folding batch and drives it to the configured
// recursion depth, finalizing on the last step.
func (a *Aggregator) FoldCompleted(requester string) (*types.FoldedInstance, uint64, error) {
	var candidates []uint64
	for _, id := range a.Registry.CompletedValid() {
		if !a.Folding.IsBatched(id) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) > a.config.MaxProofsPerBatch {
		candidates = candidates[:a.config.MaxProofsPerBatch]
	}

	batchID, err := a.Folding.StartFolding(candidates, requester)
	if err != nil {
		return nil, 0, err
	}

	for depth := 1; depth < a.config.MaxRecursionDepth; depth++ {
		finalize := depth+1 == a.config.MaxRecursionDepth
		if err := a.Folding.ContinueFolding(batchID, finalize); err != nil {
			return nil, batchID, err
		}
	}

	instance, err := a.Folding.GetFoldedInstance(batchID)
	if err != nil {
		return nil, batchID, err
	}

	outcome := &types.ProofOutcome{
		Success:     true,
		ProofID:     fmt.Sprintf("fold-%d", batchID),
		SourceChain: a.config.ChainID,
		TargetChain: a.config.TargetChainID,
		Timestamp:   time.Now().Unix(),
	}
	a.emit(outcome, fmt.Sprintf("fold-%d.json", batchID))

	a.log.Info().Uint64("batch", batchID).Int("proofs", len(candidates)).
		Msg("folded instance emitted")
	return instance, batchID, nil
}

// Run executes the aggregation loop: attest a window of blocks, fold when
// enough proofs accumulated, retry after the configured backoff on errors.
func (a *Aggregator) Run(ctx context.Context) error {
	number := a.config.StartBlock
	window := a.config.MinProofsPerBatch
	a.log.Info().Uint64("from", number).Int("window", window).Msg("starting aggregation loop")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		numbers := make([]uint64, window)
		for i := range numbers {
			numbers[i] = number + uint64(i)
		}

		outcome, err := a.ProcessBlocks(ctx, "aggregator", numbers)
		if err != nil {
			return err
		}
		if !outcome.Success {
			a.log.Warn().Str("error", outcome.Err).Msg("window failed, retrying")
			time.Sleep(a.config.RetryBackoff)
			continue
		}
		number += uint64(window)

		if _, _, err := a.FoldCompleted("aggregator"); err != nil {
			a.log.Warn().Err(err).Msg("folding deferred")
		}

		time.Sleep(a.config.RetryBackoff)
	}
}

// emitFailure builds a failure outcome and pushes it to the compact
// channel so the boundary never observes a raw error.
func (a *Aggregator) emitFailure(blockNumber uint64, msg string) *types.ProofOutcome {
	outcome := &types.ProofOutcome{
		Success:     false,
		Err:         msg,
		SourceChain: a.config.ChainID,
		TargetChain: a.config.TargetChainID,
		BlockNumber: blockNumber,
		Timestamp:   time.Now().Unix(),
	}
	a.emit(outcome, "")
	return outcome
}

// emit writes the compact record, and the full payload when fullName is
// non-empty.
func (a *Aggregator) emit(outcome *types.ProofOutcome, fullName string) {
	compact, err := types.EncodeCompact(outcome)
	if err != nil {
		a.log.Error().Err(err).Msg("compact encoding failed")
	} else if _, err := a.CompactSink.Write(append(compact, '\n')); err != nil {
		a.log.Error().Err(err).Msg("compact channel write failed")
	}

	if fullName == "" {
		return
	}
	full, err := types.EncodeFull(outcome)
	if err != nil {
		a.log.Error().Err(err).Msg("full encoding failed")
		return
	}
	path := filepath.Join(a.FullDir, fullName)
	if err := os.WriteFile(path, full, 0644); err != nil {
		a.log.Error().Str("path", path).Err(err).Msg("full channel write failed")
		return
	}
	a.log.Debug().Str("path", path).Msg("full result written")
}

func firstOrZero(numbers []uint64) uint64 {
	if len(numbers) == 0 {
		return 0
	}
	return numbers[0]
}
