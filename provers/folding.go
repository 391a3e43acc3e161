package prover

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/protolambda/ztyp/tree"
	"github.com/rs/zerolog"

	"github.com/kysee/zk-folding/types"
)

var (
	ErrBatchTooSmall         = errors.New("batch below minimum proof count")
	ErrBatchTooLarge         = errors.New("batch above maximum proof count")
	ErrDuplicateProofID      = errors.New("duplicate proof id in batch")
	ErrProofNotCompleted     = errors.New("proof request not completed")
	ErrProofInvalid          = errors.New("proof request completed invalid")
	ErrProofAlreadyBatched   = errors.New("proof already assigned to a batch")
	ErrUnknownBatch          = errors.New("unknown batch")
	ErrBatchAlreadyCompleted = errors.New("batch already completed")
	ErrMaxRecursionExceeded  = errors.New("max recursion depth exceeded")
	ErrNotCompleted          = errors.New("batch not completed")
)

// FoldingManager drives the recursive folding state machine over completed
// proof requests. The proof->batch assignment is permanent: it is written
// on a successful StartFolding and never cleared, even when the batch later
// exhausts its recursion budget.
type FoldingManager struct {
	mu sync.Mutex

	minProofs    int
	maxProofs    int
	maxRecursion int

	registry  *ProofRegistry
	nextID    uint64
	batches   map[uint64]*types.FoldingBatch
	instances map[uint64]*types.FoldedInstance

	// proofBatch maps proof id -> owning batch id, permanently
	proofBatch map[uint64]uint64

	log zerolog.Logger
}

func NewFoldingManager(registry *ProofRegistry, minProofs, maxProofs, maxRecursion int, log zerolog.Logger) *FoldingManager {
	return &FoldingManager{
		minProofs:    minProofs,
		maxProofs:    maxProofs,
		maxRecursion: maxRecursion,
		registry:     registry,
		nextID:       1,
		batches:      make(map[uint64]*types.FoldingBatch),
		instances:    make(map[uint64]*types.FoldedInstance),
		proofBatch:   make(map[uint64]uint64),
		log:          log.With().Str("module", "folding").Logger(),
	}
}

// StartFolding validates the proof set and opens a batch at recursion
// depth 1. Validation failures reject the whole call; no partial batch is
// ever created.
func (m *FoldingManager) StartFolding(proofIDs []uint64, requester string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(proofIDs) < m.minProofs {
		return 0, fmt.Errorf("%w: %d < %d", ErrBatchTooSmall, len(proofIDs), m.minProofs)
	}
	if len(proofIDs) > m.maxProofs {
		return 0, fmt.Errorf("%w: %d > %d", ErrBatchTooLarge, len(proofIDs), m.maxProofs)
	}

	seen := make(map[uint64]struct{}, len(proofIDs))
	for _, id := range proofIDs {
		if _, dup := seen[id]; dup {
			return 0, fmt.Errorf("%w: id %d", ErrDuplicateProofID, id)
		}
		seen[id] = struct{}{}

		req, err := m.registry.Get(id)
		if err != nil {
			return 0, err
		}
		if !req.Completed {
			return 0, fmt.Errorf("%w: id %d", ErrProofNotCompleted, id)
		}
		if !req.Valid {
			return 0, fmt.Errorf("%w: id %d", ErrProofInvalid, id)
		}
		if owner, batched := m.proofBatch[id]; batched {
			return 0, fmt.Errorf("%w: id %d owned by batch %d", ErrProofAlreadyBatched, id, owner)
		}
	}

	batchID := m.nextID
	m.nextID++
	batch := &types.FoldingBatch{
		ID:             batchID,
		ProofIDs:       append([]uint64(nil), proofIDs...),
		Requester:      requester,
		CreatedAt:      time.Now(),
		RecursionDepth: 1,
	}
	agg := m.proofSetHash(batch)
	batch.AggregatedHash = types.HexBytes(agg[:])
	m.batches[batchID] = batch

	for _, id := range proofIDs {
		m.proofBatch[id] = batchID
	}

	m.log.Info().Uint64("batch", batchID).Int("proofs", len(proofIDs)).
		Str("requester", requester).Msg("folding started")
	return batchID, nil
}

// ContinueFolding advances the batch one recursion step, absorbing a fresh
// hash of the proof-set state into the aggregated hash. With finalize set,
// the folded instance is emitted and the batch becomes immutable.
func (m *FoldingManager) ContinueFolding(batchID uint64, finalize bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, ok := m.batches[batchID]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownBatch, batchID)
	}
	if batch.Completed {
		return fmt.Errorf("%w: id %d", ErrBatchAlreadyCompleted, batchID)
	}
	if batch.RecursionDepth == m.maxRecursion {
		return fmt.Errorf("%w: batch %d at depth %d", ErrMaxRecursionExceeded, batchID, batch.RecursionDepth)
	}

	batch.RecursionDepth++

	var prev tree.Root
	copy(prev[:], batch.AggregatedHash)
	agg := hashCombine(prev, m.proofSetHash(batch))
	batch.AggregatedHash = types.HexBytes(agg[:])

	m.log.Debug().Uint64("batch", batchID).Int("depth", batch.RecursionDepth).
		Msg("folding step applied")

	if finalize {
		m.instances[batchID] = m.buildInstance(batch, agg)
		batch.Completed = true
		m.log.Info().Uint64("batch", batchID).Int("depth", batch.RecursionDepth).
			Msg("folding completed")
	}
	return nil
}

// GetBatch returns a copy of the batch record.
func (m *FoldingManager) GetBatch(batchID uint64) (*types.FoldingBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch, ok := m.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownBatch, batchID)
	}
	cp := *batch
	cp.ProofIDs = append([]uint64(nil), batch.ProofIDs...)
	cp.AggregatedHash = append(types.HexBytes(nil), batch.AggregatedHash...)
	return &cp, nil
}

// GetFoldedInstance returns the folded instance of a completed batch.
func (m *FoldingManager) GetFoldedInstance(batchID uint64) (*types.FoldedInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.batches[batchID]; !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownBatch, batchID)
	}
	inst, ok := m.instances[batchID]
	if !ok {
		return nil, fmt.Errorf("%w: batch %d", ErrNotCompleted, batchID)
	}
	cp := *inst
	return &cp, nil
}

// IsBatched reports whether a proof id is already owned by some batch.
func (m *FoldingManager) IsBatched(proofID uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.proofBatch[proofID]
	return ok
}

// proofSetHash chains a commitment over the batch members' current state.
func (m *FoldingManager) proofSetHash(batch *types.FoldingBatch) tree.Root {
	var acc tree.Root
	for _, id := range batch.ProofIDs {
		var leaf tree.Root
		binary.BigEndian.PutUint64(leaf[:8], id)
		if req, err := m.registry.Get(id); err == nil {
			leaf = hashCombine(leaf, tree.Root(req.StateRoot))
		}
		acc = hashCombine(acc, leaf)
	}
	return acc
}

func (m *FoldingManager) buildInstance(batch *types.FoldingBatch, agg tree.Root) *types.FoldedInstance {
	setHash := m.proofSetHash(batch)
	inst := &types.FoldedInstance{
		StepIn:         types.BytesToField(setHash[:]),
		StepOut:        types.BytesToField(agg[:]),
		ProgramCounter: uint64(batch.RecursionDepth),
		NullifierHash:  types.HashToField(batch.Requester + ":" + strconv.FormatUint(batch.ID, 10)),
		Valid:          true,
	}
	if first, err := m.registry.Get(batch.ProofIDs[0]); err == nil {
		inst.StateRootIn = first.StateRoot
	}
	if last, err := m.registry.Get(batch.ProofIDs[len(batch.ProofIDs)-1]); err == nil {
		inst.StateRootOut = last.StateRoot
	}
	return inst
}

var foldHashFn = tree.GetHashFn()

func hashCombine(a, b tree.Root) tree.Root {
	return foldHashFn(a, b)
}
