package prover

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/kysee/zk-folding/types"
)

var (
	ErrUnknownRequest   = errors.New("unknown proof request")
	ErrAlreadyCompleted = errors.New("proof request already completed")
)

// ProofRegistry owns the proof-request records and their Pending ->
// Completed lifecycle. All mutations go through the registry under a
// single lock, so duplicate external completions are rejected race-free.
type ProofRegistry struct {
	mu       sync.Mutex
	nextID   uint64
	requests map[uint64]*types.ProofRequest

	log zerolog.Logger
}

func NewProofRegistry(log zerolog.Logger) *ProofRegistry {
	return &ProofRegistry{
		nextID:   1,
		requests: make(map[uint64]*types.ProofRequest),
		log:      log.With().Str("module", "registry").Logger(),
	}
}

// Submit allocates the next request id and stores a Pending record.
// Dispatching the work to the proving collaborator is the caller's
// responsibility.
func (r *ProofRegistry) Submit(requester string, sourceChain, blockNumber uint64, stateRoot common.Hash) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.requests[id] = &types.ProofRequest{
		ID:          id,
		Requester:   requester,
		SourceChain: sourceChain,
		BlockNumber: blockNumber,
		StateRoot:   stateRoot,
		CreatedAt:   time.Now(),
	}

	r.log.Debug().Uint64("id", id).Uint64("chain", sourceChain).
		Uint64("block", blockNumber).Str("requester", requester).
		Msg("proof request submitted")
	return id
}

// Complete transitions a Pending request to Completed exactly once. A
// second completion for the same id fails with ErrAlreadyCompleted and
// leaves the first result untouched.
func (r *ProofRegistry) Complete(id uint64, proof json.RawMessage, publicSignals []string, isValid bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownRequest, id)
	}
	if req.Completed {
		return fmt.Errorf("%w: id %d", ErrAlreadyCompleted, id)
	}

	req.Completed = true
	req.Valid = isValid
	req.Proof = proof
	req.PublicSignals = publicSignals

	r.log.Info().Uint64("id", id).Bool("valid", isValid).Msg("proof request completed")
	return nil
}

// Get returns a copy of the request record; the registry keeps exclusive
// ownership of the stored one.
func (r *ProofRegistry) Get(id uint64) (*types.ProofRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownRequest, id)
	}
	cp := *req
	cp.Proof = append(json.RawMessage(nil), req.Proof...)
	cp.PublicSignals = append([]string(nil), req.PublicSignals...)
	return &cp, nil
}

// CompletedValid lists the ids of requests that completed with a valid
// proof, in ascending order.
func (r *ProofRegistry) CompletedValid() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []uint64
	for id, req := range r.requests {
		if req.Completed && req.Valid {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
