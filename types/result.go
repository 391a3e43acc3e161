package types

import (
	"encoding/json"
	"fmt"
)

// CompactResultLimit is the hard ceiling on the guaranteed-delivery
// result channel.
const CompactResultLimit = 256

// compactVersion tags the compact wire format.
const compactVersion = "v1"

// maxCompactString bounds the human-readable proof-id / error field.
const maxCompactString = 50

// compactRecord is the fixed-key summary sent over the size-constrained
// channel. Structural fields are never dropped; only the string field is
// truncated to fit.
type compactRecord struct {
	S    bool   `json:"s"`
	PID  string `json:"pid,omitempty"`
	E    string `json:"e,omitempty"`
	CID  uint64 `json:"cid"`
	TCID uint64 `json:"tcid"`
	BN   uint64 `json:"bn,omitempty"`
	TS   int64  `json:"ts"`
	V    string `json:"v"`
}

// EncodeCompact serializes the success/failure summary of an outcome
// within CompactResultLimit bytes.
func EncodeCompact(o *ProofOutcome) ([]byte, error) {
	rec := compactRecord{
		S:    o.Success,
		CID:  o.SourceChain,
		TCID: o.TargetChain,
		BN:   o.BlockNumber,
		TS:   o.Timestamp,
		V:    compactVersion,
	}
	str := o.ProofID
	if !o.Success {
		str = o.Err
	}
	str = truncate(str, maxCompactString)

	for {
		if o.Success {
			rec.PID, rec.E = str, ""
		} else {
			rec.PID, rec.E = "", str
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("compact encoding failed: %w", err)
		}
		if len(b) <= CompactResultLimit {
			return b, nil
		}
		if len(str) == 0 {
			return nil, fmt.Errorf("compact record exceeds %d bytes with empty string field", CompactResultLimit)
		}
		str = truncate(str, len(str)-(len(b)-CompactResultLimit))
	}
}

// EncodeFull serializes the complete result for the out-of-band channel.
// Unconstrained in size.
func EncodeFull(o *ProofOutcome) ([]byte, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("full encoding failed: %w", err)
	}
	return b, nil
}

func truncate(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s
	}
	return s[:n]
}
