package txn

import (
	"sync"
	"time"

	"github.com/brojonat/txconfirm/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// Observation is what is currently known about one signature.
type Observation struct {
	Signature     solanago.Signature `json:"signature"`
	Level         Level              `json:"level"`
	Slot          uint64             `json:"slot,omitempty"`
	Confirmations *uint64            `json:"confirmations,omitempty"`
	Err           any                `json:"err,omitempty"`
	ObservedAt    time.Time          `json:"observed_at"`
}

// Observe converts one RPC status into an Observation.
func Observe(status solana.SignatureStatus, at time.Time) Observation {
	return Observation{
		Signature:     status.Signature,
		Level:         LevelOf(status),
		Slot:          status.Slot,
		Confirmations: status.Confirmations,
		Err:           status.Err,
		ObservedAt:    at,
	}
}

// Merge folds a new observation into the previous one. A terminal previous
// observation always wins, and a lower level never replaces a higher one.
func Merge(prev, next Observation) Observation {
	if prev.Level.Terminal() || next.Level < prev.Level {
		return prev
	}
	return next
}

// Observations tracks the merged observation per signature.
// It is safe for concurrent use; recording the same status twice is a no-op.
type Observations struct {
	mu    sync.RWMutex
	bySig map[solanago.Signature]Observation
	now   func() time.Time
}

func NewObservations() *Observations {
	return &Observations{
		bySig: make(map[solanago.Signature]Observation),
		now:   time.Now,
	}
}

// Record merges status into the signature's record and returns the result.
func (o *Observations) Record(status solana.SignatureStatus) Observation {
	next := Observe(status, o.now())

	o.mu.Lock()
	defer o.mu.Unlock()
	if prev, ok := o.bySig[status.Signature]; ok {
		next = Merge(prev, next)
	}
	o.bySig[status.Signature] = next
	return next
}

// Get returns the current record for sig.
func (o *Observations) Get(sig solanago.Signature) (Observation, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	obs, ok := o.bySig[sig]
	return obs, ok
}

// Len returns the number of tracked signatures.
func (o *Observations) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.bySig)
}
