package txn

import (
	"fmt"
	"sync"

	"github.com/brojonat/txconfirm/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// Intent is an unsigned transaction: a fee payer, a lifetime anchor and an
// ordered list of instructions. Its fields cannot be changed after
// construction, and it can be signed once.
type Intent struct {
	payer        solanago.PublicKey
	anchor       solana.Anchor
	instructions []solanago.Instruction

	mu       sync.Mutex
	consumed bool
}

// NewIntent validates its inputs without touching the network.
func NewIntent(payer solanago.PublicKey, anchor solana.Anchor, instructions ...solanago.Instruction) (*Intent, error) {
	if len(instructions) == 0 {
		return nil, ErrNoInstructions
	}
	if payer.IsZero() {
		return nil, ErrNoPayer
	}
	if anchor.IsZero() {
		return nil, ErrInvalidAnchor
	}

	return &Intent{
		payer:        payer,
		anchor:       anchor,
		instructions: append([]solanago.Instruction(nil), instructions...),
	}, nil
}

func (i *Intent) Payer() solanago.PublicKey { return i.payer }

func (i *Intent) Anchor() solana.Anchor { return i.anchor }

// Instructions returns a copy of the instruction list.
func (i *Intent) Instructions() []solanago.Instruction {
	return append([]solanago.Instruction(nil), i.instructions...)
}

// Consumed reports whether the intent has been signed.
func (i *Intent) Consumed() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.consumed
}

// Build compiles the intent into an unsigned legacy transaction.
func (i *Intent) Build() (*solanago.Transaction, error) {
	tx, err := solanago.NewTransaction(
		i.instructions,
		i.anchor.Blockhash,
		solanago.TransactionPayer(i.payer),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	return tx, nil
}

// RequiredSigners lists the accounts that must sign the compiled message:
// the fee payer first, then every instruction-declared signer.
func RequiredSigners(tx *solanago.Transaction) []solanago.PublicKey {
	n := int(tx.Message.Header.NumRequiredSignatures)
	if n > len(tx.Message.AccountKeys) {
		n = len(tx.Message.AccountKeys)
	}
	return append([]solanago.PublicKey(nil), tx.Message.AccountKeys[:n]...)
}
