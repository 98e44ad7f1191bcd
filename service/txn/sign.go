package txn

import (
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
)

// Signer authorizes transactions for one address. solana.PrivateKey
// satisfies it.
type Signer interface {
	PublicKey() solanago.PublicKey
	Sign(payload []byte) (solanago.Signature, error)
}

// Signed is a transaction ready for submission.
type Signed struct {
	tx                   *solanago.Transaction
	wire                 []byte
	signature            solanago.Signature
	lastValidBlockHeight uint64
}

// Transaction returns the signed transaction.
func (s *Signed) Transaction() *solanago.Transaction { return s.tx }

// Wire returns a copy of the serialized transaction.
func (s *Signed) Wire() []byte { return append([]byte(nil), s.wire...) }

// Base64 returns the wire bytes in the encoding used for submission.
func (s *Signed) Base64() string { return base64.StdEncoding.EncodeToString(s.wire) }

// Signature is the fee payer's signature, which identifies the transaction.
func (s *Signed) Signature() solanago.Signature { return s.signature }

// LastValidBlockHeight is the expiry of the anchor the transaction was built on.
func (s *Signed) LastValidBlockHeight() uint64 { return s.lastValidBlockHeight }

// Sign builds and signs the intent. Every required signer must be among
// signers; extra signers are ignored. A successfully signed intent cannot be
// signed again.
func Sign(intent *Intent, signers ...Signer) (*Signed, error) {
	intent.mu.Lock()
	defer intent.mu.Unlock()
	if intent.consumed {
		return nil, ErrIntentConsumed
	}

	tx, err := intent.Build()
	if err != nil {
		return nil, err
	}

	byKey := make(map[solanago.PublicKey]Signer, len(signers))
	for _, s := range signers {
		byKey[s.PublicKey()] = s
	}

	required := RequiredSigners(tx)
	var missing []solanago.PublicKey
	for _, key := range required {
		if _, ok := byKey[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &SigningError{Missing: missing}
	}

	payload, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, &SigningError{Err: fmt.Errorf("failed to serialize message: %w", err)}
	}

	tx.Signatures = make([]solanago.Signature, len(required))
	for i, key := range required {
		sig, err := byKey[key].Sign(payload)
		if err != nil {
			return nil, &SigningError{Err: fmt.Errorf("signer %s: %w", key, err)}
		}
		tx.Signatures[i] = sig
	}

	wire, err := tx.MarshalBinary()
	if err != nil {
		return nil, &SigningError{Err: fmt.Errorf("failed to serialize transaction: %w", err)}
	}

	intent.consumed = true
	return &Signed{
		tx:                   tx,
		wire:                 wire,
		signature:            tx.Signatures[0],
		lastValidBlockHeight: intent.anchor.LastValidBlockHeight,
	}, nil
}

// SignatureFromWire derives the signature identifier from serialized
// transaction bytes. Equal bytes always give equal identifiers.
func SignatureFromWire(wire []byte) (solanago.Signature, error) {
	tx, err := solanago.TransactionFromDecoder(bin.NewBinDecoder(wire))
	if err != nil {
		return solanago.Signature{}, fmt.Errorf("failed to decode transaction: %w", err)
	}
	if len(tx.Signatures) == 0 {
		return solanago.Signature{}, fmt.Errorf("transaction carries no signatures")
	}
	return tx.Signatures[0], nil
}
