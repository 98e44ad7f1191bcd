package program

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/brojonat/txconfirm/service/solana"
	"github.com/brojonat/txconfirm/service/txn"
	solanago "github.com/gagliardetto/solana-go"
)

// Program is an Anchor program deployed from this workspace.
type Program struct {
	Name string             `json:"name"`
	ID   solanago.PublicKey `json:"id"`
}

var (
	BunKit = Program{
		Name: "bun_kit",
		ID:   solanago.MustPublicKeyFromBase58("91fD8V2tNaVWcK8Mhk3xc6kzsnbevrFp77yLUtqn8DXA"),
	}
	JestMultiple = Program{
		Name: "jest_multiple",
		ID:   solanago.MustPublicKeyFromBase58("5gP1fQZ6vG2iAwd1nCCQKFaayNiiPDZybw7cyfxotdpW"),
	}
)

// All returns the workspace programs.
func All() []Program {
	return []Program{BunKit, JestMultiple}
}

func (p Program) String() string {
	return fmt.Sprintf("%s (%s)", p.Name, p.ID)
}

// Lookup resolves a workspace program by name ("bun_kit", "bun-kit") or by
// address. Any other valid address resolves to an unnamed program.
func Lookup(nameOrAddress string) (Program, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(nameOrAddress)), "-", "_")
	for _, p := range All() {
		if p.Name == normalized || p.ID.String() == nameOrAddress {
			return p, nil
		}
	}

	id, err := solanago.PublicKeyFromBase58(strings.TrimSpace(nameOrAddress))
	if err != nil {
		return Program{}, fmt.Errorf("unknown program %q: not a workspace program name or a valid address", nameOrAddress)
	}
	return Program{Name: id.String(), ID: id}, nil
}

// Discriminator is the 8-byte Anchor instruction selector for a method name.
func Discriminator(method string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + method))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// Initialize builds the program's argument-less, account-less initialize instruction.
func (p Program) Initialize() solanago.Instruction {
	d := Discriminator("initialize")
	return solanago.NewInstruction(p.ID, solanago.AccountMetaSlice{}, d[:])
}

// AccountReader fetches account info. *solana.Client satisfies it.
type AccountReader interface {
	AccountInfo(ctx context.Context, address solanago.PublicKey) (solana.AccountInfo, error)
}

// VerifyDeployed checks that the program account exists and is executable.
// Any failure is a *txn.SetupError; a missing or non-executable account
// wraps txn.ErrNotDeployed.
func VerifyDeployed(ctx context.Context, reader AccountReader, p Program) (solana.AccountInfo, error) {
	info, err := reader.AccountInfo(ctx, p.ID)
	if err != nil {
		return solana.AccountInfo{}, &txn.SetupError{Program: p.ID, Err: err}
	}
	if !info.Exists || !info.Executable {
		return info, &txn.SetupError{Program: p.ID, Err: txn.ErrNotDeployed}
	}
	return info, nil
}
