package harness

import (
	"fmt"

	"github.com/brojonat/txconfirm/service/config"
	"github.com/brojonat/txconfirm/service/program"
	"github.com/brojonat/txconfirm/service/solana"
	"github.com/brojonat/txconfirm/service/txn"
	"github.com/gagliardetto/solana-go/rpc"
)

// TrackerOptions derives poll interval, attempt budget and stop condition from cfg.
func TrackerOptions(cfg *config.Config) ([]txn.TrackerOption, error) {
	reached, err := txn.PredicateFor(cfg.ConfirmCommitment)
	if err != nil {
		return nil, err
	}
	return []txn.TrackerOption{
		txn.WithInterval(cfg.ConfirmPollInterval),
		txn.WithMaxAttempts(cfg.ConfirmMaxAttempts),
		txn.WithPredicate(reached),
	}, nil
}

// SubmitOptions derives sendTransaction options from cfg.
func SubmitOptions(cfg *config.Config) solana.SubmitOptions {
	opts := solana.DefaultSubmitOptions()
	opts.MaxRetries = cfg.SendMaxRetries
	opts.SkipPreflight = cfg.SkipPreflight
	opts.PreflightCommitment = rpc.CommitmentType(cfg.PreflightCommitment)
	return opts
}

// ClientOptions derives the blockhash commitment from cfg.
func ClientOptions(cfg *config.Config) []solana.ClientOption {
	return []solana.ClientOption{
		solana.WithBlockhashCommitment(rpc.CommitmentType(cfg.BlockhashCommitment)),
	}
}

// OptionsFromConfig builds Setup options for p from cfg. A nil payer is
// resolved from PAYER_KEYPAIR_PATH / PAYER_PRIVATE_KEY by the caller, or
// generated by Setup.
func OptionsFromConfig(cfg *config.Config, p program.Program) (Options, error) {
	trackerOpts, err := TrackerOptions(cfg)
	if err != nil {
		return Options{}, fmt.Errorf("failed to build tracker options: %w", err)
	}
	return Options{
		Program:         p,
		AirdropLamports: cfg.AirdropLamports,
		AirdropAttempts: cfg.AirdropAttempts,
		SettleDelay:     cfg.AirdropSettleDelay,
		TrackerOptions:  trackerOpts,
		SenderOptions:   []txn.SenderOption{txn.WithSubmitOptions(SubmitOptions(cfg))},
	}, nil
}
