package cli

import (
	"context"
	"fmt"
	"math"

	"github.com/axintera/axctl/pkg/score"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v3"
)

func newScoreCmd() *cli.Command {
	recordFlags := func(extra ...cli.Flag) []cli.Flag {
		return append([]cli.Flag{
			addressFlag(true, "Subject address of the record"),
			scoreFlag(true),
			epochFlag(),
		}, extra...)
	}

	return &cli.Command{
		Name:            "score",
		Usage:           "Hash, sign and recover score records",
		HideHelpCommand: true,
		Commands: []*cli.Command{
			{
				Name:      "hash",
				Usage:     "Print the packed record and its keccak256 hash",
				UsageText: "axctl score hash --address 0xABC... --score 7500 --epoch 0",
				Flags:     recordFlags(),
				Action:    cmdScoreHash,
			},
			{
				Name:      "sign",
				Usage:     "Sign a record with the funding key",
				UsageText: "axctl score sign --address 0xABC... --score 7500 --epoch 0",
				Flags:     recordFlags(keyFlag()),
				Action:    cmdScoreSign,
			},
			{
				Name:      "recover",
				Usage:     "Recover the signer of a hash",
				UsageText: "axctl score recover --hash 0x... --sig 0x...",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagHash,
						Usage:    "Record hash (0x hex)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     flagSig,
						Usage:    "65 byte signature (0x hex)",
						Required: true,
					},
				},
				Action: cmdScoreRecover,
			},
		},
	}
}

type scoreResult struct {
	Record    score.Record   `json:"record" yaml:"record"`
	Packed    hexutil.Bytes  `json:"packed" yaml:"packed"`
	Hash      common.Hash    `json:"hash" yaml:"hash"`
	Signature hexutil.Bytes  `json:"signature,omitempty" yaml:"signature,omitempty"`
	Signer    common.Address `json:"signer,omitempty" yaml:"signer,omitempty"`
}

type recoverResult struct {
	Hash   common.Hash    `json:"hash" yaml:"hash"`
	Signer common.Address `json:"signer" yaml:"signer"`
}

// recordFromFlags builds and validates the record named by --address, --score and --epoch.
func recordFromFlags(cmd *cli.Command) (score.Record, error) {
	raw, err := requireString(cmd, flagAddress)
	if err != nil {
		return score.Record{}, err
	}
	if !common.IsHexAddress(raw) {
		return score.Record{}, fmt.Errorf("invalid address: %s", raw)
	}

	bps := cmd.Uint64(flagScore)
	if bps > math.MaxUint16 {
		return score.Record{}, fmt.Errorf("%w: %d bps", score.ErrInvalidScore, bps)
	}

	r := score.Record{
		Subject:  common.HexToAddress(raw),
		ScoreBps: uint16(bps),
		Epoch:    cmd.Uint64(flagEpoch),
	}
	return r, r.Validate()
}

func cmdScoreHash(_ context.Context, cmd *cli.Command) error {
	r, err := recordFromFlags(cmd)
	if err != nil {
		return err
	}
	return encode(cmd, &scoreResult{Record: r, Packed: r.Pack(), Hash: r.Hash()})
}

func cmdScoreSign(_ context.Context, cmd *cli.Command) error {
	r, err := recordFromFlags(cmd)
	if err != nil {
		return err
	}
	key, _, err := resolveKey(cmd)
	if err != nil {
		return err
	}

	h, sig, err := r.Sign(key)
	if err != nil {
		return fmt.Errorf("signing record: %w", err)
	}
	return encode(cmd, &scoreResult{
		Record:    r,
		Packed:    r.Pack(),
		Hash:      h,
		Signature: sig,
		Signer:    crypto.PubkeyToAddress(key.PublicKey),
	})
}

func cmdScoreRecover(_ context.Context, cmd *cli.Command) error {
	h, err := hexutil.Decode(cmd.String(flagHash))
	if err != nil || len(h) != common.HashLength {
		return fmt.Errorf("invalid hash: %s", cmd.String(flagHash))
	}
	sig, err := hexutil.Decode(cmd.String(flagSig))
	if err != nil {
		return fmt.Errorf("%w: %v", score.ErrInvalidSignature, err)
	}

	addr, err := score.Recover(common.BytesToHash(h), sig)
	if err != nil {
		return err
	}
	return encode(cmd, &recoverResult{Hash: common.BytesToHash(h), Signer: addr})
}
