package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/axintera/axctl/pkg/artifact"
	"github.com/axintera/axctl/pkg/chain"
	"github.com/axintera/axctl/pkg/data"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrMissingParameter = errors.New("missing module parameter")
	ErrStaleJournal     = errors.New("journaled deployment not found on chain")
)

// Deployed is one future of a deployment run.
type Deployed struct {
	Future          string         `json:"future" yaml:"future"`
	Contract        string         `json:"contract" yaml:"contract"`
	Address         common.Address `json:"address" yaml:"address"`
	Tx              common.Hash    `json:"tx" yaml:"tx"`
	ConstructorArgs hexutil.Bytes  `json:"constructor_args,omitempty" yaml:"constructorArgs,omitempty"`
	Reused          bool           `json:"reused" yaml:"reused"`
}

// Result is the outcome of deploying one module on one chain.
type Result struct {
	Module    string               `json:"module" yaml:"module"`
	ChainID   uint64               `json:"chain_id" yaml:"chainId"`
	Contracts map[string]*Deployed `json:"contracts" yaml:"contracts"`
	Order     []string             `json:"order" yaml:"order"`
}

// Address returns the address of a future.
func (r *Result) Address(future string) (common.Address, bool) {
	d, ok := r.Contracts[future]
	if !ok {
		return common.Address{}, false
	}
	return d.Address, true
}

// Addresses returns module#future to address, as in deployed_addresses.json.
func (r *Result) Addresses() map[string]string {
	out := make(map[string]string, len(r.Contracts))
	for id, d := range r.Contracts {
		out[r.Module+"#"+id] = d.Address.Hex()
	}
	return out
}

// Options of one deployment run.
type Options struct {
	Params Parameters
	// Reset drops the module journal before deploying.
	Reset bool
}

// Deployer sends module futures from one signer.
type Deployer struct {
	backend chain.Backend
	signer  *chain.Signer
	store   *artifact.Store
	journal Journal

	// PollInterval is the receipt poll period.
	PollInterval time.Duration
}

// NewDeployer creates a deployer. A nil journal deploys every future on every run.
func NewDeployer(backend chain.Backend, signer *chain.Signer, store *artifact.Store, journal Journal) (*Deployer, error) {
	if backend == nil {
		return nil, errors.New("backend required")
	}
	if signer == nil {
		return nil, chain.ErrNoKey
	}
	if store == nil {
		return nil, errors.New("artifact store required")
	}
	return &Deployer{
		backend:      backend,
		signer:       signer,
		store:        store,
		journal:      journal,
		PollInterval: chain.PollIntervalDefault,
	}, nil
}

// Deploy runs the futures of m in order. Futures already journaled on this
// chain are reused after checking their code still exists.
func (d *Deployer) Deploy(ctx context.Context, m *Module, opts Options) (*Result, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	chainID := d.signer.ChainID.Uint64()
	log := slog.With("module", m.ID, "chain_id", chainID)

	if opts.Reset && d.journal != nil {
		n, err := d.journal.Reset(chainID, m.ID)
		if err != nil {
			return nil, err
		}
		log.Info("journal reset", "dropped", n)
	}

	res := &Result{
		Module:    m.ID,
		ChainID:   chainID,
		Contracts: make(map[string]*Deployed, len(m.Futures)),
		Order:     make([]string, 0, len(m.Futures)),
	}

	for _, f := range m.Futures {
		dep, err := d.reuse(ctx, chainID, m.ID, f)
		if err != nil {
			return nil, err
		}
		if dep == nil {
			if dep, err = d.deployFuture(ctx, m.ID, f, opts.Params, res); err != nil {
				return nil, fmt.Errorf("%s#%s: %w", m.ID, f.ID, err)
			}
		}
		res.Contracts[f.ID] = dep
		res.Order = append(res.Order, f.ID)
		log.Info("future ready",
			"future", f.ID,
			"contract", f.Contract,
			"address", dep.Address.Hex(),
			"reused", dep.Reused)
	}
	return res, nil
}

func (d *Deployer) reuse(ctx context.Context, chainID uint64, module string, f Future) (*Deployed, error) {
	if d.journal == nil {
		return nil, nil
	}
	j, err := d.journal.Lookup(chainID, module, f.ID)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if j.Contract != "" && j.Contract != f.Contract {
		return nil, fmt.Errorf("%s#%s journaled as %s, module now deploys %s; rerun with reset",
			module, f.ID, j.Contract, f.Contract)
	}

	addr := common.HexToAddress(j.Address)
	code, err := d.backend.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("error reading code at %s: %w", addr.Hex(), err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s#%s at %s, rerun with reset", ErrStaleJournal, module, f.ID, addr.Hex())
	}

	dep := &Deployed{
		Future:   f.ID,
		Contract: f.Contract,
		Address:  addr,
		Tx:       common.HexToHash(j.TxHash),
		Reused:   true,
	}
	if j.ConstructorArgs != "" {
		if dep.ConstructorArgs, err = hexutil.Decode("0x" + j.ConstructorArgs); err != nil {
			return nil, fmt.Errorf("invalid journaled constructor args of %s#%s: %w", module, f.ID, err)
		}
	}
	return dep, nil
}

func (d *Deployer) deployFuture(ctx context.Context, module string, f Future, params Parameters, res *Result) (*Deployed, error) {
	art, err := d.store.Load(f.Contract)
	if err != nil {
		return nil, err
	}
	parsed, err := art.ABI()
	if err != nil {
		return nil, err
	}
	code, err := art.Bytecode()
	if err != nil {
		return nil, err
	}

	args, err := resolveArgs(parsed, module, f, params, res)
	if err != nil {
		return nil, err
	}
	packed, err := parsed.Pack("", args...)
	if err != nil {
		return nil, fmt.Errorf("error encoding constructor args of %s: %w", f.Contract, err)
	}

	opts, err := d.signer.TransactOpts(ctx)
	if err != nil {
		return nil, err
	}
	addr, tx, _, err := bind.DeployContract(opts, parsed, code, d.backend, args...)
	if err != nil {
		return nil, fmt.Errorf("error deploying %s: %w", f.Contract, err)
	}
	slog.Debug("deployment sent", "contract", f.Contract, "tx", tx.Hash().Hex(), "address", addr.Hex())

	if _, err := chain.WaitMined(ctx, d.backend, tx, d.PollInterval); err != nil {
		return nil, err
	}

	dep := &Deployed{
		Future:          f.ID,
		Contract:        f.Contract,
		Address:         addr,
		Tx:              tx.Hash(),
		ConstructorArgs: packed,
	}

	if d.journal != nil {
		err := d.journal.Record(&data.Deployment{
			ChainID:         d.signer.ChainID.Uint64(),
			Module:          module,
			Future:          f.ID,
			Contract:        f.Contract,
			Address:         addr.Hex(),
			TxHash:          tx.Hash().Hex(),
			ConstructorArgs: common.Bytes2Hex(packed),
		})
		if err != nil {
			return nil, err
		}
	}
	return dep, nil
}

func resolveArgs(parsed abi.ABI, module string, f Future, params Parameters, res *Result) ([]any, error) {
	inputs := parsed.Constructor.Inputs
	if len(inputs) != len(f.Args) {
		return nil, fmt.Errorf("%s constructor takes %d args, module gives %d", f.Contract, len(inputs), len(f.Args))
	}

	args := make([]any, 0, len(f.Args))
	for i, a := range f.Args {
		var v any
		switch a.kind {
		case argLiteral:
			v = a.value
		case argParam:
			s, ok := params.Get(module, a.name)
			if !ok {
				if !a.hasDef {
					return nil, fmt.Errorf("%w: %s.%s", ErrMissingParameter, module, a.name)
				}
				s = a.def
			}
			v = s
		case argFuture:
			addr, ok := res.Address(a.name)
			if !ok {
				return nil, fmt.Errorf("future %s not deployed yet", a.name)
			}
			v = addr
		}

		converted, err := convertArg(inputs[i].Type, v)
		if err != nil {
			return nil, fmt.Errorf("arg %d (%s) of %s: %w", i, inputs[i].Name, f.Contract, err)
		}
		args = append(args, converted)
	}
	return args, nil
}
