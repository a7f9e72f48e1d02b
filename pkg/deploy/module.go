// Package deploy runs declarative deployment modules: ordered contract
// futures whose constructor arguments are literals, module parameters or
// the addresses of earlier futures. Deployed addresses are journaled per
// chain so a re-run only sends what is missing.
package deploy

import (
	"errors"
	"fmt"
	"sort"
)

const (
	ModuleFlowYieldGate = "FlowYieldGateModule"
	ModuleRewardGauge   = "RewardGaugeModule"
	ModuleRewardSystem  = "RewardSystemModule"

	// DefaultRewardToken is the first contract address of a fresh dev chain.
	DefaultRewardToken = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
)

var ErrUnknownModule = errors.New("unknown module")

type argKind int

const (
	argLiteral argKind = iota
	argParam
	argFuture
)

// Arg is one constructor argument.
type Arg struct {
	kind   argKind
	value  any
	name   string
	def    string
	hasDef bool
}

// Literal is a fixed argument. Strings are converted to the constructor input type.
func Literal(v any) Arg {
	return Arg{kind: argLiteral, value: v}
}

// Param reads a module parameter, falling back to def.
func Param(name, def string) Arg {
	return Arg{kind: argParam, name: name, def: def, hasDef: true}
}

// RequiredParam reads a module parameter that has no default.
func RequiredParam(name string) Arg {
	return Arg{kind: argParam, name: name}
}

// FutureAddress is the address of an earlier future of the same module.
func FutureAddress(id string) Arg {
	return Arg{kind: argFuture, name: id}
}

func (a Arg) String() string {
	switch a.kind {
	case argParam:
		return "param:" + a.name
	case argFuture:
		return "future:" + a.name
	default:
		return fmt.Sprintf("%v", a.value)
	}
}

// Future is one contract deployment inside a module.
type Future struct {
	ID       string `json:"id" yaml:"id"`
	Contract string `json:"contract" yaml:"contract"`
	Args     []Arg  `json:"-" yaml:"-"`
}

// Module is an ordered set of futures.
type Module struct {
	ID      string   `json:"id" yaml:"id"`
	Futures []Future `json:"futures" yaml:"futures"`
}

// Validate checks future ids are unique and references point backwards.
func (m *Module) Validate() error {
	if m == nil || m.ID == "" {
		return errors.New("module id required")
	}
	if len(m.Futures) == 0 {
		return fmt.Errorf("module %s has no futures", m.ID)
	}
	seen := make(map[string]bool, len(m.Futures))
	for _, f := range m.Futures {
		if f.ID == "" || f.Contract == "" {
			return fmt.Errorf("module %s: future requires id and contract", m.ID)
		}
		if seen[f.ID] {
			return fmt.Errorf("module %s: duplicate future %s", m.ID, f.ID)
		}
		for _, a := range f.Args {
			if a.kind == argFuture && !seen[a.name] {
				return fmt.Errorf("module %s: future %s references %s before it is deployed", m.ID, f.ID, a.name)
			}
		}
		seen[f.ID] = true
	}
	return nil
}

var builtins = map[string]func() *Module{
	ModuleFlowYieldGate: func() *Module {
		return &Module{
			ID: ModuleFlowYieldGate,
			Futures: []Future{
				{ID: "flowYieldGate", Contract: "FlowYieldGate"},
			},
		}
	},
	ModuleRewardGauge: func() *Module {
		return &Module{
			ID: ModuleRewardGauge,
			Futures: []Future{
				{ID: "gauge", Contract: "RewardGauge", Args: []Arg{Param("rewardToken", DefaultRewardToken)}},
			},
		}
	},
	ModuleRewardSystem: func() *Module {
		return &Module{
			ID: ModuleRewardSystem,
			Futures: []Future{
				{ID: "token", Contract: "RewardToken"},
				{ID: "gauge", Contract: "RewardGauge", Args: []Arg{FutureAddress("token")}},
			},
		}
	},
}

// Builtin returns a fresh copy of the named built-in module.
func Builtin(name string) (*Module, error) {
	fn, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownModule, name, BuiltinNames())
	}
	return fn(), nil
}

// BuiltinNames lists the built-in modules in sorted order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for k := range builtins {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
