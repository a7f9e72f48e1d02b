// Package artifact reads Hardhat compile output: contract artifacts with
// ABI and creation bytecode, and the build-info solc input used for
// explorer verification.
package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	contractsDir = "contracts"
	buildInfoDir = "build-info"
	dbgSuffix    = ".dbg.json"
	jsonSuffix   = ".json"

	// placeholder prefix solc leaves for unlinked libraries
	linkPlaceholder = "__"
)

var ErrNotFound = errors.New("artifact not found")

// Artifact is a compiled contract.
type Artifact struct {
	ContractName string          `json:"contractName"`
	SourceName   string          `json:"sourceName"`
	RawABI       json.RawMessage `json:"abi"`
	RawBytecode  string          `json:"bytecode"`

	path string
}

// FullyQualifiedName returns source:Name as explorers expect.
func (a *Artifact) FullyQualifiedName() string {
	return a.SourceName + ":" + a.ContractName
}

// Path returns the file the artifact was read from.
func (a *Artifact) Path() string {
	return a.path
}

// ABI parses the artifact ABI.
func (a *Artifact) ABI() (abi.ABI, error) {
	if len(a.RawABI) == 0 {
		return abi.ABI{}, fmt.Errorf("artifact %s has no abi", a.ContractName)
	}
	parsed, err := abi.JSON(bytes.NewReader(a.RawABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("error parsing abi of %s: %w", a.ContractName, err)
	}
	return parsed, nil
}

// Bytecode decodes the creation bytecode. Abstract contracts, interfaces
// and contracts with unlinked libraries cannot be deployed.
func (a *Artifact) Bytecode() ([]byte, error) {
	code := strings.TrimSpace(a.RawBytecode)
	if code == "" || code == "0x" {
		return nil, fmt.Errorf("artifact %s has no bytecode (abstract contract or interface)", a.ContractName)
	}
	if strings.Contains(code, linkPlaceholder) {
		return nil, fmt.Errorf("artifact %s has unlinked library references", a.ContractName)
	}
	b, err := hexutil.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("error decoding bytecode of %s: %w", a.ContractName, err)
	}
	return b, nil
}

// BuildInfo is the solc invocation that produced an artifact.
type BuildInfo struct {
	ID              string          `json:"id"`
	SolcVersion     string          `json:"solcVersion"`
	SolcLongVersion string          `json:"solcLongVersion"`
	Input           json.RawMessage `json:"input"`
}

// CompilerVersion returns the version in explorer form, e.g. v0.8.28+commit.7893614a.
func (b *BuildInfo) CompilerVersion() string {
	v := b.SolcLongVersion
	if v == "" {
		v = b.SolcVersion
	}
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

type debugFile struct {
	BuildInfo string `json:"buildInfo"`
}

// Store reads artifacts from a Hardhat artifacts directory.
type Store struct {
	Dir string
}

func NewStore(dir string) *Store {
	return &Store{Dir: dir}
}

// Load finds the artifact for the named contract. The conventional
// contracts/<Name>.sol/<Name>.json location is tried before a search of
// the whole directory.
func (s *Store) Load(name string) (*Artifact, error) {
	if name == "" {
		return nil, errors.New("contract name required")
	}

	path := filepath.Join(s.Dir, contractsDir, name+".sol", name+jsonSuffix)
	if _, err := os.Stat(path); err != nil {
		found, ferr := s.find(name)
		if ferr != nil {
			return nil, ferr
		}
		path = found
	}

	return readArtifact(path)
}

func (s *Store) find(name string) (string, error) {
	var found string
	err := filepath.WalkDir(s.Dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == buildInfoDir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == name+jsonSuffix {
			found = p
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("error searching %s: %w", s.Dir, err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s in %s", ErrNotFound, name, s.Dir)
	}
	return found, nil
}

func readArtifact(path string) (*Artifact, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading artifact %s: %w", path, err)
	}
	var a Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("error decoding artifact %s: %w", path, err)
	}
	if a.ContractName == "" {
		return nil, fmt.Errorf("file %s is not a contract artifact", path)
	}
	a.path = path
	return &a, nil
}

// BuildInfo resolves the build-info of an artifact through its debug file.
func (s *Store) BuildInfo(a *Artifact) (*BuildInfo, error) {
	if a == nil || a.path == "" {
		return nil, errors.New("loaded artifact required")
	}

	dbgPath := strings.TrimSuffix(a.path, jsonSuffix) + dbgSuffix
	b, err := os.ReadFile(dbgPath)
	if err != nil {
		return nil, fmt.Errorf("%w: debug file %s: %v", ErrNotFound, dbgPath, err)
	}
	var dbg debugFile
	if err := json.Unmarshal(b, &dbg); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", dbgPath, err)
	}
	if dbg.BuildInfo == "" {
		return nil, fmt.Errorf("%w: %s names no build info", ErrNotFound, dbgPath)
	}

	infoPath := filepath.Join(filepath.Dir(dbgPath), filepath.FromSlash(dbg.BuildInfo))
	b, err = os.ReadFile(infoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: build info %s: %v", ErrNotFound, infoPath, err)
	}
	var info BuildInfo
	if err := json.Unmarshal(b, &info); err != nil {
		return nil, fmt.Errorf("error decoding build info %s: %w", infoPath, err)
	}
	if len(info.Input) == 0 {
		return nil, fmt.Errorf("build info %s has no solc input", infoPath)
	}
	return &info, nil
}
