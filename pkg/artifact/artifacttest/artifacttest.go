// Package artifacttest writes Hardhat style artifacts for tests.
package artifacttest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
)

const (
	SolcLongVersion = "0.8.28+commit.7893614a"
	BuildInfoID     = "e3b0c44298fc1c14"

	// SolcInput is the build-info input written next to every test artifact.
	SolcInput = `{"language":"Solidity","sources":{},"settings":{"optimizer":{"enabled":false}}}`
)

// Write stores an artifact, its debug file and a shared build-info under dir
// the way `hardhat compile` lays them out.
func Write(t testing.TB, dir, name, abiJSON string, code []byte) string {
	t.Helper()

	contractDir := filepath.Join(dir, "contracts", name+".sol")
	require.NoError(t, os.MkdirAll(contractDir, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "build-info"), 0o755))

	art := map[string]any{
		"_format":      "hh-sol-artifact-1",
		"contractName": name,
		"sourceName":   "contracts/" + name + ".sol",
		"abi":          json.RawMessage(abiJSON),
		"bytecode":     hexutil.Encode(code),
	}
	writeJSON(t, filepath.Join(contractDir, name+".json"), art)

	writeJSON(t, filepath.Join(contractDir, name+".dbg.json"), map[string]string{
		"_format":   "hh-sol-dbg-1",
		"buildInfo": "../../build-info/" + BuildInfoID + ".json",
	})

	writeJSON(t, filepath.Join(dir, "build-info", BuildInfoID+".json"), map[string]any{
		"_format":         "hh-sol-build-info-1",
		"id":              BuildInfoID,
		"solcVersion":     "0.8.28",
		"solcLongVersion": SolcLongVersion,
		"input":           json.RawMessage(SolcInput),
	})

	return filepath.Join(contractDir, name+".json")
}

func writeJSON(t testing.TB, path string, v any) {
	t.Helper()
	b, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
}
