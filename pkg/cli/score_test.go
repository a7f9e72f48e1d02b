package cli

import (
	"strconv"
	"testing"

	"github.com/axintera/axctl/pkg/score"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSubject = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

func TestScoreHash(t *testing.T) {
	e := newTestEnv(t)

	var res scoreResult
	e.runJSON(t, &res, "score", "hash", "--address", testSubject, "--score", "7500", "--epoch", "3")

	want := score.Record{Subject: common.HexToAddress(testSubject), ScoreBps: 7500, Epoch: 3}
	assert.Equal(t, want, res.Record)
	assert.Equal(t, want.Hash(), res.Hash)
	assert.Len(t, res.Packed, score.PackedLen)
	assert.Empty(t, res.Signature)
}

func TestScoreSignAndRecover(t *testing.T) {
	e := newTestEnv(t)
	raw, addr := testKey(t)

	var signed scoreResult
	e.runJSON(t, &signed, "score", "sign", "--address", addr, "--score", "7500", "--key", raw)
	assert.Equal(t, addr, signed.Signer.Hex())
	require.Len(t, signed.Signature, score.SignatureLen)
	assert.NoError(t, score.Verify(signed.Record, signed.Signature))

	var rec recoverResult
	e.runJSON(t, &rec, "score", "recover", "--hash", signed.Hash.Hex(), "--sig", signed.Signature.String())
	assert.Equal(t, addr, rec.Signer.Hex())
}

func TestScore_Invalid(t *testing.T) {
	e := newTestEnv(t)

	tests := []struct {
		name string
		args []string
		err  error
	}{
		{"over max", []string{"score", "hash", "--address", testSubject, "--score", strconv.Itoa(score.MaxBps + 1)}, score.ErrInvalidScore},
		{"over uint16", []string{"score", "hash", "--address", testSubject, "--score", "70000"}, score.ErrInvalidScore},
		{"bad address", []string{"score", "hash", "--address", "0x123", "--score", "1"}, nil},
		{"bad sig", []string{"score", "recover", "--hash", common.Hash{1}.Hex(), "--sig", "0x00"}, score.ErrInvalidSignature},
		{"bad hash", []string{"score", "recover", "--hash", "0x01", "--sig", "0x00"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.run(t, tt.args...)
			require.Error(t, err)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}
