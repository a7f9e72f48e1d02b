package gauge

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedABI(t *testing.T) {
	require.Contains(t, gaugeABI.Methods, methodSubmitScore)
	require.Contains(t, gaugeABI.Methods, methodLastScore)
	assert.Equal(t, "submitScore(bytes32,uint16,bytes)", gaugeABI.Methods[methodSubmitScore].Sig)
	assert.Equal(t, "eb60db67", hex.EncodeToString(gaugeABI.Methods[methodLastScore].ID))

	require.Contains(t, tokenABI.Methods, methodBalanceOf)
	assert.Equal(t, "70a08231", hex.EncodeToString(tokenABI.Methods[methodBalanceOf].ID))
}
