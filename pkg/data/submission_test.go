package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveSubmission(t *testing.T) {
	db := setupTestDB(t)

	s := &Submission{
		ChainID:  545,
		Provider: testProvider,
		Epoch:    0,
		ScoreBps: 7500,
		Hash:     "0xbc76",
		TxHash:   "0x01",
	}
	require.NoError(t, SaveSubmission(db, s))

	ok, err := HasSubmission(db, 545, testProvider, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = HasSubmission(db, 545, testProvider, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	err = SaveSubmission(db, &Submission{ChainID: 545, Provider: testProvider, Epoch: 0, ScoreBps: 10})
	assert.ErrorIs(t, err, ErrAlreadySubmitted)

	// same epoch on another chain is a separate gauge
	require.NoError(t, SaveSubmission(db, &Submission{ChainID: 747, Provider: testProvider, Epoch: 0}))
}

func TestListSubmissions(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, SaveSubmission(db, &Submission{ChainID: 545, Provider: "0xa", Epoch: 1, ScoreBps: 100, SubmittedAt: "2025-01-01T00:00:00Z"}))
	require.NoError(t, SaveSubmission(db, &Submission{ChainID: 545, Provider: "0xa", Epoch: 2, ScoreBps: 200, SubmittedAt: "2025-01-02T00:00:00Z"}))
	require.NoError(t, SaveSubmission(db, &Submission{ChainID: 545, Provider: "0xb", Epoch: 2, ScoreBps: 300}))

	list, err := ListSubmissions(db, "0xA")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint64(2), list[0].Epoch)
	assert.Equal(t, uint16(200), list[0].ScoreBps)

	all, err := ListSubmissions(db, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSaveSubmission_Invalid(t *testing.T) {
	assert.Error(t, SaveSubmission(nil, &Submission{}))

	db := setupTestDB(t)
	assert.Error(t, SaveSubmission(db, nil))
	assert.Error(t, SaveSubmission(db, &Submission{Provider: "0xa"}))

	_, err := HasSubmission(nil, 1, "0xa", 0)
	assert.Error(t, err)
}
