package data

import (
	"database/sql"
	"errors"
	"fmt"
)

const (
	insertSubmissionSQL = `INSERT INTO submission (chain_id, provider, epoch, score_bps, hash, tx_hash, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	selectSubmissionCountSQL = `SELECT COUNT(*) FROM submission
		WHERE chain_id = ? AND provider = ? AND epoch = ?
	`

	selectSubmissionsSQL = `SELECT chain_id, provider, epoch, score_bps, hash, tx_hash, submitted_at
		FROM submission
		ORDER BY submitted_at DESC, epoch DESC
	`

	selectProviderSubmissionsSQL = `SELECT chain_id, provider, epoch, score_bps, hash, tx_hash, submitted_at
		FROM submission
		WHERE provider = ?
		ORDER BY submitted_at DESC, epoch DESC
	`
)

// ErrAlreadySubmitted is returned when an epoch was already published for a provider.
var ErrAlreadySubmitted = errors.New("score already submitted for epoch")

// Submission is one score published to a gauge.
type Submission struct {
	ChainID     uint64 `json:"chain_id" yaml:"chainId"`
	Provider    string `json:"provider" yaml:"provider"`
	Epoch       uint64 `json:"epoch" yaml:"epoch"`
	ScoreBps    uint16 `json:"score_bps" yaml:"scoreBps"`
	Hash        string `json:"hash" yaml:"hash"`
	TxHash      string `json:"tx_hash" yaml:"txHash"`
	SubmittedAt string `json:"submitted_at" yaml:"submittedAt"`
}

func SaveSubmission(db *sql.DB, s *Submission) error {
	if db == nil {
		return errDBNotInitialized
	}
	if s == nil || s.ChainID == 0 || s.Provider == "" {
		return errors.New("submission requires chain id and provider")
	}

	s.Provider = NormalizeProviderID(s.Provider)
	submitted, err := HasSubmission(db, s.ChainID, s.Provider, s.Epoch)
	if err != nil {
		return err
	}
	if submitted {
		return fmt.Errorf("%w: %s epoch %d", ErrAlreadySubmitted, s.Provider, s.Epoch)
	}

	if s.SubmittedAt == "" {
		s.SubmittedAt = now()
	}
	if _, err := db.Exec(rebind(db, insertSubmissionSQL),
		int64(s.ChainID), s.Provider, int64(s.Epoch), int(s.ScoreBps), s.Hash, s.TxHash, s.SubmittedAt); err != nil {
		return fmt.Errorf("error saving submission for %s epoch %d: %w", s.Provider, s.Epoch, err)
	}
	return nil
}

// HasSubmission reports whether provider already published epoch on chainID.
func HasSubmission(db *sql.DB, chainID uint64, provider string, epoch uint64) (bool, error) {
	if db == nil {
		return false, errDBNotInitialized
	}

	var count int64
	err := db.QueryRow(rebind(db, selectSubmissionCountSQL),
		int64(chainID), NormalizeProviderID(provider), int64(epoch)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("error checking submission: %w", err)
	}
	return count > 0, nil
}

// ListSubmissions returns the submissions of one provider, or all when provider is empty.
func ListSubmissions(db *sql.DB, provider string) ([]*Submission, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	q, args := selectSubmissionsSQL, []any{}
	if p := NormalizeProviderID(provider); p != "" {
		q, args = selectProviderSubmissionsSQL, []any{p}
	}
	rows, err := db.Query(rebind(db, q), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	list := make([]*Submission, 0)
	for rows.Next() {
		var s Submission
		var chainID, epoch int64
		var bps int
		if err := rows.Scan(&chainID, &s.Provider, &epoch, &bps, &s.Hash, &s.TxHash, &s.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		s.ChainID = uint64(chainID)
		s.Epoch = uint64(epoch)
		s.ScoreBps = uint16(bps)
		list = append(list, &s)
	}
	return list, rows.Err()
}
