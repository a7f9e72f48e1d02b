package data

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

const (
	// WilsonZDefault is the z value of a 95% confidence interval.
	WilsonZDefault = 1.96

	scorePrecision = 10000

	upsertStatSQL = `INSERT INTO providerstat (provider_id, served, success, score, updated_at)
		VALUES (?, 1, ?, 0, ?)
		ON CONFLICT (provider_id) DO UPDATE SET
			served = providerstat.served + 1,
			success = providerstat.success + ?,
			updated_at = ?
	`

	selectStatSQL = `SELECT provider_id, served, success, score, updated_at
		FROM providerstat
		WHERE provider_id = ?
	`

	selectStatsSQL = `SELECT provider_id, served, success, score, updated_at
		FROM providerstat
		ORDER BY score DESC, provider_id ASC
	`

	selectStatCountsSQL = `SELECT provider_id, served, success FROM providerstat`

	updateScoreSQL = `UPDATE providerstat SET score = ?, updated_at = ? WHERE provider_id = ?`
)

// ProviderStat is the served/success telemetry of one provider.
type ProviderStat struct {
	ProviderID string  `json:"provider_id" yaml:"providerId"`
	Served     int64   `json:"served" yaml:"served"`
	Success    int64   `json:"success" yaml:"success"`
	Score      float64 `json:"score" yaml:"score"`
	UpdatedAt  string  `json:"updated_at,omitempty" yaml:"updatedAt,omitempty"`
}

// NormalizeProviderID lowercases and trims a provider id (usually a wallet address).
func NormalizeProviderID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// UpdateStats adds one to served, and one to success if ok. A provider seen
// for the first time is inserted with score 0 until the next recalc.
func UpdateStats(db *sql.DB, providerID string, ok bool) (*ProviderStat, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	id := NormalizeProviderID(providerID)
	if id == "" {
		return nil, errors.New("provider id required")
	}

	inc := 0
	if ok {
		inc = 1
	}
	ts := now()

	if _, err := db.Exec(rebind(db, upsertStatSQL), id, inc, ts, inc, ts); err != nil {
		return nil, fmt.Errorf("error updating stats for %s: %w", id, err)
	}

	return GetStat(db, id)
}

// GetStat returns the stat of one provider or ErrNotFound.
func GetStat(db *sql.DB, providerID string) (*ProviderStat, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	id := NormalizeProviderID(providerID)
	var s ProviderStat
	err := db.QueryRow(rebind(db, selectStatSQL), id).
		Scan(&s.ProviderID, &s.Served, &s.Success, &s.Score, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("provider %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("error getting stats for %s: %w", id, err)
	}
	return &s, nil
}

// ListStats returns all providers, best score first.
func ListStats(db *sql.DB) ([]*ProviderStat, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(selectStatsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider stats: %w", err)
	}
	defer rows.Close()

	list := make([]*ProviderStat, 0)
	for rows.Next() {
		var s ProviderStat
		if err := rows.Scan(&s.ProviderID, &s.Served, &s.Success, &s.Score, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan provider stat: %w", err)
		}
		list = append(list, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate provider stats: %w", err)
	}
	return list, nil
}

// Wilson returns the lower bound of the Wilson score interval for
// success out of served, rounded to four decimals. Zero when served is 0.
func Wilson(success, served int64, z float64) float64 {
	if served <= 0 {
		return 0
	}
	if success > served {
		success = served
	}
	if success < 0 {
		success = 0
	}

	n := float64(served)
	phat := float64(success) / n
	z2 := z * z
	denom := 1 + z2/n
	centre := phat + z2/(2*n)
	adj := z * math.Sqrt((phat*(1-phat)+z2/(4*n))/n)

	lb := (centre - adj) / denom
	if lb < 0 {
		lb = 0
	}
	return math.Round(lb*scorePrecision) / scorePrecision
}

type statCounts struct {
	id      string
	served  int64
	success int64
}

// RecalcScores recomputes every provider score in one transaction and
// returns the number of providers updated.
func RecalcScores(db *sql.DB, z float64) (int, error) {
	if db == nil {
		return 0, errDBNotInitialized
	}
	if z <= 0 {
		z = WilsonZDefault
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("error starting recalc tx: %w", err)
	}

	counts, err := readCounts(tx)
	if err != nil {
		rollbackTransaction(tx)
		return 0, err
	}

	stmt, err := tx.Prepare(rebind(db, updateScoreSQL))
	if err != nil {
		rollbackTransaction(tx)
		return 0, fmt.Errorf("error preparing score update: %w", err)
	}
	defer stmt.Close()

	ts := now()
	for _, c := range counts {
		if _, err := stmt.Exec(Wilson(c.success, c.served, z), ts, c.id); err != nil {
			rollbackTransaction(tx)
			return 0, fmt.Errorf("error updating score for %s: %w", c.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("error committing recalc tx: %w", err)
	}

	slog.Debug("provider scores recalculated", "providers", len(counts))
	return len(counts), nil
}

func readCounts(tx *sql.Tx) ([]statCounts, error) {
	rows, err := tx.Query(selectStatCountsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query provider counts: %w", err)
	}
	defer rows.Close()

	counts := make([]statCounts, 0)
	for rows.Next() {
		var c statCounts
		if err := rows.Scan(&c.id, &c.served, &c.success); err != nil {
			return nil, fmt.Errorf("failed to scan provider counts: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
