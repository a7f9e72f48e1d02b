package data

import (
	"database/sql"
	"fmt"
)

var (
	stateQueries = map[string]string{
		"providers":   "SELECT COUNT(*) FROM providerstat",
		"deployments": "SELECT COUNT(*) FROM deployment",
		"submissions": "SELECT COUNT(*) FROM submission",
		"schema":      "SELECT COALESCE(MAX(version), 0) FROM schema_version",
	}
)

// GetDataState returns row counts of the main tables and the schema version.
func GetDataState(db *sql.DB) (map[string]int64, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	state := make(map[string]int64, len(stateQueries))
	for k, q := range stateQueries {
		var count int64
		if err := db.QueryRow(q).Scan(&count); err != nil {
			return nil, fmt.Errorf("error getting %s count: %w", k, err)
		}
		state[k] = count
	}

	return state, nil
}
