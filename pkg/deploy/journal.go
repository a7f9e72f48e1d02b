package deploy

import (
	"database/sql"
	"errors"

	"github.com/axintera/axctl/pkg/data"
)

// Journal remembers what was deployed where.
type Journal interface {
	// Lookup returns the journaled future or an error matching data.ErrNotFound.
	Lookup(chainID uint64, module, future string) (*data.Deployment, error)
	Record(d *data.Deployment) error
	Reset(chainID uint64, module string) (int64, error)
}

// DBJournal keeps the journal in the deployment table.
type DBJournal struct {
	db *sql.DB
}

func NewDBJournal(db *sql.DB) (*DBJournal, error) {
	if db == nil {
		return nil, errors.New("database required")
	}
	return &DBJournal{db: db}, nil
}

func (j *DBJournal) Lookup(chainID uint64, module, future string) (*data.Deployment, error) {
	return data.GetDeployment(j.db, chainID, module, future)
}

func (j *DBJournal) Record(d *data.Deployment) error {
	return data.SaveDeployment(j.db, d)
}

func (j *DBJournal) Reset(chainID uint64, module string) (int64, error) {
	return data.ResetModule(j.db, chainID, module)
}
