package data

import (
	"database/sql"
	"errors"
	"fmt"
)

const (
	upsertDeploymentSQL = `INSERT INTO deployment (chain_id, module, future, contract, address, tx_hash, constructor_args, deployed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (chain_id, module, future) DO UPDATE SET
			contract = excluded.contract,
			address = excluded.address,
			tx_hash = excluded.tx_hash,
			constructor_args = excluded.constructor_args,
			deployed_at = excluded.deployed_at
	`

	selectDeploymentSQL = `SELECT chain_id, module, future, contract, address, tx_hash, constructor_args, deployed_at
		FROM deployment
		WHERE chain_id = ? AND module = ? AND future = ?
	`

	selectDeploymentsSQL = `SELECT chain_id, module, future, contract, address, tx_hash, constructor_args, deployed_at
		FROM deployment
		WHERE chain_id = ? OR ? = 0
		ORDER BY chain_id, module, deployed_at, future
	`

	deleteModuleDeploymentsSQL = `DELETE FROM deployment WHERE chain_id = ? AND module = ?`
)

// Deployment is one journaled contract address.
type Deployment struct {
	ChainID  uint64 `json:"chain_id" yaml:"chainId"`
	Module   string `json:"module" yaml:"module"`
	Future   string `json:"future" yaml:"future"`
	Contract string `json:"contract" yaml:"contract"`
	Address  string `json:"address" yaml:"address"`
	TxHash   string `json:"tx_hash" yaml:"txHash"`

	// ConstructorArgs is the hex ABI encoding of the constructor arguments.
	ConstructorArgs string `json:"constructor_args,omitempty" yaml:"constructorArgs,omitempty"`
	DeployedAt      string `json:"deployed_at" yaml:"deployedAt"`
}

// Key returns module#future, the id Ignition uses in deployed_addresses.json.
func (d *Deployment) Key() string {
	return d.Module + "#" + d.Future
}

func SaveDeployment(db *sql.DB, d *Deployment) error {
	if db == nil {
		return errDBNotInitialized
	}
	if d == nil || d.ChainID == 0 || d.Module == "" || d.Future == "" || d.Address == "" {
		return errors.New("deployment requires chain id, module, future and address")
	}
	if d.DeployedAt == "" {
		d.DeployedAt = now()
	}

	if _, err := db.Exec(rebind(db, upsertDeploymentSQL),
		int64(d.ChainID), d.Module, d.Future, d.Contract, d.Address, d.TxHash, d.ConstructorArgs, d.DeployedAt); err != nil {
		return fmt.Errorf("error saving deployment %s: %w", d.Key(), err)
	}
	return nil
}

// GetDeployment returns the journaled future or ErrNotFound.
func GetDeployment(db *sql.DB, chainID uint64, module, future string) (*Deployment, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	var d Deployment
	var id int64
	err := db.QueryRow(rebind(db, selectDeploymentSQL), int64(chainID), module, future).
		Scan(&id, &d.Module, &d.Future, &d.Contract, &d.Address, &d.TxHash, &d.ConstructorArgs, &d.DeployedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("deployment %s#%s on chain %d: %w", module, future, chainID, ErrNotFound)
		}
		return nil, fmt.Errorf("error getting deployment %s#%s: %w", module, future, err)
	}
	d.ChainID = uint64(id)
	return &d, nil
}

// ListDeployments returns journaled deployments for a chain, or all chains when chainID is 0.
func ListDeployments(db *sql.DB, chainID uint64) ([]*Deployment, error) {
	if db == nil {
		return nil, errDBNotInitialized
	}

	rows, err := db.Query(rebind(db, selectDeploymentsSQL), int64(chainID), int64(chainID))
	if err != nil {
		return nil, fmt.Errorf("failed to query deployments: %w", err)
	}
	defer rows.Close()

	list := make([]*Deployment, 0)
	for rows.Next() {
		var d Deployment
		var id int64
		if err := rows.Scan(&id, &d.Module, &d.Future, &d.Contract, &d.Address, &d.TxHash, &d.ConstructorArgs, &d.DeployedAt); err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		d.ChainID = uint64(id)
		list = append(list, &d)
	}
	return list, rows.Err()
}

// ResetModule drops the journal of one module on one chain.
func ResetModule(db *sql.DB, chainID uint64, module string) (int64, error) {
	if db == nil {
		return 0, errDBNotInitialized
	}
	res, err := db.Exec(rebind(db, deleteModuleDeploymentsSQL), int64(chainID), module)
	if err != nil {
		return 0, fmt.Errorf("error resetting module %s: %w", module, err)
	}
	return res.RowsAffected()
}
