// Package chain keeps the go-ethereum transport behind a small surface:
// dialing an RPC endpoint, loading the funding key, building transactors,
// and waiting for receipts. Contract packages depend on the Backend
// interface only so they can run against a simulated chain in tests.
package chain
