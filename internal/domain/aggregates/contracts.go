package aggregates

import "strings"

// WriteTxOwnership says who opens and commits the transaction around a write.
type WriteTxOwnership string

const (
	WriteTxOwnedByAggregate WriteTxOwnership = "aggregate_owned"
)

// ReadPolicy limits what an aggregate may expose for reading.
type ReadPolicy string

const (
	// ReadPolicyInvariantScoped permits only the reads a write flow needs to check its rules.
	ReadPolicyInvariantScoped ReadPolicy = "invariant_scoped_reads"
)

// Contract describes an aggregate's write boundary. OwnedTables lists the tables
// only that aggregate may write.
type Contract struct {
	Name             string
	WriteTxOwnership WriteTxOwnership
	ReadPolicy       ReadPolicy
	OwnedTables      []string
	Notes            string
}

type Aggregate interface {
	Contract() Contract
}

func (c Contract) RequiresAggregateOwnedTx() bool {
	return c.WriteTxOwnership == WriteTxOwnedByAggregate
}

// Owns reports whether table is written exclusively through this aggregate.
func (c Contract) Owns(table string) bool {
	table = strings.TrimSpace(table)
	for _, t := range c.OwnedTables {
		if strings.EqualFold(t, table) {
			return true
		}
	}
	return false
}
