package norm

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Session executes parameterized Cypher against a graph database. It is the
// execution collaborator for relationship managers: this layer builds
// queries and inflates results, the session owns transport, retries and
// transaction scope. Session errors propagate to callers unmodified.
//
// [DriverSession] implements Session over the official Neo4j driver; tests
// typically substitute a fake.
type Session interface {
	Run(ctx context.Context, cypher string, params map[string]any) (*Result, error)
}

// Result holds the rows returned by one query.
type Result struct {
	// Keys are the record keys, in RETURN order.
	Keys []string

	// Rows are the record values, one slice per record.
	Rows [][]any
}

// Empty reports whether the query returned no rows.
func (r *Result) Empty() bool {
	return r == nil || len(r.Rows) == 0
}

// First returns the first row, if any.
func (r *Result) First() ([]any, bool) {
	if r.Empty() {
		return nil, false
	}
	return r.Rows[0], true
}

// relationshipValue extracts a driver relationship from a result cell.
func relationshipValue(v any) (dbtype.Relationship, bool) {
	switch rel := v.(type) {
	case dbtype.Relationship:
		return rel, true
	case *dbtype.Relationship:
		if rel != nil {
			return *rel, true
		}
	}
	return dbtype.Relationship{}, false
}

// nodeValue extracts a driver node from a result cell.
func nodeValue(v any) (dbtype.Node, bool) {
	switch n := v.(type) {
	case dbtype.Node:
		return n, true
	case *dbtype.Node:
		if n != nil {
			return *n, true
		}
	}
	return dbtype.Node{}, false
}
