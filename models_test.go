package norm_test

import (
	"context"
	"errors"

	"github.com/rlch/norm"
)

// Test schema shared across the package.

type Person struct {
	norm.Node `neo4j:"Person"`

	Name string `neo4j:"name"`
}

type City struct {
	norm.Node `neo4j:"City"`

	Name string `neo4j:"name"`
}

type FriendRel struct {
	norm.Relationship `neo4j:"FRIEND"`

	Since  int64    `neo4j:"since"`
	Weight *float64 `neo4j:"weight"`
	Met    string   `neo4j:"met,default:irl"`
}

type BestFriendRel struct {
	FriendRel

	Closeness int64 `neo4j:"closeness"`
}

// AuditedRel exercises the save hooks: PreSave stamps a property before the
// edge is written, PostSave records that materialization completed.
type AuditedRel struct {
	norm.Relationship `neo4j:"AUDITED"`

	Stamp string `neo4j:"stamp"`

	postSaved bool
}

func (a *AuditedRel) PreSave() error {
	if a.Stamp == "forbidden" {
		return errors.New("forbidden stamp")
	}
	if a.Stamp == "" {
		a.Stamp = "stamped"
	}
	return nil
}

func (a *AuditedRel) PostSave() error {
	a.postSaved = true
	return nil
}

// savedPerson returns a persisted Person.
func savedPerson(name, elementID string) *Person {
	p := norm.NewNode[Person]()
	p.Name = name
	p.SetElementID(elementID)
	return p
}

func savedCity(name, elementID string) *City {
	c := norm.NewNode[City]()
	c.Name = name
	c.SetElementID(elementID)
	return c
}

// fakeSession records every query and replays canned results in order. Once
// the canned results run out it keeps returning the last one.
type fakeSession struct {
	queries []string
	params  []map[string]any
	results []*norm.Result
	errs    []error
	calls   int
}

func (s *fakeSession) Run(_ context.Context, cypher string, params map[string]any) (*norm.Result, error) {
	s.queries = append(s.queries, cypher)
	s.params = append(s.params, params)

	i := s.calls
	s.calls++

	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if len(s.results) == 0 {
		return &norm.Result{}, nil
	}
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i], nil
}

func (s *fakeSession) lastQuery() string {
	if len(s.queries) == 0 {
		return ""
	}
	return s.queries[len(s.queries)-1]
}

func (s *fakeSession) lastParams() map[string]any {
	if len(s.params) == 0 {
		return nil
	}
	return s.params[len(s.params)-1]
}

var _ norm.Session = (*fakeSession)(nil)
