// Package models defines the movie-graph schema used by the demo. It shows
// node and edge-property declarations, deferred endpoint references, and
// cardinality policies.
package models

import "github.com/rlch/norm"

// Schema is the shared registry for all movie-graph types.
var Schema = norm.NewRegistry()

// Person is an actor, director or reviewer.
type Person struct {
	norm.Node `neo4j:"Person"`

	Name string `neo4j:"name"`
	Born int64  `neo4j:"born"`
}

// Movie is a film node.
type Movie struct {
	norm.Node `neo4j:"Movie"`

	Title    string `neo4j:"title"`
	Released int64  `neo4j:"released"`
	Tagline  string `neo4j:"tagline"`
}

// ActedIn carries the cast metadata on a Person-[:ACTED_IN]->Movie edge.
type ActedIn struct {
	norm.Relationship `neo4j:"ACTED_IN"`

	Role string `neo4j:"role"`
}

// Review carries a rating on a Person-[:REVIEWED]->Movie edge. Absent
// ratings default to 5.
type Review struct {
	norm.Relationship `neo4j:"REVIEWED"`

	Summary string `neo4j:"summary"`
	Rating  int64  `neo4j:"rating,default:5"`
}

// Relationship declarations. Person references itself through a deferred
// name, the way mutually-referencing schema packages would.
var (
	ActedInMovies = Schema.RelationshipTo(&Movie{}, "ACTED_IN", norm.WithModel(&ActedIn{}))
	DirectedBy    = Schema.RelationshipFrom(&Person{}, "DIRECTED")
	Reviewed      = Schema.RelationshipTo(&Movie{}, "REVIEWED", norm.WithModel(&Review{}))
	Follows       = Schema.RelationshipTo("Person", "FOLLOWS")
	BornIn        = Schema.RelationshipTo(&City{}, "BORN_IN", norm.WithCardinality(norm.ZeroOrOne))
)

// City is a place of birth.
type City struct {
	norm.Node `neo4j:"City"`

	Name string `neo4j:"name"`
}

func init() {
	Schema.RegisterTypes(&Person{}, &Movie{}, &City{})
}
