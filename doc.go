// Package norm is the relationship layer of a Neo4j object-graph mapper.
//
// A relationship is declared once, at schema-definition time, against a
// [Registry]:
//
//	reg := norm.NewRegistry()
//	reg.RegisterTypes(&Person{}, &City{})
//
//	type FriendRel struct {
//		norm.Relationship `neo4j:"FRIEND"`
//
//		Since int64 `neo4j:"since"`
//	}
//
//	type Person struct {
//		norm.Node `neo4j:"Person"`
//
//		Name string `neo4j:"name"`
//	}
//
//	friends := reg.RelationshipTo(&Person{}, "FRIEND", norm.WithModel(&FriendRel{}))
//
// The endpoint may also be a deferred type name ("Person", or "models.Person"
// for an absolute reference), which is resolved against the registry on first
// use. This supports mutually-referencing schema packages.
//
// At runtime, a [RelationshipManager] is bound to a persisted node instance
// and a [Session], and exposes the mutation and traversal operations:
//
//	m, err := friends.Manager(sess, alice, "friends")
//	if err != nil {
//		return err
//	}
//	rel, err := m.Connect(ctx, bob, map[string]any{"since": int64(2019)})
//
// Managers are ephemeral: construct one per access, discard it afterwards.
// All queries are parameterized; schema-derived labels and property names are
// validated against an identifier allow-list before they are spliced into
// Cypher.
package norm
