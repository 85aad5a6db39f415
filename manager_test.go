package norm_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/norm"
)

// friendsManager builds a fresh Person-[:FRIEND]->Person manager over sess.
func friendsManager(t *testing.T, sess norm.Session, opts ...norm.SpecOption) (*norm.RelationshipManager, *Person) {
	t.Helper()

	r := norm.NewRegistry()
	spec := r.RelationshipTo(&Person{}, "FRIEND", opts...)

	source := savedPerson("ada", "4:src:1")
	mgr, err := spec.Manager(sess, source, "friends")
	require.NoError(t, err)
	return mgr, source
}

func relResult(elementID string, props map[string]any) *norm.Result {
	return &norm.Result{
		Keys: []string{"r"},
		Rows: [][]any{{dbtype.Relationship{ElementId: elementID, Props: props}}},
	}
}

func TestConnect(t *testing.T) {
	t.Parallel()

	t.Run("without model merges and returns nil", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{}
		mgr, _ := friendsManager(t, sess)
		target := savedPerson("grace", "4:dst:2")

		rel, err := mgr.Connect(context.Background(), target, nil)
		require.NoError(t, err)
		assert.Nil(t, rel)

		require.Len(t, sess.queries, 1)
		assert.Equal(t,
			"MATCH (them:`Person`), (us:`Person`) WHERE elementId(them) = $them AND elementId(us) = $self "+
				"MERGE (us)-[r:`FRIEND`]->(them)",
			sess.lastQuery())
		assert.Equal(t, "4:src:1", sess.lastParams()["self"])
		assert.Equal(t, "4:dst:2", sess.lastParams()["them"])
	})

	t.Run("with model returns the materialized edge", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{results: []*norm.Result{
			relResult("5:rel:9", map[string]any{"since": int64(2020), "met": "work"}),
		}}
		mgr, _ := friendsManager(t, sess, norm.WithModel(&FriendRel{}))
		target := savedPerson("grace", "4:dst:2")

		rel, err := mgr.Connect(context.Background(), target, map[string]any{"since": int64(2020), "met": "work"})
		require.NoError(t, err)

		friend, ok := rel.(*FriendRel)
		require.True(t, ok)
		assert.Equal(t, int64(2020), friend.Since)
		assert.Equal(t, "work", friend.Met)
		assert.Nil(t, friend.Weight)
		assert.Equal(t, "5:rel:9", friend.GetElementID())

		require.NotNil(t, friend.StartNodeType())
		assert.Equal(t, "Person", friend.StartNodeType().Name())
		assert.Equal(t, "Person", friend.EndNodeType().Name())

		assert.Contains(t, sess.lastQuery(), "MERGE (us)-[r:`FRIEND` {`met`: $met, `since`: $since}]->(them)")
		assert.Contains(t, sess.lastQuery(),
			"ON CREATE SET r.`weight` = $weight ON MATCH SET r.`weight` = $weight")
		assert.Contains(t, sess.lastQuery(), "RETURN r")
		assert.Nil(t, sess.lastParams()["weight"])
	})

	t.Run("declared defaults apply to absent properties", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{results: []*norm.Result{relResult("5:rel:9", nil)}}
		mgr, _ := friendsManager(t, sess, norm.WithModel(&FriendRel{}))

		_, err := mgr.Connect(context.Background(), savedPerson("grace", "4:dst:2"), map[string]any{"since": int64(1)})
		require.NoError(t, err)
		assert.Equal(t, "irl", sess.lastParams()["met"])
	})

	t.Run("properties without a model are rejected", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{}
		mgr, _ := friendsManager(t, sess)

		_, err := mgr.Connect(context.Background(), savedPerson("grace", "4:dst:2"), map[string]any{"since": 1})
		var verr *norm.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "friends.Connect", verr.Op)
		assert.Empty(t, sess.queries)
	})

	t.Run("unknown property is rejected", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{}
		mgr, _ := friendsManager(t, sess, norm.WithModel(&FriendRel{}))

		_, err := mgr.Connect(context.Background(), savedPerson("grace", "4:dst:2"), map[string]any{"nope": 1})
		assert.Error(t, err)
		assert.Empty(t, sess.queries)
	})

	t.Run("unsaved source is rejected", func(t *testing.T) {
		t.Parallel()

		r := norm.NewRegistry()
		spec := r.RelationshipTo(&Person{}, "FRIEND")

		unsaved := norm.NewNode[Person]()
		mgr, err := spec.Manager(&fakeSession{}, unsaved, "friends")
		require.NoError(t, err)

		_, err = mgr.Connect(context.Background(), savedPerson("grace", "4:dst:2"), nil)
		var verr *norm.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Reason, "unsaved")
	})

	t.Run("deleted source is rejected", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{}
		mgr, source := friendsManager(t, sess)
		source.MarkDeleted()

		_, err := mgr.Connect(context.Background(), savedPerson("grace", "4:dst:2"), nil)
		var verr *norm.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Reason, "deleted")
	})

	t.Run("wrong endpoint class is rejected", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{}
		mgr, _ := friendsManager(t, sess)

		_, err := mgr.Connect(context.Background(), savedCity("london", "4:dst:3"), nil)
		var verr *norm.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Reason, "expected node of class Person")
	})

	t.Run("unsaved target is rejected", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{}
		mgr, _ := friendsManager(t, sess)

		_, err := mgr.Connect(context.Background(), norm.NewNode[Person](), nil)
		var verr *norm.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Reason, "unsaved")
	})

	t.Run("incoming direction reverses the pattern", func(t *testing.T) {
		t.Parallel()

		r := norm.NewRegistry()
		spec := r.RelationshipFrom(&Person{}, "FRIEND")

		sess := &fakeSession{}
		mgr, err := spec.Manager(sess, savedPerson("ada", "4:src:1"), "friends")
		require.NoError(t, err)

		_, err = mgr.Connect(context.Background(), savedPerson("grace", "4:dst:2"), nil)
		require.NoError(t, err)
		assert.Contains(t, sess.lastQuery(), "MERGE (us)<-[r:`FRIEND`]-(them)")
	})
}

func TestConnectHooks(t *testing.T) {
	t.Parallel()

	t.Run("PreSave runs before the write", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{results: []*norm.Result{
			relResult("5:rel:1", map[string]any{"stamp": "stamped"}),
		}}
		r := norm.NewRegistry()
		spec := r.RelationshipTo(&Person{}, "AUDITED", norm.WithModel(&AuditedRel{}))

		mgr, err := spec.Manager(sess, savedPerson("ada", "4:src:1"), "audited")
		require.NoError(t, err)

		rel, err := mgr.Connect(context.Background(), savedPerson("grace", "4:dst:2"), nil)
		require.NoError(t, err)

		// The hook stamped the property before deflation.
		assert.Equal(t, "stamped", sess.lastParams()["stamp"])

		audited, ok := rel.(*AuditedRel)
		require.True(t, ok)
		assert.True(t, audited.postSaved)
	})

	t.Run("PreSave error aborts the write", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{}
		r := norm.NewRegistry()
		spec := r.RelationshipTo(&Person{}, "AUDITED", norm.WithModel(&AuditedRel{}))

		mgr, err := spec.Manager(sess, savedPerson("ada", "4:src:1"), "audited")
		require.NoError(t, err)

		_, err = mgr.Connect(context.Background(), savedPerson("grace", "4:dst:2"),
			map[string]any{"stamp": "forbidden"})
		require.EqualError(t, err, "forbidden stamp")
		assert.Empty(t, sess.queries)
	})
}

func TestBulkConnect(t *testing.T) {
	t.Parallel()

	t.Run("empty keys is a no-op", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{}
		mgr, _ := friendsManager(t, sess)

		rel, err := mgr.BulkConnect(context.Background(), nil, "Person", nil)
		require.NoError(t, err)
		assert.Nil(t, rel)
		assert.Empty(t, sess.queries)
	})

	t.Run("matches targets by key", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{}
		mgr, _ := friendsManager(t, sess)

		keys := []uuid.UUID{uuid.New(), uuid.New()}
		_, err := mgr.BulkConnect(context.Background(), keys, "Person", nil)
		require.NoError(t, err)

		require.Len(t, sess.queries, 1)
		assert.Equal(t,
			"UNWIND $uuids AS uuid MATCH (them:`Person`), (us:`Person`) "+
				"WHERE them.uuid = uuid AND elementId(us) = $self MERGE (us)-[r:`FRIEND`]->(them)",
			sess.lastQuery())
		assert.Equal(t, []string{keys[0].String(), keys[1].String()}, sess.lastParams()["uuids"])
	})

	t.Run("invalid label is rejected", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{}
		mgr, _ := friendsManager(t, sess)

		_, err := mgr.BulkConnect(context.Background(), []uuid.UUID{uuid.New()}, "Per son", nil)
		var verr *norm.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Empty(t, sess.queries)
	})
}

func TestDisconnect(t *testing.T) {
	t.Parallel()

	t.Run("deletes the matching edge", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{}
		mgr, _ := friendsManager(t, sess)

		err := mgr.Disconnect(context.Background(), savedPerson("grace", "4:dst:2"))
		require.NoError(t, err)
		assert.Equal(t,
			"MATCH (a), (b) WHERE elementId(a) = $self AND elementId(b) = $them "+
				"MATCH (a)-[r:`FRIEND`]->(b) DELETE r",
			sess.lastQuery())
		assert.Equal(t, "4:dst:2", sess.lastParams()["them"])
	})

	t.Run("bulk deletes by key", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{}
		mgr, _ := friendsManager(t, sess)

		keys := []uuid.UUID{uuid.New()}
		err := mgr.BulkDisconnect(context.Background(), keys)
		require.NoError(t, err)
		assert.Equal(t,
			"MATCH (a), (b) WHERE elementId(a) = $self AND b.uuid IN $them "+
				"MATCH (a)-[r:`FRIEND`]->(b) DELETE r",
			sess.lastQuery())
		assert.Equal(t, []string{keys[0].String()}, sess.lastParams()["them"])
	})

	t.Run("bulk with empty keys is a no-op", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{}
		mgr, _ := friendsManager(t, sess)

		require.NoError(t, mgr.BulkDisconnect(context.Background(), nil))
		assert.Empty(t, sess.queries)
	})

	t.Run("disconnect all constrains the endpoint label", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{}
		mgr, _ := friendsManager(t, sess)

		require.NoError(t, mgr.DisconnectAll(context.Background()))
		assert.Equal(t,
			"MATCH (a) WHERE elementId(a) = $self MATCH (a)-[r:`FRIEND`]->(b:`Person`) DELETE r",
			sess.lastQuery())
	})
}

func TestReplace(t *testing.T) {
	t.Parallel()

	sess := &fakeSession{}
	mgr, _ := friendsManager(t, sess)

	_, err := mgr.Replace(context.Background(), savedPerson("grace", "4:dst:2"), nil)
	require.NoError(t, err)

	require.Len(t, sess.queries, 2)
	assert.Contains(t, sess.queries[0], "DELETE r")
	assert.Contains(t, sess.queries[1], "MERGE (us)-[r:`FRIEND`]->(them)")
}

func TestReconnect(t *testing.T) {
	t.Parallel()

	t.Run("same node is a no-op", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{}
		mgr, _ := friendsManager(t, sess)
		node := savedPerson("grace", "4:dst:2")

		require.NoError(t, mgr.Reconnect(context.Background(), node, node))
		assert.Empty(t, sess.queries)
	})

	t.Run("missing edge is NotConnectedError", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{results: []*norm.Result{{}}}
		mgr, _ := friendsManager(t, sess)

		err := mgr.Reconnect(context.Background(),
			savedPerson("grace", "4:dst:2"), savedPerson("linus", "4:dst:3"))

		var ncErr *norm.NotConnectedError
		require.ErrorAs(t, err, &ncErr)
		assert.Equal(t, "friends.Reconnect", ncErr.Op)
		require.Len(t, sess.queries, 1)
	})

	t.Run("copies properties and deletes the old edge", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{results: []*norm.Result{
			relResult("5:rel:1", map[string]any{"since": int64(2020), "met": "work"}),
			{},
		}}
		mgr, _ := friendsManager(t, sess)

		err := mgr.Reconnect(context.Background(),
			savedPerson("grace", "4:dst:2"), savedPerson("linus", "4:dst:3"))
		require.NoError(t, err)

		require.Len(t, sess.queries, 2)
		assert.Equal(t,
			"MATCH (us), (old), (new) WHERE elementId(us) = $self AND elementId(old) = $old "+
				"AND elementId(new) = $new MATCH (us)-[r:`FRIEND`]->(old) MERGE (us)-[r2:`FRIEND`]->(new)"+
				" SET r2.`met` = r.`met` SET r2.`since` = r.`since` WITH r DELETE r",
			sess.lastQuery())
		assert.Equal(t, "4:dst:2", sess.lastParams()["old"])
		assert.Equal(t, "4:dst:3", sess.lastParams()["new"])
	})

	t.Run("unsafe stored property name aborts", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{results: []*norm.Result{
			relResult("5:rel:1", map[string]any{"evil` = 1 //": "x"}),
		}}
		mgr, _ := friendsManager(t, sess)

		err := mgr.Reconnect(context.Background(),
			savedPerson("grace", "4:dst:2"), savedPerson("linus", "4:dst:3"))
		require.Error(t, err)
		require.Len(t, sess.queries, 1)
	})
}

func TestRelationshipAccessors(t *testing.T) {
	t.Parallel()

	t.Run("Relationship returns the first edge", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{results: []*norm.Result{
			relResult("5:rel:1", map[string]any{"since": int64(1999)}),
		}}
		mgr, _ := friendsManager(t, sess, norm.WithModel(&FriendRel{}))

		rel, err := mgr.Relationship(context.Background(), savedPerson("grace", "4:dst:2"))
		require.NoError(t, err)

		friend, ok := rel.(*FriendRel)
		require.True(t, ok)
		assert.Equal(t, int64(1999), friend.Since)
		assert.Contains(t, sess.lastQuery(), "RETURN r LIMIT 1")
	})

	t.Run("Relationship without an edge returns nil", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{results: []*norm.Result{{}}}
		mgr, _ := friendsManager(t, sess, norm.WithModel(&FriendRel{}))

		rel, err := mgr.Relationship(context.Background(), savedPerson("grace", "4:dst:2"))
		require.NoError(t, err)
		assert.Nil(t, rel)
	})

	t.Run("AllRelationships returns every edge", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{results: []*norm.Result{{
			Keys: []string{"r"},
			Rows: [][]any{
				{dbtype.Relationship{ElementId: "5:rel:1", Props: map[string]any{"since": int64(1)}}},
				{dbtype.Relationship{ElementId: "5:rel:2", Props: map[string]any{"since": int64(2)}}},
			},
		}}}
		mgr, _ := friendsManager(t, sess, norm.WithModel(&FriendRel{}))

		rels, err := mgr.AllRelationships(context.Background(), savedPerson("grace", "4:dst:2"))
		require.NoError(t, err)
		require.Len(t, rels, 2)
		assert.Equal(t, int64(2), rels[1].(*FriendRel).Since)
	})
}

func TestCardinality(t *testing.T) {
	t.Parallel()

	countResult := func(n int64) *norm.Result {
		return &norm.Result{Keys: []string{"count(them)"}, Rows: [][]any{{n}}}
	}

	t.Run("ZeroOrOne rejects a second connect", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{results: []*norm.Result{countResult(1)}}
		mgr, _ := friendsManager(t, sess, norm.WithCardinality(norm.ZeroOrOne))

		_, err := mgr.Connect(context.Background(), savedPerson("grace", "4:dst:2"), nil)
		var cErr *norm.CardinalityViolationError
		require.ErrorAs(t, err, &cErr)
		assert.Equal(t, norm.ZeroOrOne, cErr.Cardinality)
	})

	t.Run("ZeroOrOne allows the first connect", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{results: []*norm.Result{countResult(0), {}}}
		mgr, _ := friendsManager(t, sess, norm.WithCardinality(norm.ZeroOrOne))

		_, err := mgr.Connect(context.Background(), savedPerson("grace", "4:dst:2"), nil)
		require.NoError(t, err)
		require.Len(t, sess.queries, 2)
	})

	t.Run("One rejects disconnect outright", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{}
		mgr, _ := friendsManager(t, sess, norm.WithCardinality(norm.One))

		err := mgr.Disconnect(context.Background(), savedPerson("grace", "4:dst:2"))
		var cErr *norm.CardinalityViolationError
		require.ErrorAs(t, err, &cErr)
		assert.Contains(t, cErr.Reason, "Reconnect")
		assert.Empty(t, sess.queries)
	})

	t.Run("OneOrMore rejects removing the last edge", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{results: []*norm.Result{countResult(1)}}
		mgr, _ := friendsManager(t, sess, norm.WithCardinality(norm.OneOrMore))

		err := mgr.Disconnect(context.Background(), savedPerson("grace", "4:dst:2"))
		var cErr *norm.CardinalityViolationError
		require.ErrorAs(t, err, &cErr)
	})

	t.Run("OneOrMore allows disconnect when more remain", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{results: []*norm.Result{countResult(2), {}}}
		mgr, _ := friendsManager(t, sess, norm.WithCardinality(norm.OneOrMore))

		require.NoError(t, mgr.Disconnect(context.Background(), savedPerson("grace", "4:dst:2")))
	})

	t.Run("OneOrMore rejects disconnect all", func(t *testing.T) {
		t.Parallel()

		sess := &fakeSession{}
		mgr, _ := friendsManager(t, sess, norm.WithCardinality(norm.OneOrMore))

		err := mgr.DisconnectAll(context.Background())
		var cErr *norm.CardinalityViolationError
		require.ErrorAs(t, err, &cErr)
		assert.Empty(t, sess.queries)
	})
}
