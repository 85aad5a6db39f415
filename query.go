package norm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// condOp is a comparison operator in an endpoint filter.
type condOp string

const (
	opEq         condOp = "="
	opNe         condOp = "<>"
	opGt         condOp = ">"
	opGte        condOp = ">="
	opLt         condOp = "<"
	opLte        condOp = "<="
	opIn         condOp = "IN"
	opContains   condOp = "CONTAINS"
	opStartsWith condOp = "STARTS WITH"
	opEndsWith   condOp = "ENDS WITH"
)

// Cond filters traversal results by one endpoint property. Values travel as
// query parameters; only the property name is spliced, and it is validated.
type Cond struct {
	Prop  string
	Op    condOp
	Value any
}

func Eq(prop string, v any) Cond  { return Cond{prop, opEq, v} }
func Ne(prop string, v any) Cond  { return Cond{prop, opNe, v} }
func Gt(prop string, v any) Cond  { return Cond{prop, opGt, v} }
func Gte(prop string, v any) Cond { return Cond{prop, opGte, v} }
func Lt(prop string, v any) Cond  { return Cond{prop, opLt, v} }
func Lte(prop string, v any) Cond { return Cond{prop, opLte, v} }

// In matches when the property value is an element of v (a slice).
func In(prop string, v any) Cond { return Cond{prop, opIn, v} }

// ContainsStr matches string properties containing v.
func ContainsStr(prop, v string) Cond { return Cond{prop, opContains, v} }

// StartsWith matches string properties with the prefix v.
func StartsWith(prop, v string) Cond { return Cond{prop, opStartsWith, v} }

// EndsWith matches string properties with the suffix v.
func EndsWith(prop, v string) Cond { return Cond{prop, opEndsWith, v} }

// defaultCompiler renders traversals to direct Cypher against the session.
var defaultCompiler QueryCompiler = cypherCompiler{}

type cypherCompiler struct{}

func (cypherCompiler) Compile(t Traversal, sess Session) NodeQuery {
	return &nodeQuery{t: t, sess: sess, skip: -1, limit: -1}
}

// nodeQuery is the default NodeQuery. All chaining methods copy the
// receiver, so a query value is safe to branch from.
type nodeQuery struct {
	t     Traversal
	sess  Session
	conds []Cond
	excl  []Cond
	order []string
	skip  int
	limit int
}

func (q *nodeQuery) clone() *nodeQuery {
	c := *q
	c.conds = append([]Cond(nil), q.conds...)
	c.excl = append([]Cond(nil), q.excl...)
	c.order = append([]string(nil), q.order...)
	return &c
}

func (q *nodeQuery) Where(conds ...Cond) NodeQuery {
	c := q.clone()
	c.conds = append(c.conds, conds...)
	return c
}

func (q *nodeQuery) Exclude(conds ...Cond) NodeQuery {
	c := q.clone()
	c.excl = append(c.excl, conds...)
	return c
}

func (q *nodeQuery) OrderBy(props ...string) NodeQuery {
	c := q.clone()
	c.order = append(c.order, props...)
	return c
}

func (q *nodeQuery) Skip(n int) NodeQuery {
	c := q.clone()
	c.skip = n
	return c
}

func (q *nodeQuery) Limit(n int) NodeQuery {
	c := q.clone()
	c.limit = n
	return c
}

// build renders the full query. returnExpr is the RETURN payload; extra
// holds WHERE fragments beyond the property conditions (already validated
// by the caller).
func (q *nodeQuery) build(returnExpr string, extra ...string) (string, map[string]any, error) {
	frag, err := Pattern{
		Left:       "us",
		Right:      "them",
		RightLabel: q.t.Node.Label(),
		Ident:      "r",
		RelType:    q.t.Spec.relType,
		Direction:  q.t.Spec.direction,
	}.Match()
	if err != nil {
		return "", nil, err
	}

	params := map[string]any{"self": q.t.Source.GetElementID()}

	var where []string
	where = append(where, extra...)

	n := 0
	for _, cond := range q.conds {
		if !validIdent(cond.Prop) {
			return "", nil, &ValidationError{
				Op:     q.t.Name + ".Where",
				Reason: fmt.Sprintf("invalid property name %q", cond.Prop),
			}
		}
		param := "p" + strconv.Itoa(n)
		n++
		where = append(where, fmt.Sprintf("them.`%s` %s $%s", cond.Prop, cond.Op, param))
		params[param] = cond.Value
	}
	for _, cond := range q.excl {
		if !validIdent(cond.Prop) {
			return "", nil, &ValidationError{
				Op:     q.t.Name + ".Exclude",
				Reason: fmt.Sprintf("invalid property name %q", cond.Prop),
			}
		}
		param := "p" + strconv.Itoa(n)
		n++
		where = append(where, fmt.Sprintf("NOT them.`%s` %s $%s", cond.Prop, cond.Op, param))
		params[param] = cond.Value
	}

	var b strings.Builder
	b.WriteString("MATCH (us) WHERE elementId(us) = $self MATCH ")
	b.WriteString(frag)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" RETURN ")
	b.WriteString(returnExpr)

	if len(q.order) > 0 {
		keys := make([]string, len(q.order))
		for i, prop := range q.order {
			desc := strings.HasPrefix(prop, "-")
			name := strings.TrimPrefix(prop, "-")
			if !validIdent(name) {
				return "", nil, &ValidationError{
					Op:     q.t.Name + ".OrderBy",
					Reason: fmt.Sprintf("invalid property name %q", prop),
				}
			}
			keys[i] = "them.`" + name + "`"
			if desc {
				keys[i] += " DESC"
			}
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(keys, ", "))
	}
	if q.skip >= 0 {
		b.WriteString(" SKIP ")
		b.WriteString(strconv.Itoa(q.skip))
	}
	if q.limit >= 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(q.limit))
	}
	return b.String(), params, nil
}

func (q *nodeQuery) All(ctx context.Context) ([]INode, error) {
	query, params, err := q.build("them")
	if err != nil {
		return nil, err
	}
	res, err := q.sess.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	out := make([]INode, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) == 0 {
			continue
		}
		n, ok := nodeValue(row[0])
		if !ok {
			return nil, fmt.Errorf("norm: %s: expected node value, got %T", q.t.Name, row[0])
		}
		inst, err := q.t.Node.Inflate(n.Props)
		if err != nil {
			return nil, err
		}
		node, ok := inst.(INode)
		if !ok {
			return nil, fmt.Errorf("norm: %s: class %T does not embed norm.Node", q.t.Name, inst)
		}
		if setter, ok := inst.(elementIDSetter); ok {
			setter.SetElementID(n.ElementId)
		}
		out = append(out, node)
	}
	return out, nil
}

func (q *nodeQuery) Get(ctx context.Context) (INode, error) {
	nodes, err := q.clone().Limit(2).All(ctx)
	if err != nil {
		return nil, err
	}
	switch len(nodes) {
	case 1:
		return nodes[0], nil
	case 0:
		return nil, ErrNodeNotFound
	default:
		return nil, ErrMultipleNodes
	}
}

func (q *nodeQuery) GetOrNone(ctx context.Context) (INode, error) {
	node, err := q.Get(ctx)
	if errors.Is(err, ErrNodeNotFound) {
		return nil, nil
	}
	return node, err
}

func (q *nodeQuery) Single(ctx context.Context) (INode, error) {
	nodes, err := q.clone().Limit(1).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nil
}

func (q *nodeQuery) At(ctx context.Context, i int) (INode, error) {
	if i < 0 {
		return nil, ErrNodeNotFound
	}
	nodes, err := q.clone().Skip(i).Limit(1).All(ctx)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, ErrNodeNotFound
	}
	return nodes[0], nil
}

func (q *nodeQuery) Len(ctx context.Context) (int, error) {
	query, params, err := q.build("count(them)")
	if err != nil {
		return 0, err
	}
	res, err := q.sess.Run(ctx, query, params)
	if err != nil {
		return 0, err
	}
	row, ok := res.First()
	if !ok || len(row) == 0 {
		return 0, nil
	}
	return asInt(row[0])
}

func (q *nodeQuery) Exists(ctx context.Context) (bool, error) {
	n, err := q.clone().Limit(1).Len(ctx)
	return n > 0, err
}

func (q *nodeQuery) Contains(ctx context.Context, node INode) (bool, error) {
	if node.GetElementID() == "" {
		return false, &ValidationError{
			Op:     q.t.Name + ".Contains",
			Reason: "cannot check containment of unsaved node",
		}
	}
	query, params, err := q.build("count(them)", "elementId(them) = $target")
	if err != nil {
		return false, err
	}
	params["target"] = node.GetElementID()
	res, err := q.sess.Run(ctx, query, params)
	if err != nil {
		return false, err
	}
	row, ok := res.First()
	if !ok || len(row) == 0 {
		return false, nil
	}
	n, err := asInt(row[0])
	return n > 0, err
}

func (q *nodeQuery) Values(ctx context.Context, props ...string) ([]map[string]any, error) {
	if len(props) == 0 {
		return nil, &ValidationError{
			Op:     q.t.Name + ".Values",
			Reason: "at least one property is required",
		}
	}

	keys := make([]string, len(props))
	for i, prop := range props {
		if !validIdent(prop) {
			return nil, &ValidationError{
				Op:     q.t.Name + ".Values",
				Reason: fmt.Sprintf("invalid property name %q", prop),
			}
		}
		keys[i] = "them.`" + prop + "`"
	}

	query, params, err := q.build(strings.Join(keys, ", "))
	if err != nil {
		return nil, err
	}
	res, err := q.sess.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) < len(props) {
			return nil, fmt.Errorf("norm: %s: expected %d values per row, got %d", q.t.Name, len(props), len(row))
		}
		m := make(map[string]any, len(props))
		for i, prop := range props {
			m[prop] = row[i]
		}
		out = append(out, m)
	}
	return out, nil
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("norm: expected integer count, got %T", v)
	}
}

var (
	_ NodeQuery     = (*nodeQuery)(nil)
	_ QueryCompiler = cypherCompiler{}
)
