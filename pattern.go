package norm

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// identPattern is the allow-list for schema-derived identifiers spliced into
// query text: labels, relation types, property names and binding names.
// User-supplied values never appear in query text; they always travel as
// parameters.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validIdent reports whether s is a safe schema-derived identifier.
func validIdent(s string) bool {
	return identPattern.MatchString(s)
}

// PropPlaceholder names one edge property to set at creation time. Null
// placeholders are rendered as ON CREATE/ON MATCH SET clauses rather than
// inline map entries, since a null inside a MERGE map never matches.
type PropPlaceholder struct {
	// Prop is the property name on the relationship.
	Prop string

	// Param is the query parameter carrying the value, without the $.
	Param string

	// Null marks a property whose value is explicitly null.
	Null bool
}

// Pattern is a structured graph-pattern fragment between two bound
// endpoints. It renders to Cypher via Match or Merge; both renderers are
// pure and validate every identifier before splicing.
type Pattern struct {
	// Left and Right are the endpoint binding names.
	Left  string
	Right string

	// LeftLabel and RightLabel optionally constrain the endpoints.
	LeftLabel  string
	RightLabel string

	// Ident is the relationship binding name.
	Ident string

	// RelType is the relation-type label.
	RelType string

	Direction Direction

	// Props are placeholders to inline at creation time; used by Merge.
	Props []PropPlaceholder
}

// Match renders a fragment usable inside a read or delete query, e.g.
//
//	(us)-[r:`FRIEND`]->(them:`Person`)
func (p Pattern) Match() (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	rel := fmt.Sprintf("[%s:`%s`]", p.Ident, p.RelType)
	return p.wrap(rel), nil
}

// Merge renders a fragment usable inside an upsert query, inlining non-null
// property placeholders and appending ON CREATE SET / ON MATCH SET clauses
// for explicitly-null ones:
//
//	(us)-[r:`FRIEND` {`since`: $since}]->(them) ON CREATE SET r.`until` = $until ON MATCH SET r.`until` = $until
func (p Pattern) Merge() (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}

	props := append([]PropPlaceholder(nil), p.Props...)
	sort.Slice(props, func(i, j int) bool { return props[i].Prop < props[j].Prop })

	var inline, null []string
	for _, prop := range props {
		if prop.Null {
			null = append(null, fmt.Sprintf("%s.`%s` = $%s", p.Ident, prop.Prop, prop.Param))
		} else {
			inline = append(inline, fmt.Sprintf("`%s`: $%s", prop.Prop, prop.Param))
		}
	}

	rel := fmt.Sprintf("[%s:`%s`", p.Ident, p.RelType)
	if len(inline) > 0 {
		rel += " {" + strings.Join(inline, ", ") + "}"
	}
	rel += "]"

	out := p.wrap(rel)
	if len(null) > 0 {
		sets := strings.Join(null, ", ")
		out += " ON CREATE SET " + sets + " ON MATCH SET " + sets
	}
	return out, nil
}

func (p Pattern) wrap(rel string) string {
	lhs := endpoint(p.Left, p.LeftLabel)
	rhs := endpoint(p.Right, p.RightLabel)
	switch p.Direction {
	case Outgoing:
		return lhs + "-" + rel + "->" + rhs
	case Incoming:
		return lhs + "<-" + rel + "-" + rhs
	default:
		return lhs + "-" + rel + "-" + rhs
	}
}

func endpoint(binding, label string) string {
	if label == "" {
		return "(" + binding + ")"
	}
	return "(" + binding + ":`" + label + "`)"
}

func (p Pattern) validate() error {
	for _, ident := range []string{p.Left, p.Right, p.Ident, p.RelType} {
		if !validIdent(ident) {
			return fmt.Errorf("norm: invalid identifier %q in pattern", ident)
		}
	}
	for _, label := range []string{p.LeftLabel, p.RightLabel} {
		if label != "" && !validIdent(label) {
			return fmt.Errorf("norm: invalid label %q in pattern", label)
		}
	}
	for _, prop := range p.Props {
		if !validIdent(prop.Prop) || !validIdent(prop.Param) {
			return fmt.Errorf("norm: invalid property placeholder %q in pattern", prop.Prop)
		}
	}
	return nil
}
