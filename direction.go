package norm

// Direction describes which way a relationship points relative to the
// declaring node.
type Direction int

const (
	// Outgoing relationships point from the source to the endpoint.
	Outgoing Direction = iota + 1
	// Incoming relationships point from the endpoint to the source.
	Incoming
	// Either matches relationships regardless of direction.
	Either
)

func (d Direction) String() string {
	switch d {
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	case Either:
		return "either"
	default:
		return "unknown"
	}
}

// Cardinality is a declared constraint on how many edges of a relation type
// may exist from one node. It is a closed set of named policies; enforcement
// happens at Connect/Disconnect time for the non-default policies.
type Cardinality int

const (
	// ZeroOrMore places no constraint on the edge set. The default.
	ZeroOrMore Cardinality = iota
	// ZeroOrOne allows at most one edge; Connect fails when one exists.
	ZeroOrOne
	// One requires exactly one edge once established; Connect fails when
	// one exists, and Disconnect/DisconnectAll are rejected (use Reconnect
	// to move the edge).
	One
	// OneOrMore requires at least one edge; disconnecting the last edge
	// is rejected.
	OneOrMore
)

func (c Cardinality) String() string {
	switch c {
	case ZeroOrMore:
		return "zero or more relationships"
	case ZeroOrOne:
		return "zero or one relationship"
	case One:
		return "one relationship"
	case OneOrMore:
		return "one or more relationships"
	default:
		return "unknown cardinality"
	}
}
