package norm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNodeNotFound is returned by Get and At when no node matches.
	ErrNodeNotFound = errors.New("no node matches the query")

	// ErrMultipleNodes is returned by Get when more than one node matches.
	ErrMultipleNodes = errors.New("multiple nodes match the query")
)

// ValidationError reports a precondition failure detected before any query
// is issued: an endpoint of the wrong type, an unsaved or deleted node, or
// properties supplied without a bound edge-property model.
type ValidationError struct {
	// Op is the failing operation, e.g. "friends.Connect".
	Op string

	// Reason describes the violated precondition.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("norm: %s: %s", e.Op, e.Reason)
}

// NotConnectedError reports an operation that requires an existing edge
// between two nodes when none exists.
type NotConnectedError struct {
	Op     string
	Source string
	Target string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("norm: %s: %s is not connected to %s", e.Op, e.Source, e.Target)
}

// RelationshipClassRedefinedError reports an attempt to bind an
// edge-property class to a relation type that is already bound to an
// unrelated class.
type RelationshipClassRedefinedError struct {
	// RelType is the relation-type label being redefined.
	RelType string

	// Existing and Proposed name the conflicting classes.
	Existing string
	Proposed string

	// Bound is a snapshot of the registry state at conflict time,
	// label-set key to bound class name.
	Bound map[string]string
}

func (e *RelationshipClassRedefinedError) Error() string {
	keys := make([]string, 0, len(e.Bound))
	for k := range e.Bound {
		keys = append(keys, k+" => "+e.Bound[k])
	}
	sort.Strings(keys)
	return fmt.Sprintf(
		"norm: relationship class for %q redefined: %s conflicts with already-bound %s (registry: %s)",
		e.RelType, e.Proposed, e.Existing, strings.Join(keys, ", "),
	)
}

// ResolutionError reports a deferred endpoint name that cannot be resolved
// to a registered node class.
type ResolutionError struct {
	// Name is the type name that failed to resolve.
	Name string

	// Namespace is the namespace the lookup was relative to, if any.
	Namespace string

	// Candidates lists qualified names that partially matched, when the
	// bare name was ambiguous.
	Candidates []string
}

func (e *ResolutionError) Error() string {
	name := e.Name
	if e.Namespace != "" {
		name = e.Namespace + "." + name
	}
	if len(e.Candidates) > 0 {
		return fmt.Sprintf("norm: cannot resolve node class %q: ambiguous between %s",
			name, strings.Join(e.Candidates, ", "))
	}
	return fmt.Sprintf("norm: cannot resolve node class %q: not registered", name)
}

// CardinalityViolationError reports a mutation rejected by the declared
// cardinality policy.
type CardinalityViolationError struct {
	RelType     string
	Cardinality Cardinality
	Reason      string
}

func (e *CardinalityViolationError) Error() string {
	return fmt.Sprintf("norm: %s on %q: %s", e.Cardinality, e.RelType, e.Reason)
}
