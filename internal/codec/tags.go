// Package codec extracts metadata from node and relationship struct types
// and converts instances to and from property maps.
package codec

import (
	"strings"
)

// tagInfo is the parsed form of a neo4j struct tag.
type tagInfo struct {
	Name    string // property name, or label for embedded fields
	Options []string
	Skip    bool
}

// parseTag parses a neo4j struct tag.
// Format: `neo4j:"prop_name,option1,option2:value"`.
func parseTag(tag string) tagInfo {
	if tag == "" {
		return tagInfo{}
	}

	parts := strings.Split(tag, ",")
	name := strings.TrimSpace(parts[0])
	if name == "-" {
		return tagInfo{Skip: true}
	}

	var options []string
	for _, part := range parts[1:] {
		option := strings.TrimSpace(part)
		if option != "" {
			options = append(options, option)
		}
	}

	return tagInfo{Name: name, Options: options}
}

// defaultOption returns the literal from a default:<value> option, if any.
func defaultOption(options []string) (string, bool) {
	for _, option := range options {
		if lit, ok := strings.CutPrefix(option, "default:"); ok {
			return lit, true
		}
	}
	return "", false
}

// toSnakeCase converts CamelCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder

	for i, r := range s {
		if i > 0 && (r >= 'A' && r <= 'Z') {
			result.WriteByte('_')
		}
		if r >= 'A' && r <= 'Z' {
			result.WriteRune(r - 'A' + 'a')
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}
