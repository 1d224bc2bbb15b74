package pipeline

import (
	"fmt"
	"strings"
)

// NodeError wraps the failure of a single node inside a parallel group
type NodeError struct {
	Node string
	Err  error
}

var _ error = (*NodeError)(nil)

func (e *NodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Node, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// ScopeConflictError is returned by NewGraph if two nodes of a parallel group write to overlapping paths
type ScopeConflictError struct {
	Group string
	First string
	Other string
	Paths [2]string
}

var _ error = (*ScopeConflictError)(nil)

func (e *ScopeConflictError) Error() string {
	return fmt.Sprintf("%s: %s and %s run in parallel but both write to %s", e.Group, e.First, e.Other,
		strings.Join(uniq(e.Paths[:]), " / "))
}

func uniq(items []string) []string {
	if len(items) == 2 && items[0] == items[1] {
		return items[:1]
	}
	return items
}
