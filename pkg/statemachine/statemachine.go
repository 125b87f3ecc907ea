// Package statemachine holds explicit (state, event) -> state tables for the order,
// delivery, return and refund lifecycles.
package statemachine

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Transition is one allowed edge of a table.
type Transition[S ~string, E ~string] struct {
	From  S
	Event E
	To    S
}

// Table is an immutable transition table. Any pair not listed is rejected.
type Table[S ~string, E ~string] struct {
	name  string
	edges map[S]map[E]S
}

// New builds a table. Duplicate (from, event) pairs panic since they indicate a programming error.
func New[S ~string, E ~string](name string, transitions ...Transition[S, E]) *Table[S, E] {
	edges := make(map[S]map[E]S, len(transitions))
	for _, tr := range transitions {
		byEvent, ok := edges[tr.From]
		if !ok {
			byEvent = map[E]S{}
			edges[tr.From] = byEvent
		}
		if _, dup := byEvent[tr.Event]; dup {
			panic(fmt.Sprintf("statemachine %s: duplicate transition %s --%s-->", name, tr.From, tr.Event))
		}
		byEvent[tr.Event] = tr.To
	}
	return &Table[S, E]{name: name, edges: edges}
}

// Name identifies the table in errors and logs.
func (t *Table[S, E]) Name() string {
	return t.name
}

// Next returns the state reached from `from` on `event`, or an INVALID_TRANSITION error.
func (t *Table[S, E]) Next(from S, event E) (S, error) {
	if to, ok := t.edges[from][event]; ok {
		return to, nil
	}
	var zero S
	return zero, pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("%s cannot %s from %s", t.name, event, from)).
		WithDetails(map[string]any{
			"machine": t.name,
			"from":    string(from),
			"event":   string(event),
		})
}

// EventTo finds the event that moves `from` to `to`. Callers that receive a target
// status instead of an event use it to stay on the table.
func (t *Table[S, E]) EventTo(from, to S) (E, error) {
	for event, next := range t.edges[from] {
		if next == to {
			return event, nil
		}
	}
	var zero E
	return zero, pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("%s cannot move from %s to %s", t.name, from, to)).
		WithDetails(map[string]any{
			"machine": t.name,
			"from":    string(from),
			"to":      string(to),
		})
}

// Terminal reports whether no event leaves state.
func (t *Table[S, E]) Terminal(state S) bool {
	return len(t.edges[state]) == 0
}
