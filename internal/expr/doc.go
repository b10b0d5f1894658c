// Package expr implements the series query language: a small, closed
// expression grammar over the timeseries transform library.
//
// It exists so the API never evaluates caller-supplied code. Expressions are
// parsed into a fixed AST (series references, numbers, arithmetic, and a
// dispatch table of transform functions) and evaluated against a series
// resolver; unknown identifiers, unknown functions and malformed syntax are
// reported as typed errors with source positions.
package expr
