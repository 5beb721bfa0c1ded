// Package aggregates implements the lesson catalog write aggregates. Each write
// composes table repos from internal/data/repos/lessons inside one transaction.
package aggregates
