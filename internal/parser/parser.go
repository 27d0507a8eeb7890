// Package parser implements the Parser Registry: a mapping from
// parser_id to a pure function that turns a fetched html/headless
// response into a sequence of jobs.
package parser

import (
	"github.com/jobradar/jobradar/internal/config"
	"github.com/jobradar/jobradar/internal/types"
)

// Parser extracts jobs from a fetched response. A Parser must never
// panic or return an error for malformed input — it logs what it saw
// and returns an empty slice instead, per the registry's never-throws
// contract.
type Parser interface {
	Parse(resp *types.Response, source config.FeedConfig) []*types.Job
}

// PostFilter optionally narrows a parser's output after extraction, for
// sites whose markup mixes job and non-job cards under the same
// selector. Most parsers leave this nil.
type PostFilter func(*types.Job) bool
