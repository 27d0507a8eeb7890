package parser

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jobradar/jobradar/internal/config"
	"github.com/jobradar/jobradar/internal/types"
)

// registration pairs a Parser with an optional PostFilter, applied
// after extraction for sites whose markup needs a second pass to drop
// non-job cards (Open Question 2: kept parser-local rather than
// hoisted into the matcher taxonomy).
type registration struct {
	parser Parser
	filter PostFilter
}

// Registry maps parser_id to a registered Parser, plus the generic
// fallback used when a feed names no parser or an unknown one.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]registration
	generic Parser
	logger  *slog.Logger
}

// NewRegistry builds a Registry seeded with the built-in generic HTML
// parser, used whenever a feed's parser_id has no specific match.
func NewRegistry(logger *slog.Logger) *Registry {
	logger = logger.With("component", "parser_registry")
	return &Registry{
		parsers: make(map[string]registration),
		generic: NewGenericHTMLParser(logger),
		logger:  logger,
	}
}

// Register adds or replaces the parser for id, with an optional
// PostFilter.
func (r *Registry) Register(id string, p Parser, filter PostFilter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[id] = registration{parser: p, filter: filter}
}

// Parse dispatches to the parser named by source.Parser, falling back
// to the generic HTML parser when the name is empty or unknown.
func (r *Registry) Parse(resp *types.Response, source config.FeedConfig) []*types.Job {
	r.mu.RLock()
	reg, ok := r.parsers[source.Parser]
	r.mu.RUnlock()

	var p Parser
	var filter PostFilter
	if ok {
		p, filter = reg.parser, reg.filter
	} else {
		if source.Parser != "" {
			r.logger.Warn("unknown parser_id, falling back to generic", "parser_id", source.Parser, "source", source.Name)
		}
		p = r.generic
	}

	jobs := p.Parse(resp, source)
	if filter == nil {
		return jobs
	}

	kept := jobs[:0]
	for _, j := range jobs {
		if filter(j) {
			kept = append(kept, j)
		}
	}
	return kept
}

// MustGet returns the parser registered under id, or an error if none
// exists. Unlike Parse, it does not fall back to the generic parser.
func (r *Registry) MustGet(id string) (Parser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.parsers[id]
	if !ok {
		return nil, fmt.Errorf("no parser registered for id %q", id)
	}
	return reg.parser, nil
}
