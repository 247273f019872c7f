package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentrt/core"
	"github.com/hupe1980/agentrt/internal/util"
)

// Kind is the capability kind of retrievers.
const Kind = "retriever"

// DescriptionTemplate renders a retriever's capability description.
const DescriptionTemplate = "Useful to lookup information about {{.Name}}. {{.Description}}"

// RetrieverOptions configures a Retriever.
type RetrieverOptions struct {
	// Results is the number of documents returned per query.
	Results int
	// Description overrides DescriptionTemplate.
	Description string
}

// Retriever exposes an Index as a capability.
type Retriever struct {
	idx         *Index
	results     int
	description string
}

var (
	_ core.Capability = (*Retriever)(nil)
	_ core.Kinded     = (*Retriever)(nil)
)

// NewRetriever creates a retriever capability for idx.
func NewRetriever(idx *Index, optFns ...func(o *RetrieverOptions)) (*Retriever, error) {
	opts := RetrieverOptions{Results: 4, Description: DescriptionTemplate}
	for _, fn := range optFns {
		fn(&opts)
	}
	description, err := util.RenderTemplate(opts.Description, map[string]string{
		"Name":        idx.Name(),
		"Description": idx.Description(),
	})
	if err != nil {
		return nil, fmt.Errorf("render retriever description: %w", err)
	}
	return &Retriever{idx: idx, results: opts.Results, description: strings.TrimSpace(description)}, nil
}

// Name returns the index name.
func (r *Retriever) Name() string { return r.idx.Name() }

// Description tells a model when to use the retriever.
func (r *Retriever) Description() string { return r.description }

// Kind implements core.Kinded.
func (r *Retriever) Kind() string { return Kind }

// Index returns the underlying index.
func (r *Retriever) Index() *Index { return r.idx }

// Invoke returns the documents most similar to query, separated by blank lines.
func (r *Retriever) Invoke(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", core.NewCapabilityError(r.Name(), "empty_query", fmt.Errorf("query must not be empty"))
	}
	matches, err := r.idx.Query(ctx, query, r.results)
	if err != nil {
		return "", core.NewCapabilityError(r.Name(), "query_failed", err)
	}
	if len(matches) == 0 {
		return "No documents found.", nil
	}
	parts := make([]string, len(matches))
	for i, m := range matches {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n\n"), nil
}
