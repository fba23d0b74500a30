package search

import (
	"context"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// DefaultLimit bounds a search when the caller passes a non-positive limit.
const DefaultLimit = 50

// Params configures a clip search.
type Params struct {
	Query         string
	Limit         int
	IncludeHidden bool
}

// Search returns the ids of clips matching q, best match first. Hidden
// clips are excluded.
func (s *ClipIndex) Search(ctx context.Context, q string, limit int) ([]string, error) {
	return s.SearchWithParams(ctx, Params{Query: q, Limit: limit})
}

// SearchWithParams runs a clip search. An empty query matches every clip,
// most recently registered first.
func (s *ClipIndex) SearchWithParams(ctx context.Context, p Params) ([]string, error) {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}

	req := bleve.NewSearchRequestOptions(buildQuery(p), p.Limit, 0, false)
	if strings.TrimSpace(p.Query) == "" {
		req.SortBy([]string{"-registered_at", "id"})
	} else {
		req.SortBy([]string{"-_score", "-registered_at"})
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// buildQuery matches every term of the input against description, tags and
// URLs. Each term must match at least one field; the last term also
// matches as a prefix so results follow typing.
func buildQuery(p Params) query.Query {
	terms := strings.Fields(strings.ToLower(p.Query))

	var text query.Query
	if len(terms) == 0 {
		text = bleve.NewMatchAllQuery()
	} else {
		conjuncts := make([]query.Query, 0, len(terms))
		for i, term := range terms {
			conjuncts = append(conjuncts, termQuery(term, i == len(terms)-1))
		}
		text = bleve.NewConjunctionQuery(conjuncts...)
	}

	if p.IncludeHidden {
		return text
	}
	hidden := bleve.NewBoolFieldQuery(true)
	hidden.SetField("hidden")
	q := bleve.NewBooleanQuery()
	q.AddMust(text)
	q.AddMustNot(hidden)
	return q
}

func termQuery(term string, last bool) query.Query {
	desc := bleve.NewMatchQuery(term)
	desc.SetField("description")

	tag := bleve.NewMatchQuery(term)
	tag.SetField("tags")
	tag.SetBoost(2.0)

	url := bleve.NewMatchQuery(term)
	url.SetField("urls")
	url.SetBoost(0.5)

	disj := bleve.NewDisjunctionQuery(desc, tag, url)
	if last {
		prefix := bleve.NewPrefixQuery(term)
		prefix.SetField("tags")
		disj.AddQuery(prefix)

		descPrefix := bleve.NewPrefixQuery(term)
		descPrefix.SetField("description")
		disj.AddQuery(descPrefix)
	}
	return disj
}
