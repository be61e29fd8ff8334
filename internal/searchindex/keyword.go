package searchindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/search/query"

	"matchbook/internal/contextutil"
)

// textField is the analyzed full-text field every entry is matched against.
const textField = "text"

// KeywordIndex implements Index with a bleve full-text index: tokenized
// searchable text ranked by a TF/BM25-style score. It needs no external
// service or embedding endpoint.
type KeywordIndex struct {
	idx bleve.Index
}

// NewKeywordIndex opens (or creates) a bleve index at path. An empty path
// builds an in-memory index, used by tests and throwaway deployments.
// facetFields lists the metadata keys that must support exact-match
// filtering; they are indexed untokenized.
func NewKeywordIndex(path string, facetFields []string) (*KeywordIndex, error) {
	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	textMapping := bleve.NewTextFieldMapping()
	textMapping.Store = true
	docMapping.AddFieldMappingsAt(textField, textMapping)

	for _, field := range facetFields {
		facetMapping := bleve.NewTextFieldMapping()
		facetMapping.Analyzer = keyword.Name
		facetMapping.Store = true
		docMapping.AddFieldMappingsAt(field, facetMapping)
	}
	indexMapping.DefaultMapping = docMapping

	if path == "" {
		idx, err := bleve.NewMemOnly(indexMapping)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory keyword index: %w", err)
		}
		return &KeywordIndex{idx: idx}, nil
	}

	idx, err := bleve.New(path, indexMapping)
	if errors.Is(err, bleve.ErrorIndexPathExists) {
		idx, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword index at %s: %w", path, err)
	}
	return &KeywordIndex{idx: idx}, nil
}

// Upsert replaces any prior document with the same id in full.
func (k *KeywordIndex) Upsert(ctx context.Context, entry Entry) error {
	logger := contextutil.LoggerFromContext(ctx)

	doc := make(map[string]string, len(entry.Facets)+1)
	doc[textField] = entry.Text
	for field, value := range entry.Facets {
		doc[field] = value
	}

	if err := k.idx.Index(entry.ID, doc); err != nil {
		logger.ErrorContext(ctx, "failed to index entry", "id", entry.ID, "error", err)
		return fmt.Errorf("failed to index entry: %w", err)
	}
	return nil
}

// Delete removes the document. Absent ids are a no-op.
func (k *KeywordIndex) Delete(ctx context.Context, id string) error {
	if err := k.idx.Delete(id); err != nil {
		return fmt.Errorf("failed to delete index entry: %w", err)
	}
	return nil
}

// Query runs a full-text match over the searchable text, constrained by
// exact-match facet terms, and returns hits best-first.
func (k *KeywordIndex) Query(ctx context.Context, text string, facets map[string]string, limit int) ([]RankedID, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}

	var textQuery query.Query
	if text == "" {
		textQuery = bleve.NewMatchAllQuery()
	} else {
		mq := bleve.NewMatchQuery(text)
		mq.SetField(textField)
		textQuery = mq
	}

	queries := []query.Query{textQuery}
	for field, value := range facets {
		tq := bleve.NewTermQuery(value)
		tq.SetField(field)
		queries = append(queries, tq)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(queries...), limit, 0, false)
	res, err := k.idx.SearchInContext(ctx, req)
	if err != nil {
		logger.ErrorContext(ctx, "keyword query failed", "error", err)
		return nil, fmt.Errorf("keyword query failed: %w", err)
	}

	ranked := make([]RankedID, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ranked = append(ranked, RankedID{ID: hit.ID, Score: hit.Score})
	}
	logger.DebugContext(ctx, "keyword query completed", "hits", len(ranked), "limit", limit)
	return ranked, nil
}

// Get loads the stored fields of a single document.
func (k *KeywordIndex) Get(ctx context.Context, id string) (*Entry, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewDocIDQuery([]string{id}), 1, 0, false)
	req.Fields = []string{"*"}

	res, err := k.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to load index entry: %w", err)
	}
	if len(res.Hits) == 0 {
		return nil, ErrNotFound
	}

	entry := &Entry{ID: id, Facets: make(map[string]string)}
	for field, value := range res.Hits[0].Fields {
		str, ok := value.(string)
		if !ok {
			continue
		}
		if field == textField {
			entry.Text = str
		} else {
			entry.Facets[field] = str
		}
	}
	return entry, nil
}

// Close releases the underlying bleve index.
func (k *KeywordIndex) Close() error {
	return k.idx.Close()
}
