// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package traversal

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// =============================================================================
// Weaviate Adapter
// =============================================================================

// WeaviateIndex verifies document presence against Weaviate collections.
//
// # Description
//
// Backs the document index source. Searches use BM25 keyword matching, not
// vector similarity: the gate confirms that claimed documents exist, it
// does not rank or retrieve for answer synthesis, so no vectorizer module
// is required.
//
// # Thread Safety
//
// Safe for concurrent use; the Weaviate client is concurrency-safe.
type WeaviateIndex struct {
	client *weaviate.Client

	// classes maps catalog collection names to Weaviate class names
	// ("documents" -> "Document"). Collections without a mapping use the
	// collection name as-is.
	classes map[string]string
}

// NewWeaviateIndex wraps a Weaviate client.
func NewWeaviateIndex(client *weaviate.Client, classes map[string]string) (*WeaviateIndex, error) {
	if client == nil {
		return nil, fmt.Errorf("weaviate index requires a client")
	}
	if classes == nil {
		classes = map[string]string{}
	}
	return &WeaviateIndex{client: client, classes: classes}, nil
}

// Search returns up to n BM25 hits for the query in the named collection.
func (w *WeaviateIndex) Search(ctx context.Context, collection, query string, n int) ([]SearchHit, error) {
	className := collection
	if mapped, ok := w.classes[collection]; ok {
		className = mapped
	}

	fields := []graphql.Field{
		{Name: "title"},
		{Name: "snippet"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
	}

	bm25 := (&graphql.BM25ArgumentBuilder{}).
		WithQuery(query)

	result, err := w.client.GraphQL().Get().
		WithClassName(className).
		WithBM25(bm25).
		WithLimit(n).
		WithFields(fields...).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate search failed: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate search failed: %s", result.Errors[0].Message)
	}

	return parseSearchResult(result.Data, className)
}

// weaviateHit is the per-object shape inside the GraphQL response.
type weaviateHit struct {
	Title      string `json:"title"`
	Snippet    string `json:"snippet"`
	Additional struct {
		Score string `json:"score"`
	} `json:"_additional"`
}

// parseSearchResult extracts hits from the nested GraphQL response using
// the marshal/unmarshal pattern. Structure: {"Get": {"<Class>": [...]}}.
// The data parameter stays untyped so the client's response map can be
// passed straight through to json.Marshal.
func parseSearchResult(data any, className string) ([]SearchHit, error) {
	rawBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %w", err)
	}

	var parsed struct {
		Get map[string][]weaviateHit `json:"Get"`
	}
	if err := json.Unmarshal(rawBytes, &parsed); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	objects := parsed.Get[className]
	hits := make([]SearchHit, 0, len(objects))
	for _, obj := range objects {
		// Weaviate returns BM25 scores as strings; a missing or malformed
		// score degrades to zero rather than failing the verification.
		score, _ := strconv.ParseFloat(obj.Additional.Score, 64)
		hits = append(hits, SearchHit{
			Title:   obj.Title,
			Snippet: obj.Snippet,
			Score:   score,
		})
	}
	return hits, nil
}

var _ VectorIndex = (*WeaviateIndex)(nil)
