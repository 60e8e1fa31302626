// Package search mirrors intents into Elasticsearch and uses its kNN search to
// prefetch match candidates.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "intent-broker/internal/common/errors"
	"intent-broker/internal/common/logger"
	"intent-broker/internal/matching/embedding"
	"intent-broker/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

type IntentIndex struct {
	client    *elasticsearch.Client
	index     string
	dimension int
	logger    logger.Logger
}

func NewIntentIndex(client *elasticsearch.Client, index string, dimension int, log logger.Logger) *IntentIndex {
	return &IntentIndex{
		client:    client,
		index:     index,
		dimension: dimension,
		logger:    log.WithFields(map[string]interface{}{"component": "intent-index", "index": index}),
	}
}

func (x *IntentIndex) mapping() map[string]interface{} {
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"userId":      map[string]interface{}{"type": "keyword"},
				"kind":        map[string]interface{}{"type": "keyword"},
				"status":      map[string]interface{}{"type": "keyword"},
				"assetType":   map[string]interface{}{"type": "keyword"},
				"title":       map[string]interface{}{"type": "text"},
				"description": map[string]interface{}{"type": "text"},
				"keywords":    map[string]interface{}{"type": "keyword"},
				"createdAt":   map[string]interface{}{"type": "date"},
				"embedding": map[string]interface{}{
					"type":       "dense_vector",
					"dims":       x.dimension,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}
}

// EnsureIndex creates the intents index with its vector mapping if missing.
func (x *IntentIndex) EnsureIndex(ctx context.Context) error {
	res, err := x.client.Indices.Exists([]string{x.index}, x.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return apperrors.NewSearchQueryError("index_exists", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(x.mapping())
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	res, err = x.client.Indices.Create(x.index,
		x.client.Indices.Create.WithContext(ctx),
		x.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return apperrors.NewSearchQueryError("create_index", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewSearchQueryError("create_index", responseError(res))
	}

	x.logger.Info("created intent index", map[string]interface{}{"dimension": x.dimension})
	return nil
}

type intentDoc struct {
	UserID      string    `json:"userId"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	AssetType   string    `json:"assetType,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Keywords    []string  `json:"keywords,omitempty"`
	CreatedAt   string    `json:"createdAt"`
	Embedding   []float64 `json:"embedding,omitempty"`
}

// Index upserts the intent document. Intents without a usable embedding are
// indexed without the vector and never come back from Similar.
func (x *IntentIndex) Index(ctx context.Context, in *models.Intent) error {
	doc := intentDoc{
		UserID:      in.UserID,
		Kind:        string(in.Kind),
		Status:      string(in.Status),
		AssetType:   in.AssetCategory(),
		Title:       in.Title,
		Description: in.Description,
		Keywords:    in.Keywords,
		CreatedAt:   in.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if embedding.Available(in.Embedding, x.dimension) {
		doc.Embedding = in.Embedding
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	req := esapi.IndexRequest{
		Index:      x.index,
		DocumentID: in.ID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, x.client)
	if err != nil {
		return apperrors.NewSearchQueryError("index_intent", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return apperrors.NewSearchQueryError("index_intent", responseError(res))
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID    string  `json:"_id"`
			Score float64 `json:"_score"`
		} `json:"hits"`
	} `json:"hits"`
}

// Similar returns up to size active intent IDs nearest to vector, excluding
// intents owned by excludeUser.
func (x *IntentIndex) Similar(ctx context.Context, vector []float64, excludeUser string, size int) ([]string, error) {
	numCandidates := size * 5
	if numCandidates < 100 {
		numCandidates = 100
	}

	query := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "embedding",
			"query_vector":   vector,
			"k":              size,
			"num_candidates": numCandidates,
			"filter": map[string]interface{}{
				"bool": map[string]interface{}{
					"filter":   []interface{}{map[string]interface{}{"term": map[string]interface{}{"status": string(models.IntentActive)}}},
					"must_not": []interface{}{map[string]interface{}{"term": map[string]interface{}{"userId": excludeUser}}},
				},
			},
		},
		"_source": false,
		"size":    size,
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(x.index),
		x.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, apperrors.NewSearchQueryError("knn_search", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, apperrors.NewSearchQueryError("knn_search", responseError(res))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewSearchQueryError("knn_search", err)
	}

	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}

func responseError(res *esapi.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	return fmt.Errorf("%s: %s", res.Status(), string(raw))
}
