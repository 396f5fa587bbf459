package searchengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/ziadkadry99/hostkb/internal/apperr"
)

// ElasticConfig holds connection settings for ElasticEngine.
type ElasticConfig struct {
	Addresses []string
	Username  string
	Password  string
	Index     string
	Transport http.RoundTripper
}

// ElasticEngine implements Engine on an Elasticsearch 8 cluster.
type ElasticEngine struct {
	es    *elasticsearch.Client
	index string
}

// NewElasticEngine creates a client for the configured cluster. No request is
// made until the first call.
func NewElasticEngine(cfg ElasticConfig) (*ElasticEngine, error) {
	if cfg.Index == "" {
		cfg.Index = DefaultIndex
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, apperr.Configuration("search.addresses", "create elasticsearch client: %v", err)
	}
	return &ElasticEngine{es: es, index: cfg.Index}, nil
}

func (e *ElasticEngine) Name() string { return "elasticsearch" }

func (e *ElasticEngine) EnsureIndex(ctx context.Context, dims int) error {
	res, err := e.es.Indices.Exists([]string{e.index}, e.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return apperr.Unavailable(e.Name(), err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return e.checkDims(ctx, dims)
	case http.StatusNotFound:
	default:
		return apperr.Unavailable(e.Name(), fmt.Errorf("index exists check: %s", res.Status()))
	}

	body, err := json.Marshal(indexMapping(dims))
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	res, err = e.es.Indices.Create(e.index,
		e.es.Indices.Create.WithBody(bytes.NewReader(body)),
		e.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return apperr.Unavailable(e.Name(), err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("create index", res)
	}
	return nil
}

func indexMapping(dims int) map[string]any {
	return map[string]any{
		"mappings": map[string]any{
			"properties": map[string]any{
				"chunk_id":    map[string]any{"type": "long"},
				"document_id": map[string]any{"type": "long"},
				"chunk_index": map[string]any{"type": "integer"},
				"title":       map[string]any{"type": "text"},
				"chunk_text":  map[string]any{"type": "text"},
				"owner_id":    map[string]any{"type": "keyword"},
				"property_id": map[string]any{"type": "long"},
				"created_at":  map[string]any{"type": "date"},
				"embedding": map[string]any{
					"type":       "dense_vector",
					"dims":       dims,
					"index":      true,
					"similarity": "cosine",
				},
			},
		},
	}
}

func (e *ElasticEngine) checkDims(ctx context.Context, dims int) error {
	res, err := e.es.Indices.GetMapping(
		e.es.Indices.GetMapping.WithIndex(e.index),
		e.es.Indices.GetMapping.WithContext(ctx),
	)
	if err != nil {
		return apperr.Unavailable(e.Name(), err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("get mapping", res)
	}

	var mapping map[string]struct {
		Mappings struct {
			Properties struct {
				Embedding struct {
					Dims int `json:"dims"`
				} `json:"embedding"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&mapping); err != nil {
		return fmt.Errorf("decode mapping: %w", err)
	}
	for _, m := range mapping {
		if got := m.Mappings.Properties.Embedding.Dims; got != 0 && got != dims {
			return apperr.Configuration("embedding.dimensions",
				"index %s has %d-dimensional vectors, embedder produces %d", e.index, got, dims)
		}
	}
	return nil
}

func (e *ElasticEngine) Index(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, c := range chunks {
		meta := map[string]any{"index": map[string]any{"_index": e.index, "_id": chunkKey(c.ChunkID)}}
		if err := enc.Encode(meta); err != nil {
			return fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("encode chunk %d: %w", c.ChunkID, err)
		}
	}

	res, err := e.es.Bulk(&buf,
		e.es.Bulk.WithContext(ctx),
		e.es.Bulk.WithRefresh("wait_for"),
	)
	if err != nil {
		return apperr.Unavailable(e.Name(), err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("bulk index", res)
	}

	var br struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !br.Errors {
		return nil
	}
	var failed []string
	for _, item := range br.Items {
		for _, r := range item {
			if r.Error != nil {
				failed = append(failed, fmt.Sprintf("%s: %s", r.ID, r.Error.Reason))
			}
		}
	}
	return fmt.Errorf("bulk index: %d of %d chunks failed: %s", len(failed), len(chunks), strings.Join(failed, "; "))
}

func (e *ElasticEngine) Search(ctx context.Context, q Query) ([]Hit, error) {
	body, err := searchBody(q)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search: %w", err)
	}

	res, err := e.es.Search(
		e.es.Search.WithContext(ctx),
		e.es.Search.WithIndex(e.index),
		e.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return nil, apperr.Unavailable(e.Name(), err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, responseError("search", res)
	}

	var sr struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source Chunk   `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	hits := make([]Hit, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		hits = append(hits, Hit{Chunk: h.Source, Score: h.Score})
	}
	return hits, nil
}

// searchBody builds the request for q. The hybrid form sends the keyword
// clause as a "should" booster next to a top-level knn clause; Elasticsearch
// sums both scores. Tenant filters go to both clauses.
func searchBody(q Query) (map[string]any, error) {
	size := q.Size
	if size <= 0 {
		size = 10
	}
	filters := termFilters(q.Filter)
	keyword := map[string]any{
		"multi_match": map[string]any{
			"query":     q.Text,
			"fields":    []string{"chunk_text", "title^2"},
			"fuzziness": "AUTO",
		},
	}
	body := map[string]any{
		"size":    size,
		"_source": map[string]any{"excludes": []string{"embedding"}},
	}

	knn := func() map[string]any {
		k := map[string]any{
			"field":          "embedding",
			"query_vector":   q.Vector,
			"k":              size,
			"num_candidates": max(size*10, 100),
		}
		if len(filters) > 0 {
			k["filter"] = filters
		}
		return k
	}

	switch q.Mode {
	case ModeText:
		b := map[string]any{"must": []any{keyword}}
		if len(filters) > 0 {
			b["filter"] = filters
		}
		body["query"] = map[string]any{"bool": b}
	case ModeVector:
		if len(q.Vector) == 0 {
			return nil, apperr.Validation("vector", "a query vector is required for vector search")
		}
		body["knn"] = knn()
	case ModeHybrid:
		if len(q.Vector) == 0 {
			return nil, apperr.Validation("vector", "a query vector is required for hybrid search")
		}
		b := map[string]any{"should": []any{keyword}}
		if len(filters) > 0 {
			b["filter"] = filters
		}
		body["query"] = map[string]any{"bool": b}
		body["knn"] = knn()
	default:
		return nil, apperr.Validation("search_type", "unknown search type %q", q.Mode)
	}
	return body, nil
}

func termFilters(f Filter) []any {
	var filters []any
	if f.OwnerID != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"owner_id": f.OwnerID}})
	}
	if f.PropertyID != nil {
		filters = append(filters, map[string]any{"term": map[string]any{"property_id": *f.PropertyID}})
	}
	return filters
}

func (e *ElasticEngine) DeleteByDocument(ctx context.Context, documentID int64) (DeleteResult, error) {
	body, err := json.Marshal(map[string]any{
		"query": map[string]any{"term": map[string]any{"document_id": documentID}},
	})
	if err != nil {
		return DeleteResult{}, fmt.Errorf("marshal delete query: %w", err)
	}

	res, err := e.es.DeleteByQuery([]string{e.index}, bytes.NewReader(body),
		e.es.DeleteByQuery.WithContext(ctx),
		e.es.DeleteByQuery.WithRefresh(true),
		e.es.DeleteByQuery.WithConflicts("proceed"),
	)
	if err != nil {
		return DeleteResult{}, apperr.Unavailable(e.Name(), err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return DeleteResult{}, responseError("delete by query", res)
	}

	var dr struct {
		Deleted  int `json:"deleted"`
		Failures []struct {
			ID    string `json:"id"`
			Cause struct {
				Reason string `json:"reason"`
			} `json:"cause"`
		} `json:"failures"`
	}
	if err := json.NewDecoder(res.Body).Decode(&dr); err != nil {
		return DeleteResult{}, fmt.Errorf("decode delete response: %w", err)
	}
	out := DeleteResult{Deleted: dr.Deleted}
	for _, f := range dr.Failures {
		out.Failures = append(out.Failures, fmt.Sprintf("%s: %s", f.ID, f.Cause.Reason))
	}
	return out, nil
}

// responseError turns an error response into a typed error. Server-side and
// availability failures are provider errors; anything else is reported as is.
func responseError(op string, res *esapi.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	err := fmt.Errorf("%s: %s: %s", op, res.Status(), strings.TrimSpace(string(msg)))
	if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
		return apperr.Unavailable("elasticsearch", err)
	}
	return err
}
