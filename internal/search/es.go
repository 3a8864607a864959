package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/example/image-posts/internal/config"
	"github.com/example/image-posts/internal/models"
)

// ErrDisabled is returned by Search when no Elasticsearch address is configured.
var ErrDisabled = errors.New("search is disabled")

const defaultSize = 50

// Hit is one matching post as stored in the index.
type Hit struct {
	ID         uint      `json:"id"`
	Title      string    `json:"title"`
	Cover      string    `json:"cover"`
	UploadedOn time.Time `json:"uploaded_on"`
}

type Elastic struct {
	Client *elasticsearch.Client
	Index  string
}

func NewElastic(cfg *config.Config) (*Elastic, error) {
	cfgES := elasticsearch.Config{
		Addresses: []string{cfg.ElasticAddr},
	}
	if cfg.ElasticUsername != "" {
		cfgES.Username = cfg.ElasticUsername
		cfgES.Password = cfg.ElasticPassword
	}
	client, err := elasticsearch.NewClient(cfgES)
	if err != nil {
		return nil, err
	}
	return &Elastic{Client: client, Index: cfg.ElasticIndex}, nil
}

func (e *Elastic) EnsurePostsIndex(ctx context.Context) error {
	res, err := e.Client.Indices.Exists([]string{e.Index}, e.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	mapping := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":          map[string]string{"type": "long"},
				"title":       map[string]string{"type": "text"},
				"cover":       map[string]string{"type": "keyword"},
				"uploaded_on": map[string]string{"type": "date"},
			},
		},
	}
	b, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	createRes, err := e.Client.Indices.Create(e.Index,
		e.Client.Indices.Create.WithContext(ctx),
		e.Client.Indices.Create.WithBody(bytes.NewReader(b)))
	if err != nil {
		return err
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}
	return nil
}

func (e *Elastic) IndexPost(ctx context.Context, p *models.Post) error {
	b, err := json.Marshal(Hit{ID: p.ID, Title: p.Title, Cover: p.Cover, UploadedOn: p.UploadedOn})
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      e.Index,
		DocumentID: strconv.FormatUint(uint64(p.ID), 10),
		Body:       bytes.NewReader(b),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, e.Client)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index error: %s", res.String())
	}
	return nil
}

// Search runs a full-text match on post titles, best matches first.
func (e *Elastic) Search(ctx context.Context, query string) ([]Hit, error) {
	body := map[string]interface{}{
		"size": defaultSize,
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"title": query,
			},
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	res, err := e.Client.Search(
		e.Client.Search.WithContext(ctx),
		e.Client.Search.WithIndex(e.Index),
		e.Client.Search.WithBody(bytes.NewReader(b)),
		e.Client.Search.WithTrackTotalHits(true),
		e.Client.Search.WithTimeout(10*time.Second),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source Hit `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	results := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		results = append(results, h.Source)
	}
	return results, nil
}

// Noop stands in for Elastic when search is not configured.
type Noop struct{}

func (Noop) IndexPost(context.Context, *models.Post) error { return nil }

func (Noop) Search(context.Context, string) ([]Hit, error) { return nil, ErrDisabled }
