package opensearch

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/BRO3886/searchsync/internal/config"
	"github.com/BRO3886/searchsync/internal/search"
	external "github.com/opensearch-project/opensearch-go/v2"
	api "github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

type openSearchBackend struct {
	client *external.Client
}

// New builds a search.Backend over an OpenSearch cluster.
func New(ctx context.Context, c *config.Config) (search.Backend, error) {
	client, err := external.NewClient(external.Config{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		Addresses:  c.Opensearch.URLs,
		MaxRetries: c.Opensearch.MaxRetries,
		// Username:  c.Opensearch.Username,
		// Password:  c.Opensearch.Password, //disable security plugin = true in docker-compose.yaml
	})
	if err != nil {
		return nil, err
	}

	return &openSearchBackend{client: client}, nil
}

func readResponse(resp *api.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.IsError() {
		return nil, &search.StatusError{Status: resp.StatusCode, Body: string(body)}
	}

	if resp.HasWarnings() {
		log.Printf("[opensearch] warnings: %v", resp.Warnings())
	}

	return body, nil
}

func (s *openSearchBackend) EnsureIndex(ctx context.Context, index string) error {
	if resp, err := s.client.Indices.Exists([]string{index}); err == nil {
		// early return if index already exists
		if resp.StatusCode == http.StatusOK {
			return nil
		}
	}

	settings := strings.NewReader(`{
        "settings": {
            "index": {
                "number_of_shards": 1,
                "number_of_replicas": 0
            }
        }
    }`)

	req := api.IndicesCreateRequest{
		Index: index,
		Body:  settings,
	}

	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}

	if _, err := readResponse(resp); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	log.Printf("[opensearch] index created: %s", index)

	return nil
}

func (s *openSearchBackend) PutMapping(ctx context.Context, index string, properties map[string]any) error {
	body, err := json.Marshal(map[string]any{"properties": properties})
	if err != nil {
		return err
	}

	req := api.IndicesPutMappingRequest{
		Index: []string{index},
		Body:  strings.NewReader(string(body)),
	}

	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}

	if _, err := readResponse(resp); err != nil {
		return fmt.Errorf("failed to put mapping: %w", err)
	}

	return nil
}

func (s *openSearchBackend) Index(ctx context.Context, index, id string, body map[string]any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req := api.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       strings.NewReader(string(jsonData)),
	}

	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}

	_, err = readResponse(resp)
	return err
}

func (s *openSearchBackend) Update(ctx context.Context, index, id string, body map[string]any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req := api.UpdateRequest{
		Index:      index,
		DocumentID: id,
		Body:       strings.NewReader(string(jsonData)),
	}

	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}

	_, err = readResponse(resp)
	return err
}

func (s *openSearchBackend) Delete(ctx context.Context, index, id string) error {
	req := api.DeleteRequest{
		Index:      index,
		DocumentID: id,
	}

	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}

	if _, err := readResponse(resp); err != nil {
		return err
	}

	log.Printf("[opensearch] document deleted: %v", id)

	return nil
}

func (s *openSearchBackend) Bulk(ctx context.Context, ops []search.BulkOp) error {
	bulkReq := strings.Builder{}
	for _, op := range ops {
		switch op.Action {
		case search.ActionDelete:
			bulkReq.WriteString(fmt.Sprintf(`{"delete": {"_index": "%s", "_id": "%s"}}`, op.Index, op.Id))
			bulkReq.WriteString("\n")
		case search.ActionIndex, search.ActionUpdate:
			if len(op.Body) == 0 {
				log.Printf("[opensearch] [bulk] empty document: %v", op.Id)
				continue
			}
			jsonData, err := json.Marshal(op.Body)
			if err != nil {
				log.Printf("[opensearch] [bulk] failed to marshal document: %v", err)
				continue
			}
			bulkReq.WriteString(fmt.Sprintf(`{"%s": {"_index": "%s", "_id": "%s"}}`, op.Action, op.Index, op.Id))
			bulkReq.WriteString(fmt.Sprintf("\n%s\n", string(jsonData)))
		}
	}

	reqBody := bulkReq.String()
	if reqBody == "" {
		return nil
	}

	req := api.BulkRequest{
		Body: strings.NewReader(reqBody),
	}

	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}

	if _, err := readResponse(resp); err != nil {
		return fmt.Errorf("failed to flush documents: %w", err)
	}

	return nil
}

func (s *openSearchBackend) Count(ctx context.Context, index string) (int64, error) {
	req := api.CountRequest{
		Index: []string{index},
	}

	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return 0, err
	}

	body, err := readResponse(resp)
	if err != nil {
		return 0, err
	}

	var result struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, err
	}

	return result.Count, nil
}

func (s *openSearchBackend) Search(ctx context.Context, index, query string) ([]search.Document, error) {
	req := api.SearchRequest{
		Index: []string{index},
		Body:  strings.NewReader(query),
	}

	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, err
	}

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source search.Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	docs := make([]search.Document, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		docs = append(docs, hit.Source)
	}

	return docs, nil
}

func (s *openSearchBackend) Refresh(ctx context.Context, index string) error {
	req := api.IndicesRefreshRequest{
		Index: []string{index},
	}

	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}

	if _, err := readResponse(resp); err != nil {
		return fmt.Errorf("failed to refresh index: %w", err)
	}

	return nil
}
