package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/Skotchmaster/order_lifecycle/internal/models"
)

const DefaultIndex = "order_item_transitions"

// Indexer keeps a searchable copy of the transition ledger.
type Indexer interface {
	IndexTransition(ctx context.Context, ev models.StatusChange) error
}

type Query struct {
	Text    string
	OrderID string
	ItemID  string
	Status  string
	From    int
	Size    int
}

type ESIndexer struct {
	client *elasticsearch.Client
	index  string
}

func NewClient(url, user, password string) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
}

func NewESIndexer(client *elasticsearch.Client, index string) *ESIndexer {
	if index == "" {
		index = DefaultIndex
	}
	return &ESIndexer{client: client, index: index}
}

func (x *ESIndexer) IndexTransition(ctx context.Context, ev models.StatusChange) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(ev); err != nil {
		return fmt.Errorf("es: encode: %w", err)
	}

	res, err := x.client.Index(
		x.index,
		&buf,
		x.client.Index.WithDocumentID(ev.EventID.String()),
		x.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("es: index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("es: index %s: %s", res.Status(), strings.TrimSpace(string(body)))
	}
	return nil
}

// Search returns transitions matching q, newest first.
func (x *ESIndexer) Search(ctx context.Context, q Query) (int64, []models.StatusChange, error) {
	filters := []map[string]any{}
	for field, v := range map[string]string{"order_id": q.OrderID, "item_id": q.ItemID, "status": q.Status} {
		if v != "" {
			filters = append(filters, map[string]any{"term": map[string]any{field + ".keyword": v}})
		}
	}

	boolQ := map[string]any{"filter": filters}
	if q.Text != "" {
		boolQ["must"] = map[string]any{
			"multi_match": map[string]any{
				"query":     q.Text,
				"fields":    []string{"note^2", "actor", "status"},
				"fuzziness": "AUTO",
			},
		}
	}

	size := q.Size
	if size <= 0 {
		size = 20
	}
	body := map[string]any{
		"query": map[string]any{"bool": boolQ},
		"sort":  []any{map[string]any{"occurred_at": "desc"}},
		"from":  q.From,
		"size":  size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("es: encode query: %w", err)
	}

	res, err := x.client.Search(
		x.client.Search.WithContext(ctx),
		x.client.Search.WithIndex(x.index),
		x.client.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("es: search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("es: search %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct{ Value int64 } `json:"total"`
			Hits  []struct {
				Source models.StatusChange `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("es: decode: %w", err)
	}

	out := make([]models.StatusChange, len(r.Hits.Hits))
	for i, h := range r.Hits.Hits {
		out[i] = h.Source
	}
	return r.Hits.Total.Value, out, nil
}

type Nop struct{}

func (Nop) IndexTransition(context.Context, models.StatusChange) error { return nil }
