// Package knowledge is the Weaviate-backed knowledge base: historical
// incidents and investigation playbooks, searched semantically with Azure
// OpenAI embeddings.
package knowledge

import (
	"context"
	"fmt"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	wmodels "github.com/weaviate/weaviate/entities/models"
	"go.uber.org/zap"
)

const (
	incidentClass = "IncidentDoc"
	playbookClass = "PlaybookChunk"

	// defaultResults is how many hits each search returns.
	defaultResults = 3
	// lowConfidenceDistance marks hits beyond this cosine distance as low
	// confidence.
	lowConfidenceDistance = 0.35
)

// metadataFields lists the queryable properties per class, returned as hit
// metadata alongside the document text.
var metadataFields = map[string][]string{
	incidentClass: {"title", "severity", "status", "source", "mitreTechniques"},
	playbookClass: {"playbookId", "incidentType", "mitreTechniques", "section"},
}

// Embedder turns text into a vector. The llm client implements this.
type Embedder interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
}

// Hit is one knowledge-base match. Distance is deliberately not exposed,
// only the derived confidence label.
type Hit struct {
	Document   string         `json:"document"`
	Metadata   map[string]any `json:"metadata"`
	Confidence string         `json:"confidence"`
}

// SearchResult is the serializable outcome of a knowledge-base search.
// LowConfidenceWarning is set only when every hit is low confidence.
type SearchResult struct {
	Type                 string `json:"type"`
	Results              []Hit  `json:"results"`
	LowConfidenceWarning bool   `json:"low_confidence_warning"`
	Total                int    `json:"total"`
}

// Document is an embeddable knowledge-base entry.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// Store wraps the two Weaviate collections.
type Store struct {
	client   *weaviate.Client
	embedder Embedder
	logger   *zap.Logger
}

// NewStore connects to Weaviate. Vectors are computed client-side through
// the embedder, so the classes use vectorizer "none".
func NewStore(host, scheme string, embedder Embedder, logger *zap.Logger) (*Store, error) {
	client, err := weaviate.NewClient(weaviate.Config{Host: host, Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("knowledge: connect weaviate: %w", err)
	}
	return &Store{
		client:   client,
		embedder: embedder,
		logger:   logger.Named("knowledge"),
	}, nil
}

// EnsureSchema creates the incident and playbook classes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, class := range []string{incidentClass, playbookClass} {
		exists, err := s.client.Schema().ClassExistenceChecker().WithClassName(class).Do(ctx)
		if err != nil {
			return fmt.Errorf("knowledge: check class %s: %w", class, err)
		}
		if exists {
			continue
		}
		properties := []*wmodels.Property{
			{Name: "document", DataType: []string{"text"}},
		}
		for _, name := range metadataFields[class] {
			properties = append(properties, &wmodels.Property{Name: name, DataType: []string{"text"}})
		}
		err = s.client.Schema().ClassCreator().WithClass(&wmodels.Class{
			Class:      class,
			Vectorizer: "none",
			Properties: properties,
		}).Do(ctx)
		if err != nil {
			return fmt.Errorf("knowledge: create class %s: %w", class, err)
		}
		s.logger.Info("created knowledge class", zap.String("class", class))
	}
	return nil
}

// UpsertIncidents embeds and stores incident documents.
func (s *Store) UpsertIncidents(ctx context.Context, docs []Document) (int, error) {
	return s.upsert(ctx, incidentClass, docs)
}

// UpsertPlaybooks embeds and stores playbook chunks.
func (s *Store) UpsertPlaybooks(ctx context.Context, docs []Document) (int, error) {
	return s.upsert(ctx, playbookClass, docs)
}

func (s *Store) upsert(ctx context.Context, class string, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	objects := make([]*wmodels.Object, 0, len(docs))
	for _, doc := range docs {
		vec, err := s.embedder.CreateEmbedding(ctx, doc.Text)
		if err != nil {
			return 0, fmt.Errorf("knowledge: embed %s: %w", doc.ID, err)
		}
		properties := map[string]any{"document": doc.Text}
		for k, v := range doc.Metadata {
			properties[k] = v
		}
		objects = append(objects, &wmodels.Object{
			Class:      class,
			ID:         strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(class+"/"+doc.ID)).String()),
			Properties: properties,
			Vector:     vec,
		})
	}
	_, err := s.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("knowledge: upsert %s: %w", class, err)
	}
	s.logger.Debug("upserted documents", zap.String("class", class), zap.Int("count", len(docs)))
	return len(docs), nil
}

// SearchSimilarIncidents finds historical incidents resembling the query.
func (s *Store) SearchSimilarIncidents(ctx context.Context, query string, n int) (*SearchResult, error) {
	return s.search(ctx, incidentClass, "similar_incidents", query, n)
}

// SearchPlaybooks finds playbook sections relevant to the query.
func (s *Store) SearchPlaybooks(ctx context.Context, query string, n int) (*SearchResult, error) {
	return s.search(ctx, playbookClass, "playbooks", query, n)
}

func (s *Store) search(ctx context.Context, class, resultType, query string, n int) (*SearchResult, error) {
	if n <= 0 {
		n = defaultResults
	}
	vec, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("knowledge: embed query: %w", err)
	}

	fields := []graphql.Field{{Name: "document"}}
	for _, name := range metadataFields[class] {
		fields = append(fields, graphql.Field{Name: name})
	}
	fields = append(fields, graphql.Field{Name: "_additional", Fields: []graphql.Field{{Name: "distance"}}})

	resp, err := s.client.GraphQL().Get().
		WithClassName(class).
		WithFields(fields...).
		WithNearVector(s.client.GraphQL().NearVectorArgBuilder().WithVector(vec)).
		WithLimit(n).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("knowledge: search %s: %w", class, err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("knowledge: search %s: %s", class, resp.Errors[0].Message)
	}

	return formatResults(resultType, extractHits(resp.Data, class)), nil
}

// rawHit pairs a raw match with its reported distance before confidence
// labeling.
type rawHit struct {
	Document string
	Metadata map[string]any
	Distance float64
}

func extractHits(data map[string]wmodels.JSONObject, class string) []rawHit {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil
	}
	items, ok := get[class].([]any)
	if !ok {
		return nil
	}

	hits := make([]rawHit, 0, len(items))
	for _, item := range items {
		props, ok := item.(map[string]any)
		if !ok {
			continue
		}
		hit := rawHit{Metadata: map[string]any{}}
		for k, v := range props {
			switch k {
			case "document":
				hit.Document, _ = v.(string)
			case "_additional":
				if add, ok := v.(map[string]any); ok {
					hit.Distance, _ = add["distance"].(float64)
				}
			default:
				hit.Metadata[k] = v
			}
		}
		hits = append(hits, hit)
	}
	return hits
}

// formatResults labels hits by confidence. The warning fires only when all
// hits are low confidence and at least one hit exists.
func formatResults(resultType string, hits []rawHit) *SearchResult {
	items := make([]Hit, 0, len(hits))
	allLow := true
	for _, h := range hits {
		confidence := "normal"
		if h.Distance > lowConfidenceDistance {
			confidence = "low"
		} else {
			allLow = false
		}
		items = append(items, Hit{Document: h.Document, Metadata: h.Metadata, Confidence: confidence})
	}
	return &SearchResult{
		Type:                 resultType,
		Results:              items,
		LowConfidenceWarning: allLow && len(items) > 0,
		Total:                len(items),
	}
}
