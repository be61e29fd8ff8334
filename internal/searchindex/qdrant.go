package searchindex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"matchbook/internal/contextutil"
)

// recordIDField carries the record's own id in the point payload. Qdrant
// point ids must be UUIDs, so non-UUID record ids cannot double as point
// ids and are recovered from the payload instead.
const recordIDField = "record_id"

// pointIDNamespace salts the UUIDs derived from non-UUID record ids.
var pointIDNamespace = uuid.MustParse("9aa92d19-4b84-4a4c-a3a4-cf1f072eac11")

// pointID maps a record id onto a valid Qdrant point id. UUID record ids
// pass through unchanged; anything else (caller-supplied ids can be
// arbitrary strings) is hashed into a stable UUID so the same record always
// lands on the same point.
func pointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(pointIDNamespace, []byte(id)).String()
}

// Embedder turns text into fixed-size vectors. Satisfied by
// embedding.Client; declared here so the index does not depend on the
// concrete client.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex implements Index with Qdrant: the searchable text is embedded
// on every upsert and ranked by cosine similarity at query time.
type VectorIndex struct {
	client     *qdrant.Client
	embedder   Embedder
	collection string
}

// NewVectorIndex creates a Qdrant-backed index client.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port (typically 6334) will be derived from the HTTP port.
func NewVectorIndex(urlStr, collection string, embedder Embedder) (*VectorIndex, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	// Extract port from URL, default to 6333 for HTTP
	port := 6334 // Default gRPC port
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err == nil {
			// gRPC port is typically HTTP port + 1
			port = httpPort + 1
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	return &VectorIndex{
		client:     client,
		embedder:   embedder,
		collection: collection,
	}, nil
}

// EnsureCollection ensures the collection exists with the specified vector
// size, creating it when absent and validating the size when present.
func (v *VectorIndex) EnsureCollection(ctx context.Context, vectorSize int) error {
	logger := contextutil.LoggerFromContext(ctx)

	exists, err := v.client.CollectionExists(ctx, v.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		logger.InfoContext(ctx, "creating collection", "collection", v.collection, "vector_size", vectorSize)
		err := v.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: v.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(vectorSize),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		return nil
	}

	info, err := v.client.GetCollectionInfo(ctx, v.collection)
	if err != nil {
		return fmt.Errorf("failed to get collection info: %w", err)
	}

	config := info.Config
	if config == nil || config.Params == nil {
		return fmt.Errorf("collection config is invalid")
	}
	vectorsConfig := config.Params.GetVectorsConfig()
	if vectorsConfig == nil {
		return fmt.Errorf("collection vectors config is invalid")
	}
	params := vectorsConfig.GetParams()
	if params == nil {
		return fmt.Errorf("collection vector params are invalid")
	}
	if int(params.Size) != vectorSize {
		return fmt.Errorf("collection vector size mismatch: expected %d, got %d", vectorSize, params.Size)
	}

	logger.InfoContext(ctx, "collection validated", "collection", v.collection, "vector_size", vectorSize)
	return nil
}

// Upsert embeds the entry text and replaces any prior point with the same id.
func (v *VectorIndex) Upsert(ctx context.Context, entry Entry) error {
	logger := contextutil.LoggerFromContext(ctx)

	vectors, err := v.embedder.EmbedTexts(ctx, []string{entry.Text})
	if err != nil {
		return fmt.Errorf("failed to embed entry text: %w", err)
	}
	if len(vectors) == 0 {
		return fmt.Errorf("no embedding returned for entry %s", entry.ID)
	}

	payload := make(map[string]any, len(entry.Facets)+2)
	payload[recordIDField] = entry.ID
	payload[textField] = entry.Text
	for field, value := range entry.Facets {
		payload[field] = value
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(pointID(entry.ID)),
		Vectors: qdrant.NewVectors(vectors[0]...),
		Payload: qdrant.NewValueMap(payload),
	}

	_, err = v.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: v.collection,
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to upsert point", "id", entry.ID, "error", err)
		return fmt.Errorf("failed to upsert point: %w", err)
	}
	return nil
}

// Delete removes the point. Absent ids are a no-op.
func (v *VectorIndex) Delete(ctx context.Context, id string) error {
	_, err := v.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: v.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewID(pointID(id))),
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}
	return nil
}

// Query embeds the query text and runs a similarity search. Qdrant returns
// points ordered best-first by cosine similarity.
func (v *VectorIndex) Query(ctx context.Context, text string, facets map[string]string, limit int) ([]RankedID, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}

	vectors, err := v.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query text: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}

	var filter *qdrant.Filter
	if len(facets) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(facets))
		for field, value := range facets {
			conditions = append(conditions, qdrant.NewMatch(field, value))
		}
		filter = &qdrant.Filter{Must: conditions}
	}

	qLimit := uint64(limit)
	scored, err := v.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: v.collection,
		Query:          qdrant.NewQuery(vectors[0]...),
		Limit:          &qLimit,
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		logger.ErrorContext(ctx, "vector query failed", "error", err)
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	ranked := make([]RankedID, 0, len(scored))
	for _, point := range scored {
		id := ""
		if val := point.Payload[recordIDField]; val != nil {
			id = val.GetStringValue()
		}
		if id == "" && point.Id != nil {
			// Points written before record ids were carried in the payload.
			id = point.Id.GetUuid()
		}
		ranked = append(ranked, RankedID{ID: id, Score: float64(point.Score)})
	}
	logger.DebugContext(ctx, "vector query completed", "hits", len(ranked), "limit", limit)
	return ranked, nil
}

// Get loads a single point's payload.
func (v *VectorIndex) Get(ctx context.Context, id string) (*Entry, error) {
	points, err := v.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: v.collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(pointID(id))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load point: %w", err)
	}
	if len(points) == 0 {
		return nil, ErrNotFound
	}

	entry := &Entry{ID: id, Facets: make(map[string]string)}
	for field, value := range points[0].Payload {
		if value == nil || field == recordIDField {
			continue
		}
		str := value.GetStringValue()
		if field == textField {
			entry.Text = str
		} else if str != "" {
			entry.Facets[field] = str
		}
	}
	return entry, nil
}
