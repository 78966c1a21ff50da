package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/bug-analyzer/backend/pkg/logger"
)

// Client wraps the Milvus collection that backs corpus-wide similarity
// search. The per-request duplicate detector works on fetched candidates in
// memory; this index answers "what in the whole corpus looks like this bug".
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
}

// IndexedBug is one bug row in the vector collection.
type IndexedBug struct {
	BugID     int
	Embedding []float32
	Title     string
	AreaPath  string
	State     string
	Project   string
	IndexedAt time.Time
}

// SearchResult is one nearest-neighbor hit.
type SearchResult struct {
	BugID    int
	Title    string
	AreaPath string
	State    string
	Project  string
	Score    float32
}

func NewClient(endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) CreateCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Bug title and description embeddings",
		Fields: []*entity.Field{
			{
				Name:       "bug_id",
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     false,
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(m.vectorDim),
				},
			},
			{
				Name:     "title",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "1024",
				},
			},
			{
				Name:     "area_path",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "state",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "project",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     "indexed_at",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, _ := entity.NewIndexIvfFlat(entity.IP, 1024)
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Upsert(ctx context.Context, bugs []IndexedBug) error {
	if len(bugs) == 0 {
		return nil
	}

	bugIDs := make([]int64, len(bugs))
	embeddings := make([][]float32, len(bugs))
	titles := make([]string, len(bugs))
	areaPaths := make([]string, len(bugs))
	states := make([]string, len(bugs))
	projects := make([]string, len(bugs))
	indexedAts := make([]int64, len(bugs))

	for i, bug := range bugs {
		bugIDs[i] = int64(bug.BugID)
		embeddings[i] = bug.Embedding
		titles[i] = bug.Title
		areaPaths[i] = bug.AreaPath
		states[i] = bug.State
		projects[i] = bug.Project
		indexedAts[i] = bug.IndexedAt.Unix()
	}

	_, err := m.client.Upsert(
		ctx,
		m.collectionName,
		"",
		entity.NewColumnInt64("bug_id", bugIDs),
		entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("area_path", areaPaths),
		entity.NewColumnVarChar("state", states),
		entity.NewColumnVarChar("project", projects),
		entity.NewColumnInt64("indexed_at", indexedAts),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert bugs: %w", err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Bugs upserted into vector index", zap.Int("count", len(bugs)))

	return nil
}

func (m *Client) Search(ctx context.Context, queryEmbedding []float32, topK int, project, areaPath string) ([]SearchResult, error) {
	var conditions []string
	if project != "" {
		conditions = append(conditions, fmt.Sprintf(`project == "%s"`, project))
	}
	if areaPath != "" {
		conditions = append(conditions, fmt.Sprintf(`area_path == "%s"`, areaPath))
	}
	expr := strings.Join(conditions, " && ")

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{},
		expr,
		[]string{"bug_id", "title", "area_path", "state", "project"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.IP,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			bugIDCol := sr.Fields.GetColumn("bug_id")
			titleCol := sr.Fields.GetColumn("title")
			areaPathCol := sr.Fields.GetColumn("area_path")
			stateCol := sr.Fields.GetColumn("state")
			projectCol := sr.Fields.GetColumn("project")

			bugID, _ := bugIDCol.Get(i)
			title, _ := titleCol.Get(i)
			area, _ := areaPathCol.Get(i)
			state, _ := stateCol.Get(i)
			proj, _ := projectCol.Get(i)

			results = append(results, SearchResult{
				BugID:    int(bugID.(int64)),
				Title:    title.(string),
				AreaPath: area.(string),
				State:    state.(string),
				Project:  proj.(string),
				Score:    sr.Scores[i],
			})
		}
	}

	logger.Info("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
	)

	return results, nil
}
