package store

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/sdvlabs/campusbot/internal/models"
	"github.com/sdvlabs/campusbot/internal/types"
)

var collectionName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

type VectorStoreConfig struct {
	ConnString  string
	Collections []string
	VectorDim   int
	BatchSize   int
	SearchLimit int
}

// VectorStore keeps one pgvector table per knowledge collection
// (website pages, documentation).
type VectorStore struct {
	config   VectorStoreConfig
	pool     *pgxpool.Pool
	embedder types.Embedder
}

func NewWithConfig(config VectorStoreConfig, embedder types.Embedder) (*VectorStore, error) {
	if len(config.Collections) == 0 {
		config.Collections = []string{"web_pages", "documents"}
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536 // Default for OpenAI embeddings
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.SearchLimit == 0 {
		config.SearchLimit = 5
	}

	for _, collection := range config.Collections {
		if !collectionName.MatchString(collection) {
			return nil, fmt.Errorf("invalid collection name: %q", collection)
		}
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	vs := &VectorStore{
		config:   config,
		pool:     pool,
		embedder: embedder,
	}

	if err := vs.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize() error {
	ctx := context.Background()

	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %v", err)
	}

	for _, collection := range vs.config.Collections {
		createTable := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				url TEXT NOT NULL,
				title TEXT,
				content TEXT,
				chunk_index INTEGER,
				embedding vector(%d),
				metadata JSONB
			)`, collection, vs.config.VectorDim)

		if _, err := vs.pool.Exec(ctx, createTable); err != nil {
			return fmt.Errorf("failed to create table %s: %v", collection, err)
		}

		createIndex := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s_embedding_idx
			ON %s
			USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = 100)`,
			collection, collection)

		if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
			return fmt.Errorf("failed to create index on %s: %v", collection, err)
		}
	}

	return nil
}

// Store embeds every chunk of every document and upserts them into the
// collection's table in a single transaction.
func (vs *VectorStore) Store(ctx context.Context, collection string, docs []models.ProcessedDocument) error {
	if err := vs.checkCollection(collection); err != nil {
		return err
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, url, title, content, chunk_index, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		collection)

	for _, doc := range docs {
		if len(doc.Chunks) == 0 {
			continue
		}

		cleanTitle := sanitizeUTF8(doc.Title)

		chunks := make([]string, len(doc.Chunks))
		for i, chunk := range doc.Chunks {
			chunks[i] = sanitizeUTF8(chunk)
		}

		embeddings := doc.Embedding
		if embeddings == nil {
			embeddings, err = vs.embedder.CreateEmbedding(ctx, chunks)
			if err != nil {
				return fmt.Errorf("failed to create embeddings: %v", err)
			}
		}
		if len(embeddings) != len(chunks) {
			return fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(embeddings))
		}

		for i, chunk := range chunks {
			id := fmt.Sprintf("%s_%d", doc.ID, i)

			_, err = tx.Exec(ctx, stmt,
				id,
				doc.URL,
				cleanTitle,
				chunk,
				i,
				pgvector.NewVector(embeddings[i]),
				doc.Metadata,
			)
			if err != nil {
				return fmt.Errorf("failed to insert document: %v", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}

// Query returns the limit closest chunks by cosine distance.
func (vs *VectorStore) Query(ctx context.Context, collection string, queryEmbedding []float32, limit int) ([]models.Document, error) {
	if err := vs.checkCollection(collection); err != nil {
		return nil, err
	}

	if limit == 0 {
		limit = vs.config.SearchLimit
	}

	query := fmt.Sprintf(`
		SELECT id, url, title, content, metadata
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		collection)

	embedding := pgvector.NewVector(queryEmbedding)
	rows, err := vs.pool.Query(ctx, query, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %v", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		err := rows.Scan(
			&doc.ID,
			&doc.URL,
			&doc.Title,
			&doc.Content,
			&doc.Metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}
		doc.Collection = collection
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// Count returns the number of stored chunks in a collection.
func (vs *VectorStore) Count(ctx context.Context, collection string) (int, error) {
	if err := vs.checkCollection(collection); err != nil {
		return 0, err
	}

	var count int
	err := vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", collection)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %v", err)
	}
	return count, nil
}

// Clear removes every chunk from a collection, used before a full rescrape.
func (vs *VectorStore) Clear(ctx context.Context, collection string) error {
	if err := vs.checkCollection(collection); err != nil {
		return err
	}

	_, err := vs.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s", collection))
	if err != nil {
		return fmt.Errorf("failed to clear collection %s: %v", collection, err)
	}
	return nil
}

func (vs *VectorStore) checkCollection(collection string) error {
	for _, c := range vs.config.Collections {
		if c == collection {
			return nil
		}
	}
	return fmt.Errorf("unknown collection: %q", collection)
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
