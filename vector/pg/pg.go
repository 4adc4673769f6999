package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/vector"
)

// Store implements vector.Store using PostgreSQL with the pgvector extension
type Store struct {
	db        *sql.DB
	dimension int
	tableName string
}

// Config holds pgvector configuration
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	SSLMode   string
	Dimension int    // Embedding dimension (default: 1536 for OpenAI)
	TableName string // Table name (default: passages)
}

// DefaultConfig returns default pgvector configuration
func DefaultConfig() *Config {
	return &Config{
		Host:      "127.0.0.1",
		Port:      5432,
		User:      "postgres",
		Password:  "",
		DBName:    "compliance",
		SSLMode:   "disable",
		Dimension: 1536,
		TableName: "passages",
	}
}

// New creates a new pgvector-based vector store
func New(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &Store{
		db:        db,
		dimension: config.Dimension,
		tableName: config.TableName,
	}

	if err := store.setup(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to setup pgvector: %w", err)
	}

	return store, nil
}

func (s *Store) setup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTableSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(255) NOT NULL,
		collection VARCHAR(64) NOT NULL,
		content TEXT NOT NULL,
		metadata JSONB,
		embedding vector(%d) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id)
	)`, s.tableName, s.dimension)

	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return nil
}

// Add inserts or replaces records in their collections
func (s *Store) Add(ctx context.Context, records ...*vector.Record) error {
	for _, rec := range records {
		if rec == nil {
			return fmt.Errorf("record cannot be nil")
		}
		if rec.ID == "" {
			return fmt.Errorf("record ID cannot be empty")
		}
		if len(rec.Vector) != s.dimension {
			return fmt.Errorf("record %s has dimension %d, store expects %d", rec.ID, len(rec.Vector), s.dimension)
		}

		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", rec.ID, err)
		}

		query := fmt.Sprintf(`
		INSERT INTO %s (id, collection, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (collection, id) DO UPDATE
		SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`,
			s.tableName)

		if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.Collection, rec.Content, meta, encodeVector(rec.Vector)); err != nil {
			return fmt.Errorf("failed to insert record %s: %w", rec.ID, err)
		}
	}
	return nil
}

// Search finds records similar to the query vector, sorted by descending score
func (s *Store) Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]vector.Hit, error) {
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("query vector has dimension %d, store expects %d", len(queryVector), s.dimension)
	}
	if topK <= 0 {
		topK = 10
	}

	query := fmt.Sprintf(`
	SELECT id, content, metadata, embedding %[2]s $1 AS distance
	FROM %[1]s
	WHERE collection = $2
	ORDER BY distance ASC
	LIMIT $3`, s.tableName, vector.CosineSimilarityOperator())

	rows, err := s.db.QueryContext(ctx, query, encodeVector(queryVector), collection, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}
	defer rows.Close()

	var hits []vector.Hit
	for rows.Next() {
		var (
			id       string
			content  string
			metaRaw  []byte
			distance float64
		)
		if err := rows.Scan(&id, &content, &metaRaw, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var metadata map[string]string
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata for %s: %w", id, err)
			}
		}

		score := float32(1.0 - distance)
		if score < 0 {
			score = 0
		}
		hits = append(hits, vector.Hit{
			Record: vector.Record{
				ID:         id,
				Collection: collection,
				Content:    content,
				Metadata:   metadata,
			},
			Score: score,
		})
	}
	return hits, rows.Err()
}

// Delete removes a record by ID
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE collection = $1 AND id = $2", s.tableName)
	if _, err := s.db.ExecContext(ctx, query, collection, id); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}

// Clear removes all records in a collection
func (s *Store) Clear(ctx context.Context, collection string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE collection = $1", s.tableName)
	if _, err := s.db.ExecContext(ctx, query, collection); err != nil {
		return fmt.Errorf("failed to clear collection %s: %w", collection, err)
	}
	return nil
}

// Count returns the number of records in a collection
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE collection = $1", s.tableName)
	var count int
	if err := s.db.QueryRowContext(ctx, query, collection).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count collection %s: %w", collection, err)
	}
	return count, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// encodeVector renders a float32 slice in pgvector literal syntax, e.g. [1,2,3]
func encodeVector(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
