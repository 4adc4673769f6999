// Package store persists review requests, items, AI recommendations, and
// human decisions in PostgreSQL, and enforces the request status lifecycle.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	apperrors "github.com/seoyeon2924/broadcast-compliance-ai-agent/errors"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/review"
)

// Status is the review request lifecycle state.
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusAIRunning Status = "AI_RUNNING"
	StatusReviewing Status = "REVIEWING"
	StatusDone      Status = "DONE"
	StatusRejected  Status = "REJECTED"
)

// validTransitions enumerates the allowed lifecycle moves. An AI run that
// fails rolls the request back to REQUESTED so it can be retried.
var validTransitions = map[Status][]Status{
	StatusRequested: {StatusAIRunning},
	StatusAIRunning: {StatusReviewing, StatusRequested},
	StatusReviewing: {StatusDone, StatusRejected},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Request is one submitted review request.
type Request struct {
	ID            string     `json:"id"`
	ProductName   string     `json:"product_name"`
	Category      string     `json:"category"`
	BroadcastType string     `json:"broadcast_type"`
	Status        Status     `json:"status"`
	RequestedBy   string     `json:"requested_by"`
	CreatedAt     time.Time  `json:"created_at"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
}

// Item is a single phrase under review within a request.
type Item struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	ItemIndex int       `json:"item_index"`
	ItemType  string    `json:"item_type"` // REQUEST_TEXT | EMPHASIS_BAR
	Label     string    `json:"label"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Recommendation is the persisted output of one workflow run for one item.
type Recommendation struct {
	ID            string             `json:"id"`
	ReviewItemID  string             `json:"review_item_id"`
	Judgment      review.Judgment    `json:"judgment"`
	Reason        string             `json:"reason"`
	References    []review.Reference `json:"references"`
	ModelName     string             `json:"model_name"`
	PromptVersion string             `json:"prompt_version"`
	LatencyMS     int                `json:"latency_ms"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Decision is the reviewer's final verdict on a request.
type Decision struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	Decision  Status    `json:"decision"` // DONE | REJECTED
	Comment   string    `json:"comment"`
	DecidedBy string    `json:"decided_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the PostgreSQL-backed review repository.
type Store struct {
	db *sql.DB
}

// New connects to PostgreSQL and creates the review tables if missing.
func New(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	s := &Store{db: db}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *Store) createTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS review_requests (
			id TEXT PRIMARY KEY,
			product_name TEXT NOT NULL,
			category TEXT,
			broadcast_type TEXT,
			status TEXT NOT NULL DEFAULT 'REQUESTED',
			requested_by TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			decided_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS review_items (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL REFERENCES review_requests(id) ON DELETE CASCADE,
			item_index INTEGER NOT NULL,
			item_type TEXT NOT NULL,
			label TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS ai_recommendations (
			id TEXT PRIMARY KEY,
			review_item_id TEXT NOT NULL REFERENCES review_items(id) ON DELETE CASCADE,
			judgment TEXT NOT NULL,
			reason TEXT,
			"references" JSONB,
			model_name TEXT,
			prompt_version TEXT,
			latency_ms INTEGER,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS human_decisions (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL REFERENCES review_requests(id) ON DELETE CASCADE,
			decision TEXT NOT NULL,
			comment TEXT,
			decided_by TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_review_requests_status ON review_requests(status)`,
		`CREATE INDEX IF NOT EXISTS idx_review_items_request ON review_items(request_id)`,
		`CREATE INDEX IF NOT EXISTS idx_ai_recommendations_item ON ai_recommendations(review_item_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateRequest inserts a request and its items in one transaction and
// returns the new request id.
func (s *Store) CreateRequest(ctx context.Context, req *Request, items []Item) (string, error) {
	if req.ProductName == "" {
		return "", fmt.Errorf("%w: product name is required", apperrors.ErrInvalidInput)
	}
	if len(items) == 0 {
		return "", fmt.Errorf("%w: at least one review item is required", apperrors.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	requestID := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO review_requests (id, product_name, category, broadcast_type, status, requested_by)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		requestID, req.ProductName, req.Category, req.BroadcastType, StatusRequested, req.RequestedBy)
	if err != nil {
		return "", fmt.Errorf("failed to insert request: %w", err)
	}

	for i, item := range items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO review_items (id, request_id, item_index, item_type, label, text)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.NewString(), requestID, i, item.ItemType, item.Label, item.Text)
		if err != nil {
			return "", fmt.Errorf("failed to insert item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return requestID, nil
}

// GetRequest loads one request by id.
func (s *Store) GetRequest(ctx context.Context, id string) (*Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, product_name, COALESCE(category, ''), COALESCE(broadcast_type, ''),
		        status, COALESCE(requested_by, ''), created_at, decided_at
		 FROM review_requests WHERE id = $1`, id)

	var req Request
	err := row.Scan(&req.ID, &req.ProductName, &req.Category, &req.BroadcastType,
		&req.Status, &req.RequestedBy, &req.CreatedAt, &req.DecidedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: request %s", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load request: %w", err)
	}
	return &req, nil
}

// ListRequests returns requests newest first, optionally filtered by status.
func (s *Store) ListRequests(ctx context.Context, status Status) ([]Request, error) {
	query := `SELECT id, product_name, COALESCE(category, ''), COALESCE(broadcast_type, ''),
	                 status, COALESCE(requested_by, ''), created_at, decided_at
	          FROM review_requests`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.ProductName, &req.Category, &req.BroadcastType,
			&req.Status, &req.RequestedBy, &req.CreatedAt, &req.DecidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// ListItems returns a request's items in submission order.
func (s *Store) ListItems(ctx context.Context, requestID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, request_id, item_index, item_type, label, text, created_at
		 FROM review_items WHERE request_id = $1 ORDER BY item_index`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.RequestID, &item.ItemIndex,
			&item.ItemType, &item.Label, &item.Text, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// UpdateStatus moves a request through the lifecycle, rejecting transitions
// the state machine does not allow.
func (s *Store) UpdateStatus(ctx context.Context, requestID string, to Status) error {
	req, err := s.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if !CanTransition(req.Status, to) {
		return fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, req.Status, to)
	}

	query := `UPDATE review_requests SET status = $1 WHERE id = $2`
	if to == StatusDone || to == StatusRejected {
		query = `UPDATE review_requests SET status = $1, decided_at = NOW() WHERE id = $2`
	}
	if _, err := s.db.ExecContext(ctx, query, to, requestID); err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return nil
}

// SaveRecommendation persists a workflow result against a review item.
func (s *Store) SaveRecommendation(ctx context.Context, rec *Recommendation) (string, error) {
	refs, err := json.Marshal(rec.References)
	if err != nil {
		return "", fmt.Errorf("failed to marshal references: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ai_recommendations (id, review_item_id, judgment, reason, "references", model_name, prompt_version, latency_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, rec.ReviewItemID, rec.Judgment, rec.Reason, refs, rec.ModelName, rec.PromptVersion, rec.LatencyMS)
	if err != nil {
		return "", fmt.Errorf("failed to insert recommendation: %w", err)
	}
	return id, nil
}

// GetRecommendation loads the latest recommendation for a review item.
func (s *Store) GetRecommendation(ctx context.Context, itemID string) (*Recommendation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, review_item_id, judgment, COALESCE(reason, ''), COALESCE("references", '[]'),
		        COALESCE(model_name, ''), COALESCE(prompt_version, ''), COALESCE(latency_ms, 0), created_at
		 FROM ai_recommendations WHERE review_item_id = $1
		 ORDER BY created_at DESC LIMIT 1`, itemID)

	var rec Recommendation
	var refs []byte
	err := row.Scan(&rec.ID, &rec.ReviewItemID, &rec.Judgment, &rec.Reason, &refs,
		&rec.ModelName, &rec.PromptVersion, &rec.LatencyMS, &rec.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: recommendation for item %s", apperrors.ErrNotFound, itemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendation: %w", err)
	}
	if err := json.Unmarshal(refs, &rec.References); err != nil {
		return nil, fmt.Errorf("failed to unmarshal references: %w", err)
	}
	return &rec, nil
}

// SaveDecision records the human verdict and moves the request to its
// terminal status.
func (s *Store) SaveDecision(ctx context.Context, dec *Decision) (string, error) {
	if dec.Decision != StatusDone && dec.Decision != StatusRejected {
		return "", fmt.Errorf("%w: decision must be DONE or REJECTED", apperrors.ErrInvalidInput)
	}
	if err := s.UpdateStatus(ctx, dec.RequestID, dec.Decision); err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO human_decisions (id, request_id, decision, comment, decided_by)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, dec.RequestID, dec.Decision, dec.Comment, dec.DecidedBy)
	if err != nil {
		return "", fmt.Errorf("failed to insert decision: %w", err)
	}
	return id, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
