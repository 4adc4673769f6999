// Package service coordinates the request-management layer: it drives the
// review workflow for every item of a request, persists the recommendations,
// and moves the request through its status lifecycle.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/pkg/logging"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/pkg/telemetry"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/review"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/store"
)

// Runner executes the review workflow for one phrase.
type Runner interface {
	Run(ctx context.Context, req review.Request) *review.Result
}

// Repository is the slice of the store the service depends on.
type Repository interface {
	CreateRequest(ctx context.Context, req *store.Request, items []store.Item) (string, error)
	GetRequest(ctx context.Context, id string) (*store.Request, error)
	ListRequests(ctx context.Context, status store.Status) ([]store.Request, error)
	ListItems(ctx context.Context, requestID string) ([]store.Item, error)
	UpdateStatus(ctx context.Context, requestID string, to store.Status) error
	SaveRecommendation(ctx context.Context, rec *store.Recommendation) (string, error)
	SaveDecision(ctx context.Context, dec *store.Decision) (string, error)
}

// ResultCache memoizes workflow results. Optional; cache failures only cost
// a fresh run.
type ResultCache interface {
	Get(ctx context.Context, req review.Request) (*review.Result, error)
	Set(ctx context.Context, req review.Request, result *review.Result) error
}

// Auditor records lifecycle events. Optional.
type Auditor interface {
	Record(ctx context.Context, eventType, entityType, entityID, actor string, detail map[string]any) error
}

// Service wires the workflow runner to persistence.
type Service struct {
	runner        Runner
	repo          Repository
	cache         ResultCache
	auditor       Auditor
	modelName     string
	promptVersion string
	logger        *slog.Logger
}

// Option configures the service.
type Option func(*Service)

// WithCache attaches a judgment cache.
func WithCache(cache ResultCache) Option {
	return func(s *Service) { s.cache = cache }
}

// WithAuditor attaches an audit logger.
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// WithModelInfo sets the provenance recorded on each recommendation.
func WithModelInfo(modelName, promptVersion string) Option {
	return func(s *Service) {
		s.modelName = modelName
		s.promptVersion = promptVersion
	}
}

// New creates a review service.
func New(runner Runner, repo Repository, opts ...Option) (*Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("workflow runner is required")
	}
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}

	s := &Service{
		runner:        runner,
		repo:          repo,
		modelName:     "gpt-4o-mini",
		promptVersion: "v1.0-agentic",
		logger:        logging.WithComponent("review_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateRequest registers a new review request with its items.
func (s *Service) CreateRequest(ctx context.Context, req *store.Request, items []store.Item) (string, error) {
	id, err := s.repo.CreateRequest(ctx, req, items)
	if err != nil {
		return "", err
	}

	s.audit(ctx, "REQUEST_CREATE", "ReviewRequest", id, req.RequestedBy, map[string]any{
		"product_name": req.ProductName,
		"item_count":   len(items),
	})
	return id, nil
}

// RunRecommendations executes the workflow for every item of the request,
// persisting each result and transitioning REQUESTED -> AI_RUNNING ->
// REVIEWING. A persistence failure rolls the request back to REQUESTED so
// the run can be retried.
func (s *Service) RunRecommendations(ctx context.Context, requestID string) (recs []store.Recommendation, err error) {
	ctx, span := otel.Tracer("service").Start(ctx, "service.run_recommendations",
		trace.WithAttributes(attribute.String("request.id", requestID)))
	defer func() { telemetry.End(span, err) }()

	request, err := s.repo.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListItems(ctx, requestID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("request.item_count", len(items)))

	if err := s.repo.UpdateStatus(ctx, requestID, store.StatusAIRunning); err != nil {
		return nil, err
	}

	recs, err = s.runAll(ctx, request, items)
	if err != nil {
		if rbErr := s.repo.UpdateStatus(ctx, requestID, store.StatusRequested); rbErr != nil {
			s.logger.Error("status rollback failed", "request_id", requestID, "error", rbErr)
		}
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, requestID, store.StatusReviewing); err != nil {
		return nil, err
	}

	s.audit(ctx, "AI_RECOMMEND", "ReviewRequest", requestID, "system", map[string]any{
		"item_count": len(items),
		"model":      s.modelName,
	})
	return recs, nil
}

func (s *Service) runAll(ctx context.Context, request *store.Request, items []store.Item) ([]store.Recommendation, error) {
	recs := make([]store.Recommendation, 0, len(items))
	for _, item := range items {
		start := time.Now()

		req := review.Request{
			Phrase:        item.Text,
			Category:      request.Category,
			BroadcastType: request.BroadcastType,
		}
		result := s.cachedRun(ctx, req)

		rec := store.Recommendation{
			ReviewItemID:  item.ID,
			Judgment:      result.Judgment,
			Reason:        result.Reason,
			References:    result.References,
			ModelName:     s.modelName,
			PromptVersion: s.promptVersion,
			LatencyMS:     int(time.Since(start) / time.Millisecond),
		}
		id, err := s.repo.SaveRecommendation(ctx, &rec)
		if err != nil {
			return nil, fmt.Errorf("failed to persist recommendation for item %s: %w", item.ID, err)
		}
		rec.ID = id
		recs = append(recs, rec)
	}
	return recs, nil
}

// cachedRun consults the judgment cache before invoking the workflow. Cache
// errors degrade to a fresh run.
func (s *Service) cachedRun(ctx context.Context, req review.Request) *review.Result {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, req)
		if err != nil {
			s.logger.Warn("judgment cache read failed", "error", err)
		} else if cached != nil {
			s.logger.Debug("judgment cache hit", "judgment", cached.Judgment)
			return cached
		}
	}

	result := s.runner.Run(ctx, req)

	if s.cache != nil {
		if err := s.cache.Set(ctx, req, result); err != nil {
			s.logger.Warn("judgment cache write failed", "error", err)
		}
	}
	return result
}

// SubmitDecision records the reviewer's verdict and closes the request.
func (s *Service) SubmitDecision(ctx context.Context, dec *store.Decision) (string, error) {
	id, err := s.repo.SaveDecision(ctx, dec)
	if err != nil {
		return "", err
	}

	s.audit(ctx, "HUMAN_DECIDE", "ReviewRequest", dec.RequestID, dec.DecidedBy, map[string]any{
		"decision": string(dec.Decision),
	})
	return id, nil
}

// ListRequests returns requests, optionally filtered by status.
func (s *Service) ListRequests(ctx context.Context, status store.Status) ([]store.Request, error) {
	return s.repo.ListRequests(ctx, status)
}

// GetRequest loads one request with its items.
func (s *Service) GetRequest(ctx context.Context, id string) (*store.Request, []store.Item, error) {
	request, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return request, items, nil
}

func (s *Service) audit(ctx context.Context, eventType, entityType, entityID, actor string, detail map[string]any) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Record(ctx, eventType, entityType, entityID, actor, detail); err != nil {
		s.logger.Warn("audit record failed", "event", eventType, "entity_id", entityID, "error", err)
	}
}
