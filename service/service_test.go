package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	apperrors "github.com/seoyeon2924/broadcast-compliance-ai-agent/errors"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/review"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/store"
)

type fakeRunner struct {
	calls  int
	result *review.Result
}

func (f *fakeRunner) Run(ctx context.Context, req review.Request) *review.Result {
	f.calls++
	if f.result != nil {
		return f.result
	}
	return &review.Result{Judgment: review.JudgmentCaution, Reason: "기본"}
}

type fakeRepo struct {
	requests map[string]*store.Request
	items    map[string][]store.Item
	recs     []store.Recommendation
	saveErr  error
	statuses []store.Status
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		requests: map[string]*store.Request{},
		items:    map[string][]store.Item{},
	}
}

func (f *fakeRepo) seed(id string, itemCount int) {
	f.requests[id] = &store.Request{ID: id, ProductName: "무선청소기", Category: "가전", Status: store.StatusRequested}
	for i := 0; i < itemCount; i++ {
		f.items[id] = append(f.items[id], store.Item{
			ID: fmt.Sprintf("%s-item-%d", id, i), RequestID: id,
			ItemIndex: i, ItemType: "REQUEST_TEXT",
			Label: fmt.Sprintf("요청문구%d", i+1), Text: fmt.Sprintf("문구 %d", i),
		})
	}
}

func (f *fakeRepo) CreateRequest(ctx context.Context, req *store.Request, items []store.Item) (string, error) {
	id := "req-1"
	req.ID = id
	f.requests[id] = req
	f.items[id] = items
	return id, nil
}

func (f *fakeRepo) GetRequest(ctx context.Context, id string) (*store.Request, error) {
	req, ok := f.requests[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return req, nil
}

func (f *fakeRepo) ListRequests(ctx context.Context, status store.Status) ([]store.Request, error) {
	var out []store.Request
	for _, req := range f.requests {
		if status == "" || req.Status == status {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListItems(ctx context.Context, requestID string) ([]store.Item, error) {
	return f.items[requestID], nil
}

func (f *fakeRepo) UpdateStatus(ctx context.Context, requestID string, to store.Status) error {
	req, ok := f.requests[requestID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if !store.CanTransition(req.Status, to) {
		return fmt.Errorf("%w: %s -> %s", apperrors.ErrInvalidTransition, req.Status, to)
	}
	req.Status = to
	f.statuses = append(f.statuses, to)
	return nil
}

func (f *fakeRepo) SaveRecommendation(ctx context.Context, rec *store.Recommendation) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.recs = append(f.recs, *rec)
	return fmt.Sprintf("rec-%d", len(f.recs)), nil
}

func (f *fakeRepo) SaveDecision(ctx context.Context, dec *store.Decision) (string, error) {
	if err := f.UpdateStatus(ctx, dec.RequestID, dec.Decision); err != nil {
		return "", err
	}
	return "dec-1", nil
}

type fakeCache struct {
	store map[string]*review.Result
	gets  int
	sets  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: map[string]*review.Result{}}
}

func (f *fakeCache) key(req review.Request) string {
	return req.Phrase + "|" + req.Category
}

func (f *fakeCache) Get(ctx context.Context, req review.Request) (*review.Result, error) {
	f.gets++
	return f.store[f.key(req)], nil
}

func (f *fakeCache) Set(ctx context.Context, req review.Request, result *review.Result) error {
	f.sets++
	f.store[f.key(req)] = result
	return nil
}

type fakeAuditor struct {
	events []string
}

func (f *fakeAuditor) Record(ctx context.Context, eventType, entityType, entityID, actor string, detail map[string]any) error {
	f.events = append(f.events, eventType)
	return nil
}

func TestRunRecommendationsLifecycle(t *testing.T) {
	repo := newFakeRepo()
	repo.seed("req-1", 2)
	runner := &fakeRunner{result: &review.Result{Judgment: review.JudgmentViolation, Reason: "위반"}}
	auditor := &fakeAuditor{}

	svc, err := New(runner, repo, WithAuditor(auditor))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	recs, err := svc.RunRecommendations(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("RunRecommendations: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected one recommendation per item, got %d", len(recs))
	}
	if runner.calls != 2 {
		t.Errorf("expected 2 workflow runs, got %d", runner.calls)
	}
	if repo.requests["req-1"].Status != store.StatusReviewing {
		t.Errorf("expected REVIEWING after run, got %s", repo.requests["req-1"].Status)
	}
	wantStatuses := []store.Status{store.StatusAIRunning, store.StatusReviewing}
	for i, want := range wantStatuses {
		if i >= len(repo.statuses) || repo.statuses[i] != want {
			t.Fatalf("status sequence %v, want %v", repo.statuses, wantStatuses)
		}
	}
	if len(auditor.events) != 1 || auditor.events[0] != "AI_RECOMMEND" {
		t.Errorf("expected AI_RECOMMEND audit event, got %v", auditor.events)
	}
}

func TestRunRecommendationsRollbackOnPersistFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.seed("req-1", 1)
	repo.saveErr = errors.New("disk full")

	svc, _ := New(&fakeRunner{}, repo)
	if _, err := svc.RunRecommendations(context.Background(), "req-1"); err == nil {
		t.Fatal("expected persistence error")
	}
	if repo.requests["req-1"].Status != store.StatusRequested {
		t.Errorf("expected rollback to REQUESTED, got %s", repo.requests["req-1"].Status)
	}
}

func TestRunRecommendationsUnknownRequest(t *testing.T) {
	svc, _ := New(&fakeRunner{}, newFakeRepo())
	if _, err := svc.RunRecommendations(context.Background(), "missing"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCachedRunSkipsWorkflowOnHit(t *testing.T) {
	repo := newFakeRepo()
	repo.seed("req-1", 1)
	runner := &fakeRunner{}
	cache := newFakeCache()

	svc, _ := New(runner, repo, WithCache(cache))

	if _, err := svc.RunRecommendations(context.Background(), "req-1"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if runner.calls != 1 || cache.sets != 1 {
		t.Fatalf("first run should miss and populate: calls=%d sets=%d", runner.calls, cache.sets)
	}

	// Re-run the same phrase: the request must be reset to REQUESTED first.
	repo.requests["req-1"].Status = store.StatusRequested
	if _, err := svc.RunRecommendations(context.Background(), "req-1"); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if runner.calls != 1 {
		t.Errorf("second run should hit the cache, workflow ran %d times", runner.calls)
	}
}

func TestSubmitDecisionClosesRequest(t *testing.T) {
	repo := newFakeRepo()
	repo.seed("req-1", 1)
	repo.requests["req-1"].Status = store.StatusReviewing
	auditor := &fakeAuditor{}

	svc, _ := New(&fakeRunner{}, repo, WithAuditor(auditor))
	if _, err := svc.SubmitDecision(context.Background(), &store.Decision{
		RequestID: "req-1", Decision: store.StatusDone, DecidedBy: "reviewer",
	}); err != nil {
		t.Fatalf("SubmitDecision: %v", err)
	}
	if repo.requests["req-1"].Status != store.StatusDone {
		t.Errorf("expected DONE, got %s", repo.requests["req-1"].Status)
	}
	if len(auditor.events) != 1 || auditor.events[0] != "HUMAN_DECIDE" {
		t.Errorf("expected HUMAN_DECIDE audit event, got %v", auditor.events)
	}
}

func TestSubmitDecisionInvalidTransition(t *testing.T) {
	repo := newFakeRepo()
	repo.seed("req-1", 1) // still REQUESTED

	svc, _ := New(&fakeRunner{}, repo)
	if _, err := svc.SubmitDecision(context.Background(), &store.Decision{
		RequestID: "req-1", Decision: store.StatusDone,
	}); !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}
