package review

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/evidence"
)

func happyStubs() (*stubLLM, *stubSearcher) {
	client := newStubLLM()
	client.planner = func() (string, error) { return planReply, nil }
	client.grade = func(user string) (string, error) { return allRelevantReply(2), nil }
	client.rewrite = func(user string) (string, error) { return `{"query": "최저가 단정 표현 심의"}`, nil }
	client.generate = func(user string) (string, error) { return violationReply, nil }
	client.judge = func(user string) (string, error) { return passReply, nil }

	searcher := &stubSearcher{
		caseItems: []evidence.Item{
			caseItem("c1", "다시없는 최저가 표현으로 지적된 사례"),
			caseItem("c2", "방송 중 최상급 표현 사용 사례"),
		},
		policy: []evidence.Item{
			policyItem("r1", evidence.DocTypeRegulation, "가격을 단정적으로 표현하여서는 아니 된다"),
			policyItem("l1", evidence.DocTypeLaw, "방송법 제33조"),
		},
	}
	return client, searcher
}

func newTestPipeline(t *testing.T, client *stubLLM, searcher *stubSearcher, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(client, searcher, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestRunViolationScenario(t *testing.T) {
	client, searcher := happyStubs()
	p := newTestPipeline(t, client, searcher)

	result := p.Run(context.Background(), Request{
		Phrase:        "다신 오지 않는 최저가 혜택",
		Category:      "가전",
		BroadcastType: "TV홈쇼핑",
	})

	if result.Judgment != JudgmentViolation {
		t.Fatalf("expected violation, got %s", result.Judgment)
	}
	if !strings.Contains(result.Reason, "유사 심의 사례") {
		t.Errorf("reason should cite precedent: %s", result.Reason)
	}

	var citesCase bool
	for _, ref := range result.References {
		if ref.Identity == "c1" {
			citesCase = true
		}
	}
	if !citesCase {
		t.Errorf("expected at least one case reference: %+v", result.References)
	}
	if result.SuggestedFix == "" {
		t.Errorf("violation judgment requires a suggested fix")
	}

	steps := map[string]bool{}
	for _, rec := range result.Trace {
		steps[rec.Step] = true
	}
	for _, want := range []string{"plan", "case_retrieve", "case_grade", "policy_retrieve", "policy_grade", "synthesize", "answer_grade"} {
		if !steps[want] {
			t.Errorf("trace missing step %q: %+v", want, result.Trace)
		}
	}
}

func TestRunEvidenceStoreDownDegradesToCaution(t *testing.T) {
	client := newStubLLM() // every completion call errors: nothing scripted
	searcher := &stubSearcher{
		caseErr:   errors.New("store unavailable"),
		policyErr: errors.New("store unavailable"),
	}
	p := newTestPipeline(t, client, searcher)

	result := p.Run(context.Background(), Request{Phrase: "무조건 전액 환불"})

	if result.Judgment != JudgmentCaution {
		t.Fatalf("expected caution, got %s", result.Judgment)
	}
	if !strings.Contains(result.Reason, "오류") {
		t.Errorf("reason should mention the failure: %s", result.Reason)
	}
	if len(result.Trace) == 0 {
		t.Errorf("expected trace records even on degraded run")
	}
}

func TestRunAlwaysReturnsJudgment(t *testing.T) {
	client, searcher := happyStubs()
	p := newTestPipeline(t, client, searcher)

	for _, req := range []Request{
		{Phrase: "다신 오지 않는 최저가 혜택"},
		{Phrase: "   "},
		{Phrase: "평범한 소개 문구", Category: "식품"},
	} {
		result := p.Run(context.Background(), req)
		switch result.Judgment {
		case JudgmentViolation, JudgmentCaution, JudgmentOK:
		default:
			t.Errorf("judgment unset for %+v: %q", req, result.Judgment)
		}
	}
}

func TestRunEmptyPhrase(t *testing.T) {
	client, searcher := happyStubs()
	p := newTestPipeline(t, client, searcher)

	result := p.Run(context.Background(), Request{Phrase: ""})
	if result.Judgment != JudgmentCaution {
		t.Fatalf("expected caution for empty phrase, got %s", result.Judgment)
	}
	if len(result.Trace) == 0 || result.Trace[len(result.Trace)-1].Step != "error" {
		t.Errorf("expected an error trace record: %+v", result.Trace)
	}
}

func TestRunEmptyEvidenceStillAnswers(t *testing.T) {
	client, searcher := happyStubs()
	searcher.caseItems = nil
	searcher.policy = nil
	client.generate = func(user string) (string, error) {
		if !strings.Contains(user, "(검색된 사례 근거 없음)") {
			t.Errorf("generator prompt should mark empty case evidence")
		}
		return `{"judgment": "주의", "reason": "근거 부족으로 보수적으로 판단", "risk_type": "일반", "related_articles": [], "suggested_fix": "", "references": []}`, nil
	}
	p := newTestPipeline(t, client, searcher)

	result := p.Run(context.Background(), Request{Phrase: "업계 유일의 효능"})
	if result.Judgment != JudgmentCaution {
		t.Fatalf("expected a valid low-confidence answer, got %s", result.Judgment)
	}
}

func TestRunAnswerRetryBound(t *testing.T) {
	client, searcher := happyStubs()
	client.judge = func(user string) (string, error) { return failReply, nil }
	p := newTestPipeline(t, client, searcher, WithAnswerMaxRetries(2))

	result := p.Run(context.Background(), Request{Phrase: "다신 오지 않는 최저가 혜택"})

	if got := client.callCount("generate"); got != 3 {
		t.Errorf("expected max_retries+1 = 3 synthesizer calls, got %d", got)
	}
	if result.Judgment != JudgmentViolation {
		t.Errorf("exhausted retries must still release the current answer, got %s", result.Judgment)
	}
}

func TestRunAcceptedAnswerNotRegenerated(t *testing.T) {
	client, searcher := happyStubs()
	p := newTestPipeline(t, client, searcher)

	p.Run(context.Background(), Request{Phrase: "다신 오지 않는 최저가 혜택"})

	if got := client.callCount("generate"); got != 1 {
		t.Errorf("passed grade must terminate the loop, got %d synthesizer calls", got)
	}
}

func TestRunAgentIndependence(t *testing.T) {
	client, searcher := happyStubs()
	searcher.caseErr = errors.New("case store down")
	p := newTestPipeline(t, client, searcher)

	result := p.Run(context.Background(), Request{Phrase: "다신 오지 않는 최저가 혜택"})

	var policyRelevant int
	for _, rec := range result.Trace {
		if rec.Step == "case_retrieve" && rec.Retry > 3 {
			t.Errorf("case agent exceeded its retry cap: %+v", rec)
		}
		if rec.Step == "policy_grade" {
			policyRelevant = rec.Relevant
		}
	}
	if policyRelevant == 0 {
		t.Errorf("policy agent evidence must be unaffected by case store failure")
	}

	var policyCited bool
	for _, ref := range result.References {
		if ref.Identity == "r1" || ref.Identity == "l1" {
			policyCited = true
		}
	}
	if !policyCited {
		t.Errorf("expected policy references despite case store failure: %+v", result.References)
	}
}

func TestRunReferencesDeduped(t *testing.T) {
	client, searcher := happyStubs()
	p := newTestPipeline(t, client, searcher)

	result := p.Run(context.Background(), Request{Phrase: "다신 오지 않는 최저가 혜택"})

	seen := map[string]bool{}
	for _, ref := range result.References {
		if ref.Identity == "" {
			continue
		}
		if seen[ref.Identity] {
			t.Fatalf("duplicate reference identity %s: %+v", ref.Identity, result.References)
		}
		seen[ref.Identity] = true
	}
	// c1 was cited by the model AND retrieved: it must appear exactly once,
	// and the uncited leftovers (c2, r1, l1) must be appended.
	for _, want := range []string{"c1", "c2", "r1", "l1"} {
		if !seen[want] {
			t.Errorf("reference list missing retrieved item %s", want)
		}
	}
}

func TestRunIdempotent(t *testing.T) {
	client, searcher := happyStubs()
	p := newTestPipeline(t, client, searcher)
	req := Request{Phrase: "다신 오지 않는 최저가 혜택", Category: "가전"}

	first := p.Run(context.Background(), req)
	second := p.Run(context.Background(), req)

	if first.Judgment != second.Judgment {
		t.Errorf("identical deterministic runs diverged: %s vs %s", first.Judgment, second.Judgment)
	}
	if first.Reason != second.Reason {
		t.Errorf("identical deterministic runs produced different reasons")
	}
}

func TestRunGraderOutageDefaultsToPass(t *testing.T) {
	client, searcher := happyStubs()
	client.judge = nil // grader calls fail
	p := newTestPipeline(t, client, searcher)

	result := p.Run(context.Background(), Request{Phrase: "다신 오지 않는 최저가 혜택"})

	if result.Judgment != JudgmentViolation {
		t.Errorf("grader outage must not block release: %s", result.Judgment)
	}
	if got := client.callCount("generate"); got != 1 {
		t.Errorf("grader outage must not trigger retries, got %d synthesizer calls", got)
	}
}

func TestNewValidation(t *testing.T) {
	client, searcher := happyStubs()
	if _, err := New(nil, searcher); err == nil {
		t.Errorf("expected error for nil llm client")
	}
	if _, err := New(client, nil); err == nil {
		t.Errorf("expected error for nil searcher")
	}
}
