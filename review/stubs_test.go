package review

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/evidence"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/message"
)

// stubLLM dispatches on the system prompt so one stub can play planner,
// grader, rewriter, and generator in a single run.
type stubLLM struct {
	mu       sync.Mutex
	calls    map[string]int
	planner  func() (string, error)
	grade    func(user string) (string, error)
	rewrite  func(user string) (string, error)
	generate func(user string) (string, error)
	judge    func(user string) (string, error)
}

func newStubLLM() *stubLLM {
	return &stubLLM{calls: make(map[string]int)}
}

func (s *stubLLM) Generate(ctx context.Context, msgs []*message.Message) (*message.Message, error) {
	if len(msgs) < 2 {
		return nil, errors.New("stub expects system+user messages")
	}
	system := msgs[0].Text()
	user := msgs[len(msgs)-1].Text()

	var kind string
	var fn func(string) (string, error)
	switch system {
	case plannerSystem:
		kind = "plan"
		fn = func(string) (string, error) {
			if s.planner == nil {
				return "", errors.New("planner not scripted")
			}
			return s.planner()
		}
	case gradeCaseSystem, gradePolicySystem:
		kind = "grade"
		fn = s.grade
	case rewriteCaseSystem, rewritePolicySystem:
		kind = "rewrite"
		fn = s.rewrite
	case generatorSystem:
		kind = "generate"
		fn = s.generate
	case answerGradeSystem:
		kind = "judge"
		fn = s.judge
	default:
		return nil, fmt.Errorf("unexpected system prompt: %.40s", system)
	}

	s.mu.Lock()
	s.calls[kind]++
	s.mu.Unlock()

	if fn == nil {
		return nil, fmt.Errorf("%s not scripted", kind)
	}
	text, err := fn(user)
	if err != nil {
		return nil, err
	}
	return message.NewMessage(message.RoleAssistant, text), nil
}

func (s *stubLLM) SetTemperature(float64) {}
func (s *stubLLM) SetMaxTokens(int64)     {}
func (s *stubLLM) SetModel(string)        {}

func (s *stubLLM) callCount(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[kind]
}

// stubSearcher serves canned evidence per kind, or an error.
type stubSearcher struct {
	mu        sync.Mutex
	caseItems []evidence.Item
	policy    []evidence.Item
	caseErr   error
	policyErr error
	caseCalls int
	polCalls  int
}

func (s *stubSearcher) Search(ctx context.Context, query string, kind evidence.Kind) ([]evidence.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if kind == evidence.KindCase {
		s.caseCalls++
		return s.caseItems, s.caseErr
	}
	s.polCalls++
	return s.policy, s.policyErr
}

func caseItem(id, content string) evidence.Item {
	return evidence.Item{
		Content:  content,
		Identity: id,
		Score:    0.9,
		Provenance: evidence.Provenance{
			DocType:    evidence.DocTypeCase,
			CaseNumber: "2023-" + id,
			SourceFile: "심의사례집.xlsx",
		},
	}
}

func policyItem(id string, docType evidence.DocType, content string) evidence.Item {
	return evidence.Item{
		Content:  content,
		Identity: id,
		Score:    0.8,
		Provenance: evidence.Provenance{
			DocType:    docType,
			SourceFile: "방송심의규정.pdf",
			ArticleRef: "제14조",
		},
	}
}

// Canned model replies.

const planReply = `{
  "risk_types": ["가격 단정 표현"],
  "risk_keywords": ["최저가"],
  "risk_analysis": "최상급 가격 표현",
  "tools_to_use": ["case_search", "policy_search"],
  "search_queries": {"cases": ["최저가 단정 표현 사례"], "policy": ["가격 표시 규정"]}
}`

func allRelevantReply(n int) string {
	out := `{"grades": [`
	for i := 1; i <= n; i++ {
		if i > 1 {
			out += ","
		}
		out += fmt.Sprintf(`{"doc_index": %d, "relevance": "relevant", "reason": "유사"}`, i)
	}
	return out + `]}`
}

const violationReply = `{
  "judgment": "위반소지",
  "reason": "유사 심의 사례에 따르면, 최저가 단정 표현은 불허된 바 있습니다.",
  "risk_type": "가격 단정 표현",
  "related_articles": ["상품소개 및 판매방송 심의에 관한 규정 제14조"],
  "suggested_fix": "업계 최저가 수준의 혜택",
  "references": [
    {"chroma_id": "c1", "doc_filename": "심의사례집.xlsx", "doc_type": "사례", "section_title": "", "relevance_score": 0.9}
  ]
}`

const passReply = `{"pass": true, "feedback": "근거 인용이 충실함"}`
const failReply = `{"pass": false, "feedback": "근거 인용 부족"}`
