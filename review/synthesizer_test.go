package review

import (
	"context"
	"strings"
	"testing"

	"github.com/seoyeon2924/broadcast-compliance-ai-agent/evidence"
	"github.com/seoyeon2924/broadcast-compliance-ai-agent/pkg/logging"
)

func synthState() *workflowState {
	st := testState("다신 오지 않는 최저가 혜택")
	st.CaseEvidence = []evidence.Item{caseItem("c1", "유사 사례 본문")}
	st.Policy = policyBuckets{
		Law:        []evidence.Item{policyItem("l1", evidence.DocTypeLaw, "방송법 제33조")},
		Regulation: []evidence.Item{policyItem("r1", evidence.DocTypeRegulation, "심의규정 제14조")},
		Guideline:  []evidence.Item{policyItem("g1", evidence.DocTypeGuideline, "가격 표현 지침")},
	}
	return st
}

func TestSynthesizerPromptOrdersPrecedentFirst(t *testing.T) {
	client := newStubLLM()
	var prompt string
	client.generate = func(user string) (string, error) {
		prompt = user
		return violationReply, nil
	}

	s := newSynthesizer(client, defaultConfig(), logging.Logger())
	st := synthState()
	s.Generate(context.Background(), st)

	caseIdx := strings.Index(prompt, "[1순위] 과거 심의 사례")
	guideIdx := strings.Index(prompt, "[2순위] 지침")
	regIdx := strings.Index(prompt, "[3순위] 규정")
	lawIdx := strings.Index(prompt, "[4순위] 법률")
	if caseIdx < 0 || guideIdx < 0 || regIdx < 0 || lawIdx < 0 {
		t.Fatalf("prompt missing evidence sections:\n%s", prompt)
	}
	if !(caseIdx < guideIdx && guideIdx < regIdx && regIdx < lawIdx) {
		t.Errorf("evidence blocks out of priority order")
	}
	if !strings.Contains(prompt, "유사 사례 본문") {
		t.Errorf("prompt missing case evidence content")
	}
}

func TestSynthesizerTruncatesLongEvidence(t *testing.T) {
	client := newStubLLM()
	var prompt string
	client.generate = func(user string) (string, error) {
		prompt = user
		return violationReply, nil
	}

	cfg := defaultConfig()
	cfg.SnippetLimit = 100
	s := newSynthesizer(client, cfg, logging.Logger())

	st := testState("문구")
	long := strings.Repeat("길고 긴 사례 본문 ", 100)
	st.CaseEvidence = []evidence.Item{caseItem("c1", long)}
	s.Generate(context.Background(), st)

	if strings.Contains(prompt, long) {
		t.Errorf("evidence content must be truncated to the snippet limit")
	}
}

func TestSynthesizerFallbackOnCallFailure(t *testing.T) {
	client := newStubLLM() // generate not scripted: the call errors

	s := newSynthesizer(client, defaultConfig(), logging.Logger())
	st := synthState()
	s.Generate(context.Background(), st)

	if st.Answer == nil {
		t.Fatal("fallback answer not written")
	}
	if st.Answer.Judgment != JudgmentCaution {
		t.Errorf("fallback must be caution, got %s", st.Answer.Judgment)
	}
	if !strings.Contains(st.Answer.Reason, "오류") {
		t.Errorf("fallback reason must reference the failure: %s", st.Answer.Reason)
	}
	// Even the fallback keeps consulted evidence traceable.
	if len(st.Answer.References) != 4 {
		t.Errorf("expected all 4 retrieved items as references, got %d", len(st.Answer.References))
	}
}

func TestSynthesizerFallbackOnUnknownJudgment(t *testing.T) {
	client := newStubLLM()
	client.generate = func(user string) (string, error) {
		return `{"judgment": "애매함", "reason": "판단 불가", "references": []}`, nil
	}

	s := newSynthesizer(client, defaultConfig(), logging.Logger())
	st := synthState()
	s.Generate(context.Background(), st)

	if st.Answer.Judgment != JudgmentCaution {
		t.Errorf("unknown judgment token must default to caution, got %s", st.Answer.Judgment)
	}
}

func TestSynthesizerClearsFixOnOK(t *testing.T) {
	client := newStubLLM()
	client.generate = func(user string) (string, error) {
		return `{"judgment": "OK", "reason": "문제 없음", "suggested_fix": "불필요한 수정안", "references": []}`, nil
	}

	s := newSynthesizer(client, defaultConfig(), logging.Logger())
	st := synthState()
	s.Generate(context.Background(), st)

	if st.Answer.SuggestedFix != "" {
		t.Errorf("OK judgment must carry an empty suggested fix")
	}
}

func TestReconcileReferences(t *testing.T) {
	cited := []Reference{
		{Identity: "c1", DocType: "사례", Score: 0.9},
		{Identity: "c1", DocType: "사례"}, // model duplicated its own citation
	}
	retrieved := []evidence.Item{
		caseItem("c1", "이미 인용됨"),
		caseItem("c2", "모델이 누락한 근거"),
	}

	refs := reconcileReferences(cited, retrieved)
	if len(refs) != 2 {
		t.Fatalf("expected union of 2 identities, got %d", len(refs))
	}
	if refs[0].Identity != "c1" || refs[1].Identity != "c2" {
		t.Errorf("cited references must come first: %+v", refs)
	}
}

func TestGraderFailOpen(t *testing.T) {
	client := newStubLLM()
	client.judge = func(user string) (string, error) { return "평가 불가", nil }

	g := newAnswerGrader(client, defaultConfig(), logging.Logger())
	st := synthState()
	st.Answer = fallbackAnswer("일반", "테스트")
	g.Grade(context.Background(), st)

	if st.AnswerGrade == nil || !st.AnswerGrade.Pass {
		t.Errorf("unparseable grader output must default to pass")
	}
}

func TestGraderFailVerdict(t *testing.T) {
	client := newStubLLM()
	client.judge = func(user string) (string, error) { return failReply, nil }

	g := newAnswerGrader(client, defaultConfig(), logging.Logger())
	st := synthState()
	st.Answer = fallbackAnswer("일반", "테스트")
	g.Grade(context.Background(), st)

	if st.AnswerGrade.Pass {
		t.Errorf("explicit fail verdict must be preserved")
	}
	if st.AnswerGrade.Feedback == "" {
		t.Errorf("fail verdict should carry feedback")
	}
}
