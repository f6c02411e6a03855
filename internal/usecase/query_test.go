package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"intramind/internal/adapter/embedding"
	"intramind/internal/adapter/retriever"
	"intramind/internal/adapter/store"
	"intramind/internal/domain"
)

type fakeRetriever struct {
	results  []domain.RetrievedChunk
	err      error
	question string
	topK     int
}

func (f *fakeRetriever) Retrieve(ctx context.Context, question string, topK int) ([]domain.RetrievedChunk, error) {
	f.question, f.topK = question, topK
	return f.results, f.err
}

type fakeGenerator struct {
	answer string
	err    error
	calls  int
	prompt string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	f.prompt = prompt
	return f.answer, f.err
}

func (f *fakeGenerator) ModelName() string { return "fake" }

var caller = domain.Caller{Subject: "alice"}

func settings() QuerySettings {
	return QuerySettings{TopK: 4, MaxContextChunks: 3, MaxHistory: 4}
}

func TestQuery_NoMatch(t *testing.T) {
	gen := &fakeGenerator{answer: "should not be used"}
	u := NewQueryUseCase(&fakeRetriever{}, gen, settings(), zerolog.Nop())

	r, err := u.Query(context.Background(), caller, "what is the meaning of life", nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Answer != NoMatchAnswer || r.Confidence != 0 || r.Sources == nil || len(r.Sources) != 0 {
		t.Errorf("unexpected no-match result %#v", r)
	}
	if gen.calls != 0 {
		t.Errorf("generator must not be called on no match, got %d calls", gen.calls)
	}
}

func TestQuery_Grounded(t *testing.T) {
	ret := &fakeRetriever{results: []domain.RetrievedChunk{
		retrieved("leave.txt", "Twenty days of leave.", 0),
		retrieved("leave.txt", "Leave carries over.", 1),
		retrieved("expenses.txt", "File within thirty days.", 1),
		retrieved("vpn.md", "Use the VPN.", 2),
	}}
	gen := &fakeGenerator{answer: " Twenty days. \n"}
	u := NewQueryUseCase(ret, gen, settings(), zerolog.Nop())

	r, err := u.Query(context.Background(), caller, "  How many   days of leave? ", nil)
	if err != nil {
		t.Fatal(err)
	}

	if ret.question != "How many days of leave?" {
		t.Errorf("question not normalized: %q", ret.question)
	}
	if ret.topK != 4 {
		t.Errorf("expected topK 4, got %d", ret.topK)
	}
	if r.Answer != "Twenty days." {
		t.Errorf("unexpected answer %q", r.Answer)
	}
	// mean(1, .5, .5, 1/3) = 0.583
	if r.Confidence != 0.58 {
		t.Errorf("expected confidence 0.58, got %v", r.Confidence)
	}
	if len(r.Sources) != 2 || r.Sources[0] != "leave.txt" || r.Sources[1] != "expenses.txt" {
		t.Errorf("sources must come from the selected chunks only, got %v", r.Sources)
	}
	if strings.Contains(gen.prompt, "Use the VPN.") {
		t.Error("fourth chunk should not be in the prompt context")
	}
	if !strings.Contains(gen.prompt, "[Source 3 | expenses.txt]") {
		t.Errorf("prompt missing third source block:\n%s", gen.prompt)
	}
}

func TestQuery_HistoryWindow(t *testing.T) {
	ret := &fakeRetriever{results: []domain.RetrievedChunk{retrieved("a.txt", "ctx", 0)}}
	gen := &fakeGenerator{answer: "ok"}
	u := NewQueryUseCase(ret, gen, settings(), zerolog.Nop())

	var history []domain.ConversationTurn
	for i := 0; i < 10; i++ {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		history = append(history, domain.ConversationTurn{Role: role, Content: fmt.Sprintf("msg %d", i)})
	}

	if _, err := u.Query(context.Background(), caller, "q", history); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(gen.prompt, "msg 5") {
		t.Error("only the last four turns should be in the prompt")
	}
	if !strings.Contains(gen.prompt, "User: msg 6\nAssistant: msg 7\nUser: msg 8\nAssistant: msg 9\n") {
		t.Errorf("history window missing or out of order:\n%s", gen.prompt)
	}
}

func TestQuery_InvalidRole(t *testing.T) {
	gen := &fakeGenerator{}
	u := NewQueryUseCase(&fakeRetriever{}, gen, settings(), zerolog.Nop())

	_, err := u.Query(context.Background(), caller, "q", []domain.ConversationTurn{{Role: "system", Content: "x"}})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected invalid input, got %v", err)
	}
}

func TestQuery_PropagatesErrors(t *testing.T) {
	u := NewQueryUseCase(&fakeRetriever{err: domain.NewConfigurationError("retrieve", "no index loaded")}, &fakeGenerator{}, settings(), zerolog.Nop())
	if _, err := u.Query(context.Background(), caller, "q", nil); !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}

	ret := &fakeRetriever{results: []domain.RetrievedChunk{retrieved("a.txt", "ctx", 0)}}
	gen := &fakeGenerator{err: fmt.Errorf("failed to generate answer: %w", domain.ErrUpstreamUnavailable)}
	u = NewQueryUseCase(ret, gen, settings(), zerolog.Nop())
	if _, err := u.Query(context.Background(), caller, "q", nil); !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Errorf("expected upstream unavailable, got %v", err)
	}
}

func TestQuery_EndToEndWithHashEmbedder(t *testing.T) {
	e := embedding.NewHashEmbedder(128)
	texts := []string{
		"Employees receive twenty days of annual leave per year.",
		"The VPN must be used when working remotely.",
	}
	b, err := store.NewBuilder(e.ModelID(), e.Dimension(), store.MetricL2)
	if err != nil {
		t.Fatal(err)
	}
	vectors, err := e.Embed(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	for i, text := range texts {
		c := domain.Chunk{ID: fmt.Sprint(i), Text: text, Metadata: map[string]string{domain.MetaSourceFile: fmt.Sprintf("doc%d.txt", i)}}
		if err := b.Add(c, vectors[i]); err != nil {
			t.Fatal(err)
		}
	}

	ret := retriever.NewSemanticRetriever(store.NewHandle(b.Build()), e, 0)
	gen := &fakeGenerator{answer: "Twenty days."}
	u := NewQueryUseCase(ret, gen, QuerySettings{TopK: 1, MaxContextChunks: 3, MaxHistory: 4}, zerolog.Nop())

	r, err := u.Query(context.Background(), caller, texts[0], nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Confidence != 1 {
		t.Errorf("identical question should give confidence 1, got %v", r.Confidence)
	}
	if len(r.Sources) != 1 || r.Sources[0] != "doc0.txt" {
		t.Errorf("unexpected sources %v", r.Sources)
	}
}
