package enhance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/kbukum/scribe/credential"
	"github.com/kbukum/scribe/engine"
	"github.com/kbukum/scribe/llm"
	"github.com/kbukum/scribe/transcription"
)

type fakeLLM struct {
	mu      sync.Mutex
	reqs    []llm.CompletionRequest
	respond func(ctx context.Context, req llm.CompletionRequest) (string, error)
}

func (f *fakeLLM) Name() string { return "fake" }
func (f *fakeLLM) IsAvailable(context.Context) bool { return true }

func (f *fakeLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	out, err := f.respond(ctx, req)
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Content: out}, nil
}

func (f *fakeLLM) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func reply(s string) func(context.Context, llm.CompletionRequest) (string, error) {
	return func(context.Context, llm.CompletionRequest) (string, error) { return s, nil }
}

func blockUntilDone(ctx context.Context, _ llm.CompletionRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func cloudWith(f *fakeLLM) CloudFactory {
	return func(string) (llm.Provider, error) { return f, nil }
}

func credsWith(provider, key string) *credential.Resolver {
	store := credential.NewMemoryStore()
	_ = store.Set(context.Background(), provider, key)
	return credential.NewResolver(store)
}

const meeting = "Hello everyone. Today we discuss the quarterly budget and hiring plan. " +
	"Revenue grew faster than expected this quarter. Marie will send the revised forecast by Friday. " +
	"We decided to postpone the office move."

func TestEnhance_LocalTier(t *testing.T) {
	local := &fakeLLM{respond: func(_ context.Context, req llm.CompletionRequest) (string, error) {
		if strings.Contains(req.SystemPrompt, "titles") {
			return "\"Quarterly Budget Review\"", nil
		}
		return "The team reviewed the budget.", nil
	}}
	p := New(Config{}, WithLocal(local))

	e, err := p.Enhance(context.Background(), nil, meeting, Prompts{}, "llama3.2")
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if e.Source != SourceLocalLLM || e.Title != "Quarterly Budget Review" || e.Summary != "The team reviewed the budget." {
		t.Errorf("got %+v", e)
	}
	if local.calls() != 2 || local.reqs[0].Model != "llama3.2" {
		t.Errorf("calls = %d, reqs = %+v", local.calls(), local.reqs)
	}
}

func TestEnhance_LocalTimeoutFallsToCloud(t *testing.T) {
	local := &fakeLLM{respond: blockUntilDone}
	cloud := &fakeLLM{respond: reply("TITLE: Budget and hiring\nSUMMARY: Budget grew; forecast due Friday.")}
	p := New(Config{LocalTimeout: 20 * time.Millisecond},
		WithLocal(local),
		WithCloud(cloudWith(cloud), credsWith("openai", "sk-test")),
	)

	h := engine.NewSlot(engine.SlotEnhancement).Begin(context.Background())
	e, err := p.Enhance(context.Background(), h, meeting, Prompts{}, "llama3.2")
	if err != nil {
		t.Fatalf("Enhance surfaced an error: %v", err)
	}
	if e.Source != SourceCloudSemantic {
		t.Fatalf("source = %s, want %s", e.Source, SourceCloudSemantic)
	}
	if e.Title != "Budget and hiring" || e.Summary != "Budget grew; forecast due Friday." {
		t.Errorf("got %+v", e)
	}
	if h.Progress() != 100 {
		t.Errorf("progress = %d", h.Progress())
	}
}

func TestEnhance_NoCredentialSkipsCloud(t *testing.T) {
	cloud := &fakeLLM{respond: reply("TITLE: x\nSUMMARY: y")}
	p := New(Config{}, WithCloud(cloudWith(cloud), credential.NewResolver(credential.NewMemoryStore())))

	e, err := p.Enhance(context.Background(), nil, meeting, Prompts{}, "")
	if err != nil {
		t.Fatalf("Enhance: %v", err)
	}
	if e.Source != SourceRuleBased || cloud.calls() != 0 {
		t.Errorf("source = %s, cloud calls = %d", e.Source, cloud.calls())
	}
}

func TestEnhance_NoneSkipsLocal(t *testing.T) {
	local := &fakeLLM{respond: reply("Title")}
	p := New(Config{}, WithLocal(local))
	for _, model := range []string{"", "none", "None"} {
		e, err := p.Enhance(context.Background(), nil, meeting, Prompts{}, model)
		if err != nil || e.Source != SourceRuleBased {
			t.Errorf("model %q: %+v, %v", model, e, err)
		}
	}
	if local.calls() != 0 {
		t.Errorf("local calls = %d", local.calls())
	}
}

func TestEnhance_UnparseableCloudFallsToRules(t *testing.T) {
	cloud := &fakeLLM{respond: reply("Here is a nice summary of your meeting.")}
	p := New(Config{}, WithCloud(cloudWith(cloud), credsWith("openai", "sk")))
	e, err := p.Enhance(context.Background(), nil, meeting, Prompts{}, "")
	if err != nil || e.Source != SourceRuleBased {
		t.Errorf("got %+v, %v", e, err)
	}
}

func TestEnhance_LocalErrorFallsToRules(t *testing.T) {
	local := &fakeLLM{respond: func(context.Context, llm.CompletionRequest) (string, error) {
		return "", errors.New("connection refused")
	}}
	p := New(Config{}, WithLocal(local))
	e, err := p.Enhance(context.Background(), nil, meeting, Prompts{}, "llama3.2")
	if err != nil || e.Source != SourceRuleBased {
		t.Errorf("got %+v, %v", e, err)
	}
}

func TestEnhance_TitleContractAllTiers(t *testing.T) {
	long := strings.Repeat("An extremely long and winding title about many things ", 4)
	tests := []struct {
		name  string
		opts  []Option
		model string
		text  string
		want  Source
	}{
		{
			name:  "local",
			opts:  []Option{WithLocal(&fakeLLM{respond: reply("Title:\n" + long + "\nsecond line")})},
			model: "llama3.2",
			text:  meeting,
			want:  SourceLocalLLM,
		},
		{
			name: "cloud",
			opts: []Option{WithCloud(cloudWith(&fakeLLM{respond: reply("TITLE: " + long + "\nSUMMARY: ok")}), credsWith("openai", "k"))},
			text: meeting,
			want: SourceCloudSemantic,
		},
		{
			name: "rules",
			text: long + "\nand more words on a new line without any stop " + long,
			want: SourceRuleBased,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(Config{}, tt.opts...).Enhance(context.Background(), nil, tt.text, Prompts{}, tt.model)
			if err != nil {
				t.Fatalf("Enhance: %v", err)
			}
			if e.Source != tt.want {
				t.Errorf("source = %s, want %s", e.Source, tt.want)
			}
			if n := utf8.RuneCountInString(e.Title); n > MaxTitleRunes || n == 0 {
				t.Errorf("title has %d runes: %q", n, e.Title)
			}
			if strings.ContainsAny(e.Title, "\r\n") {
				t.Errorf("title has a newline: %q", e.Title)
			}
		})
	}
}

func TestEnhance_TruncatesLocalInput(t *testing.T) {
	local := &fakeLLM{respond: reply("Short")}
	p := New(Config{MaxChars: 50}, WithLocal(local))
	text := strings.Repeat("é", 200)
	if _, err := p.Enhance(context.Background(), nil, text, Prompts{}, "m"); err != nil {
		t.Fatal(err)
	}
	for _, req := range local.reqs {
		if n := utf8.RuneCountInString(req.Messages[0].Content); n != 50 {
			t.Errorf("sent %d runes, want 50", n)
		}
	}
}

func TestEnhance_Cancelled(t *testing.T) {
	slot := engine.NewSlot(engine.SlotEnhancement)
	h := slot.Begin(context.Background())
	slot.Cancel()

	local := &fakeLLM{respond: reply("x")}
	_, err := New(Config{}, WithLocal(local)).Enhance(context.Background(), h, meeting, Prompts{}, "m")
	if !transcription.IsCancelled(err) {
		t.Errorf("err = %v, want cancelled", err)
	}
	if local.calls() != 0 {
		t.Error("local model called after cancellation")
	}
}

func TestEnhance_SupersededDuringLocal(t *testing.T) {
	slot := engine.NewSlot(engine.SlotEnhancement)
	h := slot.Begin(context.Background())
	started := make(chan struct{})
	local := &fakeLLM{respond: func(ctx context.Context, req llm.CompletionRequest) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}}
	p := New(Config{}, WithLocal(local))

	errc := make(chan error, 1)
	go func() {
		_, err := p.Enhance(context.Background(), h, meeting, Prompts{}, "m")
		errc <- err
	}()
	<-started
	slot.Begin(context.Background())

	if err := <-errc; !transcription.IsCancelled(err) {
		t.Errorf("err = %v, want cancelled", err)
	}
}

func TestEnhance_CacheHit(t *testing.T) {
	local := &fakeLLM{respond: reply("Cached title")}
	p := New(Config{}, WithLocal(local), WithCache(NewMemoryCache()))
	for range 2 {
		e, err := p.Enhance(context.Background(), nil, meeting, Prompts{}, "m")
		if err != nil || e.Title != "Cached title" {
			t.Fatalf("got %+v, %v", e, err)
		}
	}
	if local.calls() != 2 {
		t.Errorf("local calls = %d, want 2 (one enhancement)", local.calls())
	}
}

func TestEnhance_RuleBasedNotCached(t *testing.T) {
	cache := NewMemoryCache()
	p := New(Config{}, WithCache(cache))
	if _, err := p.Enhance(context.Background(), nil, meeting, Prompts{}, ""); err != nil {
		t.Fatal(err)
	}
	if got, _ := cache.Get(context.Background(), CacheKey(meeting, "", DefaultPrompts())); got != nil {
		t.Errorf("rule-based result cached: %+v", got)
	}
}

func TestMemoryCache_TTL(t *testing.T) {
	c := NewMemoryCache()
	now := time.Now()
	c.now = func() time.Time { return now }
	_ = c.Put(context.Background(), "k", Enhancement{Title: "t"}, time.Minute)
	if got, _ := c.Get(context.Background(), "k"); got == nil {
		t.Fatal("expected hit")
	}
	now = now.Add(2 * time.Minute)
	if got, _ := c.Get(context.Background(), "k"); got != nil {
		t.Error("expected expiry")
	}
}
