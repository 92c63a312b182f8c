package credential

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/kbukum/scribe/errors"
)

type failingStore struct{}

func (failingStore) Lookup(context.Context, string) (string, bool, error) {
	return "", false, errors.New("locked")
}

func TestEnvVar(t *testing.T) {
	if got := EnvVar("openai"); got != "OPENAI_API_KEY" {
		t.Errorf("got %s", got)
	}
	if got := EnvVar("azure-openai"); got != "AZURE_OPENAI_API_KEY" {
		t.Errorf("got %s", got)
	}
}

func TestEnvSource(t *testing.T) {
	env := EnvSource{Getenv: func(k string) string {
		if k == "OPENAI_API_KEY" {
			return " sk-env "
		}
		return ""
	}}
	v, ok, err := env.Lookup(context.Background(), "openai")
	if err != nil || !ok || v != "sk-env" {
		t.Errorf("got %q %v %v", v, ok, err)
	}
	if _, ok, _ := env.Lookup(context.Background(), "groq"); ok {
		t.Error("unexpected key for groq")
	}
}

func TestEnvSource_StripsQuotes(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"sk-quoted"`, "sk-quoted"},
		{`'sk-single'`, "sk-single"},
		{` " sk-padded " `, "sk-padded"},
		{`"sk-unbalanced`, `"sk-unbalanced`},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			env := EnvSource{Getenv: func(string) string { return tt.raw }}
			v, _, _ := env.Lookup(context.Background(), "openai")
			if v != tt.want {
				t.Errorf("got %q, want %q", v, tt.want)
			}
		})
	}
}

func TestMask(t *testing.T) {
	tests := []struct {
		secret  string
		visible int
		want    string
	}{
		{"sk-proj-abcdef123456", 7, "sk-proj***"},
		{"short", 10, "***"},
		{"exactly7", 8, "***"},
		{"", 4, "***"},
	}
	for _, tt := range tests {
		t.Run(tt.secret, func(t *testing.T) {
			if got := Mask(tt.secret, tt.visible); got != tt.want {
				t.Errorf("Mask(%q, %d) = %q, want %q", tt.secret, tt.visible, got, tt.want)
			}
		})
	}
}

func TestResolver_Order(t *testing.T) {
	ctx := context.Background()
	stored := NewMemoryStore()
	_ = stored.Set(ctx, "openai", "sk-stored")
	_ = stored.Set(ctx, "groq", "gsk-stored")

	env := EnvSource{Getenv: func(k string) string {
		if k == "OPENAI_API_KEY" {
			return "sk-env"
		}
		return ""
	}}
	r := NewResolver(failingStore{}, env, stored)

	if v, _ := r.Resolve(ctx, "openai"); v != "sk-env" {
		t.Errorf("openai = %q, want env value", v)
	}
	if v, _ := r.Resolve(ctx, "groq"); v != "gsk-stored" {
		t.Errorf("groq = %q, want stored value", v)
	}
	if r.Has(ctx, "anthropic") {
		t.Error("unexpected credential")
	}
}

func TestResolver_Require(t *testing.T) {
	r := NewResolver(NewMemoryStore())
	_, err := r.Require(context.Background(), "openai")
	if !apperrors.HasCode(err, apperrors.ErrCodeCredentialMissing) {
		t.Fatalf("err = %v", err)
	}

	var nilResolver *Resolver
	if nilResolver.Has(context.Background(), "openai") {
		t.Error("nil resolver resolved a key")
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_ = m.Set(ctx, "b", "2")
	_ = m.Set(ctx, "a", "1")
	names, _ := m.List(ctx)
	if len(names) != 2 || names[0] != "a" {
		t.Errorf("List = %v", names)
	}
	_ = m.Delete(ctx, "a")
	if _, ok, _ := m.Lookup(ctx, "a"); ok {
		t.Error("deleted key still present")
	}
}
