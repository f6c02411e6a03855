package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"intramind/config"
	"intramind/internal/domain"
)

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	a, _ := e.Embed(context.Background(), []string{"Annual leave policy"})
	b, _ := NewHashEmbedder(64).Embed(context.Background(), []string{"Annual leave policy"})

	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatal("same text should embed identically")
		}
	}
	if e.ModelID() != "hash-64" {
		t.Errorf("unexpected model id %s", e.ModelID())
	}
	if e.Dimension() != 64 || len(a[0]) != 64 {
		t.Errorf("unexpected dimension %d/%d", e.Dimension(), len(a[0]))
	}
}

func TestHashEmbedder_Normalized(t *testing.T) {
	e := NewHashEmbedder(0)
	v, _ := e.Embed(context.Background(), []string{"expense reimbursement within thirty days"})
	if n := math.Sqrt(dot(v[0], v[0])); math.Abs(n-1) > 1e-5 {
		t.Errorf("expected unit norm, got %f", n)
	}

	empty, _ := e.Embed(context.Background(), []string{"the and of"})
	if dot(empty[0], empty[0]) != 0 {
		t.Error("stopword-only text should embed to the zero vector")
	}
}

func TestHashEmbedder_SimilarTextsCloser(t *testing.T) {
	e := NewHashEmbedder(512)
	v, _ := e.Embed(context.Background(), []string{
		"employees receive twenty days annual leave",
		"how many days annual leave do employees receive",
		"server rack cooling maintenance schedule",
	})
	if dot(v[0], v[1]) <= dot(v[0], v[2]) {
		t.Error("related texts should be more similar than unrelated ones")
	}
}

func TestNew_Providers(t *testing.T) {
	e, err := New(context.Background(), config.EmbeddingConfig{Provider: "hash", Dimension: 32})
	if err != nil {
		t.Fatal(err)
	}
	if e.ModelID() != "hash-32" {
		t.Errorf("unexpected model id %s", e.ModelID())
	}

	_, err = New(context.Background(), config.EmbeddingConfig{Provider: "carrier-pigeon"})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}

	t.Setenv("INTRAMIND_TEST_MISSING_KEY", "")
	_, err = New(context.Background(), config.EmbeddingConfig{Provider: "openai", Model: "m", APIKeyEnv: "INTRAMIND_TEST_MISSING_KEY"})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected configuration error for missing key, got %v", err)
	}
}
