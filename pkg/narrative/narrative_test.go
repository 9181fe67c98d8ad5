package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securely/surfacemap/pkg/logging"
	"github.com/securely/surfacemap/pkg/model"
)

var records = []model.BreachRecord{
	{Website: "linkedin.com", BreachDate: "2021-06-22", DataTypes: "email, password"},
	{Website: "", BreachDate: "", DataTypes: ""},
}

type countingRecorder struct {
	generated, fallback int
}

func (r *countingRecorder) RecordNarrative(fallback bool) {
	if fallback {
		r.fallback++
	} else {
		r.generated++
	}
}

func TestPrompt(t *testing.T) {
	p := Prompt("alice@example.com", records)
	assert.Contains(t, p, `"alice@example.com" found 2 compromised account(s)`)
	assert.Contains(t, p, "1. linkedin.com (Date: 2021-06-22, Data exposed: email, password)")
	assert.Contains(t, p, "2. Unknown site (Date: Unknown, Data exposed: Unknown)")
	assert.Contains(t, p, "Threat Summary:")

	safe := Prompt("alice@example.com", nil)
	assert.Contains(t, safe, "found NO compromised accounts")
	assert.Contains(t, safe, "Prevention Tips:")
	assert.NotContains(t, safe, "Threat Summary:")
}

func TestSummarize_Generated(t *testing.T) {
	var got request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get(apiKeyHeader))
		assert.Empty(t, r.URL.RawQuery)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"  Threat Summary: fixable.  "}]}}]}`))
	}))
	defer srv.Close()

	rec := &countingRecorder{}
	c := NewClient(srv.URL, "secret", WithRecorder(rec))
	s, err := c.Summarize(context.Background(), "alice@example.com", records)
	require.NoError(t, err)

	assert.Equal(t, "Threat Summary: fixable.", s.Text)
	assert.False(t, s.Fallback)
	assert.False(t, s.Safe)
	assert.Equal(t, DefaultGenerationConfig, got.GenerationConfig)
	require.Len(t, got.Contents, 1)
	assert.Contains(t, got.Contents[0].Parts[0].Text, "linkedin.com")
	assert.Equal(t, 1, rec.generated)
}

func TestSummarize_Fallbacks(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{not json`))
		}},
		{"no candidates", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"candidates":[]}`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			rec := &countingRecorder{}
			s, err := NewClient(srv.URL, "k", WithRecorder(rec)).Summarize(context.Background(), "a@b.c", records)
			require.NoError(t, err)
			assert.True(t, s.Fallback)
			assert.Equal(t, Fallback(false), s.Text)
			assert.Equal(t, 1, rec.fallback)
		})
	}
}

func TestSummarize_NoKeySkipsNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	s, err := NewClient(srv.URL, "").Summarize(context.Background(), "a@b.c", nil)
	require.NoError(t, err)
	assert.False(t, called)
	assert.True(t, s.Safe)
	assert.True(t, s.Fallback)
	assert.Equal(t, Fallback(true), s.Text)
}

func TestSummarize_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s, err := NewClient(url, "k").Summarize(context.Background(), "a@b.c", records)
	require.NoError(t, err)
	assert.True(t, s.Fallback)
}

func TestSummarize_KeyNeverLogged(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf, slog.LevelDebug)
	defer logging.SetOutput(os.Stdout, slog.LevelInfo)

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s, err := NewClient(url+"/generate", "SUPERSECRETKEY").Summarize(context.Background(), "a@b.c", records)
	require.NoError(t, err)
	assert.True(t, s.Fallback)
	assert.Contains(t, buf.String(), "narrative generation failed")
	assert.NotContains(t, buf.String(), "SUPERSECRETKEY")
}

func TestSummarize_EmptyEmail(t *testing.T) {
	_, err := NewClient("http://unused", "").Summarize(context.Background(), "  ", nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}
