package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karasuemlak/backend/internal/domain/entities"
	"github.com/karasuemlak/backend/internal/domain/providers"
	"github.com/karasuemlak/backend/pkg/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&config.OpenAIConfig{
		APIKey:       "test-key",
		Model:        "gpt-test",
		BaseURL:      server.URL,
		RateLimitRPM: -1,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func outputTextResponse(text string) map[string]interface{} {
	return map[string]interface{}{
		"output": []map[string]interface{}{
			{"content": []map[string]interface{}{{"type": "output_text", "text": text}}},
		},
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(&config.OpenAIConfig{})
	assert.Error(t, err)
}

func TestClient_Rewrite(t *testing.T) {
	req := entities.ImproveRequest{
		ContentType: entities.ContentTypeListing,
		Field:       "description",
		Title:       "Test İlan",
		Text:        "Kısa açıklama.",
		Analysis:    &entities.QualityAnalysis{Score: 20, Suggestions: []string{"Metni uzatın"}},
	}

	t.Run("parses fenced json output", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/responses", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var payload map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "gpt-test", payload["model"])

			body := "```json\n{\"improved_text\": \"Karasu merkezde, denize yakın ferah bir daire.\", \"changes\": [\"Metin genişletildi\"]}\n```"
			_ = json.NewEncoder(w).Encode(outputTextResponse(body))
		})

		result, err := client.Rewrite(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "Karasu merkezde, denize yakın ferah bir daire.", result.Text)
		assert.Equal(t, []string{"Metin genişletildi"}, result.Changes)
		assert.Equal(t, "openai", client.Name())
		assert.Equal(t, "gpt-test", client.Model())
	})

	t.Run("unauthorized maps to sentinel", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})

		_, err := client.Rewrite(context.Background(), req)
		require.Error(t, err)
		assert.True(t, errors.Is(err, providers.ErrImproverUnauthorized))
	})

	t.Run("api error message is surfaced", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"model overloaded","type":"server_error"}}`))
		})

		_, err := client.Rewrite(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "model overloaded")
	})

	t.Run("output failing schema is rejected", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(outputTextResponse(`{"changes": ["x"]}`))
		})

		_, err := client.Rewrite(context.Background(), req)
		assert.Error(t, err)
	})

	t.Run("missing output text", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"output": []interface{}{}})
		})

		_, err := client.Rewrite(context.Background(), req)
		assert.Error(t, err)
	})

	t.Run("empty text is rejected before calling out", func(t *testing.T) {
		called := false
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			called = true
		})

		_, err := client.Rewrite(context.Background(), entities.ImproveRequest{Text: "  "})
		assert.Error(t, err)
		assert.False(t, called)
	})
}

func TestBuildRewriteUserPrompt(t *testing.T) {
	prompt := buildRewriteUserPrompt(entities.ImproveRequest{
		ContentType: entities.ContentTypeNews,
		Field:       "summary",
		Title:       "Karasu sahilinde yeni dönem",
		Text:        "Kısa özet.",
		Analysis: &entities.QualityAnalysis{
			Score:  35,
			Issues: []entities.QualityIssue{{Code: "too_short", Severity: entities.SeverityWarning, Message: "Metin çok kısa"}},
		},
	})

	assert.Contains(t, prompt, "İçerik türü: haber")
	assert.Contains(t, prompt, "Mevcut kalite puanı: 35/100")
	assert.Contains(t, prompt, "- Metin çok kısa")
	assert.Contains(t, prompt, "Kısa özet.")
}

func TestTokenBucket_WaitHonoursContext(t *testing.T) {
	bucket := newTokenBucketWithRate(1, 1)
	defer bucket.Stop()

	require.NoError(t, bucket.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bucket.Wait(ctx), context.Canceled)
}
