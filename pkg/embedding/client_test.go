package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_EmbedOrdersByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, []string{"first", "second"}, req.Input)

		// Return vectors out of order; the client must reorder by index.
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{ // nolint:errcheck
			"data": []map[string]interface{}{
				{"index": 1, "embedding": []float32{2, 2}},
				{"index": 0, "embedding": []float32{1, 1}},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "nomic-embed-text", 2, time.Second)
	vectors, err := client.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 1}, vectors[0])
	assert.Equal(t, []float32{2, 2}, vectors[1])
}

func TestClient_EmbedEmptyInput(t *testing.T) {
	client := NewClient("http://unused", "m", 768, time.Second)

	vectors, err := client.Embed(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestClient_EmbedCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{ // nolint:errcheck
			"data": []map[string]interface{}{{"index": 0, "embedding": []float32{1}}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "m", 768, time.Second)
	_, err := client.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorContains(t, err, "got 1 vectors for 2 inputs")
}

func TestClient_EmbedIndexOutOfRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{ // nolint:errcheck
			"data": []map[string]interface{}{{"index": 5, "embedding": []float32{1}}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "m", 768, time.Second)
	_, err := client.Embed(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "out of range")
}

func TestClient_EmbedServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, "m", 768, time.Second)
	_, err := client.Embed(context.Background(), []string{"a"})
	assert.ErrorContains(t, err, "unexpected status 503")
}

func TestClient_EmbedContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	client := NewClient(server.URL, "m", 768, time.Second)
	_, err := client.Embed(ctx, []string{"a"})
	assert.Error(t, err)
}

func TestClient_Accessors(t *testing.T) {
	client := NewClient("http://unused/", "nomic-embed-text", 1024, 0)
	assert.Equal(t, 1024, client.Dimension())
	assert.Equal(t, "nomic-embed-text", client.Model())
}

func TestVisionClient_Describe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llava", req.Model)
		require.Len(t, req.Messages, 1)
		require.Len(t, req.Messages[0].Content, 2)
		require.NotNil(t, req.Messages[0].Content[1].ImageURL)
		assert.Contains(t, req.Messages[0].Content[1].ImageURL.URL, "data:image/jpeg;base64,")

		json.NewEncoder(w).Encode(map[string]interface{}{ // nolint:errcheck
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": "A cat on a windowsill."}},
			},
		})
	}))
	defer server.Close()

	client := NewVisionClient(server.URL, "llava", time.Second)
	desc, err := client.Describe(context.Background(), []byte{0xff, 0xd8, 0xff}, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "A cat on a windowsill.", desc)
}

func TestVisionClient_DescribeEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}}) // nolint:errcheck
	}))
	defer server.Close()

	client := NewVisionClient(server.URL, "llava", time.Second)
	_, err := client.Describe(context.Background(), []byte{1}, "image/png")
	assert.ErrorContains(t, err, "empty choices")
}

func TestVisionClient_DescribeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no model", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewVisionClient(server.URL, "llava", time.Second)
	_, err := client.Describe(context.Background(), []byte{1}, "image/png")
	assert.ErrorContains(t, err, "unexpected status 404")
}
