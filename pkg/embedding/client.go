package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client speaks the OpenAI-compatible embeddings and chat-completions HTTP
// API exposed by most local and hosted model servers.
type Client struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
}

// NewClient creates a Client for the given base URL, model, and declared
// output dimension.
func NewClient(baseURL, model string, dimension int, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Dimension() int {
	return c.dimension
}

func (c *Client) Model() string {
	return c.model
}

// embedRequest is the JSON body for POST /v1/embeddings.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the JSON returned by POST /v1/embeddings.
type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text, in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed: unexpected status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding embed response: %w", err)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d inputs", len(result.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range result.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embed: vector index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// VisionClient describes images via the chat-completions API.
type VisionClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewVisionClient creates a VisionClient for the given base URL and model.
func NewVisionClient(baseURL, model string, timeout time.Duration) *VisionClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &VisionClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Describe asks the vision model for a textual description of the image.
func (c *VisionClient) Describe(ctx context.Context, image []byte, mimeType string) (string, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))

	msg := chatMessage{
		Role: "user",
		Content: []chatContent{
			{Type: "text", Text: "Describe this image in one concise paragraph."},
			{Type: "image_url", ImageURL: &struct {
				URL string `json:"url"`
			}{URL: dataURL}},
		},
	}

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: []chatMessage{msg}})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating describe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("describe request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("describe: unexpected status %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding describe response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("describe: empty choices")
	}
	return result.Choices[0].Message.Content, nil
}
