package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const transcribeSystemPrompt = "You transcribe text from images. You never invent or correct text."

// Ollama recognizes card text with a vision model served by a local Ollama.
// Models with usable OCR: llava:1.6, qwen2-vl:7b, minicpm-v.
type Ollama struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewOllama creates an Ollama recognizer. Empty arguments fall back to the
// local default server and llava.
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}
	return &Ollama{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/generate",
		model:    modelName,
		// vision models are slow on CPU
		client: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Recognize implements Recognizer
func (o *Ollama) Recognize(ctx context.Context, imageData []byte, contentType string) ([]string, error) {
	return recognizeWith(ctx, o, imageData, contentType)
}

func (o *Ollama) label() string {
	return "ollama " + o.model
}

func (o *Ollama) transcribe(ctx context.Context, png []byte) (string, error) {
	payload, err := json.Marshal(ollamaGenerateRequest{
		Model:   o.model,
		System:  transcribeSystemPrompt,
		Prompt:  cardTranscribePrompt,
		Images:  []string{base64.StdEncoding.EncodeToString(png)},
		Options: map[string]any{"temperature": 0},
	})
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("model error: %s", out.Error)
	}
	return out.Response, nil
}

// Close is a no-op for the HTTP client
func (o *Ollama) Close() error {
	return nil
}
