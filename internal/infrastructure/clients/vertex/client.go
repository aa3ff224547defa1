package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/samdiagnosis/backend/pkg/config"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// ErrEmptyEmbedding is returned when the model answers without a usable vector.
var ErrEmptyEmbedding = errors.New("vertex returned an empty embedding")

// ErrEmptyGeneration is returned when the model answers without any text.
var ErrEmptyGeneration = errors.New("vertex returned no generated text")

// Client calls Vertex AI publisher models (text generation and text
// embeddings) over the predict endpoint. A circuit breaker guards both call
// paths so a flapping backend sheds load fast instead of queueing timeouts.
type Client struct {
	projectID      string
	location       string
	embeddingModel string
	textModel      string
	baseURL        string
	httpClient     *http.Client
	tokenSource    oauth2.TokenSource
	breaker        *gobreaker.CircuitBreaker
}

// NewClient creates a new Vertex AI client using application default
// credentials.
func NewClient(cfg *config.VertexConfig) (*Client, error) {
	if cfg == nil || cfg.ProjectID == "" {
		return nil, errors.New("vertex project id is required")
	}

	tokenSource, err := google.DefaultTokenSource(context.Background(), cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("failed to build vertex token source: %w", err)
	}

	return newClient(cfg, tokenSource), nil
}

func newClient(cfg *config.VertexConfig, tokenSource oauth2.TokenSource) *Client {
	location := cfg.Location
	if location == "" {
		location = "us-central1"
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "vertex",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		projectID:      cfg.ProjectID,
		location:       location,
		embeddingModel: cfg.EmbeddingModel,
		textModel:      cfg.TextModel,
		baseURL:        fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", location),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokenSource: tokenSource,
		breaker:     breaker,
	}
}

type predictInstance struct {
	Content string `json:"content"`
}

type predictRequest struct {
	Instances  []predictInstance      `json:"instances"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

type embeddingValues struct {
	Values []float64 `json:"values"`
}

type prediction struct {
	Content    string           `json:"content"`
	Embeddings *embeddingValues `json:"embeddings"`
	Embedding  []float64        `json:"embedding"`
}

type predictResponse struct {
	Predictions []prediction `json:"predictions"`
}

// Embed maps text to a fixed-length vector via the embedding publisher model.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.predict(ctx, c.embeddingModel, &predictRequest{
		Instances: []predictInstance{{Content: text}},
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Predictions) == 0 {
		return nil, ErrEmptyEmbedding
	}

	// Newer embedding models nest values under "embeddings", older ones
	// return a bare "embedding" array.
	p := resp.Predictions[0]
	if p.Embeddings != nil && len(p.Embeddings.Values) > 0 {
		return p.Embeddings.Values, nil
	}
	if len(p.Embedding) > 0 {
		return p.Embedding, nil
	}
	return nil, ErrEmptyEmbedding
}

// GenerateText generates free text from a prompt via the text publisher model.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := c.predict(ctx, c.textModel, &predictRequest{
		Instances: []predictInstance{{Content: prompt}},
		Parameters: map[string]interface{}{
			"maxOutputTokens": 512,
			"temperature":     0.2,
		},
	})
	if err != nil {
		return "", err
	}

	if len(resp.Predictions) == 0 || resp.Predictions[0].Content == "" {
		return "", ErrEmptyGeneration
	}
	return resp.Predictions[0].Content, nil
}

func (c *Client) predict(ctx context.Context, model string, request *predictRequest) (*predictResponse, error) {
	if model == "" {
		return nil, errors.New("vertex model is not configured")
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doPredict(ctx, model, request)
	})
	if err != nil {
		return nil, err
	}
	return result.(*predictResponse), nil
}

func (c *Client) doPredict(ctx context.Context, model string, request *predictRequest) (*predictResponse, error) {
	token, err := c.tokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain vertex access token: %w", err)
	}

	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/projects/%s/locations/%s/publishers/google/models/%s:predict",
		c.baseURL, c.projectID, c.location, model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vertex predict for model %s failed with status %d", model, resp.StatusCode)
	}

	var envelope predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode vertex response: %w", err)
	}
	return &envelope, nil
}
