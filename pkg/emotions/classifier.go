package emotions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-kaiwa/internal/httpc"
)

// ErrNoScores is returned when the classifier answers without a label.
var ErrNoScores = errors.New("emotions: classifier returned no scores")

// ClassifierError is a non-success response from the sentiment service.
type ClassifierError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *ClassifierError) Error() string {
	return fmt.Sprintf("emotions: classifier status %d: %s", e.StatusCode, e.Body)
}

// Classifier calls a sentiment service that scores text against the eight
// WRIME emotions.
//
// The service receives {"text": "..."} and answers with either
// {"label": <index>} or {"scores": [8 floats]}; the highest score wins.
type Classifier struct {
	url    string
	http   *http.Client
	logger *slog.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) ClassifierOption {
	return func(c *Classifier) { c.http = client }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) ClassifierOption {
	return func(c *Classifier) { c.logger = logger }
}

// NewClassifier creates a classifier for the service at url.
func NewClassifier(url string, timeout time.Duration, opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		url:    strings.TrimSuffix(url, "/"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = httpc.NewClient(timeout)
	}
	c.logger = c.logger.With("component", "emotions.classifier")
	return c
}

type classifyRequest struct {
	Text string `json:"text"`
}

type classifyResponse struct {
	Label  *int      `json:"label"`
	Scores []float64 `json:"scores"`
}

// Analyze classifies text. Emoji are stripped first; text that is empty
// afterwards is Normal without a request.
func (c *Classifier) Analyze(ctx context.Context, text string) (Code, error) {
	text = strings.TrimSpace(StripEmoji(text))
	if text == "" {
		return Normal, nil
	}

	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return Normal, fmt.Errorf("emotions: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Normal, fmt.Errorf("emotions: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return Normal, fmt.Errorf("emotions: classify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return Normal, &ClassifierError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var result classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Normal, fmt.Errorf("emotions: decode response: %w", err)
	}

	label, err := result.label()
	if err != nil {
		return Normal, err
	}

	code := label.Code()
	c.logger.Debug("classified",
		"label", int(label),
		"emotion", code.String(),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return code, nil
}

func (r *classifyResponse) label() (Label, error) {
	if r.Label != nil {
		return Label(*r.Label), nil
	}
	if len(r.Scores) == 0 {
		return 0, ErrNoScores
	}
	best := 0
	for i, s := range r.Scores {
		if s > r.Scores[best] {
			best = i
		}
	}
	return Label(best), nil
}

// Verify Classifier implements Analyzer at compile time.
var _ Analyzer = (*Classifier)(nil)
