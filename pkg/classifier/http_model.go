package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPModel calls a text-classification inference endpoint, like a hosted
// HuggingFace model or a local model server
type HTTPModel struct {
	endpoint string
	apiKey   string
	labels   []string
	client   *http.Client
}

// HTTPModelParams configures HTTPModel
type HTTPModelParams struct {
	Endpoint string
	APIKey   string
	Labels   []string // ordered labels, used to place label/score pairs
	Timeout  time.Duration
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// NewHTTPModel creates a reusable inference client. Labels are required,
// label/score responses are usually sorted by score and can't be placed by position.
func NewHTTPModel(params HTTPModelParams) (*HTTPModel, error) {
	if len(params.Labels) == 0 {
		return nil, errors.New("http model requires labels")
	}
	return &HTTPModel{
		endpoint: params.Endpoint,
		apiKey:   params.APIKey,
		labels:   params.Labels,
		client:   &http.Client{Timeout: params.Timeout},
	}, nil
}

// Predict sends text and returns probabilities ordered by label index
func (m *HTTPModel) Predict(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(map[string]any{"inputs": text})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	return m.decode(data)
}

// decode accepts {"probabilities":[...]}, [{"label","score"}...] and [[{"label","score"}...]]
func (m *HTTPModel) decode(data []byte) ([]float64, error) {
	var obj struct {
		Probabilities []float64 `json:"probabilities"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if len(obj.Probabilities) == 0 {
			return nil, ErrEmptyPrediction
		}
		return obj.Probabilities, nil
	}

	var flat []labelScore
	if err := json.Unmarshal(data, &flat); err == nil {
		return m.order(flat)
	}

	var nested [][]labelScore
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(nested) == 0 {
		return nil, ErrEmptyPrediction
	}
	return m.order(nested[0])
}

// order places scores by label index, the position in the response is ignored
func (m *HTTPModel) order(scores []labelScore) ([]float64, error) {
	if len(scores) == 0 {
		return nil, ErrEmptyPrediction
	}

	size := len(scores)
	if len(m.labels) > size {
		size = len(m.labels)
	}
	res := make([]float64, size)
	seen := make([]bool, size)
	for _, s := range scores {
		idx, err := m.labelIndex(s.Label)
		if err != nil {
			return nil, err
		}
		if idx >= size {
			return nil, fmt.Errorf("label %q index %d out of range %d", s.Label, idx, size)
		}
		if seen[idx] {
			return nil, fmt.Errorf("duplicate label %q", s.Label)
		}
		seen[idx] = true
		res[idx] = s.Score
	}
	return res, nil
}

// labelIndex resolves configured label name, then LABEL_n form
func (m *HTTPModel) labelIndex(label string) (int, error) {
	for i, l := range m.labels {
		if strings.EqualFold(l, label) {
			return i, nil
		}
	}
	if n, ok := strings.CutPrefix(strings.ToUpper(label), "LABEL_"); ok {
		idx, err := strconv.Atoi(n)
		if err != nil || idx < 0 {
			return 0, fmt.Errorf("bad label %q", label)
		}
		return idx, nil
	}
	return 0, fmt.Errorf("unknown label %q", label)
}
