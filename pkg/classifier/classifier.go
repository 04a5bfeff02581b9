// Package classifier assigns a category to an article using an external
// probability model over an ordered label set.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/umputun/newsclass/pkg/domain"
)

//go:generate moq -out mocks/model.go -pkg mocks -skip-ensure -fmt goimports . Model

// minLabels is the smallest usable probability vector
const minLabels = 3

// Model is the external classification capability. It returns probabilities
// over a fixed ordered label set for the given text.
type Model interface {
	Predict(ctx context.Context, text string) ([]float64, error)
}

// Classifier derives a category from article title and content
type Classifier struct {
	model     Model
	maxTokens int
	policy    *bluemonday.Policy
}

// New makes a classifier, maxTokens limits the text sent to the model, 0 means no limit
func New(model Model, maxTokens int) *Classifier {
	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)
	return &Classifier{model: model, maxTokens: maxTokens, policy: policy}
}

// Classify returns the category of the most likely label. Any model failure
// or unusable output is reported as a classification error.
func (c *Classifier) Classify(ctx context.Context, title, content string) (domain.Category, error) {
	text := c.BuildText(title, content)

	probs, err := c.model.Predict(ctx, text)
	if err != nil {
		return "", domain.NewError(domain.KindClassification, title, fmt.Errorf("predict: %w", err))
	}

	idx, err := Argmax(probs)
	if err != nil {
		return "", domain.NewError(domain.KindClassification, title, err)
	}
	return domain.CategoryFromIndex(idx), nil
}

// BuildText joins title and content with a single space, strips markup and
// keeps at most maxTokens leading tokens
func (c *Classifier) BuildText(title, content string) string {
	text := title + " " + content
	if strings.ContainsAny(text, "<&") {
		// strict policy output is html-escaped
		text = html.UnescapeString(c.policy.Sanitize(text))
	}
	return Truncate(text, c.maxTokens)
}

// Truncate keeps the first maxTokens whitespace separated tokens, collapsing
// whitespace. maxTokens <= 0 disables the limit.
func Truncate(text string, maxTokens int) string {
	tokens := strings.Fields(text)
	if maxTokens > 0 && len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}
	return strings.Join(tokens, " ")
}

// Argmax returns index of the largest probability, the first one wins on ties.
// Vectors shorter than 3, or with NaN or negative entries, are rejected.
func Argmax(probs []float64) (int, error) {
	if len(probs) < minLabels {
		return -1, fmt.Errorf("expected at least %d probabilities, got %d", minLabels, len(probs))
	}
	best := 0
	for i, p := range probs {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return -1, fmt.Errorf("invalid probability %v at index %d", p, i)
		}
		if p > probs[best] {
			best = i
		}
	}
	return best, nil
}

// ErrEmptyPrediction is returned by models when the backend answered with no scores
var ErrEmptyPrediction = errors.New("empty prediction")
