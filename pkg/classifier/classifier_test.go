package classifier

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/newsclass/pkg/classifier/mocks"
	"github.com/umputun/newsclass/pkg/config"
	"github.com/umputun/newsclass/pkg/domain"
)

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		name  string
		probs []float64
		want  domain.Category
	}{
		{name: "unrest", probs: []float64{0.7, 0.1, 0.1, 0.1}, want: domain.CategoryUnrest},
		{name: "positive", probs: []float64{0.1, 0.7, 0.1, 0.1}, want: domain.CategoryPositive},
		{name: "natural disaster", probs: []float64{0.1, 0.1, 0.7, 0.1}, want: domain.CategoryNaturalDisaster},
		{name: "other", probs: []float64{0.1, 0.1, 0.1, 0.7}, want: domain.CategoryOther},
		{name: "five labels, last wins", probs: []float64{0.1, 0.1, 0.1, 0.1, 0.6}, want: domain.CategoryOther},
		{name: "three labels", probs: []float64{0.2, 0.2, 0.6}, want: domain.CategoryNaturalDisaster},
		{name: "tie picks lowest index", probs: []float64{0.1, 0.4, 0.4, 0.1}, want: domain.CategoryPositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &mocks.ModelMock{PredictFunc: func(ctx context.Context, text string) ([]float64, error) {
				return tt.probs, nil
			}}
			c := New(model, 512)
			got, err := c.Classify(context.Background(), "Title", "Content")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			require.Len(t, model.PredictCalls(), 1)
			assert.Equal(t, "Title Content", model.PredictCalls()[0].Text)
		})
	}
}

func TestClassifier_Classify_Errors(t *testing.T) {
	t.Run("model error", func(t *testing.T) {
		model := &mocks.ModelMock{PredictFunc: func(ctx context.Context, text string) ([]float64, error) {
			return nil, errors.New("model is down")
		}}
		_, err := New(model, 512).Classify(context.Background(), "Some title", "content")
		require.Error(t, err)
		assert.Equal(t, domain.KindClassification, domain.KindOf(err))
		assert.Contains(t, err.Error(), "model is down")
		assert.Contains(t, err.Error(), "Some title")
	})

	t.Run("unusable output", func(t *testing.T) {
		model := &mocks.ModelMock{PredictFunc: func(ctx context.Context, text string) ([]float64, error) {
			return []float64{0.5, 0.5}, nil
		}}
		_, err := New(model, 512).Classify(context.Background(), "title", "content")
		require.Error(t, err)
		assert.Equal(t, domain.KindClassification, domain.KindOf(err))
		assert.Contains(t, err.Error(), "at least 3 probabilities")
	})
}

func TestClassifier_BuildText(t *testing.T) {
	c := New(&mocks.ModelMock{}, 5)

	assert.Equal(t, "A B", c.BuildText("A", "B"))
	assert.Equal(t, "A", c.BuildText("A", ""))
	assert.Equal(t, "B", c.BuildText("", "B"))
	assert.Equal(t, "one two three four five", c.BuildText("one two", "three four five six seven"))
	assert.Equal(t, "Flood hits city Rescue teams", c.BuildText("Flood hits", "<p>city</p><p>Rescue <b>teams</b></p>"))
	assert.Equal(t, "AT&T news", c.BuildText("AT&T", "news"))

	unlimited := New(&mocks.ModelMock{}, 0)
	long := strings.Repeat("word ", 1000)
	assert.Len(t, strings.Fields(unlimited.BuildText("title", long)), 1001)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", Truncate("", 10))
	assert.Equal(t, "a b c", Truncate("a  b\n\tc", 10))
	assert.Equal(t, "a b", Truncate("a b c d", 2))
	assert.Equal(t, "a b c d", Truncate("a b c d", 0))
	assert.Equal(t, "a", Truncate("a b c d", 1))
}

func TestArgmax(t *testing.T) {
	tests := []struct {
		name    string
		probs   []float64
		want    int
		wantErr string
	}{
		{name: "single max", probs: []float64{0.1, 0.7, 0.1, 0.1}, want: 1},
		{name: "first index on tie", probs: []float64{0.3, 0.3, 0.3}, want: 0},
		{name: "tie in the middle", probs: []float64{0.1, 0.35, 0.2, 0.35}, want: 1},
		{name: "max is last", probs: []float64{0.1, 0.1, 0.8}, want: 2},
		{name: "all zero", probs: []float64{0, 0, 0}, want: 0},
		{name: "nil", probs: nil, wantErr: "expected at least 3 probabilities, got 0"},
		{name: "too short", probs: []float64{1, 0}, wantErr: "expected at least 3"},
		{name: "nan", probs: []float64{0.5, math.NaN(), 0.5}, wantErr: "invalid probability"},
		{name: "negative", probs: []float64{0.5, -0.1, 0.6}, wantErr: "invalid probability -0.1 at index 1"},
		{name: "inf", probs: []float64{0.5, math.Inf(1), 0.6}, wantErr: "invalid probability"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Argmax(tt.probs)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(config.ClassifierConfig{Type: "http", Endpoint: "http://localhost:8000", Labels: testLabels})
	require.NoError(t, err)
	assert.IsType(t, &HTTPModel{}, m)

	_, err = NewModel(config.ClassifierConfig{Type: "http", Endpoint: "http://localhost:8000"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires labels")

	m, err = NewModel(config.ClassifierConfig{Type: "llm", Endpoint: "http://localhost:11434/v1", Model: "llama3"})
	require.NoError(t, err)
	assert.IsType(t, &LLMModel{}, m)

	_, err = NewModel(config.ClassifierConfig{Type: "bert"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown classifier type "bert"`)
}
