package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryFromIndex(t *testing.T) {
	tests := []struct {
		idx  int
		want Category
	}{
		{0, CategoryUnrest},
		{1, CategoryPositive},
		{2, CategoryNaturalDisaster},
		{3, CategoryOther},
		{4, CategoryOther},
		{100, CategoryOther},
		{-1, CategoryOther},
		{math.MinInt, CategoryOther},
		{math.MaxInt, CategoryOther},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("index %d", tt.idx), func(t *testing.T) {
			assert.Equal(t, tt.want, CategoryFromIndex(tt.idx))
			assert.Equal(t, tt.want, CategoryFromIndex(tt.idx), "must be deterministic")
		})
	}
}

func TestCategory_Name(t *testing.T) {
	assert.Equal(t, "Terrorism/Protest/Political Unrest/Riot", CategoryUnrest.Name())
	assert.Equal(t, "Positive/Uplifting", CategoryPositive.Name())
	assert.Equal(t, "Natural Disasters", CategoryNaturalDisaster.Name())
	assert.Equal(t, "Others", CategoryOther.Name())
	assert.Equal(t, "weird", Category("weird").Name())
}

func TestParseCategory(t *testing.T) {
	for _, c := range AllCategories() {
		got, err := ParseCategory(string(c))
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}

	_, err := ParseCategory("sports")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")
}

func TestProcessingError(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("fetch feed: %w", NewError(KindTransport, "http://example.com/rss", base))

	assert.Equal(t, KindTransport, KindOf(err))
	require.ErrorIs(t, err, base)
	assert.Equal(t, `fetch feed: transport error for "http://example.com/rss": connection refused`, err.Error())

	assert.Equal(t, KindUnknown, KindOf(base))
	assert.Equal(t, KindUnknown, KindOf(nil))

	noSubject := NewError(KindPersistence, "", base)
	assert.Equal(t, "persistence error: connection refused", noSubject.Error())
}

func TestArticle_Key(t *testing.T) {
	a := Article{Title: "title", SourceURL: "http://x/1"}
	assert.Equal(t, "http://x/1", a.Key())
}
