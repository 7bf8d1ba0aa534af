package milvus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPublishedRangeFilter(t *testing.T) {
	from := time.Unix(100, 0)
	to := time.Unix(200, 0)

	assert.Equal(t, "published_unix >= 100 && published_unix <= 200", PublishedRangeFilter(from, to))
	assert.Equal(t, "published_unix >= 100", PublishedRangeFilter(from, time.Time{}))
	assert.Equal(t, "published_unix <= 200", PublishedRangeFilter(time.Time{}, to))
	assert.Empty(t, PublishedRangeFilter(time.Time{}, time.Time{}))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	// "é" is two bytes; never split it
	assert.Equal(t, "a", truncate("aé", 2))
}
