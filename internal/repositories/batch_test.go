package repositories

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkIDs(t *testing.T) {
	assert.Nil(t, chunkIDs(nil, 3))
	assert.Equal(t, [][]string{{"a", "b"}}, chunkIDs([]string{"a", "b"}, 3))
	assert.Equal(t, [][]string{{"a", "b", "c"}}, chunkIDs([]string{"a", "b", "c"}, 3))
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunkIDs([]string{"a", "b", "c", "d", "e"}, 2))
}

func TestChunkIDs_StaysUnderParameterLimit(t *testing.T) {
	ids := make([]string, 70000)
	for i := range ids {
		ids[i] = strconv.Itoa(i)
	}

	chunks := chunkIDs(ids, maxInListSize)
	var total int
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), maxInListSize)
		total += len(c)
	}
	assert.Equal(t, len(ids), total)
	assert.Len(t, chunks, 7)
	assert.Less(t, maxInListSize, 65535)
}

func TestTextArray(t *testing.T) {
	assert.Equal(t, `{}`, textArray(nil))
	assert.Equal(t, `{"a"}`, textArray([]string{"a"}))
	assert.Equal(t, `{"0190-a","b,c","q\"x","s\\t"}`, textArray([]string{"0190-a", "b,c", `q"x`, `s\t`}))
}
