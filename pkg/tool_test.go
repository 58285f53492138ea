package pkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{".mp4", ".mov"}, ".mov"))
	assert.False(t, Contains([]string{".mp4"}, ".MP4"))
	assert.True(t, Contains([]int{1, 2}, 2))
	assert.True(t, ContainsFold([]string{".mp4"}, ".MP4"))
	assert.False(t, ContainsFold(nil, ".mp4"))
}
