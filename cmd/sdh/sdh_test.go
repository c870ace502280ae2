package sdh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinsuchenak/invd/internal/model"
)

func TestParsePositions(t *testing.T) {
	positions, err := ParsePositions("stm-1:1, stm-2:3,")
	require.NoError(t, err)
	assert.Equal(t, []model.SDHPosition{
		{LinkID: "stm-1", Position: 1},
		{LinkID: "stm-2", Position: 3},
	}, positions)
	assert.Equal(t, "stm-1:1,stm-2:3", FormatPositions(positions))

	for _, bad := range []string{"", "stm-1", ":2", "stm-1:0", "stm-1:x"} {
		_, err := ParsePositions(bad)
		assert.Error(t, err, bad)
	}
}
