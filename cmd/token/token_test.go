package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/martinsuchenak/invd/internal/api"
)

func TestHash(t *testing.T) {
	hash, err := Hash([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, api.IsHashedToken(hash))
	assert.True(t, api.CheckToken("s3cret", hash))
	assert.False(t, api.CheckToken("other", hash))

	_, err = Hash(nil, bcrypt.MinCost)
	assert.Error(t, err)
	_, err = Hash([]byte("x"), 99)
	assert.Error(t, err)
}
