package crud

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	// MinCost keeps the test fast; production uses the default cost.
	hasher := BcryptHasher{Cost: bcrypt.MinCost}

	hashed, err := hasher.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hashed)

	assert.NoError(t, hasher.Compare(hashed, "correct horse battery staple"))
	assert.Error(t, hasher.Compare(hashed, "wrong password"))
	assert.Error(t, hasher.Compare("not a bcrypt hash", "anything"))
}

func TestBcryptHasherZeroCost(t *testing.T) {
	hasher := BcryptHasher{}
	hashed, err := hasher.Hash("pw")
	require.NoError(t, err)
	assert.NoError(t, hasher.Compare(hashed, "pw"))
}
