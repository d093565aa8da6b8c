package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
)

func TestSumMatchesBlake3(t *testing.T) {
	for i := 0; i < 3; i++ {
		expected := blake3.Sum256([]byte("hello world"))
		require.Equal(t, expected, Sum([]byte("hello "), []byte("world")))
	}
}

func TestDeriveKey(t *testing.T) {
	material := []byte("seed")
	a := DeriveKey("ctx/a", material)
	require.Equal(t, a, DeriveKey("ctx/a", material))
	require.NotEqual(t, a, DeriveKey("ctx/b", material))
	require.NotEqual(t, a, DeriveKey("ctx/a", []byte("other")))
}
