package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDigest(t *testing.T) {
	t.Parallel()

	require.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Digest(nil))
	require.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Digest([]byte("hello")))
	require.Equal(t, Digest([]byte("png-bytes")), Digest([]byte("png-bytes")))
	require.NotEqual(t, Digest([]byte("a")), Digest([]byte("b")))
}
