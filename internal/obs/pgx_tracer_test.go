package obs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClipStatement(t *testing.T) {
	require.Equal(t, "SELECT value FROM cart_kv WHERE key = $1",
		clipStatement("\n  SELECT value\n\tFROM cart_kv   WHERE key = $1 "))

	long := clipStatement("INSERT " + strings.Repeat("x", 400))
	require.Len(t, long, maxStatementLen+3)
	require.True(t, strings.HasSuffix(long, "..."))
}
