package uid_test

import (
	"testing"

	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflake_Monotonic(t *testing.T) {
	t.Setenv("SNOWFLAKE_NODE_ID", "7")

	gen, err := uid.NewSnowflake()
	require.NoError(t, err)

	prev := gen.Generate()
	for range 1000 {
		next := gen.Generate()
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestSnowflake_InvalidNode(t *testing.T) {
	t.Setenv("SNOWFLAKE_NODE_ID", "4096")

	_, err := uid.NewSnowflake()
	assert.ErrorIs(t, err, uid.ErrInvalidNodeID)
}

func TestUUID_Generate(t *testing.T) {
	gen := uid.NewUUID()

	a, b := gen.Generate(), gen.Generate()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
