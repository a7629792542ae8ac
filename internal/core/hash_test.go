package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func Test_StateHash_Ignores_Item_Order(t *testing.T) {
	// Act
	h1 := StateHash([]string{"a", "b"}, strPtr("c"))
	h2 := StateHash([]string{"b", "a"}, strPtr("c"))

	// Assert
	require.Equal(t, h1, h2)
	require.Len(t, h1, 8)
}

func Test_StateHash_Changes_With_Item_Set(t *testing.T) {
	require.NotEqual(t,
		StateHash([]string{"a", "b"}, strPtr("c")),
		StateHash([]string{"a", "c"}, strPtr("c")),
	)
}

func Test_StateHash_Changes_With_Current_Item(t *testing.T) {
	require.NotEqual(t,
		StateHash([]string{"a"}, strPtr("c1")),
		StateHash([]string{"a"}, strPtr("c2")),
	)
	require.NotEqual(t,
		StateHash([]string{"a"}, nil),
		StateHash([]string{"a"}, strPtr("a")),
	)
}

func Test_StateHash_Does_Not_Mutate_Input(t *testing.T) {
	// Arrange
	ids := []string{"z", "y", "x"}

	// Act
	_ = StateHash(ids, nil)

	// Assert
	require.Equal(t, []string{"z", "y", "x"}, ids)
}

func Test_StateHash_Matches_FNV1a_Reference(t *testing.T) {
	// Empty queue, no current item: FNV-1a 32 of "|null".
	require.Equal(t, fnv1a("|null"), StateHash(nil, nil))
	// Known FNV-1a 32 vectors.
	require.Equal(t, "811c9dc5", fnv1a(""))
	require.Equal(t, "e40c292c", fnv1a("a"))
	require.Equal(t, "bf9cf968", fnv1a("foobar"))
}
