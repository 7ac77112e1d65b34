package ids

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testULID = "01HYX3KQW7ERTV9XNBM2P8QJZF"

func TestNewULIDReturnsValid(t *testing.T) {
	value, err := NewULID()

	require.NoError(t, err)
	require.NoError(t, ValidateULID(value))
}

func TestNewULIDAtIsIncreasingWithinMillisecond(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first, err := NewULIDAt(at)
	require.NoError(t, err)
	second, err := NewULIDAt(at)
	require.NoError(t, err)

	require.Less(t, first, second)
}

func TestValidateULID(t *testing.T) {
	require.NoError(t, ValidateULID(testULID))
	require.NoError(t, ValidateULID("  "+testULID+"  "))
	require.ErrorIs(t, ValidateULID("not-a-ulid"), ErrInvalidULID)
	require.ErrorIs(t, ValidateULID(""), ErrInvalidULID)
}
