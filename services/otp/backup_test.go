package otp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBackupCodes(t *testing.T) {
	t.Run("default batch", func(t *testing.T) {
		codes, err := GenerateBackupCodes(0)
		require.NoError(t, err)
		assert.Len(t, codes, DefaultBackupCodeCount)
	})

	t.Run("codes are eight digit numerals", func(t *testing.T) {
		codes, err := GenerateBackupCodes(10)
		require.NoError(t, err)

		for _, code := range codes {
			assert.Len(t, code, 8)
			for _, r := range code {
				assert.True(t, r >= '0' && r <= '9')
			}
			assert.NotEqual(t, byte('0'), code[0])
		}
	})

	t.Run("codes are pairwise distinct", func(t *testing.T) {
		codes, err := GenerateBackupCodes(50)
		require.NoError(t, err)

		seen := make(map[string]struct{}, len(codes))
		for _, code := range codes {
			_, dup := seen[code]
			assert.False(t, dup, "duplicate code %s", code)
			seen[code] = struct{}{}
		}
	})
}
