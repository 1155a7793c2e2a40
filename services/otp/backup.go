package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// DefaultBackupCodeCount is the batch size generated at setup time.
	DefaultBackupCodeCount = 10

	backupCodeMin = 10_000_000
	backupCodeMax = 99_999_999
)

// GenerateBackupCodes draws n single-use recovery codes, each an 8-digit
// numeral. Codes are pairwise distinct within the batch; a collision is
// astronomically unlikely but redrawn anyway.
func GenerateBackupCodes(n int) ([]string, error) {
	if n <= 0 {
		n = DefaultBackupCodeCount
	}

	codes := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	span := big.NewInt(backupCodeMax - backupCodeMin + 1)

	for len(codes) < n {
		v, err := rand.Int(rand.Reader, span)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEntropyFailure, err)
		}

		code := fmt.Sprintf("%d", v.Int64()+backupCodeMin)
		if _, dup := seen[code]; dup {
			continue
		}

		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	return codes, nil
}
