// AngelaMos | 2026
// backupcodes.go

package auth

import (
	"fmt"
	"strings"

	"github.com/carterperez-dev/academic-core/internal/core"
)

const backupCodeBytes = 4

// GenerateBackupCodes returns n distinct 8 character upper-case hex codes
// and their storage digests in the same order.
func GenerateBackupCodes(n int) ([]string, []string, error) {
	codes := make([]string, 0, n)
	hashes := make([]string, 0, n)
	seen := make(map[string]struct{}, n)

	for len(codes) < n {
		code, err := core.RandomHex(backupCodeBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("generate backup code: %w", err)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
		hashes = append(hashes, HashBackupCode(code))
	}

	return codes, hashes, nil
}

// NormalizeBackupCode accepts lower case and the grouping characters users
// tend to type.
func NormalizeBackupCode(code string) string {
	code = strings.TrimSpace(code)
	code = strings.NewReplacer("-", "", " ", "").Replace(code)
	return strings.ToUpper(code)
}

func HashBackupCode(code string) string {
	return core.HashToken(NormalizeBackupCode(code))
}

func isBackupCodeShape(code string) bool {
	code = NormalizeBackupCode(code)
	if len(code) != backupCodeBytes*2 {
		return false
	}
	for _, c := range code {
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
