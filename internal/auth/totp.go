// AngelaMos | 2026
// totp.go

package auth

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/carterperez-dev/academic-core/internal/config"
)

const (
	totpDigits     = otp.DigitsSix
	totpAlgorithm  = otp.AlgorithmSHA1
	totpSecretSize = 20
)

// TOTP verifies RFC 6238 codes with a symmetric skew of whole periods
// around the current one.
type TOTP struct {
	issuer          string
	period          uint
	skew            uint
	backupCodeCount int
}

func NewTOTP(cfg config.TOTPConfig) *TOTP {
	return &TOTP{
		issuer:          cfg.Issuer,
		period:          uint(cfg.Period / time.Second),
		skew:            cfg.Skew,
		backupCodeCount: cfg.BackupCodeCount,
	}
}

func (t *TOTP) GenerateSecret(account string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: account,
		Period:      t.period,
		SecretSize:  totpSecretSize,
		Digits:      totpDigits,
		Algorithm:   totpAlgorithm,
	})
	if err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}

	return key.Secret(), nil
}

// ProvisioningURI renders otpauth://totp/{issuer}:{account}?secret=..&issuer=..
// for an external QR renderer. Parameters keep that order and spaces are
// written as %20, which authenticator apps expect.
func (t *TOTP) ProvisioningURI(secret, account string) string {
	label := url.PathEscape(t.issuer) + ":" + url.PathEscape(account)

	return "otpauth://totp/" + label +
		"?secret=" + queryEscape(secret) +
		"&issuer=" + queryEscape(t.issuer)
}

func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func (t *TOTP) Validate(code, secret string, at time.Time) bool {
	code = strings.TrimSpace(code)
	if len(code) != totpDigits.Length() || secret == "" {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    t.period,
		Skew:      t.skew,
		Digits:    totpDigits,
		Algorithm: totpAlgorithm,
	})
	return err == nil && ok
}

// Code returns the code for the period containing at.
func (t *TOTP) Code(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), totp.ValidateOpts{
		Period:    t.period,
		Digits:    totpDigits,
		Algorithm: totpAlgorithm,
	})
}

func (t *TOTP) Period() time.Duration {
	return time.Duration(t.period) * time.Second
}
