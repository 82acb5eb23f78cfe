// AngelaMos | 2026
// twofactor.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/academic-core/internal/core"
)

// BeginTOTPSetup stores a provisional secret, reusing one left over from an
// unfinished setup, and returns it with its provisioning URI. 2FA stays off
// until ConfirmTOTPSetup sees a valid code.
func (s *Service) BeginTOTPSetup(
	ctx context.Context,
	userID string,
) (*TOTPSetupResponse, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user.TOTPEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	secret := user.TOTPSecret
	if secret == "" {
		secret, err = s.totp.GenerateSecret(user.Email)
		if err != nil {
			return nil, err
		}

		if err := s.userProvider.SetTOTPSecret(ctx, userID, secret); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return nil, ErrTwoFactorAlreadyEnabled
			}
			return nil, fmt.Errorf("store totp secret: %w", err)
		}
	}

	return &TOTPSetupResponse{
		Secret:          secret,
		ProvisioningURI: s.totp.ProvisioningURI(secret, user.Email),
	}, nil
}

// ConfirmTOTPSetup turns 2FA on and returns the first batch of backup codes.
// This is the only time the plaintext codes leave the service.
func (s *Service) ConfirmTOTPSetup(
	ctx context.Context,
	userID, code string,
) (*BackupCodesResponse, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user.TOTPEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}
	if user.TOTPSecret == "" {
		return nil, ErrTOTPSetupNotStarted
	}

	if !s.totp.Validate(code, user.TOTPSecret, s.now()) {
		s.metrics.SecondFactorAttempt(MethodTOTP, "setup_invalid")
		return nil, ErrInvalidSecondFactor
	}

	codes, hashes, err := GenerateBackupCodes(s.totp.backupCodeCount)
	if err != nil {
		return nil, err
	}

	if err := s.userProvider.EnableTOTP(ctx, userID, hashes); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrTwoFactorAlreadyEnabled
		}
		return nil, fmt.Errorf("enable totp: %w", err)
	}

	slog.InfoContext(ctx, "two-factor enabled", "user_id", userID)

	return &BackupCodesResponse{Codes: codes}, nil
}

// DisableTOTP wipes the secret, the flag and every backup code. It asks for
// the password again so a stolen access token alone cannot strip 2FA.
func (s *Service) DisableTOTP(ctx context.Context, userID, password string) error {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if !user.TOTPEnabled {
		return ErrTwoFactorNotEnabled
	}

	valid, err := core.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return ErrInvalidCredentials
	}

	if err := s.userProvider.DisableTOTP(ctx, userID); err != nil {
		return fmt.Errorf("disable totp: %w", err)
	}

	slog.InfoContext(ctx, "two-factor disabled", "user_id", userID)

	return nil
}

// RegenerateBackupCodes replaces the whole vault. Reachable only with a full
// access token.
func (s *Service) RegenerateBackupCodes(
	ctx context.Context,
	userID string,
) (*BackupCodesResponse, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.TOTPEnabled {
		return nil, ErrTwoFactorNotEnabled
	}

	codes, hashes, err := GenerateBackupCodes(s.totp.backupCodeCount)
	if err != nil {
		return nil, err
	}

	if err := s.userProvider.ReplaceBackupCodes(ctx, userID, hashes); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrTwoFactorNotEnabled
		}
		return nil, fmt.Errorf("replace backup codes: %w", err)
	}

	slog.InfoContext(ctx, "backup codes regenerated", "user_id", userID)

	return &BackupCodesResponse{Codes: codes}, nil
}

func (s *Service) BackupCodesRemaining(
	ctx context.Context,
	userID string,
) (*BackupCodesStatus, error) {
	n, err := s.userProvider.CountBackupCodes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count backup codes: %w", err)
	}

	return &BackupCodesStatus{Remaining: n}, nil
}
