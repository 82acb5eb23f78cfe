// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/carterperez-dev/academic-core/internal/core"
	"github.com/carterperez-dev/academic-core/internal/middleware"
)

var (
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrInvalidSecondFactor     = errors.New("invalid second factor")
	ErrTwoFactorNotEnabled     = errors.New("two-factor authentication is not enabled")
	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication is already enabled")
	ErrTOTPSetupNotStarted     = errors.New("two-factor setup has not been started")
	ErrTokenReuse              = errors.New("token reuse detected")
	ErrEmailExists             = errors.New("email already exists")
	ErrWeakPassword            = core.ErrWeakPassword
)

// expiredSessionGrace keeps rotated families around long enough for reuse
// detection to fire on a stolen token.
const expiredSessionGrace = 24 * time.Hour

type UserInfo struct {
	ID           string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsSuperuser  bool
	TOTPSecret   string
	TOTPEnabled  bool
	TokenVersion int
	CreatedAt    time.Time
}

type NewUser struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	IsSuperuser  bool
}

// UserProvider is the identity store as seen by authentication. The backup
// code methods take digests, never plaintext codes.
type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(ctx context.Context, u NewUser) (*UserInfo, error)
	IncrementTokenVersion(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	TouchLastLogin(ctx context.Context, userID string) error

	SetTOTPSecret(ctx context.Context, userID, secret string) error
	EnableTOTP(ctx context.Context, userID string, codeHashes []string) error
	DisableTOTP(ctx context.Context, userID string) error
	ReplaceBackupCodes(ctx context.Context, userID string, codeHashes []string) error
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error)
	CountBackupCodes(ctx context.Context, userID string) (int, error)
}

type Service struct {
	repo         Repository
	jwt          *JWTManager
	userProvider UserProvider
	redis        *core.Redis
	totp         *TOTP
	metrics      *core.Metrics
	now          func() time.Time
}

func NewService(
	repo Repository,
	jwt *JWTManager,
	userProvider UserProvider,
	redisClient *core.Redis,
	totp *TOTP,
	metrics *core.Metrics,
) *Service {
	return &Service{
		repo:         repo,
		jwt:          jwt,
		userProvider: userProvider,
		redis:        redisClient,
		totp:         totp,
		metrics:      metrics,
		now:          time.Now,
	}
}

// Login runs the primary credential check. Users without 2FA come out
// authenticated; users with 2FA get a short-lived pending token that only
// VerifySecondFactor accepts. Unknown email and wrong password are
// indistinguishable to the caller.
func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (_ *LoginResult, err error) {
	ctx, span := core.StartSpan(ctx, "auth.login")
	defer func() { core.EndSpan(span, err) }()

	user, err := s.checkCredentials(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.metrics.LoginAttempt("invalid")
		}
		return nil, err
	}

	core.AddSpanEvent(ctx, "auth.credentials_verified",
		attribute.String("user.id", user.ID),
		attribute.Bool("user.totp_enabled", user.TOTPEnabled),
	)

	if !user.TOTPEnabled {
		s.metrics.LoginAttempt("authenticated")
		resp, err := s.completeLogin(ctx, user, false, userAgent, ipAddress)
		if err != nil {
			return nil, err
		}
		return &LoginResult{State: StateAuthenticated, Auth: resp}, nil
	}

	token, claims, err := s.jwt.CreatePendingToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("create pending token: %w", err)
	}

	s.metrics.LoginAttempt("pending_second_factor")

	return &LoginResult{
		State: StatePendingSecondFactor,
		Challenge: &PendingChallenge{
			PendingToken: token,
			ExpiresAt:    claims.ExpiresAt,
			Methods:      []string{MethodTOTP, MethodBackupCode},
		},
	}, nil
}

func (s *Service) checkCredentials(
	ctx context.Context,
	email, password string,
) (*UserInfo, error) {
	user, err := s.userProvider.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
			_, _, _ = core.VerifyPasswordTimingSafe(password, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(
		password,
		&user.PasswordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return nil, ErrInvalidCredentials
	}

	if newHash != "" {
		//nolint:errcheck // best-effort rehash upgrade
		_ = s.userProvider.UpdatePassword(ctx, user.ID, newHash)
	}

	return user, nil
}

// VerifySecondFactor completes a pending login. The pending token is
// claimed before the proof is checked, so requests sharing one token are
// serialised and only the claim holder can spend a backup code. A failed
// proof releases the claim and leaves the token usable until it expires.
func (s *Service) VerifySecondFactor(
	ctx context.Context,
	req SecondFactorRequest,
	userAgent, ipAddress string,
) (_ *AuthResponse, err error) {
	ctx, span := core.StartSpan(ctx, "auth.verify_second_factor")
	defer func() { core.EndSpan(span, err) }()

	claims, err := s.jwt.VerifyPendingToken(req.PendingToken)
	if err != nil {
		return nil, err
	}

	user, err := s.userProvider.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("pending user: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !user.TOTPEnabled {
		return nil, fmt.Errorf("pending user: %w", core.ErrTokenInvalid)
	}

	method := MethodTOTP
	if req.BackupCode != "" {
		method = MethodBackupCode
	}

	claimKey := core.PendingClaimKey(claims.TokenID)

	ttl := time.Until(claims.ExpiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}

	claimed, err := s.redis.ClaimOnce(ctx, claimKey, ttl)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("pending token already used: %w", core.ErrTokenInvalid)
	}

	if err := s.checkProof(ctx, user, method, req); err != nil {
		s.metrics.SecondFactorAttempt(method, "invalid")
		if relErr := s.redis.Release(context.WithoutCancel(ctx), claimKey); relErr != nil {
			slog.WarnContext(ctx, "release pending token failed",
				"user_id", user.ID,
				"error", relErr,
			)
		}
		return nil, err
	}

	s.metrics.SecondFactorAttempt(method, "verified")
	core.AddSpanEvent(ctx, "auth.second_factor_verified",
		attribute.String("user.id", user.ID),
		attribute.String("auth.method", method),
	)

	return s.completeLogin(ctx, user, true, userAgent, ipAddress)
}

func (s *Service) checkProof(
	ctx context.Context,
	user *UserInfo,
	method string,
	req SecondFactorRequest,
) error {
	switch method {
	case MethodTOTP:
		if !s.totp.Validate(req.Code, user.TOTPSecret, s.now()) {
			return ErrInvalidSecondFactor
		}
		return nil

	case MethodBackupCode:
		if !isBackupCodeShape(req.BackupCode) {
			return ErrInvalidSecondFactor
		}

		ok, err := s.userProvider.ConsumeBackupCode(
			ctx,
			user.ID,
			HashBackupCode(req.BackupCode),
		)
		if err != nil {
			return fmt.Errorf("consume backup code: %w", err)
		}
		if !ok {
			return ErrInvalidSecondFactor
		}

		slog.InfoContext(ctx, "backup code consumed", "user_id", user.ID)
		return nil
	}

	return ErrInvalidSecondFactor
}

func (s *Service) completeLogin(
	ctx context.Context,
	user *UserInfo,
	secondFactor bool,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	resp, err := s.createAuthResponse(ctx, user, secondFactor, userAgent, ipAddress, "", nil)
	if err != nil {
		return nil, err
	}

	if err := s.userProvider.TouchLastLogin(ctx, user.ID); err != nil {
		slog.WarnContext(ctx, "touch last login failed",
			"user_id", user.ID,
			"error", err,
		)
	}

	return resp, nil
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	if err := core.CheckPasswordStrength(
		req.Password,
		req.Email,
		req.FirstName,
		req.LastName,
	); err != nil {
		return nil, err
	}

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.userProvider.Create(ctx, NewUser{
		Email:        req.Email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	})
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.createAuthResponse(ctx, user, false, userAgent, ipAddress, "", nil)
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	session, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenInvalid)
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	if session.IsUsed {
		//nolint:errcheck // security revocation continues regardless
		_ = s.repo.RevokeByFamilyID(ctx, session.FamilyID)
		slog.WarnContext(ctx, "refresh token reuse detected",
			"user_id", session.UserID,
			"family_id", session.FamilyID,
		)
		return nil, ErrTokenReuse
	}

	if !session.IsValid() {
		if session.IsRevoked() {
			return nil, fmt.Errorf("refresh: %w", core.ErrTokenRevoked)
		}
		return nil, fmt.Errorf("refresh: %w", core.ErrTokenExpired)
	}

	user, err := s.userProvider.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return s.createAuthResponse(
		ctx,
		user,
		session.SecondFactor,
		userAgent,
		ipAddress,
		session.FamilyID,
		&session.ID,
	)
}

func (s *Service) Logout(
	ctx context.Context,
	refreshToken, userID string,
) error {
	session, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find session: %w", err)
	}

	if session.UserID != userID {
		return fmt.Errorf("logout: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, session.ID); err != nil &&
		!errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repo.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all sessions: %w", err)
	}

	if err := s.userProvider.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	return nil
}

func (s *Service) RevokeAccessToken(
	ctx context.Context,
	jti string,
	expiresAt time.Time,
) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 || jti == "" {
		return nil
	}

	if err := s.redis.Client.Set(ctx, core.BlacklistKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}

	return nil
}

func (s *Service) IsAccessTokenBlacklisted(
	ctx context.Context,
	jti string,
) (bool, error) {
	exists, err := s.redis.Client.Exists(ctx, core.BlacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("check blacklist: %w", err)
	}

	return exists > 0, nil
}

// VerifyAccessToken is the TokenVerifier used by the HTTP authenticator. On
// top of the signature it honours logout blacklisting and token_version
// bumps from logout-all and password changes.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	blacklisted, err := s.IsAccessTokenBlacklisted(ctx, claims.TokenID)
	if err != nil {
		return nil, err
	}
	if blacklisted {
		return nil, fmt.Errorf("verify token: %w", core.ErrTokenRevoked)
	}

	if err := s.ValidateTokenVersion(ctx, claims.UserID, claims.TokenVersion); err != nil {
		return nil, err
	}

	return claims, nil
}

func (s *Service) ValidateTokenVersion(
	ctx context.Context,
	userID string,
	tokenVersion int,
) error {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("validate token version: %w", core.ErrTokenRevoked)
		}
		return fmt.Errorf("get user: %w", err)
	}

	if tokenVersion < user.TokenVersion {
		return fmt.Errorf("validate token version: %w", core.ErrTokenRevoked)
	}

	return nil
}

func (s *Service) GetActiveSessions(
	ctx context.Context,
	userID string,
) ([]SessionInfo, error) {
	rows, err := s.repo.ActiveForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(rows))
	for _, t := range rows {
		sessions = append(sessions, SessionInfo{
			ID:           t.ID,
			UserAgent:    t.UserAgent,
			IPAddress:    t.IPAddress,
			SecondFactor: t.SecondFactor,
			CreatedAt:    t.CreatedAt,
			ExpiresAt:    t.ExpiresAt,
		})
	}

	return sessions, nil
}

func (s *Service) RevokeSession(
	ctx context.Context,
	userID, sessionID string,
) error {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("find session: %w", err)
	}

	if session.UserID != userID {
		return fmt.Errorf("revoke session: %w", core.ErrForbidden)
	}

	if err := s.repo.RevokeByID(ctx, sessionID); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID, currentPassword, newPassword string,
) error {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	valid, _, err := core.VerifyPasswordWithRehash(
		currentPassword,
		user.PasswordHash,
	)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}

	if !valid {
		return ErrInvalidCredentials
	}

	if err := core.CheckPasswordStrength(
		newPassword,
		user.Email,
		user.FirstName,
		user.LastName,
	); err != nil {
		return err
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.userProvider.UpdatePassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.LogoutAll(ctx, userID); err != nil {
		return fmt.Errorf("logout all: %w", err)
	}

	return nil
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	user, err := s.userProvider.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return PurgeExpiredSessions(ctx, s.repo)
}

// PurgeExpiredSessions drops refresh tokens that expired more than a day
// ago. The worker calls it without building a full Service.
func PurgeExpiredSessions(ctx context.Context, repo Repository) (int64, error) {
	n, err := repo.DeleteExpired(ctx, expiredSessionGrace)
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	return n, nil
}

func (s *Service) createAuthResponse(
	ctx context.Context,
	user *UserInfo,
	secondFactor bool,
	userAgent, ipAddress, familyID string,
	oldSessionID *string,
) (*AuthResponse, error) {
	accessToken, expiresAt, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID:       user.ID,
		TokenVersion: user.TokenVersion,
		SecondFactor: secondFactor,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshData, err := s.jwt.CreateRefreshToken(familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	session := &Session{
		ID:           uuid.New().String(),
		UserID:       user.ID,
		TokenHash:    refreshData.Hash,
		FamilyID:     refreshData.FamilyID,
		ExpiresAt:    refreshData.ExpiresAt,
		SecondFactor: secondFactor,
		UserAgent:    userAgent,
		IPAddress:    ipAddress,
	}

	if oldSessionID != nil {
		if err := s.repo.MarkAsUsed(ctx, *oldSessionID, session.ID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return nil, ErrTokenReuse
			}
			return nil, fmt.Errorf("rotate session: %w", err)
		}
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	return &AuthResponse{
		User: toUserResponse(user),
		Tokens: TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshData.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(s.jwt.AccessTokenTTL() / time.Second),
			ExpiresAt:    expiresAt,
		},
	}, nil
}

func toUserResponse(u *UserInfo) UserResponse {
	return UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsSuperuser: u.IsSuperuser,
		TOTPEnabled: u.TOTPEnabled,
		CreatedAt:   u.CreatedAt,
	}
}
