package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/devtrack-api/config"
	"github.com/example/devtrack-api/internal/adapters/mail"
	repo "github.com/example/devtrack-api/internal/adapters/postgres"
	"github.com/example/devtrack-api/internal/deviceinfo"
	"github.com/example/devtrack-api/internal/domain"
	pkglog "github.com/example/devtrack-api/pkg/log"
)

// Login and refresh collapse every root cause into one of these two errors
// so a caller cannot probe which step failed.
var (
	errInvalidCredentials = domain.NewAuthenticationError("Invalid email or password", domain.CodeInvalidCredentials)
	errInvalidRefresh     = domain.NewAuthenticationError("Invalid or expired refresh token", "")
	errEmailNotVerified   = domain.NewAuthenticationError("Please verify your email address before logging in", domain.CodeEmailNotVerified)
)

type SignupInput struct {
	Email     string
	Password  string
	Name      string
	UserAgent string
	IPAddress string
}

type LoginInput struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

type SessionInfo struct {
	ID         string    `json:"id"`
	DeviceInfo string    `json:"device_info"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type AuthResult struct {
	User    *domain.User `json:"user"`
	Tokens  *Tokens      `json:"tokens"`
	Session SessionInfo  `json:"session"`
}

// EventPublisher notifies downstream services about bulk session
// revocations. The NATS adapter satisfies this.
type EventPublisher interface {
	SessionsRevoked(ctx context.Context, userID string, count int64) error
}

type Service interface {
	Signup(ctx context.Context, in SignupInput) (*AuthResult, error)
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	RefreshTokens(ctx context.Context, refreshToken, userAgent, ipAddress string) (*Tokens, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutFromAllDevices(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	VerifyEmail(ctx context.Context, userID string) (*domain.User, error)
	ListSessions(ctx context.Context, userID, currentSessionID string) ([]domain.Session, error)
}

type authService struct {
	cfg      *config.Config
	logger   pkglog.Logger
	users    repo.UserRepository
	sessions repo.SessionRepository
	hasher   *PasswordHasher
	issuer   TokenIssuer
	mailer   mail.Dispatcher
	events   EventPublisher
}

func NewAuthService(cfg *config.Config, logger pkglog.Logger, users repo.UserRepository, sessions repo.SessionRepository, hasher *PasswordHasher, issuer TokenIssuer, mailer mail.Dispatcher, events EventPublisher) Service {
	return &authService{cfg: cfg, logger: logger, users: users, sessions: sessions, hasher: hasher, issuer: issuer, mailer: mailer, events: events}
}

func (s *authService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, domain.NewValidationError("User with this email already exists")
	} else if !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	username := uniqueUsername(email, func(candidate string) bool {
		_, err := s.users.FindByUsername(ctx, candidate)
		return err == nil
	})

	user := &domain.User{Email: email, Username: username, PasswordHash: hash}
	if name := strings.TrimSpace(in.Name); name != "" {
		user.Name = &name
	}
	if err := s.users.Create(ctx, user); err != nil {
		// A concurrent signup can still lose the race; the store's unique
		// constraint is the authority. The translated error does not say
		// which constraint fired, so probe the email to tell the two apart.
		if errors.Is(err, domain.ErrDuplicateKey) {
			if _, lookupErr := s.users.FindByEmail(ctx, email); lookupErr == nil {
				return nil, domain.NewValidationError("User with this email already exists")
			}
			return nil, domain.NewConflictError("Username already taken")
		}
		return nil, err
	}

	session, err := s.createSession(ctx, user.ID, in.UserAgent, in.IPAddress)
	if err != nil {
		return nil, err
	}
	tokens, err := s.issuer.TokenResponse(user, session.ID)
	if err != nil {
		return nil, err
	}

	s.sendVerificationEmail(ctx, user)

	s.logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user signed up")
	return &AuthResult{
		User:    user,
		Tokens:  tokens,
		Session: SessionInfo{ID: session.ID, DeviceInfo: session.DeviceName, ExpiresAt: session.ExpiresAt},
	}, nil
}

func (s *authService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, errInvalidCredentials
	}
	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, errInvalidCredentials
	}

	// Domain policy, checked only after the credentials held up.
	if !user.EmailVerified {
		return nil, errEmailNotVerified
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login time")
	}

	session, err := s.createSession(ctx, user.ID, in.UserAgent, in.IPAddress)
	if err != nil {
		return nil, err
	}
	tokens, err := s.issuer.TokenResponse(user, session.ID)
	if err != nil {
		return nil, err
	}

	s.sendLoginNotification(ctx, user, session)

	s.logger.Info().Str("user_id", user.ID).Str("session_id", session.ID).Msg("user signed in")
	return &AuthResult{
		User:    user,
		Tokens:  tokens,
		Session: SessionInfo{ID: session.ID, DeviceInfo: session.DeviceName, ExpiresAt: session.ExpiresAt},
	}, nil
}

// RefreshTokens rotates the session that authorized the refresh: the old
// session is revoked before the new one is created, so a stolen refresh
// token is good for at most one use.
func (s *authService) RefreshTokens(ctx context.Context, refreshToken, userAgent, ipAddress string) (*Tokens, error) {
	claims, err := s.issuer.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, errInvalidRefresh
	}

	session, err := s.sessions.FindByID(ctx, claims.SessionID)
	if err != nil || !session.Valid(time.Now()) {
		return nil, errInvalidRefresh
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, errInvalidRefresh
	}

	if err := s.sessions.Deactivate(ctx, session.ID); err != nil {
		return nil, errInvalidRefresh
	}
	newSession, err := s.createSession(ctx, user.ID, userAgent, ipAddress)
	if err != nil {
		return nil, errInvalidRefresh
	}

	tokens, err := s.issuer.TokenResponse(user, newSession.ID)
	if err != nil {
		return nil, errInvalidRefresh
	}

	s.logger.Debug().Str("user_id", user.ID).Str("session_id", newSession.ID).Msg("tokens rotated")
	return tokens, nil
}

// Logout is best-effort: an unverifiable token still reports success, since
// the caller is effectively logged out either way.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.issuer.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil
	}
	if err := s.sessions.Deactivate(ctx, claims.SessionID); err != nil {
		s.logger.Warn().Err(err).Str("session_id", claims.SessionID).Msg("logout deactivate failed")
	}
	return nil
}

func (s *authService) LogoutFromAllDevices(ctx context.Context, userID string) error {
	count, err := s.sessions.DeactivateAllForUser(ctx, userID)
	if err != nil {
		return err
	}
	if s.events != nil {
		_ = s.events.SessionsRevoked(ctx, userID, count)
	}
	s.logger.Info().Str("user_id", userID).Int64("sessions", count).Msg("logged out everywhere")
	return nil
}

func (s *authService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return errInvalidCredentials
	}
	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return errInvalidCredentials
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	// Security action: a password change invalidates every open session.
	if err := s.LogoutFromAllDevices(ctx, user.ID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("post-change session revocation failed")
	}
	s.sendAccountChangeEmail(ctx, user)
	return nil
}

func (s *authService) VerifyEmail(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("User")
		}
		return nil, err
	}
	if user.EmailVerified {
		return user, nil
	}
	if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
		return nil, err
	}
	user.EmailVerified = true
	return user, nil
}

func (s *authService) ListSessions(ctx context.Context, userID, currentSessionID string) ([]domain.Session, error) {
	if currentSessionID != "" {
		_ = s.sessions.Touch(ctx, currentSessionID)
	}
	return s.sessions.ListActiveForUser(ctx, userID)
}

func (s *authService) createSession(ctx context.Context, userID, userAgent, ipAddress string) (*domain.Session, error) {
	detail := deviceinfo.Detail(userAgent)
	now := time.Now()
	session := &domain.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		DeviceName:   deviceinfo.Summary(userAgent),
		DeviceType:   detail.DeviceType,
		Active:       true,
		LastActiveAt: now,
		ExpiresAt:    now.Add(s.cfg.SessionTTL),
	}
	if userAgent != "" {
		session.UserAgent = &userAgent
	}
	if ipAddress != "" {
		session.IPAddress = &ipAddress
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func validateEmail(email string) error {
	if !strings.Contains(email, "@") || len(email) > 255 {
		return domain.NewValidationError("invalid email")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return domain.NewValidationError("password must be at least 8 characters")
	}
	return nil
}

func (s *authService) sendVerificationEmail(ctx context.Context, user *domain.User) {
	s.sendEmail(ctx, user.Email, "Verify your email address",
		fmt.Sprintf("<p>Welcome to DevTrack, %s!</p><p>Confirm your address at %s/verify-email to start logging progress.</p>",
			displayName(user), s.cfg.PublicBaseURL))
}

func (s *authService) sendLoginNotification(ctx context.Context, user *domain.User, session *domain.Session) {
	s.sendEmail(ctx, user.Email, "New sign-in to your account",
		fmt.Sprintf("<p>Hi %s,</p><p>Your account was just signed in from: <strong>%s</strong>.</p><p>If this wasn't you, sign out everywhere at %s/settings/sessions.</p>",
			displayName(user), session.DeviceName, s.cfg.PublicBaseURL))
}

func (s *authService) sendAccountChangeEmail(ctx context.Context, user *domain.User) {
	s.sendEmail(ctx, user.Email, "Your password was changed",
		fmt.Sprintf("<p>Hi %s,</p><p>Your password was changed and all devices were signed out.</p>", displayName(user)))
}

// sendEmail is fire-and-forget: delivery failures are logged, never
// surfaced, so mail-service trouble cannot block authentication.
func (s *authService) sendEmail(ctx context.Context, to, subject, body string) {
	if s.mailer == nil {
		return
	}
	if _, err := s.mailer.Send(ctx, mail.Message{To: to, From: s.cfg.MailFrom, Subject: subject, HTMLBody: body}); err != nil {
		s.logger.Warn().Err(err).Str("subject", subject).Msg("email delivery failed")
	}
}

func displayName(user *domain.User) string {
	if user.Name != nil && *user.Name != "" {
		return *user.Name
	}
	return user.Username
}
