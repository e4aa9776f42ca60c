package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/devtrack-api/config"
	"github.com/example/devtrack-api/internal/adapters/mail"
	"github.com/example/devtrack-api/internal/domain"
	pkglog "github.com/example/devtrack-api/pkg/log"
)

const testUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

type mockUserRepo struct {
	users map[string]*domain.User
	next  int
	// reservedUsernames rejects Create with a duplicate-key error even
	// though lookups miss, like a row committed by a concurrent signup.
	reservedUsernames map[string]bool
	// beforeCreate runs ahead of Create's duplicate scan, so a test can
	// commit a competing row after the caller's pre-checks passed.
	beforeCreate func()
	updateErr    error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: map[string]*domain.User{}}
}

func (r *mockUserRepo) Create(_ context.Context, user *domain.User) error {
	if hook := r.beforeCreate; hook != nil {
		r.beforeCreate = nil
		hook()
	}
	if r.reservedUsernames[user.Username] {
		return domain.ErrDuplicateKey
	}
	for _, u := range r.users {
		if u.Email == user.Email || u.Username == user.Username {
			return domain.ErrDuplicateKey
		}
	}
	if user.ID == "" {
		r.next++
		user.ID = fmt.Sprintf("user-%d", r.next)
	}
	r.users[user.ID] = user
	return nil
}

func (r *mockUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (r *mockUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (r *mockUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrRecordNotFound
}

func (r *mockUserRepo) Update(_ context.Context, user *domain.User) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.users[user.ID] = user
	return nil
}

func (r *mockUserRepo) UpdatePassword(_ context.Context, id, hash string) error {
	u, ok := r.users[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *mockUserRepo) MarkEmailVerified(_ context.Context, id string) error {
	u, ok := r.users[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	u.EmailVerified = true
	return nil
}

type mockSessionRepo struct {
	sessions map[string]*domain.Session
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{sessions: map[string]*domain.Session{}}
}

func (r *mockSessionRepo) Create(_ context.Context, session *domain.Session) error {
	clone := *session
	r.sessions[session.ID] = &clone
	return nil
}

func (r *mockSessionRepo) FindByID(_ context.Context, id string) (*domain.Session, error) {
	if s, ok := r.sessions[id]; ok {
		clone := *s
		return &clone, nil
	}
	return nil, domain.ErrRecordNotFound
}

func (r *mockSessionRepo) Touch(_ context.Context, id string) error {
	if s, ok := r.sessions[id]; ok {
		s.LastActiveAt = time.Now()
	}
	return nil
}

func (r *mockSessionRepo) Deactivate(_ context.Context, id string) error {
	if s, ok := r.sessions[id]; ok {
		s.Active = false
	}
	return nil
}

func (r *mockSessionRepo) DeactivateAllForUser(_ context.Context, userID string) (int64, error) {
	var count int64
	for _, s := range r.sessions {
		if s.UserID == userID && s.Active {
			s.Active = false
			count++
		}
	}
	return count, nil
}

func (r *mockSessionRepo) ListActiveForUser(_ context.Context, userID string) ([]domain.Session, error) {
	var out []domain.Session
	now := time.Now()
	for _, s := range r.sessions {
		if s.UserID == userID && s.Valid(now) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *mockSessionRepo) DeleteExpired(_ context.Context) (int64, error) {
	var count int64
	now := time.Now()
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(now) {
			delete(r.sessions, id)
			count++
		}
	}
	return count, nil
}

func (r *mockSessionRepo) activeCount(userID string) int {
	count := 0
	for _, s := range r.sessions {
		if s.UserID == userID && s.Active {
			count++
		}
	}
	return count
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) (*mail.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return &mail.SendResult{ID: "mail-1", Success: true}, nil
}

type authFixture struct {
	service  Service
	users    *mockUserRepo
	sessions *mockSessionRepo
	mailer   *recordingMailer
	hasher   *PasswordHasher
	issuer   TokenIssuer
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	cfg := &config.Config{
		AppEnv:     "test",
		JWTSecret:  "test-secret",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		SessionTTL: 7 * 24 * time.Hour,
		BcryptCost: bcrypt.MinCost,
		MailFrom:   "no-reply@devtrack.dev",
	}
	issuer, err := NewTokenIssuer(cfg)
	require.NoError(t, err)

	f := &authFixture{
		users:    newMockUserRepo(),
		sessions: newMockSessionRepo(),
		mailer:   &recordingMailer{},
		hasher:   NewPasswordHasher(cfg.BcryptCost),
		issuer:   issuer,
	}
	f.service = NewAuthService(cfg, pkglog.New("test"), f.users, f.sessions, f.hasher, issuer, f.mailer, nil)
	return f
}

func (f *authFixture) seedUser(t *testing.T, email, username, password string, verified bool) *domain.User {
	t.Helper()
	hash, err := f.hasher.Hash(password)
	require.NoError(t, err)
	user := &domain.User{Email: email, Username: username, PasswordHash: hash, EmailVerified: verified}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func TestSignup_Success(t *testing.T) {
	f := newAuthFixture(t)

	result, err := f.service.Signup(context.Background(), SignupInput{
		Email:     "New@X.com",
		Password:  "Abcdef12",
		Name:      "Jane",
		UserAgent: testUA,
		IPAddress: "203.0.113.9",
	})
	require.NoError(t, err)

	assert.Equal(t, "new@x.com", result.User.Email)
	assert.Equal(t, "new", result.User.Username)
	assert.False(t, result.User.EmailVerified)
	assert.NotEqual(t, "Abcdef12", result.User.PasswordHash)

	// Tokens are bound to the freshly created session.
	claims, err := f.issuer.VerifyRefreshToken(result.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, result.Session.ID, claims.SessionID)

	session, err := f.sessions.FindByID(context.Background(), result.Session.ID)
	require.NoError(t, err)
	assert.True(t, session.Active)
	assert.Contains(t, session.DeviceName, "Chrome")
	assert.Equal(t, "desktop", session.DeviceType)

	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "new@x.com", f.mailer.sent[0].To)
}

func TestSignup_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "taken@x.com", "taken", "Abcdef12", true)

	_, err := f.service.Signup(context.Background(), SignupInput{Email: "Taken@X.com", Password: "Abcdef12"})
	require.Error(t, err)

	de := domain.AsError(err)
	assert.Equal(t, domain.CodeValidation, de.Code)
	assert.Equal(t, 400, de.Status)
}

func TestSignup_UsernameCollision(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "bob@a.com", "bob", "Abcdef12", true)
	f.seedUser(t, "bob@b.com", "bob1", "Abcdef12", true)
	f.seedUser(t, "bob@c.com", "bob2", "Abcdef12", true)

	result, err := f.service.Signup(context.Background(), SignupInput{Email: "bob@x.com", Password: "Abcdef12"})
	require.NoError(t, err)
	assert.Equal(t, "bob3", result.User.Username)
}

func TestSignup_UsernameRaceSurfacesConflict(t *testing.T) {
	f := newAuthFixture(t)
	// The candidate username is free at lookup time but the insert still
	// hits the unique constraint, as when a concurrent signup commits the
	// same name in between.
	f.users.reservedUsernames = map[string]bool{"bob": true}

	_, err := f.service.Signup(context.Background(), SignupInput{Email: "bob@x.com", Password: "Abcdef12"})
	require.Error(t, err)

	de := domain.AsError(err)
	assert.Equal(t, domain.CodeConflict, de.Code)
	assert.NotContains(t, de.Message, "email")
}

func TestSignup_EmailRaceStaysEmailMessage(t *testing.T) {
	f := newAuthFixture(t)
	// A competing signup commits the same email after our pre-check
	// passed; the insert collides and the probe attributes it to the
	// email constraint.
	f.users.beforeCreate = func() {
		f.seedUser(t, "taken@x.com", "other", "Abcdef12", true)
	}

	_, err := f.service.Signup(context.Background(), SignupInput{Email: "taken@x.com", Password: "Abcdef12"})
	require.Error(t, err)

	de := domain.AsError(err)
	assert.Equal(t, domain.CodeValidation, de.Code)
	assert.Contains(t, de.Message, "email")
}

func TestSignup_RejectsWeakInput(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.Signup(context.Background(), SignupInput{Email: "not-an-email", Password: "Abcdef12"})
	assert.Equal(t, domain.CodeValidation, domain.AsError(err).Code)

	_, err = f.service.Signup(context.Background(), SignupInput{Email: "ok@x.com", Password: "short"})
	assert.Equal(t, domain.CodeValidation, domain.AsError(err).Code)
}

func TestLogin_IndistinguishableFailures(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "jane@x.com", "jane", "Abcdef12", true)

	_, errUnknown := f.service.Login(context.Background(), LoginInput{Email: "nobody@x.com", Password: "Abcdef12"})
	_, errWrongPw := f.service.Login(context.Background(), LoginInput{Email: "jane@x.com", Password: "WrongPass1"})

	require.Error(t, errUnknown)
	require.Error(t, errWrongPw)
	assert.Equal(t, errUnknown.Error(), errWrongPw.Error())
	assert.Equal(t, domain.AsError(errUnknown).Code, domain.AsError(errWrongPw).Code)
	assert.Equal(t, domain.CodeInvalidCredentials, domain.AsError(errUnknown).Code)
}

func TestLogin_EmailNotVerified(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "jane@x.com", "jane", "Abcdef12", false)

	_, err := f.service.Login(context.Background(), LoginInput{Email: "jane@x.com", Password: "Abcdef12"})
	require.Error(t, err)
	assert.Equal(t, domain.CodeEmailNotVerified, domain.AsError(err).Code)
}

func TestLogin_Success(t *testing.T) {
	f := newAuthFixture(t)
	user := f.seedUser(t, "jane@x.com", "jane", "Abcdef12", true)

	result, err := f.service.Login(context.Background(), LoginInput{
		Email:     "Jane@X.com",
		Password:  "Abcdef12",
		UserAgent: testUA,
	})
	require.NoError(t, err)

	assert.Equal(t, user.ID, result.User.ID)
	assert.NotEmpty(t, result.Session.ID)
	assert.Contains(t, result.Session.DeviceInfo, "Chrome")
	assert.True(t, result.Session.ExpiresAt.After(time.Now()))
	assert.NotNil(t, result.User.LastLoginAt)

	require.Len(t, f.mailer.sent, 1)
	assert.Contains(t, f.mailer.sent[0].Subject, "sign-in")
}

func TestLogin_SucceedsWhenLastLoginUpdateFails(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "jane@x.com", "jane", "Abcdef12", true)
	f.users.updateErr = fmt.Errorf("connection reset")

	// Recording the login timestamp is best effort; a store failure must
	// not block the sign-in.
	result, err := f.service.Login(context.Background(), LoginInput{Email: "jane@x.com", Password: "Abcdef12"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Session.ID)
}

func TestRefresh_RotatesSession(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "jane@x.com", "jane", "Abcdef12", true)

	login, err := f.service.Login(context.Background(), LoginInput{Email: "jane@x.com", Password: "Abcdef12"})
	require.NoError(t, err)
	firstRefresh := login.Tokens.RefreshToken

	tokens, err := f.service.RefreshTokens(context.Background(), firstRefresh, testUA, "")
	require.NoError(t, err)

	// Pre-refresh session is revoked, exactly one active session remains.
	old, err := f.sessions.FindByID(context.Background(), login.Session.ID)
	require.NoError(t, err)
	assert.False(t, old.Active)
	assert.Equal(t, 1, f.sessions.activeCount(login.User.ID))

	claims, err := f.issuer.VerifyRefreshToken(tokens.RefreshToken)
	require.NoError(t, err)
	newSession, err := f.sessions.FindByID(context.Background(), claims.SessionID)
	require.NoError(t, err)
	assert.True(t, newSession.Active)
	assert.NotEqual(t, login.Session.ID, newSession.ID)
}

func TestRefresh_ReuseOfRotatedTokenFails(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "jane@x.com", "jane", "Abcdef12", true)

	login, err := f.service.Login(context.Background(), LoginInput{Email: "jane@x.com", Password: "Abcdef12"})
	require.NoError(t, err)
	firstRefresh := login.Tokens.RefreshToken

	second, err := f.service.RefreshTokens(context.Background(), firstRefresh, "", "")
	require.NoError(t, err)
	_, err = f.service.RefreshTokens(context.Background(), second.RefreshToken, "", "")
	require.NoError(t, err)

	// The first token references a revoked session now.
	_, err = f.service.RefreshTokens(context.Background(), firstRefresh, "", "")
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired refresh token", err.Error())
}

func TestRefresh_GarbageToken(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.service.RefreshTokens(context.Background(), "not-a-token", "", "")
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired refresh token", err.Error())
	assert.Equal(t, 401, domain.AsError(err).Status)
}

func TestRefresh_ExpiredSession(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "jane@x.com", "jane", "Abcdef12", true)

	login, err := f.service.Login(context.Background(), LoginInput{Email: "jane@x.com", Password: "Abcdef12"})
	require.NoError(t, err)

	// Session is still marked active but has passed its expiry.
	f.sessions.sessions[login.Session.ID].ExpiresAt = time.Now().Add(-time.Minute)

	_, err = f.service.RefreshTokens(context.Background(), login.Tokens.RefreshToken, "", "")
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired refresh token", err.Error())
}

func TestLogout_RevokesSession(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "jane@x.com", "jane", "Abcdef12", true)

	login, err := f.service.Login(context.Background(), LoginInput{Email: "jane@x.com", Password: "Abcdef12"})
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(context.Background(), login.Tokens.RefreshToken))

	session, err := f.sessions.FindByID(context.Background(), login.Session.ID)
	require.NoError(t, err)
	assert.False(t, session.Active)
}

func TestLogout_InvalidTokenIsNotAnError(t *testing.T) {
	f := newAuthFixture(t)
	assert.NoError(t, f.service.Logout(context.Background(), "garbage"))
	assert.NoError(t, f.service.Logout(context.Background(), ""))
}

func TestLogout_Idempotent(t *testing.T) {
	f := newAuthFixture(t)
	f.seedUser(t, "jane@x.com", "jane", "Abcdef12", true)

	login, err := f.service.Login(context.Background(), LoginInput{Email: "jane@x.com", Password: "Abcdef12"})
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(context.Background(), login.Tokens.RefreshToken))
	require.NoError(t, f.service.Logout(context.Background(), login.Tokens.RefreshToken))
}

func TestLogoutFromAllDevices(t *testing.T) {
	f := newAuthFixture(t)
	jane := f.seedUser(t, "jane@x.com", "jane", "Abcdef12", true)
	f.seedUser(t, "mark@x.com", "mark", "Abcdef12", true)

	for i := 0; i < 3; i++ {
		_, err := f.service.Login(context.Background(), LoginInput{Email: "jane@x.com", Password: "Abcdef12"})
		require.NoError(t, err)
	}
	markLogin, err := f.service.Login(context.Background(), LoginInput{Email: "mark@x.com", Password: "Abcdef12"})
	require.NoError(t, err)

	require.NoError(t, f.service.LogoutFromAllDevices(context.Background(), jane.ID))

	assert.Equal(t, 0, f.sessions.activeCount(jane.ID))
	assert.Equal(t, 1, f.sessions.activeCount(markLogin.User.ID))
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	jane := f.seedUser(t, "jane@x.com", "jane", "Abcdef12", true)

	_, err := f.service.Login(context.Background(), LoginInput{Email: "jane@x.com", Password: "Abcdef12"})
	require.NoError(t, err)

	err = f.service.ChangePassword(context.Background(), jane.ID, "WrongOld1", "Newpass12")
	require.Error(t, err)
	assert.Equal(t, domain.CodeInvalidCredentials, domain.AsError(err).Code)

	require.NoError(t, f.service.ChangePassword(context.Background(), jane.ID, "Abcdef12", "Newpass12"))

	// All sessions revoked, old password dead, new one works.
	assert.Equal(t, 0, f.sessions.activeCount(jane.ID))
	_, err = f.service.Login(context.Background(), LoginInput{Email: "jane@x.com", Password: "Abcdef12"})
	require.Error(t, err)
	_, err = f.service.Login(context.Background(), LoginInput{Email: "jane@x.com", Password: "Newpass12"})
	require.NoError(t, err)
}

func TestVerifyEmail(t *testing.T) {
	f := newAuthFixture(t)

	signup, err := f.service.Signup(context.Background(), SignupInput{Email: "new@x.com", Password: "Abcdef12", Name: "Jane"})
	require.NoError(t, err)
	assert.False(t, signup.User.EmailVerified)

	// Login before verification is refused.
	_, err = f.service.Login(context.Background(), LoginInput{Email: "new@x.com", Password: "Abcdef12"})
	require.Error(t, err)
	assert.Equal(t, domain.CodeEmailNotVerified, domain.AsError(err).Code)

	user, err := f.service.VerifyEmail(context.Background(), signup.User.ID)
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	_, err = f.service.Login(context.Background(), LoginInput{Email: "new@x.com", Password: "Abcdef12"})
	require.NoError(t, err)
}

func TestVerifyEmail_UnknownUser(t *testing.T) {
	f := newAuthFixture(t)
	_, err := f.service.VerifyEmail(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, domain.CodeNotFound, domain.AsError(err).Code)
}

func TestListSessions(t *testing.T) {
	f := newAuthFixture(t)
	jane := f.seedUser(t, "jane@x.com", "jane", "Abcdef12", true)

	first, err := f.service.Login(context.Background(), LoginInput{Email: "jane@x.com", Password: "Abcdef12", UserAgent: testUA})
	require.NoError(t, err)
	_, err = f.service.Login(context.Background(), LoginInput{Email: "jane@x.com", Password: "Abcdef12"})
	require.NoError(t, err)

	before := f.sessions.sessions[first.Session.ID].LastActiveAt
	time.Sleep(5 * time.Millisecond)

	sessions, err := f.service.ListSessions(context.Background(), jane.ID, first.Session.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
	assert.True(t, f.sessions.sessions[first.Session.ID].LastActiveAt.After(before))
}
