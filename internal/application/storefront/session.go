package storefront

import (
	"context"
	"sync"
	"time"

	"github.com/biyariq/storefront/internal/domain/session"
	"github.com/biyariq/storefront/internal/infrastructure/logger"
	"github.com/biyariq/storefront/internal/infrastructure/notify"
	"github.com/biyariq/storefront/internal/infrastructure/telemetry"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// SessionChange is delivered to listeners on every status or loading change
type SessionChange struct {
	Status  session.Status
	Loading bool
	User    *session.User
}

// SessionState tracks who the storefront session belongs to. The backend
// owns token verification; only the exp claim is read here.
type SessionState struct {
	gateway  AuthGateway
	tokens   TokenStore
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.RWMutex
	status    session.Status
	loading   bool
	user      *session.User
	token     string
	expiresAt time.Time

	lmu       sync.Mutex
	listeners []func(SessionChange)
}

// NewSessionState creates a session in the loading status. tokens may be nil.
func NewSessionState(gw AuthGateway, tokens TokenStore, notifier notify.Notifier, log *zap.Logger) *SessionState {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionState{
		gateway:  gw,
		tokens:   tokens,
		notifier: notifier,
		logger:   log,
		now:      time.Now,
		status:   session.StatusLoading,
	}
}

// Subscribe registers fn for every subsequent change
func (s *SessionState) Subscribe(fn func(SessionChange)) {
	s.lmu.Lock()
	s.listeners = append(s.listeners, fn)
	s.lmu.Unlock()
}

// Status returns the current status
func (s *SessionState) Status() session.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Loading reports whether an auth call is in flight
func (s *SessionState) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// User returns a copy of the current user, or nil when anonymous
func (s *SessionState) User() *session.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Token returns the bearer token, or "" when there is none or it has expired
func (s *SessionState) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return ""
	}
	if !s.expiresAt.IsZero() && !s.now().Before(s.expiresAt) {
		return ""
	}
	return s.token
}

// IsAuthenticated reports whether the session has a confirmed user and a live token
func (s *SessionState) IsAuthenticated() bool {
	return s.Status() == session.StatusAuthenticated && s.Token() != ""
}

// Restore loads a previously stored token without contacting the backend.
// CheckProfile confirms it.
func (s *SessionState) Restore(ctx context.Context) error {
	if s.tokens == nil {
		return nil
	}
	token, err := s.tokens.ReadToken(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	s.mu.Lock()
	s.token = token
	s.expiresAt = tokenExpiry(token)
	s.mu.Unlock()
	return nil
}

// Login authenticates with creds
func (s *SessionState) Login(ctx context.Context, creds session.Credentials) error {
	ctx, span := telemetry.StartSpan(ctx, "session.login")
	defer span.End()

	if err := creds.Validate(); err != nil {
		s.notifier.Notify(ctx, notify.LevelError, notify.KeyLoginFailed)
		return err
	}

	s.setLoading(true)
	auth, err := s.gateway.Login(ctx, creds)
	if err != nil {
		s.setLoading(false)
		telemetry.RecordError(span, err)
		logger.Enrich(ctx, s.logger).Info("Login rejected", zap.Error(err))
		s.notifier.Notify(ctx, notify.LevelError, notify.KeyLoginFailed)
		return err
	}

	user := s.authenticate(ctx, auth)
	s.notifier.Notify(ctx, notify.LevelSuccess, notify.KeyLoginSucceeded, displayName(user))
	return nil
}

// Register creates an account and signs in with it
func (s *SessionState) Register(ctx context.Context, reg session.Registration) error {
	ctx, span := telemetry.StartSpan(ctx, "session.register")
	defer span.End()

	if err := reg.Validate(); err != nil {
		s.notifier.Notify(ctx, notify.LevelError, notify.KeyRegisterFailed)
		return err
	}

	s.setLoading(true)
	auth, err := s.gateway.Register(ctx, reg)
	if err != nil {
		s.setLoading(false)
		telemetry.RecordError(span, err)
		logger.Enrich(ctx, s.logger).Info("Registration rejected", zap.Error(err))
		s.notifier.Notify(ctx, notify.LevelError, notify.KeyRegisterFailed)
		return err
	}

	if auth.User.Name == "" {
		auth.User.Name = reg.Name
	}
	if auth.User.Email == "" {
		auth.User.Email = reg.Email
	}
	s.authenticate(ctx, auth)
	s.notifier.Notify(ctx, notify.LevelSuccess, notify.KeyRegisterSucceeded)
	return nil
}

// Logout ends the session. Local auth is cleared even when the backend call fails.
func (s *SessionState) Logout(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "session.logout")
	defer span.End()

	var err error
	if s.Token() != "" {
		s.setLoading(true)
		err = s.gateway.Logout(ctx)
		if err != nil {
			telemetry.RecordError(span, err)
			logger.Enrich(ctx, s.logger).Warn("Backend logout failed, clearing local session anyway", zap.Error(err))
		}
	}

	s.clear(ctx)
	s.notifier.Notify(ctx, notify.LevelSuccess, notify.KeyLogoutSucceeded)
	return err
}

// CheckProfile confirms the current token with the backend. Without a token
// the session becomes anonymous with no backend call; any failure clears the
// token.
func (s *SessionState) CheckProfile(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, "session.check_profile")
	defer span.End()

	if s.Token() == "" {
		s.clear(ctx)
		return nil
	}

	s.setLoading(true)
	user, err := s.gateway.Profile(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		logger.Enrich(ctx, s.logger).Info("Stored token rejected", zap.Error(err))
		s.clear(ctx)
		return err
	}

	s.mu.Lock()
	s.user = &user
	s.status = session.StatusAuthenticated
	s.loading = false
	s.mu.Unlock()
	s.fire()
	return nil
}

func (s *SessionState) authenticate(ctx context.Context, auth session.Auth) session.User {
	user := auth.User
	if user.ID == "" && user.Email == "" {
		s.mu.Lock()
		s.token = auth.Token
		s.mu.Unlock()
		if profile, err := s.gateway.Profile(ctx); err == nil {
			user = profile
		} else {
			logger.Enrich(ctx, s.logger).Debug("Profile lookup after sign-in failed", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.token = auth.Token
	s.expiresAt = tokenExpiry(auth.Token)
	s.user = &user
	s.status = session.StatusAuthenticated
	s.loading = false
	s.mu.Unlock()

	if s.tokens != nil {
		if err := s.tokens.WriteToken(ctx, auth.Token); err != nil {
			logger.Enrich(ctx, s.logger).Warn("Failed to persist session token", zap.Error(err))
		}
	}
	s.fire()
	return user
}

func (s *SessionState) clear(ctx context.Context) {
	s.mu.Lock()
	hadToken := s.token != ""
	s.token = ""
	s.expiresAt = time.Time{}
	s.user = nil
	s.status = session.StatusAnonymous
	s.loading = false
	s.mu.Unlock()

	if hadToken && s.tokens != nil {
		if err := s.tokens.DeleteToken(ctx); err != nil {
			logger.Enrich(ctx, s.logger).Warn("Failed to delete session token", zap.Error(err))
		}
	}
	s.fire()
}

func (s *SessionState) setLoading(v bool) {
	s.mu.Lock()
	changed := s.loading != v
	s.loading = v
	s.mu.Unlock()
	if changed {
		s.fire()
	}
}

func (s *SessionState) fire() {
	s.mu.RLock()
	ch := SessionChange{Status: s.status, Loading: s.loading}
	if s.user != nil {
		u := *s.user
		ch.User = &u
	}
	s.mu.RUnlock()

	s.lmu.Lock()
	listeners := append([]func(SessionChange){}, s.listeners...)
	s.lmu.Unlock()
	for _, fn := range listeners {
		fn(ch)
	}
}

// tokenExpiry returns the exp claim of a JWT, or the zero time for opaque
// tokens and tokens without exp.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

func displayName(u session.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
