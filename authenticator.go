package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// RegisterUserMessage carries the attributes of a new account.
type RegisterUserMessage struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	Password  string `json:"password"`
	Birthdate string `json:"birthdate"`
	Gender    string `json:"gender"`
	Country   string `json:"country"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Auther implements the Authenticator contract: credential issuance,
// refresh rotation, logout, and principal resolution for the gates.
type Auther struct {
	provider     IdentityProvider
	users        Users
	tokenService TokenService
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Authenticator wired to the given credential
// store and identity provider.
func NewAuthenticator(provider IdentityProvider, users Users, opts Config) *Auther {
	return &Auther{
		provider:     provider,
		users:        users,
		tokenService: NewTokenService(opts, defLogger{}),
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithTokenService overrides the token service built from Config.
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Register creates an account through the public signup path and issues the
// first session. Whatever role the caller asked for is clamped to the set
// allowed for self registration; privileged roles go through CreateUser.
func (s *Auther) Register(ctx context.Context, msg RegisterUserMessage) (*User, TokenPair, error) {
	user, err := s.buildUser(msg, SanitizeRegistrationRole(msg.Role))
	if err != nil {
		return nil, TokenPair{}, err
	}

	created, err := s.users.Register(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}

	pair, err := s.issueSession(ctx, created)
	if err != nil {
		return nil, TokenPair{}, err
	}

	s.emitAuthEvent(ctx, ActivityEventRegister, s.actorFromIdentity(created), created.GetID(), map[string]any{
		"role": created.Role,
	})

	return created, pair, nil
}

// CreateUser creates an account on behalf of an authenticated actor. Only
// an admin actor may assign the admin role; there is no clamping here, an
// out-of-policy role is rejected outright.
func (s *Auther) CreateUser(ctx context.Context, actor Identity, msg RegisterUserMessage) (*User, error) {
	role, ok := ParseRole(msg.Role)
	if !ok {
		return nil, withMeta(ErrRoleNotAssignable, map[string]any{"role": msg.Role})
	}

	if role == RoleAdmin && (actor == nil || actor.GetRole() != RoleAdmin) {
		return nil, ErrRoleNotAssignable
	}

	user, err := s.buildUser(msg, role)
	if err != nil {
		return nil, err
	}

	created, err := s.users.Register(ctx, user)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventRegister, s.actorFromIdentity(actor), created.GetID(), map[string]any{
		"role":       created.Role,
		"created_by": "admin",
	})

	return created, nil
}

// ChangeRole reassigns a user's role. The same policy as CreateUser applies:
// only an admin actor may grant admin.
func (s *Auther) ChangeRole(ctx context.Context, actor Identity, userID string, newRole string) error {
	role, ok := ParseRole(newRole)
	if !ok {
		return withMeta(ErrRoleNotAssignable, map[string]any{"role": newRole})
	}

	if role == RoleAdmin && (actor == nil || actor.GetRole() != RoleAdmin) {
		return ErrRoleNotAssignable
	}

	if err := s.users.SetRole(ctx, userID, role); err != nil {
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventRoleChanged, s.actorFromIdentity(actor), userID, map[string]any{
		"new_role": role,
	})

	return nil
}

// EnsureAdmin seeds the initial admin account when no admin exists yet.
// Deployment init scripts call this on boot; once any admin is present it is
// a no-op and returns nil without error.
func (s *Auther) EnsureAdmin(ctx context.Context, msg RegisterUserMessage) (*User, error) {
	exists, err := s.users.HasAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	user, err := s.buildUser(msg, RoleAdmin)
	if err != nil {
		return nil, err
	}

	created, err := s.users.Register(ctx, user)
	if err != nil {
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventRegister, ActorRef{Type: "system"}, created.GetID(), map[string]any{
		"role":       created.Role,
		"created_by": "bootstrap",
	})

	return created, nil
}

// Login verifies the password through the lockout protocol and, on success,
// issues a fresh access/refresh pair and records the refresh token.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*User, TokenPair, error) {
	user, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		event := ActivityEventLoginFailure
		if IsLockedError(err) {
			event = ActivityEventAccountLocked
		}
		s.emitAuthEvent(ctx, event, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return nil, TokenPair{}, err
	}

	pair, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, TokenPair{}, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromIdentity(user), user.GetID(), map[string]any{
		"identifier": identifier,
	})

	return user, pair, nil
}

// Refresh trades a valid refresh token for a new pair. The presented token
// is consumed in the same store operation that records its replacement, so
// a token can never be redeemed twice: concurrent refreshes with the same
// token race and exactly one wins.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokenService.VerifyRefresh(refreshToken)
	if err != nil {
		s.logger.Debug("refresh token verification failed", "error", err)
		return TokenPair{}, s.rejectRefresh(ctx, "")
	}

	user, err := s.users.GetByID(ctx, claims.UserID())
	if err != nil || !user.IsActive {
		return TokenPair{}, s.rejectRefresh(ctx, claims.UserID())
	}

	pair, err := s.tokenService.IssuePair(user)
	if err != nil {
		return TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue token pair")
	}

	if _, err := s.users.RotateRefreshToken(ctx, user.GetID(), refreshToken, pair.RefreshToken); err != nil {
		if goerrors.Is(err, ErrInvalidRefreshToken) {
			return TokenPair{}, s.rejectRefresh(ctx, user.GetID())
		}
		return TokenPair{}, err
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRefreshed, s.actorFromIdentity(user), user.GetID(), nil)

	return pair, nil
}

// Logout revokes one refresh token. Revoking a token that was already
// removed, or never existed, succeeds; the end state is the same.
func (s *Auther) Logout(ctx context.Context, userID, refreshToken string) error {
	if err := s.users.RemoveRefreshToken(ctx, userID, refreshToken); err != nil {
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventLogout, ActorRef{ID: userID, Type: "user"}, userID, nil)
	return nil
}

// LogoutAll revokes every refresh token the user holds across all devices.
func (s *Auther) LogoutAll(ctx context.Context, userID string) error {
	if err := s.users.ClearRefreshTokens(ctx, userID); err != nil {
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventLogoutAll, ActorRef{ID: userID, Type: "user"}, userID, nil)
	return nil
}

// ChangePassword re-verifies the current password before accepting a new
// one. The new password must satisfy the policy and differ from the old.
func (s *Auther) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := ComparePasswordAndHash(current, user.PasswordHash); err != nil {
		return ErrInvalidCredentials
	}

	if current == next {
		return ValidationError([]string{"new password must be different from the current password"})
	}

	if pv := ValidatePassword(next); !pv.IsValid {
		return ValidationError(pv.Errors)
	}

	hash, err := HashPassword(next)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventPasswordChanged, s.actorFromIdentity(user), userID, nil)
	return nil
}

// ResolvePrincipal is the gate-side lookup: the bearer of a valid token must
// still map to an existing, active, unlocked account on every request.
func (s *Auther) ResolvePrincipal(ctx context.Context, userID string) (Principal, error) {
	user, err := s.provider.FindIdentityByID(ctx, userID)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return Principal{}, ErrPrincipalUnavailable
		}
		return Principal{}, err
	}

	if !user.IsActive {
		return Principal{}, ErrPrincipalUnavailable
	}

	if user.IsLocked() {
		return Principal{}, ErrAccountLocked
	}

	return Principal{
		ID:       user.GetID(),
		Email:    user.Email,
		Username: user.Username,
		Role:     string(user.Role),
	}, nil
}

var _ Authenticator = (*Auther)(nil)

func (s *Auther) buildUser(msg RegisterUserMessage, role UserRole) (*User, error) {
	if pv := ValidatePassword(msg.Password); !pv.IsValid {
		return nil, ValidationError(pv.Errors)
	}

	hash, err := HashPassword(msg.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		FirstName:    msg.FirstName,
		LastName:     msg.LastName,
		Username:     getUsername(msg.Username, msg.Email),
		Email:        msg.Email,
		Phone:        msg.Phone,
		Gender:       msg.Gender,
		Country:      msg.Country,
		Role:         role,
		PasswordHash: hash,
	}

	if msg.Birthdate != "" {
		if _, err := time.Parse("2006-01-02", msg.Birthdate); err != nil {
			return nil, ValidationError([]string{"birthdate must be formatted as YYYY-MM-DD"})
		}
		user.Birthdate = msg.Birthdate
	}

	return user, nil
}

func (s *Auther) issueSession(ctx context.Context, user *User) (TokenPair, error) {
	pair, err := s.tokenService.IssuePair(user)
	if err != nil {
		return TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue token pair")
	}

	if err := s.users.PushRefreshToken(ctx, user.GetID(), pair.RefreshToken); err != nil {
		return TokenPair{}, err
	}

	return pair, nil
}

// rejectRefresh collapses every refresh failure mode into the same opaque
// error so clients cannot distinguish expired, forged, or consumed tokens.
func (s *Auther) rejectRefresh(ctx context.Context, userID string) error {
	s.emitAuthEvent(ctx, ActivityEventRefreshRejected, ActorRef{Type: "unknown"}, userID, nil)
	return ErrInvalidRefreshToken
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Auther) actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   identity.GetID(),
		Type: "user",
	}
}

func getUsername(username, email string) string {
	if username != "" {
		return username
	}

	if strings.Contains(email, "@") {
		username = strings.Split(email, "@")[0]
	}

	return username
}
