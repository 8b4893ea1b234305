package auth_test

import (
	"context"
	"io"
	"mime/multipart"
	"strings"
	"sync"
	"time"

	auth "github.com/goliatone/go-booking-auth"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// memUsers is an in-memory credential store with the same update semantics
// as the Mongo implementation, so protocol tests can run without a server.
type memUsers struct {
	mu      sync.Mutex
	records map[string]*auth.User
	now     func() time.Time
}

func newMemUsers() *memUsers {
	return &memUsers{
		records: map[string]*auth.User{},
		now:     time.Now,
	}
}

var _ auth.Users = (*memUsers)(nil)

func (m *memUsers) clone(u *auth.User) *auth.User {
	cp := *u
	cp.RefreshTokens = append([]auth.RefreshToken(nil), u.RefreshTokens...)
	return &cp
}

func (m *memUsers) GetByID(_ context.Context, id string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.records[id]; ok {
		return m.clone(u), nil
	}
	return nil, auth.ErrIdentityNotFound
}

func (m *memUsers) GetByIdentifier(_ context.Context, identifier string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ident := strings.ToLower(strings.TrimSpace(identifier))
	for _, u := range m.records {
		if u.Email == ident || u.Username == ident {
			return m.clone(u), nil
		}
	}
	return nil, auth.ErrIdentityNotFound
}

func (m *memUsers) Register(_ context.Context, user *auth.User) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))

	for _, existing := range m.records {
		if existing.Email == user.Email {
			return nil, auth.ErrDuplicateIdentity
		}
		if existing.Username == user.Username {
			return nil, auth.ErrDuplicateIdentity
		}
	}

	if user.ID.IsZero() {
		user.ID = bson.NewObjectID()
	}
	if user.Role == "" {
		user.Role = auth.RoleGuest
	}
	user.IsActive = true

	m.records[user.ID.Hex()] = m.clone(user)
	return m.clone(user), nil
}

func (m *memUsers) TrackFailedLogin(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[user.GetID()]
	if !ok {
		return auth.ErrIdentityNotFound
	}

	decision := auth.NextFailedLogin(stored, m.now())
	if decision.GraceReset {
		stored.LoginAttempts = 1
		stored.LockUntil = nil
		return nil
	}

	stored.LoginAttempts++
	if decision.LockUntil != nil {
		stored.LockUntil = decision.LockUntil
	}
	return nil
}

func (m *memUsers) TrackSuccessfulLogin(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[user.GetID()]
	if !ok {
		return auth.ErrIdentityNotFound
	}

	now := m.now()
	stored.LoginAttempts = 0
	stored.LockUntil = nil
	stored.LastLogin = &now
	return nil
}

func (m *memUsers) PushRefreshToken(_ context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[id]
	if !ok {
		return auth.ErrIdentityNotFound
	}

	stored.RefreshTokens = append(stored.RefreshTokens, auth.RefreshToken{
		Token:    token,
		IssuedAt: m.now(),
	})
	return nil
}

func (m *memUsers) RotateRefreshToken(_ context.Context, id, oldToken, newToken string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[id]
	if !ok || !stored.IsActive {
		return nil, auth.ErrInvalidRefreshToken
	}

	for i, rt := range stored.RefreshTokens {
		if rt.Token == oldToken {
			stored.RefreshTokens[i] = auth.RefreshToken{Token: newToken, IssuedAt: m.now()}
			return m.clone(stored), nil
		}
	}

	return nil, auth.ErrInvalidRefreshToken
}

func (m *memUsers) RemoveRefreshToken(_ context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[id]
	if !ok {
		return auth.ErrIdentityNotFound
	}

	kept := stored.RefreshTokens[:0]
	for _, rt := range stored.RefreshTokens {
		if rt.Token != token {
			kept = append(kept, rt)
		}
	}
	stored.RefreshTokens = kept
	return nil
}

func (m *memUsers) ClearRefreshTokens(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[id]
	if !ok {
		return auth.ErrIdentityNotFound
	}

	stored.RefreshTokens = []auth.RefreshToken{}
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[id]
	if !ok {
		return auth.ErrIdentityNotFound
	}

	stored.PasswordHash = passwordHash
	return nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id string, update auth.ProfileUpdate) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[id]
	if !ok {
		return nil, auth.ErrIdentityNotFound
	}

	if update.FirstName != nil {
		stored.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		stored.LastName = *update.LastName
	}
	if update.Phone != nil {
		stored.Phone = *update.Phone
	}
	if update.Profile != nil {
		stored.Profile = update.Profile
	}

	return m.clone(stored), nil
}

func (m *memUsers) SetRole(_ context.Context, id string, role auth.UserRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[id]
	if !ok {
		return auth.ErrIdentityNotFound
	}

	stored.Role = role
	return nil
}

func (m *memUsers) SetActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[id]
	if !ok {
		return auth.ErrIdentityNotFound
	}

	stored.IsActive = active
	return nil
}

func (m *memUsers) HasAdmin(_ context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.records {
		if u.Role == auth.RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) EnsureIndexes(context.Context) error {
	return nil
}

// get returns the live record for assertions.
func (m *memUsers) get(id string) *auth.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

// MockContext mocks router.Context for controller handler tests, where the
// request body parsing needs to be driven from the test.
type MockContext struct {
	mock.Mock
	NextCalled bool
}

func (m *MockContext) Next() error {
	m.NextCalled = true
	return nil
}

func (m *MockContext) Context() context.Context {
	args := m.Called()
	c, ok := args.Get(0).(context.Context)
	if !ok {
		panic("arg needs to be context.Context")
	}
	return c
}

func (m *MockContext) SetContext(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockContext) Path() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Method() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) Body() []byte {
	args := m.Called()
	return args.Get(0).([]byte)
}

func (m *MockContext) Status(code int) router.Context {
	m.Called(code)
	return m
}

func (m *MockContext) SendString(s string) error {
	args := m.Called(s)
	return args.Error(0)
}

func (m *MockContext) Send(b []byte) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockContext) JSON(code int, val any) error {
	args := m.Called(code, val)
	return args.Error(0)
}

func (m *MockContext) NoContent(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) Render(name string, bind any, layout ...string) error {
	if len(layout) > 0 {
		args := m.Called(name, bind, layout[0])
		return args.Error(0)
	}
	args := m.Called(name, bind)
	return args.Error(0)
}

func (m *MockContext) Redirect(path string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(path, status)
		return args.Error(0)
	}
	args := m.Called(path)
	return args.Error(0)
}

func (m *MockContext) RedirectToRoute(name string, data router.ViewContext, status ...int) error {
	if len(status) > 0 {
		args := m.Called(name, data, status[0])
		return args.Error(0)
	}
	args := m.Called(name, data)
	return args.Error(0)
}

func (m *MockContext) RedirectBack(fallback string, status ...int) error {
	if len(status) > 0 {
		args := m.Called(fallback, status)
		return args.Error(0)
	}
	args := m.Called(fallback)
	return args.Error(0)
}

func (m *MockContext) SetHeader(key, val string) router.Context {
	m.Called(key, val)
	return m
}

func (m *MockContext) Header(key string) string {
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Get(key string, defaultValue any) any {
	args := m.Called(key, defaultValue)
	return args.Get(0)
}

func (m *MockContext) GetBool(key string, defaultValue bool) bool {
	args := m.Called(key, defaultValue)
	return args.Bool(0)
}

func (m *MockContext) GetInt(key string, def int) int {
	args := m.Called(key, def)
	return args.Int(0)
}

func (m *MockContext) Set(key string, val any) {
	m.Called(key, val)
}

func (m *MockContext) Bind(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindJSON(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindXML(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) BindQuery(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) CookieParser(i any) error {
	args := m.Called(i)
	return args.Error(0)
}

func (m *MockContext) Cookie(cookie *router.Cookie) {
	m.Called(cookie)
}

func (m *MockContext) Cookies(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) Param(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) ParamsInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Query(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) QueryValues(key string) []string {
	args := m.Called(key)
	return args.Get(0).([]string)
}

func (m *MockContext) QueryInt(key string, defaultValue int) int {
	args := m.Called(key, defaultValue)
	return args.Int(0)
}

func (m *MockContext) Queries() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

func (m *MockContext) GetString(key string, defaultValue string) string {
	args := m.Called(key, defaultValue)
	return args.String(0)
}

func (m *MockContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		m.Called(key, value[0])
		return nil
	}
	args := m.Called(key)
	return args.Get(0)
}

func (m *MockContext) OriginalURL() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) OnNext(callback func() error) {
	m.Called(callback)
}

func (m *MockContext) Referer() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) FormFile(key string) (*multipart.FileHeader, error) {
	args := m.Called(key)
	fh, _ := args.Get(0).(*multipart.FileHeader)
	return fh, args.Error(1)
}

func (m *MockContext) FormValue(key string, defaultValue ...string) string {
	if len(defaultValue) > 0 {
		args := m.Called(key, defaultValue[0])
		return args.String(0)
	}
	args := m.Called(key)
	return args.String(0)
}

func (m *MockContext) IP() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) LocalsMerge(key any, value map[string]any) map[string]any {
	args := m.Called(key, value)
	return args.Get(0).(map[string]any)
}

func (m *MockContext) SendStatus(code int) error {
	args := m.Called(code)
	return args.Error(0)
}

func (m *MockContext) SendStream(r io.Reader) error {
	args := m.Called(r)
	return args.Error(0)
}

func (m *MockContext) RouteName() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockContext) RouteParams() map[string]string {
	args := m.Called()
	return args.Get(0).(map[string]string)
}

var _ router.Context = (*MockContext)(nil)

// seedUser registers a user with the given password and returns it.
func seedUser(t interface{ Fatalf(string, ...any) }, store *memUsers, email, username, password string, role auth.UserRole) *auth.User {
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	user, err := store.Register(context.Background(), &auth.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return user
}
