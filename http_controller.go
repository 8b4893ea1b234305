package auth

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the authentication endpoints on the given
// router. Protected routes stack the authentication gate; the rest are
// public by design.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)
	protected := controller.Auther.ProtectedRoute()

	app.Post(controller.Routes.Register, controller.Register).
		SetName("auth.register.post")

	app.Post(controller.Routes.Login, controller.Login).
		SetName("auth.login.post")

	app.Post(controller.Routes.Refresh, controller.Refresh).
		SetName("auth.refresh.post")

	app.Post(controller.Routes.Logout, protected(controller.Logout)).
		SetName("auth.logout.post")

	app.Post(controller.Routes.LogoutAll, protected(controller.LogoutAll)).
		SetName("auth.logout-all.post")

	app.Get(controller.Routes.Profile, protected(controller.ProfileShow)).
		SetName("auth.profile.get")

	app.Put(controller.Routes.Profile, protected(controller.ProfileUpdate)).
		SetName("auth.profile.put")

	app.Put(controller.Routes.Password, protected(controller.ChangePassword)).
		SetName("auth.password.put")
}

type AuthControllerRoutes struct {
	Register  string
	Login     string
	Refresh   string
	Logout    string
	LogoutAll string
	Profile   string
	Password  string
}

type AuthController struct {
	Logger       Logger
	Users        Users
	Routes       *AuthControllerRoutes
	Auther       *RouteAuthenticator
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerAuther(a *RouteAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = a
		return c
	}
}

func WithControllerUsers(users Users) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Users = users
		return c
	}
}

func WithControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = l
		return c
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Register:  "/auth/register",
			Login:     "/auth/login",
			Refresh:   "/auth/refresh-token",
			Logout:    "/auth/logout",
			LogoutAll: "/auth/logout-all",
			Profile:   "/auth/profile",
			Password:  "/auth/change-password",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	if c.Users == nil {
		panic("Missing Users store in auth controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.Auther.ErrorHandler
	}

	return c
}

// RegisterRequest is the signup payload.
type RegisterRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Role            string `json:"role"`
	Birthdate       string `json:"birthdate"`
	Gender          string `json:"gender"`
	Country         string `json:"country"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Username, validation.Length(3, 60)),
		validation.Field(&r.Phone, validation.Length(7, 15)),
		validation.Field(&r.Password, validation.Required, validation.Length(MinPasswordLength, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) Register(ctx router.Context) error {
	payload := new(RegisterRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register parse payload", "error", err)
		return a.ErrorHandler(ctx, ValidationError([]string{"failed to parse request body"}))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, formatValidationError(err))
	}

	user, pair, err := a.Auther.Auth().Register(ctx.Context(), RegisterUserMessage{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Username:  payload.Username,
		Email:     payload.Email,
		Phone:     payload.Phone,
		Password:  payload.Password,
		Role:      payload.Role,
		Birthdate: payload.Birthdate,
		Gender:    payload.Gender,
		Country:   payload.Country,
	})
	if err != nil {
		a.Logger.Error("register error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	a.Auther.SetRefreshCookie(ctx, pair.RefreshToken, DefaultRefreshTokenLifetime)

	return respond(ctx, router.StatusCreated, "User registered successfully", router.ViewContext{
		"user":         user.Public(),
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required, validation.Length(3, 100)),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) Login(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.ErrorHandler(ctx, ValidationError([]string{"failed to parse request body"}))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, formatValidationError(err))
	}

	user, pair, err := a.Auther.Auth().Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("login error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	a.Auther.SetRefreshCookie(ctx, pair.RefreshToken, DefaultRefreshTokenLifetime)

	return respond(ctx, router.StatusOK, "Login successful", router.ViewContext{
		"user":         user.Public(),
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
	})
}

// RefreshRequest carries the refresh token; the cookie is the fallback when
// the body omits it.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (a *AuthController) Refresh(ctx router.Context) error {
	payload := new(RefreshRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("refresh parse payload", "error", err)
		return a.ErrorHandler(ctx, ValidationError([]string{"failed to parse request body"}))
	}

	token := payload.RefreshToken
	if token == "" {
		token = ctx.Cookies(RefreshTokenCookie)
	}

	if token == "" {
		return a.ErrorHandler(ctx, ErrInvalidRefreshToken)
	}

	pair, err := a.Auther.Auth().Refresh(ctx.Context(), token)
	if err != nil {
		a.Logger.Error("refresh error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	a.Auther.SetRefreshCookie(ctx, pair.RefreshToken, DefaultRefreshTokenLifetime)

	return respond(ctx, router.StatusOK, "Token refreshed", router.ViewContext{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"expiresIn":    pair.ExpiresIn,
	})
}

func (a *AuthController) Logout(ctx router.Context) error {
	principal, ok := GetRouterPrincipal(ctx, "")
	if !ok {
		return a.ErrorHandler(ctx, ErrMissingToken)
	}

	payload := new(RefreshRequest)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Debug("logout parse payload", "error", err)
	}

	token := payload.RefreshToken
	if token == "" {
		token = ctx.Cookies(RefreshTokenCookie)
	}

	if err := a.Auther.Auth().Logout(ctx.Context(), principal.ID, token); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	a.Auther.ClearRefreshCookie(ctx)

	return respond(ctx, router.StatusOK, "Logged out", nil)
}

func (a *AuthController) LogoutAll(ctx router.Context) error {
	principal, ok := GetRouterPrincipal(ctx, "")
	if !ok {
		return a.ErrorHandler(ctx, ErrMissingToken)
	}

	if err := a.Auther.Auth().LogoutAll(ctx.Context(), principal.ID); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	a.Auther.ClearRefreshCookie(ctx)

	return respond(ctx, router.StatusOK, "Logged out from all devices", nil)
}

func (a *AuthController) ProfileShow(ctx router.Context) error {
	principal, ok := GetRouterPrincipal(ctx, "")
	if !ok {
		return a.ErrorHandler(ctx, ErrMissingToken)
	}

	user, err := a.Users.GetByID(ctx.Context(), principal.ID)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return respond(ctx, router.StatusOK, "Profile", router.ViewContext{
		"user": user.Public(),
	})
}

// ProfileUpdateRequest carries partial profile changes; nil means leave the
// field untouched.
type ProfileUpdateRequest struct {
	FirstName *string  `json:"first_name"`
	LastName  *string  `json:"last_name"`
	Phone     *string  `json:"phone"`
	Profile   *Profile `json:"profile"`
}

func (a *AuthController) ProfileUpdate(ctx router.Context) error {
	principal, ok := GetRouterPrincipal(ctx, "")
	if !ok {
		return a.ErrorHandler(ctx, ErrMissingToken)
	}

	payload := new(ProfileUpdateRequest)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("profile parse payload", "error", err)
		return a.ErrorHandler(ctx, ValidationError([]string{"failed to parse request body"}))
	}

	update := ProfileUpdate{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Phone:     payload.Phone,
		Profile:   payload.Profile,
	}

	if update.IsEmpty() {
		return a.ErrorHandler(ctx, ValidationError([]string{"no profile fields to update"}))
	}

	user, err := a.Users.UpdateProfile(ctx.Context(), principal.ID, update)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return respond(ctx, router.StatusOK, "Profile updated", router.ViewContext{
		"user": user.Public(),
	})
}

// ChangePasswordRequest payload
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Validate will run validation rules
func (r ChangePasswordRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(MinPasswordLength, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.By(ValidateStringEquals(r.NewPassword)),
		),
	)
}

func (a *AuthController) ChangePassword(ctx router.Context) error {
	principal, ok := GetRouterPrincipal(ctx, "")
	if !ok {
		return a.ErrorHandler(ctx, ErrMissingToken)
	}

	payload := new(ChangePasswordRequest)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("change password parse payload", "error", err)
		return a.ErrorHandler(ctx, ValidationError([]string{"failed to parse request body"}))
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, formatValidationError(err))
	}

	err := a.Auther.Auth().ChangePassword(ctx.Context(), principal.ID, payload.CurrentPassword, payload.NewPassword)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return respond(ctx, router.StatusOK, "Password changed", nil)
}

func respond(ctx router.Context, status int, message string, data router.ViewContext) error {
	body := router.ViewContext{
		"success": true,
		"message": message,
	}

	if data != nil {
		body["data"] = data
	}

	return ctx.JSON(status, body)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// formatValidationError flattens ozzo's per-field errors into the shared
// validation failure shape.
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		messages := make([]string, 0, len(fieldErrs))
		for field, ferr := range fieldErrs {
			messages = append(messages, field+": "+ferr.Error())
		}
		return ValidationError(messages)
	}

	return ValidationError([]string{err.Error()})
}
