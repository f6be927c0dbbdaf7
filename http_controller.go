package accounts

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/google/uuid"
)

func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountControllerOption) *AccountController {
	controller := NewAccountController(opts...)

	app.Get(controller.Routes.Home, controller.Home).
		SetName("home.get")

	app.Get(controller.Routes.Signup, controller.SignupShow).
		SetName("signup.get")
	app.Post(controller.Routes.Signup, controller.SignupPost, controller.FormMiddleware...).
		SetName("signup.post")

	app.Get(controller.Routes.ActivateAccount, controller.ActivateAccount).
		SetName("activate-account.get")

	app.Get(controller.Routes.RequestPasswordReset, controller.RequestPasswordResetShow).
		SetName("pwd-reset-request.get")
	app.Post(controller.Routes.RequestPasswordReset, controller.RequestPasswordResetPost, controller.FormMiddleware...).
		SetName("pwd-reset-request.post")

	app.Get(controller.Routes.ResetPassword, controller.ResetPasswordShow).
		SetName("pwd-reset.get")
	app.Post(controller.Routes.ResetPassword, controller.ResetPasswordPost, controller.FormMiddleware...).
		SetName("pwd-reset.post")

	app.Get(controller.Routes.Login, controller.LoginShow).
		SetName("login.get")
	app.Post(controller.Routes.Login, controller.LoginPost, controller.FormMiddleware...).
		SetName("login.post")
	app.Post(controller.Routes.Logout, controller.Logout).
		SetName("logout.post")

	protected := append([]router.MiddlewareFunc{}, controller.FormMiddleware...)
	protected = append(protected, controller.RequireIdentity())

	app.Get(controller.Routes.UpdateAccount+"/:id", controller.UpdateAccountShow, controller.RequireIdentity()).
		SetName("update-account.get")
	app.Post(controller.Routes.UpdateAccount+"/:id", controller.UpdateAccountPost, protected...).
		SetName("update-account.post")

	return controller
}

type AccountControllerRoutes struct {
	Home                 string
	Signup               string
	ActivateAccount      string
	RequestPasswordReset string
	ResetPassword        string
	UpdateAccount        string
	Login                string
	Logout               string
}

type AccountControllerViews struct {
	Home                 string
	Signup               string
	RequestPasswordReset string
	ResetPassword        string
	UpdateAccount        string
	Login                string
}

type AccountController struct {
	Debug          bool
	Logger         Logger
	Deps           Dependencies
	Identity       IdentityProvider
	Routes         *AccountControllerRoutes
	Views          *AccountControllerViews
	ErrorHandler   router.ErrorHandler
	FormMiddleware []router.MiddlewareFunc
	// AuthErrorHandler runs when a protected route has no valid identity
	AuthErrorHandler router.ErrorHandler
	// RememberFor is the identity cookie lifetime when "remember me" is set
	RememberFor time.Duration
}

type AccountControllerOption func(*AccountController) *AccountController

func WithControllerDependencies(deps Dependencies) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Deps = deps
		return c
	}
}

func WithControllerLogger(l Logger) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

func WithControllerDebug(debug bool) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Debug = debug
		return c
	}
}

// WithControllerIdentityProvider replaces the account backed provider
func WithControllerIdentityProvider(p IdentityProvider) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		if p != nil {
			c.Identity = p
		}
		return c
	}
}

// WithFormMiddleware adds middleware to every form POST route
func WithFormMiddleware(mw ...router.MiddlewareFunc) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.FormMiddleware = append(c.FormMiddleware, mw...)
		return c
	}
}

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		RememberFor:  time.Hour * 24 * 30,
		Routes: &AccountControllerRoutes{
			Home:                 "/",
			Signup:               "/site/signup",
			ActivateAccount:      "/site/activate-account",
			RequestPasswordReset: "/site/request-password-reset",
			ResetPassword:        "/site/reset-password",
			UpdateAccount:        "/user/update-account",
			Login:                "/site/login",
			Logout:               "/site/logout",
		},
		Views: &AccountControllerViews{
			Home:                 "site/index",
			Signup:               "site/signup",
			RequestPasswordReset: "site/request_password_reset",
			ResetPassword:        "site/reset_password",
			UpdateAccount:        "user/update",
			Login:                "site/login",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Deps.Repo == nil {
		panic("Missing RepositoryManager in account controller...")
	}

	if c.Identity == nil {
		c.Identity = NewAccountProvider(c.Deps.Repo.Accounts()).WithLogger(c.Logger)
	}

	if c.AuthErrorHandler == nil {
		c.AuthErrorHandler = c.defaultAuthErrHandler
	}

	return c
}

func (a *AccountController) Home(ctx router.Context) error {
	return ctx.Render(a.Views.Home, router.ViewContext{
		"title": "Home",
	})
}

// SignupForm is the signup form, fields are posted as SignupForm[name]
type SignupForm struct {
	Username string `form:"username" json:"username"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

type signupPayload struct {
	SignupForm SignupForm `form:"SignupForm" json:"SignupForm"`
}

func (a *AccountController) SignupShow(ctx router.Context) error {
	return ctx.Render(a.Views.Signup, router.ViewContext{
		"errors": map[string]string{},
		"record": SignupForm{},
	})
}

func (a *AccountController) SignupPost(ctx router.Context) error {
	payload := new(signupPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("signup parse payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Signup, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload.SignupForm,
		})
	}

	if a.Debug {
		fmt.Println("======= SIGNUP ======")
		fmt.Println(print.MaybePrettyJSON(payload.SignupForm))
		fmt.Println("=====================")
	}

	var account *Account
	msg := SignupMessage{
		Username: payload.SignupForm.Username,
		Email:    payload.SignupForm.Email,
		Password: payload.SignupForm.Password,
		OnResponse: func(acc *Account) {
			account = acc
		},
	}

	if err := NewSignupHandler(a.Deps).Execute(ctx.Context(), msg); err != nil {
		return a.renderFormError(ctx, err, a.Views.Signup, router.ViewContext{
			"record": SignupForm{Username: payload.SignupForm.Username, Email: payload.SignupForm.Email},
		})
	}

	a.Logger.Info("signup for %s", account.Username)

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Hello " + account.Username + ". To be able to log in, you need to confirm your registration. Please check your email, we have sent you a message.",
	}).Redirect(a.Routes.Home, fiber.StatusSeeOther)
}

func (a *AccountController) ActivateAccount(ctx router.Context) error {
	token := ctx.Query("token", "")

	var account *Account
	msg := ActivateAccountMessage{
		Token: token,
		OnResponse: func(acc *Account) {
			account = acc
		},
	}

	if err := NewActivateAccountHandler(a.Deps).Execute(ctx.Context(), msg); err != nil {
		if IsInvalidToken(err) {
			return flash.WithError(ctx, router.ViewContext{
				"error_message":  err.Error(),
				"system_message": "Wrong account activation token.",
			}).Redirect(a.Routes.Home, fiber.StatusSeeOther)
		}
		a.Logger.Error("activate account: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Success! You can now log in. Thank you " + account.Username + " for joining us!",
	}).Redirect(a.Routes.Home, fiber.StatusSeeOther)
}

// PasswordResetRequestForm is posted as PasswordResetRequestForm[email]
type PasswordResetRequestForm struct {
	Email string `form:"email" json:"email"`
}

type passwordResetRequestPayload struct {
	PasswordResetRequestForm PasswordResetRequestForm `form:"PasswordResetRequestForm" json:"PasswordResetRequestForm"`
}

func (a *AccountController) RequestPasswordResetShow(ctx router.Context) error {
	return ctx.Render(a.Views.RequestPasswordReset, router.ViewContext{
		"errors": map[string]string{},
		"record": PasswordResetRequestForm{},
	})
}

func (a *AccountController) RequestPasswordResetPost(ctx router.Context) error {
	payload := new(passwordResetRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset request parse payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.RequestPasswordReset, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload.PasswordResetRequestForm,
		})
	}

	var res *RequestPasswordResetResponse
	msg := RequestPasswordResetMessage{
		Email: payload.PasswordResetRequestForm.Email,
		OnResponse: func(resp *RequestPasswordResetResponse) {
			res = resp
		},
	}

	if err := NewRequestPasswordResetHandler(a.Deps).Execute(ctx.Context(), msg); err != nil {
		return a.renderFormError(ctx, err, a.Views.RequestPasswordReset, router.ViewContext{
			"record": payload.PasswordResetRequestForm,
		})
	}

	if a.Debug {
		fmt.Println("================")
		fmt.Println(print.MaybePrettyJSON(res))
		fmt.Println("================")
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Check your email for further instructions.",
	}).Redirect(a.Routes.Home, fiber.StatusSeeOther)
}

// ResetPasswordForm is posted as ResetPasswordForm[password]
type ResetPasswordForm struct {
	Password string `form:"password" json:"password"`
}

type resetPasswordPayload struct {
	ResetPasswordForm ResetPasswordForm `form:"ResetPasswordForm" json:"ResetPasswordForm"`
}

func (a *AccountController) ResetPasswordShow(ctx router.Context) error {
	token := ctx.Query("token", "")

	if _, err := NewResetPasswordHandler(a.Deps).CheckToken(ctx.Context(), token); err != nil {
		return a.invalidResetToken(ctx, err)
	}

	return ctx.Render(a.Views.ResetPassword, router.ViewContext{
		"errors": map[string]string{},
		"token":  token,
	})
}

func (a *AccountController) ResetPasswordPost(ctx router.Context) error {
	token := ctx.Query("token", "")
	payload := new(resetPasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("reset password parse payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.ResetPassword, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"token":  token,
		})
	}

	msg := ResetPasswordMessage{
		Token:    token,
		Password: payload.ResetPasswordForm.Password,
	}

	if err := NewResetPasswordHandler(a.Deps).Execute(ctx.Context(), msg); err != nil {
		if IsInvalidToken(err) {
			return a.invalidResetToken(ctx, err)
		}
		return a.renderFormError(ctx, err, a.Views.ResetPassword, router.ViewContext{
			"token": token,
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "New password was saved.",
	}).Redirect(a.Routes.Home, fiber.StatusSeeOther)
}

// UpdateAccountForm is posted as User[name], matching the account form
type UpdateAccountForm struct {
	Username    string `form:"username" json:"username"`
	Email       string `form:"email" json:"email"`
	NewPassword string `form:"newPassword" json:"newPassword"`
}

type updateAccountPayload struct {
	User UpdateAccountForm `form:"User" json:"User"`
}

func (a *AccountController) UpdateAccountShow(ctx router.Context) error {
	current, err := a.currentAccount(ctx)
	if err != nil {
		return a.identityError(ctx, err)
	}

	id, err := uuid.Parse(ctx.Param("id", ""))
	if err != nil {
		return a.ErrorHandler(ctx, ErrAccountNotFound)
	}

	if !CanEdit(current, id) {
		a.Logger.Warn("account %s denied access to %s", current.ID, id)
		return a.ErrorHandler(ctx, ErrForbidden)
	}

	account, err := a.Deps.loadAccount(ctx.Context(), id)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := LoadRoleName(ctx.Context(), a.Deps.Repo.Roles(), account); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Render(a.Views.UpdateAccount, router.ViewContext{
		"errors":  map[string]string{},
		"account": account,
		"current": current,
		"record": UpdateAccountForm{
			Username: account.Username,
			Email:    account.Email,
		},
	})
}

func (a *AccountController) UpdateAccountPost(ctx router.Context) error {
	current, err := a.currentAccount(ctx)
	if err != nil {
		return a.identityError(ctx, err)
	}

	id, err := uuid.Parse(ctx.Param("id", ""))
	if err != nil {
		return a.ErrorHandler(ctx, ErrAccountNotFound)
	}

	if !CanEdit(current, id) {
		a.Logger.Warn("account %s denied update of %s", current.ID, id)
		return a.ErrorHandler(ctx, ErrForbidden)
	}

	payload := new(updateAccountPayload)
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("update account parse payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.UpdateAccount, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"id":     id.String(),
			"record": payload.User,
		})
	}

	msg := UpdateAccountMessage{
		ID:          id,
		Username:    payload.User.Username,
		Email:       payload.User.Email,
		NewPassword: payload.User.NewPassword,
		Actor:       ActorSelf(current.GetID()),
	}

	if err := NewUpdateAccountHandler(a.Deps).Execute(ctx.Context(), msg); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return a.ErrorHandler(ctx, err)
		}
		return a.renderFormError(ctx, err, a.Views.UpdateAccount, router.ViewContext{
			"id":     id.String(),
			"record": UpdateAccountForm{Username: payload.User.Username, Email: payload.User.Email},
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Account updated.",
	}).Redirect(fmt.Sprintf("%s/%s", a.Routes.UpdateAccount, id), fiber.StatusSeeOther)
}

// LoginForm is posted as LoginForm[name]
type LoginForm struct {
	Login      string `form:"login" json:"login"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"rememberMe" json:"rememberMe"`
}

type loginPayload struct {
	LoginForm LoginForm `form:"LoginForm" json:"LoginForm"`
}

func (a *AccountController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": map[string]string{},
		"record": LoginForm{},
	})
}

func (a *AccountController) LoginPost(ctx router.Context) error {
	payload := new(loginPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: %v", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Login, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": LoginForm{Login: payload.LoginForm.Login},
		})
	}

	identity, err := a.Identity.VerifyIdentity(ctx.Context(), payload.LoginForm.Login, payload.LoginForm.Password)
	if err != nil {
		if !IsAuthError(err) {
			a.Logger.Error("login: %v", err)
			return a.ErrorHandler(ctx, err)
		}
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Login, router.ViewContext{
			"errors": map[string]string{FieldPassword: MessageIncorrectLogin},
			"record": LoginForm{Login: payload.LoginForm.Login},
		})
	}

	cookie := &router.Cookie{
		Name:     IdentityCookieName,
		Value:    IdentityCookieValue(identity),
		HTTPOnly: true,
	}
	if payload.LoginForm.RememberMe {
		cookie.Expires = time.Now().Add(a.RememberFor)
	}
	ctx.Cookie(cookie)

	return ctx.Redirect(fmt.Sprintf("%s/%s", a.Routes.UpdateAccount, identity.GetID()), fiber.StatusSeeOther)
}

func (a *AccountController) Logout(ctx router.Context) error {
	ctx.Cookie(&router.Cookie{
		Name:     IdentityCookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
	})
	return ctx.Redirect(a.Routes.Home, fiber.StatusSeeOther)
}

// RequireIdentity only lets requests with a valid identity cookie through
// and stores the account under CurrentAccountKey.
func (a *AccountController) RequireIdentity() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			account, err := a.currentAccount(ctx)
			if err != nil {
				return a.identityError(ctx, err)
			}
			ctx.Locals(CurrentAccountKey, account)
			return next(ctx)
		}
	}
}

// currentAccount returns the account set by RequireIdentity, resolving
// the identity cookie when the middleware did not run.
func (a *AccountController) currentAccount(ctx router.Context) (*Account, error) {
	if account, ok := ctx.Locals(CurrentAccountKey).(*Account); ok && account != nil {
		return account, nil
	}

	account, err := ResolveIdentity(ctx.Context(), a.Identity, ctx.Cookies(IdentityCookieName))
	if err != nil {
		return nil, err
	}

	if err := LoadRoleName(ctx.Context(), a.Deps.Repo.Roles(), account); err != nil {
		return nil, err
	}
	return account, nil
}

func (a *AccountController) identityError(ctx router.Context, err error) error {
	if IsAuthError(err) {
		return a.AuthErrorHandler(ctx, err)
	}
	a.Logger.Error("resolve identity: %v", err)
	return a.ErrorHandler(ctx, err)
}

func (a *AccountController) defaultAuthErrHandler(ctx router.Context, err error) error {
	return flash.WithError(ctx, router.ViewContext{
		"error_message":  err.Error(),
		"system_message": "Please log in to continue.",
	}).Redirect(a.Routes.Login, fiber.StatusSeeOther)
}

// renderFormError re-renders view with field errors, anything that is
// not a validation problem goes to the error handler.
func (a *AccountController) renderFormError(ctx router.Context, err error, view string, data router.ViewContext) error {
	var fieldErrs FieldErrors
	if !errors.As(err, &fieldErrs) {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.Category == goerrors.CategoryOperation {
			return flash.WithError(ctx, router.ViewContext{
				"error_message":  richErr.Error(),
				"system_message": "Sorry, we are unable to complete your request right now.",
			}).Render(view, withErrors(data, map[string]string{}))
		}
		a.Logger.Error("form submit failed: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return flash.WithError(ctx, router.ViewContext{
		"error_message":  fieldErrs.Error(),
		"system_message": "Error validating payload",
	}).Render(view, withErrors(data, fieldErrs.Map()))
}

func (a *AccountController) invalidResetToken(ctx router.Context, err error) error {
	if !IsInvalidToken(err) {
		a.Logger.Error("reset password token check: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	return flash.WithError(ctx, router.ViewContext{
		"error_message":  err.Error(),
		"system_message": "Wrong password reset token.",
	}).Redirect(a.Routes.RequestPasswordReset, fiber.StatusSeeOther)
}

func withErrors(data router.ViewContext, errs map[string]string) router.ViewContext {
	out := router.ViewContext{"errors": errs}
	for k, v := range data {
		out[k] = v
	}
	return out
}

func defaultErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}
