package accounts

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterAccountRoutes mounts the account endpoints on app. protected
// guards the status route.
func RegisterAccountRoutes[T any](app router.Router[T], controller *AccountsController, protected router.MiddlewareFunc) {
	app.Post(controller.Routes.Signup, controller.Signup).
		SetName("account.signup")

	app.Post(controller.Routes.Login, controller.Login).
		SetName("account.login")

	app.Get(controller.Routes.Activate+"/:token", controller.Activate).
		SetName("account.activate")

	app.Get(controller.Routes.Status, controller.Status, protected).
		SetName("account.status")

	app.Post(controller.Routes.Refresh, controller.Refresh).
		SetName("account.token.refresh")

	app.Get(controller.Routes.Health, controller.Health).
		SetName("health")
}

type AccountsControllerRoutes struct {
	Signup   string
	Login    string
	Activate string
	Status   string
	Refresh  string
	Health   string
}

type AccountsController struct {
	Debug        bool
	Logger       Logger
	Lifecycle    *Lifecycle
	Routes       *AccountsControllerRoutes
	ContextKey   string
	ErrorHandler router.ErrorHandler
}

type AccountsControllerOption func(*AccountsController) *AccountsController

func WithControllerLogger(l Logger) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Logger = normalizeLogger(l)
		return c
	}
}

func WithControllerDebug(debug bool) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Debug = debug
		return c
	}
}

func WithControllerContextKey(key string) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		if key != "" {
			c.ContextKey = key
		}
		return c
	}
}

func WithControllerErrorHandler(h router.ErrorHandler) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		if h != nil {
			c.ErrorHandler = h
		}
		return c
	}
}

func WithControllerRoutes(r *AccountsControllerRoutes) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		if r != nil {
			c.Routes = r
		}
		return c
	}
}

func NewAccountsController(lifecycle *Lifecycle, opts ...AccountsControllerOption) *AccountsController {
	c := &AccountsController{
		Logger:     defLogger{},
		Lifecycle:  lifecycle,
		ContextKey: DefaultContextKey,
		Routes: &AccountsControllerRoutes{
			Signup:   "/signup",
			Login:    "/login",
			Activate: "/activate",
			Status:   "/status",
			Refresh:  "/token/refresh",
			Health:   "/healthz",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = NewErrorHandler(c.Logger)
	}

	if c.Lifecycle == nil {
		panic("Missing Lifecycle in accounts controller...")
	}

	return c
}

type SignupRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
	Email    string `json:"email" form:"email"`
}

type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

func (a *AccountsController) Signup(ctx router.Context) error {
	payload := new(SignupRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, badPayload(err))
	}

	if a.Debug {
		a.Logger.Debug("signup payload", "payload", print.MaybePrettyJSON(map[string]string{
			"username": payload.Username,
			"email":    payload.Email,
		}))
	}

	var resp *SignupResponse
	err := a.Lifecycle.Signup.Execute(ctx.Context(), SignupMessage{
		Username:   payload.Username,
		Password:   payload.Password,
		Email:      payload.Email,
		OnResponse: func(r *SignupResponse) { resp = r },
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, MessageResponse{Message: resp.Message})
}

func (a *AccountsController) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, badPayload(err))
	}

	var resp *LoginResponse
	err := a.Lifecycle.Login.Execute(ctx.Context(), LoginMessage{
		Username:   payload.Username,
		Password:   payload.Password,
		OnResponse: func(r *LoginResponse) { resp = r },
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, NewSessionResponse(resp.Session))
}

func (a *AccountsController) Activate(ctx router.Context) error {
	var resp *ActivateResponse
	err := a.Lifecycle.Activate.Execute(ctx.Context(), ActivateMessage{
		Token:      ctx.Param("token"),
		OnResponse: func(r *ActivateResponse) { resp = r },
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, MessageResponse{Message: resp.Message})
}

func (a *AccountsController) Status(ctx router.Context) error {
	claims, ok := GetRouterClaims(ctx, a.ContextKey)
	if !ok {
		return a.ErrorHandler(ctx, ErrTokenMalformed)
	}

	var resp *StatusResponse
	err := a.Lifecycle.Status.Execute(ctx.Context(), StatusMessage{
		AccountID:  claims.AccountID(),
		OnResponse: func(r *StatusResponse) { resp = r },
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, resp)
}

func (a *AccountsController) Refresh(ctx router.Context) error {
	payload := new(RefreshRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, badPayload(err))
	}

	var resp *LoginResponse
	err := a.Lifecycle.Refresh.Execute(ctx.Context(), RefreshMessage{
		RefreshToken: payload.RefreshToken,
		OnResponse:   func(r *LoginResponse) { resp = r },
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, NewSessionResponse(resp.Session))
}

func (a *AccountsController) Health(ctx router.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func badPayload(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, MessageInvalidData).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeValidationFailed)
}
