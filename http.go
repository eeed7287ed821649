package accounts

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-accounts/middleware/jwtware"
)

// MessageResponse is the body of signup and activation responses.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Message    string           `json:"message"`
	TextCode   string           `json:"textCode,omitempty"`
	Violations []FieldViolation `json:"violations,omitempty"`
}

// SessionResponse is the body of login and refresh responses. Expiry
// horizons are in milliseconds.
type SessionResponse struct {
	AccessToken           string `json:"accessToken"`
	RefreshToken          string `json:"refreshToken"`
	AccessTokenExpiresIn  int64  `json:"accessTokenExpiresIn"`
	RefreshTokenExpiresIn int64  `json:"refreshTokenExpiresIn"`
}

// NewSessionResponse renders a SessionPair.
func NewSessionResponse(p *SessionPair) SessionResponse {
	if p == nil {
		return SessionResponse{}
	}
	return SessionResponse{
		AccessToken:           p.AccessToken,
		RefreshToken:          p.RefreshToken,
		AccessTokenExpiresIn:  p.AccessTokenExpiresIn.Milliseconds(),
		RefreshTokenExpiresIn: p.RefreshTokenExpiresIn.Milliseconds(),
	}
}

// ErrorStatus resolves the HTTP status and body for err. Internal
// failures never leak their message.
func ErrorStatus(err error) (int, ErrorResponse) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError, ErrorResponse{Message: MessageInternal}
	}

	status := richErr.Code
	if status < 400 || status > 599 {
		status = statusForCategory(richErr)
	}

	body := ErrorResponse{
		Message:    richErr.Message,
		TextCode:   richErr.TextCode,
		Violations: ViolationsFrom(richErr),
	}

	switch {
	case status >= 500:
		body.Message = MessageInternal
	case richErr.TextCode == TextCodeTokenExpired || richErr.TextCode == TextCodeTokenMalformed:
		body.Message = MessageInvalidAuthorization
	}

	return status, body
}

func statusForCategory(richErr *goerrors.Error) int {
	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// NewErrorHandler renders errors as JSON, logging server-side failures.
func NewErrorHandler(logger Logger) router.ErrorHandler {
	logger = normalizeLogger(logger)
	return func(c router.Context, err error) error {
		status, body := ErrorStatus(err)
		if status >= 500 {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				logger.Error("request failed",
					"error", err,
					"category", richErr.Category,
					"details", print.MaybePrettyJSON(richErr.Metadata),
				)
			} else {
				logger.Error("request failed", "error", err)
			}
		}
		return c.JSON(status, body)
	}
}

// ProtectedRoute returns middleware that requires a valid access token,
// stores its claims in the request locals under cfg.GetContextKey() and in
// the request context. Listeners run after validation and can reject the
// request by returning an error.
func ProtectedRoute(ts *TokenService, cfg Config, errorHandler router.ErrorHandler, listeners ...ValidationListener) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = NewErrorHandler(nil)
	}
	mw := jwtware.Config{
		TokenValidator:  AccessTokenValidator(ts),
		ContextKey:      cfg.GetContextKey(),
		TokenLookup:     cfg.GetTokenLookup(),
		AuthScheme:      cfg.GetAuthScheme(),
		ContextEnricher: ContextEnricherAdapter,
		ErrorHandler: func(c router.Context, err error) error {
			if jwtware.IsMissingToken(err) {
				err = ErrTokenMalformed
			}
			return errorHandler(c, err)
		},
	}
	RegisterValidationListeners(&mw, listeners...)
	return jwtware.New(mw)
}
