package errors

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrBadRequest       = errors.New("bad request")
	ErrInternalServer   = errors.New("internal server error")
	ErrGroupNotFound    = errors.New("group not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrSessionMismatch  = errors.New("connection is bound to another user")
	ErrMalformedPayload = errors.New("malformed payload")
)

// Причины, которые уходят клиенту в событиях ошибок
const (
	ReasonInvalidSession  = "invalid_session"
	ReasonSessionMismatch = "session_mismatch"
	ReasonInvalidGroup    = "invalid_group"
	ReasonInvalidMessage  = "invalid_message"
	ReasonEmptyContent    = "empty_content"
	ReasonTooLong         = "too_long"
	ReasonInvalidType     = "invalid_type"
	ReasonInvalidReply    = "invalid_reply"
	ReasonInvalidPayload  = "invalid_payload"
	ReasonUnauthorized    = "unauthorized"
	ReasonSenderNotFound  = "sender_not_found"
	ReasonNotFound        = "not_found"
	ReasonRateLimited     = "rate_limited"
	ReasonInternal        = "internal_error"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuth
	KindAuthorization
	KindNotFound
	KindPersistence
	KindRateLimit
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuth:
		return "auth"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindPersistence:
		return "persistence"
	case KindRateLimit:
		return "rate_limit"
	default:
		return "unknown"
	}
}

// ChatError - ошибка обработки события, адресуется только отправителю запроса
type ChatError struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *ChatError) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Reason + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Reason
}

func (e *ChatError) Unwrap() error {
	return e.Err
}

func Validation(reason string) error {
	return &ChatError{Kind: KindValidation, Reason: reason}
}

func Auth(reason string, err error) error {
	return &ChatError{Kind: KindAuth, Reason: reason, Err: err}
}

func Forbidden(reason string) error {
	return &ChatError{Kind: KindAuthorization, Reason: reason, Err: ErrForbidden}
}

func NotFound(reason string, err error) error {
	if err == nil {
		err = ErrNotFound
	}
	return &ChatError{Kind: KindNotFound, Reason: reason, Err: err}
}

// Persistence скрывает детали хранилища: клиенту уходит только internal_error
func Persistence(err error) error {
	return &ChatError{Kind: KindPersistence, Reason: ReasonInternal, Err: err}
}

func RateLimited() error {
	return &ChatError{Kind: KindRateLimit, Reason: ReasonRateLimited, Err: ErrRateLimited}
}

// KindOf возвращает категорию ошибки, 0 для посторонних ошибок
func KindOf(err error) Kind {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

// Reason возвращает причину для клиента, internal_error для неизвестных ошибок
func Reason(err error) string {
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Reason
	}
	switch {
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return ReasonInvalidSession
	case errors.Is(err, ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, ErrMessageNotFound), errors.Is(err, ErrNotFound):
		return ReasonNotFound
	default:
		return ReasonInternal
	}
}

type APIError struct {
	Message string `json:"error"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(message string, code int) *APIError {
	return &APIError{
		Message: message,
		Code:    code,
	}
}

func HTTPStatusFromError(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindPersistence:
		return http.StatusInternalServerError
	case KindRateLimit:
		return http.StatusTooManyRequests
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrGroupNotFound),
		errors.Is(err, ErrMessageNotFound), errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrMalformedPayload):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
