package auth

import (
	"database/sql"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	TextCodeValidation         = "VALIDATION_ERROR"
	TextCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	TextCodeInvalidToken       = "INVALID_TOKEN"
	TextCodeExpiredToken       = "EXPIRED_TOKEN"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	TextCodeUnauthorized       = "UNAUTHORIZED"
	TextCodeForbidden          = "FORBIDDEN"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeNotFound           = "NOT_FOUND"
	TextCodeInternal           = "INTERNAL_ERROR"
)

// Sentinels are returned as-is so callers can match them with errors.Is.
// Never call With* builders on them, build a new error instead.
var (
	// ErrDuplicateEmail an account already owns the email
	ErrDuplicateEmail = errors.New("an account with this email already exists", errors.CategoryConflict).
				WithCode(errors.CodeBadRequest).
				WithTextCode(TextCodeDuplicateEmail)

	// ErrInvalidToken the verification token is unknown or already used
	ErrInvalidToken = errors.New("invalid verification token", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest).
			WithTextCode(TextCodeInvalidToken)

	// ErrExpiredToken the verification token is past its expiry
	ErrExpiredToken = errors.New("verification token has expired", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest).
			WithTextCode(TextCodeExpiredToken)

	// ErrInvalidCredentials covers unknown accounts, password-less accounts and wrong passwords
	ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(TextCodeInvalidCredentials)

	// ErrEmailNotVerified the account exists but has not completed verification
	ErrEmailNotVerified = errors.New("email address has not been verified", errors.CategoryAuth).
				WithCode(errors.CodeForbidden).
				WithTextCode(TextCodeEmailNotVerified)

	// ErrUnauthorized the request carries no usable session
	ErrUnauthorized = errors.New("authentication required", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode(TextCodeUnauthorized)

	// ErrForbidden the session role is not allowed on the route
	ErrForbidden = errors.New("access denied", errors.CategoryAuthz).
			WithCode(errors.CodeForbidden).
			WithTextCode(TextCodeForbidden)

	// ErrTokenExpired the session token is past its expiry
	ErrTokenExpired = errors.New("session has expired", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode(TextCodeTokenExpired)

	// ErrTokenMalformed the session token can not be parsed or verified
	ErrTokenMalformed = errors.New("malformed session token", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(TextCodeTokenMalformed)

	// ErrProtectedClaimMutation a decorator or update touched a claim only the issuer sets
	ErrProtectedClaimMutation = errors.New("protected claim mutated", errors.CategoryInternal).
					WithCode(errors.CodeInternal).
					WithTextCode("PROTECTED_CLAIM_MUTATION")

	// ErrNoEmptyString empty passwords are never hashed
	ErrNoEmptyString = errors.New("password can not be empty", errors.CategoryValidation).
				WithCode(errors.CodeBadRequest).
				WithTextCode(TextCodeValidation)
)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = stderrors.New("identity not found")

// ErrUnableToFindSession is the error when our request has no session
var ErrUnableToFindSession = stderrors.New("unable to find session")

// ErrUnableToDecodeSession unable to decode JWT from session cookie
var ErrUnableToDecodeSession = stderrors.New("unable to decode session")

// ErrUnableToParseData parse error
var ErrUnableToParseData = stderrors.New("unable to parse data")

// NewValidationError returns a validation error carrying the failing fields.
func NewValidationError(message string, fields map[string]string) *errors.Error {
	if message == "" {
		message = "invalid input"
	}

	meta := map[string]any{}
	if len(fields) > 0 {
		meta["fields"] = fields
	}

	return errors.New(message, errors.CategoryValidation).
		WithCode(errors.CodeBadRequest).
		WithTextCode(TextCodeValidation).
		WithMetadata(meta)
}

// NewInternalError wraps unexpected failures. The message is logged,
// clients only ever see a generic one.
func NewInternalError(err error, message string) *errors.Error {
	return errors.Wrap(err, errors.CategoryInternal, message).
		WithCode(errors.CodeInternal).
		WithTextCode(TextCodeInternal)
}

func newRecordNotFound(meta map[string]any) *errors.Error {
	return errors.New("record not found", errors.CategoryNotFound).
		WithCode(errors.CodeNotFound).
		WithTextCode(TextCodeNotFound).
		WithMetadata(meta)
}

// IsRecordNotFound reports whether err is a missing row from the store.
func IsRecordNotFound(err error) bool {
	if err == nil {
		return false
	}

	if stderrors.Is(err, sql.ErrNoRows) {
		return true
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.Category == errors.CategoryNotFound
	}

	return false
}

// IsUniqueViolation reports whether err was raised by a unique constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	return strings.Contains(strings.ToLower(err.Error()), "unique constraint")
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, ErrTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// HTTPStatus returns the status class for err.
func HTTPStatus(err error) int {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	if richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code
	}

	switch richErr.Category {
	case errors.CategoryValidation, errors.CategoryBadInput, errors.CategoryConflict:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
