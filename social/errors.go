package social

import (
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeProviderNotFound = "social_provider_not_found"
	TextCodeInvalidIDToken   = "social_invalid_id_token"
	TextCodeEmailNotVerified = "social_email_not_verified"
	TextCodeEmailExists      = "social_email_exists"
	TextCodeSignupDisabled   = "social_signup_disabled"
	TextCodeLinkingDisabled  = "social_linking_disabled"
)

// ErrProviderNotFound is returned when a requested provider is not configured.
var ErrProviderNotFound = goerrors.New("social provider not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidIDToken is returned when the provider rejects the ID token.
var ErrInvalidIDToken = goerrors.New("invalid identity token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidIDToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailNotVerified is returned when a provider email is not verified.
var ErrEmailNotVerified = goerrors.New("email not verified", goerrors.CategoryAuth).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(goerrors.CodeForbidden)

// ErrEmailAlreadyExists is returned when an account owns the email and linking is disabled.
var ErrEmailAlreadyExists = goerrors.New("email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailExists).
	WithCode(goerrors.CodeConflict)

// ErrSignupNotAllowed is returned when signup is disabled.
var ErrSignupNotAllowed = goerrors.New("signup not allowed", goerrors.CategoryAuth).
	WithTextCode(TextCodeSignupDisabled).
	WithCode(goerrors.CodeForbidden)

// ErrLinkingNotAllowed is returned when account linking is disabled.
var ErrLinkingNotAllowed = goerrors.New("linking not allowed", goerrors.CategoryAuth).
	WithTextCode(TextCodeLinkingDisabled).
	WithCode(goerrors.CodeForbidden)

// ProviderError captures normalized provider response details.
type ProviderError struct {
	Provider    string
	Operation   string
	Status      int
	Description string
	Err         error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}

	scope := "provider"
	if e.Provider != "" && e.Operation != "" {
		scope = fmt.Sprintf("%s %s", e.Provider, e.Operation)
	} else if e.Provider != "" {
		scope = e.Provider
	}

	if e.Description != "" {
		return fmt.Sprintf("%s failed: %s", scope, e.Description)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", scope, e.Err)
	}

	return fmt.Sprintf("%s failed", scope)
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *ProviderError) Metadata() map[string]any {
	if e == nil {
		return nil
	}

	meta := map[string]any{}
	if e.Provider != "" {
		meta["provider"] = e.Provider
	}
	if e.Operation != "" {
		meta["operation"] = e.Operation
	}
	if e.Status != 0 {
		meta["status"] = e.Status
	}
	if e.Description != "" {
		meta["description"] = e.Description
	}

	return meta
}

// WrapProviderError returns a copy of base carrying err and the provider
// details as metadata. base itself is never modified.
func WrapProviderError(base *goerrors.Error, provider, operation string, err error) error {
	if base == nil {
		return err
	}

	meta := map[string]any{}
	if provider != "" {
		meta["provider"] = provider
	}
	if operation != "" {
		meta["operation"] = operation
	}

	var perr *ProviderError
	if errors.As(err, &perr) && perr != nil {
		for k, v := range perr.Metadata() {
			meta[k] = v
		}
	} else if err != nil {
		meta["error"] = err.Error()
	}

	clone := base.Clone()
	if clone == nil {
		return base
	}
	if err != nil {
		clone.Source = err
	}

	return clone.WithMetadata(meta)
}
