package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type ResendVerificationMessage struct {
	Email string `json:"email"`
}

func (e ResendVerificationMessage) Type() string { return "account.verification.resend" }

// Validate will run validation rules
func (e ResendVerificationMessage) Validate() error {
	e.Email = NormalizeEmail(e.Email)
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, is.Email),
	)
}

// ResendVerificationHandler issues a new token for an unverified account.
// Unknown or already verified emails are a silent no-op so the endpoint
// can not be used to probe which emails are registered. Older tokens are
// left in place and stay valid until they expire.
type ResendVerificationHandler struct {
	*RegisterAccountHandler
}

func NewResendVerificationHandler(register *RegisterAccountHandler) *ResendVerificationHandler {
	return &ResendVerificationHandler{RegisterAccountHandler: register}
}

func (h *ResendVerificationHandler) Execute(ctx context.Context, event ResendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during verification resend")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendVerificationHandler) execute(ctx context.Context, event ResendVerificationMessage) error {
	if err := event.Validate(); err != nil {
		return NewValidationError("invalid email", ValidationErrorsToMap(err))
	}

	if h.notifier == nil {
		return NewInternalError(ErrUnableToParseData, "verification notifier is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := NormalizeEmail(event.Email)
	now := h.now()
	issued := false

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := h.repo.Accounts().GetByEmailTx(ctx, tx, email)
		if err != nil {
			if IsRecordNotFound(err) {
				return nil
			}
			return NewInternalError(err, "failed to retrieve account")
		}

		if account.IsVerified() {
			return nil
		}

		if err := h.issueToken(ctx, tx, email, now); err != nil {
			return err
		}

		issued = true
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			h.logger.Error("verification resend failed", "email", email, "error", err)
			return richErr
		}
		return NewInternalError(err, "verification resend transaction failed")
	}

	if issued {
		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType:  ActivityEventVerificationResent,
			Actor:      ActorRef{Type: "user"},
			OccurredAt: now,
			Metadata:   map[string]any{"email": email},
		})
	}

	return nil
}
