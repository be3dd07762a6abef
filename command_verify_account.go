package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type VerifyAccountMessage struct {
	Token      string                       `json:"token"`
	OnResponse func(*VerifyAccountResponse) `json:"-"`
}

func (e VerifyAccountMessage) Type() string { return "account.verify" }

type VerifyAccountResponse struct {
	AccountID  uuid.UUID `json:"account_id"`
	Email      string    `json:"email"`
	VerifiedAt time.Time `json:"verified_at"`
	Message    string    `json:"message"`
}

// VerifyAccountHandler resolves a verification token. The account update
// and the token removal commit together or not at all.
type VerifyAccountHandler struct {
	repo     RepositoryManager
	logger   Logger
	activity ActivitySink
	now      Clock
}

func NewVerifyAccountHandler(repo RepositoryManager) *VerifyAccountHandler {
	return &VerifyAccountHandler{
		repo:     repo,
		logger:   defLogger{},
		activity: noopActivitySink{},
		now:      time.Now,
	}
}

func (h *VerifyAccountHandler) WithLogger(logger Logger) *VerifyAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyAccountHandler) WithActivitySink(sink ActivitySink) *VerifyAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *VerifyAccountHandler) WithClock(c Clock) *VerifyAccountHandler {
	h.now = normalizeClock(c)
	return h
}

func (h *VerifyAccountHandler) Execute(ctx context.Context, event VerifyAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyAccountHandler) execute(ctx context.Context, event VerifyAccountMessage) error {
	raw := strings.TrimSpace(event.Token)
	if raw == "" {
		return ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	now := h.now()
	expired := false
	var identifier string
	var account *Account

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		token, err := h.repo.VerificationTokens().GetByTokenTx(ctx, tx, raw)
		if err != nil {
			// an unknown token is part of the expected flow
			if IsRecordNotFound(err) {
				return ErrInvalidToken
			}
			return NewInternalError(err, "failed to retrieve verification token")
		}

		identifier = token.Identifier

		removed, err := h.repo.VerificationTokens().DeleteTx(ctx, tx, raw)
		if err != nil {
			return NewInternalError(err, "failed to delete verification token")
		}

		if !removed {
			return ErrInvalidToken
		}

		if token.IsExpired(now) {
			// commit the cleanup, the caller still gets ErrExpiredToken
			expired = true
			return nil
		}

		account, err = h.repo.Accounts().MarkVerifiedTx(ctx, tx, token.Identifier, now)
		if err != nil {
			if IsRecordNotFound(err) {
				return ErrInvalidToken
			}
			return NewInternalError(err, "failed to mark account as verified")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			if richErr.Category == goerrors.CategoryInternal {
				h.logger.Error("account verification failed", "error", err)
			}
			return richErr
		}
		return NewInternalError(err, "account verification transaction failed")
	}

	if expired {
		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType:  ActivityEventVerificationExpired,
			Actor:      ActorRef{Type: "user"},
			OccurredAt: now,
			Metadata:   map[string]any{"email": identifier},
		})
		return ErrExpiredToken
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:  ActivityEventAccountVerified,
		Actor:      ActorRef{ID: account.ID.String(), Type: "user"},
		UserID:     account.ID.String(),
		OccurredAt: now,
	})

	if event.OnResponse != nil {
		event.OnResponse(&VerifyAccountResponse{
			AccountID:  account.ID,
			Email:      account.Email,
			VerifiedAt: now,
			Message:    "your email has been verified",
		})
	}

	return nil
}
