package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// MinPasswordLength is the shortest password registration accepts
var MinPasswordLength = 5

// MaxPasswordBytes is the longest password bcrypt can hash
const MaxPasswordBytes = 72

// DefaultPhoneRegion is used to parse phone numbers without a country prefix
var DefaultPhoneRegion = "US"

type RegisterAccountMessage struct {
	Email            string                         `json:"email"`
	Password         string                         `json:"password"`
	DisplayName      string                         `json:"display_name"`
	Phone            string                         `json:"phone"`
	Category         string                         `json:"category"`
	Organization     string                         `json:"organization"`
	OrganizationRole string                         `json:"organization_role"`
	UseHashid        bool                           `json:"-"`
	OnResponse       func(*RegisterAccountResponse) `json:"-"`
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// Validate will run validation rules. The email is checked in its
// normalized form, the one that gets stored.
func (e RegisterAccountMessage) Validate() error {
	e.Email = NormalizeEmail(e.Email)
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&e.Password,
			validation.Required,
			validation.RuneLength(MinPasswordLength, 0),
			validation.By(ValidatePasswordBytes),
		),
		validation.Field(&e.DisplayName, validation.Length(0, 200)),
		validation.Field(&e.Category, validation.In(
			string(RolePartner),
			string(RoleUser),
			string(RoleMentor),
		)),
		validation.Field(&e.Organization, validation.Length(0, 200)),
		validation.Field(&e.OrganizationRole, validation.Length(0, 200)),
	)
}

// ValidatePasswordBytes rejects passwords bcrypt would truncate or refuse
func ValidatePasswordBytes(value any) error {
	password, _ := value.(string)
	if len(password) > MaxPasswordBytes {
		return errors.New("must be no more than 72 bytes long")
	}
	return nil
}

type RegisterAccountResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
}

// RegisterAccountHandler creates an unverified account and issues its
// verification token. Account, token and delivery succeed or fail as one.
type RegisterAccountHandler struct {
	repo        RepositoryManager
	notifier    Notifier
	hasher      PasswordAuthenticator
	logger      Logger
	activity    ActivitySink
	now         Clock
	tokenTTL    time.Duration
	phoneRegion string
}

func NewRegisterAccountHandler(repo RepositoryManager, notifier Notifier) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:        repo,
		notifier:    notifier,
		hasher:      CompositeHasher{Hasher: BcryptHasher{}},
		logger:      defLogger{},
		activity:    noopActivitySink{},
		now:         time.Now,
		tokenTTL:    VerificationTokenTTL,
		phoneRegion: DefaultPhoneRegion,
	}
}

func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterAccountHandler) WithPasswordHasher(hasher PasswordAuthenticator) *RegisterAccountHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *RegisterAccountHandler) WithActivitySink(sink ActivitySink) *RegisterAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RegisterAccountHandler) WithClock(c Clock) *RegisterAccountHandler {
	h.now = normalizeClock(c)
	return h
}

func (h *RegisterAccountHandler) WithTokenTTL(ttl time.Duration) *RegisterAccountHandler {
	if ttl > 0 {
		h.tokenTTL = ttl
	}
	return h
}

func (h *RegisterAccountHandler) WithPhoneRegion(region string) *RegisterAccountHandler {
	if region != "" {
		h.phoneRegion = strings.ToUpper(region)
	}
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	if err := event.Validate(); err != nil {
		return NewValidationError("invalid registration payload", ValidationErrorsToMap(err))
	}

	phone, err := NormalizePhone(event.Phone, h.phoneRegion)
	if err != nil {
		return NewValidationError("invalid registration payload", map[string]string{
			"phone": "must be a valid phone number",
		})
	}

	if h.notifier == nil {
		return NewInternalError(ErrUnableToParseData, "verification notifier is not configured")
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return NewInternalError(err, "failed to hash password")
	}

	email := NormalizeEmail(event.Email)
	account := &Account{
		Email:            email,
		PasswordHash:     hash,
		DisplayName:      strings.TrimSpace(event.DisplayName),
		Phone:            phone,
		Role:             roleFromCategory(event.Category),
		Category:         event.Category,
		Organization:     strings.TrimSpace(event.Organization),
		OrganizationRole: strings.TrimSpace(event.OrganizationRole),
	}

	if account.DisplayName == "" {
		account.DisplayName = displayNameFromEmail(email)
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(email); err == nil {
			account.ID = id
		}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	now := h.now()

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := h.repo.Accounts().ExistsByEmailTx(ctx, tx, email)
		if err != nil {
			return NewInternalError(err, "failed to check email uniqueness")
		}

		if exists {
			return ErrDuplicateEmail
		}

		if _, err := h.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			if goerrors.Is(err, ErrDuplicateEmail) {
				return ErrDuplicateEmail
			}
			return NewInternalError(err, "failed to create account")
		}

		return h.issueToken(ctx, tx, email, now)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			if richErr.Category == goerrors.CategoryInternal {
				h.logger.Error("account registration failed", "email", email, "error", err)
			}
			return richErr
		}

		return NewInternalError(err, "account registration transaction failed")
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:  ActivityEventAccountRegistered,
		Actor:      ActorRef{ID: account.ID.String(), Type: "user"},
		UserID:     account.ID.String(),
		OccurredAt: now,
		Metadata: map[string]any{
			"role": string(account.Role),
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(&RegisterAccountResponse{
			AccountID: account.ID,
			Email:     account.Email,
			Message:   "registration successful, check your email to verify your account",
		})
	}

	return nil
}

// issueToken persists a fresh token for email and delivers it. A delivery
// failure is returned so the surrounding transaction rolls back.
func (h *RegisterAccountHandler) issueToken(ctx context.Context, tx bun.IDB, email string, now time.Time) error {
	token, err := NewVerificationToken(email, now, h.tokenTTL)
	if err != nil {
		return NewInternalError(err, "failed to generate verification token")
	}

	if _, err := h.repo.VerificationTokens().CreateTx(ctx, tx, token); err != nil {
		return NewInternalError(err, "failed to persist verification token")
	}

	if live, err := h.repo.VerificationTokens().CountLiveTx(ctx, tx, email, now); err == nil && live > 1 {
		h.logger.Warn("multiple live verification tokens", "email", email, "count", live)
	}

	if err := h.notifier.SendVerification(ctx, email, token.Token); err != nil {
		return NewInternalError(err, "failed to deliver verification token")
	}

	return nil
}

// NormalizePhone returns phone in E.164 format. Empty input is allowed.
func NormalizePhone(phone, region string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(phone, region)
	if err != nil {
		return "", err
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", ErrUnableToParseData
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// ValidationErrorsToMap flattens ozzo validation errors to field messages
func ValidationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	verrs, ok := err.(validation.Errors)
	if !ok {
		out["_"] = err.Error()
		return out
	}

	for field, ferr := range verrs {
		if ferr != nil {
			out[field] = ferr.Error()
		}
	}

	return out
}

func roleFromCategory(category string) AccountRole {
	role, ok := ParseRole(category)
	if ok && role.IsSelfAssignable() {
		return role
	}
	return DefaultRole
}

func displayNameFromEmail(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
