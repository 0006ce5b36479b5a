package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell/blog/internal/apperr"
	"github.com/inkwell/blog/internal/auth"
	"github.com/inkwell/blog/internal/models"
	"github.com/inkwell/blog/internal/storage"
	"github.com/inkwell/blog/pkg/logging"
	"github.com/inkwell/blog/pkg/telemetry"
)

const (
	tokenName = "auth_token"

	msgEmailTaken       = "The email has already been taken."
	msgBadCredentials   = "The provided credentials are incorrect."
	msgAlreadyVerified  = "Email already verified."
	msgInvalidCode      = "Invalid or expired verification code."
	msgUnauthenticated  = "Unauthenticated."
	defaultVerification = 10 * time.Minute
)

// RegisterInput carries a sign-up request. Passwords are never trimmed.
type RegisterInput struct {
	Name                 string `json:"name" validate:"required,max=255"`
	Email                string `json:"email" validate:"required,email,max=255"`
	Phone                string `json:"phone" validate:"required,phone"`
	Password             string `json:"password" validate:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" validate:"eqfield=Password"`
}

// LoginInput carries a sign-in request
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifyInput carries an email verification code
type VerifyInput struct {
	Code string `json:"code" validate:"required,len=6"`
}

// AuthResult is a signed-in account with its plain-text bearer token
type AuthResult struct {
	User  *models.User
	Token string
}

// AuthService handles accounts, bearer tokens and email verification
type AuthService struct {
	users    storage.UserRepository
	tokens   storage.TokenRepository
	hasher   PasswordHasher
	notifier Notifier
	cache    TokenCache
	validate *Validator
	codeTTL  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService creates an auth service. notifier and cache may be nil.
func NewAuthService(users storage.UserRepository, tokens storage.TokenRepository, hasher PasswordHasher, notifier Notifier, cache TokenCache, v *Validator, codeTTL time.Duration) *AuthService {
	if codeTTL <= 0 {
		codeTTL = defaultVerification
	}
	if hasher == nil {
		hasher = auth.NewHasher(0)
	}
	return &AuthService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		cache:    cache,
		validate: v,
		codeTTL:  codeTTL,
		logger:   logging.WithComponent("auth-service"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an unverified account, mails it a code and signs it in
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "auth.register")
	defer span.End()

	in.Name = trim(in.Name)
	in.Email = trim(in.Email)
	in.Phone = NormalizePhone(in.Phone)

	errs := s.validate.collect(&in)
	if !errs.has("email") {
		existing, err := s.users.GetByEmail(ctx, in.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to look up email: %w", err)
		}
		if existing != nil {
			errs.add("email", msgEmailTaken)
		}
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	code, err := auth.GenerateVerificationCode()
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:                      in.Name,
		Email:                     in.Email,
		Phone:                     in.Phone,
		Password:                  hash,
		VerificationCode:          sql.NullString{String: code, Valid: true},
		VerificationCodeExpiresAt: sql.NullTime{Time: s.now().Add(s.codeTTL), Valid: true},
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			return nil, apperr.FieldError("email", msgEmailTaken)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.issueToken(ctx, user)
	if err != nil {
		return nil, err
	}

	s.sendCode(ctx, user, code)
	s.logger.Info("User registered", zap.Int64("user_id", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// Login checks credentials and issues a new token
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Email = trim(in.Email)
	if err := s.validate.Struct(&in); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up email: %w", err)
	}
	if user == nil {
		return nil, apperr.FieldError("email", msgBadCredentials)
	}
	ok, err := s.hasher.Verify(user.Password, in.Password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.FieldError("email", msgBadCredentials)
	}

	token, err := s.issueToken(ctx, user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Authenticate resolves a bearer token to the requester
func (s *AuthService) Authenticate(ctx context.Context, bearer string) (Identity, error) {
	id, secret, ok := auth.ParseToken(bearer)
	if !ok {
		return Identity{}, apperr.Unauthenticated(msgUnauthenticated)
	}
	hash := auth.HashToken(secret)

	if s.cache != nil {
		if tokenID, userID, hit := s.cache.GetToken(ctx, hash); hit && (id == 0 || id == tokenID) {
			user, err := s.users.GetByID(ctx, userID)
			if err != nil {
				return Identity{}, fmt.Errorf("failed to load user %d: %w", userID, err)
			}
			if user != nil {
				return identityOf(user, tokenID, hash), nil
			}
			s.cache.ForgetToken(ctx, hash)
		}
	}

	var token *models.AccessToken
	var err error
	if id > 0 {
		token, err = s.tokens.GetByID(ctx, id)
		if token != nil && subtle.ConstantTimeCompare([]byte(token.TokenHash), []byte(hash)) != 1 {
			token = nil
		}
	} else {
		token, err = s.tokens.GetByHash(ctx, hash)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("failed to load token: %w", err)
	}
	if token == nil {
		return Identity{}, apperr.Unauthenticated(msgUnauthenticated)
	}

	user := token.User
	if user == nil {
		if user, err = s.users.GetByID(ctx, token.UserID); err != nil {
			return Identity{}, fmt.Errorf("failed to load user %d: %w", token.UserID, err)
		}
		if user == nil {
			return Identity{}, apperr.Unauthenticated(msgUnauthenticated)
		}
	}

	if s.cache != nil {
		s.cache.PutToken(ctx, hash, token.ID, user.ID)
	}
	return identityOf(user, token.ID, hash), nil
}

// Logout revokes the token the requester signed in with
func (s *AuthService) Logout(ctx context.Context, who Identity) error {
	if !who.Authenticated() {
		return apperr.Unauthenticated(msgUnauthenticated)
	}
	if err := s.tokens.Delete(ctx, who.TokenID); err != nil {
		return fmt.Errorf("failed to revoke token %d: %w", who.TokenID, err)
	}
	if s.cache != nil {
		s.cache.ForgetToken(ctx, who.TokenHash)
	}
	return nil
}

// CurrentUser returns the requester's account
func (s *AuthService) CurrentUser(ctx context.Context, who Identity) (*models.User, error) {
	if !who.Authenticated() {
		return nil, apperr.Unauthenticated(msgUnauthenticated)
	}
	if who.User != nil {
		return who.User, nil
	}
	return s.user(ctx, who.UserID)
}

// ResendCode replaces the verification code and mails it again
func (s *AuthService) ResendCode(ctx context.Context, who Identity) error {
	if !who.Authenticated() {
		return apperr.Unauthenticated(msgUnauthenticated)
	}
	user, err := s.user(ctx, who.UserID)
	if err != nil {
		return err
	}
	if user.EmailVerifiedAt.Valid {
		return apperr.BadRequest(msgAlreadyVerified)
	}

	code, err := auth.GenerateVerificationCode()
	if err != nil {
		return err
	}
	user.VerificationCode = sql.NullString{String: code, Valid: true}
	user.VerificationCodeExpiresAt = sql.NullTime{Time: s.now().Add(s.codeTTL), Valid: true}
	if err := s.users.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}

	s.sendCode(ctx, user, code)
	return nil
}

// Verify marks the requester's email as verified if code is current.
// It reports true without changes when the email was already verified.
func (s *AuthService) Verify(ctx context.Context, who Identity, in VerifyInput) (bool, error) {
	if !who.Authenticated() {
		return false, apperr.Unauthenticated(msgUnauthenticated)
	}
	in.Code = trim(in.Code)
	if err := s.validate.Struct(&in); err != nil {
		return false, err
	}
	user, err := s.user(ctx, who.UserID)
	if err != nil {
		return false, err
	}
	if user.EmailVerifiedAt.Valid {
		return true, nil
	}
	if !CodeValid(user, in.Code, s.now()) {
		return false, apperr.BadRequest(msgInvalidCode)
	}

	user.EmailVerifiedAt = sql.NullTime{Time: s.now(), Valid: true}
	user.VerificationCode = sql.NullString{}
	user.VerificationCodeExpiresAt = sql.NullTime{}
	if err := s.users.Update(ctx, user); err != nil {
		return false, fmt.Errorf("failed to mark email verified: %w", err)
	}
	s.logger.Info("Email verified", zap.Int64("user_id", user.ID))
	return false, nil
}

// CodeValid reports whether code is present on user, matches and has not expired
func CodeValid(user *models.User, code string, now time.Time) bool {
	if !user.VerificationCode.Valid || !user.VerificationCodeExpiresAt.Valid {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(user.VerificationCode.String), []byte(code)) != 1 {
		return false
	}
	return now.Before(user.VerificationCodeExpiresAt.Time)
}

func (s *AuthService) issueToken(ctx context.Context, user *models.User) (string, error) {
	secret, hash, err := auth.NewTokenSecret()
	if err != nil {
		return "", err
	}
	token := &models.AccessToken{UserID: user.ID, Name: tokenName, TokenHash: hash}
	if err := s.tokens.Create(ctx, token); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}
	return auth.FormatToken(token.ID, secret), nil
}

func (s *AuthService) sendCode(ctx context.Context, user *models.User, code string) {
	if s.notifier == nil {
		s.logger.Warn("No notifier configured, verification code not sent", zap.Int64("user_id", user.ID))
		return
	}
	s.notifier.SendVerificationCode(ctx, user, code)
}

func (s *AuthService) user(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %d: %w", id, err)
	}
	if user == nil {
		return nil, apperr.Unauthenticated(msgUnauthenticated)
	}
	return user, nil
}

func identityOf(user *models.User, tokenID int64, hash string) Identity {
	return Identity{
		UserID:        user.ID,
		TokenID:       tokenID,
		TokenHash:     hash,
		EmailVerified: user.EmailVerifiedAt.Valid,
		User:          user,
	}
}
