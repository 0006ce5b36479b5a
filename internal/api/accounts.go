package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inkwell/blog/internal/service"
)

const (
	msgRegistered   = "User registered successfully. Please check your email for the verification code."
	msgLoggedIn     = "Login successful"
	msgLoggedOut    = "Logged out successfully"
	msgCodeSent     = "Verification code sent successfully."
	msgVerified     = "Email verified successfully."
	msgWasVerified  = "Email already verified."
	tokenTypeBearer = "Bearer"
)

type authBody struct {
	Message       string   `json:"message"`
	User          userJSON `json:"user"`
	AccessToken   string   `json:"access_token"`
	TokenType     string   `json:"token_type"`
	EmailVerified bool     `json:"email_verified"`
}

// AccountHandlers serves registration, sign-in and email verification
type AccountHandlers struct {
	auth *service.AuthService
}

func (h *AccountHandlers) register(c *gin.Context) {
	f, err := readFields(c)
	if err != nil {
		fail(c, err)
		return
	}
	res, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Name:                 f.str("name"),
		Email:                f.str("email"),
		Phone:                f.str("phone"),
		Password:             f.str("password"),
		PasswordConfirmation: f.str("password_confirmation"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, authBody{
		Message:       msgRegistered,
		User:          userResource(res.User),
		AccessToken:   res.Token,
		TokenType:     tokenTypeBearer,
		EmailVerified: res.User.EmailVerifiedAt.Valid,
	})
}

func (h *AccountHandlers) login(c *gin.Context) {
	f, err := readFields(c)
	if err != nil {
		fail(c, err)
		return
	}
	res, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:    f.str("email"),
		Password: f.str("password"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, authBody{
		Message:       msgLoggedIn,
		User:          userResource(res.User),
		AccessToken:   res.Token,
		TokenType:     tokenTypeBearer,
		EmailVerified: res.User.EmailVerifiedAt.Valid,
	})
}

func (h *AccountHandlers) logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), identity(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgLoggedOut})
}

func (h *AccountHandlers) me(c *gin.Context) {
	user, err := h.auth.CurrentUser(c.Request.Context(), identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":           userResource(user),
		"email_verified": user.EmailVerifiedAt.Valid,
	})
}

func (h *AccountHandlers) resendCode(c *gin.Context) {
	if err := h.auth.ResendCode(c.Request.Context(), identity(c)); err != nil {
		failVerification(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgCodeSent})
}

func (h *AccountHandlers) verify(c *gin.Context) {
	f, err := readFields(c)
	if err != nil {
		fail(c, err)
		return
	}
	already, err := h.auth.Verify(c.Request.Context(), identity(c), service.VerifyInput{Code: f.str("code")})
	if err != nil {
		failVerification(c, err)
		return
	}
	msg := msgVerified
	if already {
		msg = msgWasVerified
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "email_verified": true})
}
