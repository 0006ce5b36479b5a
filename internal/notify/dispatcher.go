package notify

import (
	"context"
	"fmt"
	"html"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell/blog/internal/models"
	"github.com/inkwell/blog/pkg/logging"
)

// Dispatcher sends account email in the background
type Dispatcher struct {
	mailer  Mailer
	appName string
	codeTTL time.Duration
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher over mailer. Each send is bounded by timeout.
func NewDispatcher(mailer Mailer, appName string, codeTTL, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{
		mailer:  mailer,
		appName: appName,
		codeTTL: codeTTL,
		timeout: timeout,
		logger:  logging.WithComponent("notify"),
	}
}

// SendVerificationCode mails code to user without blocking the caller
func (d *Dispatcher) SendVerificationCode(ctx context.Context, user *models.User, code string) {
	msg := VerificationMessage(d.appName, user.Name, user.Email, code, d.codeTTL)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		// Detached from the request so a finished response does not cancel delivery
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.mailer.Send(sendCtx, msg); err != nil {
			d.logger.Warn("Failed to send verification code",
				zap.Int64("user_id", user.ID),
				zap.String("to", msg.To),
				zap.Error(err),
			)
			return
		}
		d.logger.Debug("Verification code sent", zap.Int64("user_id", user.ID))
	}()
}

// Wait blocks until in-flight deliveries finish
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// VerificationMessage renders the verification code email
func VerificationMessage(appName, name, email, code string, ttl time.Duration) Message {
	app := html.EscapeString(appName)
	body := fmt.Sprintf(
		`<p>Hello %s!</p>`+
			`<p>Welcome to %s! We're excited to have you on board.</p>`+
			`<p>Please use the verification code below to verify your email address:</p>`+
			`<p><strong>Verification Code: %s</strong></p>`+
			`<p>This code will expire in %d minutes for security reasons.</p>`+
			`<p>If you did not create an account, please ignore this email.</p>`+
			`<p>Best regards, The %s Team</p>`,
		html.EscapeString(name), app, html.EscapeString(code), int(ttl.Minutes()), app,
	)
	return Message{
		To:      email,
		Subject: "Your Verification Code - " + appName,
		HTML:    body,
	}
}
