package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/notihub/notihub/internal/apperrors"
	"github.com/notihub/notihub/internal/circuitbreaker"
	"github.com/notihub/notihub/internal/domain"
	"github.com/notihub/notihub/internal/monitoring"
	"github.com/notihub/notihub/internal/quota"
	"github.com/notihub/notihub/internal/retrybudget"
)

// SMTPConfig configures the fallback SMTP relay adapter. No SMTP client
// library appears anywhere in the retrieval pack, so this is built on
// stdlib net/smtp directly — the one place in the channel layer where no
// third-party library applies.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPAdapter is the last-resort email provider: a direct relay connection,
// used when every API-based provider's circuit is open.
type SMTPAdapter struct {
	cfg     SMTPConfig
	breaker *circuitbreaker.Breaker
	budget  *retrybudget.Budget
	quota   *quota.Tracker
}

func NewSMTPAdapter(cfg SMTPConfig, breakers *circuitbreaker.Registry, budget *retrybudget.Budget, qt *quota.Tracker) *SMTPAdapter {
	return &SMTPAdapter{cfg: cfg, breaker: breakers.Get("smtp"), budget: budget, quota: qt}
}

func (a *SMTPAdapter) Name() string { return "smtp" }

func (a *SMTPAdapter) Send(ctx context.Context, deadline time.Time, p Payload) (domain.DeliveryOutcome, error) {
	allowed, err := a.quota.Reserve("smtp")
	if err != nil || !allowed {
		return domain.DeliveryOutcome{Channel: domain.ChannelEmail, Provider: "smtp", Status: domain.DeliveryStatusFailed}, err
	}

	start := time.Now()
	var outcome domain.DeliveryOutcome
	execErr := a.breaker.Execute(ctx, func(ctx context.Context) error {
		addr := fmt.Sprintf("%s:%d", a.cfg.Host, a.cfg.Port)
		auth := smtp.PlainAuth("", a.cfg.Username, a.cfg.Password, a.cfg.Host)

		dialer := &net.Dialer{Timeout: 10 * time.Second}
		conn, dialErr := dialer.DialContext(ctx, "tcp", addr)
		if dialErr != nil {
			return apperrors.NewServiceUnavailableError("smtp", dialErr)
		}
		tlsConn := tls.Client(conn, &tls.Config{ServerName: a.cfg.Host, MinVersion: tls.VersionTLS12})
		client, clientErr := smtp.NewClient(tlsConn, a.cfg.Host)
		if clientErr != nil {
			_ = conn.Close()
			return apperrors.NewServiceUnavailableError("smtp", clientErr)
		}
		defer func() { _ = client.Close() }()

		if authErr := client.Auth(auth); authErr != nil {
			return apperrors.New("auth", "SMTP_AUTH_FAILED", authErr.Error(), false)
		}
		if mailErr := client.Mail(a.cfg.From); mailErr != nil {
			return apperrors.NewServiceUnavailableError("smtp", mailErr)
		}
		if rcptErr := client.Rcpt(p.To); rcptErr != nil {
			return apperrors.New("validation", "SMTP_RECIPIENT_REJECTED", rcptErr.Error(), false)
		}

		w, dataErr := client.Data()
		if dataErr != nil {
			return apperrors.NewServiceUnavailableError("smtp", dataErr)
		}
		body := buildMIMEMessage(a.cfg.From, p)
		if _, writeErr := w.Write(body); writeErr != nil {
			return apperrors.NewServiceUnavailableError("smtp", writeErr)
		}
		if closeErr := w.Close(); closeErr != nil {
			return apperrors.NewServiceUnavailableError("smtp", closeErr)
		}

		outcome = domain.DeliveryOutcome{
			Channel: domain.ChannelEmail, Provider: "smtp", Status: domain.DeliveryStatusDelivered,
			LatencyMS: time.Since(start).Milliseconds(),
		}
		return client.Quit()
	})

	if execErr != nil {
		appErr, _ := apperrors.AsAppError(execErr)
		outcome = domain.DeliveryOutcome{
			Channel: domain.ChannelEmail, Provider: "smtp", Status: domain.DeliveryStatusFailed,
			ErrorCode: appErr.Code, Retryable: appErr.Retryable, LatencyMS: time.Since(start).Milliseconds(),
		}
		return outcome, execErr
	}
	return outcome, nil
}

func buildMIMEMessage(from string, p Payload) []byte {
	boundary := "notihub-boundary"
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\n"+
		"Content-Type: multipart/alternative; boundary=%s\r\n\r\n"+
		"--%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n"+
		"--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n--%s--\r\n",
		from, p.To, p.Subject, boundary, boundary, p.TextBody, boundary, p.HTMLBody, boundary)
	return []byte(msg)
}

func (a *SMTPAdapter) Health(ctx context.Context) monitoring.ProviderHealth {
	status := monitoring.HealthStatusHealthy
	switch a.breaker.State() {
	case circuitbreaker.StateOpen:
		status = monitoring.HealthStatusUnhealthy
	case circuitbreaker.StateHalfOpen:
		status = monitoring.HealthStatusDegraded
	}
	remaining, _ := a.quota.Remaining("smtp")
	return monitoring.ProviderHealth{Status: status, Message: fmt.Sprintf("circuit=%s quota_remaining=%d", a.breaker.State(), remaining)}
}
