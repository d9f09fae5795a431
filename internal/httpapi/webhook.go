package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/notihub/notihub/internal/apperrors"
	"github.com/notihub/notihub/internal/domain"
)

// webhookEvent is the normalized shape every provider's delivery-status
// payload is reduced to before it updates the delivery log or suppression
// list.
type webhookEvent struct {
	MessageID string
	Event     string // delivered, bounce, complaint, open
	Recipient string
}

// sendgridEvent mirrors the handful of fields notihub reads out of a
// SendGrid event-webhook POST body (one JSON array per request).
type sendgridEvent struct {
	SGMessageID string `json:"sg_message_id"`
	Event       string `json:"event"`
	Email       string `json:"email"`
}

// sesNotification mirrors an SNS-delivered SES event notification's
// envelope closely enough to pull the fields notihub needs.
type sesNotification struct {
	NotificationType string `json:"notificationType"`
	Mail             struct {
		MessageID string `json:"messageId"`
	} `json:"mail"`
	Bounce struct {
		BouncedRecipients []struct {
			EmailAddress string `json:"emailAddress"`
		} `json:"bouncedRecipients"`
	} `json:"bounce"`
	Complaint struct {
		ComplainedRecipients []struct {
			EmailAddress string `json:"emailAddress"`
		} `json:"complainedRecipients"`
	} `json:"complaint"`
}

// parseWebhookEvents normalizes a provider's raw event payload into the
// shared webhookEvent shape. Unsupported providers return an empty slice
// rather than an error — an unknown provider name still returns 200 so the
// sender doesn't retry a request notihub will never understand.
func parseWebhookEvents(provider string, body []byte) ([]webhookEvent, error) {
	switch provider {
	case "sendgrid":
		var raw []sendgridEvent
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, apperrors.NewValidationError("body", "malformed sendgrid event payload")
		}
		events := make([]webhookEvent, 0, len(raw))
		for _, e := range raw {
			events = append(events, webhookEvent{MessageID: e.SGMessageID, Event: e.Event, Recipient: e.Email})
		}
		return events, nil
	case "ses":
		var n sesNotification
		if err := json.Unmarshal(body, &n); err != nil {
			return nil, apperrors.NewValidationError("body", "malformed ses event payload")
		}
		switch n.NotificationType {
		case "Bounce":
			events := make([]webhookEvent, 0, len(n.Bounce.BouncedRecipients))
			for _, r := range n.Bounce.BouncedRecipients {
				events = append(events, webhookEvent{MessageID: n.Mail.MessageID, Event: "bounce", Recipient: r.EmailAddress})
			}
			return events, nil
		case "Complaint":
			events := make([]webhookEvent, 0, len(n.Complaint.ComplainedRecipients))
			for _, r := range n.Complaint.ComplainedRecipients {
				events = append(events, webhookEvent{MessageID: n.Mail.MessageID, Event: "complaint", Recipient: r.EmailAddress})
			}
			return events, nil
		case "Delivery":
			return []webhookEvent{{MessageID: n.Mail.MessageID, Event: "delivered"}}, nil
		}
		return nil, nil
	default:
		return nil, nil
	}
}

// handleWebhook verifies the provider's signature, normalizes its delivery
// event payload, and applies each event to the delivery log / suppression
// list.
func (s *Server) handleWebhook(c *gin.Context) {
	provider := c.Param("provider")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(apperrors.NewValidationError("body", "failed to read webhook body"))
		return
	}

	if s.webhooks != nil {
		if err := s.webhooks.Verify(provider, c.Request.Header, body); err != nil {
			c.Error(apperrors.NewForbiddenError("webhook signature verification failed"))
			return
		}
	}

	events, err := parseWebhookEvents(provider, body)
	if err != nil {
		c.Error(err)
		return
	}

	ctx := c.Request.Context()
	for _, ev := range events {
		status, errorCode := deliveryStatusForEvent(ev.Event)
		if ev.MessageID != "" {
			_ = s.repo.UpdateDeliveryStatusByMessageID(ctx, ev.MessageID, status, errorCode)
		}
		if (ev.Event == "bounce" || ev.Event == "complaint") && ev.Recipient != "" {
			_ = s.repo.AddSuppression(ctx, ev.Recipient, ev.Event)
		}
	}

	c.JSON(http.StatusOK, gin.H{"processed": len(events)})
}

func deliveryStatusForEvent(event string) (domain.DeliveryStatus, string) {
	switch event {
	case "delivered", "open":
		return domain.DeliveryStatusDelivered, ""
	case "bounce":
		return domain.DeliveryStatusFailed, "EMAIL_BOUNCED"
	case "complaint":
		return domain.DeliveryStatusFailed, "EMAIL_COMPLAINT"
	default:
		return domain.DeliveryStatusFailed, "UNKNOWN_EVENT"
	}
}
