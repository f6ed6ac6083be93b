package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"docuvault/internal/domain"
	"docuvault/internal/email"
)

func portalURL(publicURL, token string) string {
	return strings.TrimRight(publicURL, "/") + "/portal/" + token
}

// enqueueRequestLink queues the upload-link email for a freshly opened
// session. The caller picks the idempotency key: per-session for manual
// sends, per-template-per-month for the scheduler.
func enqueueRequestLink(ctx context.Context, mail Outbox, publicURL string, client domain.Client, sess domain.SubmissionSession, key string) (bool, error) {
	if client.Email == "" {
		return false, nil
	}
	payload, err := json.Marshal(email.RequestLinkPayload{
		ClientName: client.Name,
		PortalURL:  portalURL(publicURL, sess.Token),
		DueOn:      sess.DueOn.String(),
	})
	if err != nil {
		return false, fmt.Errorf("encode request link payload: %w", err)
	}
	return mail.Enqueue(ctx, domain.OutboxEntry{
		Recipient:      client.Email,
		Template:       email.TemplateRequestLink,
		Payload:        payload,
		IdempotencyKey: key,
	})
}
