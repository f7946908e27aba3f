// Package mailer renders and delivers account emails.
package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/contactbook/internal/domain"
)

// Mailer renders mail requests and hands them to a Sender.
type Mailer struct {
	renderer *Renderer
	sender   Sender
	logger   *slog.Logger
}

// New creates a mailer.
func New(renderer *Renderer, sender Sender, logger *slog.Logger) *Mailer {
	return &Mailer{renderer: renderer, sender: sender, logger: logger}
}

// Deliver renders req and sends it.
func (m *Mailer) Deliver(ctx context.Context, req domain.MailRequest) error {
	if !req.Valid() {
		return fmt.Errorf("invalid mail request kind=%q", req.Kind)
	}

	subject, body, err := m.renderer.Render(req)
	if err != nil {
		return err
	}

	if err := m.sender.Send(ctx, Message{To: req.Email, Subject: subject, HTML: body}); err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "mail sent",
		slog.String("kind", string(req.Kind)),
		slog.String("email", req.Email),
	)
	return nil
}
