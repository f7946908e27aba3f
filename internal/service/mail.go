package service

import (
	"context"

	"github.com/utafrali/contactbook/internal/domain"
)

// MailDispatcher hands a mail request to a background delivery mechanism.
// Dispatch must not block on delivery; a returned error only means the request
// could not be queued.
type MailDispatcher interface {
	Dispatch(ctx context.Context, req domain.MailRequest) error
}
