package notify

import (
	"context"
	"errors"
)

// ErrSendFailed wraps synchronous send failures from the messaging provider.
var ErrSendFailed = errors.New("notification send failed")

// Channel is the opaque outbound messaging channel. Send returns the
// provider-assigned message id used to correlate later status callbacks.
type Channel interface {
	Send(ctx context.Context, recipient, body string) (string, error)
}
