// Package notify delivers drive health alerts to external channels.
package notify

import (
	"context"

	"github.com/cshoesmith/diskmonitor/internal/model"
)

// Provider sends notifications through a specific channel.
type Provider interface {
	Name() string
	Send(ctx context.Context, n model.Notification) error
}
