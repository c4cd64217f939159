package port

import (
	"context"

	"github.com/rl1809/inventory-ledger/internal/core/domain"
)

type EventNotifier interface {
	// Notify announces that an event was appended to an organization's log
	Notify(ctx context.Context, event domain.Event) error
}
