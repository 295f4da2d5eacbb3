// Package interfaces defines service contracts for Holdfast
package interfaces

import (
	"context"

	"github.com/bobmcallan/holdfast/internal/models"
)

// TransactionSource is the upstream paginated transaction endpoint.
// marker is empty for the first (most recent) page.
type TransactionSource interface {
	GetTransactions(ctx context.Context, accountID string, count int, marker string) (*models.TransactionPage, error)
}

// PositionSource supplies the current holdings of an account.
type PositionSource interface {
	GetPositions(ctx context.Context, accountID string) ([]models.Position, error)
}
