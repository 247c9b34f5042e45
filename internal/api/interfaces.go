package api

import (
	"context"

	"github.com/google/uuid"

	"github.com/persistorai/screener/internal/models"
)

// ScreenRepository defines screening operations used by ScreenHandler.
type ScreenRepository interface {
	Screen(ctx context.Context, req models.ScreenRequest) (*models.RiskReport, error)
	GetReport(ctx context.Context, id uuid.UUID) (*models.RiskReport, error)
}
