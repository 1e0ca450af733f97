package database

import (
	"github.com/dodogate/dodogate/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	warning *models.WarningModel
	cases   *models.CaseModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		warning: models.NewWarning(db, logger),
		cases:   models.NewCase(db, logger),
	}
}

// Warning returns the warning ledger model.
func (r *Repository) Warning() *models.WarningModel {
	return r.warning
}

// Case returns the archived case model.
func (r *Repository) Case() *models.CaseModel {
	return r.cases
}
