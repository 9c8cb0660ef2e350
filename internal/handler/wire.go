package handler

import (
	"database/sql"

	"github.com/eln-app/eln-api/internal/handler/admin"

	"github.com/google/wire"
)

// AdminHandlers groups the admin route handlers.
type AdminHandlers struct {
	APIKey *admin.APIKeyHandler
}

// Handlers groups every route handler.
type Handlers struct {
	APIKey *APIKeyHandler
	Health *HealthHandler
	Admin  *AdminHandlers
}

// ProvidePinger exposes the database pool to the health check.
func ProvidePinger(db *sql.DB) Pinger {
	return db
}

// ProvideAdminHandlers creates the admin handler group.
func ProvideAdminHandlers(apiKey *admin.APIKeyHandler) *AdminHandlers {
	return &AdminHandlers{APIKey: apiKey}
}

// ProvideHandlers creates the handler group.
func ProvideHandlers(apiKey *APIKeyHandler, health *HealthHandler, adminHandlers *AdminHandlers) *Handlers {
	return &Handlers{APIKey: apiKey, Health: health, Admin: adminHandlers}
}

// ProviderSet is the handler layer providers.
var ProviderSet = wire.NewSet(
	ProvidePinger,
	NewAPIKeyHandler,
	NewHealthHandler,
	admin.NewAPIKeyHandler,
	ProvideAdminHandlers,
	ProvideHandlers,
)
