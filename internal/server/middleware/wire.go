package middleware

import "github.com/google/wire"

// ProviderSet is the middleware providers.
var ProviderSet = wire.NewSet(
	NewAPIKeyAuthMiddleware,
	NewJWTAuthMiddleware,
)
