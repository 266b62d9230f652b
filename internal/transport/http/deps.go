package http

import (
	"github.com/go-api-verification/internal/application/verification"
	jwtinfra "github.com/go-api-verification/internal/infrastructure/jwt"
	"github.com/go-api-verification/internal/infrastructure/simulation"
)

// Deps holds everything the router needs.
type Deps struct {
	Verification verification.Service
	// Channels is the delivery chain in the order it is tried, reported by the health check.
	Channels []string
	// Inbox backs the development inbox endpoint. Nil disables the route.
	Inbox *simulation.Inbox
	// JWTProvider is nil when no signing keys are configured; the session route is then not registered.
	JWTProvider *jwtinfra.Provider
}
