// Package auth wires identity-provider login and session endpoints.
package auth

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"handyman_portal_backend/internal/auth/handler"
	"handyman_portal_backend/internal/auth/repository"
	"handyman_portal_backend/internal/auth/service"
	"handyman_portal_backend/internal/cognito"
	apphttp "handyman_portal_backend/internal/http"
	"handyman_portal_backend/internal/line"
	"handyman_portal_backend/platform/config"
	"handyman_portal_backend/platform/logger"
	"handyman_portal_backend/platform/validator"
)

type Module struct {
	handler *handler.Handler
	repo    repository.Repository
	service *service.Service
}

// NewModule assembles the auth module. Either verifier may be nil when its
// provider is not configured; that provider then rejects logins with 503.
func NewModule(pool *pgxpool.Pool, cognitoVerifier *cognito.Verifier, lineClient *line.Client, cfg config.AuthServiceConfig, validate *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)

	verifiers := map[string]service.IdentityVerifier{}
	if cognitoVerifier != nil {
		verifiers[service.ProviderCognito] = cognitoVerifierAdapter{verifier: cognitoVerifier}
	}
	if lineClient != nil {
		verifiers[service.ProviderLine] = lineVerifier{client: lineClient}
	}

	svc := service.New(repo, verifiers, cfg, log)
	return &Module{
		handler: handler.New(svc, validate),
		repo:    repo,
		service: svc,
	}
}

// Repository exposes the user repository for modules that resolve users.
func (m *Module) Repository() repository.Repository {
	return m.repo
}

func (m *Module) Name() string { return "auth" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	sessions := ctx.V1.Group("/auth")
	sessions.Use(ctx.AuthRateLimiter.RateLimit())
	sessions.POST("/sessions", m.handler.CreateSession)

	me := ctx.Protected.Group("/auth")
	me.GET("/me", m.handler.Me)
}

// cognitoVerifierAdapter adapts the Cognito verifier to the service's
// verifier port.
type cognitoVerifierAdapter struct {
	verifier *cognito.Verifier
}

func (v cognitoVerifierAdapter) VerifyIDToken(ctx context.Context, idToken string) (service.VerifiedIdentity, error) {
	identity, err := v.verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		return service.VerifiedIdentity{}, err
	}
	return service.VerifiedIdentity{
		Subject: identity.Subject,
		Name:    identity.Name,
		Email:   identity.Email,
	}, nil
}

// lineVerifier adapts the LINE client to the service's verifier port.
type lineVerifier struct {
	client *line.Client
}

func (v lineVerifier) VerifyIDToken(ctx context.Context, idToken string) (service.VerifiedIdentity, error) {
	identity, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return service.VerifiedIdentity{}, err
	}
	return service.VerifiedIdentity{
		Subject: identity.Subject,
		Name:    identity.Name,
		Email:   identity.Email,
	}, nil
}
