// Package service implements identity-provider login and access-token minting.
package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"handyman_portal_backend/internal/access"
	"handyman_portal_backend/internal/auth/repository"
	"handyman_portal_backend/internal/auth/transport"
	"handyman_portal_backend/platform/apperr"
	"handyman_portal_backend/platform/config"
	"handyman_portal_backend/platform/logger"
)

const (
	ProviderCognito = "cognito"
	ProviderLine    = "line"

	defaultHeadquartersName = "本部スタッフ"
	defaultHandymanName     = "便利屋ユーザー"
)

// VerifiedIdentity is the subject an identity provider vouched for.
type VerifiedIdentity struct {
	Subject string
	Name    string
	Email   string
}

// IdentityVerifier validates a provider-issued ID token. Implementations are
// external collaborators (LINE verify endpoint, Cognito JWKS); absence of a
// verifier for a provider means that login channel is not configured.
type IdentityVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (VerifiedIdentity, error)
}

// Service provides login and token minting.
type Service struct {
	repo      repository.Repository
	verifiers map[string]IdentityVerifier
	cfg       config.AuthServiceConfig
	log       *logger.Logger
}

// New creates the auth service. Verifiers are keyed by provider name.
func New(repo repository.Repository, verifiers map[string]IdentityVerifier, cfg config.AuthServiceConfig, log *logger.Logger) *Service {
	if verifiers == nil {
		verifiers = map[string]IdentityVerifier{}
	}
	return &Service{repo: repo, verifiers: verifiers, cfg: cfg, log: log}
}

// Login verifies the provider token, resolves or creates the portal user and
// mints an access token. The role is fixed at first login by the provider
// channel: Cognito subjects are back-office staff, LINE subjects are field
// workers. It is never derived from request data.
func (s *Service) Login(ctx context.Context, req transport.CreateSessionRequest) (transport.SessionResponse, error) {
	verifier, ok := s.verifiers[req.Provider]
	if !ok || verifier == nil {
		return transport.SessionResponse{}, apperr.Unavailable("identity provider not configured")
	}

	identity, err := verifier.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		s.log.AuthEvent("login", req.Provider, false, err.Error())
		return transport.SessionResponse{}, apperr.Unauthorized("unauthorized")
	}

	user, err := s.findOrCreateUser(ctx, req.Provider, identity)
	if err != nil {
		return transport.SessionResponse{}, err
	}

	token, expiresIn, err := s.mintAccessToken(user)
	if err != nil {
		return transport.SessionResponse{}, apperr.Wrap(apperr.KindInternal, "failed to mint token", err)
	}

	s.log.AuthEvent("login", req.Provider, true, "")

	return transport.SessionResponse{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		User:        toUserResponse(user),
	}, nil
}

// GetUser returns the public shape of a user by ID.
func (s *Service) GetUser(ctx context.Context, id string) (transport.UserResponse, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return transport.UserResponse{}, apperr.BadRequest("invalid user ID")
	}
	user, err := s.repo.GetByID(ctx, uid)
	if err != nil {
		return transport.UserResponse{}, err
	}
	return toUserResponse(user), nil
}

func (s *Service) findOrCreateUser(ctx context.Context, provider string, identity VerifiedIdentity) (repository.User, error) {
	switch provider {
	case ProviderCognito:
		user, err := s.repo.GetByCognitoID(ctx, identity.Subject)
		if err == nil {
			return user, nil
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return repository.User{}, err
		}
		return s.repo.Create(ctx, repository.CreateParams{
			Name:      nameOrDefault(identity.Name, defaultHeadquartersName),
			Email:     optional(identity.Email),
			Role:      access.RoleHeadquarters,
			CognitoID: &identity.Subject,
		})
	case ProviderLine:
		user, err := s.repo.GetByLineUserID(ctx, identity.Subject)
		if err == nil {
			return user, nil
		}
		if !apperr.Is(err, apperr.KindNotFound) {
			return repository.User{}, err
		}
		return s.repo.Create(ctx, repository.CreateParams{
			Name:       nameOrDefault(identity.Name, defaultHandymanName),
			Email:      optional(identity.Email),
			Role:       access.RoleHandyman,
			LineUserID: &identity.Subject,
		})
	default:
		return repository.User{}, apperr.BadRequest("unknown identity provider")
	}
}

func (s *Service) mintAccessToken(user repository.User) (string, int64, error) {
	ttl := s.cfg.GetAccessTokenTTL()
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	now := time.Now()

	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": string(user.Role),
		"type": "access",
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.GetJWTAccessSecret()))
	if err != nil {
		return "", 0, err
	}
	return signed, int64(ttl.Seconds()), nil
}

func toUserResponse(user repository.User) transport.UserResponse {
	return transport.UserResponse{
		ID:    user.ID.String(),
		Name:  user.Name,
		Email: user.Email,
		Role:  string(user.Role),
	}
}

func nameOrDefault(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
