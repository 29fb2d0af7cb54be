package clientportal

import (
	"context"

	"github.com/google/uuid"

	authrepo "handyman_portal_backend/internal/auth/repository"
	casesrepo "handyman_portal_backend/internal/cases/repository"
	"handyman_portal_backend/internal/clientportal/token"
	invoicesrepo "handyman_portal_backend/internal/invoices/repository"
	"handyman_portal_backend/internal/line"
	"handyman_portal_backend/platform/apperr"
	"handyman_portal_backend/platform/logger"
)

// IdentityVerifier validates a LINE ID token from the mini app.
type IdentityVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (line.VerifiedIdentity, error)
}

// UserReader resolves portal users by their LINE subject.
type UserReader interface {
	GetByLineUserID(ctx context.Context, lineUserID string) (authrepo.User, error)
}

// CaseReader lists and loads cases for the customer scope.
type CaseReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (casesrepo.Case, error)
	List(ctx context.Context, filter casesrepo.ListFilter) ([]casesrepo.Case, error)
}

// InvoiceReader loads billing summaries for customer cases.
type InvoiceReader interface {
	ListByCaseIDs(ctx context.Context, caseIDs []uuid.UUID) ([]invoicesrepo.Invoice, error)
}

// Service implements the customer portal.
type Service struct {
	verifier IdentityVerifier
	users    UserReader
	cases    CaseReader
	invoices InvoiceReader
	minter   *token.Minter
	log      *logger.Logger
}

// NewService creates the client portal service. Verifier may be nil when
// the LINE channel is not configured.
func NewService(verifier IdentityVerifier, users UserReader, cases CaseReader, invoices InvoiceReader, minter *token.Minter, log *logger.Logger) *Service {
	return &Service{
		verifier: verifier,
		users:    users,
		cases:    cases,
		invoices: invoices,
		minter:   minter,
		log:      log,
	}
}

// CreateSession verifies the LINE ID token and mints a client token for the
// matching portal user. Unknown subjects are rejected: the customer record
// is created by headquarters when the case is opened, never here.
func (s *Service) CreateSession(ctx context.Context, req CreateSessionRequest) (SessionResponse, error) {
	if s.verifier == nil {
		return SessionResponse{}, apperr.Unavailable("identity provider not configured")
	}

	identity, err := s.verifier.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		s.log.AuthEvent("client_login", "line", false, err.Error())
		return SessionResponse{}, apperr.Unauthorized("unauthorized")
	}

	user, err := s.users.GetByLineUserID(ctx, identity.Subject)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			s.log.AuthEvent("client_login", "line", false, "unknown line subject")
			return SessionResponse{}, apperr.Unauthorized("unauthorized")
		}
		return SessionResponse{}, err
	}

	clientToken, expiresIn, err := s.minter.Mint(user.ID)
	if err != nil {
		return SessionResponse{}, apperr.Wrap(apperr.KindInternal, "failed to mint client token", err)
	}

	s.log.AuthEvent("client_login", "line", true, "")
	return SessionResponse{ClientToken: clientToken, ExpiresIn: expiresIn}, nil
}

// ListCases returns the customer's cases, newest first.
func (s *Service) ListCases(ctx context.Context, clientID uuid.UUID) ([]CaseResponse, error) {
	cases, err := s.cases.List(ctx, casesrepo.ListFilter{ClientID: &clientID})
	if err != nil {
		return nil, err
	}

	out := make([]CaseResponse, 0, len(cases))
	for _, cs := range cases {
		out = append(out, toCaseResponse(cs))
	}
	return out, nil
}

// GetCase returns one of the customer's cases with billing summaries.
// Cases belonging to anyone else surface as not found.
func (s *Service) GetCase(ctx context.Context, clientID uuid.UUID, id string) (CaseDetailResponse, error) {
	caseID, err := uuid.Parse(id)
	if err != nil {
		return CaseDetailResponse{}, apperr.BadRequest("invalid case ID")
	}

	cs, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return CaseDetailResponse{}, err
	}
	if cs.ClientID == nil || *cs.ClientID != clientID {
		return CaseDetailResponse{}, apperr.NotFound("case not found")
	}

	invoices, err := s.invoices.ListByCaseIDs(ctx, []uuid.UUID{cs.ID})
	if err != nil {
		return CaseDetailResponse{}, err
	}

	detail := CaseDetailResponse{
		CaseResponse: toCaseResponse(cs),
		Invoices:     make([]InvoiceSummary, 0, len(invoices)),
	}
	for _, inv := range invoices {
		detail.Invoices = append(detail.Invoices, InvoiceSummary{
			ID:          inv.ID.String(),
			Type:        string(inv.Type),
			Status:      string(inv.Status),
			TotalAmount: inv.TotalAmount,
		})
	}
	return detail, nil
}

func toCaseResponse(cs casesrepo.Case) CaseResponse {
	return CaseResponse{
		ID:           cs.ID.String(),
		Title:        cs.Title,
		Description:  cs.Description,
		Address:      cs.Address,
		ScheduledAt:  cs.ScheduledAt,
		Status:       string(cs.Status),
		HandymanName: cs.HandymanName,
		CompletedAt:  cs.CompletedAt,
		CreatedAt:    cs.CreatedAt,
	}
}
