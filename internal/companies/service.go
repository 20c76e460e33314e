package companies

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vertice-erp/vertice-erp/internal/shared"
)

// Service handles tenant administration. All entry points sit behind the
// cross-company guard, so company scoping does not apply here.
type Service struct {
	repo   RepositoryPort
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, logger: logger}
}

// List returns every tenant.
func (s *Service) List(ctx context.Context) ([]Company, error) {
	return s.repo.List(ctx)
}

// Get returns one tenant.
func (s *Service) Get(ctx context.Context, id int64) (Company, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a new tenant on trial.
func (s *Service) Create(ctx context.Context, actorID int64, name, tradeName, taxID string) (Company, error) {
	c, err := s.repo.Create(ctx, Company{
		Name:      strings.TrimSpace(name),
		TradeName: strings.TrimSpace(tradeName),
		TaxID:     normalizeTaxID(taxID),
	})
	if err != nil {
		return Company{}, err
	}
	s.record(ctx, actorID, "company.create", c.ID, map[string]any{"tax_id": c.TaxID})
	return c, nil
}

// Update rewrites the tenant's names. The tax id is immutable.
func (s *Service) Update(ctx context.Context, actorID, id int64, name, tradeName string) (Company, error) {
	c, err := s.repo.Update(ctx, id, strings.TrimSpace(name), strings.TrimSpace(tradeName))
	if err != nil {
		return Company{}, err
	}
	s.record(ctx, actorID, "company.update", c.ID, nil)
	return c, nil
}

// SetSubscriptionStatus moves the tenant between billing states.
func (s *Service) SetSubscriptionStatus(ctx context.Context, actorID, id int64, status string) error {
	if !ValidStatus(status) {
		return ErrBadStatus
	}
	if err := s.repo.SetSubscriptionStatus(ctx, id, status); err != nil {
		return err
	}
	s.record(ctx, actorID, "company.subscription.set", id, map[string]any{"status": status})
	return nil
}

// normalizeTaxID strips the usual CNPJ punctuation so lookups compare
// digits only.
func normalizeTaxID(taxID string) string {
	var b strings.Builder
	for _, r := range taxID {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "company",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit company mutation", slog.Any("error", err))
	}
}
