package profiles

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/vertice-erp/vertice-erp/internal/shared"
)

// SnapshotInvalidator drops cached permission snapshots after grant
// mutations. Grant edits affect every user assigned to the profile, so the
// whole cache version is bumped.
type SnapshotInvalidator interface {
	Bump(ctx context.Context) error
}

// Service handles profile business logic.
type Service struct {
	repo      RepositoryPort
	audit     *shared.AuditLogger
	snapshots SnapshotInvalidator
	logger    *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, snapshots SnapshotInvalidator, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, snapshots: snapshots, logger: logger}
}

// List returns the profiles of a company.
func (s *Service) List(ctx context.Context, companyID int64) ([]Profile, error) {
	return s.repo.List(ctx, companyID)
}

// Get returns one profile and its module grants.
func (s *Service) Get(ctx context.Context, companyID, id int64) (Profile, []ModuleGrant, error) {
	profile, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return Profile{}, nil, err
	}
	grants, err := s.repo.ListGrants(ctx, id)
	if err != nil {
		return Profile{}, nil, err
	}
	return profile, grants, nil
}

// Create inserts a new profile for the company.
func (s *Service) Create(ctx context.Context, actorID, companyID int64, name string, isAdmin bool) (Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Profile{}, errors.New("profiles: name required")
	}
	profile, err := s.repo.Create(ctx, companyID, name, isAdmin)
	if err != nil {
		return Profile{}, err
	}
	s.record(ctx, actorID, "profile.create", profile.ID, map[string]any{"name": name, "is_admin": isAdmin})
	return profile, nil
}

// Update rewrites a profile's fields. Deactivating or un-flagging a profile
// changes the access of everyone assigned to it, so the snapshot cache is
// bumped.
func (s *Service) Update(ctx context.Context, actorID, companyID, id int64, name string, isAdmin, isActive bool) (Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Profile{}, errors.New("profiles: name required")
	}
	profile, err := s.repo.Update(ctx, companyID, id, name, isAdmin, isActive)
	if err != nil {
		return Profile{}, err
	}
	s.record(ctx, actorID, "profile.update", profile.ID, map[string]any{"name": name, "is_admin": isAdmin, "is_active": isActive})
	s.bump(ctx)
	return profile, nil
}

// Delete hard-deletes an unassigned profile and its grant rows.
func (s *Service) Delete(ctx context.Context, actorID, companyID, id int64) error {
	count, err := s.repo.AssignedUserCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrInUse
	}
	if err := s.repo.Delete(ctx, companyID, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "profile.delete", id, nil)
	s.bump(ctx)
	return nil
}

// SetModuleGrants replaces the grant set of a profile. Core modules cannot
// be deselected: their view grant is forced on. Grants referencing modules
// outside the catalog are rejected.
func (s *Service) SetModuleGrants(ctx context.Context, actorID, companyID, profileID int64, grants []ModuleGrant) ([]ModuleGrant, error) {
	if _, err := s.repo.Get(ctx, companyID, profileID); err != nil {
		return nil, err
	}
	refs, err := s.repo.ListModuleRefs(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]ModuleRef, len(refs))
	for _, ref := range refs {
		byID[ref.ID] = ref
	}

	merged := make(map[int64]ModuleGrant, len(grants))
	for _, g := range grants {
		if _, ok := byID[g.ModuleID]; !ok {
			return nil, ErrUnknownModule
		}
		merged[g.ModuleID] = g
	}
	for _, ref := range refs {
		if !ref.IsCore || !ref.IsActive {
			continue
		}
		g := merged[ref.ID]
		g.ModuleID = ref.ID
		g.CanView = true
		merged[ref.ID] = g
	}

	final := make([]ModuleGrant, 0, len(merged))
	for _, ref := range refs {
		if g, ok := merged[ref.ID]; ok {
			final = append(final, g)
		}
	}

	if err := s.repo.ReplaceGrants(ctx, profileID, final); err != nil {
		return nil, err
	}
	s.record(ctx, actorID, "profile.grants.replace", profileID, map[string]any{"modules": len(final)})
	s.bump(ctx)
	return final, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "access_profile",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit profile mutation", slog.Any("error", err))
	}
}

func (s *Service) bump(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("bump permission snapshots", slog.Any("error", err))
	}
}
