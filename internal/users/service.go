package users

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vertice-erp/vertice-erp/internal/access"
	"github.com/vertice-erp/vertice-erp/internal/shared"
)

// SnapshotInvalidator drops the cached permission snapshot of one user.
// User-level mutations touch a single account, so the whole cache version
// is left alone.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, userID int64) error
}

// InviteMailer queues the welcome email for a freshly invited account.
type InviteMailer interface {
	EnqueueInviteEmail(ctx context.Context, email, name, tempPassword string) error
}

// Service handles user management logic.
type Service struct {
	repo      RepositoryPort
	audit     *shared.AuditLogger
	snapshots SnapshotInvalidator
	mailer    InviteMailer
	logger    *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, snapshots SnapshotInvalidator, mailer InviteMailer, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, snapshots: snapshots, mailer: mailer, logger: logger}
}

// List returns the users of a company.
func (s *Service) List(ctx context.Context, companyID int64) ([]User, error) {
	return s.repo.List(ctx, companyID)
}

// Get returns one user with their tab grants.
func (s *Service) Get(ctx context.Context, companyID, id int64) (User, []int64, error) {
	user, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return User{}, nil, err
	}
	tabs, err := s.repo.ListTabGrants(ctx, id)
	if err != nil {
		return User{}, nil, err
	}
	return user, tabs, nil
}

// Invite creates an account with a generated temporary password and queues
// the welcome email. The invitee changes the password on first login.
func (s *Service) Invite(ctx context.Context, actorID, companyID int64, email, name, role string, profileID *int64) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" || name == "" {
		return User{}, errors.New("users: email and name required")
	}
	if profileID != nil {
		ok, err := s.repo.ProfileBelongsToCompany(ctx, companyID, *profileID)
		if err != nil {
			return User{}, err
		}
		if !ok {
			return User{}, ErrUnknownProfile
		}
	}

	tempPassword := uuid.NewString()
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	user, err := s.repo.Create(ctx, User{
		CompanyID: companyID,
		Email:     email,
		Name:      name,
		Role:      string(access.ParseRole(role)),
		ProfileID: profileID,
	}, string(hash))
	if err != nil {
		return User{}, err
	}

	if s.mailer != nil {
		if err := s.mailer.EnqueueInviteEmail(ctx, email, name, tempPassword); err != nil {
			s.logger.Warn("enqueue invite email", slog.Any("error", err))
		}
	}
	s.record(ctx, actorID, "user.invite", user.ID, map[string]any{"email": email, "role": user.Role})
	return user, nil
}

// AssignProfile links a user to an access profile, or clears the link when
// profileID is nil. The user's cached snapshot is dropped.
func (s *Service) AssignProfile(ctx context.Context, actorID, companyID, id int64, profileID *int64) error {
	if profileID != nil {
		ok, err := s.repo.ProfileBelongsToCompany(ctx, companyID, *profileID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUnknownProfile
		}
	}
	if err := s.repo.AssignProfile(ctx, companyID, id, profileID); err != nil {
		return err
	}
	s.record(ctx, actorID, "user.profile.assign", id, map[string]any{"profile_id": profileID})
	s.invalidate(ctx, id)
	return nil
}

// SetTabGrants replaces the user's tab grant set. Every id must exist in the
// active sub-module catalog.
func (s *Service) SetTabGrants(ctx context.Context, actorID, companyID, id int64, subModuleIDs []int64) error {
	if _, err := s.repo.Get(ctx, companyID, id); err != nil {
		return err
	}
	refs, err := s.repo.ListTabRefs(ctx)
	if err != nil {
		return err
	}
	active := make(map[int64]bool, len(refs))
	for _, ref := range refs {
		if ref.IsActive {
			active[ref.ID] = true
		}
	}
	seen := make(map[int64]bool, len(subModuleIDs))
	final := make([]int64, 0, len(subModuleIDs))
	for _, tabID := range subModuleIDs {
		if !active[tabID] {
			return ErrUnknownTab
		}
		if seen[tabID] {
			continue
		}
		seen[tabID] = true
		final = append(final, tabID)
	}
	if err := s.repo.ReplaceTabGrants(ctx, id, final); err != nil {
		return err
	}
	s.record(ctx, actorID, "user.tabs.replace", id, map[string]any{"tabs": len(final)})
	s.invalidate(ctx, id)
	return nil
}

// SetActive enables or disables the account.
func (s *Service) SetActive(ctx context.Context, actorID, companyID, id int64, active bool) error {
	if err := s.repo.SetActive(ctx, companyID, id, active); err != nil {
		return err
	}
	action := "user.deactivate"
	if active {
		action = "user.activate"
	}
	s.record(ctx, actorID, action, id, nil)
	s.invalidate(ctx, id)
	return nil
}

// SetRole changes the account role. The role value is normalised, unknown
// input downgrades to the plain user role.
func (s *Service) SetRole(ctx context.Context, actorID, companyID, id int64, role string) error {
	normalized := string(access.ParseRole(role))
	if err := s.repo.SetRole(ctx, companyID, id, normalized); err != nil {
		return err
	}
	s.record(ctx, actorID, "user.role.set", id, map[string]any{"role": normalized})
	s.invalidate(ctx, id)
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit user mutation", slog.Any("error", err))
	}
}

func (s *Service) invalidate(ctx context.Context, userID int64) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Invalidate(ctx, userID); err != nil && s.logger != nil {
		s.logger.Warn("invalidate permission snapshot", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}
