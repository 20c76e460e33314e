package modules

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/vertice-erp/vertice-erp/internal/shared"
)

// SnapshotInvalidator bumps the snapshot cache version. Catalog changes
// affect every company, so per-user invalidation is not enough.
type SnapshotInvalidator interface {
	Bump(ctx context.Context) error
}

// CatalogView groups a module with its tabs for listing.
type CatalogView struct {
	Module Module      `json:"module"`
	Tabs   []SubModule `json:"tabs"`
}

// Service handles module catalog logic.
type Service struct {
	repo      RepositoryPort
	audit     *shared.AuditLogger
	snapshots SnapshotInvalidator
	logger    *slog.Logger
	collator  *collate.Collator
}

// NewService builds a Service instance. Module names are Portuguese, so
// listings collate with pt-BR rules instead of byte order.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, snapshots SnapshotInvalidator, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		audit:     audit,
		snapshots: snapshots,
		logger:    logger,
		collator:  collate.New(language.BrazilianPortuguese),
	}
}

// List returns the full catalog grouped by module, modules collated by name
// and tabs in their configured order.
func (s *Service) List(ctx context.Context) ([]CatalogView, error) {
	mods, err := s.repo.ListModules(ctx)
	if err != nil {
		return nil, err
	}
	tabs, err := s.repo.ListSubModules(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(mods, func(i, j int) bool {
		return s.collator.CompareString(mods[i].Name, mods[j].Name) < 0
	})

	byModule := make(map[int64][]SubModule, len(mods))
	for _, t := range tabs {
		byModule[t.ModuleID] = append(byModule[t.ModuleID], t)
	}

	out := make([]CatalogView, 0, len(mods))
	for _, m := range mods {
		out = append(out, CatalogView{Module: m, Tabs: byModule[m.ID]})
	}
	return out, nil
}

// Create adds a catalog entry.
func (s *Service) Create(ctx context.Context, actorID int64, routePath, name, category string, isCore bool) (Module, error) {
	routePath = normalizeRoute(routePath)
	m, err := s.repo.CreateModule(ctx, Module{RoutePath: routePath, Name: strings.TrimSpace(name), Category: strings.TrimSpace(category), IsCore: isCore})
	if err != nil {
		return Module{}, err
	}
	s.record(ctx, actorID, "module.create", m.ID, map[string]any{"route_path": routePath})
	s.bump(ctx)
	return m, nil
}

// Update rewrites a catalog entry. Core modules stay active no matter what
// the caller sends.
func (s *Service) Update(ctx context.Context, actorID, id int64, name, category string, isActive bool) (Module, error) {
	current, err := s.repo.GetModule(ctx, id)
	if err != nil {
		return Module{}, err
	}
	if current.IsCore && !isActive {
		return Module{}, ErrCoreImmutable
	}
	m, err := s.repo.UpdateModule(ctx, id, strings.TrimSpace(name), strings.TrimSpace(category), isActive)
	if err != nil {
		return Module{}, err
	}
	s.record(ctx, actorID, "module.update", m.ID, map[string]any{"is_active": isActive})
	s.bump(ctx)
	return m, nil
}

// UpdateTab rewrites a tab entry.
func (s *Service) UpdateTab(ctx context.Context, actorID, id int64, name string, sortOrder int, isActive bool) (SubModule, error) {
	sm, err := s.repo.UpdateSubModule(ctx, id, strings.TrimSpace(name), sortOrder, isActive)
	if err != nil {
		return SubModule{}, err
	}
	s.record(ctx, actorID, "module.tab.update", sm.ID, map[string]any{"is_active": isActive})
	s.bump(ctx)
	return sm, nil
}

func normalizeRoute(path string) string {
	path = strings.TrimSpace(strings.ToLower(path))
	if path == "" {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	return path
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "module",
		EntityID: strconv.FormatInt(entityID, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit catalog mutation", slog.Any("error", err))
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
