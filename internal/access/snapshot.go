package access

import (
	"sort"
	"sync"
	"time"
)

// Snapshot is an immutable view of everything needed to answer access
// questions for one principal. Evaluation over a snapshot is pure; the
// snapshot itself is only replaced, never mutated, and is invalidated
// explicitly after admin mutations.
type Snapshot struct {
	Principal Principal          `json:"principal"`
	Caps      Capabilities       `json:"caps"`
	Profile   *AccessProfile     `json:"profile,omitempty"`
	Modules   []Module           `json:"modules"`
	Grants    []ModulePermission `json:"grants"`
	Tabs      []SubModule        `json:"tabs"`
	TabGrants []int64            `json:"tab_grants"`
	LoadedAt  time.Time          `json:"loaded_at"`

	byRoute     map[string]*Module
	grantByMod  map[int64]ModulePermission
	tabGrantSet map[int64]struct{}
	tabsByMod   map[int64][]SubModule
	indexOnce   sync.Once
}

// index builds the derived lookup maps exactly once. The store indexes a
// snapshot before publishing it, and the sync.Once keeps concurrent
// evaluator queries safe when a snapshot reaches them unindexed, e.g. one
// constructed directly in tests.
func (s *Snapshot) index() {
	s.indexOnce.Do(s.buildIndex)
}

func (s *Snapshot) buildIndex() {
	s.byRoute = make(map[string]*Module, len(s.Modules))
	for i := range s.Modules {
		m := &s.Modules[i]
		if m.IsActive {
			s.byRoute[m.RoutePath] = m
		}
	}
	s.grantByMod = make(map[int64]ModulePermission, len(s.Grants))
	for _, g := range s.Grants {
		s.grantByMod[g.ModuleID] = g
	}
	s.tabGrantSet = make(map[int64]struct{}, len(s.TabGrants))
	for _, id := range s.TabGrants {
		s.tabGrantSet[id] = struct{}{}
	}
	s.tabsByMod = make(map[int64][]SubModule, len(s.Modules))
	for _, t := range s.Tabs {
		if t.IsActive {
			s.tabsByMod[t.ModuleID] = append(s.tabsByMod[t.ModuleID], t)
		}
	}
	for id := range s.tabsByMod {
		tabs := s.tabsByMod[id]
		sort.SliceStable(tabs, func(i, j int) bool { return tabs[i].SortOrder < tabs[j].SortOrder })
		s.tabsByMod[id] = tabs
	}
}

// fullModuleAccess reports whether role capabilities or an active
// admin-flagged profile escalate this principal to full access.
func (s *Snapshot) fullModuleAccess() bool {
	if s.Caps.FullModuleAccess {
		return true
	}
	return s.Profile != nil && s.Profile.IsAdmin
}

// HasRoute answers module-level view access for a route path, following the
// strict precedence order: baseline allow-list, full access, then the
// profile's permission rows. An unmatched or inactive module denies.
func (s *Snapshot) HasRoute(route string) bool {
	if IsBaselineRoute(route) {
		return true
	}
	s.index()
	mod, ok := s.byRoute[route]
	if !ok {
		return false
	}
	if s.fullModuleAccess() {
		return true
	}
	grant, ok := s.grantByMod[mod.ID]
	return ok && grant.CanView
}

// HasRouteEdit answers module-level edit access for a route path.
func (s *Snapshot) HasRouteEdit(route string) bool {
	s.index()
	mod, ok := s.byRoute[route]
	if !ok {
		return false
	}
	if s.fullModuleAccess() {
		return true
	}
	grant, ok := s.grantByMod[mod.ID]
	return ok && grant.CanEdit
}

// AllowedRoutes lists every route the principal may visit: the baseline
// routes first, then granted module routes in catalog order.
func (s *Snapshot) AllowedRoutes() []string {
	s.index()
	routes := make([]string, 0, len(BaselineRoutes)+len(s.Modules))
	routes = append(routes, BaselineRoutes...)
	full := s.fullModuleAccess()
	for i := range s.Modules {
		m := &s.Modules[i]
		if !m.IsActive || IsBaselineRoute(m.RoutePath) {
			continue
		}
		if full {
			routes = append(routes, m.RoutePath)
			continue
		}
		if grant, ok := s.grantByMod[m.ID]; ok && grant.CanView {
			routes = append(routes, m.RoutePath)
		}
	}
	return routes
}

// AllowedTabs lists the active tabs of a module this principal may open,
// in sort order. Full-access principals see every active tab; otherwise a
// tab requires an explicit per-user grant, with no inheritance from the
// module-level view permission.
func (s *Snapshot) AllowedTabs(moduleRoute string) []SubModule {
	s.index()
	mod, ok := s.byRoute[moduleRoute]
	if !ok {
		return nil
	}
	tabs := s.tabsByMod[mod.ID]
	if s.fullModuleAccess() {
		out := make([]SubModule, len(tabs))
		copy(out, tabs)
		return out
	}
	var out []SubModule
	for _, t := range tabs {
		if _, granted := s.tabGrantSet[t.ID]; granted {
			out = append(out, t)
		}
	}
	return out
}

// HasTab answers tab-level access for an exact module route and tab key.
func (s *Snapshot) HasTab(moduleRoute, tabKey string) bool {
	for _, t := range s.AllowedTabs(moduleRoute) {
		if t.TabKey == tabKey {
			return true
		}
	}
	return false
}

// FirstAllowedTab returns the lowest-sorted allowed tab key of a module.
func (s *Snapshot) FirstAllowedTab(moduleRoute string) (string, bool) {
	tabs := s.AllowedTabs(moduleRoute)
	if len(tabs) == 0 {
		return "", false
	}
	return tabs[0].TabKey, true
}
