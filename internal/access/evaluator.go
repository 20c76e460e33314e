package access

import (
	"context"
	"log/slog"

	"github.com/vertice-erp/vertice-erp/internal/observability"
)

// Evaluator answers the access questions used by route guards and the SPA.
// Every operation is fail-closed: a failed or timed-out permission load is
// logged and resolves to deny or an empty result, never to an error and
// never to allow.
type Evaluator struct {
	store   *SnapshotStore
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEvaluator constructs an Evaluator.
func NewEvaluator(store *SnapshotStore, logger *slog.Logger, metrics *observability.Metrics) *Evaluator {
	return &Evaluator{store: store, logger: logger, metrics: metrics}
}

// HasAccess reports module-level view access for a route path. The baseline
// allow-list is honored even when the permission snapshot cannot be loaded.
func (e *Evaluator) HasAccess(ctx context.Context, principal Principal, route string) bool {
	if IsBaselineRoute(route) {
		e.observe("module", true)
		return true
	}
	snap, err := e.store.Get(ctx, principal)
	if err != nil {
		e.denyOnError("has access", principal, err)
		e.observe("module", false)
		return false
	}
	allowed := snap.HasRoute(route)
	e.observe("module", allowed)
	return allowed
}

// HasEditAccess reports module-level edit access for a route path.
func (e *Evaluator) HasEditAccess(ctx context.Context, principal Principal, route string) bool {
	snap, err := e.store.Get(ctx, principal)
	if err != nil {
		e.denyOnError("has edit access", principal, err)
		e.observe("module", false)
		return false
	}
	allowed := snap.HasRouteEdit(route)
	e.observe("module", allowed)
	return allowed
}

// AllowedRoutes lists every route the principal may visit. On load failure
// only the baseline routes are returned.
func (e *Evaluator) AllowedRoutes(ctx context.Context, principal Principal) []string {
	snap, err := e.store.Get(ctx, principal)
	if err != nil {
		e.denyOnError("allowed routes", principal, err)
		routes := make([]string, len(BaselineRoutes))
		copy(routes, BaselineRoutes)
		return routes
	}
	return snap.AllowedRoutes()
}

// HasTabAccess reports tab-level access. It is evaluated independently of
// module-level view access: full-access principals see every active tab,
// everyone else needs an explicit per-user grant for that exact tab.
func (e *Evaluator) HasTabAccess(ctx context.Context, principal Principal, moduleRoute, tabKey string) bool {
	snap, err := e.store.Get(ctx, principal)
	if err != nil {
		e.denyOnError("has tab access", principal, err)
		e.observe("tab", false)
		return false
	}
	allowed := snap.HasTab(moduleRoute, tabKey)
	e.observe("tab", allowed)
	return allowed
}

// AllowedTabs lists the tabs of a module the principal may open.
func (e *Evaluator) AllowedTabs(ctx context.Context, principal Principal, moduleRoute string) []SubModule {
	snap, err := e.store.Get(ctx, principal)
	if err != nil {
		e.denyOnError("allowed tabs", principal, err)
		return nil
	}
	return snap.AllowedTabs(moduleRoute)
}

// FirstAllowedTab returns the lowest-sorted allowed tab key of a module,
// or ok=false when none is reachable.
func (e *Evaluator) FirstAllowedTab(ctx context.Context, principal Principal, moduleRoute string) (string, bool) {
	snap, err := e.store.Get(ctx, principal)
	if err != nil {
		e.denyOnError("first allowed tab", principal, err)
		return "", false
	}
	return snap.FirstAllowedTab(moduleRoute)
}

// CrossCompanyAdmin reports whether the principal may enter the SaaS
// administration surface.
func (e *Evaluator) CrossCompanyAdmin(ctx context.Context, principal Principal) bool {
	snap, err := e.store.Get(ctx, principal)
	if err != nil {
		e.denyOnError("cross company admin", principal, err)
		return false
	}
	return snap.Caps.CrossCompanyAdmin
}

// Refresh drops the principal's cached snapshot so the next decision sees
// fresh permission data. Callers invoke it after admin mutations.
func (e *Evaluator) Refresh(ctx context.Context, userID int64) error {
	return e.store.Invalidate(ctx, userID)
}

func (e *Evaluator) denyOnError(op string, principal Principal, err error) {
	if e.logger != nil {
		e.logger.Error("access check failed",
			slog.String("op", op),
			slog.Int64("user_id", principal.ID),
			slog.Any("error", err))
	}
}

func (e *Evaluator) observe(kind string, allowed bool) {
	if e.metrics != nil {
		e.metrics.ObserveAccessDecision(kind, allowed)
	}
}
