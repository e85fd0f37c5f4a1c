// Package reconciler merges registrar, DNS, and content-filter state into the
// stored domain portfolio.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pratamalabs/domaindesk/internal/config"
	"github.com/pratamalabs/domaindesk/internal/contentfilter"
	"github.com/pratamalabs/domaindesk/internal/events"
	"github.com/pratamalabs/domaindesk/internal/logger"
	"github.com/pratamalabs/domaindesk/internal/metrics"
	"github.com/pratamalabs/domaindesk/internal/models"
	"github.com/pratamalabs/domaindesk/internal/registrar"
)

// batchSize bounds how many rows share one transaction. A failing batch rolls
// back alone; earlier batches stay committed.
const batchSize = 50

// lookupConcurrency bounds parallel NS queries within a batch.
const lookupConcurrency = 8

// DomainStore is the persistence surface the reconciler writes through.
type DomainStore interface {
	ListAll(ctx context.Context) ([]models.Domain, error)
	ListUsed(ctx context.Context) ([]models.Domain, error)
	FindByRegistrarID(ctx context.Context, registrarID string) (*models.Domain, error)
	FindByName(ctx context.Context, name string) (*models.Domain, error)
	Create(ctx context.Context, domain *models.Domain) error
	UpdateBatch(ctx context.Context, domains []*models.Domain) error
}

// SyncAuditLog records that a sync ran; entries are append-only.
type SyncAuditLog interface {
	Record(ctx context.Context, kind models.SyncKind) error
	LastTimestamp(ctx context.Context, kind models.SyncKind) (*time.Time, error)
}

// RegistrarClient is the slice of the registrar API the reconciler uses.
type RegistrarClient interface {
	ListDomains(ctx context.Context) ([]registrar.Domain, error)
	Reactivate(ctx context.Context, name string) (*registrar.RenewResult, error)
	Renew(ctx context.Context, name string, years int) (*registrar.RenewResult, error)
	GetInfo(ctx context.Context, name string) (*registrar.Info, error)
}

// NSResolver looks up nameservers; failures surface as an empty slice.
type NSResolver interface {
	LookupNS(ctx context.Context, domain string) []string
}

// FilterChecker checks block status for a set of names.
type FilterChecker interface {
	CheckAll(ctx context.Context, names []string) (contentfilter.StatusMap, error)
}

// Result summarizes one sync run.
type Result struct {
	Checked  int `json:"checked"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

type Reconciler struct {
	store     DomainStore
	auditLog  SyncAuditLog
	registrar RegistrarClient
	resolver  NSResolver
	filter    FilterChecker
	cfg       config.ContentFilterConfig
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    logger.Logger

	// group collapses concurrent triggers of the same sync kind into one run.
	group singleflight.Group
}

func New(
	store DomainStore,
	auditLog SyncAuditLog,
	registrarClient RegistrarClient,
	resolver NSResolver,
	filter FilterChecker,
	cfg config.ContentFilterConfig,
	publisher *events.Publisher,
	m *metrics.Metrics,
	log logger.Logger,
) *Reconciler {
	return &Reconciler{
		store:     store,
		auditLog:  auditLog,
		registrar: registrarClient,
		resolver:  resolver,
		filter:    filter,
		cfg:       cfg,
		publisher: publisher,
		metrics:   m,
		logger:    log,
	}
}

// Sync pulls the registrar portfolio and then re-resolves nameservers, so
// new domains get their NS records in the same run. The whole thing is one
// registrar sync for audit purposes; the nameserver refresh is part of it,
// not a run of its own. Content-filter checks have their own trigger and
// schedule.
func (r *Reconciler) Sync(ctx context.Context) (*Result, error) {
	return r.runOnce(ctx, models.SyncKindRegistrar, true, func(ctx context.Context) (*Result, error) {
		total := &Result{}

		regResult, err := r.syncFromRegistrar(ctx)
		if err != nil {
			return nil, fmt.Errorf("registrar sync: %w", err)
		}
		total.add(regResult)

		nsResult, err := r.refreshNameservers(ctx)
		if err != nil {
			return nil, fmt.Errorf("nameserver refresh: %w", err)
		}
		total.add(nsResult)

		return total, nil
	})
}

func (t *Result) add(other *Result) {
	t.Checked += other.Checked
	t.Inserted += other.Inserted
	t.Updated += other.Updated
}

// SyncFromRegistrar pulls the full portfolio from the registrar and upserts
// it. Rows are matched by registrar ID first, then by name; a name match
// adopts the registrar ID. Fields owned by the user or by the other syncs are
// never touched.
func (r *Reconciler) SyncFromRegistrar(ctx context.Context) (*Result, error) {
	return r.runOnce(ctx, models.SyncKindRegistrar, true, r.syncFromRegistrar)
}

func (r *Reconciler) syncFromRegistrar(ctx context.Context) (*Result, error) {
	remote, err := r.registrar.ListDomains(ctx)
	if err != nil {
		return nil, fmt.Errorf("list registrar domains: %w", err)
	}

	result := &Result{Checked: len(remote)}
	var pending []*models.Domain

	for _, item := range remote {
		existing, err := r.findMatch(ctx, item)
		if err != nil {
			return nil, err
		}

		if existing == nil {
			domain := &models.Domain{Name: item.Name}
			applyRegistrarFields(domain, item)
			if err := r.store.Create(ctx, domain); err != nil {
				return nil, fmt.Errorf("insert domain %q: %w", item.Name, err)
			}
			result.Inserted++
			continue
		}

		if applyRegistrarFields(existing, item) {
			pending = append(pending, existing)
			result.Updated++
		}
		if len(pending) >= batchSize {
			if err := r.store.UpdateBatch(ctx, pending); err != nil {
				return nil, fmt.Errorf("commit batch: %w", err)
			}
			pending = pending[:0]
		}
	}
	if len(pending) > 0 {
		if err := r.store.UpdateBatch(ctx, pending); err != nil {
			return nil, fmt.Errorf("commit batch: %w", err)
		}
	}

	r.metrics.AddRows(models.SyncKindRegistrar.String(), "insert", result.Inserted)
	r.metrics.AddRows(models.SyncKindRegistrar.String(), "update", result.Updated)
	return result, nil
}

func (r *Reconciler) findMatch(ctx context.Context, item registrar.Domain) (*models.Domain, error) {
	if item.ID != "" {
		domain, err := r.store.FindByRegistrarID(ctx, item.ID)
		if err != nil {
			return nil, fmt.Errorf("find by registrar id: %w", err)
		}
		if domain != nil {
			return domain, nil
		}
	}
	domain, err := r.store.FindByName(ctx, item.Name)
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	return domain, nil
}

// applyRegistrarFields writes the registrar-owned field group and reports
// whether anything changed.
func applyRegistrarFields(d *models.Domain, item registrar.Domain) bool {
	changed := false

	if item.ID != "" && !strPtrEquals(d.RegistrarID, item.ID) {
		d.RegistrarID = &item.ID
		changed = true
	}
	if d.Name != item.Name {
		d.Name = item.Name
		changed = true
	}
	if !strPtrEquals(d.Owner, item.Owner) {
		d.Owner = strPtr(item.Owner)
		changed = true
	}
	if !strPtrEquals(d.RegisteredOn, item.Created) {
		d.RegisteredOn = strPtr(item.Created)
		changed = true
	}
	if d.IsExpired != item.IsExpired {
		d.IsExpired = item.IsExpired
		changed = true
	}
	if d.IsLocked != item.IsLocked {
		d.IsLocked = item.IsLocked
		changed = true
	}
	if d.AutoRenew != item.AutoRenew {
		d.AutoRenew = item.AutoRenew
		changed = true
	}
	if !strPtrEquals(d.WhoisGuard, item.WhoisGuard) {
		d.WhoisGuard = strPtr(item.WhoisGuard)
		changed = true
	}
	if !boolPtrEquals(d.IsPremium, item.IsPremium) {
		d.IsPremium = &item.IsPremium
		changed = true
	}
	usesOwnDNS := !item.IsOurDNS
	if !boolPtrEquals(d.UsesOwnDNS, usesOwnDNS) {
		d.UsesOwnDNS = &usesOwnDNS
		changed = true
	}
	if !d.ExpiryDate.Equal(item.Expires) {
		d.ExpiryDate = item.Expires
		changed = true
	}
	active := !item.IsExpired
	if d.Active != active {
		d.Active = active
		changed = true
	}

	return changed
}

// RefreshNameservers re-resolves NS records for every domain. Lookups within
// a batch run concurrently; each batch commits before the next starts.
// An empty lookup result leaves the stored nameservers alone.
func (r *Reconciler) RefreshNameservers(ctx context.Context) (*Result, error) {
	return r.runOnce(ctx, models.SyncKindNameserver, true, r.refreshNameservers)
}

func (r *Reconciler) refreshNameservers(ctx context.Context) (*Result, error) {
	domains, err := r.store.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}

	result := &Result{Checked: len(domains)}

	for start := 0; start < len(domains); start += batchSize {
		end := start + batchSize
		if end > len(domains) {
			end = len(domains)
		}
		batch := domains[start:end]

		lookups := make([][]string, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(lookupConcurrency)
		for i := range batch {
			i := i
			g.Go(func() error {
				lookups[i] = r.resolver.LookupNS(gctx, batch[i].Name)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		var pending []*models.Domain
		for i := range batch {
			domain := &batch[i]
			if len(lookups[i]) == 0 {
				continue
			}
			if applyNameservers(domain, lookups[i]) {
				pending = append(pending, domain)
			}
		}
		if err := r.store.UpdateBatch(ctx, pending); err != nil {
			return nil, fmt.Errorf("commit batch: %w", err)
		}
		result.Updated += len(pending)
	}

	r.metrics.AddRows(models.SyncKindNameserver.String(), "update", result.Updated)
	return result, nil
}

// applyNameservers stores the first two resolved nameservers and reports
// whether anything changed.
func applyNameservers(d *models.Domain, servers []string) bool {
	ns1 := servers[0]
	var ns2 string
	if len(servers) > 1 {
		ns2 = servers[1]
	}

	changed := false
	if !strPtrEquals(d.NameServer1, ns1) {
		d.NameServer1 = &ns1
		changed = true
	}
	if !strPtrEquals(d.NameServer2, ns2) {
		d.NameServer2 = strPtr(ns2)
		changed = true
	}
	return changed
}

// RefreshContentFilterStatus re-checks block status for used domains. When an
// external script is configured the whole check is delegated to it; otherwise
// the in-process checker runs and the statuses are applied here.
func (r *Reconciler) RefreshContentFilterStatus(ctx context.Context) (*Result, error) {
	if r.cfg.ScriptPath != "" {
		// the script posts its results back through ApplyStatuses, which
		// records the audit entry; recording here too would count one check
		// twice
		return r.runOnce(ctx, models.SyncKindContentFilter, false, r.runFilterScript)
	}
	return r.runOnce(ctx, models.SyncKindContentFilter, true, r.refreshContentFilter)
}

func (r *Reconciler) refreshContentFilter(ctx context.Context) (*Result, error) {
	used, err := r.store.ListUsed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list used domains: %w", err)
	}
	if len(used) == 0 {
		r.logger.Info("No used domains, skipping content filter check")
		return &Result{}, nil
	}

	names := make([]string, len(used))
	for i, d := range used {
		names[i] = d.Name
	}

	statuses, err := r.filter.CheckAll(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("check filter status: %w", err)
	}

	return r.applyStatuses(ctx, used, statuses)
}

// ApplyStatuses merges externally-obtained block statuses into used domains.
// This is the write half of the script path: the script posts its results
// back through the API, which lands here.
func (r *Reconciler) ApplyStatuses(ctx context.Context, statuses contentfilter.StatusMap) (*Result, error) {
	used, err := r.store.ListUsed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list used domains: %w", err)
	}
	result, err := r.applyStatuses(ctx, used, statuses)
	if err != nil {
		return nil, err
	}
	if err := r.auditLog.Record(ctx, models.SyncKindContentFilter); err != nil {
		return nil, fmt.Errorf("record sync: %w", err)
	}
	return result, nil
}

func (r *Reconciler) applyStatuses(ctx context.Context, used []models.Domain, statuses contentfilter.StatusMap) (*Result, error) {
	result := &Result{}
	var pending []*models.Domain

	for i := range used {
		domain := &used[i]
		blocked, ok := statuses.Blocked(domain.Name)
		if !ok {
			continue
		}
		result.Checked++
		if domain.Blocked == blocked {
			continue
		}
		domain.Blocked = blocked
		pending = append(pending, domain)
		result.Updated++

		if len(pending) >= batchSize {
			if err := r.store.UpdateBatch(ctx, pending); err != nil {
				return nil, fmt.Errorf("commit batch: %w", err)
			}
			pending = pending[:0]
		}
	}
	if len(pending) > 0 {
		if err := r.store.UpdateBatch(ctx, pending); err != nil {
			return nil, fmt.Errorf("commit batch: %w", err)
		}
	}

	r.metrics.AddRows(models.SyncKindContentFilter.String(), "update", result.Updated)
	return result, nil
}

// runOnce wraps a sync body with single-flight collapsing, audit logging,
// metrics, and event publishing. Concurrent triggers of the same kind share
// one run and its result. record controls whether a successful run writes an
// audit entry; callers whose body delegates the write elsewhere pass false.
func (r *Reconciler) runOnce(ctx context.Context, kind models.SyncKind, record bool, fn func(context.Context) (*Result, error)) (*Result, error) {
	value, err, shared := r.group.Do(kind.String(), func() (any, error) {
		started := time.Now()
		result, err := fn(ctx)

		r.metrics.RecordRun(kind.String(), err)
		event := events.SyncEvent{Kind: kind.String(), Status: "completed"}
		if err != nil {
			event.Status = "failed"
			event.Error = err.Error()
			r.publisher.PublishAsync(event)
			return nil, err
		}
		event.Checked = result.Checked
		event.Updated = result.Updated + result.Inserted
		r.publisher.PublishAsync(event)
		r.metrics.SetLastSync(kind.String(), float64(started.Unix()))

		if record {
			if logErr := r.auditLog.Record(ctx, kind); logErr != nil {
				return nil, fmt.Errorf("record sync: %w", logErr)
			}
		}

		r.logger.Info("Sync completed",
			logger.String("kind", kind.String()),
			logger.Int("checked", result.Checked),
			logger.Int("inserted", result.Inserted),
			logger.Int("updated", result.Updated),
			logger.Duration("elapsed", time.Since(started)),
		)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		r.logger.Debug("Sync trigger coalesced into running sync",
			logger.String("kind", kind.String()),
		)
	}
	return value.(*Result), nil
}

// LastSync returns when each sync kind last completed; nil means never.
func (r *Reconciler) LastSync(ctx context.Context) (map[string]*time.Time, error) {
	kinds := []models.SyncKind{
		models.SyncKindRegistrar,
		models.SyncKindContentFilter,
		models.SyncKindNameserver,
	}
	out := make(map[string]*time.Time, len(kinds))
	for _, kind := range kinds {
		ts, err := r.auditLog.LastTimestamp(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("last %s: %w", kind, err)
		}
		out[kind.String()] = ts
	}
	return out, nil
}

// Reactivate re-registers an expired domain at the registrar, then refreshes
// the stored registrar-owned fields. A refresh failure does not undo the
// reactivation, so it is logged rather than returned.
func (r *Reconciler) Reactivate(ctx context.Context, name string) (*registrar.RenewResult, error) {
	result, err := r.registrar.Reactivate(ctx, name)
	if err != nil {
		return nil, err
	}
	r.logger.Info("Domain reactivated",
		logger.String("domain", name),
		logger.String("charged", result.ChargedAmount),
	)
	r.refreshAfterCommand(ctx, name)
	return result, nil
}

// Renew extends a domain's registration at the registrar, then refreshes the
// stored registrar-owned fields.
func (r *Reconciler) Renew(ctx context.Context, name string, years int) (*registrar.RenewResult, error) {
	result, err := r.registrar.Renew(ctx, name, years)
	if err != nil {
		return nil, err
	}
	r.logger.Info("Domain renewed",
		logger.String("domain", name),
		logger.Int("years", years),
		logger.String("charged", result.ChargedAmount),
	)
	r.refreshAfterCommand(ctx, name)
	return result, nil
}

func (r *Reconciler) refreshAfterCommand(ctx context.Context, name string) {
	if _, err := r.SyncFromRegistrar(ctx); err != nil {
		r.logger.Warn("Post-command registrar refresh failed",
			logger.String("domain", name),
			logger.Error(err),
		)
	}
}

// GetInfo fetches live registrar detail for one domain.
func (r *Reconciler) GetInfo(ctx context.Context, name string) (*registrar.Info, error) {
	return r.registrar.GetInfo(ctx, name)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strPtrEquals(p *string, s string) bool {
	if p == nil {
		return s == ""
	}
	return *p == s
}

func boolPtrEquals(p *bool, b bool) bool {
	return p != nil && *p == b
}
