package companyview

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jkaninda/aiom/internal/observability"
	"github.com/jkaninda/aiom/internal/odoo"
)

// Timeouts protecting the endpoint from slow ERP modules. A single slow
// section loses its slot; it never blocks the others or the response.
const (
	DefaultSectionTimeout = 4 * time.Second
	DefaultTotalBudget    = 6 * time.Second
)

// Aggregator fans out to all section fetchers in parallel and assembles a
// snapshot, serving repeat requests from cache.
type Aggregator struct {
	client         odoo.Client
	cache          *Cache
	metrics        *observability.MetricsCollector
	sectionTimeout time.Duration
	totalBudget    time.Duration
	logger         *slog.Logger
}

// NewAggregator creates an aggregator with the default timeouts. metrics
// may be nil.
func NewAggregator(client odoo.Client, cache *Cache, metrics *observability.MetricsCollector, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		client:         client,
		cache:          cache,
		metrics:        metrics,
		sectionTimeout: DefaultSectionTimeout,
		totalBudget:    DefaultTotalBudget,
		logger:         logger,
	}
}

// Fetch returns the tenant's snapshot, served from cache when fresh.
// The boolean reports a cache hit. The returned error is nil even when
// every section failed — failures live in ErrorsBySection.
func (a *Aggregator) Fetch(ctx context.Context, tenantID string) (*Snapshot, bool, error) {
	if snap := a.cache.Get(tenantID); snap != nil {
		a.logger.Debug("company view cache hit", slog.String("tenant_id", tenantID))
		return snap, true, nil
	}

	snap := newSnapshot(tenantID)

	totalCtx, cancel := context.WithTimeout(ctx, a.totalBudget)
	defer cancel()

	var (
		mu   sync.Mutex
		done = make(map[string]bool, len(sections))
	)

	var g errgroup.Group
	for _, s := range sections {
		s := s
		g.Go(func() error {
			sctx, scancel := context.WithTimeout(totalCtx, a.sectionTimeout)
			defer scancel()

			start := time.Now()
			apply, err := s.fetch(sctx, a.client)
			a.metrics.RecordSectionFetch(s.name, time.Since(start))

			mu.Lock()
			defer mu.Unlock()
			if done[s.name] {
				// Already reported as timed out; the snapshot may have been
				// served. Drop the late result.
				return nil
			}
			done[s.name] = true
			if err != nil {
				a.logger.Warn("company view section failed",
					slog.String("tenant_id", tenantID),
					slog.String("section", s.name),
					slog.String("error", err.Error()),
					slog.Duration("elapsed", time.Since(start)),
				)
				se := classify(err, s.failMsg)
				snap.ErrorsBySection[s.name] = se
				a.metrics.RecordSectionError(s.name, errorKind(se, err))
				return nil
			}
			apply(snap)
			return nil
		})
	}

	finished := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-totalCtx.Done():
		// Budget exhausted. Sections still in flight are recorded as timed
		// out; their goroutines observe the cancelled context and drain.
		mu.Lock()
		for _, s := range sections {
			if !done[s.name] {
				done[s.name] = true
				snap.ErrorsBySection[s.name] = SectionError{Message: "Section timed out or failed"}
				a.metrics.RecordSectionError(s.name, "timeout")
			}
		}
		mu.Unlock()
	}

	mu.Lock()
	if len(snap.ErrorsBySection) == 0 {
		snap.ErrorsBySection = nil
	}
	mu.Unlock()

	snap.RefreshedAt = time.Now().UTC()
	a.cache.Set(tenantID, snap)

	return snap, false, nil
}

func newSnapshot(tenantID string) *Snapshot {
	return &Snapshot{
		TenantID:                  tenantID,
		RecommendedPollIntervalMs: int(SnapshotTTL.Milliseconds()),
		Accounting:                AccountingSection{RecentInvoices: []Invoice{}},
		CRM:                       CRMSection{OpenLeads: []Lead{}},
		Projects:                  ProjectsSection{OpenTasks: []Task{}},
		Helpdesk:                  HelpdeskSection{OpenTickets: []Ticket{}},
		Inventory:                 InventorySection{LowStockItems: []StockItem{}},
		ErrorsBySection:           make(map[string]SectionError),
	}
}

func classify(err error, fallback string) SectionError {
	msg := err.Error()
	if msg == "" {
		msg = fallback
	}
	return SectionError{
		Message:         msg,
		IsModuleMissing: odoo.IsModuleMissing(err),
		IsAuthError:     odoo.IsAuthError(err),
	}
}

func errorKind(se SectionError, err error) string {
	switch {
	case se.IsModuleMissing:
		return "module_missing"
	case se.IsAuthError:
		return "auth"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}
