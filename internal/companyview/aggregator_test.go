package companyview

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/jkaninda/aiom/internal/observability"
	"github.com/jkaninda/aiom/internal/odoo"
)

// fakeERP serves canned records per model and counts calls.
type fakeERP struct {
	mu      sync.Mutex
	records map[string][]odoo.Record
	counts  map[string]int
	errs    map[string]error
	delays  map[string]time.Duration
	calls   int
}

func newFakeERP() *fakeERP {
	return &fakeERP{
		records: make(map[string][]odoo.Record),
		counts:  make(map[string]int),
		errs:    make(map[string]error),
		delays:  make(map[string]time.Duration),
	}
}

func (f *fakeERP) before(ctx context.Context, model string) error {
	f.mu.Lock()
	f.calls++
	delay := f.delays[model]
	err := f.errs[model]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *fakeERP) SearchRead(ctx context.Context, model string, _ odoo.Domain, _ odoo.SearchReadOptions) ([]odoo.Record, error) {
	if err := f.before(ctx, model); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[model], nil
}

func (f *fakeERP) SearchCount(ctx context.Context, model string, _ odoo.Domain) (int, error) {
	if err := f.before(ctx, model); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[model], nil
}

func (f *fakeERP) Create(context.Context, string, map[string]any) (int64, error) {
	return 0, nil
}

func (f *fakeERP) Ping(context.Context) error { return nil }

func (f *fakeERP) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestAggregator(t *testing.T, erp odoo.Client) *Aggregator {
	t.Helper()
	cache, err := NewCache(64, SnapshotTTL)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	t.Cleanup(cache.Close)
	return NewAggregator(erp, cache, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFetchAggregatesAllSections(t *testing.T) {
	erp := newFakeERP()
	erp.records["account.move"] = []odoo.Record{
		{"id": float64(1), "name": "INV/001", "partner_id": []any{float64(5), "Acme"},
			"amount_total": 150.0, "currency_id": []any{float64(1), "USD"},
			"state": "posted", "payment_state": "paid", "invoice_date": "2026-08-01"},
		{"id": float64(2), "name": "INV/002", "partner_id": []any{float64(6), "Globex"},
			"amount_total": 99.0, "currency_id": []any{float64(1), "USD"},
			"state": "posted", "payment_state": "not_paid", "invoice_date_due": "2020-01-01"},
	}
	erp.counts["account.move"] = 4
	erp.records["crm.lead"] = []odoo.Record{
		{"id": float64(9), "name": "Big deal", "stage_id": []any{float64(2), "Qualified"},
			"expected_revenue": 5000.0, "probability": 60.0},
	}
	erp.counts["crm.lead"] = 1
	erp.counts["project.task"] = 3
	erp.counts["helpdesk.ticket"] = 2
	erp.records["product.product"] = []odoo.Record{
		{"id": float64(11), "display_name": "Widget", "qty_available": 1.0, "reordering_min_qty": 5.0},
		{"id": float64(12), "display_name": "Gadget", "qty_available": 10.0, "reordering_min_qty": 5.0},
		{"id": float64(13), "display_name": "Sprocket", "qty_available": 0.0, "reordering_min_qty": 0.0},
	}

	snap, hit, err := newTestAggregator(t, erp).Fetch(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if hit {
		t.Error("first fetch must miss the cache")
	}
	if snap.TenantID != "tenant-1" {
		t.Errorf("tenant = %q", snap.TenantID)
	}
	if len(snap.ErrorsBySection) != 0 {
		t.Errorf("unexpected section errors: %+v", snap.ErrorsBySection)
	}

	if got := *snap.KPIs.OpenInvoicesCount; got != 4 {
		t.Errorf("openInvoicesCount = %d", got)
	}
	if len(snap.Accounting.RecentInvoices) != 2 {
		t.Fatalf("invoices = %d", len(snap.Accounting.RecentInvoices))
	}
	if snap.Accounting.RecentInvoices[0].Status != "paid" {
		t.Errorf("invoice 0 status = %q", snap.Accounting.RecentInvoices[0].Status)
	}
	if snap.Accounting.RecentInvoices[1].Status != "overdue" {
		t.Errorf("invoice 1 status = %q", snap.Accounting.RecentInvoices[1].Status)
	}

	if got := *snap.KPIs.OpenLeadsCount; got != 1 {
		t.Errorf("openLeadsCount = %d", got)
	}
	if snap.CRM.OpenLeads[0].StageName != "Qualified" {
		t.Errorf("lead stage = %q", snap.CRM.OpenLeads[0].StageName)
	}

	// Only Widget is below its reorder threshold; Gadget is stocked and
	// Sprocket has no threshold configured.
	if got := *snap.KPIs.LowStockItemsCount; got != 1 {
		t.Errorf("lowStockItemsCount = %d", got)
	}
	if len(snap.Inventory.LowStockItems) != 1 || snap.Inventory.LowStockItems[0].ProductName != "Widget" {
		t.Errorf("low stock = %+v", snap.Inventory.LowStockItems)
	}
}

func TestFetchIsolatesSectionFailure(t *testing.T) {
	erp := newFakeERP()
	erp.errs["helpdesk.ticket"] = &odoo.RPCError{
		Model:   "helpdesk.ticket",
		Message: "Object helpdesk.ticket does not exist",
	}
	erp.counts["crm.lead"] = 7

	snap, _, err := newTestAggregator(t, erp).Fetch(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	he, ok := snap.ErrorsBySection["helpdesk"]
	if !ok {
		t.Fatal("expected helpdesk section error")
	}
	if !he.IsModuleMissing {
		t.Errorf("isModuleMissing = false for %q", he.Message)
	}
	if snap.KPIs.OpenTicketsCount != nil {
		t.Error("failed section KPI must be nil, not zero")
	}

	// Other sections are unaffected.
	if snap.KPIs.OpenLeadsCount == nil || *snap.KPIs.OpenLeadsCount != 7 {
		t.Errorf("openLeadsCount = %v", snap.KPIs.OpenLeadsCount)
	}
	if len(snap.Helpdesk.OpenTickets) != 0 {
		t.Errorf("helpdesk tickets = %+v", snap.Helpdesk.OpenTickets)
	}
}

func TestFetchSectionTimeout(t *testing.T) {
	erp := newFakeERP()
	erp.delays["project.task"] = time.Second

	agg := newTestAggregator(t, erp)
	agg.sectionTimeout = 30 * time.Millisecond
	agg.totalBudget = 500 * time.Millisecond

	snap, _, err := agg.Fetch(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	pe, ok := snap.ErrorsBySection["projects"]
	if !ok {
		t.Fatal("expected projects section error")
	}
	if !strings.Contains(pe.Message, "context deadline exceeded") {
		t.Errorf("message = %q", pe.Message)
	}
	if _, bad := snap.ErrorsBySection["crm"]; bad {
		t.Error("fast sections must not be affected by a slow one")
	}
}

func TestSnapshotJSONShape(t *testing.T) {
	erp := newFakeERP()
	snap, _, err := newTestAggregator(t, erp).Fetch(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap.RecommendedPollIntervalMs != int(SnapshotTTL.Milliseconds()) {
		t.Errorf("recommendedPollIntervalMs = %d", snap.RecommendedPollIntervalMs)
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := body["refreshedAt"]; !ok {
		t.Error("snapshot JSON missing refreshedAt")
	}
	if got, ok := body["recommendedPollIntervalMs"]; !ok || got != float64(30000) {
		t.Errorf("recommendedPollIntervalMs = %v (present=%v)", got, ok)
	}
	if _, stale := body["generatedAt"]; stale {
		t.Error("snapshot JSON must not carry generatedAt")
	}
}

func TestFetchRecordsSectionErrorMetric(t *testing.T) {
	erp := newFakeERP()
	erp.errs["helpdesk.ticket"] = &odoo.RPCError{
		Model:   "helpdesk.ticket",
		Message: "Object helpdesk.ticket does not exist",
	}

	metrics := observability.NewMetricsCollector()
	cache, err := NewCache(64, SnapshotTTL)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	t.Cleanup(cache.Close)
	agg := NewAggregator(erp, cache, metrics, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, _, err := agg.Fetch(context.Background(), "tenant-1"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if got := counterValue(t, metrics, "aiom_companyview_section_errors_total", map[string]string{
		"section": "helpdesk",
		"kind":    "module_missing",
	}); got != 1 {
		t.Errorf("section error counter = %v, want 1", got)
	}
}

// counterValue gathers the registry and returns the counter matching the
// given labels, or 0 if no such series exists.
func counterValue(t *testing.T, m *observability.MetricsCollector, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if !metricHasLabels(metric, labels) {
				continue
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func metricHasLabels(metric *dto.Metric, labels map[string]string) bool {
	got := make(map[string]string, len(metric.GetLabel()))
	for _, lp := range metric.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestFetchServesFromCache(t *testing.T) {
	erp := newFakeERP()
	agg := newTestAggregator(t, erp)

	first, hit, err := agg.Fetch(context.Background(), "tenant-1")
	if err != nil || hit {
		t.Fatalf("first fetch: hit=%v err=%v", hit, err)
	}
	callsAfterFirst := erp.callCount()

	second, hit, err := agg.Fetch(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !hit {
		t.Error("second fetch should hit the cache")
	}
	if second != first {
		t.Error("cache must return the same snapshot")
	}
	if erp.callCount() != callsAfterFirst {
		t.Error("cache hit must not reach the ERP")
	}

	// A different tenant never sees this cache entry.
	_, hit, err = agg.Fetch(context.Background(), "tenant-2")
	if err != nil || hit {
		t.Errorf("tenant-2 fetch: hit=%v err=%v", hit, err)
	}
}
