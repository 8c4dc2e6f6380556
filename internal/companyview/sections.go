package companyview

import (
	"context"
	"strconv"
	"time"

	"github.com/jkaninda/aiom/internal/odoo"
)

// Per-section defaults mirroring the dashboard's layout.
const (
	recentLimit      = 10
	inventoryScanMax = 100
)

// sectionFetch retrieves one section's data and returns a closure that
// writes it into the snapshot. Building data locally and applying it later
// lets the aggregator serialize snapshot writes without holding a lock
// across RPC calls.
type sectionFetch func(ctx context.Context, client odoo.Client) (func(*Snapshot), error)

// sections lists every fetcher with its wire name. Order matters only for
// deterministic error reporting.
var sections = []struct {
	name    string
	fetch   sectionFetch
	failMsg string
}{
	{"accounting", fetchAccounting, "Failed to fetch accounting data"},
	{"crm", fetchCRM, "Failed to fetch CRM data"},
	{"projects", fetchProjects, "Failed to fetch projects data"},
	{"helpdesk", fetchHelpdesk, "Failed to fetch helpdesk data"},
	{"inventory", fetchInventory, "Failed to fetch inventory data"},
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func fetchAccounting(ctx context.Context, client odoo.Client) (func(*Snapshot), error) {
	postedInvoices := odoo.Domain{
		odoo.Condition("move_type", "in", []string{"out_invoice", "out_refund"}),
		odoo.Condition("state", "=", "posted"),
	}

	records, err := client.SearchRead(ctx, "account.move", postedInvoices, odoo.SearchReadOptions{
		Fields: []string{
			"id", "name", "partner_id", "amount_total", "currency_id",
			"state", "payment_state", "invoice_date", "invoice_date_due",
		},
		Limit: recentLimit,
		Order: "invoice_date desc",
	})
	if err != nil {
		return nil, err
	}

	unpaid := append(postedInvoices, odoo.Condition("payment_state", "in", []string{"not_paid", "partial"}))
	openCount, err := client.SearchCount(ctx, "account.move", unpaid)
	if err != nil {
		return nil, err
	}

	today := time.Now().UTC().Format("2006-01-02")
	overdueCount, err := client.SearchCount(ctx, "account.move",
		append(unpaid, odoo.Condition("invoice_date_due", "<", today)))
	if err != nil {
		return nil, err
	}

	invoices := make([]Invoice, 0, len(records))
	for _, rec := range records {
		invoices = append(invoices, Invoice{
			ID:          rec.ID(),
			Number:      rec.Str("name"),
			PartnerName: rec.RelName("partner_id"),
			AmountTotal: rec.Float("amount_total"),
			Currency:    rec.RelName("currency_id"),
			Status:      invoiceStatus(rec, today),
			InvoiceDate: rec.Str("invoice_date"),
			DueDate:     rec.Str("invoice_date_due"),
		})
	}

	return func(s *Snapshot) {
		s.Accounting.RecentInvoices = invoices
		s.KPIs.OpenInvoicesCount = intPtr(openCount)
		s.KPIs.OverdueInvoicesCount = intPtr(overdueCount)
	}, nil
}

func invoiceStatus(rec odoo.Record, today string) string {
	state := rec.Str("state")
	payment := rec.Str("payment_state")
	switch {
	case payment == "paid":
		return "paid"
	case state == "posted" && payment == "not_paid":
		if due := rec.Str("invoice_date_due"); due != "" && due < today {
			return "overdue"
		}
		return "posted"
	case state == "draft":
		return "draft"
	default:
		return "unknown"
	}
}

func fetchCRM(ctx context.Context, client odoo.Client) (func(*Snapshot), error) {
	openOpportunities := odoo.Domain{
		odoo.Condition("type", "=", "opportunity"),
		odoo.Condition("active", "=", true),
	}

	records, err := client.SearchRead(ctx, "crm.lead", openOpportunities, odoo.SearchReadOptions{
		Fields: []string{"id", "name", "partner_id", "stage_id", "expected_revenue", "probability"},
		Limit:  recentLimit,
		Order:  "expected_revenue desc",
	})
	if err != nil {
		return nil, err
	}

	count, err := client.SearchCount(ctx, "crm.lead", openOpportunities)
	if err != nil {
		return nil, err
	}

	leads := make([]Lead, 0, len(records))
	for _, rec := range records {
		leads = append(leads, Lead{
			ID:              rec.ID(),
			Name:            rec.Str("name"),
			PartnerName:     rec.RelName("partner_id"),
			StageName:       rec.RelName("stage_id"),
			ExpectedRevenue: floatPtr(rec.Float("expected_revenue")),
			Probability:     floatPtr(rec.Float("probability")),
		})
	}

	return func(s *Snapshot) {
		s.CRM.OpenLeads = leads
		s.KPIs.OpenLeadsCount = intPtr(count)
	}, nil
}

func fetchProjects(ctx context.Context, client odoo.Client) (func(*Snapshot), error) {
	openTasks := odoo.Domain{odoo.Condition("active", "=", true)}

	records, err := client.SearchRead(ctx, "project.task", openTasks, odoo.SearchReadOptions{
		Fields: []string{"id", "name", "project_id", "stage_id", "user_ids", "date_deadline"},
		Limit:  recentLimit,
		Order:  "date_deadline asc",
	})
	if err != nil {
		return nil, err
	}

	count, err := client.SearchCount(ctx, "project.task", openTasks)
	if err != nil {
		return nil, err
	}

	tasks := make([]Task, 0, len(records))
	for _, rec := range records {
		tasks = append(tasks, Task{
			ID:           rec.ID(),
			Name:         rec.Str("name"),
			ProjectName:  rec.RelName("project_id"),
			StageName:    rec.RelName("stage_id"),
			AssigneeName: firstAssignee(rec),
			Deadline:     rec.Str("date_deadline"),
		})
	}

	return func(s *Snapshot) {
		s.Projects.OpenTasks = tasks
		s.KPIs.OpenTasksCount = intPtr(count)
	}, nil
}

// firstAssignee extracts the first user from a many2many user_ids field.
func firstAssignee(rec odoo.Record) string {
	ids, ok := rec["user_ids"].([]any)
	if !ok || len(ids) == 0 {
		return ""
	}
	switch v := ids[0].(type) {
	case float64:
		return strconv.Itoa(int(v))
	case string:
		return v
	}
	return ""
}

func fetchHelpdesk(ctx context.Context, client odoo.Client) (func(*Snapshot), error) {
	openTickets := odoo.Domain{odoo.Condition("active", "=", true)}

	records, err := client.SearchRead(ctx, "helpdesk.ticket", openTickets, odoo.SearchReadOptions{
		Fields: []string{"id", "name", "partner_id", "stage_id", "priority"},
		Limit:  recentLimit,
		Order:  "priority desc, create_date desc",
	})
	if err != nil {
		return nil, err
	}

	count, err := client.SearchCount(ctx, "helpdesk.ticket", openTickets)
	if err != nil {
		return nil, err
	}

	tickets := make([]Ticket, 0, len(records))
	for _, rec := range records {
		tickets = append(tickets, Ticket{
			ID:          rec.ID(),
			Name:        rec.Str("name"),
			PartnerName: rec.RelName("partner_id"),
			StageName:   rec.RelName("stage_id"),
			Priority:    rec.Str("priority"),
		})
	}

	return func(s *Snapshot) {
		s.Helpdesk.OpenTickets = tickets
		s.KPIs.OpenTicketsCount = intPtr(count)
	}, nil
}

func fetchInventory(ctx context.Context, client odoo.Client) (func(*Snapshot), error) {
	storableProducts := odoo.Domain{
		odoo.Condition("type", "=", "product"),
		odoo.Condition("active", "=", true),
	}

	// Odoo domains cannot compare two fields, so fetch a window of storable
	// products and filter for low stock client-side.
	records, err := client.SearchRead(ctx, "product.product", storableProducts, odoo.SearchReadOptions{
		Fields: []string{"id", "display_name", "qty_available", "reordering_min_qty"},
		Limit:  inventoryScanMax,
	})
	if err != nil {
		return nil, err
	}

	var low []StockItem
	for _, rec := range records {
		minQty := rec.Float("reordering_min_qty")
		if minQty > 0 && rec.Float("qty_available") < minQty {
			low = append(low, StockItem{
				ID:            rec.ID(),
				ProductName:   rec.Str("display_name"),
				QtyAvailable:  rec.Float("qty_available"),
				ReorderMinQty: minQty,
			})
		}
	}

	total := len(low)
	if len(low) > recentLimit {
		low = low[:recentLimit]
	}
	if low == nil {
		low = []StockItem{}
	}

	return func(s *Snapshot) {
		s.Inventory.LowStockItems = low
		s.KPIs.LowStockItemsCount = intPtr(total)
	}, nil
}
