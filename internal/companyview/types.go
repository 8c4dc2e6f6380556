// Package companyview aggregates read-only ERP data into a per-tenant
// dashboard snapshot: KPIs plus recent records for accounting, CRM,
// projects, helpdesk, and inventory, with per-section failure isolation
// and a short-lived cache.
package companyview

import "time"

// SectionError describes why one section could not be fetched. The flags
// let the UI distinguish "module not installed" from a real outage.
type SectionError struct {
	Message         string `json:"message"`
	IsModuleMissing bool   `json:"isModuleMissing,omitempty"`
	IsAuthError     bool   `json:"isAuthError,omitempty"`
}

// KPIs are the headline counts. Nil means the owning section failed and
// the count is unknown — never rendered as zero.
type KPIs struct {
	OpenInvoicesCount    *int `json:"openInvoicesCount"`
	OverdueInvoicesCount *int `json:"overdueInvoicesCount"`
	OpenLeadsCount       *int `json:"openLeadsCount"`
	OpenTasksCount       *int `json:"openTasksCount"`
	OpenTicketsCount     *int `json:"openTicketsCount"`
	LowStockItemsCount   *int `json:"lowStockItemsCount"`
}

// Invoice is one recent customer invoice.
type Invoice struct {
	ID          string  `json:"id"`
	Number      string  `json:"number"`
	PartnerName string  `json:"partnerName"`
	AmountTotal float64 `json:"amountTotal"`
	Currency    string  `json:"currency"`
	Status      string  `json:"status"` // draft|posted|paid|overdue|unknown
	InvoiceDate string  `json:"invoiceDate,omitempty"`
	DueDate     string  `json:"dueDate,omitempty"`
}

// AccountingSection lists recent posted invoices.
type AccountingSection struct {
	RecentInvoices []Invoice `json:"recentInvoices"`
}

// Lead is one open CRM opportunity.
type Lead struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	PartnerName     string   `json:"partnerName,omitempty"`
	StageName       string   `json:"stageName,omitempty"`
	ExpectedRevenue *float64 `json:"expectedRevenue"`
	Probability     *float64 `json:"probability"`
}

// CRMSection lists open opportunities by expected revenue.
type CRMSection struct {
	OpenLeads []Lead `json:"openLeads"`
}

// Task is one open project task.
type Task struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ProjectName  string `json:"projectName,omitempty"`
	StageName    string `json:"stageName,omitempty"`
	AssigneeName string `json:"assigneeName,omitempty"`
	Deadline     string `json:"deadline,omitempty"`
}

// ProjectsSection lists open tasks by deadline.
type ProjectsSection struct {
	OpenTasks []Task `json:"openTasks"`
}

// Ticket is one open helpdesk ticket.
type Ticket struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PartnerName string `json:"partnerName,omitempty"`
	StageName   string `json:"stageName,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

// HelpdeskSection lists open tickets by priority.
type HelpdeskSection struct {
	OpenTickets []Ticket `json:"openTickets"`
}

// StockItem is one product below its reorder threshold.
type StockItem struct {
	ID            string  `json:"id"`
	ProductName   string  `json:"productName"`
	QtyAvailable  float64 `json:"qtyAvailable"`
	ReorderMinQty float64 `json:"reorderMinQty"`
}

// InventorySection lists low-stock products.
type InventorySection struct {
	LowStockItems []StockItem `json:"lowStockItems"`
}

// Snapshot is the full aggregated dashboard for one tenant at one moment.
// RecommendedPollIntervalMs matches the snapshot cache TTL so clients do
// not poll faster than the data can change.
type Snapshot struct {
	TenantID                  string    `json:"tenantId"`
	RefreshedAt               time.Time `json:"refreshedAt"`
	RecommendedPollIntervalMs int       `json:"recommendedPollIntervalMs"`

	KPIs            KPIs                    `json:"kpis"`
	Accounting      AccountingSection       `json:"accounting"`
	CRM             CRMSection              `json:"crm"`
	Projects        ProjectsSection         `json:"projects"`
	Helpdesk        HelpdeskSection         `json:"helpdesk"`
	Inventory       InventorySection        `json:"inventory"`
	ErrorsBySection map[string]SectionError `json:"errorsBySection,omitempty"`
}
