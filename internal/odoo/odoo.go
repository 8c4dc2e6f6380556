// Package odoo provides a read/write JSON-RPC client for an Odoo ERP
// instance. All higher layers depend on the Client interface, never on the
// wire implementation.
package odoo

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Domain is an Odoo search domain: a list of [field, operator, value]
// triplets (plus the occasional prefix operator string).
type Domain []any

// Condition builds a single domain triplet.
func Condition(field, operator string, value any) []any {
	return []any{field, operator, value}
}

// SearchReadOptions narrows a SearchRead call.
type SearchReadOptions struct {
	Fields []string
	Limit  int
	Offset int
	Order  string
}

// Record is one Odoo record as returned by search_read. Relational fields
// come back as [id, display_name] pairs; use the accessors below.
type Record map[string]any

// Str returns the field as a string, or "" when absent or false.
// Odoo encodes empty fields as boolean false.
func (r Record) Str(field string) string {
	if s, ok := r[field].(string); ok {
		return s
	}
	return ""
}

// Float returns the field as a float64, or 0.
func (r Record) Float(field string) float64 {
	if f, ok := r[field].(float64); ok {
		return f
	}
	return 0
}

// ID returns the record's integer id as a string.
func (r Record) ID() string {
	if f, ok := r["id"].(float64); ok {
		return fmt.Sprintf("%.0f", f)
	}
	return ""
}

// RelName returns the display name of a many2one field ([id, name] pair),
// or "" when the field is unset.
func (r Record) RelName(field string) string {
	pair, ok := r[field].([]any)
	if !ok || len(pair) < 2 {
		return ""
	}
	name, _ := pair[1].(string)
	return name
}

// Client is the ERP surface the rest of the system consumes.
type Client interface {
	// SearchRead searches the model and returns matching records.
	SearchRead(ctx context.Context, model string, domain Domain, opts SearchReadOptions) ([]Record, error)

	// SearchCount returns the number of records matching the domain.
	SearchCount(ctx context.Context, model string, domain Domain) (int, error)

	// Create inserts a record and returns its id.
	Create(ctx context.Context, model string, values map[string]any) (int64, error)

	// Ping verifies the instance is reachable and credentials are valid.
	Ping(ctx context.Context) error
}

// ErrAuth indicates rejected credentials or an expired session.
var ErrAuth = errors.New("odoo authentication failed")

// RPCError is a structured fault returned by the Odoo server.
type RPCError struct {
	Model   string
	Method  string
	Code    int
	Message string
	Data    string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("odoo %s.%s: %s", e.Model, e.Method, e.Message)
}

// IsModuleMissing reports whether the error indicates the model's Odoo
// module is not installed. Odoo has no dedicated fault code for this, so
// the check matches the server's message text.
func IsModuleMissing(err error) bool {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	msg := rpcErr.Message + " " + rpcErr.Data
	if !strings.Contains(msg, rpcErr.Model) {
		return false
	}
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

// IsAuthError reports whether the error is an authentication failure.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrAuth) {
		return true
	}
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	msg := strings.ToLower(rpcErr.Message)
	return strings.Contains(msg, "authentication") || strings.Contains(msg, "access denied")
}
