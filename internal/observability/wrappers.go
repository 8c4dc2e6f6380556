package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/aiom/internal/odoo"
)

// --- InstrumentedOdooClient ---

// InstrumentedOdooClient wraps an odoo.Client with metrics and tracing.
type InstrumentedOdooClient struct {
	inner   odoo.Client
	metrics *MetricsCollector
	tracer  trace.Tracer
}

// Compile-time interface check.
var _ odoo.Client = (*InstrumentedOdooClient)(nil)

// InstrumentOdooClient wraps an ERP client with observability. With nil
// metrics and tracing it degrades to a pass-through.
func InstrumentOdooClient(inner odoo.Client, metrics *MetricsCollector, ts *TracerSetup) *InstrumentedOdooClient {
	var tracer trace.Tracer
	if ts != nil {
		tracer = ts.Tracer()
	}
	return &InstrumentedOdooClient{inner: inner, metrics: metrics, tracer: tracer}
}

func (c *InstrumentedOdooClient) observe(ctx context.Context, model, method string, call func(context.Context) error) error {
	if c.tracer != nil {
		var span trace.Span
		ctx, span = c.tracer.Start(ctx, "odoo."+method,
			trace.WithAttributes(
				attribute.String("odoo.model", model),
				attribute.String("odoo.method", method),
			))
		defer span.End()
	}

	start := time.Now()
	err := call(ctx)
	duration := time.Since(start).Seconds()

	status := "success"
	if err != nil {
		status = "error"
		if c.tracer != nil {
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}

	if c.metrics != nil {
		c.metrics.OdooRequestsTotal.WithLabelValues(model, method, status).Inc()
		c.metrics.OdooRequestDuration.WithLabelValues(model, method).Observe(duration)
	}

	return err
}

func (c *InstrumentedOdooClient) SearchRead(ctx context.Context, model string, domain odoo.Domain, opts odoo.SearchReadOptions) ([]odoo.Record, error) {
	var records []odoo.Record
	err := c.observe(ctx, model, "search_read", func(ctx context.Context) error {
		var err error
		records, err = c.inner.SearchRead(ctx, model, domain, opts)
		return err
	})
	return records, err
}

func (c *InstrumentedOdooClient) SearchCount(ctx context.Context, model string, domain odoo.Domain) (int, error) {
	var count int
	err := c.observe(ctx, model, "search_count", func(ctx context.Context) error {
		var err error
		count, err = c.inner.SearchCount(ctx, model, domain)
		return err
	})
	return count, err
}

func (c *InstrumentedOdooClient) Create(ctx context.Context, model string, values map[string]any) (int64, error) {
	var id int64
	err := c.observe(ctx, model, "create", func(ctx context.Context) error {
		var err error
		id, err = c.inner.Create(ctx, model, values)
		return err
	})
	return id, err
}

func (c *InstrumentedOdooClient) Ping(ctx context.Context) error {
	return c.observe(ctx, "common", "ping", c.inner.Ping)
}

// --- Recorder helpers ---
// Nil-safe counters for call sites that hold a possibly-nil collector.

// RecordProposal counts a proposal request by outcome
// ("created", "replayed", "no_intent_match", "tool_not_found", "error").
func (m *MetricsCollector) RecordProposal(outcome string) {
	if m == nil {
		return
	}
	m.ProposalsTotal.WithLabelValues(outcome).Inc()
}

// RecordPolicyDecision counts one policy evaluation.
func (m *MetricsCollector) RecordPolicyDecision(tool, decision string) {
	if m == nil {
		return
	}
	m.PolicyDecisionsTotal.WithLabelValues(tool, decision).Inc()
}

// RecordToolExecution counts one execution and its duration.
func (m *MetricsCollector) RecordToolExecution(tool, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ToolExecutionsTotal.WithLabelValues(tool, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordCompanyView counts a company view request ("hit" or "miss").
func (m *MetricsCollector) RecordCompanyView(cache string) {
	if m == nil {
		return
	}
	m.CompanyViewRequestsTotal.WithLabelValues(cache).Inc()
}

// RecordSectionError counts one section failure by kind
// ("module_missing", "auth", "timeout", "other").
func (m *MetricsCollector) RecordSectionError(section, kind string) {
	if m == nil {
		return
	}
	m.SectionErrorsTotal.WithLabelValues(section, kind).Inc()
}

// RecordSectionFetch observes how long one section fetch took.
func (m *MetricsCollector) RecordSectionFetch(section string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SectionFetchDuration.WithLabelValues(section).Observe(duration.Seconds())
}
