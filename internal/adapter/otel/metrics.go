package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "salesforge"

// Metrics holds all SalesForge metric instruments.
type Metrics struct {
	MessagesHandled  metric.Int64Counter
	StageTransitions metric.Int64Counter
	Handoffs         metric.Int64Counter
	LeadsUpserted    metric.Int64Counter
	ProviderErrors   metric.Int64Counter
	ChatDuration     metric.Float64Histogram
	ProviderTokens   metric.Int64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.MessagesHandled, err = meter.Int64Counter("salesforge.chat.messages",
		metric.WithDescription("Number of inbound chat messages handled"))
	if err != nil {
		return nil, err
	}

	m.StageTransitions, err = meter.Int64Counter("salesforge.funnel.transitions",
		metric.WithDescription("Number of funnel stage transitions"))
	if err != nil {
		return nil, err
	}

	m.Handoffs, err = meter.Int64Counter("salesforge.handoffs",
		metric.WithDescription("Number of conversations escalated to a human"))
	if err != nil {
		return nil, err
	}

	m.LeadsUpserted, err = meter.Int64Counter("salesforge.leads.upserted",
		metric.WithDescription("Number of lead records created or updated"))
	if err != nil {
		return nil, err
	}

	m.ProviderErrors, err = meter.Int64Counter("salesforge.provider.errors",
		metric.WithDescription("Number of failed LLM provider calls"))
	if err != nil {
		return nil, err
	}

	m.ChatDuration, err = meter.Float64Histogram("salesforge.chat.duration_seconds",
		metric.WithDescription("End-to-end chat turn duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.ProviderTokens, err = meter.Int64Histogram("salesforge.provider.tokens",
		metric.WithDescription("Tokens consumed per provider call"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
