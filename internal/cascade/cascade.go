package cascade

import (
	"context"
	"log/slog"

	"econpulse/internal/model"
	"econpulse/internal/providers"
)

// Status is the terminal state of one cascade run. The state machine is
// TryPrimary -> TryBackup -> Empty; every run ends in one of these, callers
// never see an error.
type Status int

const (
	StatusOK Status = iota
	StatusDegraded
	StatusEmpty
)

const emptyDisclaimer = "no data available"

// DegradedDisclaimer is attached to indicators served by a backup source.
const DegradedDisclaimer = "dato referencial de fuente alternativa"

// Step is one source in the attempt order. Order is data, not control
// flow: the first step is the primary, the rest are backups.
type Step struct {
	SourceID string
	Fetch    providers.FetchFunc
}

// Result is the tagged outcome of a run. It is collapsed to flat Indicator
// records only at the serialization boundary via Flatten.
type Result struct {
	Status     Status
	Indicators []model.Indicator
	SourceID   string
	Reason     string
}

// Run walks the steps in order and returns the first success. A success
// from any step after the first is degraded; when every step fails the
// result is an explicit empty, never an error and never an invented value.
func Run(ctx context.Context, template model.Indicator, steps []Step) Result {
	var lastErr error
	for i, step := range steps {
		indicators, err := step.Fetch(ctx)
		if err != nil || len(indicators) == 0 {
			if err != nil {
				lastErr = err
				slog.Warn("source fetch failed",
					"source", step.SourceID,
					"indicator", template.ID,
					"error", err)
			}
			continue
		}

		if i == 0 {
			return Result{Status: StatusOK, Indicators: indicators, SourceID: step.SourceID}
		}
		return Result{
			Status:     StatusDegraded,
			Indicators: indicators,
			SourceID:   step.SourceID,
			Reason:     "primary source unavailable",
		}
	}

	reason := emptyDisclaimer
	if lastErr != nil {
		reason = lastErr.Error()
	}
	return Result{Status: StatusEmpty, Indicators: []model.Indicator{template}, Reason: reason}
}

// Flatten collapses the tagged result into flat indicator records with the
// degradation flags the consumer contract requires.
func (r Result) Flatten() []model.Indicator {
	out := make([]model.Indicator, len(r.Indicators))
	copy(out, r.Indicators)

	switch r.Status {
	case StatusOK:
	case StatusDegraded:
		for i := range out {
			out[i].IsFallback = true
			out[i].Disclaimer = DegradedDisclaimer
		}
	case StatusEmpty:
		for i := range out {
			out[i].Value = 0
			out[i].PreviousValue = 0
			out[i].Change = 0
			out[i].ChangePercent = 0
			out[i].NoData = true
			out[i].IsFallback = true
			out[i].Disclaimer = emptyDisclaimer
		}
	}
	return out
}
