package cascade

import (
	"context"
	"errors"
	"testing"

	"econpulse/internal/model"
)

var errDown = errors.New("source down")

func fixed(value float64, source string) func(context.Context) ([]model.Indicator, error) {
	return func(context.Context) ([]model.Indicator, error) {
		return []model.Indicator{{ID: "inflacion-mensual", Value: value, Source: source}}, nil
	}
}

func failing(context.Context) ([]model.Indicator, error) {
	return nil, errDown
}

func template() model.Indicator {
	return model.Indicator{
		ID:       "inflacion-mensual",
		Name:     "Inflación Mensual",
		Category: model.CategoryInflation,
	}
}

func TestPrimarySuccess(t *testing.T) {
	result := Run(context.Background(), template(), []Step{
		{SourceID: "bcra", Fetch: fixed(2.8, "bcra")},
		{SourceID: "argentinadatos", Fetch: failing},
	})

	if result.Status != StatusOK {
		t.Fatalf("expected StatusOK, got %v", result.Status)
	}
	flat := result.Flatten()
	if flat[0].IsFallback || flat[0].NoData {
		t.Error("primary success must carry no degradation flags")
	}
	if flat[0].Value != 2.8 {
		t.Errorf("expected 2.8, got %v", flat[0].Value)
	}
}

func TestBackupIsDegraded(t *testing.T) {
	result := Run(context.Background(), template(), []Step{
		{SourceID: "bcra", Fetch: failing},
		{SourceID: "argentinadatos", Fetch: fixed(2.9, "argentinadatos")},
	})

	if result.Status != StatusDegraded {
		t.Fatalf("expected StatusDegraded, got %v", result.Status)
	}
	if result.SourceID != "argentinadatos" {
		t.Errorf("expected backup source id, got %s", result.SourceID)
	}

	flat := result.Flatten()
	if !flat[0].IsFallback {
		t.Error("backup result must be flagged as fallback")
	}
	if flat[0].NoData {
		t.Error("backup success is not a no-data state")
	}
	if flat[0].Value != 2.9 {
		t.Errorf("expected backup value 2.9, got %v", flat[0].Value)
	}
	if flat[0].Disclaimer == "" {
		t.Error("degraded result must carry a disclaimer")
	}
}

func TestAllFailingIsEmpty(t *testing.T) {
	result := Run(context.Background(), template(), []Step{
		{SourceID: "bcra", Fetch: failing},
		{SourceID: "argentinadatos", Fetch: failing},
	})

	if result.Status != StatusEmpty {
		t.Fatalf("expected StatusEmpty, got %v", result.Status)
	}

	flat := result.Flatten()
	if len(flat) != 1 {
		t.Fatalf("expected exactly the template indicator, got %d", len(flat))
	}
	got := flat[0]
	if got.Value != 0 {
		t.Errorf("empty result must have zero value, got %v", got.Value)
	}
	if !got.NoData || !got.IsFallback {
		t.Error("empty result must set both NoData and IsFallback")
	}
	if got.Disclaimer != "no data available" {
		t.Errorf("unexpected disclaimer %q", got.Disclaimer)
	}
	if got.ID != "inflacion-mensual" || got.Category != model.CategoryInflation {
		t.Error("empty result must preserve the template identity")
	}
}

func TestEmptySliceSuccessIsFailure(t *testing.T) {
	empty := func(context.Context) ([]model.Indicator, error) { return nil, nil }
	result := Run(context.Background(), template(), []Step{
		{SourceID: "bcra", Fetch: empty},
	})
	if result.Status != StatusEmpty {
		t.Fatalf("a nil slice without error is still no data, got %v", result.Status)
	}
}

func TestFlattenDoesNotMutateResult(t *testing.T) {
	result := Run(context.Background(), template(), []Step{
		{SourceID: "bcra", Fetch: failing},
		{SourceID: "argentinadatos", Fetch: fixed(2.9, "argentinadatos")},
	})

	_ = result.Flatten()
	if result.Indicators[0].IsFallback {
		t.Error("Flatten must work on a copy, the tagged result stays clean")
	}
}
