package aggregator

import (
	"context"

	"econpulse/internal/cascade"
	"econpulse/internal/model"
	"econpulse/internal/providers"
	"econpulse/internal/providers/argdatos"
	"econpulse/internal/providers/bcra"
	"econpulse/internal/providers/coingecko"
	"econpulse/internal/providers/dolarapi"
	"econpulse/internal/providers/yahoo"
)

// DefaultFamilies wires the production cascade order: which source is
// primary and which substitutes for it is data here, not control flow
// inside the connectors.
func DefaultFamilies(
	dolar *dolarapi.Client,
	central *bcra.Client,
	backup *argdatos.Client,
	crypto *coingecko.Client,
	futures *yahoo.Client,
) []Family {
	return []Family{
		{
			Name: "cambio",
			Template: model.Indicator{
				ID:        "dolar-oficial",
				Name:      "Dólar Oficial",
				ShortName: "Oficial",
				Category:  model.CategoryExchangeRate,
				Unit:      "ARS",
				Decimals:  2,
			},
			Steps: []cascade.Step{
				{SourceID: dolar.Name(), Fetch: dolar.FetchIndicators},
			},
		},
		{
			Name: "monetarias",
			Template: model.Indicator{
				ID:        "inflacion-mensual",
				Name:      "Inflación Mensual",
				ShortName: "IPC",
				Category:  model.CategoryInflation,
				Unit:      "%",
				Decimals:  1,
				Frequency: model.FrequencyMonthly,
			},
			Steps: []cascade.Step{
				{SourceID: central.Name(), Fetch: central.FetchIndicators},
				{SourceID: backup.Name(), Fetch: singleIndicator(backup.FetchInflation)},
			},
		},
		{
			Name: "riesgo-pais",
			Template: model.Indicator{
				ID:        "riesgo-pais",
				Name:      "Riesgo País",
				ShortName: "Riesgo",
				Category:  model.CategoryRates,
				Unit:      "pb",
				Frequency: model.FrequencyDaily,
			},
			Steps: []cascade.Step{
				{SourceID: backup.Name(), Fetch: singleIndicator(backup.FetchCountryRisk)},
			},
		},
		{
			Name: "cripto",
			Template: model.Indicator{
				ID:        "bitcoin",
				Name:      "Bitcoin",
				ShortName: "BTC",
				Category:  model.CategoryCrypto,
				Unit:      "USD",
				Decimals:  2,
				Frequency: model.FrequencyRealtime,
			},
			Steps: []cascade.Step{
				{SourceID: crypto.Name(), Fetch: crypto.FetchIndicators},
			},
		},
		{
			Name: "commodities",
			Template: model.Indicator{
				ID:        "soja",
				Name:      "Soja",
				ShortName: "Soja",
				Category:  model.CategoryAgro,
				Unit:      "USD/t",
				Decimals:  2,
				Frequency: model.FrequencyRealtime,
			},
			Steps: []cascade.Step{
				{SourceID: futures.Name(), Fetch: futures.FetchIndicators},
			},
		},
	}
}

func singleIndicator(fetch func(context.Context) (model.Indicator, error)) providers.FetchFunc {
	return func(ctx context.Context) ([]model.Indicator, error) {
		indicator, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return []model.Indicator{indicator}, nil
	}
}
