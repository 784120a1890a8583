package cli

import (
	"github.com/JonMunkholm/portfolio-import/internal/core"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

// Completion describes importctl's subcommands and flags for shell
// completion. Install with COMP_INSTALL=1 importctl.
func Completion() *complete.Command {
	kinds := predict.Set{}
	for _, spec := range core.Kinds() {
		kinds = append(kinds, string(spec.Kind))
	}
	currencies := predict.Set{}
	for _, c := range core.SupportedCurrencies() {
		currencies = append(currencies, c.Code)
	}

	return &complete.Command{
		Sub: map[string]*complete.Command{
			"import": {
				Flags: map[string]complete.Predictor{
					"account": predict.Something,
					"kind":    kinds,
					"source":  predict.Something,
					"dry-run": predict.Nothing,
					"json":    predict.Nothing,
				},
				Args: predict.Files("*.csv"),
			},
			"history": {
				Flags: map[string]complete.Predictor{
					"account": predict.Something,
					"limit":   predict.Something,
				},
			},
			"template": {
				Flags: map[string]complete.Predictor{
					"kind": kinds,
					"info": predict.Nothing,
				},
			},
			"formats": {},
			"account": {
				Flags: map[string]complete.Predictor{
					"create":   predict.Nothing,
					"name":     predict.Something,
					"currency": currencies,
				},
			},
			"migrate":  {},
			"help":     {},
			"commands": {},
			"flags":    {},
		},
	}
}
