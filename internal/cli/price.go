package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/engine"
	"github.com/INSPIRATIONlabs/ofmlgo/internal/export"
)

var (
	priceManufacturer string
	priceSeries       string
	priceArticle      string
	priceDate         string
	priceSelections   []string
	exportOut         string
)

var priceCmd = &cobra.Command{
	Use:   "price",
	Short: "Calculate the itemized price of a configured article",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cfg, err := configure()
		if err != nil {
			return err
		}
		defer app.close()

		price := app.engine.CalculatePrice(cfg, effectiveDate(app))

		fmt.Printf("%s  %s/%s\n", cfg.ArticleNr, priceManufacturer, priceSeries)
		fmt.Printf("  base       %10.2f %s\n", price.Base, price.Currency)
		for _, li := range price.Surcharges {
			label := li.VarCond
			if li.Description != "" {
				label = li.Description
			}
			fmt.Printf("  + %-24s %8.2f\n", label, li.Amount)
		}
		for _, li := range price.Discounts {
			label := li.VarCond
			if li.Description != "" {
				label = li.Description
			}
			fmt.Printf("  - %-24s %8.2f\n", label, li.Amount)
		}
		fmt.Printf("  total      %10.2f %s\n", price.Total, price.Currency)

		for _, w := range app.engine.Warnings(cfg) {
			fmt.Fprintf(os.Stderr, "warning [%s] %s\n", w.Code, w.Message)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a configured article as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cfg, err := configure()
		if err != nil {
			return err
		}
		defer app.close()

		price := app.engine.CalculatePrice(cfg, effectiveDate(app))
		doc := export.Build(cfg, price, app.engine.Warnings(cfg), time.Now())
		out, err := export.Marshal(doc)
		if err != nil {
			return err
		}
		if exportOut == "" || exportOut == "-" {
			fmt.Println(string(out))
			return nil
		}
		return os.WriteFile(exportOut, out, 0o644)
	},
}

// configure runs the shared price/export setup: load the series, create the
// configuration and apply the --set selections.
func configure() (*appContext, *engine.Configuration, error) {
	app, err := setup()
	if err != nil {
		return nil, nil, err
	}
	model, err := app.loadSeries(priceManufacturer, priceSeries)
	if err != nil {
		app.close()
		return nil, nil, err
	}
	cfg, err := app.engine.CreateConfiguration(model, priceArticle)
	if err != nil {
		app.close()
		return nil, nil, fmt.Errorf("article %q: %w", priceArticle, err)
	}
	for _, kv := range priceSelections {
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			app.close()
			return nil, nil, fmt.Errorf("--set %q: expected PROPERTY=VALUE", kv)
		}
		if err := app.engine.SetProperty(cfg, key, val); err != nil {
			app.close()
			return nil, nil, fmt.Errorf("--set %s: %w", kv, err)
		}
	}
	return app, cfg, nil
}

func effectiveDate(app *appContext) string {
	if priceDate != "" {
		return priceDate
	}
	if app.cfg.PriceDate != "" {
		return app.cfg.PriceDate
	}
	return time.Now().Format("20060102")
}

func init() {
	for _, cmd := range []*cobra.Command{priceCmd, exportCmd} {
		cmd.Flags().StringVarP(&priceManufacturer, "manufacturer", "m", "", "manufacturer id")
		cmd.Flags().StringVarP(&priceSeries, "series", "s", "", "series id")
		cmd.Flags().StringVarP(&priceArticle, "article", "a", "", "article number")
		cmd.Flags().StringVar(&priceDate, "date", "", "price date (YYYYMMDD or YYYY-MM-DD, default today)")
		cmd.Flags().StringArrayVar(&priceSelections, "set", nil, "property selection PROPERTY=VALUE (repeatable)")
		_ = cmd.MarkFlagRequired("manufacturer")
		_ = cmd.MarkFlagRequired("series")
		_ = cmd.MarkFlagRequired("article")
	}
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")

	rootCmd.AddCommand(priceCmd)
	rootCmd.AddCommand(exportCmd)
}
