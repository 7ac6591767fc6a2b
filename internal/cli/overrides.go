package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/INSPIRATIONlabs/ofmlgo/internal/ocd"
	"github.com/INSPIRATIONlabs/ofmlgo/internal/storage/overrides"
)

var overridesDB string

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "Manage the known-good price override database",
}

// CSV columns: manufacturer, series, article_nr, price[, currency[, level]].
var overridesImportCmd = &cobra.Command{
	Use:   "import <csv-file>",
	Short: "Import known-good prices from a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := overrides.Open(overridesDB)
		if err != nil {
			return err
		}
		defer store.Close()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		r := csv.NewReader(f)
		r.FieldsPerRecord = -1
		imported, line := 0, 0
		for {
			row, err := r.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("line %d: %w", line+1, err)
			}
			line++
			if len(row) < 4 {
				return fmt.Errorf("line %d: need manufacturer,series,article_nr,price", line)
			}
			price, err := strconv.ParseFloat(row[3], 64)
			if err != nil {
				return fmt.Errorf("line %d: price %q: %w", line, row[3], err)
			}
			ov := ocd.Override{Price: price}
			if len(row) > 4 {
				ov.Currency = row[4]
			}
			if len(row) > 5 {
				ov.PriceLevel = row[5]
			}
			if err := store.Put(row[0], row[1], row[2], ov); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			imported++
		}
		fmt.Printf("imported %d overrides into %s\n", imported, overridesDB)
		return nil
	},
}

func init() {
	overridesCmd.PersistentFlags().StringVar(&overridesDB, "db", "./overrides.db", "override database path")
	overridesCmd.AddCommand(overridesImportCmd)
	rootCmd.AddCommand(overridesCmd)
}
