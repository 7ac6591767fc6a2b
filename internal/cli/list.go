package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List manufacturers and series under the data root",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setup()
		if err != nil {
			return err
		}
		defer app.close()

		manufacturers := app.engine.DiscoverManufacturers()
		if len(manufacturers) == 0 {
			fmt.Printf("no manufacturers under %s\n", app.cfg.DataRoot)
			return nil
		}
		for _, m := range manufacturers {
			fmt.Println(m.ID)
			for _, s := range m.Series {
				marker := " "
				if s.DataPath == "" {
					marker = "!"
				}
				fmt.Printf("  %s %s\n", marker, s.ID)
			}
		}
		return nil
	},
}

var familiesCmd = &cobra.Command{
	Use:   "families",
	Short: "List product families of one series",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setup()
		if err != nil {
			return err
		}
		defer app.close()

		model, err := app.loadSeries(flagManufacturer, flagSeries)
		if err != nil {
			return err
		}
		for _, fam := range app.engine.ListFamilies(model) {
			fmt.Printf("%-30s %4d variants  representative %s\n",
				fam.Name, fam.VariantCount, fam.RepresentativeArticleNr)
		}
		return nil
	},
}

var (
	flagManufacturer string
	flagSeries       string
)

func init() {
	familiesCmd.Flags().StringVarP(&flagManufacturer, "manufacturer", "m", "", "manufacturer id")
	familiesCmd.Flags().StringVarP(&flagSeries, "series", "s", "", "series id")
	_ = familiesCmd.MarkFlagRequired("manufacturer")
	_ = familiesCmd.MarkFlagRequired("series")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(familiesCmd)
}
