package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alem-hub/progression-engine/internal/infrastructure/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect achievement catalogs",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a YAML or TOML catalog and print its contents",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogValidate,
}

func init() {
	catalogCmd.AddCommand(catalogValidateCmd)
	rootCmd.AddCommand(catalogCmd)
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	defs, err := catalog.Load(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d achievement(s), %d level(s)\n\n",
		defs.Source, defs.Catalog.Len(), len(defs.Levels.Thresholds()))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPOINTS")
	for _, def := range defs.Catalog.All() {
		fmt.Fprintf(w, "%s\t%s\t%d\n", def.ID, def.Name, def.PointsAwarded)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "LEVEL\tMIN POINTS\t")
	for _, th := range defs.Levels.Thresholds() {
		fmt.Fprintf(w, "%d\t%d\t\n", th.Level, th.MinPoints)
	}
	return w.Flush()
}
