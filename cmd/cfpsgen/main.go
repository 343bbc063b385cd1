// cfpsgen extracts variables from the CFPS survey archive and merges
// them across survey years into a single dataset.
package main

import (
	"github.com/spf13/cobra"
)

func addCommands(root *cobra.Command) {
	// Catalog
	cmd := &cobra.Command{
		Use:   "variables",
		Short: "List the variables in the catalog and the years they are available",
		Args:  cobra.NoArgs,
		Run:   listVariables}
	cmd.Flags().Int("limit", 0, "list at most this many variables (0 for all)")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "mapping",
		Short: "Show the source column of each variable in each year",
		Args:  cobra.NoArgs,
		Run:   showMapping}
	cmd.Flags().IntSlice("years", nil, "survey years (default: all configured years)")
	cmd.Flags().StringSlice("vars", nil, "variable names")
	cmd.MarkFlagRequired("vars")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "path",
		Short: "Show the location of a data file",
		Args:  cobra.NoArgs,
		Run:   showPath}
	cmd.Flags().Int("year", 0, "survey year")
	cmd.Flags().String("type", "adult", "data type: adult, child, famecon, famconf, crossyear, crossyearid, community")
	root.AddCommand(cmd)

	// Datasets
	cmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate a merged dataset",
		Args:  cobra.NoArgs,
		Run:   generate}
	cmd.Flags().IntSlice("years", nil, "survey years (default: all configured years)")
	cmd.Flags().StringSlice("vars", nil, "variable names")
	cmd.Flags().String("name", "", "name of the output file, without extension")
	cmd.MarkFlagRequired("vars")
	cmd.MarkFlagRequired("name")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "demo",
		Short: "Generate a small dataset with gender, hukou and education for 2018 and 2020",
		Args:  cobra.NoArgs,
		Run:   demo}
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "internet",
		Short: "Generate the internet use dataset",
		Args:  cobra.NoArgs,
		Run:   internet}
	cmd.Flags().String("name", internetName, "name of the output file, without extension")
	cmd.Flags().Bool("analyze", false, "draw the gender difference figures for the new dataset, which is named "+analysisName+" unless --name is given")
	root.AddCommand(cmd)

	cmd = &cobra.Command{
		Use:   "analyze [dataset]",
		Short: "Draw gender difference figures for an internet use dataset",
		Args:  cobra.MaximumNArgs(1),
		Run:   analyze}
	cmd.Flags().String("out", "", "directory for the figures (default: output directory)")
	cmd.Flags().Bool("text", false, "also print the statistics")
	root.AddCommand(cmd)

	// Source files
	cmd = &cobra.Command{
		Use:   "inspect file",
		Short: "List the columns of a Stata or SAS file, or dump it as CSV",
		Args:  cobra.ExactArgs(1),
		Run:   inspect}
	cmd.Flags().Bool("csv", false, "write the file contents as CSV to standard output")
	root.AddCommand(cmd)
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:          "cfpsgen",
		Short:        "Merge CFPS survey variables across years",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "YAML config file")
	root.PersistentFlags().String("catalog", "cfps-merge.csv", "variable catalog (CSV)")
	root.PersistentFlags().String("catalog-encoding", "", "text encoding of the catalog, e.g. gbk (default: utf-8)")
	root.PersistentFlags().String("base-dir", "", "root of the CFPS archive")
	root.PersistentFlags().String("output-dir", "", "directory for generated datasets")
	root.PersistentFlags().String("format", "", "output format, 'parquet' or 'csv'")
	root.PersistentFlags().Bool("strict", false, "stop when a source file cannot be read")
	root.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	addCommands(root)
	return root
}

func main() {
	newRoot().Execute()
}
