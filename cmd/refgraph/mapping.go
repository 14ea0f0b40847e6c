package main

import (
	"fmt"
	"sort"

	"github.com/refgraph/refgraph/internal/category"
	"github.com/refgraph/refgraph/internal/field"
	"github.com/spf13/cobra"
)

var (
	mappingCategory string
	mappingFile     string
)

func init() {
	mappingCmd.Flags().StringVar(&mappingCategory, "category", "", "Show only this category (papers, authors, keywords, crossrefs)")
	mappingCmd.Flags().StringVar(&mappingFile, "mapping", "", "YAML file overriding column mappings per category")
	rootCmd.AddCommand(mappingCmd)
}

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Show the effective column mappings",
	Long: `Show the effective column-to-role mappings per category.

The built-in header synonyms are listed per category, overlaid with the
overrides from --mapping when one is given. Headers match
case-insensitively with runs of whitespace collapsed.`,
	Args: cobra.NoArgs,
	RunE: runMapping,
}

func runMapping(cmd *cobra.Command, args []string) error {
	overrides := mustLoadMappings(mappingFile)

	cats := category.All
	if mappingCategory != "" {
		cat, err := category.Parse(mappingCategory)
		if err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}
		cats = []category.Category{cat}
	}

	effective := make(map[string]map[string]string, len(cats))
	for _, cat := range cats {
		m := field.DefaultMapping(cat)
		if o, ok := overrides[cat]; ok {
			m = o
		}
		table := make(map[string]string, len(m))
		for header, role := range m {
			table[header] = role.String()
		}
		effective[cat.String()] = table
	}

	if humanOutput {
		for _, cat := range cats {
			table := effective[cat.String()]
			headers := make([]string, 0, len(table))
			for h := range table {
				headers = append(headers, h)
			}
			sort.Strings(headers)
			fmt.Printf("%s:\n", cat)
			for _, h := range headers {
				fmt.Printf("  %-20s %s\n", h, table[h])
			}
			fmt.Println()
		}
	} else {
		outputJSON(effective)
	}
	return nil
}
