package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/catalog"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show the topic catalog used for routing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalog()
		},
	}
	return cmd
}

func runCatalog() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cat, err := catalog.Load(filepath.Join(cfg.DataDir, catalogFile))
	if err != nil {
		return fmt.Errorf("no catalog found in %s, run 'quarry index' first", cfg.DataDir)
	}

	fmt.Printf("%d topics\n\n", cat.Len())
	cat.ForEach(func(e catalog.Entry) {
		fmt.Printf("%-20s %s\n", e.ID, e.Title)
		if len(e.Tags) > 0 {
			fmt.Printf("%-20s tags: %s\n", "", strings.Join(e.Tags, ", "))
		}
		if len(e.Keywords) > 0 {
			fmt.Printf("%-20s keywords: %s\n", "", strings.Join(e.Keywords, "; "))
		}
	})
	return nil
}
