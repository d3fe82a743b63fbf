package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cbdcwatch/monitor/internal/collector"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := collector.LoadCatalog(cfg.SourcesFile)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tKIND\tFEEDS\tCONTENT")
		for _, src := range catalog.Sources {
			feeds := len(src.Feeds)
			if src.Kind == collector.KindHTMLList {
				feeds = 1
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%v\n", src.Name, src.Kind, feeds, src.FetchContent)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
