package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vango-dev/deeplink/pkg/syncconfig"
)

func inspectCmd() *cobra.Command {
	var (
		routes  string
		asJSON  bool
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Validate a route file and list its declarations",
		Long: `Inspect reads a YAML route file, validates every route and prints
the synchronized parameters of each view.

Examples:
  deeplink inspect --routes routes.yaml
  deeplink inspect --routes routes.yaml --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := syncconfig.LoadFile(routes)
			if err != nil {
				return err
			}
			if asJSON {
				return printTableJSON(cmd.OutOrStdout(), table)
			}
			return printTable(cmd.OutOrStdout(), table, verbose)
		},
	}

	cmd.Flags().StringVarP(&routes, "routes", "r", "routes.yaml", "Route file to inspect")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the normalized routes as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List one declaration per line")

	return cmd
}

// printTable lists one route per line, or one declaration per line when
// verbose is set.
func printTable(w io.Writer, table *syncconfig.RouteTable, verbose bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if verbose {
		fmt.Fprintln(tw, "PATTERN\tVIEW\tKIND\tNAME\tTYPE")
	} else {
		fmt.Fprintln(tw, "PATTERN\tVIEW\tPATH\tQUERY")
	}

	for _, pattern := range table.Patterns() {
		cfg, err := table.Resolve(context.Background(), pattern)
		if err != nil {
			return err
		}
		if verbose {
			for _, d := range cfg.Declarations() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", pattern, cfg.View, d.Kind, d.Name, d.Type)
			}
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", pattern, cfg.View,
			declList(cfg.Params), declList(cfg.QueryParams))
	}
	return tw.Flush()
}

func declList(decls []syncconfig.Declaration) string {
	if len(decls) == 0 {
		return "-"
	}
	parts := make([]string, len(decls))
	for i, d := range decls {
		parts[i] = d.Name + ":" + string(d.Type)
	}
	return strings.Join(parts, ",")
}

func printTableJSON(w io.Writer, table *syncconfig.RouteTable) error {
	routes := make([]*syncconfig.Config, 0, len(table.Routes))
	for _, pattern := range table.Patterns() {
		cfg, err := table.Resolve(context.Background(), pattern)
		if err != nil {
			return err
		}
		routes = append(routes, cfg)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{"routes": routes})
}
