package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"crudd/internal/httpapi"
)

func newRoutesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the routes mounted for every resource",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, o)
			if err != nil {
				return err
			}
			res, err := loadResources(cfg)
			if err != nil {
				return err
			}
			svc := httpapi.NewService(res, nil)
			svc.Prefix = cfg.Prefix

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "METHODS\tPATTERN\tRESOURCE\tACTION")
			for _, rt := range svc.Routes() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", strings.Join(rt.Methods, ","), rt.Pattern, rt.Resource, rt.Action)
			}
			return tw.Flush()
		},
	}
}
