package main

import (
	stderrors "errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/deeplink/internal/errors"
	"github.com/vango-dev/deeplink/pkg/coerce"
	"github.com/vango-dev/deeplink/pkg/deeplink"
	"github.com/vango-dev/deeplink/pkg/syncconfig"
	"github.com/vango-dev/deeplink/pkg/urltemplate"
)

type rewriteOptions struct {
	template  string
	url       string
	param     string
	value     string
	valueType string
	query     bool
	unset     bool
}

func rewriteCmd() *cobra.Command {
	var opts rewriteOptions

	cmd := &cobra.Command{
		Use:   "rewrite",
		Short: "Print the URL a field edit navigates to",
		Long: `Rewrite computes the URL that results from setting one parameter.

Path parameters are substituted into the segment the route template
names; the query string is kept. Query parameters are set, or removed
when the value is empty, zero or --unset.

Examples:
  deeplink rewrite --template /users/:id/detail --url /users/42/detail?tab=a --param id --value 7 --type number
  deeplink rewrite --url /search?q=go --param q --value "" --query`,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := runRewrite(opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "Route pattern, e.g. /users/:id/detail")
	cmd.Flags().StringVarP(&opts.url, "url", "u", "/", "Current URL")
	cmd.Flags().StringVarP(&opts.param, "param", "p", "", "Parameter name")
	cmd.Flags().StringVarP(&opts.value, "value", "v", "", "New value as it would be typed in the view")
	cmd.Flags().StringVar(&opts.valueType, "type", string(coerce.String), "Value type: string, number or json")
	cmd.Flags().BoolVarP(&opts.query, "query", "q", false, "Treat the parameter as a query parameter")
	cmd.Flags().BoolVar(&opts.unset, "unset", false, "Rewrite with an absent value")
	_ = cmd.MarkFlagRequired("param")

	return cmd
}

func runRewrite(opts rewriteOptions) (string, error) {
	t, err := coerce.ParseType(opts.valueType)
	if err != nil {
		return "", errors.New(errors.CodeInvalidDeclaration).WithParam(opts.param).Wrap(err)
	}

	d := syncconfig.Declaration{Name: opts.param, Type: t, Kind: syncconfig.Path}
	if opts.query {
		d.Kind = syncconfig.Query
	}

	value, err := coerce.ToTyped(t, opts.value, !opts.unset)
	if err != nil {
		return "", errors.New(errors.CodeInflowFailed).WithParam(opts.param).Wrap(err)
	}

	tmpl, err := urltemplate.Parse(opts.template)
	if err != nil && !stderrors.Is(err, urltemplate.ErrNoTemplate) {
		return "", err
	}

	url, err := deeplink.Rewrite(opts.url, tmpl, d, value)
	if err != nil {
		return "", errors.New(errors.CodeTemplateMismatch).
			WithParam(opts.param).
			WithRoute(opts.template).
			Wrap(err)
	}
	return url, nil
}
