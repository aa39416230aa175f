package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/actionengine/internal/extern"
	"firestige.xyz/actionengine/internal/primitive"
)

var primitivesCmd = &cobra.Command{
	Use:   "primitives",
	Short: "List the primitives an action can call",
	Long: `List every built-in primitive and every extern method primitive with
its parameter kinds.

Examples:
  actionengine primitives`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runPrimitives(os.Stdout); err != nil {
			exitWithError("failed to list primitives", err)
		}
	},
}

func runPrimitives(w io.Writer) error {
	reg := primitive.NewStandardRegistry()
	ext := extern.NewRegistry()
	if err := ext.DefineType(extern.Increase()); err != nil {
		return err
	}
	if err := primitive.RegisterExternMethods(reg, ext); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIMITIVE\tPARAMS")
	for _, name := range reg.Names() {
		p, err := reg.Lookup(name)
		if err != nil {
			return err
		}
		params := make([]string, len(p.Params))
		for i, param := range p.Params {
			params[i] = param.String()
		}
		fmt.Fprintf(tw, "%s\t%s\n", name, strings.Join(params, ", "))
	}
	return tw.Flush()
}
