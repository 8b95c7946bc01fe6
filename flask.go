/*flask generates full-sky random realizations of correlated cosmological
fields (galaxy densities and weak-lensing convergences) that follow input
angular power spectra, with lognormal or Gaussian one-point statistics.*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mehdirezaie/flask/cmd"
	"github.com/mehdirezaie/flask/report"
)

func main() {
	rep := report.New()
	root := &cobra.Command{
		Use:   "flask <config file> [KEY: value ...]",
		Short: "full-sky lognormal simulations of correlated fields",
		Long: "flask reads a key-value config file (overridable from the " +
			"command line with\n'KEY: value' pairs), loads the field list " +
			"and input angular power spectra, and\nproduces correlated " +
			"full-sky maps, shear maps and galaxy catalogues.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			config := &cmd.Config{}
			if err := config.ReadConfig(args[0], args[1:], rep); err != nil {
				return err
			}
			return cmd.Run(config, rep)
		},
		SilenceUsage: true,
	}

	err := root.Execute()
	fmt.Printf("\nTotal number of warnings: %d\n", rep.Warnings())
	if err != nil {
		if kind, ok := report.KindOf(err); ok {
			fmt.Fprintf(os.Stderr, "flask: %s: %s\n", kind, err.Error())
		}
		os.Exit(1)
	}
}
