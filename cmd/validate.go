package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/actionengine/internal/config"
	"firestige.xyz/actionengine/internal/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration and its action program",
	Long: `Load the engine configuration and bind its action program without
processing any packets. Every field, header, array, calculation and extern
named by an action is resolved, and every call is checked against its
primitive's signature.

Examples:
  actionengine validate -c config.yml
  actionengine validate -c config.yml -p other-program.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(configFile, validateProgramFile, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

var validateProgramFile string

func init() {
	validateCmd.Flags().StringVarP(&validateProgramFile, "program", "p", "",
		"action program to validate instead of the one named in the config")
}

// loadProgram reads and binds the action program at path.
func loadProgram(path string) (*config.ProgramConfig, *pipeline.Program, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("no action program configured")
	}
	pc, err := config.LoadProgram(path)
	if err != nil {
		return nil, nil, err
	}
	prog, err := pipeline.Compile(pc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to bind program %s: %w", path, err)
	}
	return pc, prog, nil
}

func runValidate(configPath, programPath string, w io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if programPath == "" {
		programPath = cfg.Program
	}

	pc, prog, err := loadProgram(programPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "VALID: %d header(s), %d action(s), %d ingress, %d egress, %d extern(s), %d calculation(s)\n",
		len(prog.Layout.Headers()),
		len(prog.Actions.Names()),
		len(prog.Ingress),
		len(prog.Egress),
		len(pc.Externs),
		len(pc.Calculations),
	)
	return nil
}
