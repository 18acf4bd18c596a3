package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/tordrt/dbmlgen"
	"github.com/tordrt/dbmlgen/internal/config"
	"github.com/tordrt/dbmlgen/internal/logging"
)

type options struct {
	home          string
	logLevel      string
	concurrency   int
	outputFile    string
	regex         string
	referencedKey string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:          "dbmlgen",
		Short:        "Build a YAML schema model of your databases and render it as DBML",
		Long:         `dbmlgen scans MySQL, PostgreSQL or SQLite databases into a hand-editable YAML project file and generates DBML diagrams from it.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.home, "home", "", "Directory holding the project files (default: $DBML_HOME or ~/.dbml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")

	scanCmd := &cobra.Command{
		Use:   "scan <project>",
		Short: "Scan the databases of a project to discover its tables, columns and relationships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.workspace(cmd).Scan(cmd.Context(), args[0])
		},
	}
	scanCmd.Flags().IntVar(&opts.concurrency, "concurrency", dbmlgen.DefaultConcurrency, "Number of databases scanned at once")

	generateCmd := &cobra.Command{
		Use:   "generate <project> [starting_table]",
		Short: "Generate the DBML file of a project, optionally only for one table and its dependencies",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts, args)
		},
	}
	generateCmd.Flags().StringVarP(&opts.outputFile, "output", "o", "", "Output file, - for stdout (default: <home>/<project>.dbml)")

	searchCmd := &cobra.Command{
		Use:   "search <project> <regex> [referenced_key]",
		Short: "Find unmapped columns matching a regex, optionally mapping them to a referenced key",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, opts, args)
		},
	}
	searchCmd.Flags().StringVar(&opts.regex, "regex", "", "Column name pattern")
	searchCmd.Flags().StringVar(&opts.referencedKey, "referenced-key", "", "Column key the matches reference (database___table.column)")

	validateCmd := &cobra.Command{
		Use:   "validate <project>",
		Short: "Check the reference maps of a project (does not modify it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := opts.workspace(cmd).Validate(cmd.Context(), args[0])
			return err
		},
	}

	cleanCmd := &cobra.Command{
		Use:   "clean <project>",
		Short: "Remove the scanned tables and references of a project (custom references are kept)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.workspace(cmd).Clean(cmd.Context(), args[0])
		},
	}

	rootCmd.AddCommand(scanCmd, generateCmd, searchCmd, validateCmd, cleanCmd)
	return rootCmd
}

func (o *options) workspace(cmd *cobra.Command) *dbmlgen.Workspace {
	root := o.home
	if root == "" {
		root = config.DefaultRoot()
	}

	logger := logging.Setup(o.logLevel, cmd.ErrOrStderr())
	ws := dbmlgen.NewWorkspace(config.NewStore(root), logger, cmd.OutOrStdout())
	if o.concurrency > 0 {
		ws.Concurrency = o.concurrency
	}
	return ws
}

func runGenerate(cmd *cobra.Command, opts *options, args []string) error {
	ws := opts.workspace(cmd)

	startingTable := ""
	if len(args) > 1 {
		startingTable = args[1]
	}

	switch opts.outputFile {
	case "":
		return ws.Generate(cmd.Context(), args[0], startingTable, nil)
	case "-":
		// keep stdout for the DBML only
		ws.Out = cmd.ErrOrStderr()
		return ws.Generate(cmd.Context(), args[0], startingTable, cmd.OutOrStdout())
	}

	// the file is only replaced once rendering succeeded
	var buf bytes.Buffer
	if err := ws.Generate(cmd.Context(), args[0], startingTable, &buf); err != nil {
		return err
	}
	if err := os.WriteFile(opts.outputFile, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func runSearch(cmd *cobra.Command, opts *options, args []string) error {
	regex := opts.regex
	if len(args) > 1 {
		if regex != "" {
			return fmt.Errorf("cannot use both a regex argument and --regex")
		}
		regex = args[1]
	}
	if regex == "" {
		return fmt.Errorf("a regex must be given as an argument or with --regex")
	}

	referencedKey := opts.referencedKey
	if len(args) > 2 {
		if referencedKey != "" {
			return fmt.Errorf("cannot use both a referenced_key argument and --referenced-key")
		}
		referencedKey = args[2]
	}

	result, err := opts.workspace(cmd).Search(cmd.Context(), args[0], regex, referencedKey)
	if err != nil {
		return err
	}
	if result.Added > 0 {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added %d custom references to %s\n", result.Added, referencedKey)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
