// Package cmd provides the root command and CLI setup for coverguard.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mouse-blink/coverguard/internal/adapter"
	"github.com/mouse-blink/coverguard/internal/controller"
	"github.com/mouse-blink/coverguard/internal/domain"
	m "github.com/mouse-blink/coverguard/internal/model"
)

const (
	exitClean      = 0
	exitViolations = 1
	exitFatal      = 2
)

// errViolations is returned by check when at least one rule fired.
var errViolations = errors.New("coverage violations found")

var fsAdapter adapter.SourceFSAdapter
var phpFileAdapter adapter.PHPFileAdapter
var gitRootAdapter adapter.GitRootAdapter
var reportStore adapter.ReportStore

// newWorkflow builds the workflow once a command knows its UI and excluders.
var newWorkflow func(ui controller.UI, extractor domain.BlockExtractor) domain.Workflow

// verboseFlag switches the log level to Debug.
var verboseFlag bool

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	phpFileAdapter = adapter.NewLocalPHPFileAdapter()
	gitRootAdapter = adapter.NewLocalGitRootAdapter()
	reportStore = adapter.NewReportStore()
	newWorkflow = func(ui controller.UI, extractor domain.BlockExtractor) domain.Workflow {
		return domain.NewWorkflow(fsAdapter, phpFileAdapter, gitRootAdapter, reportStore, ui, extractor)
	}
}

const rootLongDescription = `Coverguard reads PHP code coverage reports (Clover, Cobertura or the
serialized native format), maps them onto the methods and blocks of the
covered sources and reports the ones that break the configured coverage
rules. Given a unified diff it only looks at the code the diff changed.

It can also merge several coverage reports and convert between formats.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "coverguard",
		Short:         "PHP coverage gate for changed code",
		Long:          rootLongDescription,
		Args:          usageArgs(cobra.NoArgs),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			configureLogger("", viper.GetBool(logVerboseKey))

			if configErr != nil {
				slog.Error("failed to read config file", "error", configErr)
				return configErr
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return m.Errorf(m.ErrUsage, "%v", err)
	})

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", viper.GetBool(logVerboseKey), "log at debug level")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// usageArgs tags positional argument errors as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return m.Errorf(m.ErrUsage, "%v", err)
		}

		return nil
	}
}

// exitCode maps a command error onto the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitClean
	case errors.Is(err, errViolations), errors.Is(err, m.ErrUsage):
		return exitViolations
	default:
		return exitFatal
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errViolations) {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)

		if errors.Is(err, m.ErrUsage) {
			fmt.Fprintf(rootCmd.ErrOrStderr(), "Run '%s --help' for usage.\n", rootCmd.CommandPath())
		}
	}

	if code := exitCode(err); code != exitClean {
		os.Exit(code)
	}
}

func parsePaths(args []string) []m.Path {
	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}
