package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mouse-blink/coverguard/internal/controller"
	"github.com/mouse-blink/coverguard/internal/domain"
	m "github.com/mouse-blink/coverguard/internal/model"
)

const checkLongDescription = `Check a coverage report against the configured rules.

The coverage format is detected from the file extension: .xml (Clover or
Cobertura) or .cov (serialized native coverage). With --patch only blocks
containing changed executable lines are checked.

Exit status is 0 when no rule fired, 1 when violations were found or the
command was misused and 2 on any other error.`

// checkFlags holds the check options that have no config key. The others are
// bound to viper and read from there.
type checkFlags struct {
	patch      string
	reportFile string
}

var checkOptions checkFlags

// checkCmd represents the check command.
var checkCmd = newCheckCmd()

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <coverage-file>",
		Short: "Report untested methods and blocks",
		Long:  checkLongDescription,
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			flow, err := checkWorkflow(cmd)
			if err != nil {
				return err
			}

			ruleSet, err := loadRules()
			if err != nil {
				return err
			}

			mappings, err := loadPathMappings()
			if err != nil {
				return err
			}

			report, err := flow.Check(cmd.Context(), domain.CheckArgs{
				CoverageFile: m.Path(args[0]),
				PatchFile:    m.Path(checkOptions.patch),
				GitRoot:      viper.GetString(gitRootKey),
				Parallel:     viper.GetInt(checkParallelKey),
				ReportFile:   m.Path(checkOptions.reportFile),
				Rules:        ruleSet,
				PathMappings: mappings,
			})
			if err != nil {
				return err
			}

			if report.HasViolations() {
				return errViolations
			}

			return nil
		},
	}

	checkOptions.configure(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func (f *checkFlags) configure(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.patch, patchFlagName, "", "unified diff (.patch or .diff) limiting the check to changed code")
	cmd.Flags().StringVar(&f.reportFile, reportFileFlagName, "", "also save the report as YAML to this file")

	cmd.Flags().String(gitRootFlagName, "", "repository root the patch paths are relative to")
	bindFlagToConfig(cmd.Flags().Lookup(gitRootFlagName), gitRootKey)
	cmd.Flags().IntP(parallelFlagName, "p", defaultParallel, "number of source files analysed in parallel")
	bindFlagToConfig(cmd.Flags().Lookup(parallelFlagName), checkParallelKey)
	cmd.Flags().Bool(noPagerFlagName, false, "never page the report on a terminal")
	bindFlagToConfig(cmd.Flags().Lookup(noPagerFlagName), checkNoPagerKey)
	cmd.Flags().String(outputFormatFlagName, defaultOutputStyle, "report format: text or yaml")
	bindFlagToConfig(cmd.Flags().Lookup(outputFormatFlagName), checkOutputKey)
}

func checkWorkflow(cmd *cobra.Command) (domain.Workflow, error) {
	format, err := controller.ParseOutputFormat(viper.GetString(checkOutputKey))
	if err != nil {
		return nil, err
	}

	opts := []controller.Option{
		controller.WithOutputFormat(format),
		controller.WithEditorURL(viper.GetString(editorURLKey)),
	}

	if wd, err := fsAdapter.Getwd(); err == nil {
		opts = append(opts, controller.WithBaseDir(string(wd)))
	}

	if viper.GetBool(checkNoPagerKey) {
		opts = append(opts, controller.WithoutPager())
	}

	ui := controller.NewUI(cmd, controller.IsTTY(cmd.OutOrStdout()), opts...)

	return newWorkflow(ui, domain.NewBlockExtractor(loadExcluders()...)), nil
}
