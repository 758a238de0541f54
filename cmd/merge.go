package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mouse-blink/coverguard/internal/controller"
	"github.com/mouse-blink/coverguard/internal/domain"
	m "github.com/mouse-blink/coverguard/internal/model"
)

// documentFlags are the output options shared by merge and convert.
type documentFlags struct {
	format string
	output string
	indent string
}

var indentEscapes = strings.NewReplacer(`\t`, "\t")

func (f *documentFlags) configure(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.format, formatFlagName, "f", "", "output format: clover or cobertura")
	cmd.Flags().StringVarP(&f.output, outputFlagName, "o", "", "write the document to this file instead of stdout")
	cmd.Flags().StringVar(&f.indent, indentFlagName, defaultIndent, `indentation unit, "\t" for tabs`)
}

func (f *documentFlags) indentUnit() string {
	return indentEscapes.Replace(f.indent)
}

// documentWorkflow builds a workflow that prints documents to the command output.
func documentWorkflow(cmd *cobra.Command) domain.Workflow {
	ui := controller.NewUI(cmd, false, controller.WithoutPager())
	return newWorkflow(ui, domain.NewBlockExtractor())
}

var mergeFlags documentFlags

// mergeCmd represents the merge command.
var mergeCmd = newMergeCmd()

func newMergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge <coverage-file>...",
		Short: "Merge coverage reports into one",
		Long: `Merge several coverage reports into a single Clover or Cobertura document.

Hit counts of the same line are summed. Inputs may mix formats.`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			mappings, err := loadPathMappings()
			if err != nil {
				return err
			}

			return documentWorkflow(cmd).Merge(cmd.Context(), domain.MergeArgs{
				Inputs:       parsePaths(args),
				Format:       mergeFlags.format,
				Output:       m.Path(mergeFlags.output),
				Indent:       mergeFlags.indentUnit(),
				PathMappings: mappings,
			})
		},
	}

	mergeFlags.configure(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(mergeCmd)
}
