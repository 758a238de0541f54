package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mouse-blink/coverguard/internal/domain"
	m "github.com/mouse-blink/coverguard/internal/model"
)

var convertFlags documentFlags

// convertCmd represents the convert command.
var convertCmd = newConvertCmd()

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <coverage-file>",
		Short: "Convert a coverage report to another format",
		Long:  "Convert a Clover, Cobertura or native coverage report into a Clover or Cobertura document.",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			mappings, err := loadPathMappings()
			if err != nil {
				return err
			}

			return documentWorkflow(cmd).Convert(cmd.Context(), domain.ConvertArgs{
				Input:        m.Path(args[0]),
				Format:       convertFlags.format,
				Output:       m.Path(convertFlags.output),
				Indent:       convertFlags.indentUnit(),
				PathMappings: mappings,
			})
		},
	}

	convertFlags.configure(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(convertCmd)
}
