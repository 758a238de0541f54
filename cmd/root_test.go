package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mouse-blink/coverguard/internal/controller"
	"github.com/mouse-blink/coverguard/internal/domain"
	domainmocks "github.com/mouse-blink/coverguard/internal/domain/mocks"
	m "github.com/mouse-blink/coverguard/internal/model"
)

func TestMain(tm *testing.M) {
	logDir, err := os.MkdirTemp("", "coverguard-cmd")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFatal)
	}

	viper.Set(logFilenameKey, filepath.Join(logDir, "test.log"))

	code := tm.Run()

	_ = os.RemoveAll(logDir)
	os.Exit(code)
}

// useWorkflow makes every command run against mockWorkflow.
func useWorkflow(t *testing.T, mockWorkflow domain.Workflow) {
	t.Helper()

	original := newWorkflow
	newWorkflow = func(controller.UI, domain.BlockExtractor) domain.Workflow { return mockWorkflow }

	t.Cleanup(func() { newWorkflow = original })
}

func executeCommand(t *testing.T, sub *cobra.Command, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	cmd.AddCommand(sub)

	output := &bytes.Buffer{}
	cmd.SetOut(output)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{}, args...))

	err := cmd.Execute()

	return output.String(), err
}

func TestParsePaths(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []m.Path
	}{
		{"empty", []string{}, []m.Path{}},
		{"single", []string{"clover.xml"}, []m.Path{m.Path("clover.xml")}},
		{
			"multiple",
			[]string{"unit.xml", "integration.cov", "e2e.xml"},
			[]m.Path{m.Path("unit.xml"), m.Path("integration.cov"), m.Path("e2e.xml")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePaths(tt.args)
			require.Len(t, got, len(tt.want))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"violations", errViolations, 1},
		{"wrapped violations", fmt.Errorf("check: %w", errViolations), 1},
		{"usage", m.Errorf(m.ErrUsage, "missing argument"), 1},
		{"configuration", m.Errorf(m.ErrConfiguration, "rules[0]: bad"), 2},
		{"integrity", m.Errorf(m.ErrIntegrity, "line 40"), 2},
		{"input not found", m.Errorf(m.ErrInputNotFound, "clover.xml"), 2},
		{"untyped", errors.New("boom"), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "coverguard", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.Equal(t, rootLongDescription, cmd.Long)
	assert.True(t, cmd.SilenceErrors)
	assert.True(t, cmd.SilenceUsage)
}

func TestRootCmd_HelpOutput(t *testing.T) {
	output, err := executeCommand(t, newVersionCmd())

	require.NoError(t, err)
	assert.Contains(t, output, "Usage:")
	assert.Contains(t, output, "PHP code coverage reports")
}

func TestRootCmd_UnknownCommandIsUsageError(t *testing.T) {
	_, err := executeCommand(t, newVersionCmd(), "frobnicate")

	require.Error(t, err)
	assert.True(t, errors.Is(err, m.ErrUsage), "got %v", err)
}

func TestRootCmd_UnknownFlagIsUsageError(t *testing.T) {
	_, err := executeCommand(t, newVersionCmd(), "version", "--frobnicate")

	require.Error(t, err)
	assert.True(t, errors.Is(err, m.ErrUsage), "got %v", err)
}

func TestInit(t *testing.T) {
	assert.NotNil(t, fsAdapter)
	assert.NotNil(t, phpFileAdapter)
	assert.NotNil(t, gitRootAdapter)
	assert.NotNil(t, reportStore)
	assert.NotNil(t, newWorkflow)
	assert.NotNil(t, newWorkflow(controller.NewUI(rootCmd, false), domain.NewBlockExtractor()))

	names := make([]string, 0, len(rootCmd.Commands()))
	for _, sub := range rootCmd.Commands() {
		names = append(names, sub.Name())
	}

	assert.Subset(t, names, []string{"check", "merge", "convert", "init", "version"})
}

func TestExecute(t *testing.T) {
	originalRootCmd := rootCmd
	defer func() { rootCmd = originalRootCmd }()

	mockCmd := &cobra.Command{
		Use: "test",
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}
	mockCmd.SetOut(&bytes.Buffer{})
	mockCmd.SetErr(&bytes.Buffer{})
	mockCmd.SetArgs([]string{})

	rootCmd = mockCmd

	// Must return without exiting.
	Execute()
}

func TestExecute_ProcessLevel_ExitCodes(t *testing.T) {
	if kind := os.Getenv("TEST_EXECUTE_SUBPROCESS"); kind != "" {
		errs := map[string]error{
			"clean":      nil,
			"violations": errViolations,
			"usage":      m.Errorf(m.ErrUsage, "accepts 1 arg(s), received 0"),
			"fatal":      m.Errorf(m.ErrIntegrity, "coverage report lists line 40 of a.php, but the file has 19 lines"),
		}

		rootCmd = &cobra.Command{
			Use:           "coverguard",
			SilenceErrors: true,
			SilenceUsage:  true,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Println("ran", kind)
				return errs[kind]
			},
		}
		rootCmd.SetArgs([]string{})

		Execute()

		return
	}

	tests := []struct {
		kind       string
		wantCode   int
		wantOutput string
	}{
		{"clean", 0, "ran clean"},
		{"violations", 1, "ran violations"},
		{"usage", 1, "--help"},
		{"fatal", 2, "Error: coverage report lists line 40"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			cmd := exec.Command(os.Args[0], "-test.run=TestExecute_ProcessLevel_ExitCodes")
			cmd.Env = append(os.Environ(), "TEST_EXECUTE_SUBPROCESS="+tt.kind)
			output, err := cmd.CombinedOutput()

			assert.Contains(t, string(output), tt.wantOutput)

			if tt.wantCode == 0 {
				require.NoError(t, err, "output: %s", output)
				return
			}

			var exitErr *exec.ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, tt.wantCode, exitErr.ExitCode())
		})
	}
}

func TestRootCmd_MockWorkflowIsUsed(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)
	useWorkflow(t, mockWorkflow)

	assert.Same(t, mockWorkflow, newWorkflow(nil, nil))
}
