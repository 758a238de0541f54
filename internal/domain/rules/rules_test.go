package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "github.com/mouse-blink/coverguard/internal/model"
)

// methodBlock builds a method whose first `covered` lines are covered and
// whose first `changed` lines are changed.
func methodBlock(executable, covered, changed int) *m.CodeBlock {
	block := &m.CodeBlock{
		Kind:       m.BlockClassMethod,
		FilePath:   "/repo/src/Foo.php",
		Parent:     m.NoParent,
		ClassName:  `App\Foo`,
		MethodName: "bar",
	}

	block.Lines = append(block.Lines, m.NewLineOfCode(10, false, false, false, "    public function bar()"))

	for i := 0; i < executable; i++ {
		block.Lines = append(block.Lines, m.NewLineOfCode(11+i, true, i < covered, i < changed, "        $x++;"))
	}

	return block
}

type annotations map[string]struct{}

func (a annotations) Annotations() map[string]struct{} { return a }
func (a annotations) DeclaringType() m.TypeRef       { return m.TypeRef{Name: `App\Foo`, Kind: "class"} }

func inspectionContext(patchMode bool, tags ...string) m.InspectionContext {
	decl := annotations{}
	for _, tag := range tags {
		decl[tag] = struct{}{}
	}

	return m.NewInspectionContext(`App\Foo`, "bar", "/repo/src/Foo.php", patchMode, &m.BlockTree{},
		func() m.DeclarationInfo { return decl })
}

func TestDefaultRule_Wording(t *testing.T) {
	rule := NewDefaultRule()
	block := methodBlock(6, 0, 6)

	t.Run("patch mode", func(t *testing.T) {
		got := rule.Inspect(block, inspectionContext(true))
		require.NotNil(t, got)
		assert.Contains(t, got.Message, "fully changed and")
		assert.Contains(t, got.Message, "fully untested")
	})

	t.Run("full mode", func(t *testing.T) {
		got := rule.Inspect(block, inspectionContext(false))
		require.NotNil(t, got)
		assert.NotContains(t, got.Message, "fully changed and")
		assert.Contains(t, got.Message, "fully untested")
	})
}

func TestDefaultRule_Quiet(t *testing.T) {
	rule := NewDefaultRule()

	tests := []struct {
		name      string
		block     *m.CodeBlock
		patchMode bool
	}{
		{"too small", methodBlock(4, 0, 4), true},
		{"partly covered", methodBlock(6, 1, 6), true},
		{"partly changed", methodBlock(6, 0, 5), true},
		{"not a method", &m.CodeBlock{Kind: m.BlockIf, Lines: methodBlock(6, 0, 6).Lines}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, rule.Inspect(tt.block, inspectionContext(tt.patchMode)))
		})
	}
}

func TestDefaultRule_CustomMinimum(t *testing.T) {
	rule, err := NewDefaultRuleWithMinimum(2)
	require.NoError(t, err)
	assert.NotNil(t, rule.Inspect(methodBlock(2, 0, 0), inspectionContext(false)))

	_, err = NewDefaultRuleWithMinimum(-1)
	assert.True(t, errors.Is(err, m.ErrConfiguration))
}

func TestThresholdRule_NeverFiresBelowMinimumLines(t *testing.T) {
	for _, minCoverage := range []int{0, 1, 50, 80, 100} {
		for _, minLines := range []int{1, 5, 10} {
			rule, err := NewThresholdRule(minCoverage, WithMinExecutableLines(minLines))
			require.NoError(t, err)

			for executable := 0; executable < minLines; executable++ {
				for covered := 0; covered <= executable; covered++ {
					block := methodBlock(executable, covered, executable)
					assert.Nil(t, rule.Inspect(block, inspectionContext(false)),
						"min=%d%% lines=%d executable=%d covered=%d", minCoverage, minLines, executable, covered)
					assert.Nil(t, rule.Inspect(block, inspectionContext(true)))
				}
			}
		}
	}
}

func TestThresholdRule_Inspect(t *testing.T) {
	tests := []struct {
		name      string
		opts      []ThresholdOption
		block     *m.CodeBlock
		patchMode bool
		tags      []string
		wantFires bool
	}{
		{
			name:      "below threshold",
			block:     methodBlock(10, 4, 0),
			wantFires: true,
		},
		{
			name:  "at threshold",
			block: methodBlock(10, 5, 0),
		},
		{
			name:      "lightly changed legacy code is ignored",
			opts:      []ThresholdOption{WithMinChangePercentage(50)},
			block:     methodBlock(10, 0, 2),
			patchMode: true,
		},
		{
			name:      "change gate only applies in patch mode",
			opts:      []ThresholdOption{WithMinChangePercentage(50)},
			block:     methodBlock(10, 0, 2),
			wantFires: true,
		},
		{
			name:      "heavily changed code is checked",
			opts:      []ThresholdOption{WithMinChangePercentage(50)},
			block:     methodBlock(10, 0, 6),
			patchMode: true,
			wantFires: true,
		},
		{
			name:  "annotation required but missing",
			opts:  []ThresholdOption{WithRequiredAnnotation("@api")},
			block: methodBlock(10, 0, 0),
		},
		{
			name:      "annotation present",
			opts:      []ThresholdOption{WithRequiredAnnotation("api")},
			block:     methodBlock(10, 0, 0),
			tags:      []string{"api"},
			wantFires: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := NewThresholdRule(50, tt.opts...)
			require.NoError(t, err)

			got := rule.Inspect(tt.block, inspectionContext(tt.patchMode, tt.tags...))
			if !tt.wantFires {
				assert.Nil(t, got)
				return
			}

			require.NotNil(t, got)
			assert.Contains(t, got.Message, "minimum is 50%")
		})
	}
}

func TestNewThresholdRule_InvalidParameters(t *testing.T) {
	tests := []struct {
		name        string
		minCoverage int
		opts        []ThresholdOption
	}{
		{"coverage above 100", 101, nil},
		{"negative coverage", -1, nil},
		{"change above 100", 50, []ThresholdOption{WithMinChangePercentage(120)}},
		{"negative minimum", 50, []ThresholdOption{WithMinExecutableLines(-3)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewThresholdRule(tt.minCoverage, tt.opts...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, m.ErrConfiguration))
		})
	}
}

func TestFromConfig(t *testing.T) {
	intPtr := func(v int) *int { return &v }

	t.Run("empty list yields default rule", func(t *testing.T) {
		got, err := FromConfig(nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.IsType(t, &DefaultRule{}, got[0])
	})

	t.Run("order is kept", func(t *testing.T) {
		got, err := FromConfig([]Config{
			{Type: "threshold", MinCoverage: intPtr(80), RequireAnnotation: "api"},
			{Type: "Default", MinExecutableLines: intPtr(3)},
		})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.IsType(t, &ThresholdRule{}, got[0])
		assert.IsType(t, &DefaultRule{}, got[1])
	})

	invalid := map[string][]Config{
		"unknown type":           {{Type: "strict"}},
		"threshold without min":  {{Type: "threshold"}},
		"default with coverage":  {{Type: "default", MinCoverage: intPtr(10)}},
		"threshold out of range": {{Type: "threshold", MinCoverage: intPtr(150)}},
	}

	for name, configs := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := FromConfig(configs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, m.ErrConfiguration))
			assert.Contains(t, err.Error(), "rules[0]")
		})
	}
}

func TestRuleFunc(t *testing.T) {
	calls := 0
	rule := RuleFunc(func(block *m.CodeBlock, _ m.InspectionContext) *m.CoverageError {
		calls++
		return m.NewCoverageError(block.Name())
	})

	got := rule.Inspect(methodBlock(1, 0, 0), inspectionContext(false))
	require.NotNil(t, got)
	assert.Equal(t, `App\Foo::bar`, got.Message)
	assert.Equal(t, 1, calls)
}
