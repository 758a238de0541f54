package phpsource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repositorySource = `<?php

namespace App\Service;

use App\Exception\NotFound;
use Some\Other\Thing as Alias;

/**
 * @internal
 */
final class Repository
{
    private array $items = [];

    /** @api */
    public function find(int $id): ?array
    {
        if ($id < 0) {
            throw new NotFound('missing');
        } elseif ($id === 0) {
            return null;
        } else {
            $x = 1;
        }

        foreach ($this->items as $item) {
            $cb = function ($v) use ($item) {
                return $v;
            };
        }

        return $this->call(
            $id,
            fn ($y) => $y + 1,
        );
    }

    abstract protected function todo(): void;
}

function helper() {
    throw new \RuntimeException('x');
}
`

func childrenOf(node *Node, kind NodeKind) []*Node {
	var out []*Node

	for _, child := range node.Children {
		if child.Kind == kind {
			out = append(out, child)
		}
	}

	return out
}

func TestParse_ClassesAndFunctions(t *testing.T) {
	file, err := Parse("Repository.php", []byte(repositorySource))
	require.NoError(t, err)
	require.Len(t, file.Root.Children, 2)

	class := file.Root.Children[0]
	assert.Equal(t, NodeClass, class.Kind)
	assert.Equal(t, ClassKindClass, class.ClassKind)
	assert.Equal(t, "Repository", class.Name)
	assert.Equal(t, `App\Service\Repository`, class.FQName)
	assert.Equal(t, 11, class.StartLine)
	assert.Equal(t, 39, class.EndLine)
	assert.Contains(t, class.DocComment, "@internal")

	methods := childrenOf(class, NodeMethod)
	require.Len(t, methods, 2)

	find := methods[0]
	assert.Equal(t, "find", find.Name)
	assert.Equal(t, 16, find.NameLine)
	assert.Equal(t, 36, find.EndLine)
	assert.Equal(t, "/** @api */", find.DocComment)
	assert.True(t, find.HasBody)

	todo := methods[1]
	assert.Equal(t, "todo", todo.Name)
	assert.False(t, todo.HasBody)
	assert.Equal(t, 38, todo.StartLine)
	assert.Equal(t, 38, todo.EndLine)

	helper := file.Root.Children[1]
	assert.Equal(t, NodeFunction, helper.Kind)
	assert.Equal(t, `App\Service\helper`, helper.FQName)
	assert.Equal(t, 41, helper.StartLine)
	assert.Equal(t, 43, helper.EndLine)

	throws := childrenOf(helper, NodeThrow)
	require.Len(t, throws, 1)
	assert.Equal(t, "RuntimeException", throws[0].ThrownClass)
}

func TestParse_MethodBody(t *testing.T) {
	file, err := Parse("Repository.php", []byte(repositorySource))
	require.NoError(t, err)

	find := childrenOf(file.Root.Children[0], NodeMethod)[0]

	ifs := childrenOf(find, NodeIf)
	require.Len(t, ifs, 1)
	assert.Equal(t, 18, ifs[0].StartLine)
	assert.Equal(t, 24, ifs[0].EndLine)

	throws := childrenOf(ifs[0], NodeThrow)
	require.Len(t, throws, 1)
	assert.Equal(t, `App\Exception\NotFound`, throws[0].ThrownClass)
	assert.Equal(t, 19, throws[0].StartLine)
	assert.Equal(t, 19, throws[0].EndLine)

	elseIfs := childrenOf(ifs[0], NodeElseIf)
	require.Len(t, elseIfs, 1)
	assert.Equal(t, 20, elseIfs[0].StartLine)
	assert.Equal(t, 22, elseIfs[0].EndLine)

	elses := childrenOf(ifs[0], NodeElse)
	require.Len(t, elses, 1)
	assert.Equal(t, 22, elses[0].StartLine)
	assert.Equal(t, 24, elses[0].EndLine)

	loops := childrenOf(find, NodeForeach)
	require.Len(t, loops, 1)
	assert.Equal(t, 26, loops[0].StartLine)
	assert.Equal(t, 30, loops[0].EndLine)

	closures := childrenOf(loops[0], NodeClosure)
	require.Len(t, closures, 1)
	assert.Equal(t, 27, closures[0].StartLine)
	assert.Equal(t, 29, closures[0].EndLine)

	calls := childrenOf(find, NodeCall)
	require.Len(t, calls, 1)
	assert.Equal(t, "call", calls[0].Name)
	assert.Equal(t, 32, calls[0].ArgsStartLine)
	assert.Equal(t, 35, calls[0].ArgsEndLine)

	arrows := childrenOf(calls[0], NodeArrowFunction)
	require.Len(t, arrows, 1)
	assert.Equal(t, 34, arrows[0].StartLine)
	assert.Equal(t, 34, arrows[0].EndLine)
}

func TestParse_AlternativeSyntax(t *testing.T) {
	src := `<?php
if ($a):
    echo 1;
elseif ($b):
    echo 2;
else:
    echo 3;
endif;
while ($c):
    $c--;
endwhile;
switch ($d) {
    case 1:
        break;
    default:
        echo 4;
}
`
	file, err := Parse("alt.php", []byte(src))
	require.NoError(t, err)
	require.Len(t, file.Root.Children, 3)

	ifNode := file.Root.Children[0]
	assert.Equal(t, NodeIf, ifNode.Kind)
	assert.Equal(t, 2, ifNode.StartLine)
	assert.Equal(t, 8, ifNode.EndLine)

	elseIf := childrenOf(ifNode, NodeElseIf)
	require.Len(t, elseIf, 1)
	assert.Equal(t, 4, elseIf[0].StartLine)
	assert.Equal(t, 5, elseIf[0].EndLine)

	elseNode := childrenOf(ifNode, NodeElse)
	require.Len(t, elseNode, 1)
	assert.Equal(t, 6, elseNode[0].StartLine)
	assert.Equal(t, 7, elseNode[0].EndLine)

	while := file.Root.Children[1]
	assert.Equal(t, NodeWhile, while.Kind)
	assert.Equal(t, 9, while.StartLine)
	assert.Equal(t, 11, while.EndLine)

	switchNode := file.Root.Children[2]
	assert.Equal(t, NodeSwitch, switchNode.Kind)
	assert.Equal(t, 12, switchNode.StartLine)
	assert.Equal(t, 17, switchNode.EndLine)

	cases := childrenOf(switchNode, NodeCase)
	require.Len(t, cases, 2)
	assert.Equal(t, 13, cases[0].StartLine)
	assert.Equal(t, 14, cases[0].EndLine)
	assert.Equal(t, 15, cases[1].StartLine)
	assert.Equal(t, 16, cases[1].EndLine)
}

func TestParse_TryAndMatch(t *testing.T) {
	src := `<?php
try {
    $r = match ($x) {
        1 => 'a',
        default => throw new LogicException(),
    };
} catch (Exception $e) {
    $r = null;
} finally {
    done();
}
`
	file, err := Parse("try.php", []byte(src))
	require.NoError(t, err)
	require.Len(t, file.Root.Children, 1)

	try := file.Root.Children[0]
	assert.Equal(t, NodeTry, try.Kind)
	assert.Equal(t, 2, try.StartLine)
	assert.Equal(t, 11, try.EndLine)

	matches := childrenOf(try, NodeMatch)
	require.Len(t, matches, 1)
	assert.Equal(t, 3, matches[0].StartLine)
	assert.Equal(t, 6, matches[0].EndLine)

	throws := childrenOf(matches[0], NodeThrow)
	require.Len(t, throws, 1)
	assert.Equal(t, "LogicException", throws[0].ThrownClass)
	assert.Equal(t, 5, throws[0].EndLine)

	catches := childrenOf(try, NodeCatch)
	require.Len(t, catches, 1)
	assert.Equal(t, 7, catches[0].StartLine)
	assert.Equal(t, 9, catches[0].EndLine)

	finally := childrenOf(try, NodeFinally)
	require.Len(t, finally, 1)
	assert.Equal(t, 9, finally[0].StartLine)
	assert.Equal(t, 11, finally[0].EndLine)
}

func TestParse_AnonymousClass(t *testing.T) {
	src := `<?php
$o = new class(1) {
    public function run() {
        return 1;
    }
};
`
	file, err := Parse("anon.php", []byte(src))
	require.NoError(t, err)

	classes := childrenOf(file.Root, NodeClass)
	require.Len(t, classes, 1)
	assert.Equal(t, ClassKindAnonymous, classes[0].ClassKind)
	assert.True(t, classes[0].IsFunctionLike())
	assert.Equal(t, 2, classes[0].StartLine)
	assert.Equal(t, 6, classes[0].EndLine)
	assert.Len(t, childrenOf(classes[0], NodeMethod), 1)
}

func TestParse_MemberNamedAfterKeyword(t *testing.T) {
	src := `<?php
$router->match('/path');
Foo::new(1);
`
	file, err := Parse("keywords.php", []byte(src))
	require.NoError(t, err)

	assert.Empty(t, childrenOf(file.Root, NodeMatch))
	assert.Len(t, childrenOf(file.Root, NodeCall), 2)
}

func TestParse_PropertyHooksAndAsymmetricVisibility(t *testing.T) {
	src := `<?php
class P
{
    public string $name {
        get => strtoupper($this->name);
        set(string $value) { $this->name = trim($value); }
    }
    public private(set) int $count = 0;
    const int LIMIT = 3;

    public function q()
    {
        $a = 1;
        $b = 2;
        return $a + $b;
    }
}
`
	file, err := Parse("hooks.php", []byte(src))
	require.NoError(t, err)
	require.Len(t, file.Root.Children, 1)

	class := file.Root.Children[0]
	methods := childrenOf(class, NodeMethod)
	require.Len(t, methods, 1)
	assert.Equal(t, "q", methods[0].Name)
	assert.Equal(t, 11, methods[0].NameLine)
	assert.Equal(t, 16, methods[0].EndLine)
	assert.True(t, methods[0].HasBody)

	for _, call := range childrenOf(class, NodeCall) {
		assert.NotEqual(t, "q", call.Name)
		assert.NotEqual(t, "private", call.Name)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{name: "unbalanced parameters", src: "<?php function f( {"},
		{name: "unterminated class", src: "<?php class A {"},
		{name: "unterminated string", src: "<?php $a = 'x;"},
		{name: "stray brace", src: "<?php }"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("broken.php", []byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "broken.php")
		})
	}
}

func TestInspect_VisitsAllNodes(t *testing.T) {
	file, err := Parse("Repository.php", []byte(repositorySource))
	require.NoError(t, err)

	counts := map[NodeKind]int{}
	Inspect(file.Root, func(n *Node) bool {
		if n != nil {
			counts[n.Kind]++
		}

		return true
	})

	assert.Equal(t, 1, counts[NodeClass])
	assert.Equal(t, 2, counts[NodeMethod])
	assert.Equal(t, 2, counts[NodeThrow])
	assert.Equal(t, 1, counts[NodeClosure])
}
