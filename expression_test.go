package taproot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModuleExpression_Validation(t *testing.T) {
	t.Parallel()

	valid := []string{
		"foo",
		"foo_bar_123",
		"foo.bar",
		"foo.*",
		"foo.**",
		"foo.*.bar",
		"foo.**.bar",
		"*.foo",
		"**.foo",
		"foo.*.bar.**",
		"foo.**.bar.*",
		"foo.*.*.bar",
		"foo[.bar]",
		"[foo.]bar",
		"foo[.bar[.baz]]",
	}
	for _, expression := range valid {
		t.Run(expression, func(t *testing.T) {
			_, err := ParseModuleExpression(expression)
			assert.NoError(t, err)
		})
	}

	invalid := []string{
		"foo.bar*",
		".foo",
		"foo.",
		"foo..bar",
		"foo.***",
		"foo ",
		"foo .bar",
		"foo. *.bar",
		"foo.*.**.bar",
		"foo.**.*.bar",
		"foo.**.**.bar",
		"foo[.bar.baz",
	}
	for _, expression := range invalid {
		t.Run(expression, func(t *testing.T) {
			_, err := ParseModuleExpression(expression)
			var invalidErr *InvalidModuleExpressionError
			assert.ErrorAs(t, err, &invalidErr)
		})
	}
}

func TestModuleExpression_Match(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expression string
		moduleName string
		expect     bool
	}{
		// Exact match.
		{"foo", "foo", true},
		{"foo", "bar", false},
		{"foo.bar", "foo.bar", true},
		{"foo.bar", "foo.baz", false},
		// Single wildcard at end.
		{"foo.*", "foo.bar", true},
		{"foo.*", "foo", false},
		{"foo.*", "foo.bar.baz", false},
		// Double wildcard at end.
		{"foo.**", "foo.bar", true},
		{"foo.**", "foo", false},
		{"foo.**", "foo.bar.baz", true},
		// Wildcards in the middle.
		{"foo.*.baz", "foo.bar.baz", true},
		{"foo.*.baz", "foo.bar.bax.baz", false},
		{"foo.**.baz", "foo.bar.baz", true},
		{"foo.**.baz", "foo.bar.bax.baz", true},
		// Wildcards at the start.
		{"*.foo", "bar.foo", true},
		{"*.foo", "foo", false},
		{"*.foo", "bar.baz.foo", false},
		{"**.foo", "bar.foo", true},
		{"**.foo", "foo", false},
		{"**.foo", "bar.baz.foo", true},
		// Multiple single wildcards.
		{"foo.*.*.bar", "foo.a.b.bar", true},
		{"foo.*.*.bar", "foo.a.bar", false},
		{"foo.*.*.bar", "foo.a.b.c.bar", false},
		// Mixed wildcards.
		{"foo.**.bar.*", "foo.a.bar.b", true},
		{"foo.**.bar.*", "foo.a.b.bar.c", true},
		{"foo.**.bar.*", "foo.bar", false},
		{"foo.**.bar.*", "foo.a.bar.b.c", false},
		// Optional fragments.
		{"a.b[.c]", "a.b", true},
		{"a.b[.c]", "a.b.c", true},
		{"a.b[.c]", "a.b.d", false},
		{"a.b[.**]", "a.b", true},
		{"a.b[.**]", "a.b.c.d", true},
		{"a[.b].c[.d]", "a.c", true},
		{"a[.b].c[.d]", "a.b.c.d", true},
		{"a[.b].c[.d]", "a.b.c.d.e", false},
		{"[a.]b.c", "b.c", true},
		{"[a.]b.c", "a.b.c", true},
		{"[a.]b.c", "a.a.b.c", false},
		{"a[.b[.c]]", "a", true},
		{"a[.b[.c]]", "a.b", true},
		{"a[.b[.c]]", "a.b.c", true},
		{"a[.b[.c]]", "a.b.c.d", false},
	}
	for _, tt := range tests {
		t.Run(tt.expression+"/"+tt.moduleName, func(t *testing.T) {
			expression, err := ParseModuleExpression(tt.expression)
			require.NoError(t, err)
			assert.Equal(t, tt.expect, expression.Match(tt.moduleName))
		})
	}
}
