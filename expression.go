package taproot

import (
	"regexp"
	"strings"
)

var (
	moduleExpressionPattern = regexp.MustCompile(`^(\w+|\*{1,2})(\.(\w+|\*{1,2}))*$`)
	optionalFragmentPattern = regexp.MustCompile(`\[([^\[\]]*)\]`)
)

const (
	moduleNamePattern           = `[^.]+`
	oneOrManyModuleNamesPattern = `[^.]+(\.[^.]+)*?`
)

// ModuleExpression refers to a set of modules by pattern:
//
//   - `*` stands in for one module name segment, without including
//     subpackages.
//   - `**` includes subpackages too.
//   - `[...]` denotes an optional fragment. For example, `a.b[.**]`
//     matches both `a.b` and everything under it.
type ModuleExpression struct {
	expression string
	patterns   []*regexp.Regexp
}

// ParseModuleExpression validates and compiles a module expression.
// Wildcards embedded inside a segment (such as `foo*`) are invalid,
// as are adjacent mixed wildcards like `**.*`.
func ParseModuleExpression(expression string) (*ModuleExpression, error) {
	expanded := expandOptionalFragments(expression)

	patterns := make([]*regexp.Regexp, 0, len(expanded))
	for _, e := range expanded {
		if !moduleExpressionPattern.MatchString(e) {
			return nil, &InvalidModuleExpressionError{Expression: expression}
		}
		parts := strings.Split(e, ".")
		for i := 0; i+1 < len(parts); i++ {
			a, b := parts[i], parts[i+1]
			if (a == "*" && b == "**") || (a == "**" && b == "*") || (a == "**" && b == "**") {
				return nil, &InvalidModuleExpressionError{Expression: expression}
			}
		}
		patterns = append(patterns, compileExpression(parts))
	}

	return &ModuleExpression{expression: expression, patterns: patterns}, nil
}

func (e *ModuleExpression) String() string {
	return e.expression
}

// Match reports whether the expression matches the module name.
func (e *ModuleExpression) Match(moduleName string) bool {
	for _, pattern := range e.patterns {
		if pattern.MatchString(moduleName) {
			return true
		}
	}
	return false
}

func compileExpression(parts []string) *regexp.Regexp {
	patternParts := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "*":
			patternParts = append(patternParts, moduleNamePattern)
		case "**":
			patternParts = append(patternParts, oneOrManyModuleNamesPattern)
		default:
			patternParts = append(patternParts, regexp.QuoteMeta(part))
		}
	}
	return regexp.MustCompile(`^` + strings.Join(patternParts, `\.`) + `$`)
}

// expandOptionalFragments expands an expression with optional
// fragments into all combinations: a.b[.c] becomes a.b and a.b.c,
// a[.b[.c]] becomes a, a.b and a.b.c.
func expandOptionalFragments(expression string) []string {
	loc := optionalFragmentPattern.FindStringSubmatchIndex(expression)
	if loc == nil {
		return []string{expression}
	}

	without := expression[:loc[0]] + expression[loc[1]:]
	with := expression[:loc[0]] + expression[loc[2]:loc[3]] + expression[loc[1]:]

	seen := make(map[string]struct{})
	var out []string
	for _, e := range append(expandOptionalFragments(without), expandOptionalFragments(with)...) {
		if _, dup := seen[e]; !dup {
			seen[e] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}
