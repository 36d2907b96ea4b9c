// Package playground loads functions from YAML descriptions and OpenAPI
// documents, optimizes them and renders the results.
package playground

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	lineRe     = regexp.MustCompile(`\bline (\d+)`)
	bracketsRe = regexp.MustCompile(`\[(.*?)\]`)
	hexPtrRe   = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	tokenRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
)

// FormatOptimizeErrors turns optimizer warnings and loader errors into a
// user-facing message.
func FormatOptimizeErrors(warnings []string) string {
	if len(warnings) == 0 {
		return "Optimization failed, but no additional details were provided."
	}

	var b strings.Builder
	b.WriteString("Optimization failed (strict mode).\n")

	for _, w := range warnings {
		loc := deriveLocation(w)
		msg, hint := classifyAndHint(w)
		details := extractDetails(w)

		fmt.Fprintf(&b, "- %s\n", msg)
		if loc != "" {
			fmt.Fprintf(&b, "  Location: %s\n", loc)
		}
		if hint != "" {
			fmt.Fprintf(&b, "  How to fix: %s\n", hint)
		}
		if details != "" {
			fmt.Fprintf(&b, "  Details: %s\n", details)
		}
	}

	return b.String()
}

func deriveLocation(s string) string {
	if m := lineRe.FindStringSubmatch(s); len(m) == 2 {
		return "line " + m[1]
	}

	// Walk locations print as "[{0x.. components <nil>} {0x.. schemas 0x..}]".
	br := bracketsRe.FindStringSubmatch(s)
	if len(br) != 2 {
		return ""
	}
	tokens := make([]string, 0, 4)
	for _, p := range strings.Fields(br[1]) {
		p = strings.Trim(p, "{}:,")
		if p == "" || p == "<nil>" || hexPtrRe.MatchString(p) {
			continue
		}
		if tokenRe.MatchString(p) && (len(tokens) == 0 || tokens[len(tokens)-1] != p) {
			tokens = append(tokens, p)
		}
	}
	return strings.Join(tokens, ".")
}

func classifyAndHint(s string) (msg, hint string) {
	switch {
	case strings.Contains(s, "widening to unknown"):
		msg = `A loop did not settle, so the variables it assigns were widened to unknown.`
		hint = `Raise maxLoopIterations, or keep the values a loop assigns to one variable within a few types.`
	case strings.Contains(s, "no fixpoint"):
		msg = `The optimizer stopped before the function reached a fixpoint.`
		hint = `Raise maxPasses. Results of the last pass are still sound but less precise.`
	case strings.Contains(s, "unknown operator"):
		msg = `The function uses an operator that does not exist.`
		hint = `Name operators the way they print, e.g. Add, FloorDiv, LShift, NotEq or Not.`
	case strings.Contains(s, "outside loop"):
		msg = `A break or continue statement is not inside a loop.`
		hint = `Move the statement into a "while" or "loop" body.`
	case strings.Contains(s, "walk error"):
		msg = `The OpenAPI document could not be traversed.`
	default:
		msg = "Optimization error."
	}
	return msg, hint
}

func extractDetails(s string) string {
	// Drop the noisy walk location prefix.
	if idx := strings.Index(s, "]:"); idx != -1 && idx+2 < len(s) {
		return strings.TrimSpace(s[idx+2:])
	}
	return strings.TrimSpace(s)
}
