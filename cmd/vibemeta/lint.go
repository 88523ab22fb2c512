package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mgomes/vibemeta/meta"
)

const (
	ruleFailedStatement = "failed-statement"
	ruleRedefinedConst  = "redefined-constant"
	ruleDuplicateMixin  = "duplicate-mixin"
	ruleUndefUnknown    = "undef-unknown"
	ruleEmptyQuery      = "empty-query"
)

var lintRules = []string{
	ruleFailedStatement,
	ruleRedefinedConst,
	ruleDuplicateMixin,
	ruleUndefUnknown,
	ruleEmptyQuery,
}

func knownLintRule(rule string) bool {
	for _, known := range lintRules {
		if rule == known {
			return true
		}
	}
	return false
}

type lintWarning struct {
	Rule    string
	Pos     meta.Position
	Message string
}

func lintCommand(args []string) error {
	fs := flag.NewFlagSet("lint", flag.ContinueOnError)
	fs.SetOutput(new(flagErrorSink))
	common := registerCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	remaining := fs.Args()
	if len(remaining) == 0 {
		return errors.New("vibemeta lint: script path required")
	}
	cfg, err := common.load(os.Stderr)
	if err != nil {
		return err
	}

	scriptPath, err := filepath.Abs(remaining[0])
	if err != nil {
		return fmt.Errorf("resolve script path: %w", err)
	}
	input, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	warnings, err := lintGraphScript(context.Background(), string(input), cfg)
	if err != nil {
		return fmt.Errorf("lint parse failed: %w", err)
	}
	if len(warnings) == 0 {
		fmt.Println("No issues found")
		return nil
	}

	for _, warning := range warnings {
		line := warning.Pos.Line
		column := warning.Pos.Column
		if line <= 0 {
			line = 1
		}
		if column <= 0 {
			column = 1
		}
		fmt.Printf("%s:%d:%d: %s (%s)\n", scriptPath, line, column, warning.Message, warning.Rule)
	}

	return fmt.Errorf("lint found %d issue(s)", len(warnings))
}

// lintGraphScript executes the script against a scratch runtime, recording
// statements that fail instead of stopping at the first one, and adds static
// warnings for statements that succeed but are likely mistakes.
func lintGraphScript(ctx context.Context, source string, cfg *cliConfig) ([]lintWarning, error) {
	lines, err := parseGraphScript(source)
	if err != nil {
		return nil, err
	}
	session, err := newGraphSession(cfg.runtimeConfig(), io.Discard)
	if err != nil {
		return nil, err
	}

	disabled := cfg.lintDisabled()
	warnings := make([]lintWarning, 0)
	report := func(rule string, line int, format string, args ...any) {
		if disabled[rule] {
			return
		}
		warnings = append(warnings, lintWarning{
			Rule:    rule,
			Pos:     meta.Position{Line: line, Column: 1},
			Message: fmt.Sprintf(format, args...),
		})
	}

	constants := make(map[string]int)
	mixins := make(map[string]int)
	for _, line := range lines {
		lintStatement(session, line, constants, mixins, report)
		if err := session.exec(ctx, line); err != nil {
			report(ruleFailedStatement, line.Line, "%s", statementFailure(err))
		}
	}

	sort.SliceStable(warnings, func(i, j int) bool {
		if warnings[i].Pos.Line != warnings[j].Pos.Line {
			return warnings[i].Pos.Line < warnings[j].Pos.Line
		}
		return warnings[i].Rule < warnings[j].Rule
	})
	return warnings, nil
}

// lintStatement inspects a statement against the graph as it stands before
// the statement runs.
func lintStatement(session *graphSession, line scriptLine, constants, mixins map[string]int, report func(string, int, string, ...any)) {
	args := line.args()
	switch line.command() {
	case "const":
		if len(args) < 3 {
			return
		}
		key := args[0].Text + "::" + args[1].Text
		if first, ok := constants[key]; ok {
			report(ruleRedefinedConst, line.Line, "constant %s already assigned on line %d", key, first)
			return
		}
		constants[key] = line.Line
	case "include", "prepend", "extend":
		for _, arg := range args[min(len(args), 1):] {
			key := args[0].Text + " " + line.command() + " " + arg.Text
			if first, ok := mixins[key]; ok {
				report(ruleDuplicateMixin, line.Line, "%s %s %s repeats line %d", line.command(), args[0].Text, arg.Text, first)
				continue
			}
			mixins[key] = line.Line
		}
	case "undef":
		if len(args) < 2 {
			return
		}
		target, err := session.module(args[0].Text)
		if err != nil {
			return
		}
		for _, name := range args[1:] {
			if target.LookupMethod(name.Text) == nil {
				report(ruleUndefUnknown, line.Line, "undef %s: no method %s is visible", target.Inspect(), name.Text)
			}
		}
	case "methods":
		if len(args) < 2 {
			return
		}
		target, err := session.module(args[0].Text)
		if err != nil {
			return
		}
		var out strings.Builder
		probe := *session
		probe.out = &out
		if err := probe.printMethods(args); err == nil && strings.TrimSpace(out.String()) == "[]" {
			report(ruleEmptyQuery, line.Line, "pattern %s matches no methods of %s", args[1].render(), target.Inspect())
		}
	}
}

func statementFailure(err error) string {
	var re *meta.RuntimeError
	if errors.As(err, &re) {
		if re.Type == meta.ErrorTypeRuntime {
			return re.Message
		}
		return re.Type + ": " + re.Message
	}
	return err.Error()
}
