package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const suspiciousScript = `class Widget
const Widget LIMIT = 1
const Widget LIMIT = 2
module Mixin
include Widget Mixin
include Widget Mixin
undef Widget nothing
methods Widget zz*
include Widget Widget
`

func TestLintGraphScriptReportsIssuesInLineOrder(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)

	warnings, err := lintGraphScript(context.Background(), suspiciousScript, cfg)
	require.NoError(t, err)
	require.Len(t, warnings, 6)

	type summary struct {
		line int
		rule string
	}
	var got []summary
	for _, w := range warnings {
		got = append(got, summary{w.Pos.Line, w.Rule})
	}
	assert.Equal(t, []summary{
		{3, ruleRedefinedConst},
		{6, ruleDuplicateMixin},
		{7, ruleFailedStatement},
		{7, ruleUndefUnknown},
		{8, ruleEmptyQuery},
		{9, ruleFailedStatement},
	}, got)

	assert.Equal(t, "constant Widget::LIMIT already assigned on line 2", warnings[0].Message)
	assert.Equal(t, "include Widget Mixin repeats line 5", warnings[1].Message)
	assert.True(t, strings.HasPrefix(warnings[2].Message, "NameError: undefined method 'nothing'"), warnings[2].Message)
	assert.Equal(t, "undef Widget: no method nothing is visible", warnings[3].Message)
	assert.Equal(t, "pattern zz* matches no methods of Widget", warnings[4].Message)
	assert.True(t, strings.HasPrefix(warnings[5].Message, "TypeError: "), warnings[5].Message)
}

func TestLintGraphScriptHonorsDisabledRules(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	cfg.Lint.Disable = []string{ruleDuplicateMixin, ruleEmptyQuery}

	warnings, err := lintGraphScript(context.Background(), suspiciousScript, cfg)
	require.NoError(t, err)
	for _, w := range warnings {
		assert.NotEqual(t, ruleDuplicateMixin, w.Rule)
		assert.NotEqual(t, ruleEmptyQuery, w.Rule)
	}
	assert.Len(t, warnings, 4)
}

func TestLintGraphScriptRejectsUnparsableSource(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	_, err = lintGraphScript(context.Background(), "module A\np \"open\n", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLintCommandNoIssues(t *testing.T) {
	scriptPath := writeScript(t, "module Mixin\nclass Widget\ninclude Widget Mixin\nancestors Widget\n")

	out, err := captureStdout(t, func() error {
		return lintCommand([]string{scriptPath})
	})
	if err != nil {
		t.Fatalf("lintCommand failed: %v", err)
	}
	if !strings.Contains(out, "No issues found") {
		t.Fatalf("unexpected lint output: %q", out)
	}
}

func TestLintCommandReportsIssues(t *testing.T) {
	scriptPath := writeScript(t, suspiciousScript)

	out, err := captureStdout(t, func() error {
		return lintCommand([]string{scriptPath})
	})
	if err == nil {
		t.Fatalf("expected lint command to report failures")
	}
	if !strings.Contains(err.Error(), "lint found 6 issue(s)") {
		t.Fatalf("unexpected lint error: %v", err)
	}
	if !strings.Contains(out, ":3:1: constant Widget::LIMIT already assigned on line 2 (redefined-constant)") {
		t.Fatalf("expected redefined constant warning, got %q", out)
	}
}

func TestLintCommandRequiresScriptPath(t *testing.T) {
	err := lintCommand(nil)
	if err == nil || !strings.Contains(err.Error(), "script path required") {
		t.Fatalf("unexpected error: %v", err)
	}
}
