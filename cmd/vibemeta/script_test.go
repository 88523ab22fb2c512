package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/mgomes/vibemeta/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runScriptSource(t *testing.T, source string) ([]string, error) {
	t.Helper()
	var buf bytes.Buffer
	session, err := newGraphSession(meta.Config{}, &buf)
	require.NoError(t, err)
	runErr := session.runSource(context.Background(), source)
	out := strings.TrimRight(buf.String(), "\n")
	if out == "" {
		return nil, runErr
	}
	return strings.Split(out, "\n"), runErr
}

func TestTokenizeLine(t *testing.T) {
	tokens, comment, err := tokenizeLine(`  const Outer Name = "a # b"  # trailing note`)
	require.NoError(t, err)
	assert.Equal(t, "# trailing note", comment)
	require.Len(t, tokens, 5)
	assert.Equal(t, scriptToken{Text: "a # b", Quoted: true}, tokens[4])
	assert.Equal(t, "=", tokens[3].Text)

	tokens, _, err = tokenizeLine(`p "say \"hi\""`)
	require.NoError(t, err)
	assert.Equal(t, `say "hi"`, tokens[1].Text)
	assert.Equal(t, `"say \"hi\""`, tokens[1].render())

	_, _, err = tokenizeLine(`p "open`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated string literal")
}

func TestParseGraphScriptSkipsBlankAndCommentLines(t *testing.T) {
	lines, err := parseGraphScript("# header\r\n\r\nmodule A\n  # indented\nclass B\n")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 3, lines[0].Line)
	assert.Equal(t, "module", lines[0].command())
	assert.Equal(t, 5, lines[1].Line)

	_, err = parseGraphScript("module A\np \"x")
	require.Error(t, err)
	assert.Equal(t, "line 2: unterminated string literal", err.Error())
}

func TestScriptMethodResolutionAndSuper(t *testing.T) {
	out, err := runScriptSource(t, `
module Greeting
module Loud
class Animal
def Animal speak "..."
class Dog < Animal
include Dog Greeting
prepend Dog Loud
def Dog speak super
def Loud speak super

ancestors Dog
lookup Dog speak
super Loud speak Dog
super Dog speak Dog
superclass Dog
let rex = new Dog
send rex speak
`)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"[Loud, Dog, Greeting, Animal, Object, Kernel, BasicObject]",
		"Loud#speak (public)",
		"Dog#speak (public)",
		"Animal#speak (public)",
		"Animal",
		`"..."`,
	}, out)
}

func TestScriptConstantsResolveLexicallyFirst(t *testing.T) {
	out, err := runScriptSource(t, `
module Outer
const Outer Limit = 1
class Parent
const Parent Limit = 2
class Outer::Inner < Parent
resolve Outer::Inner Limit
scoped Outer::Inner::Limit
scoped Missing
const Object Top = :top
resolve Outer Top
p Outer::Inner
`)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Outer::Limit = 1",
		"Parent::Limit = 2",
		"nil",
		"Top = :top",
		"Outer::Inner",
	}, out)
}

func TestScriptClassVariablesAndMethods(t *testing.T) {
	out, err := runScriptSource(t, `
class Animal
class Dog < Animal
cvar Animal @@count = 1
cvar Dog @@count = 5
cvar? Dog @@count
cvar? Dog @@missing
def Dog speak 1
def Dog sprint 2
def Dog secret 3
private Dog secret
methods Dog sp*
methods Dog se*
`)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"5 (Animal)",
		"nil",
		"[speak, sprint]",
		"[]",
	}, out)
}

func TestScriptUndefAndRemove(t *testing.T) {
	out, err := runScriptSource(t, `
class A
def A hi 1
class B < A
def B hi 2
remove B hi
lookup B hi
undef B hi
lookup B hi
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"A#hi (public)", "B#hi (undefined)"}, out)

	_, err = runScriptSource(t, "class A\nundef A nothing\n")
	require.Error(t, err)
	assert.True(t, meta.IsErrorType(err, meta.ErrorTypeName))
}

func TestScriptSingletonMethodsAndExtend(t *testing.T) {
	out, err := runScriptSource(t, `
class Animal
class Dog < Animal
defs Animal create "made"
send Dog create
module Tricks
def Tricks roll "rolling"
let obj = new Animal
extend obj Tricks
send obj roll
`)
	require.NoError(t, err)
	assert.Equal(t, []string{`"made"`, `"rolling"`}, out)
}

func TestScriptPrivateMethodRejectedOnExplicitReceiver(t *testing.T) {
	_, err := runScriptSource(t, `
class Animal
def Animal secret 1
private Animal secret
let a = new Animal
send a secret
`)
	require.Error(t, err)
	var re *meta.RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, meta.ErrorTypeNoMethod, re.Type)
	assert.Contains(t, re.Message, "private method 'secret'")
	assert.Equal(t, 6, re.Pos.Line)
}

func TestScriptHashTables(t *testing.T) {
	out, err := runScriptSource(t, `
hash h
hset h :b 1
hset h :a 2
hset h :b 3
hget h :b
hkeys h
hdel h :b
hkeys h
hget h :zzz
hset h 1 :int
hget h 1.0
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "[:b, :a]", "3", "[:a]", "nil", "nil"}, out)
}

func TestScriptErrorsCarryLine(t *testing.T) {
	_, err := runScriptSource(t, "class Animal\nclass Dog < Animal\nclass Dog < Object\n")
	require.Error(t, err)
	assert.Equal(t, "TypeError: superclass mismatch for class Dog (3:1)", err.Error())

	_, err = runScriptSource(t, "frob Dog\n")
	require.Error(t, err)
	assert.Equal(t, `RuntimeError: unknown command "frob" (1:1)`, err.Error())

	_, err = runScriptSource(t, "include Missing Other\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uninitialized constant Missing")

	_, err = runScriptSource(t, "module M\nsuper M x Object\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "M is not an ancestor of Object")
}

func TestScriptValueLiterals(t *testing.T) {
	out, err := runScriptSource(t, `
p 1.5
p :sym
p nil
p "x"
p -3
p true
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.5", ":sym", "nil", `"x"`, "-3", "true"}, out)

	_, err = runScriptSource(t, "p nope\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined local variable nope")
}

func TestUserModulesExcludesBootConstants(t *testing.T) {
	session, err := newGraphSession(meta.Config{}, &bytes.Buffer{})
	require.NoError(t, err)
	require.NoError(t, session.runSource(context.Background(), "module Zeta\nclass Alpha\nconst Object Count = 3\n"))

	var names []string
	for _, m := range session.userModules() {
		names = append(names, m.Name())
	}
	assert.Equal(t, []string{"Alpha", "Zeta"}, names)
}
