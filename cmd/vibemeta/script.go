package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/gobwas/glob"
	"github.com/mgomes/vibemeta/meta"
)

type scriptToken struct {
	Text   string
	Quoted bool
}

func (t scriptToken) render() string {
	if t.Quoted {
		return strconv.Quote(t.Text)
	}
	return t.Text
}

type scriptLine struct {
	Line    int
	Tokens  []scriptToken
	Comment string
}

func (l scriptLine) command() string {
	if len(l.Tokens) == 0 {
		return ""
	}
	return l.Tokens[0].Text
}

func (l scriptLine) args() []scriptToken {
	if len(l.Tokens) == 0 {
		return nil
	}
	return l.Tokens[1:]
}

// tokenizeLine splits one script line into words and double-quoted strings.
// Everything from an unquoted # on is returned as the comment.
func tokenizeLine(line string) ([]scriptToken, string, error) {
	var tokens []scriptToken
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '#':
			return tokens, strings.TrimSpace(line[i:]), nil
		case c == '"':
			end := i + 1
			for end < len(line) && line[end] != '"' {
				if line[end] == '\\' {
					end++
				}
				end++
			}
			if end >= len(line) {
				return nil, "", errors.New("unterminated string literal")
			}
			text, err := strconv.Unquote(line[i : end+1])
			if err != nil {
				return nil, "", fmt.Errorf("invalid string literal %s: %w", line[i:end+1], err)
			}
			tokens = append(tokens, scriptToken{Text: text, Quoted: true})
			i = end + 1
		default:
			end := i
			for end < len(line) && !strings.ContainsRune(" \t#\"", rune(line[end])) {
				end++
			}
			tokens = append(tokens, scriptToken{Text: line[i:end]})
			i = end
		}
	}
	return tokens, "", nil
}

func splitSourceLines(source string) []string {
	normalized := strings.ReplaceAll(source, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.Split(normalized, "\n")
}

// parseGraphScript returns the statements of source, skipping blank and
// comment-only lines.
func parseGraphScript(source string) ([]scriptLine, error) {
	var lines []scriptLine
	for i, raw := range splitSourceLines(source) {
		tokens, comment, err := tokenizeLine(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if len(tokens) == 0 {
			continue
		}
		lines = append(lines, scriptLine{Line: i + 1, Tokens: tokens, Comment: comment})
	}
	return lines, nil
}

// graphSession executes graph scripts against one runtime. Query results
// are written to out.
type graphSession struct {
	rt     *meta.Runtime
	out    io.Writer
	tables map[string]*meta.HashTable
	vars   map[string]meta.Value
	boot   map[string]struct{}
}

func newGraphSession(cfg meta.Config, out io.Writer) (*graphSession, error) {
	rt, err := meta.NewRuntime(cfg)
	if err != nil {
		return nil, err
	}
	boot := make(map[string]struct{})
	for name := range rt.Object().Constants() {
		boot[name] = struct{}{}
	}
	return &graphSession{
		rt:     rt,
		out:    out,
		tables: make(map[string]*meta.HashTable),
		vars:   make(map[string]meta.Value),
		boot:   boot,
	}, nil
}

func runGraphFile(ctx context.Context, path string, out io.Writer, cfg *cliConfig) error {
	input, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	session, err := newGraphSession(cfg.runtimeConfig(), out)
	if err != nil {
		return err
	}
	return session.runSource(ctx, string(input))
}

func (s *graphSession) runSource(ctx context.Context, source string) error {
	lines, err := parseGraphScript(source)
	if err != nil {
		return err
	}
	for _, line := range lines {
		if err := s.exec(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

// exec runs one statement. Failures carry the statement's line.
func (s *graphSession) exec(ctx context.Context, line scriptLine) error {
	if err := s.dispatch(ctx, line.command(), line.args()); err != nil {
		return meta.WithPosition(err, meta.Position{Line: line.Line, Column: 1})
	}
	return nil
}

func (s *graphSession) dispatch(ctx context.Context, command string, args []scriptToken) error {
	switch command {
	case "module":
		return s.defineModule(args)
	case "class":
		return s.defineClass(ctx, args)
	case "include", "prepend", "extend":
		return s.mixin(ctx, command, args)
	case "def", "defs":
		return s.defineMethod(command == "defs", args)
	case "undef", "remove", "private", "public", "protected", "private_constant":
		return s.changeMethods(ctx, command, args)
	case "const":
		return s.setConstant(args)
	case "cvar":
		return s.setClassVariable(args)
	case "ancestors":
		return s.printAncestors(args)
	case "lookup":
		return s.printLookup(args)
	case "super":
		return s.printSuper(args)
	case "resolve":
		return s.printResolve(args)
	case "scoped":
		return s.printScoped(args)
	case "cvar?":
		return s.printClassVariable(args)
	case "methods":
		return s.printMethods(args)
	case "superclass":
		return s.printSuperclass(ctx, args)
	case "new", "send":
		val, err := s.evalCall(ctx, command, args)
		if err != nil {
			return err
		}
		s.println(val.Inspect())
		return nil
	case "let":
		return s.assign(ctx, args)
	case "p":
		if err := expectTokens(args, 1, "p <value>"); err != nil {
			return err
		}
		val, err := s.value(args[0])
		if err != nil {
			return err
		}
		s.println(val.Inspect())
		return nil
	case "hash", "hset", "hget", "hdel", "hkeys":
		return s.hashCommand(ctx, command, args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (s *graphSession) println(text string) {
	fmt.Fprintln(s.out, text)
}

func expectTokens(args []scriptToken, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

func (s *graphSession) module(path string) (*meta.Module, error) {
	constant, err := s.rt.LookupScopedConstant(s.rt.Object(), path, true)
	if err != nil {
		return nil, err
	}
	if constant == nil {
		return nil, fmt.Errorf("uninitialized constant %s", path)
	}
	module := constant.Value.Module()
	if module == nil {
		return nil, fmt.Errorf("%s is not a class/module", path)
	}
	return module, nil
}

// splitPath resolves everything before the last :: of path and returns it
// together with the final segment.
func (s *graphSession) splitPath(path string) (*meta.Module, string, error) {
	path = strings.TrimPrefix(path, "::")
	idx := strings.LastIndex(path, "::")
	if idx < 0 {
		return s.rt.Object(), path, nil
	}
	parent, err := s.module(path[:idx])
	if err != nil {
		return nil, "", err
	}
	return parent, path[idx+2:], nil
}

func (s *graphSession) defineModule(args []scriptToken) error {
	if err := expectTokens(args, 1, "module <Name>"); err != nil {
		return err
	}
	parent, name, err := s.splitPath(args[0].Text)
	if err != nil {
		return err
	}
	_, err = s.rt.DefineModule(parent, name)
	return err
}

func (s *graphSession) defineClass(ctx context.Context, args []scriptToken) error {
	if err := expectTokens(args, 1, "class <Name> [< Superclass]"); err != nil {
		return err
	}
	parent, name, err := s.splitPath(args[0].Text)
	if err != nil {
		return err
	}
	var superclass *meta.Module
	if len(args) > 1 {
		if len(args) != 3 || args[1].Text != "<" {
			return errors.New("usage: class <Name> [< Superclass]")
		}
		superclass, err = s.module(args[2].Text)
		if err != nil {
			return err
		}
	}
	_, err = s.rt.DefineClass(ctx, parent, name, superclass)
	return err
}

func (s *graphSession) mixin(ctx context.Context, verb string, args []scriptToken) error {
	if err := expectTokens(args, 2, verb+" <target> <Module>..."); err != nil {
		return err
	}
	target, err := s.value(args[0])
	if err != nil {
		return err
	}
	modules := make([]meta.Value, 0, len(args)-1)
	for _, arg := range args[1:] {
		module, err := s.module(arg.Text)
		if err != nil {
			return err
		}
		modules = append(modules, meta.NewModule(module))
	}
	_, err = s.rt.PublicSend(ctx, target, verb, modules, meta.NewNil())
	return err
}

// defineMethod binds a method returning a literal, or delegating to the next
// definition when the body is the bare word super.
func (s *graphSession) defineMethod(singleton bool, args []scriptToken) error {
	if err := expectTokens(args, 2, "def <Module> <name> [value|super]"); err != nil {
		return err
	}
	target, err := s.module(args[0].Text)
	if err != nil {
		return err
	}
	if singleton {
		target, err = s.rt.SingletonClass(meta.NewModule(target))
		if err != nil {
			return err
		}
	}

	body := meta.NewNil()
	delegate := false
	if len(args) > 2 {
		if !args[2].Quoted && args[2].Text == "super" {
			delegate = true
		} else if body, err = s.value(args[2]); err != nil {
			return err
		}
	}
	target.DefineMethod(args[1].Text, func(ctx context.Context, rt *meta.Runtime, self meta.Value, args []meta.Value, block meta.Value) (meta.Value, error) {
		if delegate {
			return rt.Super(ctx, args, block)
		}
		return body, nil
	})
	return nil
}

func (s *graphSession) changeMethods(ctx context.Context, command string, args []scriptToken) error {
	if err := expectTokens(args, 2, command+" <Module> <name>..."); err != nil {
		return err
	}
	target, err := s.module(args[0].Text)
	if err != nil {
		return err
	}
	method := command
	switch command {
	case "undef":
		method = "undef_method"
	case "remove":
		method = "remove_method"
	}
	names := make([]meta.Value, 0, len(args)-1)
	for _, arg := range args[1:] {
		names = append(names, meta.NewSymbol(arg.Text))
	}
	_, err = s.rt.Send(ctx, meta.NewModule(target), method, names, meta.NewNil())
	return err
}

// assignmentArgs accepts "<target> <name> = <value>" with the = optional.
func assignmentArgs(args []scriptToken, usage string) (string, string, scriptToken, error) {
	if len(args) == 4 && args[2].Text == "=" && !args[2].Quoted {
		return args[0].Text, args[1].Text, args[3], nil
	}
	if len(args) == 3 {
		return args[0].Text, args[1].Text, args[2], nil
	}
	return "", "", scriptToken{}, fmt.Errorf("usage: %s", usage)
}

func (s *graphSession) setConstant(args []scriptToken) error {
	targetPath, name, raw, err := assignmentArgs(args, "const <Module> <NAME> = <value>")
	if err != nil {
		return err
	}
	target, err := s.module(targetPath)
	if err != nil {
		return err
	}
	val, err := s.value(raw)
	if err != nil {
		return err
	}
	return target.SetConstant(name, val)
}

func (s *graphSession) setClassVariable(args []scriptToken) error {
	targetPath, name, raw, err := assignmentArgs(args, "cvar <Module> <@@name> = <value>")
	if err != nil {
		return err
	}
	target, err := s.module(targetPath)
	if err != nil {
		return err
	}
	val, err := s.value(raw)
	if err != nil {
		return err
	}
	return target.SetClassVariable(name, val)
}

func (s *graphSession) printAncestors(args []scriptToken) error {
	if err := expectTokens(args, 1, "ancestors <Module>"); err != nil {
		return err
	}
	target, err := s.module(args[0].Text)
	if err != nil {
		return err
	}
	s.println(joinModules(target.Ancestors()))
	return nil
}

func joinModules(modules []*meta.Module) string {
	names := make([]string, len(modules))
	for i, m := range modules {
		names[i] = m.Inspect()
	}
	return "[" + strings.Join(names, ", ") + "]"
}

func describeMethod(method *meta.Method) string {
	if method == nil {
		return "nil"
	}
	if method.IsUndefined() {
		return fmt.Sprintf("%s#%s (undefined)", method.Owner.Inspect(), method.Name)
	}
	return fmt.Sprintf("%s#%s (%s)", method.Owner.Inspect(), method.Name, method.Visibility)
}

func (s *graphSession) printLookup(args []scriptToken) error {
	if err := expectTokens(args, 2, "lookup <Module> <name>"); err != nil {
		return err
	}
	target, err := s.module(args[0].Text)
	if err != nil {
		return err
	}
	s.println(describeMethod(target.LookupMethodEntry(args[1].Text)))
	return nil
}

func (s *graphSession) printSuper(args []scriptToken) error {
	if err := expectTokens(args, 3, "super <DeclaringModule> <name> <StartClass>"); err != nil {
		return err
	}
	declaring, err := s.module(args[0].Text)
	if err != nil {
		return err
	}
	start, err := s.module(args[2].Text)
	if err != nil {
		return err
	}
	if !start.IncludesModule(declaring) {
		return fmt.Errorf("%s is not an ancestor of %s", declaring.Inspect(), start.Inspect())
	}
	s.println(describeMethod(meta.LookupSuperMethod(declaring, args[1].Text, start)))
	return nil
}

// printResolve looks name up as if referenced from inside the body of the
// module at path, nested the way the path spells it.
func (s *graphSession) printResolve(args []scriptToken) error {
	if err := expectTokens(args, 2, "resolve <Module::Path> <NAME>"); err != nil {
		return err
	}
	scope := s.rt.RootLexicalScope()
	live := s.rt.Object()
	prefix := ""
	for _, segment := range strings.Split(strings.TrimPrefix(args[0].Text, "::"), "::") {
		prefix = strings.TrimPrefix(prefix+"::"+segment, "::")
		module, err := s.module(prefix)
		if err != nil {
			return err
		}
		scope = meta.NewLexicalScope(scope, module)
		live = module
	}
	constant := s.rt.LookupConstant(scope, live, args[1].Text)
	s.println(describeConstant(constant))
	return nil
}

func describeConstant(constant *meta.Constant) string {
	if constant == nil {
		return "nil"
	}
	owner := constant.Owner.Inspect() + "::"
	if constant.Owner.Name() == "Object" {
		owner = ""
	}
	return fmt.Sprintf("%s%s = %s", owner, constant.Name, constant.Value.Inspect())
}

func (s *graphSession) printScoped(args []scriptToken) error {
	if err := expectTokens(args, 1, "scoped <A::B::C>"); err != nil {
		return err
	}
	constant, err := s.rt.LookupScopedConstant(s.rt.Object(), args[0].Text, true)
	if err != nil {
		return err
	}
	s.println(describeConstant(constant))
	return nil
}

func (s *graphSession) printClassVariable(args []scriptToken) error {
	if err := expectTokens(args, 2, "cvar? <Module> <@@name>"); err != nil {
		return err
	}
	target, err := s.module(args[0].Text)
	if err != nil {
		return err
	}
	val, ok := target.LookupClassVariable(args[1].Text)
	if !ok {
		s.println("nil")
		return nil
	}
	s.println(fmt.Sprintf("%s (%s)", val.Inspect(), target.ClassVariableOwner(args[1].Text).Inspect()))
	return nil
}

// printMethods lists the public and protected methods callable on instances
// of a module, optionally filtered by a glob such as "to_*".
func (s *graphSession) printMethods(args []scriptToken) error {
	if err := expectTokens(args, 1, "methods <Module> [pattern]"); err != nil {
		return err
	}
	target, err := s.module(args[0].Text)
	if err != nil {
		return err
	}
	var pattern glob.Glob
	if len(args) > 1 {
		pattern, err = glob.Compile(args[1].Text)
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", args[1].Text, err)
		}
	}
	var names []string
	for name, method := range meta.WithoutUndefinedMethods(target.AllMethods()) {
		if method.Visibility == meta.VisibilityPrivate {
			continue
		}
		if pattern != nil && !pattern.Match(name) {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	s.println("[" + strings.Join(names, ", ") + "]")
	return nil
}

func (s *graphSession) printSuperclass(ctx context.Context, args []scriptToken) error {
	if err := expectTokens(args, 1, "superclass <Class>"); err != nil {
		return err
	}
	target, err := s.module(args[0].Text)
	if err != nil {
		return err
	}
	superclass, err := s.rt.PublicSend(ctx, meta.NewModule(target), "superclass", nil, meta.NewNil())
	if err != nil {
		return err
	}
	s.println(superclass.Inspect())
	return nil
}

// evalCall runs "new <Class> args..." or "send <receiver> <method> args...".
func (s *graphSession) evalCall(ctx context.Context, command string, args []scriptToken) (meta.Value, error) {
	if command == "new" {
		if err := expectTokens(args, 1, "new <Class> [args...]"); err != nil {
			return meta.NewNil(), err
		}
		class, err := s.module(args[0].Text)
		if err != nil {
			return meta.NewNil(), err
		}
		callArgs, err := s.values(args[1:])
		if err != nil {
			return meta.NewNil(), err
		}
		return s.rt.PublicSend(ctx, meta.NewModule(class), "new", callArgs, meta.NewNil())
	}

	if err := expectTokens(args, 2, "send <receiver> <method> [args...]"); err != nil {
		return meta.NewNil(), err
	}
	receiver, err := s.value(args[0])
	if err != nil {
		return meta.NewNil(), err
	}
	callArgs, err := s.values(args[2:])
	if err != nil {
		return meta.NewNil(), err
	}
	return s.rt.PublicSend(ctx, receiver, args[1].Text, callArgs, meta.NewNil())
}

func (s *graphSession) assign(ctx context.Context, args []scriptToken) error {
	if len(args) < 3 || args[1].Text != "=" || !isLocalName(args[0].Text) {
		return errors.New("usage: let <name> = <value|new ...|send ...>")
	}
	var (
		val meta.Value
		err error
	)
	switch rest := args[2:]; {
	case !rest[0].Quoted && (rest[0].Text == "new" || rest[0].Text == "send"):
		val, err = s.evalCall(ctx, rest[0].Text, rest[1:])
	case len(rest) == 1:
		val, err = s.value(rest[0])
	default:
		err = errors.New("usage: let <name> = <value|new ...|send ...>")
	}
	if err != nil {
		return err
	}
	s.vars[args[0].Text] = val
	return nil
}

func (s *graphSession) hashCommand(ctx context.Context, command string, args []scriptToken) error {
	if err := expectTokens(args, 1, command+" <table> ..."); err != nil {
		return err
	}
	name := args[0].Text
	if command == "hash" {
		table := s.rt.NewHash()
		if len(args) > 1 && args[1].Text == "identity" {
			table.CompareByIdentity()
		}
		s.tables[name] = table
		s.vars[name] = meta.NewHashValue(table)
		return nil
	}

	table, ok := s.tables[name]
	if !ok {
		return fmt.Errorf("unknown hash table %s", name)
	}
	switch command {
	case "hkeys":
		s.println(meta.NewArray(table.Keys()).Inspect())
		return nil
	case "hset":
		if err := expectTokens(args, 3, "hset <table> <key> <value>"); err != nil {
			return err
		}
		values, err := s.values(args[1:3])
		if err != nil {
			return err
		}
		return table.Set(ctx, values[0], values[1])
	}

	if err := expectTokens(args, 2, command+" <table> <key>"); err != nil {
		return err
	}
	key, err := s.value(args[1])
	if err != nil {
		return err
	}
	var val meta.Value
	if command == "hdel" {
		val, _, err = table.Delete(ctx, key)
	} else {
		val, _, err = table.Get(ctx, key)
	}
	if err != nil {
		return err
	}
	s.println(val.Inspect())
	return nil
}

func (s *graphSession) values(tokens []scriptToken) ([]meta.Value, error) {
	out := make([]meta.Value, len(tokens))
	for i, token := range tokens {
		val, err := s.value(token)
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

// value parses a literal: "string", :symbol, integers, floats, nil, true,
// false, a constant path, or a name bound by let.
func (s *graphSession) value(token scriptToken) (meta.Value, error) {
	if token.Quoted {
		return meta.NewString(token.Text), nil
	}
	text := token.Text
	switch text {
	case "nil":
		return meta.NewNil(), nil
	case "true":
		return meta.NewBool(true), nil
	case "false":
		return meta.NewBool(false), nil
	}
	if strings.HasPrefix(text, ":") && len(text) > 1 && !strings.HasPrefix(text, "::") {
		return meta.NewSymbol(text[1:]), nil
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return meta.NewInt(i), nil
	}
	if strings.ContainsAny(text, ".eE") {
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return meta.NewFloat(f), nil
		}
	}
	if isConstantPath(text) {
		constant, err := s.rt.LookupScopedConstant(s.rt.Object(), text, true)
		if err != nil {
			return meta.NewNil(), err
		}
		if constant == nil {
			return meta.NewNil(), fmt.Errorf("uninitialized constant %s", text)
		}
		return constant.Value, nil
	}
	if val, ok := s.vars[text]; ok {
		return val, nil
	}
	return meta.NewNil(), fmt.Errorf("undefined local variable %s", text)
}

func isConstantPath(text string) bool {
	text = strings.TrimPrefix(text, "::")
	for _, segment := range strings.Split(text, "::") {
		if !meta.IsValidConstantName(segment) {
			return false
		}
	}
	return true
}

func isLocalName(text string) bool {
	for i, r := range text {
		switch {
		case r == '_', unicode.IsLower(r):
		case i > 0 && (unicode.IsDigit(r) || unicode.IsUpper(r)):
		default:
			return false
		}
	}
	return text != ""
}

// userModules lists the modules a script defined directly under Object.
func (s *graphSession) userModules() []*meta.Module {
	constants := s.rt.Object().Constants()
	names := make([]string, 0, len(constants))
	for name, constant := range constants {
		if _, ok := s.boot[name]; ok || constant.Value.Module() == nil {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([]*meta.Module, len(names))
	for i, name := range names {
		out[i] = constants[name].Value.Module()
	}
	return out
}
