package host

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/ValentinKolb/tKV/lib/store"
	"github.com/ValentinKolb/tKV/lib/tie"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("host")

// shellName prefixes diagnostics that are not tied to a builtin
const shellName = "tkv"

// Interpreter executes the host language line by line.
// It owns a Namespace and the Binder that ties stores into it.
type Interpreter struct {
	ns       *Namespace
	binder   *tie.Binder
	expander *expander
	builtins map[string]func(args []string) int
	// rawBuiltins receive their arguments unexpanded
	rawBuiltins map[string]func(words []string) int

	out    io.Writer
	errOut io.Writer

	// Prompt is written to out before every line read by Run, if non-empty
	Prompt string

	exited     bool
	exitStatus int
}

// NewInterpreter creates an interpreter writing to out and errOut.
// opts are passed on to the Binder.
func NewInterpreter(out, errOut io.Writer, opts ...tie.Option) *Interpreter {
	ns := NewNamespace()
	in := &Interpreter{
		ns:       ns,
		binder:   tie.NewBinder(ns, opts...),
		expander: &expander{ns: ns},
		out:      out,
		errOut:   errOut,
	}
	in.builtins = map[string]func(args []string) int{
		"ztie":     func(args []string) int { return in.runCobra(in.newZtieCmd(), args) },
		"zuntie":   func(args []string) int { return in.runCobra(in.newZuntieCmd(), args) },
		"echo":     in.echo,
		"readonly": in.readonly,
		"typeset":  in.typeset,
		"stats":    in.stats,
		"info":     in.info,
		"exit":     in.exit,
	}
	in.rawBuiltins = map[string]func(words []string) int{
		"unset": in.unset,
	}
	return in
}

// Namespace returns the parameter table
func (in *Interpreter) Namespace() *Namespace {
	return in.ns
}

// Binder returns the binder that ties stores into the namespace
func (in *Interpreter) Binder() *tie.Binder {
	return in.binder
}

// Exited reports whether exit was executed, and with which status
func (in *Interpreter) Exited() (bool, int) {
	return in.exited, in.exitStatus
}

// Close unties the active store, if any
func (in *Interpreter) Close() error {
	return in.binder.Close()
}

// --------------------------------------------------------------------------
// Execution
// --------------------------------------------------------------------------

// Run executes every line of r until EOF, exit or ctx is done.
// It returns the status of the last executed line.
func (in *Interpreter) Run(ctx context.Context, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	status := 0
	for {
		if err := ctx.Err(); err != nil {
			return status, err
		}
		if in.Prompt != "" {
			fmt.Fprint(in.out, in.Prompt)
		}
		if !scanner.Scan() {
			break
		}
		status = in.Exec(scanner.Text())
		if in.exited {
			return in.exitStatus, nil
		}
	}
	return status, scanner.Err()
}

// Exec executes a single line and returns its exit status
func (in *Interpreter) Exec(line string) int {
	words, err := splitWords(line)
	if err != nil {
		in.warn(shellName, err.Error())
		return 1
	}
	if len(words) == 0 {
		return 0
	}

	if _, ok := parseAssignment(words[0]); ok {
		return in.assignments(words)
	}

	command, err := in.expander.word(words[0])
	if err != nil {
		in.warn(shellName, err.Error())
		return 1
	}
	if raw, ok := in.rawBuiltins[command]; ok {
		log.Debugf("exec %s %v", command, words[1:])
		return raw(words[1:])
	}

	args := []string{command}
	for _, w := range words[1:] {
		expanded, err := in.expander.word(w)
		if err != nil {
			in.warn(shellName, err.Error())
			return 1
		}
		args = append(args, expanded)
	}

	builtin, ok := in.builtins[args[0]]
	if !ok {
		in.warn(shellName, "command not found: "+args[0])
		return 127
	}
	log.Debugf("exec %s %v", args[0], args[1:])
	return builtin(args[1:])
}

// warn writes a diagnostic in the "name: message" form
func (in *Interpreter) warn(name, msg string) {
	fmt.Fprintf(in.errOut, "%s: %s\n", name, msg)
}

// --------------------------------------------------------------------------
// Assignments
// --------------------------------------------------------------------------

func (in *Interpreter) assignments(words []string) int {
	for _, w := range words {
		a, ok := parseAssignment(w)
		if !ok {
			in.warn(shellName, "only assignments are supported on this line: "+w)
			return 1
		}
		if err := in.assign(a); err != nil {
			in.warn(shellName, err.Error())
			return 1
		}
	}
	return 0
}

func (in *Interpreter) assign(a assignment) error {
	value, err := in.expander.word(a.value)
	if err != nil {
		return err
	}
	if !a.hasKey {
		return in.ns.SetScalar(a.name, value)
	}

	key, err := in.expander.word(a.key)
	if err != nil {
		return err
	}
	hash, err := in.hash(a.name)
	if err != nil {
		return err
	}
	return hash.Set(key, []byte(value))
}

// hash returns the store behind the special hash name
func (in *Interpreter) hash(name string) (store.IStore, error) {
	p, ok := in.ns.Lookup(name)
	if !ok || p.Type != ParamSpecialHash {
		return nil, fmt.Errorf("%s: not a tied hash", name)
	}
	return p.Hash, nil
}

// --------------------------------------------------------------------------
// Builtins
// --------------------------------------------------------------------------

func (in *Interpreter) echo(args []string) int {
	newline := true
	if len(args) > 0 && args[0] == "-n" {
		newline = false
		args = args[1:]
	}
	fmt.Fprint(in.out, strings.Join(args, " "))
	if newline {
		fmt.Fprintln(in.out)
	}
	return 0
}

// unset NAME... / unset NAME[key]...
// words are raw, only the key of NAME[key] is expanded.
func (in *Interpreter) unset(words []string) int {
	status := 0
	for _, word := range words {
		name, key, hasKey, err := in.unsetTarget(word)
		if err != nil {
			in.warn("unset", err.Error())
			status = 1
			continue
		}

		if hasKey {
			var hash store.IStore
			if hash, err = in.hash(name); err == nil {
				err = hash.Unset(key)
			}
		} else {
			err = in.ns.Unset(name)
		}
		if err != nil {
			in.warn("unset", err.Error())
			status = 1
		}
	}
	return status
}

// unsetTarget resolves one raw unset argument. NAME[key] written
// unquoted keeps its key raw for expansion. Any other form, like
// "NAME[key]" or $var, is expanded first and split literally.
func (in *Interpreter) unsetTarget(word string) (name, key string, hasKey bool, err error) {
	if name, rawKey, hasKey, ok := parseSubscript(word); ok {
		if !hasKey {
			return name, "", false, nil
		}
		key, err := in.expander.word(rawKey)
		return name, key, true, err
	}

	expanded, err := in.expander.word(word)
	if err != nil {
		return "", "", false, err
	}
	name, key, hasKey, ok := splitLiteralSubscript(expanded)
	if !ok {
		return "", "", false, fmt.Errorf("%s: invalid parameter name", expanded)
	}
	return name, key, hasKey, nil
}

// readonly [NAME[=value]...]
func (in *Interpreter) readonly(args []string) int {
	if len(args) == 0 {
		for _, name := range in.ns.Names() {
			if p, ok := in.ns.Lookup(name); ok && p.ReadOnly {
				fmt.Fprintf(in.out, "%s=%s\n", name, quote(p.Value))
			}
		}
		return 0
	}

	status := 0
	for _, arg := range args {
		var err error
		if name, value, found := strings.Cut(arg, "="); found {
			err = in.ns.SetReadOnly(name, &value)
		} else {
			err = in.ns.SetReadOnly(arg, nil)
		}
		if err != nil {
			in.warn("readonly", err.Error())
			status = 1
		}
	}
	return status
}

// typeset -p [NAME...]
func (in *Interpreter) typeset(args []string) int {
	if len(args) == 0 || args[0] != "-p" {
		in.warn("typeset", "only typeset -p is supported")
		return 1
	}
	names := args[1:]
	if len(names) == 0 {
		names = in.ns.Names()
	}

	status := 0
	for _, name := range names {
		p, ok := in.ns.Lookup(name)
		if !ok {
			in.warn("typeset", "no such variable: "+name)
			status = 1
			continue
		}
		if err := in.printParam(p); err != nil {
			in.warn("typeset", err.Error())
			status = 1
		}
	}
	return status
}

func (in *Interpreter) printParam(p *Param) error {
	if p.Type == ParamScalar {
		flags := ""
		if p.ReadOnly {
			flags = " -r"
		}
		fmt.Fprintf(in.out, "typeset%s %s=%s\n", flags, p.Name, quote(p.Value))
		return nil
	}

	var entries []store.Entry
	if err := p.Hash.Scan(func(e store.Entry) bool {
		entries = append(entries, e)
		return true
	}); err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key() < entries[j].Key() })

	var sb strings.Builder
	fmt.Fprintf(&sb, "typeset -A %s=(", p.Name)
	for _, e := range entries {
		fmt.Fprintf(&sb, " [%s]=%s", quote(e.Key()), quote(string(e.Value())))
	}
	sb.WriteString(" )")
	if b := in.binder.Binding(); b != nil && b.Name == p.Name {
		fmt.Fprintf(&sb, " # tied to %s (%s)", b.Path, b.Kind)
	}
	fmt.Fprintln(in.out, sb.String())
	return nil
}

// stats prints the bridge counters in Prometheus text format
func (in *Interpreter) stats(_ []string) int {
	in.binder.Counters().WritePrometheus(in.out)
	return 0
}

// info prints the engine info of the tied store as JSON
func (in *Interpreter) info(_ []string) int {
	info, err := in.binder.Info()
	if err != nil {
		in.warn("info", "nothing is ztied")
		return 1
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		in.warn("info", err.Error())
		return 1
	}
	fmt.Fprintln(in.out, string(data))
	return 0
}

// exit [n]
func (in *Interpreter) exit(args []string) int {
	status := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			in.warn("exit", "numeric argument required: "+args[0])
			return 1
		}
		status = n
	}
	in.exited = true
	in.exitStatus = status
	return status
}

// quote renders s so that it reads back as the same word
func quote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r == '_' || r == '-' || r == '.' || r == '/' || r == ':' ||
			r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
