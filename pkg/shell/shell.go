// Package shell runs external commands through mvdan.cc/sh's interpreter so that adapters which depend
// on external compilers behave the same on every platform.
package shell

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/ngld/assetpipe/pkg/logging"
)

// Command describes a single external process invocation
type Command struct {
	Dir  string
	Env  map[string]string
	Args []string
}

// Result holds the captured output of a finished command
type Result struct {
	Stdout []byte
	Stderr []byte
}

// ExitError is returned when the command ran but exited with a non-zero status
type ExitError struct {
	Command string
	Status  uint8
	Stderr  string
}

var _ error = (*ExitError)(nil)

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s exited with status %d", e.Command, e.Status)
	}
	return fmt.Sprintf("%s exited with status %d:\n%s", e.Command, e.Status, msg)
}

func getEnv(cmd Command) expand.Environ {
	envVars := os.Environ()

	for name, value := range cmd.Env {
		envVars = append(envVars, fmt.Sprintf("%s=%s", name, value))
	}

	return expand.ListEnviron(envVars...)
}

var defaultExecHandler = interp.DefaultExecHandler(2 * time.Second)

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

// BuildCall turns an argument list into a shell call expression. Arguments are quoted where necessary so
// they reach the process unchanged.
func BuildCall(args []string, base string) *syntax.CallExpr {
	cmd := new(syntax.CallExpr)
	cmd.Args = make([]*syntax.Word, len(args))

	for a, arg := range args {
		encodedValue := arg
		if filepath.IsAbs(encodedValue) && base != "" {
			// absolute paths cause issues on Windows
			relValue, err := filepath.Rel(base, encodedValue)
			if err == nil {
				encodedValue = relValue
			}
		}
		encodedValue = filepath.ToSlash(encodedValue)

		var wordPart syntax.WordPart
		if encodedValue == "" || strings.ContainsAny(encodedValue, " $'\"\\*?[]{}~;&|<>()#`\t\n") {
			node := new(syntax.SglQuoted)
			node.Value = encodedValue
			wordPart = node
		} else {
			node := new(syntax.Lit)
			node.Value = encodedValue
			wordPart = node
		}

		cmd.Args[a] = &syntax.Word{Parts: []syntax.WordPart{wordPart}}
	}

	return cmd
}

// String renders the command the way it will be executed
func (c Command) String() string {
	strBuffer := strings.Builder{}
	printer := syntax.NewPrinter(syntax.Minify(true))
	if err := printer.Print(&strBuffer, BuildCall(c.Args, c.Dir)); err != nil {
		return strings.Join(c.Args, " ")
	}
	return strBuffer.String()
}

// Run executes the command and returns its captured output. A non-zero exit status is reported as *ExitError.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	if len(cmd.Args) == 0 {
		return nil, eris.New("empty command")
	}

	dir := cmd.Dir
	if dir == "" {
		dir = "."
	}

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(getEnv(cmd)),
		interp.ExecHandler(defaultExecHandler),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, &stdout, &stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return nil, eris.Wrap(err, "Failed to initialize runner")
	}

	line := cmd.String()
	logging.Log(ctx).Debug().
		Bool("command", true).
		Msg(line)

	stmt := &syntax.Stmt{Cmd: BuildCall(cmd.Args, dir)}
	err = runner.Run(ctx, stmt)
	result := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		if status, ok := interp.IsExitStatus(err); ok {
			return result, &ExitError{Command: cmd.Args[0], Status: status, Stderr: stderr.String()}
		}
		return result, eris.Wrapf(err, "failed to run %s", line)
	}

	return result, nil
}
