// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package cmdrunner substitutes named parameters into command
// templates and executes the result without a shell, the way the
// binder emits its tc/ip/iptables command sequences.
package cmdrunner

import (
	"errors"
	"os/exec"
	"regexp"
	"strings"

	"golang.org/x/sys/unix"
	"kitero.dev/kitero/internal/kerrors"
)

var placeholder = regexp.MustCompile(`%\(([a-zA-Z_][a-zA-Z0-9_]*)\)s`)

// Substitute interpolates named parameters of the form %(name)s into
// template using values.
func Substitute(template string, values map[string]string) string {
	return placeholder.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		return values[name]
	})
}

// Runner executes command templates without a shell.
type Runner struct{}

// New returns a Runner.
func New() *Runner { return &Runner{} }

// Run executes each template in templates, substituting values into
// it, tokenizing it shell-style, and running it with stdout/stderr
// merged. In strict mode a nonzero exit aborts the remaining
// templates and returns a KindCommand error carrying the command
// text, exit code, index, and captured output; in lenient mode a
// nonzero exit is tolerated (its output is still returned) but a
// missing executable always fails. Outputs are returned in template
// order.
func (r *Runner) Run(templates []string, values map[string]string, strict bool) ([]string, error) {
	outputs := make([]string, 0, len(templates))

	for i, tmpl := range templates {
		command := Substitute(tmpl, values)

		args, err := tokenize(command)
		if err != nil {
			return outputs, kerrors.Wrapf(err, kerrors.KindCommand, "cmdrunner: cannot tokenize command %q", command)
		}
		if len(args) == 0 {
			continue
		}

		cmd := exec.Command(args[0], args[1:]...)
		out, runErr := cmd.CombinedOutput()
		output := strings.TrimRight(string(out), "\n")

		if runErr != nil {
			if isMissingExecutable(runErr) {
				return outputs, commandError(command, -1, i, output, runErr)
			}

			exitCode := exitCodeOf(runErr)
			if strict {
				return outputs, commandError(command, exitCode, i, output, runErr)
			}
			// Lenient mode tolerates a nonzero exit; its output still counts.
		}

		outputs = append(outputs, output)
	}

	return outputs, nil
}

func isMissingExecutable(err error) bool {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return true
	}
	return errors.Is(err, unix.ENOENT)
}

func exitCodeOf(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func commandError(command string, exitCode, index int, output string, underlying error) error {
	e := kerrors.Wrapf(underlying, kerrors.KindCommand, "cmdrunner: command %q failed", command)
	e = kerrors.Attr(e, "command", command)
	e = kerrors.Attr(e, "exit_code", exitCode)
	e = kerrors.Attr(e, "index", index)
	e = kerrors.Attr(e, "output", output)
	return e
}
