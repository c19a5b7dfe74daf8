package profile

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownVariable is returned for a %x placeholder with no value
	ErrUnknownVariable = errors.New("unknown variable")

	errUnterminatedQuote = errors.New("unterminated quote")
	errTrailingPercent   = errors.New("trailing %")
)

// Commands returns the argv of every step with variables substituted.
// A placeholder is % followed by one character, looked up in vars by
// that character ("%b" -> vars["b"]); "%%" is a literal percent sign.
func (p *Profile) Commands(vars map[string]string) ([][]string, error) {
	commands := make([][]string, 0, len(p.Steps))
	for i, step := range p.Steps {
		args, err := splitCommand(step.Command)
		if err != nil {
			return nil, fmt.Errorf("profile %s step %d: %w", p.Name, i+1, err)
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("profile %s step %d: command is required", p.Name, i+1)
		}
		for j, arg := range args {
			if args[j], err = expand(arg, vars); err != nil {
				return nil, fmt.Errorf("profile %s step %d: %w", p.Name, i+1, err)
			}
		}
		commands = append(commands, args)
	}
	return commands, nil
}

// splitCommand splits a command line on unquoted whitespace. Single
// quotes keep everything literal, double quotes allow backslash escapes.
func splitCommand(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inArg   bool
		quote   rune
		escaped bool
	)

	for _, r := range line {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\\':
			escaped, inArg = true, true
		case quote == '"':
			if r == '"' {
				quote = 0
			} else {
				current.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote, inArg = r, true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}

	if quote != 0 || escaped {
		return nil, errUnterminatedQuote
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}

// expand substitutes %x placeholders in a single argument
func expand(arg string, vars map[string]string) (string, error) {
	if !strings.Contains(arg, "%") {
		return arg, nil
	}

	var b strings.Builder
	for i := 0; i < len(arg); i++ {
		if arg[i] != '%' {
			b.WriteByte(arg[i])
			continue
		}
		if i+1 == len(arg) {
			return "", errTrailingPercent
		}
		i++
		if arg[i] == '%' {
			b.WriteByte('%')
			continue
		}
		value, ok := vars[string(arg[i])]
		if !ok {
			return "", fmt.Errorf("%w: %%%c", ErrUnknownVariable, arg[i])
		}
		b.WriteString(value)
	}
	return b.String(), nil
}
