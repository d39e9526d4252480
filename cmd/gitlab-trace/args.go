package main

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

var (
	negativeNumber = regexp.MustCompile(`^-\d+$`)
	unsignedNumber = regexp.MustCompile(`^\d+$`)
)

// positionals are the optional PIPELINE-ID, JOB-NAME and NTH-JOB-OF-THAT-NAME arguments.
type positionals struct {
	// pipeline > 0 is a pipeline ID, < 0 counts back from the newest (-1 is the newest).
	pipeline   int
	name       string
	occurrence int
}

func parsePositionals(args []string) (positionals, error) {
	var p positionals
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return p, errors.Errorf("invalid PIPELINE-ID %q: must be an integer", args[0])
		}
		p.pipeline = n
	}
	if len(args) > 1 {
		p.name = args[1]
	}
	if len(args) > 2 {
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return p, errors.Errorf("invalid NTH-JOB-OF-THAT-NAME %q: must be an integer", args[2])
		}
		if n < 1 {
			return p, errors.Errorf("invalid NTH-JOB-OF-THAT-NAME %d: counting starts at 1", n)
		}
		p.occurrence = n
	}
	return p, nil
}

// hoistPositionals reorders args so that all flags come first, followed by "--"
// and the positional arguments. This keeps negative pipeline offsets such as -1
// from being parsed as shorthand flags. A bare optional-value flag followed by a
// number (`--tail 5`) takes that number as its value.
func hoistPositionals(args []string, sets ...*pflag.FlagSet) []string {
	lookup := func(name string) *pflag.Flag {
		for _, fs := range sets {
			if f := fs.Lookup(name); f != nil {
				return f
			}
		}
		return nil
	}
	lookupShort := func(short string) *pflag.Flag {
		for _, fs := range sets {
			if f := fs.ShorthandLookup(short); f != nil {
				return f
			}
		}
		return nil
	}

	var flags, rest []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		hasNext := i+1 < len(args)
		switch {
		case arg == "--":
			rest = append(rest, args[i+1:]...)
			i = len(args)

		case negativeNumber.MatchString(arg):
			rest = append(rest, arg)

		case strings.HasPrefix(arg, "--"):
			name := strings.TrimPrefix(arg, "--")
			f := lookup(name)
			switch {
			case strings.Contains(name, "=") || f == nil:
				flags = append(flags, arg)
			case optionalValue(f) && hasNext && unsignedNumber.MatchString(args[i+1]):
				flags = append(flags, "--"+f.Name+"="+args[i+1])
				i++
			case takesValue(f) && hasNext:
				flags = append(flags, arg, args[i+1])
				i++
			default:
				flags = append(flags, arg)
			}

		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			hoisted := []string{arg}
			shorts := arg[1:]
			for j := 0; j < len(shorts); j++ {
				f := lookupShort(shorts[j : j+1])
				if f == nil {
					break
				}
				if optionalValue(f) {
					value := shorts[j+1:]
					if value == "" && hasNext && unsignedNumber.MatchString(args[i+1]) {
						value = args[i+1]
						i++
					}
					if unsignedNumber.MatchString(value) {
						hoisted = []string{"--" + f.Name + "=" + value}
						if j > 0 {
							hoisted = append([]string{"-" + shorts[:j]}, hoisted...)
						}
					}
					break
				}
				if takesValue(f) {
					if j == len(shorts)-1 && hasNext {
						hoisted = append(hoisted, args[i+1])
						i++
					}
					break
				}
			}
			flags = append(flags, hoisted...)

		default:
			rest = append(rest, arg)
		}
	}
	if len(rest) == 0 {
		return flags
	}
	return append(append(flags, "--"), rest...)
}

// takesValue reports whether f always consumes an argument.
func takesValue(f *pflag.Flag) bool {
	return f.NoOptDefVal == ""
}

// optionalValue reports whether f may be given bare or with a value, like --tail.
func optionalValue(f *pflag.Flag) bool {
	return f.NoOptDefVal != "" && f.Value.Type() != "bool" && f.Value.Type() != "count"
}

// tailFromConfig is what a bare --tail parses as.
const tailFromConfig = "config"

// tailFlag is the value of --tail: a line count, or bare to use tail_lines
// from the config. Zero means the whole trace.
type tailFlag struct {
	n    int
	bare bool
}

func (t *tailFlag) String() string {
	if t.bare {
		return tailFromConfig
	}
	return strconv.Itoa(t.n)
}

func (t *tailFlag) Set(s string) error {
	if s == tailFromConfig {
		*t = tailFlag{bare: true}
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return errors.Errorf("%q is not a line count", s)
	}
	if n < 0 {
		return errors.Errorf("the line count cannot be negative, got %d", n)
	}
	*t = tailFlag{n: n}
	return nil
}

func (t *tailFlag) Type() string {
	return "int"
}

func (t *tailFlag) set() bool {
	return t.bare || t.n != 0
}
