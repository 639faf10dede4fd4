package gidget

import (
	"fmt"
	"strconv"
)

const (
	defaultConfigFile = "/etc/gidget.conf"
	defaultLogFile    = "/var/log/gidget"
	defaultPidFile    = "/var/run/gidget.pid"

	maxConfigNameLen = 256
	maxLogNameLen    = 256
	maxPidNameLen    = 128

	defaultSyslogLevel = 3
)

// Options is gidget's parsed command line, matching spec.md §4.1's option
// set. It has no flag package equivalent for the optional-argument form of
// -s (a bare "-s" takes the default level, but "-s5" or "-s 5" overrides
// it), so ParseArgs walks argv itself rather than using package flag,
// exactly like the getopt(3) call it is replacing.
type Options struct {
	Config  string
	LogFile string
	PidFile string

	Daemon    bool
	Verbose   bool
	Syslog    bool
	SyslogLvl int

	ShowVersion bool
	ShowHelp    bool

	// TailCount is set by the undocumented -t N flag (SPEC_FULL.md C10):
	// print the last N audit journal records and exit, without starting
	// the daemon. Zero means -t was not given.
	TailCount int

	positionalSet bool
}

// DefaultOptions returns the option set gidget starts from before argv is
// applied, matching the original's hardcoded defaults.
func DefaultOptions() Options {
	return Options{
		Config:    defaultConfigFile,
		LogFile:   defaultLogFile,
		PidFile:   defaultPidFile,
		SyslogLvl: defaultSyslogLevel,
	}
}

// ParseArgs parses argv (excluding the program name) into an Options,
// matching getopt(3)'s ":dVvc:l:p:s:" spec: -d, -V, -v take no argument;
// -c, -l, -p require one; -s's argument is optional and, when given, must
// be a single digit 0-7 (a syslog priority). A single trailing positional
// argument is accepted as an alternate way to name the config file, the
// same undocumented allowance spec.md notes the original has.
//
// Each option must be its own argument: grouped letters such as "-dv" are
// not split, and only the first letter after the dash is acted on.
func ParseArgs(argv []string) (Options, error) {
	opt := DefaultOptions()

	i := 0
	next := func(flag string) (string, error) {
		i++
		if i >= len(argv) {
			return "", fmt.Errorf("option -%s requires an argument", flag)
		}
		return argv[i], nil
	}

	for ; i < len(argv); i++ {
		arg := argv[i]

		if len(arg) == 0 || arg[0] != '-' || arg == "-" {
			if opt.positionalSet {
				return opt, fmt.Errorf("unexpected extra argument %q", arg)
			}
			if len(arg) > maxConfigNameLen {
				return opt, fmt.Errorf("config path argument too long")
			}
			opt.Config = arg
			opt.positionalSet = true
			continue
		}

		switch arg[1] {
		case 'd':
			opt.Daemon = true
		case 'V':
			opt.ShowVersion = true
		case 'v':
			opt.Verbose = true
		case '?':
			opt.ShowHelp = true
		case 'c':
			v, err := flagValue(arg, next)
			if err != nil {
				return opt, err
			}
			if len(v) > maxConfigNameLen {
				return opt, fmt.Errorf("-c argument too long")
			}
			opt.Config = v
			opt.positionalSet = true
		case 'l':
			v, err := flagValue(arg, next)
			if err != nil {
				return opt, err
			}
			if len(v) > maxLogNameLen {
				return opt, fmt.Errorf("-l argument too long")
			}
			opt.LogFile = v
		case 'p':
			v, err := flagValue(arg, next)
			if err != nil {
				return opt, err
			}
			if len(v) > maxPidNameLen {
				return opt, fmt.Errorf("-p argument too long")
			}
			opt.PidFile = v
		case 't':
			v, err := flagValue(arg, next)
			if err != nil {
				return opt, err
			}
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return opt, fmt.Errorf("-t requires a positive record count, got %q", v)
			}
			opt.TailCount = n
		case 's':
			opt.Syslog = true
			opt.SyslogLvl = defaultSyslogLevel

			if v := attachedValue(arg); v != "" {
				lvl, err := parseSyslogLevel(v)
				if err != nil {
					return opt, err
				}
				opt.SyslogLvl = lvl
			} else if i+1 < len(argv) && isSingleDigit(argv[i+1]) {
				i++
				lvl, err := parseSyslogLevel(argv[i])
				if err != nil {
					return opt, err
				}
				opt.SyslogLvl = lvl
			}
		default:
			return opt, fmt.Errorf("unrecognized option %q", arg)
		}
	}

	return opt, nil
}

// attachedValue returns the part of a -xVALUE style flag after the option
// letter, or "" if nothing follows (e.g. a bare "-s").
func attachedValue(arg string) string {
	if len(arg) > 2 {
		return arg[2:]
	}
	return ""
}

// flagValue resolves a flag's argument, accepting either the -xVALUE form
// or a following argv element.
func flagValue(arg string, next func(string) (string, error)) (string, error) {
	if v := attachedValue(arg); v != "" {
		return v, nil
	}
	return next(string(arg[1]))
}

func isSingleDigit(s string) bool {
	return len(s) == 1 && s[0] >= '0' && s[0] <= '9'
}

func parseSyslogLevel(s string) (int, error) {
	lvl, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid syslog level %q", s)
	}
	if lvl < 0 || lvl > 7 {
		return 0, fmt.Errorf("syslog level %d out of range 0-7", lvl)
	}
	return lvl, nil
}

// Usage returns the help text printed for -? and for a parse error, in the
// terse single-paragraph style spec.md's usage() function uses.
func Usage(program string) string {
	return fmt.Sprintf(
		"usage: %s [-dVv] [-c config] [-l logfile] [-p pidfile] [-s [level]] [config]\n",
		program,
	)
}
