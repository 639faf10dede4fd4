package gidget

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// LoadResult is what Load returns: the accepted tricks, in file order, and
// the running maximum reported filesystem name length across every
// accepted trick's path, used to size the event-read buffer.
type LoadResult struct {
	Tricks     []Trick
	MaxNameLen int
}

// Load reads and validates the line-oriented configuration file at path.
// Malformed lines are reported through log and skipped; they never abort
// the load. A missing or unreadable file is the only fatal condition, and
// is returned as an error rather than reported directly, so the caller can
// route it through log with the correct exit status.
//
// onDiscard, if non-nil, is additionally called once per rejected line with
// its 1-based line number and a short machine-readable reason, so a caller
// can journal the discard (spec.md §4.2) alongside the human-readable text
// already going through log.
func Load(path string, log func(text string), onDiscard func(line int, reason string)) (LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return LoadResult{}, errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()

	var result LoadResult

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxConfigLineLen())

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		trick, reason, ok := parseLine(scanner.Text(), lineNo, path, &result.MaxNameLen, log)
		if ok {
			result.Tricks = append(result.Tricks, trick)
		} else if reason != "" && onDiscard != nil {
			onDiscard(lineNo, reason)
		}
	}
	if err := scanner.Err(); err != nil {
		return LoadResult{}, errors.Wrapf(err, "reading %s", path)
	}

	return result, nil
}

// maxConfigLineLen approximates the system's advertised maximum line length
// (sysconf(_SC_LINE_MAX) in the original), bounding how large a single
// configuration line is allowed to be before the loader gives up on it.
func maxConfigLineLen() int {
	return 64 * 1024
}

// parseLine validates one configuration line. It logs and returns ok=false
// for any malformed line; it never returns an error, matching spec.md
// §4.2's "malformed lines never abort the load" contract. The returned
// reason is non-empty only when ok is false for a genuine discard (not for
// a blank or comment-only line, which is not a trick the admin wrote).
func parseLine(line string, lineNo int, confPath string, maxNameLen *int, log func(string)) (Trick, string, bool) {
	// '#' introduces a comment that extends to end of line.
	record := line
	if i := indexByte(line, '#'); i >= 0 {
		record = line[:i]
	}

	if len(record) == 0 {
		return Trick{}, "", false
	}

	for i, r := range record {
		if r == '\'' {
			log(errlinef(confPath, lineNo, "%s at position %d", apostropheMsg, i+1))
			log(errlinef(confPath, lineNo, "discarding"))
			return Trick{}, fmt.Sprintf("%s at position %d", apostropheMsg, i+1), false
		}
		if !unicode.IsPrint(r) && r != '\n' {
			log(errlinef(confPath, lineNo, "%s at position %d", invisibleMsg, i+1))
			log(errlinef(confPath, lineNo, "discarding"))
			return Trick{}, fmt.Sprintf("%s at position %d", invisibleMsg, i+1), false
		}
	}

	fields := splitFields(record, ':')
	if len(fields) != 5 {
		log(errlinef(confPath, lineNo, "discarding: expected 5 fields, found %d", len(fields)))
		return Trick{}, fmt.Sprintf("expected 5 fields, found %d", len(fields)), false
	}

	var trick Trick
	var reasons []string

	pathField, maskField, scriptField, accountField, mailField := fields[0], fields[1], fields[2], fields[3], fields[4]

	if pathField == "" {
		log(errlinef(confPath, lineNo, "empty path field"))
		reasons = append(reasons, "empty path field")
	} else {
		nameLen, err := filesystemMaxNameLen(pathField)
		if err != nil {
			log(errlinef(confPath, lineNo, "can't determine max file name length for filesystem hosting %s: %v", pathField, err))
			reasons = append(reasons, fmt.Sprintf("can't stat filesystem hosting %s: %v", pathField, err))
		} else {
			trick.Path = pathField
			if nameLen > *maxNameLen {
				*maxNameLen = nameLen
			}
		}
	}

	mask, err := parseMask(maskField)
	if err != nil {
		log(errlinef(confPath, lineNo, "invalid event mask in field 2: %v", err))
		reasons = append(reasons, fmt.Sprintf("invalid event mask: %v", err))
	} else {
		trick.Mask = mask
	}

	if len(scriptField) > MaxScriptLen {
		log(errlinef(confPath, lineNo, "script name too long in field 3"))
		reasons = append(reasons, "script name too long")
	} else {
		trick.Script = scriptField
	}

	if len(accountField) > maxLoginNameLen() {
		log(errlinef(confPath, lineNo, "account name too long in field 4"))
		reasons = append(reasons, "account name too long")
	} else {
		trick.Account = accountField
	}

	if len(mailField) > MaxMailToLen {
		log(errlinef(confPath, lineNo, "email address too long in field 5"))
		reasons = append(reasons, "email address too long")
	} else {
		trick.MailTo = mailField
	}

	if bad := len(reasons) > 0; bad {
		log(errlinef(confPath, lineNo, "discarding"))
		return Trick{}, joinReasons(reasons), false
	}

	return trick, "", true
}

// joinReasons combines the per-field discard reasons collected for one
// configuration line into a single string, for EventTrickDiscarded's
// Reason field (spec.md §4.2).
func joinReasons(reasons []string) string {
	out := reasons[0]
	for _, r := range reasons[1:] {
		out += "; " + r
	}
	return out
}

func parseMask(field string) (Mask, error) {
	if field == "" {
		return 0, errors.New("empty mask field")
	}
	for _, r := range field {
		if r < '0' || r > '9' {
			return 0, errors.New("mask must be all digits")
		}
	}
	v, err := strconv.ParseUint(field, 10, 32)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, errors.New("mask must be non-zero")
	}
	return Mask(v), nil
}

// filesystemMaxNameLen queries the filesystem hosting path for its maximum
// file name length, the pathconf(_PC_NAME_MAX) equivalent. A non-positive
// or errored result is treated as the path not existing, per spec.md §4.2.
func filesystemMaxNameLen(path string) (int, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	if st.Namelen <= 0 {
		return 0, errors.New("filesystem reported non-positive name length")
	}
	return int(st.Namelen), nil
}

// maxLoginNameLen mirrors sysconf(_SC_LOGIN_NAME_MAX), which glibc reports
// as 256. Go has no sysconf binding, so the POSIX-guaranteed value is used
// directly; it is queried through a function (not a bare constant) so a
// platform-specific override could replace it without touching call sites.
func maxLoginNameLen() int { return 256 }

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// splitFields splits record on sep, the way strings.Split would, but is
// written out explicitly here because it sits next to the rest of the
// hand-rolled, character-by-character validation in this file rather than
// mixing a stdlib call into that style.
func splitFields(record string, sep byte) []string {
	var fields []string
	start := 0
	for i := 0; i < len(record); i++ {
		if record[i] == sep {
			fields = append(fields, record[start:i])
			start = i + 1
		}
	}
	fields = append(fields, record[start:])
	return fields
}

func errlinef(path string, lineNo int, format string, args ...interface{}) string {
	prefix := path + " line " + strconv.Itoa(lineNo) + ": "
	return prefix + fmt.Sprintf(format, args...)
}
