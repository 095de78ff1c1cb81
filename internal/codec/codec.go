// Package codec converts server launch specs between their structured form
// and the flat text used by forms and command-line flags.
//
// The default argument encoding joins with single spaces and is lossy for
// arguments that contain whitespace. The Quoted variants use POSIX shell
// quoting and round-trip any argument list; callers opt into them explicitly.
package codec

import (
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"
)

// EncodeArgs joins args with single spaces.
func EncodeArgs(args []string) string {
	return strings.Join(args, " ")
}

// DecodeArgs splits text on whitespace and drops empty tokens. It never
// returns nil.
func DecodeArgs(text string) []string {
	fields := strings.Fields(text)
	if fields == nil {
		return []string{}
	}
	return fields
}

// EncodeArgsQuoted joins args, shell-quoting any that need it.
func EncodeArgsQuoted(args []string) string {
	return shellquote.Join(args...)
}

// DecodeArgsQuoted splits text using shell quoting rules.
func DecodeArgsQuoted(text string) ([]string, error) {
	args, err := shellquote.Split(text)
	if err != nil {
		return nil, err
	}
	if args == nil {
		return []string{}, nil
	}
	return args, nil
}

// EncodeEnv renders env as KEY=VALUE lines sorted by key.
func EncodeEnv(env map[string]string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(env[k])
	}
	return b.String()
}

// DecodeEnv parses KEY=VALUE lines. Blank lines, lines without '=' and lines
// with an empty key are skipped. The key is trimmed; the value is kept
// verbatim after the first '='. A later duplicate key wins.
func DecodeEnv(text string) map[string]string {
	env := make(map[string]string)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		env[key] = value
	}
	return env
}

// Args is an argument codec selected by configuration.
type Args struct {
	Quoted bool
}

// Encode renders args using the selected encoding.
func (a Args) Encode(args []string) string {
	if a.Quoted {
		return EncodeArgsQuoted(args)
	}
	return EncodeArgs(args)
}

// Decode parses text using the selected encoding.
func (a Args) Decode(text string) ([]string, error) {
	if a.Quoted {
		return DecodeArgsQuoted(text)
	}
	return DecodeArgs(text), nil
}
