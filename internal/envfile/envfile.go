// Package envfile parses the KEY=VALUE files that add variables to session processes.
package envfile

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/conn-castle/alpine-term/internal/messages"
)

var (
	readFileFn = os.ReadFile
	lookupEnv  = os.LookupEnv
)

// Parse reads env file content into a key-value map. Later assignments win.
// Unquoted and double-quoted values expand $NAME and ${NAME} from earlier
// assignments, falling back to the process environment.
func Parse(content string) (map[string]string, error) {
	env := make(map[string]string)
	if content == "" {
		return env, nil
	}

	scanner := bufio.NewScanner(strings.NewReader(content))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		key, value, ok, err := parseLine(scanner.Text(), env)
		if err != nil {
			return nil, fmt.Errorf(messages.EnvfileLineErrorFmt, lineNo, err)
		}
		if !ok {
			continue
		}
		env[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf(messages.EnvfileReadFailedFmt, err)
	}

	return env, nil
}

// Load reads and parses the env file at path.
// A missing file yields an empty map so session extras stay optional.
func Load(path string) (map[string]string, error) {
	data, err := readFileFn(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf(messages.EnvfileOpenFmt, path, err)
	}
	return Parse(string(data))
}

// Overlay applies extra on top of base, a KEY=VALUE list as used by exec.Cmd.Env.
// Keys already in base are replaced in place; new keys are appended in sorted order.
func Overlay(base []string, extra map[string]string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]bool, len(extra))
	for _, entry := range base {
		key, _, _ := strings.Cut(entry, "=")
		if value, ok := extra[key]; ok {
			out = append(out, key+"="+value)
			seen[key] = true
			continue
		}
		out = append(out, entry)
	}
	keys := make([]string, 0, len(extra))
	for key := range extra {
		if !seen[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		out = append(out, key+"="+extra[key])
	}
	return out
}

// parseLine splits one line into key and value. ok is false for blank and
// comment lines.
func parseLine(line string, env map[string]string) (key string, value string, ok bool, err error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false, nil
	}
	trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "export "))
	name, raw, found := strings.Cut(trimmed, "=")
	key = strings.TrimSpace(name)
	if !found || key == "" {
		return "", "", false, errors.New(messages.EnvfileExpectedKeyValue)
	}
	if !validKey(key) {
		return "", "", false, fmt.Errorf(messages.EnvfileInvalidKeyFmt, key)
	}
	value, err = parseValue(strings.TrimSpace(raw), env)
	if err != nil {
		return "", "", false, err
	}
	return key, value, true, nil
}

// validKey reports whether key is usable as a process environment name.
func validKey(key string) bool {
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c == '_', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func parseValue(raw string, env map[string]string) (string, error) {
	if raw == "" {
		return "", nil
	}
	switch raw[0] {
	case '\'':
		end := strings.IndexByte(raw[1:], '\'')
		if end < 0 {
			return "", errors.New(messages.EnvfileUnterminatedQuotedValue)
		}
		if err := checkSuffix(raw[end+2:]); err != nil {
			return "", err
		}
		return raw[1 : end+1], nil
	case '"':
		var b strings.Builder
		for i := 1; i < len(raw); i++ {
			c := raw[i]
			switch {
			case c == '"':
				if err := checkSuffix(raw[i+1:]); err != nil {
					return "", err
				}
				return expand(b.String(), env), nil
			case c == '\\' && i+1 < len(raw):
				i++
				b.WriteByte(unescape(raw[i]))
			default:
				b.WriteByte(c)
			}
		}
		return "", errors.New(messages.EnvfileUnterminatedQuotedValue)
	}
	if idx := strings.Index(raw, " #"); idx >= 0 {
		raw = strings.TrimSpace(raw[:idx])
	}
	return expand(raw, env), nil
}

// unescape decodes the character following a backslash in a double-quoted value.
func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	}
	return c
}

// checkSuffix accepts whitespace and an optional comment after a closing quote.
func checkSuffix(suffix string) error {
	trimmed := strings.TrimSpace(suffix)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil
	}
	return errors.New(messages.EnvfileInvalidQuotedSuffix)
}

func expand(value string, env map[string]string) string {
	if !strings.Contains(value, "$") {
		return value
	}
	return os.Expand(value, func(name string) string {
		if v, ok := env[name]; ok {
			return v
		}
		v, _ := lookupEnv(name)
		return v
	})
}
