package grading

import "strings"

// Repair applies a single deterministic fixup pass to near-valid JSON model
// output: markdown fences and leading prose are stripped, trailing commentary
// after the closing brace is dropped, unterminated strings are closed, and
// unbalanced braces/brackets are completed. The pass is idempotent:
// Repair(Repair(x)) == Repair(x) for any input.
func Repair(raw string) string {
	s := strings.TrimSpace(raw)
	s = stripFences(s)

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	s = s[start:]

	var closers []byte
	inString := false
	escaped := false
	end := -1

scan:
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			closers = append(closers, '}')
		case '[':
			closers = append(closers, ']')
		case '}', ']':
			if len(closers) > 0 && closers[len(closers)-1] == c {
				closers = closers[:len(closers)-1]
			}
			if len(closers) == 0 {
				end = i + 1
				break scan
			}
		}
	}

	if end >= 0 {
		s = s[:end]
	} else {
		if inString {
			// A cut mid-escape leaves a trailing backslash that would
			// swallow the closing quote.
			if escaped {
				s = s[:len(s)-1]
			}
			s += `"`
		}
		s = strings.TrimRight(s, " \t\r\n")
		s = strings.TrimSuffix(s, ",")
		for i := len(closers) - 1; i >= 0; i-- {
			s += string(closers[i])
		}
	}

	return removeTrailingCommas(s)
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}

// removeTrailingCommas drops commas that directly precede a closing brace or
// bracket outside of string literals.
func removeTrailingCommas(s string) string {
	var out strings.Builder
	out.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			out.WriteByte(c)
			continue
		}

		if c == '"' {
			inString = true
			out.WriteByte(c)
			continue
		}

		if c == ',' {
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\t' || s[j] == '\r' || s[j] == '\n') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}

		out.WriteByte(c)
	}

	return out.String()
}
