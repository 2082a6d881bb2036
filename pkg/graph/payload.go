package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// DecodePayload parses the text a tool embedded in its content block.
// Strict JSON is tried first; some tools stringify Python literals
// (single quotes, True/False/None), so a permissive reader covers those.
func DecodePayload(text string) (any, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
		return v, nil
	}

	v, err := parsePythonLiteral(trimmed)
	if err != nil {
		return nil, fmt.Errorf("payload is neither JSON nor a Python literal: %w", err)
	}
	return v, nil
}

// ExtractPersonIDs collects every integer stored under a "person_id" key
// anywhere in the decoded payload, de-duplicated and sorted ascending.
func ExtractPersonIDs(payload any) []int {
	seen := map[int]struct{}{}
	collectPersonIDs(payload, seen)

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func collectPersonIDs(v any, seen map[int]struct{}) {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			if k == "person_id" {
				if id, ok := toInt(item); ok {
					seen[id] = struct{}{}
					continue
				}
			}
			collectPersonIDs(item, seen)
		}
	case []any:
		for _, item := range val {
			collectPersonIDs(item, seen)
		}
	}
}

// toInt coerces the id representations seen in the wild: JSON numbers,
// Go ints from the literal parser, and stringified digits.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	case int:
		return n, true
	case int64:
		return int(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}

// parsePythonLiteral reads a Python literal expression: dicts, lists,
// tuples, strings (single or double quoted), numbers, True, False, None.
// Produces the same value shapes as encoding/json (map[string]any, []any,
// float64, string, bool, nil).
func parsePythonLiteral(s string) (any, error) {
	p := &literalParser{input: s}
	p.skipSpace()
	v, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("trailing data at offset %d", p.pos)
	}
	return v, nil
}

type literalParser struct {
	input string
	pos   int
}

func (p *literalParser) errf(format string, args ...any) error {
	return fmt.Errorf("offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *literalParser) peek() (byte, bool) {
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *literalParser) parseValue() (any, error) {
	c, ok := p.peek()
	if !ok {
		return nil, p.errf("unexpected end of input")
	}

	switch {
	case c == '{':
		return p.parseDict()
	case c == '[':
		return p.parseSeq(']')
	case c == '(':
		return p.parseSeq(')')
	case c == '\'' || c == '"':
		return p.parseString()
	case c == '-' || c == '+' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return p.parseKeyword()
	}
}

func (p *literalParser) parseDict() (any, error) {
	p.pos++ // consume {
	result := map[string]any{}

	p.skipSpace()
	if c, ok := p.peek(); ok && c == '}' {
		p.pos++
		return result, nil
	}

	for {
		p.skipSpace()
		key, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		keyStr, ok := key.(string)
		if !ok {
			// Non-string keys (Python allows them) are stringified so
			// the result stays JSON-shaped.
			keyStr = fmt.Sprint(key)
		}

		p.skipSpace()
		if c, ok := p.peek(); !ok || c != ':' {
			return nil, p.errf("expected ':' after dict key")
		}
		p.pos++

		p.skipSpace()
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		result[keyStr] = value

		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, p.errf("unterminated dict")
		}
		switch c {
		case ',':
			p.pos++
			p.skipSpace()
			// Trailing comma before close.
			if c, ok := p.peek(); ok && c == '}' {
				p.pos++
				return result, nil
			}
		case '}':
			p.pos++
			return result, nil
		default:
			return nil, p.errf("expected ',' or '}' in dict")
		}
	}
}

func (p *literalParser) parseSeq(closer byte) (any, error) {
	p.pos++ // consume opener
	result := []any{}

	p.skipSpace()
	if c, ok := p.peek(); ok && c == closer {
		p.pos++
		return result, nil
	}

	for {
		p.skipSpace()
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		result = append(result, value)

		p.skipSpace()
		c, ok := p.peek()
		if !ok {
			return nil, p.errf("unterminated sequence")
		}
		switch c {
		case ',':
			p.pos++
			p.skipSpace()
			if c, ok := p.peek(); ok && c == closer {
				p.pos++
				return result, nil
			}
		case closer:
			p.pos++
			return result, nil
		default:
			return nil, p.errf("expected ',' or %q in sequence", string(closer))
		}
	}
}

func (p *literalParser) parseString() (any, error) {
	quote := p.input[p.pos]
	p.pos++

	var b strings.Builder
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch c {
		case quote:
			p.pos++
			return b.String(), nil
		case '\\':
			p.pos++
			if p.pos >= len(p.input) {
				return nil, p.errf("unterminated escape")
			}
			esc := p.input[p.pos]
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '\'', '"':
				b.WriteByte(esc)
			case 'u':
				if p.pos+4 >= len(p.input) {
					return nil, p.errf("truncated \\u escape")
				}
				code, err := strconv.ParseUint(p.input[p.pos+1:p.pos+5], 16, 32)
				if err != nil {
					return nil, p.errf("bad \\u escape")
				}
				b.WriteRune(rune(code))
				p.pos += 4
			default:
				// Pass unknown escapes through untouched.
				b.WriteByte('\\')
				b.WriteByte(esc)
			}
			p.pos++
		default:
			r, size := utf8.DecodeRuneInString(p.input[p.pos:])
			b.WriteRune(r)
			p.pos += size
		}
	}
	return nil, p.errf("unterminated string")
}

func (p *literalParser) parseNumber() (any, error) {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E' {
			p.pos++
			continue
		}
		break
	}

	text := p.input[start:p.pos]
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, p.errf("bad number %q", text)
	}
	return n, nil
}

func (p *literalParser) parseKeyword() (any, error) {
	rest := p.input[p.pos:]
	switch {
	case strings.HasPrefix(rest, "True"):
		p.pos += 4
		return true, nil
	case strings.HasPrefix(rest, "False"):
		p.pos += 5
		return false, nil
	case strings.HasPrefix(rest, "None"):
		p.pos += 4
		return nil, nil
	default:
		return nil, p.errf("unexpected token")
	}
}
