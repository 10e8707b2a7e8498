package jsonrepair

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"
)

type expectation int

const (
	expValue expectation = iota
	expValueOrClose
	expKey
	expKeyOrClose
	expColon
	expCommaOrClose
)

// result 是一次扫描的产物。
type result struct {
	json     string
	complete bool
}

// Repair returns the longest currently-valid JSON document contained in buf,
// or "" when no prefix is parseable yet.
func Repair(buf string) string {
	return scan(buf).json
}

// Complete reports whether buf already holds a finished top-level value.
func Complete(buf string) bool {
	return scan(buf).complete
}

// scan 从第一个能开始 JSON 值的括号处扫描。括号之后紧跟的字节无法组成
// 成员时（例如 "[draft]"），该括号属于前导文字，继续找下一个。
func scan(buf string) result {
	for from := 0; ; {
		off := strings.IndexAny(buf[from:], "{[")
		if off < 0 {
			return result{}
		}
		start := from + off
		doc := strings.TrimRightFunc(buf[start:], isSpace)
		if !opensValue(doc) {
			from = start + 1
			continue
		}
		if json.Valid([]byte(doc)) {
			return result{json: doc, complete: true}
		}
		s := &scanner{doc: doc}
		return s.run()
	}
}

var literals = [...]string{"true", "false", "null"}

// opensValue 判断 doc[0] 处的括号之后第一个非空白字节能否开始一个成员。
// 缓冲区在括号处结束时视为可以。
func opensValue(doc string) bool {
	j := 1
	for j < len(doc) && isSpaceByte(doc[j]) {
		j++
	}
	if j == len(doc) {
		return true
	}
	c := doc[j]
	if doc[0] == '{' {
		return c == '"' || c == '}'
	}
	switch {
	case c == ']' || c == '{' || c == '[' || c == '"' || c == '-' || (c >= '0' && c <= '9'):
		return true
	case c == 't' || c == 'f' || c == 'n':
		rest := doc[j:]
		for _, lit := range literals {
			if lit[0] == c {
				return strings.HasPrefix(rest, lit) || strings.HasPrefix(lit, rest)
			}
		}
	}
	return false
}

type scanner struct {
	doc         string
	stack       []byte
	expect      expectation
	good        int
	goodClosers string
}

func (s *scanner) checkpoint(end int) {
	s.good = end
	s.goodClosers = closersFor(s.stack)
}

// fallback 回退到最近一次安全截断点。
func (s *scanner) fallback() result {
	if s.good == 0 {
		return result{}
	}
	return validOrEmpty(s.doc[:s.good] + s.goodClosers)
}

func (s *scanner) run() result {
	doc := s.doc
	s.expect = expValue
	i := 0
	for i < len(doc) {
		c := doc[i]
		if isSpaceByte(c) {
			i++
			continue
		}
		switch s.expect {
		case expValue, expValueOrClose:
			if c == ']' && s.expect == expValueOrClose {
				if res, stop := s.closeContainer(c, i); stop {
					return res
				}
				i++
				continue
			}
			next, res, stop := s.value(i)
			if stop {
				return res
			}
			i = next

		case expKey, expKeyOrClose:
			switch {
			case c == '}' && s.expect == expKeyOrClose:
				if res, stop := s.closeContainer(c, i); stop {
					return res
				}
				i++
			case c == '"':
				end, terminated, _ := scanString(doc, i)
				if !terminated {
					return s.fallback()
				}
				s.expect = expColon
				i = end
			default:
				return s.fallback()
			}

		case expColon:
			if c != ':' {
				return s.fallback()
			}
			s.expect = expValue
			i++

		case expCommaOrClose:
			switch c {
			case ',':
				if s.top() == '{' {
					s.expect = expKey
				} else {
					s.expect = expValue
				}
				i++
			case '}', ']':
				if res, stop := s.closeContainer(c, i); stop {
					return res
				}
				i++
			default:
				return s.fallback()
			}
		}
	}
	return s.fallback()
}

// value 解析从 i 开始的一个值。stop 为 true 时 res 即最终结果。
func (s *scanner) value(i int) (next int, res result, stop bool) {
	doc := s.doc
	c := doc[i]
	switch {
	case c == '{' || c == '[':
		s.stack = append(s.stack, c)
		if c == '{' {
			s.expect = expKeyOrClose
		} else {
			s.expect = expValueOrClose
		}
		s.checkpoint(i + 1)
		return i + 1, result{}, false

	case c == '"':
		end, terminated, safeEnd := scanString(doc, i)
		if !terminated {
			partial := trimBrokenRune(doc[:safeEnd], i+1)
			out := validOrEmpty(partial + `"` + closersFor(s.stack))
			if out.json == "" {
				return 0, s.fallback(), true
			}
			return 0, out, true
		}
		s.valueDone(end)
		return end, result{}, false

	case c == '-' || (c >= '0' && c <= '9'):
		end := i
		for end < len(doc) && strings.IndexByte("0123456789+-.eE", doc[end]) >= 0 {
			end++
		}
		if end == len(doc) {
			num := strings.TrimRight(doc[i:end], ".eE+-")
			if num == "" || !json.Valid([]byte(num)) {
				return 0, s.fallback(), true
			}
			out := validOrEmpty(doc[:i] + num + closersFor(s.stack))
			if out.json == "" {
				return 0, s.fallback(), true
			}
			return 0, out, true
		}
		if !json.Valid([]byte(doc[i:end])) {
			return 0, s.fallback(), true
		}
		s.valueDone(end)
		return end, result{}, false

	case c == 't' || c == 'f' || c == 'n':
		for _, lit := range literals {
			if lit[0] != c {
				continue
			}
			if strings.HasPrefix(doc[i:], lit) {
				s.valueDone(i + len(lit))
				return i + len(lit), result{}, false
			}
			// 未完成的字面量直接丢弃
			return 0, s.fallback(), true
		}
	}
	return 0, s.fallback(), true
}

func (s *scanner) valueDone(end int) {
	s.expect = expCommaOrClose
	s.checkpoint(end)
}

// closeContainer 处理闭合符。stop 为 true 时 res 即最终结果：
// 顶层值已经闭合，或括号不匹配（回退到最近的安全截断点）。
func (s *scanner) closeContainer(c byte, i int) (res result, stop bool) {
	if len(s.stack) == 0 || closerOf(s.top()) != c {
		return s.fallback(), true
	}
	s.stack = s.stack[:len(s.stack)-1]
	if len(s.stack) == 0 {
		return validOrEmpty(s.doc[:i+1]).markComplete(), true
	}
	s.valueDone(i + 1)
	return result{}, false
}

func (s *scanner) top() byte {
	if len(s.stack) == 0 {
		return 0
	}
	return s.stack[len(s.stack)-1]
}

func (r result) markComplete() result {
	r.complete = r.json != ""
	return r
}

// scanString 扫描从 i（开引号）开始的字符串。未闭合时 safeEnd 指向
// 最后一个完整字符之后，去掉了未完成的转义序列。
func scanString(doc string, i int) (end int, terminated bool, safeEnd int) {
	j := i + 1
	for j < len(doc) {
		switch doc[j] {
		case '\\':
			if j+1 >= len(doc) {
				return 0, false, j
			}
			if doc[j+1] == 'u' {
				if j+6 > len(doc) {
					return 0, false, j
				}
				j += 6
				continue
			}
			j += 2
		case '"':
			return j + 1, true, j + 1
		default:
			j++
		}
	}
	return 0, false, len(doc)
}

// trimBrokenRune 去掉被片段边界截断的 UTF-8 尾部字节。
func trimBrokenRune(s string, floor int) string {
	for k := 0; k < utf8.UTFMax-1 && len(s) > floor; k++ {
		r, size := utf8.DecodeLastRuneInString(s)
		if r != utf8.RuneError || size > 1 {
			break
		}
		s = s[:len(s)-1]
	}
	return s
}

func closersFor(stack []byte) string {
	var sb strings.Builder
	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteByte(closerOf(stack[i]))
	}
	return sb.String()
}

func closerOf(open byte) byte {
	if open == '{' {
		return '}'
	}
	return ']'
}

func validOrEmpty(candidate string) result {
	if json.Valid([]byte(candidate)) {
		return result{json: candidate}
	}
	return result{}
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isSpace(r rune) bool {
	return r < utf8.RuneSelf && isSpaceByte(byte(r))
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// Extract pulls the JSON document out of a complete model response: the body
// of a markdown fence when present, otherwise the first bracketed span that
// parses. Without any parseable span the object span is preferred, then the
// array span.
func Extract(response string) string {
	response = strings.TrimSpace(response)

	if strings.Contains(response, "```") {
		if m := fenceRe.FindStringSubmatch(response); len(m) > 1 {
			return strings.TrimSpace(m[1])
		}
	}

	for from := 0; from < len(response); {
		off := strings.IndexAny(response[from:], "{[")
		if off < 0 {
			break
		}
		start := from + off
		if span := bracketSpan(response, start); json.Valid([]byte(span)) {
			return span
		}
		from = start + 1
	}

	// 没有可解析的片段（通常是被截断的响应）
	if start := strings.IndexByte(response, '{'); start >= 0 {
		return bracketSpan(response, start)
	}
	if start := strings.IndexByte(response, '['); start >= 0 {
		return bracketSpan(response, start)
	}
	return response
}

// bracketSpan 返回从 start 处的括号到最后一个对应闭合符的片段，
// 没有闭合符时返回剩余部分。
func bracketSpan(response string, start int) string {
	end := strings.LastIndexByte(response, closerOf(response[start]))
	if end > start {
		return response[start : end+1]
	}
	return response[start:]
}
