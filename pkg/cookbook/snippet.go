package cookbook

import (
	"regexp"
	"strings"
)

// ReturnWrapping classifies how a declaration's return type signals absence.
type ReturnWrapping uint8

const (
	ReturnBare     ReturnWrapping = iota // plain type, cannot express absence
	ReturnOption                         // option-wrapped (undefined-only detection)
	ReturnNullable                       // Js.Nullable.t (null-aware detection)
)

var wrappingNames = [...]string{
	ReturnBare:     "bare",
	ReturnOption:   "option",
	ReturnNullable: "nullable",
}

func (w ReturnWrapping) String() string {
	if int(w) < len(wrappingNames) {
		return wrappingNames[w]
	}
	return "bare"
}

// InstancePosition records where the instance-typed argument sits in a
// declaration's parameter list. The corpus convention: instance-first for
// mutating bindings, instance-last for non-mutating transforms.
type InstancePosition uint8

const (
	InstanceNone InstancePosition = iota
	InstanceFirst
	InstanceLast
	InstanceMiddle
)

var instanceNames = [...]string{
	InstanceNone:   "none",
	InstanceFirst:  "first",
	InstanceLast:   "last",
	InstanceMiddle: "middle",
}

func (p InstancePosition) String() string {
	if int(p) < len(instanceNames) {
		return instanceNames[p]
	}
	return "none"
}

// Declaration is the analyzed form of one external binding declaration.
type Declaration struct {
	Name      string   // declared name on the typed side
	Target    string   // bound JS name (the quoted string after =)
	Attrs     []string // attributes, normalized without the bs. prefix
	Params    []string // top-level parameter type texts
	Return    string
	Wrapping  ReturnWrapping
	Variadic  bool
	Uncurried bool
	Instance  InstancePosition
}

// Mutating reports whether the declaration binds an in-place operation:
// an instance parameter is present and nothing useful is returned.
func (d *Declaration) Mutating() bool {
	return d.Instance != InstanceNone && headCtor(d.Return) == "unit"
}

// HasAttr reports whether the declaration carries the attribute, matched
// against both editions' spellings (@send and [@bs.send] normalize alike).
func (d *Declaration) HasAttr(name string) bool {
	for _, a := range d.Attrs {
		if a == name {
			return true
		}
	}
	return false
}

// FuncParam interprets parameter i as a function type and returns its arity
// and return type. ok is false when the parameter is not a function.
func (d *Declaration) FuncParam(i int) (arity int, ret string, ok bool) {
	if i < 0 || i >= len(d.Params) {
		return 0, "", false
	}
	p := strings.TrimSpace(d.Params[i])
	p = stripOuterParens(p)
	segs := splitArrow(p)
	if len(segs) < 2 {
		return 0, "", false
	}
	ret = strings.TrimSpace(segs[len(segs)-1])
	args := segs[:len(segs)-1]
	if len(args) == 1 {
		if tuple, isTuple := splitTuple(args[0]); isTuple {
			return len(tuple), ret, true
		}
	}
	return len(args), ret, true
}

var reAttr = regexp.MustCompile(`@([A-Za-z0-9_.]+)`)

// AnalyzeSnippet extracts and classifies the first external declaration in
// a snippet body. ok is false for snippets that are plain usage examples
// with no declaration.
func AnalyzeSnippet(body string) (*Declaration, bool) {
	flat := strings.ReplaceAll(body, "\n", " ")
	idx := externalIndex(flat)
	if idx < 0 {
		return nil, false
	}

	d := &Declaration{}
	head := flat[:idx]
	for _, m := range reAttr.FindAllStringSubmatch(head, -1) {
		d.Attrs = append(d.Attrs, strings.TrimPrefix(m[1], "bs."))
	}

	rest := flat[idx+len("external "):]
	colon := strings.IndexByte(rest, ':')
	if colon < 0 {
		return nil, false
	}
	d.Name = strings.TrimSpace(rest[:colon])
	rest = rest[colon+1:]

	typeText, target := splitDeclaration(rest)
	d.Target = target
	d.Uncurried = strings.Contains(typeText, "(.")
	typeText = strings.ReplaceAll(typeText, "(. ", "(")
	typeText = strings.ReplaceAll(typeText, "(.", "(")

	segs := splitArrow(typeText)
	if len(segs) == 1 {
		d.Return = strings.TrimSpace(segs[0])
	} else {
		d.Return = strings.TrimSpace(segs[len(segs)-1])
		params := segs[:len(segs)-1]
		if len(params) == 1 {
			if tuple, isTuple := splitTuple(params[0]); isTuple {
				params = tuple
			}
		}
		for _, p := range params {
			d.Params = append(d.Params, strings.TrimSpace(p))
		}
	}

	d.Wrapping = classifyWrapping(d.Return)
	// @return(nullable) converts null to None under an option return, which
	// makes the binding null-aware even though the type reads as option.
	if d.Wrapping == ReturnOption && d.HasAttr("return") {
		d.Wrapping = ReturnNullable
	}
	d.Variadic = d.HasAttr("variadic") || d.HasAttr("splice")
	d.Instance = classifyInstance(d)
	return d, true
}

// externalIndex finds the "external " keyword outside of string literals.
func externalIndex(s string) int {
	inStr := false
	for i := 0; i+len("external ") <= len(s); i++ {
		if s[i] == '"' {
			inStr = !inStr
			continue
		}
		if inStr {
			continue
		}
		if strings.HasPrefix(s[i:], "external ") {
			if i > 0 {
				prev := s[i-1]
				if prev != ' ' && prev != '\t' && prev != ']' && prev != ')' {
					continue
				}
			}
			return i
		}
	}
	return -1
}

// splitDeclaration separates the type expression from the quoted JS target
// after the top-level '=' (arrows are skipped).
func splitDeclaration(s string) (typeText, target string) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case '>':
			if depth > 0 && i > 0 && s[i-1] != '=' {
				depth--
			}
		case '=':
			if i+1 < len(s) && s[i+1] == '>' {
				i++
				continue
			}
			if depth == 0 {
				typeText = strings.TrimSpace(s[:i])
				rest := s[i+1:]
				if a := strings.IndexByte(rest, '"'); a >= 0 {
					if b := strings.IndexByte(rest[a+1:], '"'); b >= 0 {
						target = rest[a+1 : a+1+b]
					}
				}
				return typeText, target
			}
		}
	}
	return strings.TrimSpace(s), ""
}

// splitArrow splits a type expression on top-level => tokens.
func splitArrow(s string) []string {
	var out []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case '>':
			if i > 0 && s[i-1] == '=' {
				continue // handled below as part of the arrow
			}
			if depth > 0 {
				depth--
			}
		case '=':
			if i+1 < len(s) && s[i+1] == '>' && depth == 0 {
				out = append(out, s[start:i])
				i++
				start = i + 1
			} else if i+1 < len(s) && s[i+1] == '>' {
				i++
			}
		}
	}
	out = append(out, s[start:])
	return out
}

// splitTuple splits a parenthesized tuple "(a, b, c)" into its top-level
// elements. isTuple is false when s is not parenthesized or has no commas.
func splitTuple(s string) (parts []string, isTuple bool) {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "(") || !strings.HasSuffix(t, ")") {
		return nil, false
	}
	inner := t[1 : len(t)-1]
	depth := 0
	start := 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case '>':
			if depth > 0 && i > 0 && inner[i-1] != '=' {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(inner[start:i]))
				start = i + 1
			}
		}
	}
	last := strings.TrimSpace(inner[start:])
	if len(parts) == 0 {
		// Single parenthesized type, e.g. "(unit => unit)"; not a tuple.
		return nil, false
	}
	parts = append(parts, last)
	return parts, true
}

func stripOuterParens(s string) string {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")") {
		if _, isTuple := splitTuple(t); !isTuple {
			return strings.TrimSpace(t[1 : len(t)-1])
		}
	}
	return t
}

// headCtor returns the leading type constructor of a type expression,
// e.g. "array" for both array<'a> and array('a), "Js.Nullable.t", "t".
func headCtor(s string) string {
	t := strings.TrimSpace(s)
	for len(t) > 0 && t[0] == '(' {
		t = strings.TrimSpace(t[1:])
	}
	end := 0
	for end < len(t) {
		c := t[end]
		if c == '.' || c == '_' || c == '\'' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			end++
			continue
		}
		break
	}
	return t[:end]
}

func classifyWrapping(ret string) ReturnWrapping {
	switch head := headCtor(ret); {
	case head == "Js.Nullable.t" || head == "Js.nullable" || head == "Js.null_undefined":
		return ReturnNullable
	case head == "option":
		return ReturnOption
	}
	return ReturnBare
}

// classifyInstance locates the instance-typed parameter. The binding
// mechanism decides when it can: @send passes the instance first,
// [@bs.send.pipe] appends it last. Otherwise the parameter sharing the
// return's head constructor (or the abstract type t) is taken.
func classifyInstance(d *Declaration) InstancePosition {
	if d.HasAttr("send.pipe") {
		return InstanceLast
	}
	if d.HasAttr("send") || d.HasAttr("get") || d.HasAttr("set") {
		if len(d.Params) == 0 {
			return InstanceNone
		}
		return InstanceFirst
	}
	if len(d.Params) == 0 {
		return InstanceNone
	}
	retHead := headCtor(d.Return)
	match := func(p string) bool {
		h := headCtor(p)
		if h == "" {
			return false
		}
		return h == "t" || (retHead != "" && retHead != "unit" && h == retHead)
	}
	switch {
	case match(d.Params[0]):
		return InstanceFirst
	case match(d.Params[len(d.Params)-1]):
		return InstanceLast
	}
	if len(d.Params) > 2 {
		for _, p := range d.Params[1 : len(d.Params)-1] {
			if match(p) {
				return InstanceMiddle
			}
		}
	}
	return InstanceNone
}
