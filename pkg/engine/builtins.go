package engine

import (
	"fmt"
	"strings"

	"github.com/chazu/koga/pkg/figma"
	"github.com/chazu/koga/pkg/scene"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource transforms script source before passing it to zygomys.
// It performs three transformations:
//
//  1. Keyword conversion: :keyword -> "__kw_keyword" (string literal)
//     This avoids the need to register keyword symbols as globals, which
//     would conflict with user-defined variables of the same name.
//
//  2. Kebab-case to underscore: corner-radius -> corner_radius
//     zygomys does not allow hyphens in identifiers (it interprets them
//     as the subtraction operator).
//
//  3. ; line comments become // comments.
//
// All transformations respect string literal boundaries.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Copy // comments untouched.
		if b[i] == '/' && i+1 < len(b) && b[i+1] == '/' {
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Only when the hyphen sits between identifier characters, so the
		// minus operator survives.
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpNodeRef is the opaque handle a script holds for a node.
type sexpNodeRef struct {
	id scene.NodeID
}

func (n *sexpNodeRef) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(node %s)", n.id)
}
func (n *sexpNodeRef) Type() *zygo.RegisteredType { return nil }

// sexpPaint wraps a solid paint produced by solid or hex.
type sexpPaint struct {
	paint scene.Paint
}

func (p *sexpPaint) SexpString(ps *zygo.PrintState) string {
	c := p.paint.Color
	return fmt.Sprintf("(solid %g %g %g %g)", c.R, c.G, c.B, c.A)
}
func (p *sexpPaint) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// propPair is one name/value pair from a property list.
type propPair struct {
	name  string
	value zygo.Sexp
}

// parsePropPairs reads alternating names and values, keeping source order
// so the first bad property is the one reported. Names may be keywords or
// strings.
func parsePropPairs(args []zygo.Sexp) ([]propPair, error) {
	if len(args)%2 != 0 {
		return nil, fmt.Errorf("expected name/value pairs, got %d arguments", len(args))
	}
	pairs := make([]propPair, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		name, err := toKeywordString(args[i])
		if err != nil {
			return nil, fmt.Errorf("property name: %w", err)
		}
		pairs = append(pairs, propPair{name: name, value: args[i+1]})
	}
	return pairs, nil
}

// ---------------------------------------------------------------------------
// Value conversion
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %s", describe(s))
}

// toString extracts a string from a Sexp.
func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %s", describe(s))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_x) and plain strings ("x").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %s", describe(s))
	}
	return strings.TrimPrefix(str.S, kwPrefix), nil
}

// toNodeRef extracts a NodeID from a sexpNodeRef.
func toNodeRef(s zygo.Sexp) (scene.NodeID, error) {
	if ref, ok := s.(*sexpNodeRef); ok {
		return ref.id, nil
	}
	return "", fmt.Errorf("expected node, got %s", describe(s))
}

// toFunction extracts a callable from a Sexp.
func toFunction(s zygo.Sexp) (*zygo.SexpFunction, error) {
	if f, ok := s.(*zygo.SexpFunction); ok {
		return f, nil
	}
	return nil, fmt.Errorf("expected function, got %s", describe(s))
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %s", describe(s))
}

// isList reports whether s is a list, array or the empty list.
func isList(s zygo.Sexp) bool {
	switch s.(type) {
	case *zygo.SexpPair, *zygo.SexpArray:
		return true
	}
	return s == zygo.SexpNull
}

// truthy follows Lisp convention: only nil and false are false.
func truthy(s zygo.Sexp) bool {
	if s == nil || s == zygo.SexpNull {
		return false
	}
	if b, ok := s.(*zygo.SexpBool); ok {
		return b.Val
	}
	return true
}

// toPropValue converts a script value into the Go value figma.API.Set
// expects.
func toPropValue(s zygo.Sexp) (any, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	case *zygo.SexpStr:
		return strings.TrimPrefix(v.S, kwPrefix), nil
	case *sexpPaint:
		return v.paint, nil
	}
	if isList(s) {
		items, err := sexpListToSlice(s)
		if err != nil {
			return nil, err
		}
		paints := make([]scene.Paint, 0, len(items))
		for i, item := range items {
			p, ok := item.(*sexpPaint)
			if !ok {
				return nil, fmt.Errorf("paint %d: expected paint, got %s", i, describe(item))
			}
			paints = append(paints, p.paint)
		}
		return paints, nil
	}
	return nil, fmt.Errorf("unsupported value %s", describe(s))
}

// fromPropValue converts a value read through figma.API.Get back into a
// script value.
func fromPropValue(v any) zygo.Sexp {
	switch x := v.(type) {
	case float64:
		return &zygo.SexpFloat{Val: x}
	case string:
		return &zygo.SexpStr{S: x}
	case []scene.Paint:
		items := make([]zygo.Sexp, len(x))
		for i, p := range x {
			items[i] = &sexpPaint{paint: p}
		}
		return zygo.MakeList(items)
	case []scene.NodeID:
		return nodeList(x)
	}
	return zygo.SexpNull
}

func nodeList(ids []scene.NodeID) zygo.Sexp {
	items := make([]zygo.Sexp, len(ids))
	for i, id := range ids {
		items[i] = &sexpNodeRef{id: id}
	}
	return zygo.MakeList(items)
}

func describe(s zygo.Sexp) string {
	if s == nil {
		return "nothing"
	}
	return fmt.Sprintf("%T (%s)", s, s.SexpString(nil))
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// host binds one figma.API into a zygomys environment. It remembers the
// last host error so the ExecutionError can carry it after zygomys has
// flattened it into a message.
type host struct {
	api  *figma.API
	last error
}

// fail records a host-side error and returns it to the interpreter.
func (h *host) fail(format string, args ...any) (zygo.Sexp, error) {
	err := fmt.Errorf(format, args...)
	h.last = err
	return zygo.SexpNull, err
}

// fault builds the ExecutionError for an interpreter error.
func (h *host) fault(err error) error {
	ee := parseZygomysError(err)
	ee.Err = h.last
	if ee.Err == nil {
		ee.Err = err
	}
	return ee
}

// register installs the host builtins. These are the only functions a
// script can call beyond the zygomys sandbox core.
//
// Source code must be preprocessed with preprocessSource() before
// evaluation so that :keyword tokens are converted to recognizable string
// literals.
func (h *host) register(env *zygo.Zlisp) {
	// Every call checks for revocation so a timed-out script stops at its
	// next function call, host or builtin. The panic unwinds to Execute.
	env.AddPreHook(func(*zygo.Zlisp, string, []zygo.Sexp) {
		if h.api.Revoked() {
			panic(errHalted)
		}
	})

	// -----------------------------------------------------------------------
	// (createFrame) (createRectangle :x 10 :fills (list (hex "#f00"))) ...
	// -----------------------------------------------------------------------
	factories := map[string]func() (scene.NodeID, error){
		"createFrame":     h.api.CreateFrame,
		"createRectangle": h.api.CreateRectangle,
		"createEllipse":   h.api.CreateEllipse,
		"createText":      h.api.CreateText,
	}
	for fname, create := range factories {
		env.AddFunction(fname, func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pairs, err := parsePropPairs(args)
			if err != nil {
				return h.fail("%s: %w", name, err)
			}
			id, err := create()
			if err != nil {
				return h.fail("%s: %w", name, err)
			}
			if err := h.setPairs(id, pairs); err != nil {
				return h.fail("%s: %w", name, err)
			}
			return &sexpNodeRef{id: id}, nil
		})
	}

	// -----------------------------------------------------------------------
	// (appendChild node)
	// -----------------------------------------------------------------------
	env.AddFunction("appendChild", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return h.fail("appendChild requires exactly 1 argument, got %d", len(args))
		}
		id, err := toNodeRef(args[0])
		if err != nil {
			return h.fail("appendChild: %w", err)
		}
		if err := h.api.AppendChild(id); err != nil {
			return h.fail("appendChild: %w", err)
		}
		return args[0], nil
	})

	// -----------------------------------------------------------------------
	// (findOne (fn [n] ...)) -> node or nil
	// -----------------------------------------------------------------------
	env.AddFunction("findOne", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return h.fail("findOne requires a predicate")
		}
		pred, err := toFunction(args[0])
		if err != nil {
			return h.fail("findOne: %w", err)
		}
		var predErr error
		id, ok, err := h.api.FindOne(h.predicate(env, pred, &predErr))
		if err == nil {
			err = predErr
		}
		if err != nil {
			return h.fail("findOne: %w", err)
		}
		if !ok {
			return zygo.SexpNull, nil
		}
		return &sexpNodeRef{id: id}, nil
	})

	// -----------------------------------------------------------------------
	// (findAll) (findAll (fn [n] ...)) -> list of nodes
	// -----------------------------------------------------------------------
	env.AddFunction("findAll", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) > 1 {
			return h.fail("findAll takes at most one predicate, got %d arguments", len(args))
		}
		match := func(*scene.Node) bool { return true }
		var predErr error
		if len(args) == 1 {
			pred, err := toFunction(args[0])
			if err != nil {
				return h.fail("findAll: %w", err)
			}
			match = h.predicate(env, pred, &predErr)
		}
		ids, err := h.api.FindAll(match)
		if err == nil {
			err = predErr
		}
		if err != nil {
			return h.fail("findAll: %w", err)
		}
		return nodeList(ids), nil
	})

	// -----------------------------------------------------------------------
	// (group (list a b)) or (group a b)
	// -----------------------------------------------------------------------
	env.AddFunction("group", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		items := args
		if len(args) == 1 && isList(args[0]) {
			var err error
			if items, err = sexpListToSlice(args[0]); err != nil {
				return h.fail("group: %w", err)
			}
		}
		ids := make([]scene.NodeID, 0, len(items))
		for i, item := range items {
			id, err := toNodeRef(item)
			if err != nil {
				return h.fail("group: node %d: %w", i, err)
			}
			ids = append(ids, id)
		}
		id, err := h.api.Group(ids)
		if err != nil {
			return h.fail("group: %w", err)
		}
		return &sexpNodeRef{id: id}, nil
	})

	// -----------------------------------------------------------------------
	// (addChild frame child) -> frame
	// -----------------------------------------------------------------------
	env.AddFunction("addChild", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return h.fail("addChild requires a parent and a child, got %d arguments", len(args))
		}
		parent, err := toNodeRef(args[0])
		if err != nil {
			return h.fail("addChild: parent: %w", err)
		}
		child, err := toNodeRef(args[1])
		if err != nil {
			return h.fail("addChild: child: %w", err)
		}
		if err := h.api.AddChild(parent, child); err != nil {
			return h.fail("addChild: %w", err)
		}
		return args[0], nil
	})

	// -----------------------------------------------------------------------
	// (setProp node :x 10 :name "Card") -> node
	// -----------------------------------------------------------------------
	env.AddFunction("setProp", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 3 {
			return h.fail("setProp requires a node and at least one name/value pair")
		}
		id, err := toNodeRef(args[0])
		if err != nil {
			return h.fail("setProp: %w", err)
		}
		pairs, err := parsePropPairs(args[1:])
		if err != nil {
			return h.fail("setProp: %w", err)
		}
		if err := h.setPairs(id, pairs); err != nil {
			return h.fail("setProp: %w", err)
		}
		return args[0], nil
	})

	// -----------------------------------------------------------------------
	// (getProp node :width)
	// -----------------------------------------------------------------------
	env.AddFunction("getProp", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return h.fail("getProp requires a node and a property name")
		}
		id, err := toNodeRef(args[0])
		if err != nil {
			return h.fail("getProp: %w", err)
		}
		prop, err := toKeywordString(args[1])
		if err != nil {
			return h.fail("getProp: %w", err)
		}
		v, err := h.api.Get(id, prop)
		if err != nil {
			return h.fail("getProp: %w", err)
		}
		return fromPropValue(v), nil
	})

	// -----------------------------------------------------------------------
	// (solid r g b) (solid r g b a), channels in [0,1]
	// -----------------------------------------------------------------------
	env.AddFunction("solid", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 && len(args) != 4 {
			return h.fail("solid requires 3 or 4 numbers, got %d", len(args))
		}
		ch := [4]float64{0, 0, 0, 1}
		for i, a := range args {
			f, err := toFloat64(a)
			if err != nil {
				return h.fail("solid: channel %d: %w", i, err)
			}
			ch[i] = f
		}
		c := scene.Color{R: ch[0], G: ch[1], B: ch[2], A: ch[3]}
		return &sexpPaint{paint: scene.Solid(c)}, nil
	})

	// -----------------------------------------------------------------------
	// (hex "#3366cc")
	// -----------------------------------------------------------------------
	env.AddFunction("hex", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return h.fail("hex requires a colour string")
		}
		s, err := toString(args[0])
		if err != nil {
			return h.fail("hex: %w", err)
		}
		c, err := scene.ParseHex(s)
		if err != nil {
			return h.fail("hex: %w", err)
		}
		return &sexpPaint{paint: scene.Solid(c)}, nil
	})

	// -----------------------------------------------------------------------
	// (notify "Done") (closePlugin)
	// -----------------------------------------------------------------------
	env.AddFunction("notify", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return h.fail("notify requires a message")
		}
		msg, err := toString(args[0])
		if err != nil {
			// Scripts notify with numbers and lists too.
			msg = args[0].SexpString(nil)
		}
		if err := h.api.Notify(msg); err != nil {
			return h.fail("notify: %w", err)
		}
		return zygo.SexpNull, nil
	})

	env.AddFunction("closePlugin", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := h.api.ClosePlugin(); err != nil {
			return h.fail("closePlugin: %w", err)
		}
		return zygo.SexpNull, nil
	})
}

// setPairs applies properties in order, stopping at the first failure.
func (h *host) setPairs(id scene.NodeID, pairs []propPair) error {
	for _, p := range pairs {
		v, err := toPropValue(p.value)
		if err != nil {
			return fmt.Errorf("%s: %w: %v", p.name, figma.ErrInvalidValue, err)
		}
		if err := h.api.Set(id, p.name, v); err != nil {
			return err
		}
	}
	return nil
}

// predicate adapts a script function into a node predicate. The first
// error stops further calls and is reported through errp.
func (h *host) predicate(env *zygo.Zlisp, fn *zygo.SexpFunction, errp *error) func(*scene.Node) bool {
	return func(n *scene.Node) bool {
		if *errp != nil {
			return false
		}
		out, err := env.Apply(fn, []zygo.Sexp{&sexpNodeRef{id: n.ID}})
		if err != nil {
			*errp = fmt.Errorf("predicate: %w", err)
			return false
		}
		return truthy(out)
	}
}
