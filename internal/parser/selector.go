package parser

import (
	"fmt"
	"strings"
)

// Axis controls how a step relates to the node matched by the previous step.
type Axis int

const (
	// Descendant matches any element below the context node.
	Descendant Axis = iota
	// Child matches direct children of the context node only.
	Child
)

// TextMode controls how text is read from a matched element.
type TextMode int

const (
	// OwnText joins the element's direct text children.
	OwnText TextMode = iota
	// DeepText joins all descendant text.
	DeepText
	// DeepTextBreaks joins all descendant text, treating <br> as a space
	// and collapsing whitespace runs.
	DeepTextBreaks
	// Lines joins all descendant text, turning <br> into a newline. Line
	// structure of the source is preserved.
	Lines
)

// Predicate narrows the elements a step matches.
type Predicate interface {
	xpath() string
}

type predicate string

func (p predicate) xpath() string { return string(p) }

// AttrEquals matches elements whose attribute equals value exactly.
func AttrEquals(name, value string) Predicate {
	return predicate(fmt.Sprintf("@%s=%s", name, Literal(value)))
}

// HasAttr matches elements carrying the attribute.
func HasAttr(name string) Predicate {
	return predicate("@" + name)
}

// HasClass matches elements whose class attribute contains token as a
// whitespace-separated word.
func HasClass(token string) Predicate {
	return predicate(fmt.Sprintf(`contains(concat(" ", normalize-space(@class), " "), %s)`, Literal(" "+token+" ")))
}

// IDEquals matches the element with the given id.
func IDEquals(id string) Predicate {
	return AttrEquals("id", id)
}

// TextEquals matches elements whose whitespace-normalized text equals text.
func TextEquals(text string) Predicate {
	return predicate(fmt.Sprintf("normalize-space(.)=%s", Literal(strings.Join(strings.Fields(text), " "))))
}

// TextContains matches elements whose text contains text.
func TextContains(text string) Predicate {
	return predicate(fmt.Sprintf("contains(., %s)", Literal(text)))
}

// Step is one location step of a Selector.
type Step struct {
	Axis  Axis
	Tag   string // "" or "*" matches any element
	Preds []Predicate
}

// Desc returns a descendant step.
func Desc(tag string, preds ...Predicate) Step {
	return Step{Axis: Descendant, Tag: tag, Preds: preds}
}

// Kid returns a child step.
func Kid(tag string, preds ...Predicate) Step {
	return Step{Axis: Child, Tag: tag, Preds: preds}
}

// Selector locates elements relative to a context node and says what to
// read from them: an attribute when Attr is set, text otherwise.
type Selector struct {
	Steps []Step
	Attr  string
	Text  TextMode
}

// Sel builds a text selector from steps.
func Sel(steps ...Step) Selector {
	return Selector{Steps: steps}
}

// Attribute returns a copy of s that reads the named attribute.
func (s Selector) Attribute(name string) Selector {
	s.Attr = name
	return s
}

// WithText returns a copy of s that reads text using mode.
func (s Selector) WithText(mode TextMode) Selector {
	s.Text = mode
	return s
}

// Then returns a copy of s extended with more steps.
func (s Selector) Then(steps ...Step) Selector {
	out := make([]Step, 0, len(s.Steps)+len(steps))
	out = append(out, s.Steps...)
	s.Steps = append(out, steps...)
	return s
}

// XPath renders the element-locating part of the selector, relative to the
// context node.
func (s Selector) XPath() string {
	if len(s.Steps) == 0 {
		return "."
	}
	var b strings.Builder
	b.WriteString(".")
	for _, st := range s.Steps {
		if st.Axis == Descendant {
			b.WriteString("//")
		} else {
			b.WriteString("/")
		}
		if st.Tag == "" {
			b.WriteString("*")
		} else {
			b.WriteString(st.Tag)
		}
		for _, p := range st.Preds {
			b.WriteString("[")
			b.WriteString(p.xpath())
			b.WriteString("]")
		}
	}
	return b.String()
}

func (s Selector) String() string {
	if s.Attr != "" {
		return s.XPath() + "/@" + s.Attr
	}
	return s.XPath()
}

// LabeledSelector reads a value printed after a fixed label, such as the
// count that follows "10" in a rating histogram.
type LabeledSelector struct {
	Tag   string
	Class string
	Label string
}

// Anchor is the selector for the label element itself.
func (l LabeledSelector) Anchor() Selector {
	return Sel(Desc(l.Tag, HasClass(l.Class), TextEquals(l.Label)))
}

// Literal quotes s as an XPath string literal. Strings holding both quote
// kinds are built with concat().
func Literal(s string) string {
	switch {
	case !strings.Contains(s, `"`):
		return `"` + s + `"`
	case !strings.Contains(s, "'"):
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	args := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			args = append(args, `'"'`)
		}
		if p != "" {
			args = append(args, `"`+p+`"`)
		}
	}
	if len(args) == 1 {
		return args[0]
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}
