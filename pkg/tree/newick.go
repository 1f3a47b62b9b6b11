package tree

import (
	"fmt"
	"strconv"
	"strings"

	perrors "github.com/matzehuels/phylomorph/pkg/errors"
)

// ParseNewick parses one or more ';'-terminated Newick trees. Bracketed
// comments are stripped first, quoted labels may contain any character, and
// internal node labels (often support values) are dropped. A root with a
// single internal child is unwrapped.
func ParseNewick(s string) ([]*Node, error) {
	text, err := stripComments(s)
	if err != nil {
		return nil, err
	}

	var trees []*Node
	p := &newickParser{src: text}
	for {
		p.skipSpace()
		if p.done() {
			break
		}
		root, err := p.parseTree()
		if err != nil {
			return nil, perrors.Wrap(perrors.ErrCodeInvalidNewick, err, "tree %d", len(trees))
		}
		trees = append(trees, unwrapRoot(root))
	}
	if len(trees) == 0 {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidNewick, ErrEmptyTree, "no trees in input")
	}
	return trees, nil
}

// stripComments removes [..] comments, which may not nest.
func stripComments(s string) (string, error) {
	var b strings.Builder
	depth := 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' && depth == 0:
			inQuote = !inQuote
			b.WriteByte(c)
		case inQuote:
			b.WriteByte(c)
		case c == '[':
			depth++
		case c == ']':
			if depth == 0 {
				return "", perrors.New(perrors.ErrCodeInvalidNewick, "unbalanced ']' at offset %d", i)
			}
			depth--
		case depth == 0:
			b.WriteByte(c)
		}
	}
	if depth != 0 {
		return "", perrors.New(perrors.ErrCodeInvalidNewick, "unterminated comment")
	}
	return b.String(), nil
}

func unwrapRoot(root *Node) *Node {
	for len(root.Children) == 1 && !root.Children[0].IsLeaf() {
		root = root.Children[0]
	}
	root.Length = 0
	return root
}

type newickParser struct {
	src string
	pos int
}

func (p *newickParser) done() bool { return p.pos >= len(p.src) }

func (p *newickParser) peek() byte {
	if p.done() {
		return 0
	}
	return p.src[p.pos]
}

func (p *newickParser) skipSpace() {
	for !p.done() && strings.IndexByte(" \t\r\n", p.src[p.pos]) >= 0 {
		p.pos++
	}
}

func (p *newickParser) errorf(format string, args ...any) error {
	return fmt.Errorf("offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *newickParser) parseTree() (*Node, error) {
	root, err := p.parseSubtree()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() != ';' {
		return nil, p.errorf("expected ';', found %q", p.peek())
	}
	p.pos++
	return root, nil
}

func (p *newickParser) parseSubtree() (*Node, error) {
	p.skipSpace()
	n := &Node{}
	if p.peek() == '(' {
		p.pos++
		for {
			child, err := p.parseSubtree()
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
			p.skipSpace()
			switch p.peek() {
			case ',':
				p.pos++
				continue
			case ')':
				p.pos++
			default:
				return nil, p.errorf("expected ',' or ')', found %q", p.peek())
			}
			break
		}
	}

	label, err := p.parseLabel()
	if err != nil {
		return nil, err
	}
	if n.IsLeaf() {
		if label == "" {
			return nil, p.errorf("leaf without a name")
		}
		n.Name = label
	}

	p.skipSpace()
	if p.peek() == ':' {
		p.pos++
		length, err := p.parseLength()
		if err != nil {
			return nil, err
		}
		n.Length = length
	}
	return n, nil
}

func (p *newickParser) parseLabel() (string, error) {
	p.skipSpace()
	if p.peek() == '\'' {
		return p.parseQuoted()
	}
	start := p.pos
	for !p.done() && strings.IndexByte("(),:; \t\r\n", p.src[p.pos]) < 0 {
		p.pos++
	}
	return strings.ReplaceAll(p.src[start:p.pos], "_", " "), nil
}

// parseQuoted reads a single-quoted label; '' encodes a literal quote.
func (p *newickParser) parseQuoted() (string, error) {
	p.pos++
	var b strings.Builder
	for !p.done() {
		c := p.src[p.pos]
		p.pos++
		if c != '\'' {
			b.WriteByte(c)
			continue
		}
		if p.peek() == '\'' {
			b.WriteByte('\'')
			p.pos++
			continue
		}
		return b.String(), nil
	}
	return "", p.errorf("unterminated quoted label")
}

func (p *newickParser) parseLength() (float64, error) {
	p.skipSpace()
	start := p.pos
	for !p.done() && strings.IndexByte("(),:; \t\r\n", p.src[p.pos]) < 0 {
		p.pos++
	}
	text := p.src[start:p.pos]
	if text == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, p.errorf("invalid branch length %q", text)
	}
	return v, nil
}

// EncodeNewick writes a tree back to Newick text, quoting names that need it.
func EncodeNewick(root *Node) string {
	var b strings.Builder
	writeNewick(&b, root, true)
	b.WriteByte(';')
	return b.String()
}

func writeNewick(b *strings.Builder, n *Node, isRoot bool) {
	if !n.IsLeaf() {
		b.WriteByte('(')
		for i, c := range n.Children {
			if i > 0 {
				b.WriteByte(',')
			}
			writeNewick(b, c, false)
		}
		b.WriteByte(')')
	}
	if n.Name != "" {
		b.WriteString(quoteName(n.Name))
	}
	if !isRoot {
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(n.Length, 'g', -1, 64))
	}
}

func quoteName(name string) string {
	if !strings.ContainsAny(name, "(),:;[]' _\t") {
		return name
	}
	if strings.ContainsAny(name, "(),:;[]'_\t") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return strings.ReplaceAll(name, " ", "_")
}
