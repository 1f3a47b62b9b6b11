package tree

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	perrors "github.com/matzehuels/phylomorph/pkg/errors"
)

// listFields are the object fields that may hold a tree list, in lookup order.
var listFields = []string{"interpolated_trees", "tree_list", "trees"}

// rawNode mirrors Node with lenient length fields.
type rawNode struct {
	Name         string          `json:"name"`
	Length       json.RawMessage `json:"length"`
	BranchLength json.RawMessage `json:"branch_length"`
	Children     []*Node         `json:"children"`
	Split        []int           `json:"split_indices"`
}

// UnmarshalJSON decodes a node, accepting "branch_length" as an alias of
// "length" and lengths given as numbers, numeric strings, "" or null.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw rawNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	field := raw.Length
	if isAbsent(field) {
		field = raw.BranchLength
	}
	length, err := parseLength(field)
	if err != nil {
		return fmt.Errorf("node %q: %w", raw.Name, err)
	}
	*n = Node{
		Name:     raw.Name,
		Length:   length,
		Children: raw.Children,
		Split:    raw.Split,
	}
	return nil
}

func isAbsent(field json.RawMessage) bool {
	s := string(bytes.TrimSpace(field))
	return s == "" || s == "null" || s == `""`
}

func parseLength(field json.RawMessage) (float64, error) {
	if isAbsent(field) {
		return 0, nil
	}
	s := strings.TrimSpace(string(field))
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(field, &str); err != nil {
			return 0, err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			return 0, nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("length %s is not a number", s)
	}
	return v, nil
}

// DecodeJSON decodes one tree, a list of trees, or an object wrapping a list
// under one of the known list fields.
func DecodeJSON(data []byte) ([]*Node, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, perrors.New(perrors.ErrCodeInvalidInput, "empty JSON input")
	}

	if trimmed[0] == '[' {
		var trees []*Node
		if err := json.Unmarshal(trimmed, &trees); err != nil {
			return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "decode tree list")
		}
		return nonEmpty(trees)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "decode tree")
	}
	for _, name := range listFields {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var trees []*Node
		if err := json.Unmarshal(raw, &trees); err != nil {
			return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "decode %s", name)
		}
		return nonEmpty(trees)
	}

	var root Node
	if err := json.Unmarshal(trimmed, &root); err != nil {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "decode tree")
	}
	return []*Node{&root}, nil
}

// EncodeJSON encodes a tree list in the form read by [DecodeJSON].
func EncodeJSON(trees []*Node) ([]byte, error) {
	return json.Marshal(trees)
}

func nonEmpty(trees []*Node) ([]*Node, error) {
	if len(trees) == 0 {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, ErrEmptyTree, "no trees in input")
	}
	for i, t := range trees {
		if t == nil {
			return nil, perrors.New(perrors.ErrCodeInvalidTree, "tree %d is null", i)
		}
	}
	return trees, nil
}
