package layout

import (
	"fmt"

	json "github.com/goccy/go-json"
)

type nodeJSON struct {
	Key         string  `json:"key"`
	Name        string  `json:"name,omitempty"`
	Split       []int   `json:"split_indices"`
	Length      float64 `json:"length"`
	Radius      float64 `json:"radius"`
	Angle       float64 `json:"angle"`
	ParentAngle float64 `json:"parent_angle"`
	Index       int     `json:"index"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Parent      int     `json:"parent"`
}

type linkJSON struct {
	Key    string `json:"key"`
	Source int    `json:"source"`
	Target int    `json:"target"`
}

type layoutJSON struct {
	Width     float64    `json:"width"`
	Height    float64    `json:"height"`
	Margin    float64    `json:"margin"`
	Scale     float64    `json:"scale"`
	MaxRadius float64    `json:"max_radius"`
	Nodes     []nodeJSON `json:"nodes"`
	Links     []linkJSON `json:"links"`
}

// MarshalJSON encodes the layout as flat node and link lists. Parents and
// link endpoints are positions in the node list; the root's parent is -1.
func (l *Layout) MarshalJSON() ([]byte, error) {
	pos := make(map[*Node]int, len(l.Nodes))
	for i, n := range l.Nodes {
		pos[n] = i
	}
	out := layoutJSON{
		Width:     l.Width,
		Height:    l.Height,
		Margin:    l.Margin,
		Scale:     l.Scale,
		MaxRadius: l.MaxRadius,
		Nodes:     make([]nodeJSON, len(l.Nodes)),
		Links:     make([]linkJSON, len(l.Links)),
	}
	for i, n := range l.Nodes {
		parent := -1
		if n.Parent != nil {
			parent = pos[n.Parent]
		}
		out.Nodes[i] = nodeJSON{
			Key:         n.Key,
			Name:        n.Name,
			Split:       n.Split,
			Length:      n.Length,
			Radius:      n.Radius,
			Angle:       n.Angle,
			ParentAngle: n.ParentAngle,
			Index:       n.Index,
			X:           n.X,
			Y:           n.Y,
			Parent:      parent,
		}
	}
	for i, k := range l.Links {
		out.Links[i] = linkJSON{Key: k.Key, Source: pos[k.Source], Target: pos[k.Target]}
	}
	return json.Marshal(out)
}

// UnmarshalJSON rebuilds a layout encoded by MarshalJSON.
func (l *Layout) UnmarshalJSON(data []byte) error {
	var in layoutJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.Nodes) == 0 {
		return ErrNilTree
	}

	nodes := make([]*Node, len(in.Nodes))
	for i, n := range in.Nodes {
		nodes[i] = &Node{
			Key:         n.Key,
			Name:        n.Name,
			Split:       n.Split,
			Length:      n.Length,
			Radius:      n.Radius,
			Angle:       n.Angle,
			ParentAngle: n.ParentAngle,
			Index:       n.Index,
			X:           n.X,
			Y:           n.Y,
		}
	}
	out := Layout{
		Width:     in.Width,
		Height:    in.Height,
		Margin:    in.Margin,
		Scale:     in.Scale,
		MaxRadius: in.MaxRadius,
		Nodes:     nodes,
	}
	for i, n := range in.Nodes {
		if n.Parent < 0 {
			if out.Root != nil {
				return fmt.Errorf("node %s: second root", n.Key)
			}
			out.Root = nodes[i]
			continue
		}
		if n.Parent >= len(nodes) {
			return fmt.Errorf("node %s: parent %d out of range", n.Key, n.Parent)
		}
		parent := nodes[n.Parent]
		nodes[i].Parent = parent
		parent.Children = append(parent.Children, nodes[i])
	}
	if out.Root == nil {
		return fmt.Errorf("layout has no root: %w", ErrNilTree)
	}
	for _, n := range nodes {
		if n.IsLeaf() {
			out.Leaves = append(out.Leaves, n)
		}
	}
	for _, k := range in.Links {
		link := &Link{Key: k.Key}
		if k.Source >= 0 && k.Source < len(nodes) {
			link.Source = nodes[k.Source]
		}
		if k.Target >= 0 && k.Target < len(nodes) {
			link.Target = nodes[k.Target]
		}
		out.Links = append(out.Links, link)
	}
	if err := out.Validate(); err != nil {
		return err
	}
	out.reindex()
	*l = out
	return nil
}
