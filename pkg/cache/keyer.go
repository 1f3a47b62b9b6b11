package cache

// Keyer builds cache keys.
type Keyer interface {
	// TreesKey identifies a parsed and split-assigned tree run.
	TreesKey(sourceHash string, opts TreesKeyOpts) string

	// LayoutKey identifies the radial layout of one tree of a run.
	LayoutKey(runHash string, opts LayoutKeyOpts) string

	// ArtifactKey identifies one rendered frame in one format.
	ArtifactKey(runHash string, opts ArtifactKeyOpts) string
}

// TreesKeyOpts are the inputs that change how a source parses.
type TreesKeyOpts struct {
	Format    string   `json:"format,omitempty"`
	LeafOrder []string `json:"leaf_order,omitempty"`
}

// LayoutKeyOpts are the inputs of [layout.Radial] besides the tree.
type LayoutKeyOpts struct {
	Index     int     `json:"index"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	Margin    float64 `json:"margin"`
	Transform string  `json:"transform"`
	Uniform   bool    `json:"uniform"`
}

// ArtifactKeyOpts are the inputs of one rendered frame.
type ArtifactKeyOpts struct {
	Layout      LayoutKeyOpts `json:"layout"`
	From        int           `json:"from"`
	To          int           `json:"to"`
	T           float64       `json:"t"`
	Backward    bool          `json:"backward,omitempty"`
	Format      string        `json:"format"`
	StrokeWidth float64       `json:"stroke_width"`
	FontSizeEm  float64       `json:"font_size_em"`
	Background  string        `json:"background,omitempty"`
	Offsets     [2]float64    `json:"offsets"`
	Highlight   []string      `json:"highlight,omitempty"`
}

// DefaultKeyer hashes the options into the key.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// TreesKey returns "trees:<hash>".
func (DefaultKeyer) TreesKey(sourceHash string, opts TreesKeyOpts) string {
	return hashKey(KindTrees, sourceHash, opts)
}

// LayoutKey returns "layout:<hash>".
func (DefaultKeyer) LayoutKey(runHash string, opts LayoutKeyOpts) string {
	return hashKey(KindLayout, runHash, opts)
}

// ArtifactKey returns "artifact:<hash>".
func (DefaultKeyer) ArtifactKey(runHash string, opts ArtifactKeyOpts) string {
	return hashKey(KindArtifact, runHash, opts)
}

var _ Keyer = DefaultKeyer{}
