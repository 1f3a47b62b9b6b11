// Package tree holds the input data model: nested phylogenetic trees whose
// leaves are taxa and whose edges carry branch lengths.
//
// # Overview
//
// A [Node] owns its children. Every node may carry split indices, the ordered
// leaf indices of the bipartition induced by the edge above it. Split indices
// are what make elements comparable between trees: the same bipartition in
// two trees produces the same key (see package keys), so a branch can be
// morphed instead of removed and re-added.
//
// # Reading Trees
//
// Trees arrive either as Newick text or as JSON:
//
//	trees, err := tree.ReadFile("run.nwk")
//	trees, err := tree.ParseNewick("((A:1,B:1):1,(C:1,D:1):1);")
//	trees, err := tree.DecodeJSON(data)
//
// JSON input may be a single tree object, an array of trees, or an object
// holding the list under "interpolated_trees", "tree_list" or "trees". The
// legacy "branch_length" field is accepted as an alias of "length", and
// lengths may be numbers, numeric strings or empty strings (meaning 0).
//
// # Split Indices
//
// Trees read from Newick carry no split indices. [AssignSplits] derives them
// from a global leaf order (by default the sorted leaf names of the first
// tree): a leaf gets its own index, an internal node the sorted union of its
// children. [ValidateRun] checks that a whole run is keyed consistently.
//
// # Distances
//
// [RobinsonFoulds] and [WeightedRobinsonFoulds] compare two trees by their
// non-trivial bipartitions, treating the trees as unrooted.
package tree
