package tree_test

import (
	"fmt"

	"github.com/matzehuels/phylomorph/pkg/tree"
)

func ExampleParseNewick() {
	// Parse two trees of the same four taxa
	trees, _ := tree.ParseNewick("((A:1,B:1):1,(C:1,D:1):1); ((A:1,C:1):1,(B:1,D:1):1);")
	_ = tree.Prepare(trees)

	fmt.Println("Trees:", len(trees))
	fmt.Println("Leaves:", trees[0].LeafNames())
	fmt.Println("First clade:", trees[0].Children[0].Key())
	// Output:
	// Trees: 2
	// Leaves: [A B C D]
	// First clade: 0,1
}

func ExampleRobinsonFoulds() {
	trees, _ := tree.ParseNewick("((A,B),(C,D)); ((A,C),(B,D));")
	_ = tree.Prepare(trees)

	rf, rel := tree.RobinsonFoulds(trees[0], trees[1])
	fmt.Println("RF:", rf)
	fmt.Println("Relative:", rel)
	// Output:
	// RF: 2
	// Relative: 1
}

func ExampleDecodeJSON() {
	data := []byte(`{"tree_list": [{"children": [
		{"name": "A", "branch_length": "0.5"},
		{"name": "B", "length": 2}
	]}]}`)
	trees, _ := tree.DecodeJSON(data)
	_ = tree.Prepare(trees)

	for _, leaf := range trees[0].Leaves() {
		fmt.Printf("%s key=%s length=%g\n", leaf.Name, leaf.Key(), leaf.Length)
	}
	// Output:
	// A key=0 length=0.5
	// B key=1 length=2
}
