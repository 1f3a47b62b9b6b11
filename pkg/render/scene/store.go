package scene

import (
	"maps"
	"slices"

	"github.com/matzehuels/phylomorph/pkg/render"
)

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// validate reconciles a layer's meshes against the engine's sets and
// deletes orphans.
func validate[V any](meshes map[string]V, current, enter, update, exit []string) render.Validation {
	v := render.Reconcile(sortedKeys(meshes), current, enter, update, exit)
	for _, key := range v.Orphans {
		delete(meshes, key)
	}
	return v
}
