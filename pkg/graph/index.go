package graph

import "github.com/dukex/stepflow/pkg/models"

type index struct {
	byID     map[string]int
	byOrder  map[int]int
	targeted map[string]bool
}

func newIndex(steps []models.Step) *index {
	idx := &index{
		byID:     make(map[string]int, len(steps)),
		byOrder:  make(map[int]int, len(steps)),
		targeted: make(map[string]bool),
	}

	for i, step := range steps {
		if _, exists := idx.byID[step.ClientID]; !exists {
			idx.byID[step.ClientID] = i
		}

		if _, exists := idx.byOrder[step.Order]; !exists {
			idx.byOrder[step.Order] = i
		}
	}

	for _, step := range steps {
		branch, ok := step.Branch()
		if !ok {
			continue
		}

		for _, path := range branch.Paths {
			if target, ok := idx.resolve(path); ok {
				idx.targeted[steps[target].ClientID] = true
			}
		}
	}

	return idx
}

// resolve returns the list position a branch path points at. A path carrying a
// client id is resolved by identity only; otherwise its order is used.
func (idx *index) resolve(path models.BranchPath) (int, bool) {
	if path.NextStepID != "" {
		i, ok := idx.byID[path.NextStepID]

		return i, ok
	}

	i, ok := idx.byOrder[path.NextStepOrder]

	return i, ok
}
