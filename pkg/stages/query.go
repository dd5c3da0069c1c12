package stages

import "github.com/aretw0/escrow/pkg/domain"

func (c Catalog) indexOf(id domain.StageID) int {
	for i, s := range c.stages {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// Position returns the zero-based index of id in the catalog.
func (c Catalog) Position(id domain.StageID) (int, bool) {
	i := c.indexOf(id)
	return i, i >= 0
}

// Definition looks up a stage by exact ID.
func (c Catalog) Definition(id domain.StageID) (domain.StageDefinition, bool) {
	i := c.indexOf(id)
	if i < 0 {
		return domain.StageDefinition{}, false
	}
	return c.stages[i].Clone(), true
}

// Next returns the stage immediately after id.
// It reports false when id is unknown or already the last stage.
func (c Catalog) Next(id domain.StageID) (domain.StageDefinition, bool) {
	i := c.indexOf(id)
	if i < 0 || i >= len(c.stages)-1 {
		return domain.StageDefinition{}, false
	}
	return c.stages[i+1].Clone(), true
}

// Completed returns the stages strictly before id, in order.
// Unknown IDs yield an empty slice. Display only.
func (c Catalog) Completed(id domain.StageID) []domain.StageDefinition {
	i := c.indexOf(id)
	if i <= 0 {
		return []domain.StageDefinition{}
	}
	return NewCatalog(c.stages[:i]...).stages
}

// Upcoming returns the stages strictly after id, in order.
func (c Catalog) Upcoming(id domain.StageID) []domain.StageDefinition {
	i := c.indexOf(id)
	if i < 0 || i >= len(c.stages)-1 {
		return []domain.StageDefinition{}
	}
	return NewCatalog(c.stages[i+1:]...).stages
}

// IsValid reports whether id is a stage of the catalog.
func (c Catalog) IsValid(id domain.StageID) bool {
	return c.indexOf(id) >= 0
}

// Definition looks up a stage of the default catalog.
func Definition(id domain.StageID) (domain.StageDefinition, bool) {
	return defaultCatalog.Definition(id)
}

// Next returns the stage after id in the default catalog.
func Next(id domain.StageID) (domain.StageDefinition, bool) {
	return defaultCatalog.Next(id)
}

// Completed returns the default-catalog stages strictly before id.
func Completed(id domain.StageID) []domain.StageDefinition {
	return defaultCatalog.Completed(id)
}

// IsValid reports whether id belongs to the default catalog.
func IsValid(id domain.StageID) bool {
	return defaultCatalog.IsValid(id)
}

// Label returns the display label of id, or the raw ID when unknown.
func Label(id domain.StageID) string {
	if def, ok := defaultCatalog.Definition(id); ok {
		return def.Label
	}
	return string(id)
}
