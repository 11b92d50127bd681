package entityset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/marcin-laskowski/Feature-Engineering/schema"
)

// ============================================================================
// ENTITYSET — entities + parent/child relationships
// ============================================================================
// The parent-to-child analogy: a relationship is one-to-many because for
// each parent row there can be multiple child rows. Clients are the parent
// of loans (one client, many loans); loans are the parent of payments.
// Relationships are what let aggregation primitives group child rows under
// each parent to make new features.
// ============================================================================

// Relationship links a parent entity's index column to a child entity's
// key column.
type Relationship struct {
	ParentEntity string `json:"parentEntity"`
	ParentColumn string `json:"parentColumn"`
	ChildEntity  string `json:"childEntity"`
	ChildColumn  string `json:"childColumn"`
}

// String renders "clients.client_id -> loans.client_id".
func (r Relationship) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", r.ParentEntity, r.ParentColumn, r.ChildEntity, r.ChildColumn)
}

// EntitySet is an ordered collection of entities and the relationships
// between them.
type EntitySet struct {
	Name string

	entities map[string]*Entity
	order    []string
	rels     []Relationship

	// childRows[i] maps parent index value → child row positions for rels[i],
	// sorted by the child's time index when it has one.
	childRows []map[string][]int
}

// New creates an empty EntitySet.
func New(name string) *EntitySet {
	return &EntitySet{
		Name:     name,
		entities: make(map[string]*Entity),
	}
}

// AddEntity adds a frame as a named entity.
func (es *EntitySet) AddEntity(name string, frame *Frame, opts ...EntityOption) error {
	if _, exists := es.entities[name]; exists {
		return fmt.Errorf("entityset %q already has an entity %q", es.Name, name)
	}
	e, err := newEntity(name, frame, opts...)
	if err != nil {
		return err
	}
	es.entities[name] = e
	es.order = append(es.order, name)
	return nil
}

// Entity returns an entity by name.
func (es *EntitySet) Entity(name string) (*Entity, bool) {
	e, ok := es.entities[name]
	return e, ok
}

// Entities returns all entities in insertion order.
func (es *EntitySet) Entities() []*Entity {
	out := make([]*Entity, len(es.order))
	for i, name := range es.order {
		out[i] = es.entities[name]
	}
	return out
}

// Relationships returns all relationships in insertion order.
func (es *EntitySet) Relationships() []Relationship {
	out := make([]Relationship, len(es.rels))
	copy(out, es.rels)
	return out
}

// AddRelationship declares that parentEntity.parentColumn (the parent's
// index) identifies rows of childEntity.childColumn.
func (es *EntitySet) AddRelationship(parentEntity, parentColumn, childEntity, childColumn string) error {
	parent, ok := es.entities[parentEntity]
	if !ok {
		return fmt.Errorf("unknown parent entity %q", parentEntity)
	}
	child, ok := es.entities[childEntity]
	if !ok {
		return fmt.Errorf("unknown child entity %q", childEntity)
	}
	if parentEntity == childEntity {
		return fmt.Errorf("entity %q cannot be its own parent", parentEntity)
	}
	if parent.Index != parentColumn {
		return fmt.Errorf("parent column %q is not the index of %q (index is %q)",
			parentColumn, parentEntity, parent.Index)
	}
	childCol, ok := child.Frame.Column(childColumn)
	if !ok {
		return fmt.Errorf("child entity %q has no column %q", childEntity, childColumn)
	}

	rel := Relationship{
		ParentEntity: parentEntity,
		ParentColumn: parentColumn,
		ChildEntity:  childEntity,
		ChildColumn:  childColumn,
	}
	for _, existing := range es.rels {
		if existing == rel {
			return fmt.Errorf("relationship %s already exists", rel)
		}
	}

	// The child column is a foreign key now; keep it out of synthesis.
	if childCol.Type == schema.Numeric || childCol.Type == schema.Categorical {
		childCol.Type = schema.Id
	}

	es.rels = append(es.rels, rel)
	es.childRows = append(es.childRows, buildChildRows(child, childCol))
	return nil
}

// buildChildRows groups child row positions by parent key, sorting each
// group by the child's time index so time-ordered aggregations (last)
// read rows chronologically.
func buildChildRows(child *Entity, childCol *Column) map[string][]int {
	byKey := make(map[string][]int)
	for i := 0; i < child.NumRows(); i++ {
		key := childCol.StringAt(i)
		if key == "" {
			continue
		}
		byKey[key] = append(byKey[key], i)
	}

	if child.TimeIndex != "" {
		for _, rows := range byKey {
			sort.SliceStable(rows, func(a, b int) bool {
				ta, okA := child.timeAt(rows[a])
				tb, okB := child.timeAt(rows[b])
				if okA != okB {
					return okA // rows with a time sort before rows without
				}
				return ta < tb
			})
		}
	}
	return byKey
}

// ChildRelationships returns the relationships where the given entity is
// the parent.
func (es *EntitySet) ChildRelationships(parentEntity string) []Relationship {
	var out []Relationship
	for _, r := range es.rels {
		if r.ParentEntity == parentEntity {
			out = append(out, r)
		}
	}
	return out
}

// ChildRows returns the child row positions for a parent index value, in
// time order when the child entity has a time index.
func (es *EntitySet) ChildRows(rel Relationship, parentKey string) []int {
	for i, r := range es.rels {
		if r == rel {
			return es.childRows[i][parentKey]
		}
	}
	return nil
}

// String renders a summary of entities and relationships.
func (es *EntitySet) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entityset: %s\n", es.Name)
	b.WriteString("  Entities:\n")
	for _, name := range es.order {
		e := es.entities[name]
		fmt.Fprintf(&b, "    %s [Rows: %d, Columns: %d]\n", name, e.NumRows(), e.Frame.NumCols())
	}
	b.WriteString("  Relationships:\n")
	if len(es.rels) == 0 {
		b.WriteString("    No relationships\n")
	}
	for _, r := range es.rels {
		fmt.Fprintf(&b, "    %s.%s -> %s.%s\n", r.ChildEntity, r.ChildColumn, r.ParentEntity, r.ParentColumn)
	}
	return b.String()
}

// VarTypeOf returns the variable type of an entity column.
func (es *EntitySet) VarTypeOf(entity, column string) (schema.VarType, bool) {
	e, ok := es.entities[entity]
	if !ok {
		return schema.Unknown, false
	}
	col, ok := e.Frame.Column(column)
	if !ok {
		return schema.Unknown, false
	}
	return col.Type, true
}
