package integrity

import (
	"github.com/membercore/integra/internal/dataset"
	"github.com/membercore/integra/internal/record"
	"github.com/membercore/integra/internal/schema"
)

// Resolver finds records in a child collection whose foreign key references
// a parent record. It consults the registry's (child, parent) field map,
// the single source of truth for relationships.
type Resolver struct {
	reg   *schema.Registry
	store *dataset.Store
}

// NewResolver creates a resolver over a registry and a dataset snapshot.
func NewResolver(reg *schema.Registry, store *dataset.Store) *Resolver {
	return &Resolver{reg: reg, store: store}
}

// FindRelated returns every record in child whose declared foreign-key
// field equals parentID, in the child collection's insertion order.
//
// An undeclared (child, parent) pair is not an error: absence of a
// relationship is valid and yields an empty result.
func (r *Resolver) FindRelated(child, parent record.Collection, parentID string) []record.Record {
	field, ok := r.reg.RefField(child, parent)
	if !ok {
		return nil
	}

	var related []record.Record
	for _, rec := range r.store.All(child) {
		if ref, ok := rec.Ref(field); ok && ref == parentID {
			related = append(related, rec)
		}
	}
	return related
}
