package model

import (
	"github.com/phantien133/active-aggregate/internal/criteria"
	"github.com/phantien133/active-aggregate/internal/ir"
)

// Model is a named binding to a collection. It is the criteria factory for
// relations built against it.
type Model struct {
	name string
	coll Collection
}

// New binds name to coll.
func New(name string, coll Collection) *Model {
	return &Model{name: name, coll: coll}
}

func (m *Model) Name() string { return m.name }

func (m *Model) Collection() Collection { return m.coll }

// All returns the criteria matching every document of the model.
func (m *Model) All() *criteria.Criteria { return criteria.All() }

func (m *Model) Where(cond ir.Doc) *criteria.Criteria { return criteria.Where(cond) }

func (m *Model) In(field string, values ...any) *criteria.Criteria {
	return criteria.All().In(field, values...)
}

func (m *Model) AnyOf(conds ...ir.Doc) *criteria.Criteria { return criteria.All().AnyOf(conds...) }

func (m *Model) AllOf(conds ...ir.Doc) *criteria.Criteria { return criteria.All().AllOf(conds...) }
