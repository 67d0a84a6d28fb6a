package documents

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrUnresolvedReference means a relational id had no document counterpart. It signals that users
// were not fully projected before posts and must abort the run.
var ErrUnresolvedReference = errors.New("unresolved reference")

// IDMap maps relational users.id to the ObjectID of the projected user document.
type IDMap struct {
	ids map[int64]primitive.ObjectID
}

func NewIDMap() *IDMap {
	return &IDMap{ids: make(map[int64]primitive.ObjectID)}
}

// Add fails if sqlID is already mapped.
func (m *IDMap) Add(sqlID int64, id primitive.ObjectID) error {
	if _, ok := m.ids[sqlID]; ok {
		return fmt.Errorf("user %d already mapped", sqlID)
	}
	m.ids[sqlID] = id
	return nil
}

func (m *IDMap) Len() int { return len(m.ids) }

// Resolve returns the document id for a relational user id. what names the referencing field for
// the error message, e.g. "post 12 author".
func (m *IDMap) Resolve(sqlID int64, what string) (primitive.ObjectID, error) {
	id, ok := m.ids[sqlID]
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("%w: %s references user %d", ErrUnresolvedReference, what, sqlID)
	}
	return id, nil
}

// ResolveAll keeps the input order.
func (m *IDMap) ResolveAll(sqlIDs []int64, what string) ([]primitive.ObjectID, error) {
	out := make([]primitive.ObjectID, 0, len(sqlIDs))
	for _, sqlID := range sqlIDs {
		id, err := m.Resolve(sqlID, what)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}
