package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// ErrAlreadyInSet is returned when a member is added twice to a MemberSet.
var ErrAlreadyInSet = errors.New("member already in set")

// MemberSet is an unordered set of member ids used by the ready-check and
// appeal coordination steps. The zero value is an empty set.
type MemberSet struct {
	ids map[uuid.UUID]struct{}
}

// NewMemberSet returns a set holding ids.
func NewMemberSet(ids ...uuid.UUID) MemberSet {
	s := MemberSet{ids: make(map[uuid.UUID]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Add inserts id, failing with ErrAlreadyInSet if it is present.
func (s *MemberSet) Add(id uuid.UUID) error {
	if s.ids == nil {
		s.ids = make(map[uuid.UUID]struct{})
	}
	if _, ok := s.ids[id]; ok {
		return ErrAlreadyInSet
	}
	s.ids[id] = struct{}{}
	return nil
}

func (s MemberSet) Has(id uuid.UUID) bool {
	_, ok := s.ids[id]
	return ok
}

func (s MemberSet) Len() int {
	return len(s.ids)
}

// Clear empties the set.
func (s *MemberSet) Clear() {
	s.ids = nil
}

// CoversAll reports whether every id in members is in the set.
func (s MemberSet) CoversAll(members []uuid.UUID) bool {
	for _, id := range members {
		if !s.Has(id) {
			return false
		}
	}
	return true
}

// Missing returns the ids of members not in the set, in input order.
func (s MemberSet) Missing(members []uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for _, id := range members {
		if !s.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

// IDs returns the members sorted by their string form.
func (s MemberSet) IDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// Clone returns an independent copy.
func (s MemberSet) Clone() MemberSet {
	return NewMemberSet(s.IDs()...)
}

func (s MemberSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

func (s *MemberSet) UnmarshalJSON(data []byte) error {
	var ids []uuid.UUID
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewMemberSet(ids...)
	return nil
}

// Value implements driver.Valuer (stored as JSONB).
func (s MemberSet) Value() (driver.Value, error) {
	return s.MarshalJSON()
}

// Scan implements sql.Scanner.
func (s *MemberSet) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("scan member set: %w", err)
	}
	if len(data) == 0 {
		*s = MemberSet{}
		return nil
	}
	return s.UnmarshalJSON(data)
}

// TurnOrder is the configured nomination sequence of a session.
type TurnOrder []uuid.UUID

// IndexOf returns the position of id or -1.
func (t TurnOrder) IndexOf(id uuid.UUID) int {
	for i, m := range t {
		if m == id {
			return i
		}
	}
	return -1
}

// IsPermutationOf reports whether t holds exactly the ids in members, once each.
func (t TurnOrder) IsPermutationOf(members []uuid.UUID) bool {
	if len(t) != len(members) {
		return false
	}
	seen := NewMemberSet()
	for _, id := range t {
		if err := seen.Add(id); err != nil {
			return false
		}
	}
	return seen.CoversAll(members)
}

func (t TurnOrder) Value() (driver.Value, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]uuid.UUID(t))
}

func (t *TurnOrder) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("scan turn order: %w", err)
	}
	if len(data) == 0 {
		*t = nil
		return nil
	}
	return json.Unmarshal(data, (*[]uuid.UUID)(t))
}
