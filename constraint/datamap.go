package constraint

import (
	"github.com/pkg/errors"
)

var ErrFrozen = errors.New("constraint: table is frozen")

// DataMap interns names into small dense ids. Once frozen it is read-only
// and may be shared between simulators.
type DataMap struct {
	ids    map[string]int
	names  []string
	frozen bool
}

func NewDataMap(names ...string) *DataMap {
	m := &DataMap{ids: make(map[string]int)}
	for _, name := range names {
		_, _ = m.Intern(name)
	}
	return m
}

// Intern returns the id of name, assigning the next id to unknown names.
func (m *DataMap) Intern(name string) (int, error) {
	if id, ok := m.ids[name]; ok {
		return id, nil
	}
	if m.frozen {
		return -1, errors.Wrapf(ErrFrozen, "intern %q", name)
	}

	id := len(m.names)
	m.ids[name] = id
	m.names = append(m.names, name)

	return id, nil
}

// ID returns the id of name and whether it is known.
func (m *DataMap) ID(name string) (int, bool) {
	id, ok := m.ids[name]
	return id, ok
}

func (m *DataMap) Name(id int) string {
	if id < 0 || id >= len(m.names) {
		return ""
	}
	return m.names[id]
}

func (m *DataMap) Len() int {
	return len(m.names)
}

func (m *DataMap) Freeze() {
	m.frozen = true
}

func (m *DataMap) Frozen() bool {
	return m.frozen
}
