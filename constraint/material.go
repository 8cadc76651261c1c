package constraint

import (
	"math"

	"github.com/pkg/errors"
)

// Compliance of common materials, inverse stiffness in m/N.
const (
	ConcreteCompliance = 0.04e-9
	WoodCompliance     = 0.16e-9
	LeatherCompliance  = 14e-8
	TendonCompliance   = 0.2e-7
	RubberCompliance   = 1e-6
	MuscleCompliance   = 0.2e-3
	FatCompliance      = 1e-3

	StiffCompliance = ConcreteCompliance
)

// Unknown is the id of materials and object types missing from a table.
const Unknown = -1

// Material describes the surface of one body.
type Material struct {
	Name            string
	StaticFriction  float64
	DynamicFriction float64
	Restitution     float64 // 0 = no rebound, 1 = perfect restitution
	Compliance      float64
	// Soft materials get contacts generated in a wider band.
	Soft bool
}

// Surface holds the contact parameters of a pair of bodies.
type Surface struct {
	StaticFriction  float64
	DynamicFriction float64
	Restitution     float64
	Compliance      float64
	Soft            bool
}

func MixRestitution(a, b Material) float64 {
	return (a.Restitution + b.Restitution) / 2.0
}

func MixStaticFriction(a, b Material) float64 {
	return math.Sqrt(a.StaticFriction * b.StaticFriction)
}

func MixDynamicFriction(a, b Material) float64 {
	return math.Sqrt(a.DynamicFriction * b.DynamicFriction)
}

// MixCompliance treats the two surfaces as springs in series.
func MixCompliance(a, b Material) float64 {
	return a.Compliance + b.Compliance
}

// Mix derives a pair surface from two materials.
func Mix(a, b Material) Surface {
	return Surface{
		StaticFriction:  MixStaticFriction(a, b),
		DynamicFriction: MixDynamicFriction(a, b),
		Restitution:     MixRestitution(a, b),
		Compliance:      MixCompliance(a, b),
		Soft:            a.Soft || b.Soft,
	}
}

type idPair struct {
	a, b int
}

func makeIDPair(a, b int) idPair {
	if b < a {
		a, b = b, a
	}
	return idPair{a, b}
}

// MaterialTable resolves the surface of a body pair from their material and
// object-type ids. Object-type pairs take precedence over material pairs,
// which take precedence over mixing the two materials.
type MaterialTable struct {
	materials *DataMap
	types     *DataMap
	props     []Material

	pairs     map[idPair]Surface
	typePairs map[idPair]Surface

	// Default applies when either material is unknown.
	Default Surface
}

func NewMaterialTable() *MaterialTable {
	return &MaterialTable{
		materials: NewDataMap(),
		types:     NewDataMap(),
		pairs:     make(map[idPair]Surface),
		typePairs: make(map[idPair]Surface),
		Default:   Surface{StaticFriction: 0.5, DynamicFriction: 0.4, Compliance: StiffCompliance},
	}
}

// AddMaterial declares or redefines a material.
func (t *MaterialTable) AddMaterial(m Material) (int, error) {
	id, err := t.materials.Intern(m.Name)
	if err != nil {
		return Unknown, err
	}
	if t.materials.Frozen() {
		return Unknown, errors.Wrapf(ErrFrozen, "material %q", m.Name)
	}

	for len(t.props) <= id {
		t.props = append(t.props, Material{})
	}
	t.props[id] = m

	return id, nil
}

// AddObjectType declares an object type.
func (t *MaterialTable) AddObjectType(name string) (int, error) {
	return t.types.Intern(name)
}

// SetPair overrides the surface between two materials.
func (t *MaterialTable) SetPair(a, b string, s Surface) error {
	if t.materials.Frozen() {
		return errors.Wrapf(ErrFrozen, "pair %q-%q", a, b)
	}
	idA, err := t.materials.Intern(a)
	if err != nil {
		return err
	}
	idB, err := t.materials.Intern(b)
	if err != nil {
		return err
	}
	t.pairs[makeIDPair(idA, idB)] = s

	return nil
}

// SetTypePair overrides the surface between two object types.
func (t *MaterialTable) SetTypePair(a, b string, s Surface) error {
	if t.types.Frozen() {
		return errors.Wrapf(ErrFrozen, "type pair %q-%q", a, b)
	}
	idA, err := t.types.Intern(a)
	if err != nil {
		return err
	}
	idB, err := t.types.Intern(b)
	if err != nil {
		return err
	}
	t.typePairs[makeIDPair(idA, idB)] = s

	return nil
}

// Freeze makes the table read-only.
func (t *MaterialTable) Freeze() {
	t.materials.Freeze()
	t.types.Freeze()
}

func (t *MaterialTable) MaterialID(name string) int {
	if id, ok := t.materials.ID(name); ok {
		return id
	}
	return Unknown
}

func (t *MaterialTable) TypeID(name string) int {
	if id, ok := t.types.ID(name); ok {
		return id
	}
	return Unknown
}

// Material returns the declared properties of a material id.
func (t *MaterialTable) Material(id int) (Material, bool) {
	if id < 0 || id >= len(t.props) || t.props[id].Name == "" {
		return Material{}, false
	}
	return t.props[id], true
}

// Soft reports whether contacts with the material use the soft layer.
func (t *MaterialTable) Soft(id int) bool {
	m, ok := t.Material(id)
	return ok && m.Soft
}

// Lookup returns the surface between two bodies.
func (t *MaterialTable) Lookup(matA, matB, typeA, typeB int) Surface {
	if typeA != Unknown && typeB != Unknown {
		if s, ok := t.typePairs[makeIDPair(typeA, typeB)]; ok {
			return s
		}
	}
	if matA != Unknown && matB != Unknown {
		if s, ok := t.pairs[makeIDPair(matA, matB)]; ok {
			return s
		}
	}

	a, okA := t.Material(matA)
	b, okB := t.Material(matB)
	if !okA || !okB {
		s := t.Default
		s.Soft = s.Soft || (okA && a.Soft) || (okB && b.Soft)
		return s
	}

	return Mix(a, b)
}
