package keel

import (
	"os"

	"github.com/akmonengine/keel/constraint"
	"github.com/akmonengine/keel/contact"
	"github.com/akmonengine/keel/solver"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultWorkers = 1

// MaterialConfig declares a surface material.
type MaterialConfig struct {
	Name            string  `yaml:"name"`
	StaticFriction  float64 `yaml:"static_friction"`
	DynamicFriction float64 `yaml:"dynamic_friction"`
	Restitution     float64 `yaml:"restitution"`
	Compliance      float64 `yaml:"compliance"`
	Soft            bool    `yaml:"soft"`
}

// SurfaceConfig overrides the surface of a material or object type pair.
type SurfaceConfig struct {
	A               string  `yaml:"a"`
	B               string  `yaml:"b"`
	StaticFriction  float64 `yaml:"static_friction"`
	DynamicFriction float64 `yaml:"dynamic_friction"`
	Restitution     float64 `yaml:"restitution"`
	Compliance      float64 `yaml:"compliance"`
	Soft            bool    `yaml:"soft"`
}

func (s SurfaceConfig) surface() constraint.Surface {
	return constraint.Surface{
		StaticFriction:  s.StaticFriction,
		DynamicFriction: s.DynamicFriction,
		Restitution:     s.Restitution,
		Compliance:      s.Compliance,
		Soft:            s.Soft,
	}
}

// Config holds every tunable of a Simulator.
type Config struct {
	// ContactSurfaceLayer is the overlap contacts may keep before the solver pushes back.
	ContactSurfaceLayer float64 `yaml:"contact_surface_layer"`
	// MaxSepDistance is the contact-generation search radius.
	MaxSepDistance float64 `yaml:"max_sep_distance"`
	// SoftContactLayer widens the search radius for soft materials.
	SoftContactLayer float64 `yaml:"soft_contact_layer"`
	// MaxPenetration is the depth reference of contact points and the
	// overlap tolerated after a solver attempt.
	MaxPenetration float64 `yaml:"max_penetration"`

	MaxIterations        int             `yaml:"max_iterations"`
	StepMethod           solver.Method   `yaml:"step_method"`
	ContactClusteringAlg contact.Profile `yaml:"contact_clustering_alg"`

	MaxBisections    int  `yaml:"max_bisections"`
	// BadSolutionGrace is the number of attempts that must solve cleanly. A
	// bad solution may commit from the attempt after it.
	BadSolutionGrace int  `yaml:"bad_solution_grace"`
	FeedbackPoolSize int  `yaml:"feedback_pool_size"`
	CacheCollisions  bool `yaml:"cache_collisions"`

	Gravity     mgl64.Vec3 `yaml:"gravity"`
	WorldCFM    float64    `yaml:"world_cfm"`
	WorldERP    float64    `yaml:"world_erp"`
	MaxVelocity float64    `yaml:"max_velocity"`
	Workers     int        `yaml:"workers"`

	Materials     []MaterialConfig `yaml:"materials"`
	ObjectTypes   []string         `yaml:"object_types"`
	MaterialPairs []SurfaceConfig  `yaml:"material_pairs"`
	TypePairs     []SurfaceConfig  `yaml:"type_pairs"`
}

func DefaultConfig() Config {
	return Config{
		ContactSurfaceLayer:  0.0001,
		MaxSepDistance:       0.0005,
		SoftContactLayer:     0.0008,
		MaxPenetration:       0.0005,
		MaxIterations:        20,
		StepMethod:           solver.WorldStep,
		ContactClusteringAlg: contact.Box,
		MaxBisections:        10,
		BadSolutionGrace:     6,
		FeedbackPoolSize:     constraint.DefaultFeedbackPoolSize,
		CacheCollisions:      true,
		Gravity:              mgl64.Vec3{0, 0, -9.81},
		WorldCFM:             1e-7,
		WorldERP:             0.2,
		MaxVelocity:          1e4,
		Workers:              DefaultWorkers,
	}
}

// ParseConfig reads a YAML document over the defaults. An absent
// max_penetration follows max_sep_distance.
func ParseConfig(data []byte) (Config, error) {
	config := DefaultConfig()
	config.MaxPenetration = 0

	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, configError("parse config", errors.Wrap(ErrInvalidConfig, err.Error()))
	}
	if config.MaxPenetration == 0 {
		config.MaxPenetration = config.MaxSepDistance
	}

	return config, config.Validate()
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, configError("load config", errors.Wrapf(ErrInvalidConfig, "%s: %v", path, err))
	}
	return ParseConfig(data)
}

// Validate reports the first out-of-range option as a *ConfigError.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return configError("validate config", errors.Wrapf(ErrInvalidConfig, format, args...))
	}

	switch {
	case c.ContactSurfaceLayer < 0:
		return invalid("contact_surface_layer %g is negative", c.ContactSurfaceLayer)
	case c.MaxSepDistance < 0:
		return invalid("max_sep_distance %g is negative", c.MaxSepDistance)
	case c.SoftContactLayer < 0:
		return invalid("soft_contact_layer %g is negative", c.SoftContactLayer)
	case c.MaxPenetration <= 0:
		return invalid("max_penetration %g must be positive", c.MaxPenetration)
	case c.ContactSurfaceLayer >= c.MaxPenetration:
		return invalid("contact_surface_layer %g must stay below max_penetration %g", c.ContactSurfaceLayer, c.MaxPenetration)
	case c.MaxIterations < 1:
		return invalid("max_iterations %d must be at least 1", c.MaxIterations)
	case c.MaxBisections < 1:
		return invalid("max_bisections %d must be at least 1", c.MaxBisections)
	case c.BadSolutionGrace < 0:
		return invalid("bad_solution_grace %d is negative", c.BadSolutionGrace)
	case c.FeedbackPoolSize < 1:
		return invalid("feedback_pool_size %d must be at least 1", c.FeedbackPoolSize)
	case c.WorldCFM < 0:
		return invalid("world_cfm %g is negative", c.WorldCFM)
	case c.WorldERP <= 0 || c.WorldERP > 1:
		return invalid("world_erp %g outside (0, 1]", c.WorldERP)
	case c.MaxVelocity <= 0:
		return invalid("max_velocity %g must be positive", c.MaxVelocity)
	case c.Workers < 1:
		return invalid("workers %d must be at least 1", c.Workers)
	}

	return nil
}

// BuildMaterials compiles the declared materials, object types and pair
// overrides into a frozen table.
func (c Config) BuildMaterials() (*constraint.MaterialTable, error) {
	table := constraint.NewMaterialTable()

	for _, m := range c.Materials {
		_, err := table.AddMaterial(constraint.Material{
			Name:            m.Name,
			StaticFriction:  m.StaticFriction,
			DynamicFriction: m.DynamicFriction,
			Restitution:     m.Restitution,
			Compliance:      m.Compliance,
			Soft:            m.Soft,
		})
		if err != nil {
			return nil, configError("build materials", err)
		}
	}
	for _, name := range c.ObjectTypes {
		if _, err := table.AddObjectType(name); err != nil {
			return nil, configError("build materials", err)
		}
	}
	for _, p := range c.MaterialPairs {
		if table.MaterialID(p.A) == constraint.Unknown || table.MaterialID(p.B) == constraint.Unknown {
			return nil, configError("build materials", errors.Wrapf(ErrInvalidConfig, "material pair %q-%q names an undeclared material", p.A, p.B))
		}
		if err := table.SetPair(p.A, p.B, p.surface()); err != nil {
			return nil, configError("build materials", err)
		}
	}
	for _, p := range c.TypePairs {
		if table.TypeID(p.A) == constraint.Unknown || table.TypeID(p.B) == constraint.Unknown {
			return nil, configError("build materials", errors.Wrapf(ErrInvalidConfig, "type pair %q-%q names an undeclared object type", p.A, p.B))
		}
		if err := table.SetTypePair(p.A, p.B, p.surface()); err != nil {
			return nil, configError("build materials", err)
		}
	}
	table.Freeze()

	return table, nil
}

func (c Config) solverConfig() solver.Config {
	return solver.Config{
		Gravity:             c.Gravity,
		MaxIterations:       c.MaxIterations,
		CFM:                 c.WorldCFM,
		ERP:                 c.WorldERP,
		ContactSurfaceLayer: c.ContactSurfaceLayer,
		DepthBias:           c.MaxPenetration,
		MaxVelocity:         c.MaxVelocity,
	}
}
