// Package catalog loads achievement definitions and the level table from a
// YAML or TOML file. The files are read once at start; there is no reload.
package catalog

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gosimple/slug"
	"gopkg.in/yaml.v3"

	"github.com/alem-hub/progression-engine/internal/domain/progression"
	"github.com/alem-hub/progression-engine/internal/domain/shared"
)

//go:embed default.yaml
var defaultCatalog []byte

// Format is a catalog file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", shared.WrapError("catalog", "Load", shared.ErrInvalidConfig,
			fmt.Sprintf("unsupported catalog extension %q", filepath.Ext(path)), shared.ErrInvalidFormat)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// FILE SCHEMA
// ══════════════════════════════════════════════════════════════════════════════

type fileSpec struct {
	Levels       []levelSpec       `yaml:"levels" toml:"levels"`
	Achievements []achievementSpec `yaml:"achievements" toml:"achievements"`
}

type levelSpec struct {
	MinPoints int64 `yaml:"min_points" toml:"min_points"`
	Level     int   `yaml:"level" toml:"level"`
}

type achievementSpec struct {
	ID          string       `yaml:"id" toml:"id"`
	Name        string       `yaml:"name" toml:"name"`
	Description string       `yaml:"description" toml:"description"`
	Icon        string       `yaml:"icon" toml:"icon"`
	Points      int64        `yaml:"points" toml:"points"`
	Criteria    criteriaSpec `yaml:"criteria" toml:"criteria"`
}

type criteriaSpec struct {
	Type  string         `yaml:"type" toml:"type"`
	Event string         `yaml:"event" toml:"event"`
	Field string         `yaml:"field" toml:"field"`
	Min   float64        `yaml:"min" toml:"min"`
	Of    []criteriaSpec `yaml:"of" toml:"of"`
}

// ══════════════════════════════════════════════════════════════════════════════
// LOADING
// ══════════════════════════════════════════════════════════════════════════════

// Definitions is a validated catalog plus its level table.
type Definitions struct {
	Catalog *progression.Catalog
	Levels  *progression.LevelTable

	// Source names where the definitions came from.
	Source string
}

// Load reads the file at path. An empty path yields the embedded default.
func Load(path string) (*Definitions, error) {
	if path == "" {
		return Default()
	}

	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, shared.WrapError("catalog", "Load", shared.ErrInvalidConfig, "cannot read catalog file", err)
	}

	defs, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	defs.Source = path
	return defs, nil
}

// Default returns the embedded catalog.
func Default() (*Definitions, error) {
	defs, err := Parse(defaultCatalog, FormatYAML)
	if err != nil {
		return nil, err
	}
	defs.Source = "embedded"
	return defs, nil
}

// Parse decodes and validates catalog data.
// A file without levels gets progression.DefaultLevelTable.
func Parse(data []byte, format Format) (*Definitions, error) {
	var spec fileSpec
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return nil, decodeError(err)
		}
	case FormatTOML:
		if _, err := toml.Decode(string(data), &spec); err != nil {
			return nil, decodeError(err)
		}
	default:
		return nil, shared.WrapError("catalog", "Parse", shared.ErrInvalidConfig,
			fmt.Sprintf("unknown format %q", format), shared.ErrInvalidFormat)
	}

	return build(spec)
}

func decodeError(err error) error {
	return shared.WrapError("catalog", "Parse", shared.ErrInvalidConfig, "cannot decode catalog", err)
}

func build(spec fileSpec) (*Definitions, error) {
	levels := progression.DefaultLevelTable()
	if len(spec.Levels) > 0 {
		thresholds := make([]progression.LevelThreshold, 0, len(spec.Levels))
		for _, l := range spec.Levels {
			thresholds = append(thresholds, progression.LevelThreshold{
				MinPoints: shared.Points(l.MinPoints),
				Level:     shared.Level(l.Level),
			})
		}
		table, err := progression.NewLevelTable(thresholds)
		if err != nil {
			return nil, err
		}
		levels = table
	}

	defs := make([]progression.AchievementDefinition, 0, len(spec.Achievements))
	for _, a := range spec.Achievements {
		if !slug.IsSlug(a.ID) {
			return nil, shared.WrapError("catalog", "Parse", shared.ErrInvalidConfig,
				fmt.Sprintf("achievement ID %q is not a slug", a.ID), shared.ErrInvalidAchievementID)
		}
		criteria, err := buildCriteria(a.Criteria)
		if err != nil {
			return nil, shared.WrapError("catalog", "Parse", shared.ErrInvalidConfig, "achievement "+a.ID, err)
		}
		name := a.Name
		if name == "" {
			name = a.ID
		}
		defs = append(defs, progression.AchievementDefinition{
			ID:            a.ID,
			Name:          name,
			Description:   a.Description,
			Icon:          a.Icon,
			PointsAwarded: shared.Points(a.Points),
			Criteria:      criteria,
		})
	}

	catalog, err := progression.NewCatalog(defs...)
	if err != nil {
		return nil, err
	}

	return &Definitions{Catalog: catalog, Levels: levels}, nil
}

func buildCriteria(c criteriaSpec) (progression.Criteria, error) {
	switch strings.ToLower(c.Type) {
	case progression.KindEvent:
		return progression.EventCriteria{EventType: c.Event}, nil
	case progression.KindThreshold:
		return progression.ThresholdCriteria{EventType: c.Event, Field: c.Field, Min: c.Min}, nil
	case progression.KindPoints:
		if c.Min != math.Trunc(c.Min) {
			return nil, shared.Validation("catalog", "Parse", "points minimum %v must be a whole number", c.Min)
		}
		return progression.PointsCriteria{Min: shared.Points(c.Min)}, nil
	case progression.KindCount:
		if c.Min != math.Trunc(c.Min) {
			return nil, shared.Validation("catalog", "Parse", "count minimum %v must be a whole number", c.Min)
		}
		return progression.CountCriteria{Min: int(c.Min)}, nil
	case progression.KindAll:
		nested := make([]progression.Criteria, 0, len(c.Of))
		for _, n := range c.Of {
			built, err := buildCriteria(n)
			if err != nil {
				return nil, err
			}
			nested = append(nested, built)
		}
		return progression.AllCriteria{Of: nested}, nil
	case "":
		return nil, shared.Validation("catalog", "Parse", "criteria type is required")
	default:
		return nil, shared.Validation("catalog", "Parse", "unknown criteria type %q", c.Type)
	}
}
