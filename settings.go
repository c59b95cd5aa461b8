package atmosphere

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorkgroupSize is the compute workgroup edge length every sky shader declares.
const WorkgroupSize = 8

const DefaultResolution = 512

// AtmosphereSettings controls the sky cubemap. Insert it into the main world
// to override the plugin's settings; remove it to go back to the defaults.
type AtmosphereSettings struct {
	// Resolution is the edge length of each cube face. Keep it a multiple of 8.
	Resolution uint32 `yaml:"resolution"`
	// Dithering adds noise in the skybox shader to hide banding.
	Dithering bool `yaml:"dithering"`
}

func DefaultAtmosphereSettings() AtmosphereSettings {
	return AtmosphereSettings{
		Resolution: DefaultResolution,
		Dithering:  true,
	}
}

func (s AtmosphereSettings) Validate() error {
	if s.Resolution == 0 {
		return errors.New("atmosphere resolution must be positive")
	}
	return nil
}

// AlignedToWorkgroup reports whether the resolution divides evenly into workgroups.
func (s AtmosphereSettings) AlignedToWorkgroup() bool {
	return s.Resolution%WorkgroupSize == 0
}

// ParseSettings decodes YAML on top of the defaults, so omitted keys keep their default values.
func ParseSettings(data []byte) (AtmosphereSettings, error) {
	settings := DefaultAtmosphereSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return AtmosphereSettings{}, fmt.Errorf("parse atmosphere settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return AtmosphereSettings{}, err
	}
	return settings, nil
}

func LoadSettingsFile(path string) (AtmosphereSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AtmosphereSettings{}, fmt.Errorf("read atmosphere settings: %w", err)
	}
	return ParseSettings(data)
}
