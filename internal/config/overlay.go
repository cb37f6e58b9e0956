// config/overlay.go
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type CodesFile struct {
	Codes map[string]string `yaml:"internship_code_map"`
}

// OverlayCodeMap merges codes from codesPath over cfg's code map.
func OverlayCodeMap(cfg *Config, codesPath string) error {
	b, err := os.ReadFile(codesPath)
	if err != nil {
		// Missing codes file should not kill startup
		return nil
	}

	var cf CodesFile
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return err
	}

	if len(cf.Codes) == 0 {
		return nil
	}
	if cfg.Intake.CodeMap == nil {
		cfg.Intake.CodeMap = make(map[string]string, len(cf.Codes))
	}
	for code, label := range cf.Codes {
		cfg.Intake.CodeMap[code] = label
	}
	return nil
}
