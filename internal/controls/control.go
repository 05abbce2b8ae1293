package controls

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type Plane string

const (
	ControlPlane Plane = "CONTROL_PLANE"
	DataPlane    Plane = "DATA_PLANE"
)

// ParsePlane accepts both the canonical enum values and the labels the
// generator emits ("Control Plane", "Data Plane").
func ParsePlane(value string) (Plane, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	switch normalized {
	case string(ControlPlane):
		return ControlPlane, nil
	case string(DataPlane):
		return DataPlane, nil
	default:
		return "", fmt.Errorf("unknown plane %q", value)
	}
}

// Label returns the human form used in exports and pull request bodies.
func (p Plane) Label() string {
	switch p {
	case ControlPlane:
		return "Control Plane"
	case DataPlane:
		return "Data Plane"
	default:
		return string(p)
	}
}

func (p *Plane) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("plane must be a string: %w", err)
	}
	parsed, err := ParsePlane(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p *Plane) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParsePlane(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// SecurityControl is one row of a generated artifact.
type SecurityControl struct {
	ControlID          string `json:"controlId" yaml:"controlId"`
	ControlName        string `json:"controlName" yaml:"controlName"`
	ControlDescription string `json:"controlDescription" yaml:"controlDescription"`
	Mapping            string `json:"mapping" yaml:"mapping"`
	Plane              Plane  `json:"plane" yaml:"plane"`
}

// SplitMapping breaks a mapping string such as "CIS AWS v3.0 1.4; NIST Rev5 AC-2"
// into its individual references.
func SplitMapping(mapping string) []string {
	parts := strings.FieldsFunc(mapping, func(r rune) bool {
		return r == ',' || r == ';'
	})
	refs := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			refs = append(refs, trimmed)
		}
	}
	return refs
}

// ByPlane partitions an artifact, preserving order within each plane.
func ByPlane(list []SecurityControl) (controlPlane []SecurityControl, dataPlane []SecurityControl) {
	for _, c := range list {
		if c.Plane == DataPlane {
			dataPlane = append(dataPlane, c)
			continue
		}
		controlPlane = append(controlPlane, c)
	}
	return controlPlane, dataPlane
}

func Validate(list []SecurityControl) error {
	if len(list) == 0 {
		return fmt.Errorf("artifact has no controls")
	}
	seen := make(map[string]int, len(list))
	for i, c := range list {
		row := i + 1
		if strings.TrimSpace(c.ControlID) == "" {
			return fmt.Errorf("control %d: controlId is required", row)
		}
		if strings.TrimSpace(c.ControlName) == "" {
			return fmt.Errorf("control %s: controlName is required", c.ControlID)
		}
		if c.Plane != ControlPlane && c.Plane != DataPlane {
			return fmt.Errorf("control %s: unknown plane %q", c.ControlID, c.Plane)
		}
		if prev, ok := seen[c.ControlID]; ok {
			return fmt.Errorf("control %s: duplicate id (rows %d and %d)", c.ControlID, prev, row)
		}
		seen[c.ControlID] = row
	}
	return nil
}

// Clone returns a copy that does not share the backing array.
func Clone(list []SecurityControl) []SecurityControl {
	if list == nil {
		return nil
	}
	return append([]SecurityControl(nil), list...)
}
