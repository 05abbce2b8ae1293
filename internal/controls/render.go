package controls

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the file committed to the review branch.
type Document struct {
	Service  string            `yaml:"service"`
	Controls []SecurityControl `yaml:"controls"`
}

func RenderYAML(service string, list []SecurityControl) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Document{Service: service, Controls: list}); err != nil {
		return nil, fmt.Errorf("encode controls yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode controls yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func RenderMarkdown(service string, list []SecurityControl) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Security controls generated for **%s**.\n", service)
	controlPlane, dataPlane := ByPlane(list)
	writeSection := func(plane Plane, rows []SecurityControl) {
		if len(rows) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n### %s (%d)\n\n", plane.Label(), len(rows))
		b.WriteString("| ID | Name | Description | Mapping |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, c := range rows {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				markdownCell(c.ControlID),
				markdownCell(c.ControlName),
				markdownCell(c.ControlDescription),
				markdownCell(strings.Join(SplitMapping(c.Mapping), "<br>")))
		}
	}
	writeSection(ControlPlane, controlPlane)
	writeSection(DataPlane, dataPlane)
	b.WriteString("\nComment on this pull request to request changes; the next sync regenerates the list from your feedback.\n")
	return b.String()
}

func markdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", `\|`)
	return strings.Join(strings.Fields(value), " ")
}

var csvHeader = []string{"Control ID", "Control Name", "Control Description", "Plane", "Mapping"}

// WriteCSV writes control plane rows before data plane rows.
func WriteCSV(w io.Writer, list []SecurityControl) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	controlPlane, dataPlane := ByPlane(list)
	for _, c := range append(controlPlane, dataPlane...) {
		record := []string{c.ControlID, c.ControlName, c.ControlDescription, c.Plane.Label(), c.Mapping}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %s: %w", c.ControlID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func ExportFileName(service string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(service), "_") + "_Security_Controls.csv"
}

func TerraformFileName(service string) string {
	return strings.ToLower(whitespaceRe.ReplaceAllString(strings.TrimSpace(service), "_")) + ".tf"
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug is the path-safe form of a service name used for branches and files.
func Slug(service string) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(service), "-"), "-")
	if slug == "" {
		return "service"
	}
	return slug
}
