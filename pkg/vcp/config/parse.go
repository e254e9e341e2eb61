package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// ParseSources parses config sources. A string names a file or a
// directory; files ending in .json are read as JSON and everything else as
// HCL. Directories contribute their .hcl, .vcl and .json files in name
// order. A []byte is parsed as HCL.
func ParseSources(sources ...any) ([]hcl.Body, hcl.Diagnostics) {
	parser := hclparse.NewParser()
	var diags hcl.Diagnostics
	var bodies []hcl.Body

	for _, source := range sources {
		switch v := source.(type) {
		case string:
			info, err := os.Stat(v)
			if err != nil {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Failed to read configuration",
					Detail:   fmt.Sprintf("Error reading %s: %s", v, err),
				})
				continue
			}

			if info.IsDir() {
				newBodies, newDiags := parseDirectory(parser, v)
				diags = diags.Extend(newDiags)
				bodies = append(bodies, newBodies...)
				continue
			}

			body, parseDiags := parseFile(parser, v)
			diags = diags.Extend(parseDiags)
			if body != nil {
				bodies = append(bodies, body)
			}
		case []byte:
			file, parseDiags := parser.ParseHCL(v, fmt.Sprintf("<bytes@%p>", v))
			diags = diags.Extend(parseDiags)
			if file != nil {
				bodies = append(bodies, file.Body)
			}
		default:
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid source type",
				Detail:   fmt.Sprintf("Invalid source type: %T", v),
			})
		}
	}

	return bodies, diags
}

func parseFile(parser *hclparse.Parser, path string) (hcl.Body, hcl.Diagnostics) {
	var file *hcl.File
	var diags hcl.Diagnostics

	if strings.EqualFold(filepath.Ext(path), ".json") {
		file, diags = parser.ParseJSONFile(path)
	} else {
		file, diags = parser.ParseHCLFile(path)
	}

	if file == nil {
		return nil, diags
	}
	return file.Body, diags
}

func parseDirectory(parser *hclparse.Parser, dir string) ([]hcl.Body, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	var bodies []hcl.Body

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Failed to read directory",
			Detail:   fmt.Sprintf("Error reading directory %s: %s", dir, err),
		})
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".hcl", ".vcl", ".json":
			body, parseDiags := parseFile(parser, filepath.Join(dir, entry.Name()))
			diags = diags.Extend(parseDiags)
			if body != nil {
				bodies = append(bodies, body)
			}
		}
	}

	return bodies, diags
}
