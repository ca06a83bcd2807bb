package assets

import (
	"embed"
	"io/fs"
)

// Curated assets compiled into the binary so report rendering and notebook
// validation work without any files on disk.

//go:embed embedded_schemas
var Schemas embed.FS

//go:embed embedded_templates
var Templates embed.FS

const (
	notebookSchemaPath = "embedded_schemas/notebook/v1.0.0/notebook-document.json"
	reportTemplatePath = "embedded_templates/report/report.html.hbs"
)

// NotebookSchema returns the structural JSON Schema for notebook documents.
func NotebookSchema() ([]byte, bool) {
	data, err := Schemas.ReadFile(notebookSchemaPath)
	return data, err == nil
}

// ReportTemplate returns the default Handlebars template for HTML reports.
func ReportTemplate() ([]byte, bool) {
	data, err := Templates.ReadFile(reportTemplatePath)
	return data, err == nil
}

func GetSchemasFS() fs.FS {
	if sub, err := fs.Sub(Schemas, "embedded_schemas"); err == nil {
		return sub
	}
	return Schemas
}

func GetTemplatesFS() fs.FS {
	if sub, err := fs.Sub(Templates, "embedded_templates"); err == nil {
		return sub
	}
	return Templates
}

// GetEmbeddedAsset retrieves an embedded asset by its full embed path.
func GetEmbeddedAsset(path string) ([]byte, error) {
	if data, err := Schemas.ReadFile(path); err == nil {
		return data, nil
	}
	if data, err := Templates.ReadFile(path); err == nil {
		return data, nil
	}
	return nil, fs.ErrNotExist
}
