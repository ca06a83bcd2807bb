package assets

import (
	"bytes"
	"encoding/json"
	"io/fs"
	"testing"
)

func TestTemplatesFSCarriesReportTemplate(t *testing.T) {
	data, err := fs.ReadFile(GetTemplatesFS(), "report/report.html.hbs")
	if err != nil {
		t.Fatalf("read report template: %v", err)
	}
	for _, marker := range []string{"{{#each FileGroups}}", "{{#each Findings}}"} {
		if !bytes.Contains(data, []byte(marker)) {
			t.Errorf("report template missing %s", marker)
		}
	}
}

func TestSchemasFSCarriesNotebookSchema(t *testing.T) {
	data, err := fs.ReadFile(GetSchemasFS(), "notebook/v1.0.0/notebook-document.json")
	if err != nil {
		t.Fatalf("read notebook schema: %v", err)
	}
	if len(data) == 0 {
		t.Error("notebook schema is empty")
	}
}

func TestNotebookSchema(t *testing.T) {
	data, ok := NotebookSchema()
	if !ok {
		t.Fatal("notebook schema not embedded")
	}
	if !json.Valid(data) {
		t.Fatal("notebook schema is not valid JSON")
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	if _, ok := doc["$schema"]; !ok {
		t.Error("schema missing $schema declaration")
	}
	required, ok := doc["required"].([]interface{})
	if !ok || len(required) == 0 || required[0] != "cells" {
		t.Errorf("schema should require cells, got %v", doc["required"])
	}
}

func TestReportTemplate(t *testing.T) {
	data, ok := ReportTemplate()
	if !ok {
		t.Fatal("report template not embedded")
	}
	if !bytes.Contains(data, []byte("<!DOCTYPE html>")) {
		t.Error("report template should be an HTML document")
	}
}

func TestGetEmbeddedAsset(t *testing.T) {
	known := []string{
		"embedded_schemas/notebook/v1.0.0/notebook-document.json",
		"embedded_templates/report/report.html.hbs",
	}
	for _, path := range known {
		data, err := GetEmbeddedAsset(path)
		if err != nil {
			t.Errorf("GetEmbeddedAsset(%q): %v", path, err)
		}
		if len(data) == 0 {
			t.Errorf("GetEmbeddedAsset(%q) returned empty data", path)
		}
	}

	if _, err := GetEmbeddedAsset("nonexistent/file.txt"); err == nil {
		t.Error("expected error for unknown asset path")
	}
}

func TestRegistryPathsResolve(t *testing.T) {
	if len(Registry) == 0 {
		t.Fatal("Registry is empty")
	}
	for _, info := range Registry {
		if info.Family == "" {
			t.Errorf("asset %q has empty family", info.Path)
		}
		if info.Version == "" {
			t.Errorf("asset %q has empty version", info.Path)
		}
		if _, err := GetEmbeddedAsset(info.Path); err != nil {
			t.Errorf("registry references non-embedded path %q", info.Path)
		}
	}
}
