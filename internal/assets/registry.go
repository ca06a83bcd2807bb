package assets

// Registry lists embedded assets available at runtime.
// Update this when adding/removing curated assets.

type AssetInfo struct {
	Family  string // e.g., schema, template
	Version string // e.g., v1.0.0
	Path    string // embed path
	Source  string // provenance URL; empty for first-party assets
}

var Registry = []AssetInfo{
	{
		Family:  "schema",
		Version: "v1.0.0",
		Path:    "embedded_schemas/notebook/v1.0.0/notebook-document.json",
		Source:  "https://nbformat.readthedocs.io/en/latest/format_description.html",
	},
	{
		Family:  "template",
		Version: "v1.0.0",
		Path:    "embedded_templates/report/report.html.hbs",
	},
}
