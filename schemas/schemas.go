// Package schemas embeds the JSON Schemas used to validate study files.
package schemas

import _ "embed"

// StudySchemaJSON is the JSON Schema for study YAML files.
//
//go:embed study.schema.json
var StudySchemaJSON string
