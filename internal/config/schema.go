// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

package config

import "github.com/noriauth/nori/internal/schema"

// SchemaID is the $id of the configuration file schema.
const SchemaID = "https://nori.dev/schemas/config.schema.json"

var fileSchema = schema.Document{
	ID:          SchemaID,
	Title:       "nori configuration",
	Description: "Schema for nori YAML configuration files",
	Type:        &Config{},
}

var fileValidator = schema.NewValidator(fileSchema)

// GenerateSchema returns the JSON Schema for configuration files.
func GenerateSchema() ([]byte, error) {
	return schema.Generate(fileSchema)
}

// ValidateFile checks YAML configuration data against the schema.
func ValidateFile(data []byte) error {
	return fileValidator.ValidateYAML(data)
}
