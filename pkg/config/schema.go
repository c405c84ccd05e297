package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ErrSchemaViolation is returned when a config file does not match the schema.
var ErrSchemaViolation = errors.New("config file does not match schema")

//go:embed schema.json
var schemaJSON string

// Schema returns the JSON schema config files are validated against.
func Schema() string {
	return schemaJSON
}

// ValidateFile checks a YAML config file against the embedded schema, catching
// misspelled keys that viper would otherwise ignore.
func ValidateFile(path string) error {
	//nolint:gosec // path comes from the user's own --config flag or search path.
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	return ValidateDocument(content)
}

// ValidateDocument checks YAML (or JSON) content against the embedded schema.
func ValidateDocument(content []byte) error {
	var document map[string]any

	err := yaml.Unmarshal(content, &document)
	if err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}

	if document == nil {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return fmt.Errorf("validate config file: %w", err)
	}

	if result.Valid() {
		return nil
	}

	issues := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		issues = append(issues, desc.String())
	}

	return fmt.Errorf("%w: %s", ErrSchemaViolation, strings.Join(issues, "; "))
}
