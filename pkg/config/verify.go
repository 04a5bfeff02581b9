package config

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

//go:embed schema.json
var embeddedSchema string

// VerifyAgainstEmbeddedSchema validates the config against the embedded JSON schema
func VerifyAgainstEmbeddedSchema(cfg *Config) error {
	// parse schema
	var schema map[string]interface{}
	if err := json.Unmarshal([]byte(embeddedSchema), &schema); err != nil {
		return fmt.Errorf("parse embedded schema: %w", err)
	}

	// convert config to JSON for validation
	configData, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	var configMap map[string]interface{}
	if err := json.Unmarshal(configData, &configMap); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	// every top-level key of the config has to be known to the schema
	if err := checkKnownSections(schema, configMap); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// basic validation - check required fields match
	if err := validateRequiredFields(cfg); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// checkKnownSections makes sure the schema describes all config sections,
// catches a stale schema.json after Config changes
func checkKnownSections(schema, configMap map[string]interface{}) error {
	props, ok := schemaProperties(schema)
	if !ok {
		return fmt.Errorf("schema has no properties for Config")
	}
	for key := range configMap {
		if _, found := props[key]; !found {
			return fmt.Errorf("config section %q is missing in schema", key)
		}
	}
	return nil
}

// schemaProperties finds Config properties in the reflected schema, invopop puts
// them either at the root or under $defs/Config
func schemaProperties(schema map[string]interface{}) (map[string]interface{}, bool) {
	if props, ok := schema["properties"].(map[string]interface{}); ok {
		return props, true
	}
	defs, ok := schema["$defs"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	cfgDef, ok := defs["Config"].(map[string]interface{})
	if !ok {
		return nil, false
	}
	props, ok := cfgDef["properties"].(map[string]interface{})
	return props, ok
}

// validateRequiredFields performs basic validation of required fields
func validateRequiredFields(cfg *Config) error {
	if len(cfg.Feeds) == 0 {
		return fmt.Errorf("feeds are required")
	}
	if cfg.Classifier.Endpoint == "" {
		return fmt.Errorf("classifier.endpoint is required")
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if cfg.Report.Path == "" {
		return fmt.Errorf("report.path is required")
	}

	// check extraction config if enabled
	if cfg.Extraction.Enabled && cfg.Extraction.Timeout == 0 {
		return fmt.Errorf("extraction.timeout is required when extraction is enabled")
	}

	return nil
}

// GenerateSchema generates a JSON schema for the Config struct
func GenerateSchema() (*jsonschema.Schema, error) {
	return jsonschema.Reflect(&Config{}), nil
}
