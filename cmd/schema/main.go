// Command schema writes JSON schema of newsclass configuration,
// used by go:generate in pkg/config.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/umputun/newsclass/pkg/config"
)

func main() {
	outputPath := "schema.json"
	if len(os.Args) > 1 {
		outputPath = os.Args[1]
	}

	schema, err := config.GenerateSchema()
	if err != nil {
		log.Fatalf("failed to generate schema: %v", err)
	}
	schema.Title = "newsclass configuration"
	schema.Description = "Feeds, classifier, store and report settings of a newsclass run"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		log.Fatalf("failed to marshal schema: %v", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(outputPath, data, 0o644); err != nil { //nolint:gosec // schema file is not sensitive
		log.Fatalf("failed to write schema file %s: %v", outputPath, err)
	}
	fmt.Printf("schema for %d config sections written to %s\n", countSections(data), outputPath)
}

// countSections returns number of top-level config properties in the generated schema
func countSections(data []byte) int {
	var doc struct {
		Defs map[string]struct {
			Properties map[string]json.RawMessage `json:"properties"`
		} `json:"$defs"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0
	}
	return len(doc.Defs["Config"].Properties)
}
