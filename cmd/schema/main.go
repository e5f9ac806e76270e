package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	server "ricochet/server"
	"ricochet/server/internal/sim"
)

// wireProtocol collects the message shapes exchanged with clients so a single
// schema document can validate both directions.
type wireProtocol struct {
	Command server.ClientCommand `json:"command"`
	State   worldState           `json:"state"`
}

// worldState mirrors the broadcast world-state document: each entity carries
// a kind discriminator plus its variant fields.
type worldState struct {
	TS       int64                 `json:"ts"`
	Entities map[string]wireEntity `json:"entities"`
}

type wireEntity struct {
	Kind     sim.EntityKind `json:"kind"`
	ID       string         `json:"id"`
	Owner    *string        `json:"owner,omitempty"`
	Health   *float64       `json:"health,omitempty"`
	Position sim.Vec2       `json:"position"`
	Velocity sim.Vec2       `json:"velocity"`
}

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema")
	flag.Parse()

	if outPath == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	schema := buildSchema()

	if err := writeSchema(outPath, schema); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(wireProtocol))
	schema.Title = "Ricochet Wire Protocol"
	schema.Description = "Validates command envelopes and broadcast world-state documents"
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}
	if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	return nil
}
