// Package main generates the combined OpenAPI 3.0 document for doppel's
// HTTP surface. Components register their specs at import time; this
// tool collects them, reflects response schemas from the registered Go
// types, and writes one YAML file.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	// Registers the variation-api OpenAPI spec via init.
	_ "github.com/c360studio/doppel/processor/variation-api"

	"github.com/c360studio/semstreams/service"
	"gopkg.in/yaml.v3"
)

func main() {
	out := flag.String("o", "./specs/openapi.v3.yaml", "Output path for OpenAPI spec")
	flag.Parse()

	specs := service.GetAllOpenAPISpecs()
	log.Printf("Assembling OpenAPI document from %d service specs", len(specs))
	for _, name := range sortedKeys(specs) {
		log.Printf("  spec: %s", name)
	}

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Fatalf("create output directory: %v", err)
	}
	if err := writeYAML(*out, assemble(specs)); err != nil {
		log.Fatalf("write OpenAPI document: %v", err)
	}
	log.Printf("Wrote %s", *out)
}

// The document types mirror the OpenAPI 3.0 layout; only what doppel's
// surface needs is modeled.
type document struct {
	OpenAPI    string              `yaml:"openapi"`
	Info       info                `yaml:"info"`
	Servers    []server            `yaml:"servers"`
	Paths      map[string]pathItem `yaml:"paths"`
	Components components          `yaml:"components"`
	Tags       []tag               `yaml:"tags"`
}

type info struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
}

type server struct {
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
}

type components struct {
	Schemas map[string]any `yaml:"schemas"`
}

type tag struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type pathItem struct {
	Get    *operation `yaml:"get,omitempty"`
	Post   *operation `yaml:"post,omitempty"`
	Put    *operation `yaml:"put,omitempty"`
	Delete *operation `yaml:"delete,omitempty"`
}

type operation struct {
	Summary     string              `yaml:"summary"`
	Description string              `yaml:"description,omitempty"`
	Tags        []string            `yaml:"tags,omitempty"`
	Parameters  []parameter         `yaml:"parameters,omitempty"`
	Responses   map[string]response `yaml:"responses"`
}

type parameter struct {
	Name        string    `yaml:"name"`
	In          string    `yaml:"in"`
	Required    bool      `yaml:"required,omitempty"`
	Description string    `yaml:"description,omitempty"`
	Schema      schemaRef `yaml:"schema"`
}

type response struct {
	Description string               `yaml:"description"`
	Content     map[string]mediaType `yaml:"content,omitempty"`
}

type mediaType struct {
	Schema schemaRef `yaml:"schema"`
}

type schemaRef struct {
	Ref   string     `yaml:"$ref,omitempty"`
	Type  string     `yaml:"type,omitempty"`
	Items *schemaRef `yaml:"items,omitempty"`
}

func assemble(specs map[string]*service.OpenAPISpec) document {
	return document{
		OpenAPI: "3.0.3",
		Info: info{
			Title:       "Doppel API",
			Description: "HTTP API for the identity variation service - name, date of birth, and address synthesis with rule catalog, health, and metrics endpoints",
			Version:     "0.1.0",
		},
		Servers: []server{
			{URL: "http://localhost:8080", Description: "Local development"},
		},
		Paths:      assemblePaths(specs),
		Components: components{Schemas: assembleSchemas(specs)},
		Tags:       assembleTags(specs),
	}
}

func assemblePaths(specs map[string]*service.OpenAPISpec) map[string]pathItem {
	items := make(map[string]pathItem)
	for _, name := range sortedKeys(specs) {
		for path, ps := range specs[name].Paths {
			items[path] = pathItem{
				Get:    convertOperation(ps.GET),
				Post:   convertOperation(ps.POST),
				Put:    convertOperation(ps.PUT),
				Delete: convertOperation(ps.DELETE),
			}
		}
	}
	return items
}

func convertOperation(op *service.OperationSpec) *operation {
	if op == nil {
		return nil
	}
	out := &operation{
		Summary:     op.Summary,
		Description: op.Description,
		Tags:        op.Tags,
		Responses:   make(map[string]response),
	}

	for _, p := range op.Parameters {
		out.Parameters = append(out.Parameters, parameter{
			Name:        p.Name,
			In:          p.In,
			Required:    p.Required,
			Description: p.Description,
			Schema:      schemaRef{Type: p.Schema.Type},
		})
	}

	for code, r := range op.Responses {
		out.Responses[code] = convertResponse(r)
	}
	return out
}

func convertResponse(r service.ResponseSpec) response {
	out := response{Description: r.Description}

	switch {
	case r.SchemaRef != "":
		contentType := r.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		ref := schemaRef{Ref: r.SchemaRef}
		if r.IsArray {
			ref = schemaRef{Type: "array", Items: &schemaRef{Ref: r.SchemaRef}}
		}
		out.Content = map[string]mediaType{contentType: {Schema: ref}}

	case r.ContentType != "":
		// No schema registered. Prometheus text and other text bodies
		// document as plain strings.
		schemaType := "object"
		if strings.HasPrefix(r.ContentType, "text/") {
			schemaType = "string"
		}
		out.Content = map[string]mediaType{
			r.ContentType: {Schema: schemaRef{Type: schemaType}},
		}
	}
	return out
}

func assembleTags(specs map[string]*service.OpenAPISpec) []tag {
	byName := make(map[string]tag)
	for _, sp := range specs {
		for _, t := range sp.Tags {
			if _, ok := byName[t.Name]; !ok {
				byName[t.Name] = tag{Name: t.Name, Description: t.Description}
			}
		}
	}
	out := make([]tag, 0, len(byName))
	for _, name := range sortedKeys(byName) {
		out = append(out, byName[name])
	}
	return out
}

// assembleSchemas reflects a JSON schema for every registered response
// type, deduplicated across services.
func assembleSchemas(specs map[string]*service.OpenAPISpec) map[string]any {
	out := map[string]any{}
	seen := map[reflect.Type]bool{}

	for _, name := range sortedKeys(specs) {
		for _, t := range specs[name].ResponseTypes {
			if seen[t] {
				continue
			}
			seen[t] = true
			out[schemaName(t)] = reflectSchema(t)
		}
	}
	return out
}

// scalar returns a fresh single-type schema. Fresh because callers
// attach descriptions to the returned map.
func scalar(typ string) map[string]any {
	return map[string]any{"type": typ}
}

func reflectSchema(t reflect.Type) map[string]any {
	switch t.Kind() {
	case reflect.Ptr:
		schema := reflectSchema(t.Elem())
		schema["nullable"] = true
		return schema
	case reflect.String:
		return scalar("string")
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return scalar("integer")
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		schema := scalar("integer")
		schema["minimum"] = 0
		return schema
	case reflect.Float32, reflect.Float64:
		return scalar("number")
	case reflect.Bool:
		return scalar("boolean")
	case reflect.Struct:
		if t == reflect.TypeOf(time.Time{}) {
			schema := scalar("string")
			schema["format"] = "date-time"
			return schema
		}
		return structSchema(t)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			schema := scalar("string")
			schema["format"] = "byte"
			return schema
		}
		schema := scalar("array")
		schema["items"] = reflectSchema(t.Elem())
		return schema
	case reflect.Map:
		schema := scalar("object")
		schema["additionalProperties"] = reflectSchema(t.Elem())
		return schema
	case reflect.Interface:
		return map[string]any{}
	default:
		return scalar("string")
	}
}

// structSchema renders a struct as an object schema. Fields without
// omitempty and without pointer indirection are listed as required.
func structSchema(t reflect.Type) map[string]any {
	props := map[string]any{}
	var req []string

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}

		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = f.Name
		}

		fieldSchema := reflectSchema(f.Type)
		if desc := f.Tag.Get("description"); desc != "" {
			fieldSchema["description"] = desc
		}
		props[name] = fieldSchema

		if !strings.Contains(opts, "omitempty") && f.Type.Kind() != reflect.Ptr {
			req = append(req, name)
		}
	}

	schema := scalar("object")
	schema["properties"] = props
	if len(req) > 0 {
		schema["required"] = req
	}
	return schema
}

func schemaName(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		return schemaName(t.Elem())
	}
	name := t.Name()
	if name == "" {
		name = t.String()
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeYAML(filename string, doc document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}

	header := []byte("# Doppel API, OpenAPI 3.0.\n# Generated by cmd/openapi-generator from the registered service specs; do not edit by hand.\n\n")

	if err := os.WriteFile(filename, append(header, data...), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return nil
}
