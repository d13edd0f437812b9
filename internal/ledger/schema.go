package ledger

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
)

// Default locations probed when no explicit schema path is configured.
var defaultSchemaPaths = []string{
	"schema/stablecoin_events.json",
	"../schema/stablecoin_events.json",
}

// fieldType is the closed set of wire types the schema may declare.
type fieldType string

const (
	typePublicKey fieldType = "publicKey"
	typeU8        fieldType = "u8"
	typeU16       fieldType = "u16"
	typeU32       fieldType = "u32"
	typeU64       fieldType = "u64"
	typeU128      fieldType = "u128"
	typeI64       fieldType = "i64"
	typeBool      fieldType = "bool"
	typeString    fieldType = "string"
	typeBytes     fieldType = "bytes"
)

var fieldSizes = map[fieldType]int{
	typePublicKey: 32,
	typeU8:        1,
	typeU16:       2,
	typeU32:       4,
	typeU64:       8,
	typeU128:      16,
	typeI64:       8,
	typeBool:      1,
	// string and bytes are length-prefixed, handled separately
}

type schemaField struct {
	Name string    `json:"name"`
	Type fieldType `json:"type"`
}

type schemaEvent struct {
	Name   string        `json:"name"`
	Fields []schemaField `json:"fields"`
}

type schemaDoc struct {
	Name    string        `json:"name"`
	Version string        `json:"version"`
	Events  []schemaEvent `json:"events"`
}

// eventLayout is a schema event with its precomputed wire discriminator.
type eventLayout struct {
	name   string
	fields []schemaField
}

// Schema holds the event layouts keyed by their 8-byte discriminator. Loaded
// once at startup; decoding fails fast on events the schema does not name.
type Schema struct {
	name    string
	version string
	layouts map[[8]byte]eventLayout
}

// LoadSchema reads the event schema from the first readable path. An explicit
// path, when given, is tried first. Process startup must fail if no schema can
// be located: the decoder is useless without one.
func LoadSchema(explicitPath string) (*Schema, error) {
	paths := defaultSchemaPaths
	if explicitPath != "" {
		paths = append([]string{explicitPath}, paths...)
	}
	var lastErr error
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			lastErr = err
			continue
		}
		return ParseSchema(data)
	}
	return nil, fmt.Errorf("no event schema found in %v: %w", paths, lastErr)
}

// ParseSchema builds a Schema from a schema document. Unknown field types are
// rejected here so decoding never meets a type it cannot walk.
func ParseSchema(data []byte) (*Schema, error) {
	var doc schemaDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse event schema: %w", err)
	}
	if len(doc.Events) == 0 {
		return nil, fmt.Errorf("event schema %q declares no events", doc.Name)
	}

	s := &Schema{
		name:    doc.Name,
		version: doc.Version,
		layouts: make(map[[8]byte]eventLayout, len(doc.Events)),
	}
	for _, ev := range doc.Events {
		for _, f := range ev.Fields {
			if _, fixed := fieldSizes[f.Type]; !fixed && f.Type != typeString && f.Type != typeBytes {
				return nil, fmt.Errorf("event %s field %s: unsupported type %q", ev.Name, f.Name, f.Type)
			}
		}
		s.layouts[discriminator(ev.Name)] = eventLayout{name: ev.Name, fields: ev.Fields}
	}
	return s, nil
}

// discriminator derives the 8-byte wire identity of a named event.
func discriminator(eventName string) [8]byte {
	sum := sha256.Sum256([]byte("event:" + eventName))
	var d [8]byte
	copy(d[:], sum[:8])
	return d
}

// EventNames returns the names of all events the schema can decode.
func (s *Schema) EventNames() []string {
	names := make([]string, 0, len(s.layouts))
	for _, l := range s.layouts {
		names = append(names, l.name)
	}
	return names
}
