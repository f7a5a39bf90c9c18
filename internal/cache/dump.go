package cache

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Dump is the YAML document written by DumpYAML and read by LoadYAML.
type Dump struct {
	Tenant  string   `yaml:"tenant,omitempty"`
	Kind    Kind     `yaml:"kind"`
	Records []Record `yaml:"records"`
}

// DumpYAML writes every record of kind as a YAML document.
func (s *Store) DumpYAML(ctx context.Context, w io.Writer, kind Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	doc := Dump{Tenant: s.tenant, Kind: kind, Records: s.Records(ctx, kind)}
	if doc.Records == nil {
		doc.Records = []Record{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode %s records: %w", kind, err)
	}
	return enc.Close()
}

// LoadYAML reads one or more Dump documents from r and upserts their records,
// one batch per document. It returns the number of records loaded.
func (s *Store) LoadYAML(ctx context.Context, r io.Reader) (int, error) {
	dec := yaml.NewDecoder(r)
	loaded := 0
	for {
		var doc Dump
		err := dec.Decode(&doc)
		if err == io.EOF {
			return loaded, nil
		}
		if err != nil {
			return loaded, fmt.Errorf("decode records: %w", err)
		}
		if !doc.Kind.Valid() {
			return loaded, fmt.Errorf("%w: %q", ErrUnknownKind, doc.Kind)
		}
		for i := range doc.Records {
			if doc.Records[i].Kind != "" && doc.Records[i].Kind != doc.Kind {
				return loaded, fmt.Errorf("record %s is a %s in a %s document", doc.Records[i].ID, doc.Records[i].Kind, doc.Kind)
			}
			doc.Records[i].Kind = doc.Kind
		}
		if err := s.Upsert(ctx, doc.Kind, doc.Records); err != nil {
			return loaded, err
		}
		loaded += len(doc.Records)
	}
}
