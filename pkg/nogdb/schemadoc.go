package nogdb

import (
	"gopkg.in/yaml.v3"

	"github.com/nogdb/nogdb/pkg/codec"
	"github.com/nogdb/nogdb/pkg/nogdberr"
	"github.com/nogdb/nogdb/pkg/schema"
)

// SchemaDoc is a human-editable rendering of the catalog, for backup and
// for re-creating a schema on a fresh database. Classes are listed
// parent-before-child so RestoreSchema can replay them in order.
type SchemaDoc struct {
	Classes []ClassDoc `yaml:"classes"`
}

type ClassDoc struct {
	Name       string        `yaml:"name"`
	Tag        string        `yaml:"tag"` // VERTEX or EDGE
	Parent     string        `yaml:"parent,omitempty"`
	Properties []PropertyDoc `yaml:"properties,omitempty"`
	Indexes    []IndexDoc    `yaml:"indexes,omitempty"`
}

type PropertyDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type IndexDoc struct {
	Property string `yaml:"property"`
	Unique   bool   `yaml:"unique"`
}

// DumpSchema renders the transaction's current catalog as a SchemaDoc.
func (tx *Transaction) DumpSchema() SchemaDoc {
	snap := tx.t.Schema()
	var doc SchemaDoc
	for _, c := range snap.Classes() {
		cd := ClassDoc{Name: c.Name, Tag: c.Tag.String()}
		if c.ParentID != schema.NoClass {
			if parent, ok := snap.ClassByID(c.ParentID); ok {
				cd.Parent = parent.Name
			}
		}
		for _, p := range snap.OwnProperties(c.ID) {
			cd.Properties = append(cd.Properties, PropertyDoc{Name: p.Name, Type: p.Type.String()})
			if idx, ok := snap.IndexFor(c.ID, p.ID); ok && idx.ClassID == c.ID {
				cd.Indexes = append(cd.Indexes, IndexDoc{Property: p.Name, Unique: idx.Unique})
			}
		}
		doc.Classes = append(doc.Classes, cd)
	}
	return doc
}

// DumpSchemaYAML renders the catalog as YAML text.
func (tx *Transaction) DumpSchemaYAML() ([]byte, error) {
	return yaml.Marshal(tx.DumpSchema())
}

// RestoreSchema replays a SchemaDoc's classes, properties and indexes
// against the transaction, in the order given; callers should list
// parent classes before their children.
func (tx *Transaction) RestoreSchema(doc SchemaDoc) error {
	for _, cd := range doc.Classes {
		var err error
		if cd.Tag == "EDGE" {
			_, err = tx.t.AddEdgeClass(cd.Name, cd.Parent)
		} else {
			_, err = tx.t.AddVertexClass(cd.Name, cd.Parent)
		}
		if err != nil {
			return err
		}
		for _, pd := range cd.Properties {
			typ, ok := codec.ParseType(pd.Type)
			if !ok {
				return nogdberr.New(nogdberr.InvalidPropTypeIndex, "unrecognized property type %q", pd.Type)
			}
			if _, err := tx.t.AddProperty(cd.Name, pd.Name, typ); err != nil {
				return err
			}
		}
		for _, id := range cd.Indexes {
			if _, err := tx.t.AddIndex(cd.Name, id.Property, id.Unique); err != nil {
				return err
			}
		}
	}
	return nil
}

// RestoreSchemaYAML parses and replays a YAML-encoded SchemaDoc.
func (tx *Transaction) RestoreSchemaYAML(data []byte) error {
	var doc SchemaDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nogdberr.New(nogdberr.SQLSyntaxError, "parsing schema document: %v", err)
	}
	return tx.RestoreSchema(doc)
}
