// Package schema reads loader declarations from YAML documents.
//
// A document declares one file loader: how its input is read and the line
// loaders that run on every line. Example:
//
//	key: customer_orders
//	header: true
//	loaders:
//	  - name: customer
//	    table: customers
//	    unique: [email]
//	    fields:
//	      - {target: email, source: Email, validate: "email", clean: [trim, lower]}
//	      - {target: state, source: State, required: false, clean: [us_state]}
//	  - name: order
//	    table: orders
//	    requires: [customer]
//	    unique: [number]
//	    fields:
//	      - {target: number, source: Order}
//	      - {target: amount, source: Amount, type: pg_numeric}
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is one file loader declaration.
type Document struct {
	Key           string   `yaml:"key"`
	Description   string   `yaml:"description"`
	Encoding      string   `yaml:"encoding"`
	Delimiter     string   `yaml:"delimiter"`
	Header        *bool    `yaml:"header"`
	CarryBindings *bool    `yaml:"carry_bindings"`
	InvalidUTF8   string   `yaml:"invalid_utf8"`
	Loaders       []Loader `yaml:"loaders"`

	// Path is the file the document was read from, if any.
	Path string `yaml:"-"`
}

// Loader declares one line loader and the table it writes to.
type Loader struct {
	Name       string              `yaml:"name"`
	Table      string              `yaml:"table"`
	PrimaryKey string              `yaml:"primary_key"`
	Unique     []string            `yaml:"unique"`
	Requires   []string            `yaml:"requires"`
	Columns    map[string]string   `yaml:"columns"`
	Clean      map[string][]string `yaml:"clean"`
	Fields     []Field             `yaml:"fields"`
}

// Field declares one attribute. Required defaults to true.
type Field struct {
	Target   string   `yaml:"target"`
	Index    *int     `yaml:"index"`
	Source   string   `yaml:"source"`
	Required *bool    `yaml:"required"`
	Type     string   `yaml:"type"`
	Nullable bool     `yaml:"nullable"`
	Validate string   `yaml:"validate"`
	OneOf    []string `yaml:"one_of"`
	MaxLen   int      `yaml:"max_len"`
	Pattern  string   `yaml:"pattern"`
	Clean    []string `yaml:"clean"`
}

// Parse decodes a single document. Unknown keys are rejected so typos do not
// silently drop configuration.
func Parse(data []byte) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Document{}, errors.New("schema: document is empty")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("schema: parse: %w", err)
	}
	var extra Document
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Document{}, errors.New("schema: expected a single document")
	}

	doc.Key = strings.TrimSpace(doc.Key)
	if doc.Key == "" {
		return Document{}, errors.New("schema: document has no key")
	}
	if len(doc.Loaders) == 0 {
		return Document{}, fmt.Errorf("schema: %s: no loaders", doc.Key)
	}
	return doc, nil
}

// LoadFile reads and parses the document at path.
func LoadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("schema: read %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("%w (file %s)", err, path)
	}
	doc.Path = path
	return doc, nil
}

// LoadFS walks fsys and parses every .yaml and .yml file, sorted by key.
// Two documents declaring the same key are an error.
func LoadFS(fsys fs.FS) ([]Document, error) {
	if fsys == nil {
		return nil, nil
	}

	byKey := make(map[string]Document)
	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isSchemaFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("schema: read %s: %w", path, err)
		}
		doc, err := Parse(data)
		if err != nil {
			return fmt.Errorf("%w (file %s)", err, path)
		}
		if prev, exists := byKey[doc.Key]; exists {
			return fmt.Errorf("schema: duplicate key %q (files %s and %s)", doc.Key, prev.Path, path)
		}
		doc.Path = path
		byKey[doc.Key] = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(byKey))
	for _, doc := range byKey {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	return docs, nil
}

// LoadDir is LoadFS over a directory on disk. A missing directory yields no
// documents.
func LoadDir(dir string) ([]Document, error) {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return LoadFS(os.DirFS(dir))
}

func isSchemaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
