// Package cache provides gene model loading and lookup for consequence annotation.
package cache

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Document is the on-disk JSON layout of a gene model file.
type Document struct {
	Genes      []*Gene              `json:"genes"`
	Regulatory []*RegulatoryFeature `json:"regulatory,omitempty"`
}

// Loader loads gene models from JSON files laid out as
// {cacheDir}/{species}/{species}_{assembly}/{chrom}/*.json[.gz].
type Loader struct {
	cacheDir string
	species  string
	assembly string
}

// NewLoader creates a new cache loader.
func NewLoader(cacheDir, species, assembly string) *Loader {
	return &Loader{
		cacheDir: cacheDir,
		species:  species,
		assembly: assembly,
	}
}

// Load loads all genes for a given chromosome into the cache.
func (l *Loader) Load(c *Cache, chrom string) error {
	chromDir := l.chromPath(chrom)

	if _, err := os.Stat(chromDir); os.IsNotExist(err) {
		return nil // No data for this chromosome
	}

	var files []string
	for _, pattern := range []string{"*.json", "*.json.gz"} {
		matches, err := filepath.Glob(filepath.Join(chromDir, pattern))
		if err != nil {
			return fmt.Errorf("glob json files: %w", err)
		}
		files = append(files, matches...)
	}

	for _, f := range files {
		if err := LoadFile(c, f); err != nil {
			return fmt.Errorf("load json file %s: %w", f, err)
		}
	}

	return nil
}

// LoadAll loads all chromosomes into the cache.
func (l *Loader) LoadAll(c *Cache) error {
	speciesDir := l.speciesPath()

	entries, err := os.ReadDir(speciesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("cache directory not found: %s", speciesDir)
		}
		return fmt.Errorf("read cache directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			chrom := entry.Name()
			if err := l.Load(c, chrom); err != nil {
				return fmt.Errorf("load chromosome %s: %w", chrom, err)
			}
		}
	}

	return nil
}

// speciesPath returns the path to the species/assembly directory.
func (l *Loader) speciesPath() string {
	return filepath.Join(l.cacheDir, l.species, fmt.Sprintf("%s_%s", l.species, l.assembly))
}

// chromPath returns the path to a chromosome directory.
func (l *Loader) chromPath(chrom string) string {
	return filepath.Join(l.speciesPath(), NormalizeChrom(chrom))
}

// LoadFile loads genes and regulatory features from a single JSON document,
// optionally gzip-compressed.
func LoadFile(c *Cache, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	doc, err := DecodeDocument(r)
	if err != nil {
		return err
	}
	for _, g := range doc.Genes {
		c.AddGene(g)
	}
	for _, rf := range doc.Regulatory {
		c.AddRegulatoryFeature(rf)
	}
	return nil
}

// DecodeDocument decodes a gene model document and fills transcript
// back-references to their gene.
func DecodeDocument(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	for _, g := range doc.Genes {
		for _, t := range g.Transcripts {
			if t.GeneID == "" {
				t.GeneID = g.ID
			}
			if t.GeneName == "" {
				t.GeneName = g.Name
			}
			if t.Chrom == "" {
				t.Chrom = g.Chrom
			}
		}
	}
	return &doc, nil
}
