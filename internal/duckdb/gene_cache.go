package duckdb

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/inodb/vibe-csq/internal/cache"
)

// GeneCache manages gob-serialized gene models on disk, so a GTF only has
// to be parsed once per set of source files:
//
//	{dir}/genes.gob       (serialized genes and regulatory features)
//	{dir}/genes.gob.meta  (source file fingerprints)
type GeneCache struct {
	dir string
}

// geneCacheData is the gob payload.
type geneCacheData struct {
	Genes      map[string][]*cache.Gene
	Regulatory map[string][]*cache.RegulatoryFeature
}

// NewGeneCache creates a gene cache for the given directory.
func NewGeneCache(dir string) *GeneCache {
	return &GeneCache{dir: dir}
}

func (gc *GeneCache) gobPath() string {
	return filepath.Join(gc.dir, "genes.gob")
}

func (gc *GeneCache) metaPath() string {
	return filepath.Join(gc.dir, "genes.gob.meta")
}

// Sources are the input files a cached gene set was built from.
type Sources struct {
	GTF       FileFingerprint
	FASTA     FileFingerprint
	Canonical FileFingerprint
}

func (s Sources) metaFields() [][2]string {
	var fields [][2]string
	fields = append(fields, s.GTF.metaFields("gtf")...)
	fields = append(fields, s.FASTA.metaFields("fasta")...)
	fields = append(fields, s.Canonical.metaFields("canonical")...)
	return fields
}

// Valid checks whether the cached genes match the current source files.
func (gc *GeneCache) Valid(src Sources) bool {
	meta, err := gc.readMeta()
	if err != nil {
		return false
	}
	for _, kv := range src.metaFields() {
		if meta[kv[0]] != kv[1] {
			return false
		}
	}
	_, err = os.Stat(gc.gobPath())
	return err == nil
}

// Load reads serialized genes from disk into the cache.
func (gc *GeneCache) Load(c *cache.Cache) error {
	f, err := os.Open(gc.gobPath())
	if err != nil {
		return fmt.Errorf("open gene cache: %w", err)
	}
	defer f.Close()

	var data geneCacheData
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return fmt.Errorf("decode gene cache: %w", err)
	}

	for _, genes := range data.Genes {
		for _, g := range genes {
			c.AddGene(g)
		}
	}
	for _, feats := range data.Regulatory {
		for _, rf := range feats {
			c.AddRegulatoryFeature(rf)
		}
	}
	return nil
}

// Write serializes the genes of the cache, and the regulatory features on
// chromosomes that have genes, to disk.
func (gc *GeneCache) Write(c *cache.Cache, src Sources) error {
	data := geneCacheData{
		Genes:      make(map[string][]*cache.Gene),
		Regulatory: make(map[string][]*cache.RegulatoryFeature),
	}
	for _, chrom := range c.Chromosomes() {
		if genes := c.GenesByChrom(chrom); len(genes) > 0 {
			data.Genes[chrom] = genes
		}
		if feats := c.RegulatoryByChrom(chrom); len(feats) > 0 {
			data.Regulatory[chrom] = feats
		}
	}

	if err := os.MkdirAll(gc.dir, 0755); err != nil {
		return fmt.Errorf("create gene cache directory: %w", err)
	}
	f, err := os.Create(gc.gobPath())
	if err != nil {
		return fmt.Errorf("create gene cache: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(data); err != nil {
		f.Close()
		os.Remove(gc.gobPath())
		return fmt.Errorf("encode gene cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close gene cache: %w", err)
	}

	return gc.writeMeta(src)
}

// Clear removes the cached gene files.
func (gc *GeneCache) Clear() {
	os.Remove(gc.gobPath())
	os.Remove(gc.metaPath())
}

func (gc *GeneCache) writeMeta(src Sources) error {
	var lines []string
	for _, kv := range src.metaFields() {
		lines = append(lines, kv[0]+"="+kv[1])
	}
	lines = append(lines, "created_at="+time.Now().UTC().Format(time.RFC3339), "")
	return os.WriteFile(gc.metaPath(), []byte(strings.Join(lines, "\n")), 0644)
}

func (gc *GeneCache) readMeta() (map[string]string, error) {
	data, err := os.ReadFile(gc.metaPath())
	if err != nil {
		return nil, err
	}

	meta := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		if k, v, ok := strings.Cut(line, "="); ok {
			meta[k] = v
		}
	}
	return meta, nil
}
