// Package cache provides gene model loading and lookup for consequence annotation.
package cache

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrRegionNotFound is returned when a requested genomic region is not available.
var ErrRegionNotFound = errors.New("region not found")

// Cache holds gene models and regulatory features indexed by chromosome.
// It is safe for concurrent readers once loading is finished; the per-chromosome
// interval trees are built lazily on first query.
type Cache struct {
	mu         sync.RWMutex
	genes      map[string][]*Gene
	regulatory map[string][]*RegulatoryFeature

	geneTrees map[string]*IntervalTree[*Gene]
	regTrees  map[string]*IntervalTree[*RegulatoryFeature]
}

// New creates a new empty cache.
func New() *Cache {
	return &Cache{
		genes:      make(map[string][]*Gene),
		regulatory: make(map[string][]*RegulatoryFeature),
	}
}

// AddGene adds a gene (with its transcripts) to the cache.
func (c *Cache) AddGene(g *Gene) {
	chrom := NormalizeChrom(g.Chrom)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.genes[chrom] = append(c.genes[chrom], g)
	c.geneTrees = nil
}

// AddRegulatoryFeature adds a regulatory feature to the cache.
func (c *Cache) AddRegulatoryFeature(f *RegulatoryFeature) {
	chrom := NormalizeChrom(f.Chrom)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regulatory[chrom] = append(c.regulatory[chrom], f)
	c.regTrees = nil
}

// GenesOverlapping returns all genes overlapping [start, end] on chrom.
func (c *Cache) GenesOverlapping(_ context.Context, chrom string, start, end int64) ([]*Gene, error) {
	tree := c.geneTree(NormalizeChrom(chrom))
	if tree == nil {
		return nil, nil
	}
	return tree.FindRange(start, end), nil
}

// RegulatoryFeaturesOverlapping returns all regulatory features overlapping [start, end] on chrom.
func (c *Cache) RegulatoryFeaturesOverlapping(_ context.Context, chrom string, start, end int64) ([]*RegulatoryFeature, error) {
	tree := c.regTree(NormalizeChrom(chrom))
	if tree == nil {
		return nil, nil
	}
	return tree.FindRange(start, end), nil
}

func (c *Cache) geneTree(chrom string) *IntervalTree[*Gene] {
	c.mu.RLock()
	if c.geneTrees != nil {
		t := c.geneTrees[chrom]
		c.mu.RUnlock()
		return t
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.geneTrees == nil {
		c.geneTrees = make(map[string]*IntervalTree[*Gene], len(c.genes))
		for ch, genes := range c.genes {
			c.geneTrees[ch] = BuildIntervalTree(genes, func(g *Gene) (int64, int64) { return g.Start, g.End })
		}
	}
	return c.geneTrees[chrom]
}

func (c *Cache) regTree(chrom string) *IntervalTree[*RegulatoryFeature] {
	c.mu.RLock()
	if c.regTrees != nil {
		t := c.regTrees[chrom]
		c.mu.RUnlock()
		return t
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.regTrees == nil {
		c.regTrees = make(map[string]*IntervalTree[*RegulatoryFeature], len(c.regulatory))
		for ch, feats := range c.regulatory {
			c.regTrees[ch] = BuildIntervalTree(feats, func(f *RegulatoryFeature) (int64, int64) { return f.Start, f.End })
		}
	}
	return c.regTrees[chrom]
}

// GetTranscript returns a specific transcript by ID, or nil if not found.
func (c *Cache) GetTranscript(id string) *Transcript {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, genes := range c.genes {
		for _, g := range genes {
			for _, t := range g.Transcripts {
				if t.ID == id {
					return t
				}
			}
		}
	}
	return nil
}

// GeneCount returns the total number of genes in the cache.
func (c *Cache) GeneCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	count := 0
	for _, genes := range c.genes {
		count += len(genes)
	}
	return count
}

// TranscriptCount returns the total number of transcripts in the cache.
func (c *Cache) TranscriptCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	count := 0
	for _, genes := range c.genes {
		for _, g := range genes {
			count += len(g.Transcripts)
		}
	}
	return count
}

// Chromosomes returns a sorted list of chromosomes in the cache.
func (c *Cache) Chromosomes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	chroms := make([]string, 0, len(c.genes))
	for chrom := range c.genes {
		chroms = append(chroms, chrom)
	}
	sort.Strings(chroms)
	return chroms
}

// GenesByChrom returns all genes for a chromosome.
func (c *Cache) GenesByChrom(chrom string) []*Gene {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.genes[NormalizeChrom(chrom)]
}

// RegulatoryByChrom returns all regulatory features for a chromosome.
func (c *Cache) RegulatoryByChrom(chrom string) []*RegulatoryFeature {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.regulatory[NormalizeChrom(chrom)]
}

// NormalizeChrom strips a leading "chr" and maps "M" to "MT".
func NormalizeChrom(chrom string) string {
	chrom = strings.TrimPrefix(chrom, "chr")
	if chrom == "M" {
		return "MT"
	}
	return chrom
}
