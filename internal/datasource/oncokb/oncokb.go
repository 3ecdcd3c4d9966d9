// Package oncokb loads the OncoKB cancer gene list and serves it as
// gene-level annotation.
package oncokb

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/lo"
)

// Annotation is one cancer gene of the list.
type Annotation struct {
	HugoSymbol   string
	EntrezGeneID string
	GeneType     string // "ONCOGENE", "TSG", "ONCOGENE,TSG" or "INSUFFICIENT_EVIDENCE"
	Aliases      []string
}

// CancerGeneList maps gene symbols, and the aliases of listed genes that are
// not themselves listed, to their Annotation.
type CancerGeneList map[string]*Annotation

// IsCancerGene reports whether gene is listed under its symbol or an alias.
func (c CancerGeneList) IsCancerGene(gene string) bool {
	_, ok := c[gene]
	return ok
}

// Genes returns the number of distinct listed genes.
func (c CancerGeneList) Genes() int {
	n := 0
	for key, a := range c {
		if key == a.HugoSymbol {
			n++
		}
	}
	return n
}

// LoadCancerGeneList loads an OncoKB cancerGeneList.tsv file.
func LoadCancerGeneList(path string) (CancerGeneList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cancer gene list: %w", err)
	}
	defer f.Close()
	return ParseCancerGeneList(f)
}

// Column names of the OncoKB export. Hugo Symbol and Gene Type are required.
const (
	colHugoSymbol = "Hugo Symbol"
	colEntrezID   = "Entrez Gene ID"
	colGeneType   = "Gene Type"
	colAliases    = "Gene Aliases"
)

// ParseCancerGeneList reads a cancer gene list TSV. Rows without a symbol or
// missing the required columns are skipped.
func ParseCancerGeneList(r io.Reader) (CancerGeneList, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading cancer gene list: %w", err)
		}
		return nil, fmt.Errorf("cancer gene list: empty file")
	}
	header := lo.Map(strings.Split(scanner.Text(), "\t"), func(col string, _ int) string {
		return strings.TrimSpace(col)
	})
	hugoIdx := lo.IndexOf(header, colHugoSymbol)
	typeIdx := lo.IndexOf(header, colGeneType)
	for _, req := range []struct {
		name string
		idx  int
	}{{colHugoSymbol, hugoIdx}, {colGeneType, typeIdx}} {
		if req.idx < 0 {
			return nil, fmt.Errorf("cancer gene list: missing '%s' column", req.name)
		}
	}
	entrezIdx := lo.IndexOf(header, colEntrezID)
	aliasIdx := lo.IndexOf(header, colAliases)

	field := func(fields []string, idx int) string {
		if idx < 0 || idx >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[idx])
	}

	cgl := make(CancerGeneList)
	var aliased []*Annotation
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) <= max(hugoIdx, typeIdx) {
			continue
		}
		hugo := field(fields, hugoIdx)
		if hugo == "" {
			continue
		}
		a := &Annotation{
			HugoSymbol:   hugo,
			EntrezGeneID: field(fields, entrezIdx),
			GeneType:     field(fields, typeIdx),
		}
		if aliases := field(fields, aliasIdx); aliases != "" {
			a.Aliases = lo.Compact(lo.Map(strings.Split(aliases, ","), func(s string, _ int) string {
				return strings.TrimSpace(s)
			}))
			aliased = append(aliased, a)
		}
		cgl[hugo] = a
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading cancer gene list: %w", err)
	}

	// Symbols win over aliases, whatever the row order.
	for _, a := range aliased {
		for _, alias := range a.Aliases {
			if _, taken := cgl[alias]; !taken {
				cgl[alias] = a
			}
		}
	}
	return cgl, nil
}
