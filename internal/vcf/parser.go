package vcf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parser reads variants from a VCF file. Multi-allelic records are split
// and every allele is returned as its own normalized variant.
type Parser struct {
	reader      *bufio.Reader
	in          io.Closer // nil when reading a caller's stream
	lineNumber  int
	header      []string
	sampleNames []string // sample names from #CHROM header line
	pending     []*Variant
}

// NewParser opens a VCF file, plain or gzipped, or stdin for "-".
func NewParser(path string) (*Parser, error) {
	in, err := OpenInput(path)
	if err != nil {
		return nil, err
	}
	p := &Parser{reader: bufio.NewReader(in), in: in}
	if err := p.parseHeader(); err != nil {
		in.Close()
		return nil, err
	}
	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g., stdin).
func NewParserFromReader(r io.Reader) (*Parser, error) {
	p := &Parser{
		reader: bufio.NewReader(r),
	}

	if err := p.parseHeader(); err != nil {
		return nil, err
	}

	return p, nil
}

// parseHeader reads and stores VCF header lines.
func (p *Parser) parseHeader() error {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read header: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(line, "##") {
			p.header = append(p.header, line)
			continue
		}

		if strings.HasPrefix(line, "#CHROM") {
			p.header = append(p.header, line)
			fields := strings.Split(line, "\t")
			if len(fields) > 9 {
				p.sampleNames = fields[9:]
			}
			return nil
		}

		return &ParseError{
			Line:    p.lineNumber,
			Message: "expected #CHROM header line",
		}
	}

	return &ParseError{
		Line:    p.lineNumber,
		Message: "no #CHROM header line found",
	}
}

// Next reads the next variant from the VCF file.
// Returns nil, nil when there are no more variants.
func (p *Parser) Next() (*Variant, error) {
	for len(p.pending) == 0 {
		line, err := p.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil, nil
			}
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		v, err := p.parseLine(line)
		if err != nil {
			return nil, err
		}
		p.pending = SplitMultiAllelic(v)
	}

	v := p.pending[0]
	p.pending = p.pending[1:]
	return v, nil
}

// parseLine parses a single VCF data line into a Variant. The Alt field may
// still hold a comma-separated allele list.
func (p *Parser) parseLine(line string) (*Variant, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 8 {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected at least 8 columns, found %d", len(fields)),
		}
	}

	pos, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid position: %s", fields[1]),
		}
	}

	qual := 0.0
	if fields[5] != "." {
		qual, _ = strconv.ParseFloat(fields[5], 64)
	}

	v := &Variant{
		Chrom:  fields[0],
		Pos:    pos,
		ID:     fields[2],
		Ref:    strings.ToUpper(fields[3]),
		Alt:    fields[4],
		Qual:   qual,
		Filter: fields[6],
		Info:   parseInfo(fields[7]),
	}

	if len(fields) > 9 {
		v.Sample = parseSample(fields[8], fields[9])
		v.Sample.Call = fmt.Sprintf("%s:%d:%s:%s", v.Chrom, pos, fields[3], fields[4])
	}

	return v, nil
}

// parseInfo parses the INFO field into a map.
func parseInfo(info string) map[string]interface{} {
	result := make(map[string]interface{})
	if info == "." {
		return result
	}

	for _, kv := range strings.Split(info, ";") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		} else {
			// Flag-type INFO field
			result[parts[0]] = true
		}
	}

	return result
}

// parseSample extracts GT and PS from the first sample column.
func parseSample(format, sample string) *SampleCall {
	keys := strings.Split(format, ":")
	values := strings.Split(sample, ":")
	sc := &SampleCall{}
	for i, k := range keys {
		if i >= len(values) {
			break
		}
		switch k {
		case "GT":
			sc.Genotype = values[i]
		case "PS":
			if values[i] != "." {
				sc.PhaseSet = values[i]
			}
		}
	}
	return sc
}

// SplitMultiAllelic splits a multi-allelic variant into separate variants
// and normalizes each allele.
func SplitMultiAllelic(v *Variant) []*Variant {
	alts := strings.Split(v.Alt, ",")
	variants := make([]*Variant, 0, len(alts))
	for _, alt := range alts {
		nv := &Variant{
			Chrom:  v.Chrom,
			Pos:    v.Pos,
			ID:     v.ID,
			Ref:    v.Ref,
			Alt:    alt,
			Qual:   v.Qual,
			Filter: v.Filter,
			Info:   v.Info, // shared, treated as read-only
		}
		if v.Sample != nil {
			sc := *v.Sample
			nv.Sample = &sc
		}
		Normalize(nv)
		variants = append(variants, nv)
	}
	return variants
}

// Normalize trims the shared anchor bases of a single-allele variant, sets
// its end coordinate and infers its shape. Symbolic and breakend alleles
// are typed from the allele and the SVTYPE/END/CIPOS/CIEND/CN INFO keys.
func Normalize(v *Variant) {
	switch {
	case isBreakend(v.Alt):
		normalizeBreakend(v)
		return
	case strings.HasPrefix(v.Alt, "<") && strings.HasSuffix(v.Alt, ">"):
		normalizeSymbolic(v)
		return
	}

	ref, alt := strings.ToUpper(v.Ref), strings.ToUpper(v.Alt)
	if alt == "*" || alt == "." {
		v.End = v.Pos + int64(len(ref)) - 1
		v.Type = TypeNoVariation
		return
	}

	prefix := 0
	for prefix < len(ref) && prefix < len(alt) && ref[prefix] == alt[prefix] {
		prefix++
	}
	ref, alt = ref[prefix:], alt[prefix:]
	suffix := 0
	for suffix < len(ref) && suffix < len(alt) && ref[len(ref)-1-suffix] == alt[len(alt)-1-suffix] {
		suffix++
	}
	ref, alt = ref[:len(ref)-suffix], alt[:len(alt)-suffix]

	v.Pos += int64(prefix)
	v.Ref, v.Alt = ref, alt
	v.End = v.Pos + int64(len(ref)) - 1
	v.Type = InferType(ref, alt)
}

func normalizeSymbolic(v *Variant) {
	svtype := strings.ToUpper(infoString(v.Info, "SVTYPE"))
	allele := strings.ToUpper(strings.Trim(v.Alt, "<>"))
	if svtype == "" {
		svtype = allele
		if i := strings.IndexByte(svtype, ':'); i > 0 {
			svtype = svtype[:i]
		}
	}

	// POS is the padding base preceding the event.
	v.Pos++
	v.End = v.Pos
	if end, ok := infoInt(v.Info, "END"); ok {
		v.End = end
	} else if l, ok := infoInt(v.Info, "SVLEN"); ok {
		if l < 0 {
			l = -l
		}
		v.End = v.Pos + l - 1
	}

	sv := &StructuralVariation{}
	sv.CiStartLeft, sv.CiStartRight = confidenceInterval(v.Info, "CIPOS", v.Pos)
	sv.CiEndLeft, sv.CiEndRight = confidenceInterval(v.Info, "CIEND", v.End)
	if cn, ok := infoInt(v.Info, "CN"); ok {
		c := int(cn)
		sv.CopyNumber = &c
	} else if strings.HasPrefix(allele, "CN") {
		if c, err := strconv.Atoi(allele[2:]); err == nil {
			sv.CopyNumber = &c
			svtype = "CNV"
		}
	}
	v.SV = sv

	switch svtype {
	case "DEL":
		v.Type = TypeDeletion
	case "INS":
		v.Type = TypeInsertion
		v.End = v.Pos - 1
	case "DUP":
		v.Type = TypeDuplication
	case "INV":
		v.Type = TypeInversion
	case "CNV":
		v.Type = TypeCNV
	case "BND":
		v.Type = TypeBreakend
	default:
		v.Type = TypeCNV
	}
}

// isBreakend reports whether alt uses the bracket notation, e.g. "G]17:198982]".
func isBreakend(alt string) bool {
	return strings.ContainsAny(alt, "[]")
}

func normalizeBreakend(v *Variant) {
	v.Type = TypeBreakend
	v.End = v.Pos

	sv := &StructuralVariation{}
	sv.CiStartLeft, sv.CiStartRight = confidenceInterval(v.Info, "CIPOS", v.Pos)

	open := strings.IndexAny(v.Alt, "[]")
	closing := strings.LastIndexAny(v.Alt, "[]")
	if open >= 0 && closing > open {
		mate := v.Alt[open+1 : closing]
		if i := strings.LastIndexByte(mate, ':'); i > 0 {
			if pos, err := strconv.ParseInt(mate[i+1:], 10, 64); err == nil {
				b := &Breakend{Chrom: mate[:i], Pos: pos}
				b.CiLeft, b.CiRight = confidenceInterval(v.Info, "CIEND", pos)
				sv.Mate = b
			}
		}
	}
	sv.CiEndLeft, sv.CiEndRight = sv.CiStartLeft, sv.CiStartRight
	v.SV = sv
}

// confidenceInterval converts a relative "-a,b" INFO pair into absolute bounds around pos.
func confidenceInterval(info map[string]interface{}, key string, pos int64) (int64, int64) {
	s := infoString(info, key)
	if s == "" {
		return pos, pos
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return pos, pos
	}
	left, err1 := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	right, err2 := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err1 != nil || err2 != nil {
		return pos, pos
	}
	return pos + left, pos + right
}

func infoString(info map[string]interface{}, key string) string {
	if s, ok := info[key].(string); ok {
		return s
	}
	return ""
}

func infoInt(info map[string]interface{}, key string) (int64, bool) {
	s := infoString(info, key)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Header returns the VCF header lines.
func (p *Parser) Header() []string {
	return p.header
}

// SampleNames returns sample names from the #CHROM header line.
// Returns nil if no sample columns are present.
func (p *Parser) SampleNames() []string {
	return p.sampleNames
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.in == nil {
		return nil
	}
	return p.in.Close()
}

// ParseError represents an error during VCF parsing with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}
