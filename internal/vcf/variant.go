// Package vcf provides VCF file parsing functionality.
package vcf

import "strings"

// VariantType is the shape of a variant.
type VariantType string

// Variant shapes.
const (
	TypeSNV         VariantType = "SNV"
	TypeMNV         VariantType = "MNV"
	TypeInsertion   VariantType = "INSERTION"
	TypeDeletion    VariantType = "DELETION"
	TypeIndel       VariantType = "INDEL"
	TypeCNV         VariantType = "CNV"
	TypeDuplication VariantType = "DUPLICATION"
	TypeInversion   VariantType = "INVERSION"
	TypeBreakend    VariantType = "BREAKEND"
	TypeNoVariation VariantType = "NO_VARIATION"
)

// Variant represents a single genomic variant from a VCF file.
// Alleles are stored without the VCF anchor base: an insertion has an
// empty Ref and End == Pos-1, a deletion has an empty Alt.
type Variant struct {
	Chrom  string                 // Chromosome name (e.g., "12", "chr12")
	Pos    int64                  // 1-based start position
	End    int64                  // 1-based inclusive end position
	ID     string                 // Variant identifier (e.g., rs ID)
	Ref    string                 // Reference allele
	Alt    string                 // Alternate allele (single allele after splitting)
	Qual   float64                // Quality score
	Filter string                 // Filter status (PASS or filter name)
	Info   map[string]interface{} // INFO field key-value pairs
	Type   VariantType            // Variant shape

	SV     *StructuralVariation // Structural variant details, nil for small variants
	Sample *SampleCall          // First sample's call, nil without sample columns
}

// StructuralVariation holds breakpoint confidence intervals and copy number.
type StructuralVariation struct {
	CiStartLeft  int64
	CiStartRight int64
	CiEndLeft    int64
	CiEndRight   int64
	CopyNumber   *int
	Mate         *Breakend
}

// Breakend is the mate position of a BND record.
type Breakend struct {
	Chrom   string
	Pos     int64
	CiLeft  int64
	CiRight int64
}

// SampleCall carries the phasing information of one sample.
type SampleCall struct {
	Genotype string // e.g. "0|1"
	PhaseSet string // FORMAT/PS
	Call     string // original record "chrom:pos:ref:alt", before allele trimming
}

// IsSNV returns true if the variant is a single nucleotide variant.
func (v *Variant) IsSNV() bool {
	return len(v.Ref) == 1 && len(v.Alt) == 1
}

// IsIndel returns true if the variant is an insertion or deletion.
func (v *Variant) IsIndel() bool {
	return len(v.Ref) != len(v.Alt)
}

// IsInsertion returns true if the variant is an insertion.
func (v *Variant) IsInsertion() bool {
	return len(v.Alt) > len(v.Ref)
}

// IsDeletion returns true if the variant is a deletion.
func (v *Variant) IsDeletion() bool {
	return len(v.Ref) > len(v.Alt)
}

// IsImprecise reports whether the structural breakpoints carry a confidence interval.
func (v *Variant) IsImprecise() bool {
	if v.SV == nil {
		return false
	}
	return v.SV.CiStartLeft != v.SV.CiStartRight || v.SV.CiEndLeft != v.SV.CiEndRight
}

// NormalizeChrom returns the chromosome name without "chr" prefix.
func (v *Variant) NormalizeChrom() string {
	if len(v.Chrom) > 3 && v.Chrom[:3] == "chr" {
		return v.Chrom[3:]
	}
	return v.Chrom
}

// IsMitochondrial reports whether the variant lies on the mitochondrial chromosome.
func (v *Variant) IsMitochondrial() bool {
	switch v.NormalizeChrom() {
	case "MT", "M":
		return true
	}
	return false
}

// String returns "chrom:pos:ref:alt" with "-" for empty alleles.
func (v *Variant) String() string {
	ref, alt := v.Ref, v.Alt
	if ref == "" {
		ref = "-"
	}
	if alt == "" {
		alt = "-"
	}
	var sb strings.Builder
	sb.WriteString(v.Chrom)
	sb.WriteByte(':')
	sb.WriteString(formatInt(v.Pos))
	sb.WriteByte(':')
	sb.WriteString(ref)
	sb.WriteByte(':')
	sb.WriteString(alt)
	return sb.String()
}

func formatInt(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// InferType classifies a variant from its (anchor-trimmed) alleles.
// Symbolic alleles are typed by the parser before trimming.
func InferType(ref, alt string) VariantType {
	switch {
	case ref == alt:
		return TypeNoVariation
	case ref == "" && alt != "":
		return TypeInsertion
	case alt == "" && ref != "":
		return TypeDeletion
	case len(ref) == 1 && len(alt) == 1:
		return TypeSNV
	case len(ref) == len(alt):
		return TypeMNV
	default:
		return TypeIndel
	}
}
