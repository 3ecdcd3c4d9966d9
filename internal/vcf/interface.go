// Package vcf reads VCF records into normalized variants.
package vcf

// VariantReader yields variants one at a time from VCF, MAF or any other
// tabular input. Next returns nil, nil at end of input.
type VariantReader interface {
	Next() (*Variant, error)
	Close() error
	// LineNumber is the input line of the last variant returned, for error messages.
	LineNumber() int
}

var _ VariantReader = (*Parser)(nil)
