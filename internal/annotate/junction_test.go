package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testJunction = Junction{Start: 100, End: 200, LeftTag: SpliceDonorVariant, RightTag: SpliceAcceptorVariant}

func TestClassifyJunction(t *testing.T) {
	tests := []struct {
		name     string
		span     Span
		want     []string
		splicing bool
		intronic bool
	}{
		{"donor first base", Span{100, 100}, []string{SpliceDonorVariant}, true, true},
		{"donor second base", Span{101, 101}, []string{SpliceDonorVariant}, true, true},
		{"both boundary bases", Span{100, 101}, []string{SpliceDonorVariant}, true, true},
		{"donor side region", Span{102, 102}, []string{IntronVariant, SpliceRegionVariant}, true, true},
		{"donor side region end", Span{107, 107}, []string{IntronVariant, SpliceRegionVariant}, true, true},
		{"deep intron", Span{150, 150}, []string{IntronVariant}, false, true},
		{"past donor region", Span{108, 108}, []string{IntronVariant}, false, true},
		{"exonic donor region", Span{99, 99}, []string{SpliceRegionVariant}, false, false},
		{"exonic beyond region", Span{96, 96}, nil, false, false},
		{"acceptor", Span{199, 200}, []string{SpliceAcceptorVariant}, true, true},
		{"acceptor side region", Span{193, 193}, []string{IntronVariant, SpliceRegionVariant}, true, true},
		{"exonic acceptor region", Span{201, 201}, []string{SpliceRegionVariant}, false, false},
		{"exon to donor", Span{99, 100}, []string{SpliceDonorVariant}, true, false},
		{"big span suppresses splice terms", Span{50, 150}, []string{IntronVariant}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ClassifyJunction(testJunction, tt.span, DefaultBigVariantThreshold)
			assert.ElementsMatch(t, tt.want, r.Terms)
			assert.Equal(t, tt.splicing, r.Splicing, "splicing")
			assert.Equal(t, tt.intronic, r.Intronic, "intronic")
		})
	}
}

func TestClassifyJunction_ShortIntron(t *testing.T) {
	j := Junction{Start: 100, End: 101, LeftTag: SpliceDonorVariant, RightTag: SpliceAcceptorVariant}
	r := ClassifyJunction(j, Span{100, 100}, DefaultBigVariantThreshold)
	assert.ElementsMatch(t, []string{SpliceDonorVariant, SpliceAcceptorVariant}, r.Terms)
	assert.True(t, r.Intronic)
}

func TestClassifyJunction_BoundaryWithoutIntronTerm(t *testing.T) {
	for _, span := range []Span{{100, 101}, {199, 200}} {
		r := ClassifyJunction(testJunction, span, DefaultBigVariantThreshold)
		assert.NotContains(t, r.Terms, IntronVariant, "%v", span)
	}
}

func TestClassifyInsertionJunction(t *testing.T) {
	tests := []struct {
		name     string
		span     Span
		want     []string
		splicing bool
	}{
		{"at exon end", Span{99, 100}, []string{SpliceRegionVariant}, false},
		{"inside donor", Span{100, 101}, []string{SpliceDonorVariant}, true},
		{"after donor", Span{101, 102}, []string{IntronVariant, SpliceRegionVariant}, true},
		{"exonic region", Span{98, 99}, []string{SpliceRegionVariant}, false},
		{"just outside exonic region", Span{96, 97}, nil, false},
		{"just outside intronic region", Span{107, 108}, []string{IntronVariant}, true},
		{"deep intron", Span{150, 151}, []string{IntronVariant}, false},
		{"inside acceptor", Span{199, 200}, []string{SpliceAcceptorVariant}, true},
		{"at exon start", Span{200, 201}, []string{SpliceRegionVariant}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ClassifyInsertionJunction(testJunction, tt.span)
			assert.ElementsMatch(t, tt.want, r.Terms)
			assert.Equal(t, tt.splicing, r.Splicing, "splicing")
		})
	}
}
