package annotate

// BiotypeClass tells whether a transcript biotype is translated.
type BiotypeClass int

const (
	NonCoding BiotypeClass = iota
	Coding
)

const (
	biotypeNMD   = "nonsense_mediated_decay"
	biotypeMiRNA = "miRNA"
)

var codingBiotypes = map[string]bool{
	biotypeNMD:                          true,
	"IG_C_gene":                         true,
	"IG_D_gene":                         true,
	"IG_J_gene":                         true,
	"IG_V_gene":                         true,
	"TR_C_gene":                         true,
	"TR_D_gene":                         true,
	"TR_J_gene":                         true,
	"TR_V_gene":                         true,
	"polymorphic_pseudogene":            true,
	"protein_coding":                    true,
	"non_stop_decay":                    true,
	"translated_processed_pseudogene":   true,
	"translated_unprocessed_pseudogene": true,
	"LRG_gene":                          true,
}

// ClassifyBiotype returns Coding for translated biotypes, NonCoding otherwise.
func ClassifyBiotype(biotype string) BiotypeClass {
	if codingBiotypes[biotype] {
		return Coding
	}
	return NonCoding
}
