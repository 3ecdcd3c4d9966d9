package annotate

import (
	"errors"
	"fmt"
)

// ErrInvalidCodon is returned for anything that is not one of the 64
// uppercase ACGT triplets.
var ErrInvalidCodon = errors.New("invalid codon")

// Standard genetic code: DNA codon to amino acid (single letter).
var codonTable = map[string]byte{
	"TTT": 'F', "TTC": 'F', "TTA": 'L', "TTG": 'L',
	"TCT": 'S', "TCC": 'S', "TCA": 'S', "TCG": 'S',
	"TAT": 'Y', "TAC": 'Y', "TAA": '*', "TAG": '*',
	"TGT": 'C', "TGC": 'C', "TGA": '*', "TGG": 'W',

	"CTT": 'L', "CTC": 'L', "CTA": 'L', "CTG": 'L',
	"CCT": 'P', "CCC": 'P', "CCA": 'P', "CCG": 'P',
	"CAT": 'H', "CAC": 'H', "CAA": 'Q', "CAG": 'Q',
	"CGT": 'R', "CGC": 'R', "CGA": 'R', "CGG": 'R',

	"ATT": 'I', "ATC": 'I', "ATA": 'I', "ATG": 'M',
	"ACT": 'T', "ACC": 'T', "ACA": 'T', "ACG": 'T',
	"AAT": 'N', "AAC": 'N', "AAA": 'K', "AAG": 'K',
	"AGT": 'S', "AGC": 'S', "AGA": 'R', "AGG": 'R',

	"GTT": 'V', "GTC": 'V', "GTA": 'V', "GTG": 'V',
	"GCT": 'A', "GCC": 'A', "GCA": 'A', "GCG": 'A',
	"GAT": 'D', "GAC": 'D', "GAA": 'E', "GAG": 'E',
	"GGT": 'G', "GGC": 'G', "GGA": 'G', "GGG": 'G',
}

// Vertebrate mitochondrial code (NCBI table 2). Differs from the standard
// code at four codons.
var mitochondrialCodonTable = func() map[string]byte {
	m := make(map[string]byte, len(codonTable))
	for k, v := range codonTable {
		m[k] = v
	}
	m["AGA"] = '*'
	m["AGG"] = '*'
	m["ATA"] = 'M'
	m["TGA"] = 'W'
	return m
}()

// AminoAcidSingleToThree converts single letter amino acid to three letter code.
var AminoAcidSingleToThree = map[byte]string{
	'A': "Ala", 'C': "Cys", 'D': "Asp", 'E': "Glu",
	'F': "Phe", 'G': "Gly", 'H': "His", 'I': "Ile",
	'K': "Lys", 'L': "Leu", 'M': "Met", 'N': "Asn",
	'P': "Pro", 'Q': "Gln", 'R': "Arg", 'S': "Ser",
	'T': "Thr", 'V': "Val", 'W': "Trp", 'Y': "Tyr",
	'*': "Ter", 'X': "Xaa",
}

func table(mt bool) map[string]byte {
	if mt {
		return mitochondrialCodonTable
	}
	return codonTable
}

// AminoAcid translates codon with the standard or the mitochondrial code.
func AminoAcid(mt bool, codon string) (byte, error) {
	aa, ok := table(mt)[codon]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCodon, codon)
	}
	return aa, nil
}

// IsStopCodon reports whether codon is a stop codon in the selected code.
// Invalid codons are never stops.
func IsStopCodon(mt bool, codon string) bool {
	return table(mt)[codon] == '*'
}

// IsSynonymousCodon reports whether two valid codons encode the same amino
// acid (or both stop).
func IsSynonymousCodon(mt bool, ref, alt string) bool {
	t := table(mt)
	a, ok1 := t[ref]
	b, ok2 := t[alt]
	return ok1 && ok2 && a == b
}

// ReverseComplement returns the reverse complement of a DNA sequence.
func ReverseComplement(seq string) string {
	n := len(seq)
	// Stack-allocate for typical variant ref/alt lengths (≤64 bases).
	var buf [64]byte
	var result []byte
	if n <= len(buf) {
		result = buf[:n]
	} else {
		result = make([]byte, n)
	}
	for i := 0; i < n; i++ {
		result[i] = Complement(seq[n-1-i])
	}
	return string(result)
}

// Complement returns the complement of a single base.
func Complement(base byte) byte {
	switch base {
	case 'A':
		return 'T'
	case 'T':
		return 'A'
	case 'G':
		return 'C'
	case 'C':
		return 'G'
	case 'a':
		return 't'
	case 't':
		return 'a'
	case 'g':
		return 'c'
	case 'c':
		return 'g'
	default:
		return 'N'
	}
}

// complementSeq complements every base without reversing.
func complementSeq(seq string) string {
	b := []byte(seq)
	for i := range b {
		b[i] = Complement(b[i])
	}
	return string(b)
}

// MutateCodon applies a mutation to a codon at a specific position.
// positionInCodon is 0, 1, or 2 (first, second, or third base).
func MutateCodon(codon string, positionInCodon int, newBase byte) string {
	if len(codon) != 3 || positionInCodon < 0 || positionInCodon > 2 {
		return codon
	}
	var buf [3]byte
	copy(buf[:], codon)
	buf[positionInCodon] = newBase
	return string(buf[:])
}
