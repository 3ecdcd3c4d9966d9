package annotate

// DefaultBigVariantThreshold is the span (end-start) above which splice
// site detail is not reported.
const DefaultBigVariantThreshold = 50

// Junction is an intron in genomic coordinates together with the splice
// site terms of its left and right boundary. On the plus strand the left
// boundary is the donor; on the minus strand it is the acceptor.
type Junction struct {
	Start    int64 // first intronic base
	End      int64 // last intronic base
	LeftTag  string
	RightTag string
}

// Span is a closed genomic interval. Insertions are passed as
// [pos-1, pos], the two bases flanking the inserted sequence.
type Span struct {
	Start int64
	End   int64
}

// JunctionResult is the classification of a variant against one intron.
type JunctionResult struct {
	Terms []string
	// Splicing is set when the variant touches the splice region and
	// also reaches into the intron, so coding effects are not resolved.
	Splicing bool
	// Intronic is set when both variant ends lie inside the intron.
	Intronic bool
}

func overlaps(s1, e1, s2, e2 int64) bool {
	return s2 <= e1 && e2 >= s1
}

// ClassifyJunction classifies span against one intron boundary pair.
// Spans longer than threshold get no donor, acceptor or splice region
// term, while intron overlap is decided by plain interval overlap.
func ClassifyJunction(j Junction, span Span, threshold int64) JunctionResult {
	var r JunctionResult
	ss1, ss2 := j.Start, j.End
	vs, ve := span.Start, span.End
	small := ve-vs <= threshold

	if overlaps(ss1+2, ss2-2, vs, ve) {
		r.Terms = append(r.Terms, IntronVariant)
	}
	r.Intronic = vs >= ss1 && ve <= ss2

	// Introns can be shorter than the splice windows, even a single base.
	switch {
	case overlaps(ss1, ss1+1, vs, ve):
		if small {
			r.Terms = append(r.Terms, j.LeftTag)
		}
		r.Splicing = vs <= ss2 || ve <= ss2
	case overlaps(ss1+2, ss1+7, vs, ve):
		if small {
			r.Terms = append(r.Terms, SpliceRegionVariant)
		}
		r.Splicing = vs <= ss2 || ve <= ss2
	case overlaps(ss1-3, ss1-1, vs, ve) && small:
		r.Terms = append(r.Terms, SpliceRegionVariant)
	}

	switch {
	case overlaps(ss2-1, ss2, vs, ve):
		if small {
			r.Terms = append(r.Terms, j.RightTag)
		}
		r.Splicing = ss1 <= vs || ss1 <= ve
	case overlaps(ss2-7, ss2-2, vs, ve):
		if small {
			r.Terms = append(r.Terms, SpliceRegionVariant)
		}
		r.Splicing = ss1 <= vs || ss1 <= ve
	case overlaps(ss2+1, ss2+3, vs, ve) && small:
		r.Terms = append(r.Terms, SpliceRegionVariant)
	}

	return r
}

// ClassifyInsertionJunction classifies an insertion span [pos-1, pos].
// Bases inserted exactly at an exon/intron boundary belong to the exon
// and are reported as splice region; insertions just outside the splice
// windows are not.
func ClassifyInsertionJunction(j Junction, span Span) JunctionResult {
	var r JunctionResult
	ss1, ss2 := j.Start, j.End
	vs, ve := span.Start, span.End

	if overlaps(ss1+2, ss2-2, vs, ve) {
		r.Terms = append(r.Terms, IntronVariant)
	}
	r.Intronic = vs >= ss1 && ve <= ss2

	switch {
	case overlaps(ss1, ss1+1, vs, ve):
		switch ve {
		case ss1:
			r.Terms = append(r.Terms, SpliceRegionVariant)
		case ss1 + 2:
			r.Terms = append(r.Terms, SpliceRegionVariant)
			r.Splicing = ss2 > vs
		default:
			r.Terms = append(r.Terms, j.LeftTag)
			r.Splicing = ss2 > vs
		}
	case overlaps(ss1+2, ss1+7, vs, ve):
		if vs != ss1+7 {
			r.Terms = append(r.Terms, SpliceRegionVariant)
		}
		r.Splicing = vs <= ss2 || ve <= ss2
	case overlaps(ss1-3, ss1-1, vs, ve) && ve != ss1-3:
		r.Terms = append(r.Terms, SpliceRegionVariant)
	}

	switch {
	case overlaps(ss2-1, ss2, vs, ve):
		switch vs {
		case ss2:
			r.Terms = append(r.Terms, SpliceRegionVariant)
		case ss2 - 2:
			r.Terms = append(r.Terms, SpliceRegionVariant)
			r.Splicing = ss1 < ve
		default:
			r.Terms = append(r.Terms, j.RightTag)
			r.Splicing = ss1 < ve
		}
	case overlaps(ss2-7, ss2-2, vs, ve):
		if ve != ss2-7 {
			r.Terms = append(r.Terms, SpliceRegionVariant)
		}
		r.Splicing = ss1 <= vs || ss1 <= ve
	case overlaps(ss2+1, ss2+3, vs, ve) && vs != ss2+3:
		r.Terms = append(r.Terms, SpliceRegionVariant)
	}

	return r
}
