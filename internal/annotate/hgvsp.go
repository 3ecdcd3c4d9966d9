package annotate

import (
	"fmt"
)

// FormatHGVSp formats the HGVS protein notation of a consequence type.
// Returns an empty string when no residue was resolved.
func FormatHGVSp(ct *ConsequenceType) string {
	if ct == nil || ct.Protein == nil || ct.Protein.Position < 1 || len(ct.Terms) == 0 {
		return ""
	}

	p := ct.Protein
	pos := p.Position
	ref, alt := p.Reference, p.Alternate

	// Terms are ordered most severe first.
	switch ct.Terms[0].Name {
	case MissenseVariant:
		return fmt.Sprintf("p.%s%d%s", ref, pos, alt)

	case SynonymousVariant, StopRetainedVariant:
		return fmt.Sprintf("p.%s%d=", ref, pos)

	case StopGained:
		return fmt.Sprintf("p.%s%dTer", ref, pos)

	case StopLost:
		if alt == "" {
			return fmt.Sprintf("p.Ter%dext*?", pos)
		}
		return fmt.Sprintf("p.Ter%d%sext*?", pos, alt)

	case InitiatorCodonVariant:
		return "p.Met1?"

	case FrameshiftVariant:
		if ref == "" {
			return fmt.Sprintf("p.%dfs", pos)
		}
		if alt == ref || alt == "Ter" {
			alt = ""
		}
		return fmt.Sprintf("p.%s%d%sfs", ref, pos, alt)

	case InframeDeletion:
		if ref == "" {
			return fmt.Sprintf("p.%ddel", pos)
		}
		return fmt.Sprintf("p.%s%ddel", ref, pos)

	case InframeInsertion:
		if ref == "" {
			return fmt.Sprintf("p.%d_%dins", pos, pos+1)
		}
		return fmt.Sprintf("p.%s%d_%dins", ref, pos, pos+1)

	default:
		return ""
	}
}
