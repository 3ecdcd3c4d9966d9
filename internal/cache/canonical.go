package cache

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// CanonicalOverrides maps gene symbol -> canonical transcript ID.
type CanonicalOverrides map[string]string

// transcriptColumns are header names, in order of preference, holding the
// override transcript.
var transcriptColumns = []string{"mskcc_tx", "enst_id", "canonical_transcript"}

// LoadCanonicalOverrides loads canonical transcript overrides from a TSV file
// with a header line. The gene symbol is the first column.
func LoadCanonicalOverrides(path string) (CanonicalOverrides, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open canonical overrides file: %w", err)
	}
	defer f.Close()

	return parseCanonicalOverrides(f)
}

// parseCanonicalOverrides parses the TSV content. The transcript column is
// picked by header name, falling back to the second column.
func parseCanonicalOverrides(reader io.Reader) (CanonicalOverrides, error) {
	overrides := make(CanonicalOverrides)
	scanner := bufio.NewScanner(reader)

	if !scanner.Scan() {
		return overrides, scanner.Err()
	}
	col := transcriptColumn(strings.Split(scanner.Text(), "\t"))

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) <= col {
			continue
		}

		gene, transcript := fields[0], fields[col]
		if gene == "" || transcript == "" || transcript == "nan" {
			continue
		}
		overrides[gene] = stripVersion(transcript)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan canonical overrides: %w", err)
	}
	return overrides, nil
}

func transcriptColumn(header []string) int {
	for _, name := range transcriptColumns {
		for i, h := range header {
			if strings.TrimSpace(h) == name {
				return i
			}
		}
	}
	return 1
}
