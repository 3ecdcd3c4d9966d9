// Package alphamissense provides AlphaMissense pathogenicity score lookups
// backed by DuckDB. AlphaMissense data is loaded from the official TSV files
// (Cheng et al., Science 2023, CC BY 4.0).
package alphamissense

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-csq/internal/cache"
)

// amEntry is a compact in-memory representation of an AlphaMissense variant.
type amEntry struct {
	pos    int64
	refAlt uint8 // encodeBase(ref)<<2 | encodeBase(alt)
	score  float32
	class  uint8 // 0=likely_benign, 1=ambiguous, 2=likely_pathogenic
}

func encodeBase(b byte) uint8 {
	switch b {
	case 'A', 'a':
		return 0
	case 'C', 'c':
		return 1
	case 'G', 'g':
		return 2
	case 'T', 't':
		return 3
	}
	return 0
}

func encodeClass(class string) uint8 {
	switch class {
	case "likely_benign":
		return 0
	case "ambiguous":
		return 1
	case "likely_pathogenic":
		return 2
	}
	return 1
}

var classNames = [3]string{"likely_benign", "ambiguous", "likely_pathogenic"}

// Store provides AlphaMissense score lookups backed by DuckDB.
// Chromosomes are stored without the "chr" prefix.
type Store struct {
	db *sqlx.DB

	// In-memory cache: sorted slices per chromosome for O(log n) lookup.
	memCache map[string][]amEntry
}

// Open opens or creates a DuckDB database for AlphaMissense data at the given path.
// Use an empty string for an in-memory database.
func Open(dbPath string) (*Store, error) {
	if dbPath != "" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sqlx.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS alphamissense (
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		am_pathogenicity DOUBLE,
		am_class VARCHAR
	)`); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_am_lookup ON alphamissense (chrom, pos)`)
	return err
}

// Loaded returns true if the AlphaMissense table has data.
func (s *Store) Loaded() bool {
	n, err := s.Count()
	return err == nil && n > 0
}

// Count returns the number of rows in the AlphaMissense table.
func (s *Store) Count() (int64, error) {
	var count int64
	if err := s.db.Get(&count, "SELECT COUNT(*) FROM alphamissense"); err != nil {
		return 0, fmt.Errorf("count alphamissense rows: %w", err)
	}
	return count, nil
}

// Load replaces the table contents with an AlphaMissense TSV file,
// optionally gzip-compressed. Comment lines are skipped; the "#CHROM"
// header locates the score columns:
//
//	#CHROM  POS  REF  ALT  genome  uniprot_id  transcript_id  protein_variant  am_pathogenicity  am_class
func (s *Store) Load(tsvPath string) error {
	f, err := os.Open(tsvPath)
	if err != nil {
		return fmt.Errorf("open AlphaMissense file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(tsvPath, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("open gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM alphamissense`); err != nil {
		return fmt.Errorf("clear alphamissense: %w", err)
	}
	stmt, err := tx.Preparex(`INSERT INTO alphamissense VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	scoreIdx, classIdx := 8, 9
	scanner := bufio.NewScanner(reader)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.HasPrefix(line, "#CHROM") {
			scoreIdx, classIdx = headerColumns(line, scoreIdx, classIdx)
			continue
		}
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) <= max(scoreIdx, classIdx) {
			return fmt.Errorf("line %d: expected at least %d columns, got %d", lineNum, max(scoreIdx, classIdx)+1, len(fields))
		}
		pos, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid position %q", lineNum, fields[1])
		}
		score, err := strconv.ParseFloat(fields[scoreIdx], 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid score %q", lineNum, fields[scoreIdx])
		}
		if _, err := stmt.Exec(cache.NormalizeChrom(fields[0]), pos,
			strings.ToUpper(fields[2]), strings.ToUpper(fields[3]), score, fields[classIdx]); err != nil {
			return fmt.Errorf("line %d: insert: %w", lineNum, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading AlphaMissense file: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load: %w", err)
	}
	s.memCache = nil
	return nil
}

func headerColumns(header string, scoreIdx, classIdx int) (int, int) {
	for i, col := range strings.Split(header, "\t") {
		switch col {
		case "am_pathogenicity":
			scoreIdx = i
		case "am_class":
			classIdx = i
		}
	}
	return scoreIdx, classIdx
}

// Result holds a single AlphaMissense lookup result.
type Result struct {
	Score float64 `db:"am_pathogenicity"`
	Class string  `db:"am_class"`
}

// PreloadToMemory loads all AlphaMissense data from DuckDB into sorted in-memory
// slices for O(log n) lookup without database overhead.
func (s *Store) PreloadToMemory() error {
	rows, err := s.db.Queryx("SELECT DISTINCT chrom, pos, ref, alt, am_pathogenicity, am_class FROM alphamissense ORDER BY chrom, pos")
	if err != nil {
		return fmt.Errorf("query alphamissense for preload: %w", err)
	}
	defer rows.Close()

	mem := make(map[string][]amEntry)
	for rows.Next() {
		var row struct {
			Key
			Result
		}
		if err := rows.StructScan(&row); err != nil {
			return fmt.Errorf("scan preload row: %w", err)
		}
		if len(row.Ref) != 1 || len(row.Alt) != 1 {
			continue // skip non-SNV entries
		}
		mem[row.Chrom] = append(mem[row.Chrom], amEntry{
			pos:    row.Pos,
			refAlt: encodeBase(row.Ref[0])<<2 | encodeBase(row.Alt[0]),
			score:  float32(row.Score),
			class:  encodeClass(row.Class),
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("preload rows: %w", err)
	}

	s.memCache = mem
	return nil
}

// MemCacheSize returns the number of variants in the in-memory cache, or 0 if not loaded.
func (s *Store) MemCacheSize() int64 {
	var n int64
	for _, entries := range s.memCache {
		n += int64(len(entries))
	}
	return n
}

// Lookup queries the AlphaMissense score for a specific variant.
// Uses the in-memory cache if available, otherwise falls back to DuckDB.
func (s *Store) Lookup(chrom string, pos int64, ref, alt string) (Result, bool) {
	chrom = cache.NormalizeChrom(chrom)
	if s.memCache != nil {
		return s.lookupMemory(chrom, pos, ref, alt)
	}

	var r Result
	err := s.db.Get(&r,
		"SELECT am_pathogenicity, am_class FROM alphamissense WHERE chrom=? AND pos=? AND ref=? AND alt=? LIMIT 1",
		chrom, pos, strings.ToUpper(ref), strings.ToUpper(alt))
	if err != nil {
		return Result{}, false
	}
	return r, true
}

func (s *Store) lookupMemory(chrom string, pos int64, ref, alt string) (Result, bool) {
	if len(ref) != 1 || len(alt) != 1 {
		return Result{}, false
	}
	entries := s.memCache[chrom]
	target := encodeBase(ref[0])<<2 | encodeBase(alt[0])
	i := sort.Search(len(entries), func(i int) bool { return entries[i].pos >= pos })
	for ; i < len(entries) && entries[i].pos == pos; i++ {
		if entries[i].refAlt == target {
			return Result{Score: float64(entries[i].score), Class: classNames[entries[i].class]}, true
		}
	}
	return Result{}, false
}

// Key identifies a variant for batch lookup.
type Key struct {
	Chrom string `db:"chrom"`
	Pos   int64  `db:"pos"`
	Ref   string `db:"ref"`
	Alt   string `db:"alt"`
}

// batchChunk bounds the number of positions bound into one query.
const batchChunk = 1000

// BatchLookup queries AlphaMissense scores for a batch of variants.
// Keys are matched after chromosome normalization and uppercasing.
func (s *Store) BatchLookup(keys []Key) (map[Key]Result, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	results := make(map[Key]Result, len(keys))
	wanted := make(map[Key]Key, len(keys))
	positions := make([]int64, 0, len(keys))
	for _, k := range keys {
		norm := Key{cache.NormalizeChrom(k.Chrom), k.Pos, strings.ToUpper(k.Ref), strings.ToUpper(k.Alt)}
		if s.memCache != nil {
			if r, ok := s.lookupMemory(norm.Chrom, norm.Pos, norm.Ref, norm.Alt); ok {
				results[k] = r
			}
			continue
		}
		wanted[norm] = k
		positions = append(positions, k.Pos)
	}

	for i := 0; i < len(positions); i += batchChunk {
		chunk := positions[i:min(i+batchChunk, len(positions))]
		query, args, err := sqlx.In(`SELECT chrom, pos, ref, alt, am_pathogenicity, am_class
			FROM alphamissense WHERE pos IN (?)`, chunk)
		if err != nil {
			return nil, fmt.Errorf("build batch query: %w", err)
		}
		rows, err := s.db.Queryx(s.db.Rebind(query), args...)
		if err != nil {
			return nil, fmt.Errorf("batch lookup query: %w", err)
		}
		for rows.Next() {
			var row struct {
				Key
				Result
			}
			if err := rows.StructScan(&row); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan batch result: %w", err)
			}
			orig, ok := wanted[row.Key]
			if !ok {
				continue
			}
			if _, exists := results[orig]; !exists {
				results[orig] = row.Result
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("batch lookup rows: %w", err)
		}
	}
	return results, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
