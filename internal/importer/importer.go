package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"doorprize/internal/models"

	"github.com/google/uuid"
)

const (
	ColName            = "Name"
	ColEmail           = "Email"
	ColPhone           = "Phone"
	ColInstitutionType = "Institution Type"
	ColInstitution     = "Institution"
	ColTotalScore      = "Total Score"
)

var (
	ErrMissingColumn = errors.New("missing required column")
	ErrMissingName   = errors.New("name is empty")
	ErrInvalidScore  = errors.New("score is not a number")
)

// candidateNamespace scopes the name-based UUIDs used as candidate ids.
var candidateNamespace = uuid.MustParse("6f1c7f0e-3d55-4c44-9d0e-2b7f0c0c5a11")

// RowError describes a row that was rejected or imported with a defaulted
// value.
type RowError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: %s %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Result is the outcome of a CSV import.
// Rejected rows and rows imported with an invalid score both appear in Warnings.
type Result struct {
	Candidates []models.Candidate
	Warnings   []*RowError
}

// Parse reads a header-first participant CSV. Rows are parsed independently;
// only a malformed file or a missing required column fails the whole import.
func Parse(r io.Reader) (Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return Result{}, fmt.Errorf("%w: %s", ErrMissingColumn, ColName)
	}
	if err != nil {
		return Result{}, fmt.Errorf("reading CSV header: %w", err)
	}

	cols := indexColumns(header)
	for _, required := range []string{ColName, ColTotalScore} {
		if _, ok := cols[strings.ToLower(required)]; !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	var res Result
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("reading CSV: %w", err)
		}
		line, _ := reader.FieldPos(0)

		if blank(record) {
			continue
		}

		field := func(col string) string {
			i, ok := cols[strings.ToLower(col)]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		c := models.Candidate{
			Name:            field(ColName),
			Email:           field(ColEmail),
			Phone:           field(ColPhone),
			Institution:     field(ColInstitution),
			InstitutionType: field(ColInstitutionType),
		}
		if c.Name == "" {
			res.Warnings = append(res.Warnings, &RowError{Line: line, Column: ColName, Err: ErrMissingName})
			continue
		}

		raw := field(ColTotalScore)
		score, err := parseScore(raw)
		if err != nil {
			res.Warnings = append(res.Warnings, &RowError{Line: line, Column: ColTotalScore, Value: raw, Err: err})
		}
		c.TotalScore = score

		res.Candidates = append(res.Candidates, c)
	}

	AssignIDs(res.Candidates)
	return res, nil
}

// parseScore coerces a score cell. An empty cell counts as 0; anything that is
// not a finite number yields an invalid score and ErrInvalidScore.
func parseScore(raw string) (models.Score, error) {
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return models.InvalidScore(), ErrInvalidScore
	}
	return models.Score(f), nil
}

// AssignIDs gives every candidate without an id a deterministic one derived
// from name, email, phone and how many identical rows precede it. Importing the
// same file twice produces the same ids.
func AssignIDs(candidates []models.Candidate) {
	seen := make(map[string]int, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		key := strings.Join([]string{
			strings.ToLower(c.Name),
			strings.ToLower(c.Email),
			c.Phone,
		}, "\x1f")
		n := seen[key]
		seen[key] = n + 1
		if c.ID != "" {
			continue
		}
		c.ID = uuid.NewSHA1(candidateNamespace, []byte(key+"\x1f"+strconv.Itoa(n))).String()
	}
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
