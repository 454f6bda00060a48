// Package roster reads the hospital-wide admission roster workbook.
//
// The roster is a single-sheet xlsx export with a header row followed by one
// row per admitted patient, in this column order:
//
//	A no. | B room | C IDNO | D name | E gender/age | F insurance | G admission date
//	H days | I department | J physician | K surgery date | L diagnosis | M procedure
package roster

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrNoSheets is returned when the workbook contains no worksheets.
	ErrNoSheets = errors.New("workbook has no sheets")

	// ErrEmptyWorkbook is returned when the first sheet has no rows at all.
	ErrEmptyWorkbook = errors.New("roster sheet is empty")
)

// Column positions within a roster row.
const (
	colSeq = iota
	colRoom
	colExternalID
	colName
	colGenderAge
	colInsurance
	colAdmissionDate
	colLengthOfStay
	colDepartment
	colPhysician
	colSurgeryDate
	colDiagnosis
	colProcedure
)

// ReasonMissingExternalID is recorded on rows rejected for an empty IDNO.
const ReasonMissingExternalID = "missing external id"

// Upstream exports write these in place of an empty IDNO.
var placeholderIDs = map[string]bool{
	"undefined": true,
	"null":      true,
	"0":         true,
}

// Parse reads the first sheet of an xlsx workbook.
func Parse(r io.Reader) (*Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoSheets
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyWorkbook
	}

	res := ParseRows(rows)
	res.Sheet = sheets[0]
	return res, nil
}

// ParseBytes is Parse over an in-memory workbook.
func ParseBytes(data []byte) (*Result, error) {
	return Parse(bytes.NewReader(data))
}

// ParseRows converts raw sheet rows into records. The first row is the header
// and is always skipped.
func ParseRows(rows [][]string) *Result {
	res := &Result{}
	if len(rows) <= 1 {
		return res
	}

	for i, row := range rows[1:] {
		out := ParseRow(i+2, row)
		if out.Rejected {
			res.Rejected = append(res.Rejected, out)
			continue
		}
		res.Records = append(res.Records, out.Record)
	}
	return res
}

// ParseRow parses one data row. line is the 1-based sheet row number.
func ParseRow(line int, row []string) RowOutcome {
	externalID := cell(row, colExternalID)
	if externalID == "" || placeholderIDs[strings.ToLower(externalID)] {
		return RowOutcome{Line: line, Rejected: true, Reason: ReasonMissingExternalID}
	}

	gender, age := parseGenderAge(cell(row, colGenderAge))

	rec := Record{
		Line:          line,
		Seq:           intCell(row, colSeq),
		Room:          cell(row, colRoom),
		ExternalID:    externalID,
		Name:          cell(row, colName),
		Gender:        gender,
		Age:           age,
		Insurance:     cell(row, colInsurance),
		AdmissionDate: cell(row, colAdmissionDate),
		LengthOfStay:  intCell(row, colLengthOfStay),
		Department:    cell(row, colDepartment),
		PhysicianName: cell(row, colPhysician),
		SurgeryDate:   cell(row, colSurgeryDate),
		Diagnosis:     cell(row, colDiagnosis),
		Procedure:     cell(row, colProcedure),
	}
	return RowOutcome{Line: line, Record: rec}
}

// parseGenderAge splits values like "M/45". The part before the first slash
// must be M or F; anything else is an unknown gender, not an error.
func parseGenderAge(s string) (Gender, int) {
	if s == "" {
		return GenderUnknown, 0
	}
	head, tail, _ := strings.Cut(s, "/")

	var g Gender
	switch strings.ToUpper(strings.TrimSpace(head)) {
	case "M":
		g = GenderMale
	case "F":
		g = GenderFemale
	}
	return g, atoi(tail)
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return CleanCell(row[idx])
}

func intCell(row []string, idx int) int {
	return atoi(cell(row, idx))
}

// atoi returns 0 for anything that is not a whole number. Spreadsheet exports
// sometimes render integers as "12.0", so a float with no fraction is accepted.
func atoi(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) {
		return int(f)
	}
	return 0
}

// CleanCell strips spreadsheet export artifacts from a cell:
// surrounding whitespace, an ="..." formula wrapper and stray quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}
