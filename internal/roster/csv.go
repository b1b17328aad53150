package roster

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lumina-gala/backend/internal/models"
)

// ErrImportParse wraps any roster file problem: unreadable CSV, missing
// header row, or no recognizable name column.
var ErrImportParse = errors.New("roster import parse error")

// Header aliases recognized during import, case-sensitive to match the
// templates circulated to HR teams.
var (
	idHeaders   = []string{"工号", "ID", "id", "EmployeeID", "employee_id"}
	nameHeaders = []string{"姓名", "Name", "name"}
	deptHeaders = []string{"部门", "组织", "Dept", "Department", "department"}
)

// DefaultAvatarURL synthesizes a deterministic avatar for a participant so
// the winner cards never render empty portraits.
func DefaultAvatarURL(id string) string {
	return "https://api.dicebear.com/7.x/avataaars/svg?seed=" + url.QueryEscape(id)
}

func findColumn(headers []string, aliases []string) int {
	for i, h := range headers {
		for _, a := range aliases {
			if h == a {
				return i
			}
		}
	}
	return -1
}

// ParseRoster reads a roster CSV: a header row followed by one row per
// person. The name column is required; the id column falls back to the row's
// ordinal and the department to empty. Rows without a name are dropped
// rather than failing the whole import.
func ParseRoster(r io.Reader) ([]models.Participant, error) {
	br := bufio.NewReader(r)
	// Strip a UTF-8 BOM; spreadsheet exports routinely carry one.
	if head, err := br.Peek(3); err == nil && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		br.Discard(3)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	headers, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: missing header row", ErrImportParse)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	nameCol := findColumn(headers, nameHeaders)
	if nameCol < 0 {
		return nil, fmt.Errorf("%w: no name column (expected one of %s)", ErrImportParse, strings.Join(nameHeaders, ", "))
	}
	idCol := findColumn(headers, idHeaders)
	deptCol := findColumn(headers, deptHeaders)

	field := func(row []string, col int) string {
		if col < 0 || col >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[col])
	}

	var participants []models.Participant
	rowNum := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrImportParse, rowNum+2, err)
		}
		rowNum++

		name := field(row, nameCol)
		if name == "" {
			continue
		}
		id := field(row, idCol)
		if id == "" {
			id = strconv.Itoa(rowNum)
		}
		participants = append(participants, models.Participant{
			ID:         id,
			Name:       name,
			Department: field(row, deptCol),
			Avatar:     DefaultAvatarURL(id),
		})
	}
	return participants, nil
}

var recordExportHeader = []string{"Prize", "Draw Time", "ID", "Name", "Department"}

// WriteDrawRecords writes the winner list as CSV, one row per winner, newest
// record first. The output starts with a UTF-8 BOM so Excel opens CJK names
// correctly.
func WriteDrawRecords(w io.Writer, records []models.DrawRecord) error {
	if _, err := w.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(recordExportHeader); err != nil {
		return err
	}
	for _, record := range records {
		drawnAt := record.Timestamp.Format(time.DateTime)
		for _, winner := range record.Winners {
			row := []string{record.PrizeName, drawnAt, winner.ID, winner.Name, winner.Department}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
