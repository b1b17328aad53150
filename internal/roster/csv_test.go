package roster

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/lumina-gala/backend/internal/models"
)

func TestParseRoster(t *testing.T) {
	t.Run("full columns with BOM", func(t *testing.T) {
		input := "\xEF\xBB\xBF工号,姓名,部门\nEMP001,张三,技术部\nEMP002,Lisa,市场部\n"
		got, err := ParseRoster(strings.NewReader(input))
		if err != nil {
			t.Fatalf("ParseRoster: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("parsed %d rows, want 2", len(got))
		}
		if got[0].ID != "EMP001" || got[0].Name != "张三" || got[0].Department != "技术部" {
			t.Errorf("row 0 = %+v", got[0])
		}
		if got[0].Avatar == "" {
			t.Error("expected a synthesized avatar")
		}
	})

	t.Run("english headers", func(t *testing.T) {
		input := "ID,Name,Department\n7,Ann,Ops\n"
		got, err := ParseRoster(strings.NewReader(input))
		if err != nil {
			t.Fatalf("ParseRoster: %v", err)
		}
		if len(got) != 1 || got[0].ID != "7" || got[0].Name != "Ann" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("missing id column falls back to row ordinal", func(t *testing.T) {
		input := "姓名,部门\n张三,技术部\n李四,行政部\n"
		got, err := ParseRoster(strings.NewReader(input))
		if err != nil {
			t.Fatalf("ParseRoster: %v", err)
		}
		if got[0].ID != "1" || got[1].ID != "2" {
			t.Errorf("ids = %s, %s, want 1, 2", got[0].ID, got[1].ID)
		}
	})

	t.Run("rows without a name are dropped", func(t *testing.T) {
		input := "姓名,工号\n张三,EMP001\n,EMP002\n  ,EMP003\n李四,EMP004\n"
		got, err := ParseRoster(strings.NewReader(input))
		if err != nil {
			t.Fatalf("ParseRoster: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("parsed %d rows, want 2", len(got))
		}
		if got[1].Name != "李四" {
			t.Errorf("row 1 = %+v", got[1])
		}
	})

	t.Run("missing name column fails", func(t *testing.T) {
		input := "工号,部门\nEMP001,技术部\n"
		_, err := ParseRoster(strings.NewReader(input))
		if !errors.Is(err, ErrImportParse) {
			t.Fatalf("err = %v, want ErrImportParse", err)
		}
	})

	t.Run("empty input fails", func(t *testing.T) {
		_, err := ParseRoster(strings.NewReader(""))
		if !errors.Is(err, ErrImportParse) {
			t.Fatalf("err = %v, want ErrImportParse", err)
		}
	})
}

func TestWriteDrawRecords(t *testing.T) {
	records := []models.DrawRecord{
		{
			ID:        "record_2",
			Timestamp: time.Date(2026, 1, 30, 20, 15, 0, 0, time.UTC),
			PrizeName: "一等奖",
			Winners: []models.Participant{
				{ID: "EMP002", Name: "Lisa", Department: "市场部"},
			},
		},
		{
			ID:        "record_1",
			Timestamp: time.Date(2026, 1, 30, 20, 0, 0, 0, time.UTC),
			PrizeName: "二等奖",
			Winners: []models.Participant{
				{ID: "EMP001", Name: "张三", Department: "技术部"},
				{ID: "EMP003", Name: "王五", Department: "行政部"},
			},
		},
	}

	var buf bytes.Buffer
	if err := WriteDrawRecords(&buf, records); err != nil {
		t.Fatalf("WriteDrawRecords: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "\xEF\xBB\xBF") {
		t.Error("output missing UTF-8 BOM")
	}

	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(out, "\xEF\xBB\xBF")), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want header plus 3 winners", len(lines))
	}
	if lines[0] != "Prize,Draw Time,ID,Name,Department" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "一等奖,2026-01-30 20:15:00,EMP002,Lisa,市场部" {
		t.Errorf("line 1 = %q", lines[1])
	}
	if lines[3] != "二等奖,2026-01-30 20:00:00,EMP003,王五,行政部" {
		t.Errorf("line 3 = %q", lines[3])
	}
}
