package report

import (
	"errors"
	"testing"

	"github.com/nao1215/sitewalk/internal/model"
)

func TestFinalize(t *testing.T) {
	t.Parallel()

	t.Run("keeps order and shapes entries", func(t *testing.T) {
		t.Parallel()

		payload := Finalize(createTestRun().Records)

		if payload.Total != 3 || payload.Successes != 2 || payload.Failures != 1 {
			t.Errorf("unexpected counts %+v", payload)
		}
		if payload.Forms != 1 || payload.Clicks != 1 {
			t.Errorf("expected 1 form and 1 click, got %d and %d", payload.Forms, payload.Clicks)
		}

		wantURLs := []string{"https://example.test", "https://example.test/about", "https://example.test/broken"}
		for i, want := range wantURLs {
			if payload.Entries[i].URL != want {
				t.Errorf("entries[%d].URL = %q, want %q", i, payload.Entries[i].URL, want)
			}
		}

		failure := payload.Entries[2]
		if !failure.Failed() || failure.HasForm != nil || failure.ClickedButton != nil || failure.Depth != nil {
			t.Errorf("expected failure entry with url and error only, got %+v", failure)
		}
		success := payload.Entries[1]
		if success.Failed() || *success.HasForm || *success.Depth != 1 {
			t.Errorf("unexpected success entry %+v", success)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		payload := Finalize(nil)
		if payload.Total != 0 || payload.Entries == nil || len(payload.Entries) != 0 {
			t.Errorf("expected empty non-nil entries, got %+v", payload)
		}
	})

	t.Run("does not modify records", func(t *testing.T) {
		t.Parallel()

		rec := model.NewFailureRecord("https://example.test", 0, errors.New("boom"))
		records := []*model.VisitRecord{rec}
		Finalize(records)
		if rec.Error != "boom" || rec.URL != "https://example.test" {
			t.Errorf("record was modified: %+v", rec)
		}
	})
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Format
	}{
		{"json", FormatJSON},
		{"CSV", FormatCSV},
		{"markdown", FormatMarkdown},
		{"md", FormatMarkdown},
		{"text", FormatText},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil {
			t.Errorf("ParseFormat(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseFormat("xml"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}

	formats, err := ParseFormats([]string{"json", "csv", "JSON"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(formats) != 2 {
		t.Errorf("expected duplicates dropped, got %v", formats)
	}
	if FormatMarkdown.FileName() != "report.md" || FormatCSV.String() != "csv" {
		t.Error("unexpected format naming")
	}
}
