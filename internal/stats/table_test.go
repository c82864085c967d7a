package stats

import "testing"

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Action", "Accuracy", "Tries"}
	rows := [][]string{
		{"Save", "97.50%", "12"},
		{"Quick open", "8.00%", "3"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Action     Accuracy Tries" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "Save         97.50%    12" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "Quick open    8.00%     3" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestFormatTableCountsCellWidth(t *testing.T) {
	lines := formatTable([]string{"Keys", "N"}, [][]string{{"⌘+P", "1"}, {"Ctrl+W", "2"}}, nil)
	if lines[1] != "⌘+P    1" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
}

func TestFormatTablePadsShortRows(t *testing.T) {
	lines := formatTable(nil, [][]string{{"gg", "3"}, {"dd"}}, map[int]bool{1: true})
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[1] != "dd  " {
		t.Fatalf("unexpected short row: %q", lines[1])
	}
	if formatTable(nil, nil, nil) != nil {
		t.Fatalf("expected no lines for an empty table")
	}
}
