package catalog

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"2023-06-01", "2023-06-01", false},
		{"  2023-06-01  ", "2023-06-01", false},
		{"2023-06-01T15:04:05Z", "2023-06-01", false},
		{"2023-06-01 00:00:00", "2023-06-01", false},
		{"not-a-date", "", true},
		{"", "", true},
		{"2023-13-01", "", true},
	}

	for _, tt := range tests {
		got, err := ParseDate(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDate(%q): expected error, got %s", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDate(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got.String() != tt.want {
			t.Errorf("ParseDate(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestDateOrdering(t *testing.T) {
	a := NewDate(2023, time.January, 1)
	b := NewDate(2023, time.June, 1)

	if !a.Before(b) {
		t.Error("2023-01-01 should be before 2023-06-01")
	}
	if !b.After(a) {
		t.Error("2023-06-01 should be after 2023-01-01")
	}
	if a.Before(a) || a.After(a) {
		t.Error("a date is neither before nor after itself")
	}
	if !a.Equal(NewDate(2023, time.January, 1)) {
		t.Error("same calendar day should compare equal")
	}
}

func TestDateZeroValue(t *testing.T) {
	var d Date
	if !d.IsZero() {
		t.Error("zero value should report IsZero")
	}
	if d.String() != "" {
		t.Errorf("zero date String() = %q, want empty", d.String())
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(2024, time.March, 15)

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"2024-03-15"` {
		t.Errorf("marshal = %s, want %q", data, `"2024-03-15"`)
	}

	var back Date
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d) {
		t.Errorf("round trip = %s, want %s", back, d)
	}

	var fromNull Date
	if err := json.Unmarshal([]byte("null"), &fromNull); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !fromNull.IsZero() {
		t.Error("null should decode to the zero date")
	}

	var fromTimestamp Date
	if err := json.Unmarshal([]byte(`"2024-03-15T10:30:00Z"`), &fromTimestamp); err != nil {
		t.Fatalf("unmarshal timestamp: %v", err)
	}
	if !fromTimestamp.Equal(d) {
		t.Errorf("timestamp decoded to %s, want %s", fromTimestamp, d)
	}
}
