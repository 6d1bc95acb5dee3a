package chore

import (
	"testing"

	"github.com/dukerupert/chorewheel/internal/model"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    model.ChoreStatus
		wantErr bool
	}{
		{in: "pending", want: model.ChoreStatusPending},
		{in: "done", want: model.ChoreStatusDone},
		{in: "Done", wantErr: true},
		{in: "completed", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseStatus(%q) = %q, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStatus(%q): %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseStatus(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeTitle(t *testing.T) {
	if got := NormalizeTitle("  Wash dishes \n"); got != "Wash dishes" {
		t.Errorf("NormalizeTitle = %q, want %q", got, "Wash dishes")
	}
	if got := NormalizeTitle("   "); got != "" {
		t.Errorf("NormalizeTitle = %q, want empty", got)
	}
}

func TestPending(t *testing.T) {
	chores := []model.Chore{
		{ID: "a", Status: model.ChoreStatusPending},
		{ID: "b", Status: model.ChoreStatusDone},
		{ID: "c", Status: model.ChoreStatusPending},
	}
	got := Pending(chores)
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("Pending = %v, want [0 2]", got)
	}
}
