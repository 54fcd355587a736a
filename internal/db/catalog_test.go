package db

import (
	"testing"

	"github.com/ballee/dbsync/internal/models"
)

func TestSortTables(t *testing.T) {
	specs := []models.TableSpec{
		{Schema: "public", Name: "notifications", Rank: 3},
		{Schema: "public", Name: "bookings", Rank: 2},
		{Schema: "public", Name: "tags", Rank: 0},
		{Schema: "auth", Name: "users", Rank: 0},
		{Schema: "public", Name: "events", Rank: 1},
	}

	SortTables(specs)

	want := []string{"auth.users", "public.tags", "public.events", "public.bookings", "public.notifications"}
	for i, name := range want {
		if specs[i].Qualified() != name {
			t.Errorf("Expected position %d to be %s, got %s", i, name, specs[i].Qualified())
		}
	}
}

func TestIntersect(t *testing.T) {
	tests := []struct {
		name   string
		target []string
		source []string
		want   []string
	}{
		{
			name:   "identical sets keep target order",
			target: []string{"id", "name", "created_at"},
			source: []string{"created_at", "id", "name"},
			want:   []string{"id", "name", "created_at"},
		},
		{
			name:   "source drift drops missing columns",
			target: []string{"id", "name", "archived"},
			source: []string{"id", "name", "legacy_flag"},
			want:   []string{"id", "name"},
		},
		{
			name:   "no overlap",
			target: []string{"a"},
			source: []string{"b"},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Intersect(tt.target, tt.source)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("Expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}
