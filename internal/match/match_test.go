package match

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"topicpush/internal/model"
)

func TestFindMatches(t *testing.T) {
	items := []model.Item{
		{ID: "A", TopicMask: 1},
		{ID: "B", TopicMask: 2},
		{ID: "C", TopicMask: 4},
		{ID: "D", TopicMask: 0},
		{ID: "E", TopicMask: 31},
	}

	tests := []struct {
		name string
		mask int64
		want []string
	}{
		{name: "zero mask matches nothing", mask: 0, want: nil},
		{name: "single bit", mask: 2, want: []string{"B", "E"}},
		{name: "any shared bit is enough", mask: 5, want: []string{"A", "C", "E"}},
		{name: "all bits keeps scan order", mask: 31, want: []string{"A", "B", "C", "E"}},
		{name: "bit outside any item", mask: 64, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindMatches(tt.mask, items)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FindMatches() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFindMatchesIsBitwiseAnd(t *testing.T) {
	for user := int64(0); user < 32; user++ {
		for item := int64(0); item < 32; item++ {
			got := FindMatches(user, []model.Item{{ID: "x", TopicMask: item}})
			want := user&item != 0
			if (len(got) == 1) != want {
				t.Fatalf("user %05b item %05b: matched=%v, want %v", user, item, len(got) == 1, want)
			}
		}
	}
}
