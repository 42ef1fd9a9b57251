package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIssueType(t *testing.T) {
	tests := []struct {
		input  string
		want   IssueType
		wantOK bool
	}{
		{"bug", TypeBug, true},
		{"EPIC", TypeEpic, true},
		{" Story ", TypeStory, true},
		{"Spike", IssueType("Spike"), false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseIssueType(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestIssueClone(t *testing.T) {
	orig := Issue{
		Key:      "ABC-1",
		Labels:   []string{"a"},
		Parent:   &IssueRef{Key: "ABC-0"},
		Metadata: map[string]string{"k": "v"},
	}

	c := orig.Clone()
	c.Labels[0] = "b"
	c.Parent.Key = "ABC-9"
	c.Metadata["k"] = "x"

	assert.Equal(t, "a", orig.Labels[0])
	assert.Equal(t, "ABC-0", orig.Parent.Key)
	assert.Equal(t, "v", orig.Metadata["k"])
}

func TestFixVersion(t *testing.T) {
	assert.Equal(t, "", Issue{}.FixVersion())
	assert.Equal(t, "1.2", Issue{FixVersions: []string{"1.2", "1.3"}}.FixVersion())
}
