package pattern

import (
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
)

func TestRatio(t *testing.T) {
	dmp := diffmatchpatch.New()
	tests := []struct {
		a, b string
		want float64
	}{
		{"abc", "abc", 1},
		{"", "", 1},
		{"abc", "xyz", 0},
		{"abcd", "abce", 0.75},
		{"hello", "héllo", 0.8},
		{"what is saovs", "what is saovs?", 0.96},
	}
	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, ratio(dmp, tt.a, tt.b))
			assert.Equal(t, tt.want, ratio(dmp, tt.b, tt.a), "ratio is symmetric")
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "what is saovs?", normalize("  What   is\tSAOVS? "))
	assert.Equal(t, "", normalize("   "))
}
