package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeFilters(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"case and space", []string{" Coworking ", "POOL"}, []string{"coworking", "pool"}},
		{"comma list", []string{"pool,coworking"}, []string{"coworking", "pool"}},
		{"repeats and blanks", []string{"pool", "", "Pool", " , "}, []string{"pool"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeFilters(tt.in))
		})
	}
}

func TestSearchParamsFilterSpellings(t *testing.T) {
	base := SearchParams{City: "lisbon", Guests: 1}

	a, b, c := base, base, base
	a.Filters = []string{"Coworking", "pool"}
	b.Filters = []string{"pool,coworking"}
	c.Filters = []string{"coworking", "pool", "POOL"}

	assert.Equal(t, a.Params(), b.Params())
	assert.Equal(t, a.Params(), c.Params())
	assert.Equal(t, "coworking,pool", a.Params()["filters"])
}
