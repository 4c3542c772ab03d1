package pagination

import (
	"math"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		query string
		want  Params
	}{
		{"", Params{Page: 1, PerPage: DefaultPerPage}},
		{"?page=3&per_page=10", Params{Page: 3, PerPage: 10}},
		{"?page=0&per_page=-5", Params{Page: 1, PerPage: DefaultPerPage}},
		{"?page=abc&per_page=1000", Params{Page: 1, PerPage: MaxPerPage}},
		{"?page=9223372036854775807&per_page=20", Params{Page: MaxPage, PerPage: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/patients"+tt.query, nil)
			assert.Equal(t, tt.want, FromRequest(r))
		})
	}
}

func TestOffset_NeverNegative(t *testing.T) {
	for _, perPage := range []int{1, DefaultPerPage, MaxPerPage, math.MaxInt} {
		p := New(math.MaxInt, perPage)
		assert.GreaterOrEqual(t, p.Offset(), 0)
		assert.LessOrEqual(t, p.Offset(), math.MaxInt32)
	}

	p := New(math.MaxInt, MaxPerPage)
	resp := NewResponse([]int{}, 5, p)
	assert.False(t, resp.HasMore)
}

func TestResponse(t *testing.T) {
	p := New(2, 10)
	assert.Equal(t, 10, p.Offset())

	resp := NewResponse([]int{1}, 25, p)
	assert.True(t, resp.HasMore)

	resp = NewResponse([]int{1}, 20, p)
	assert.False(t, resp.HasMore)
}
