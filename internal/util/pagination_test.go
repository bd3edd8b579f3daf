package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	cases := []struct {
		page, size   int
		offset, want int
	}{
		{1, 10, 0, 10},
		{3, 10, 20, 10},
		{0, 0, 0, DefaultPageSize},
		{-2, 500, 0, DefaultPageSize},
		{2, MaxPageSize, MaxPageSize, MaxPageSize},
	}
	for _, tc := range cases {
		offset, limit := Calculate(tc.page, tc.size)
		assert.Equal(t, tc.offset, offset, "page=%d size=%d", tc.page, tc.size)
		assert.Equal(t, tc.want, limit, "page=%d size=%d", tc.page, tc.size)
	}
}
