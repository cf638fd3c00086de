package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Paging(t *testing.T) {
	tests := []struct {
		name   string
		f      Filter
		offset int
		limit  int
	}{
		{"zero value", Filter{}, 0, DefaultPageSize},
		{"third page of ten", Filter{Page: 3, PageSize: 10}, 20, 10},
		{"page size clamped", Filter{Page: 2, PageSize: 500}, MaxPageSize, MaxPageSize},
		{"negative page", Filter{Page: -4, PageSize: 10}, 0, 10},
		{"default filter", DefaultFilter(), 0, DefaultPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.offset, tt.f.Offset())
			assert.Equal(t, tt.limit, tt.f.Limit())
		})
	}
}
