package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatter(t *testing.T) {
	f := NewFormatter("en", "Rs.")

	assert.Equal(t, "Rs. 1,234,567", f.Amount(1234567))
	assert.Equal(t, "Rs. 0", f.Amount(0))
	assert.Equal(t, "05 Jun 2024", f.Date(time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)))

	t.Run("labels", func(t *testing.T) {
		tests := map[string]string{
			"lab_fee":        "Lab Fee",
			"transport":      "Transport",
			"  sports  day ": "Sports Day",
		}
		for in, want := range tests {
			assert.Equal(t, want, f.Label(in), in)
		}
	})

	t.Run("bad locale and no currency", func(t *testing.T) {
		plain := NewFormatter("not a locale!", "")
		assert.Equal(t, "2,500", plain.Amount(2500))
	})
}
