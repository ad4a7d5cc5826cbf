package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		kb       float64
		expected string
	}{
		{0, "0 Kb"},
		{16, "16 Kb"},
		{999, "999 Kb"},
		{1000, "1 Mb"},
		{1024, "1 Mb"},
		{512000, "500 Mb"},
		{1048576, "1.00 Gb"},
		{1572864, "1.50 Gb"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatSize(tt.kb))
		})
	}
}
