package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidConversion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"ascii", "Name,Email", true},
		{"latin", "José Müller, Françoise", true},
		{"cyrillic", "Счёт-фактура", true},
		{"cjk", "請求書", true},
		{"emoji", "paid 💸", true},
		{"empty", "", true},
		{"malformed utf-8", "Caf\xe9", false},
		{"replacement character", "Sya\xef\xbf\xbds", false},
		{"double encoded replacement", "Syaï¿½s", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidConversion(tt.input))
		})
	}
}
