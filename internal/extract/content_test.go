package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeContentText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "simple show operators",
			content: "BT (Hello) Tj (World) Tj ET",
			want:    "Hello World",
		},
		{
			name:    "line breaks from positioning",
			content: "(Line one) Tj 0 -14 Td (Line two) Tj",
			want:    "Line one\nLine two",
		},
		{
			name:    "escaped parentheses",
			content: `(a\(b\)c) Tj`,
			want:    "a(b)c",
		},
		{
			name:    "balanced nested parentheses",
			content: "(a(b)c) Tj",
			want:    "a(b)c",
		},
		{
			name:    "no literal strings",
			content: "q 1 0 0 1 0 0 cm Q",
			want:    "",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, DecodeContentText([]byte(tc.content)))
		})
	}
}
