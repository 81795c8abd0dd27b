package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"single", []string{"a:9092"}, []string{"a:9092"}},
		{"comma joined", []string{"a:9092,b:9092"}, []string{"a:9092", "b:9092"}},
		{"whitespace and duplicates", []string{" a:9092 ", "b:9092, a:9092", "", " , "}, []string{"a:9092", "b:9092"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.in))
		})
	}
}
