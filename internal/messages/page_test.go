package messages

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePage(t *testing.T) {
	tests := []struct {
		name string
		in   ListRequest
		want Page
	}{
		{"default limit", ListRequest{}, Page{Limit: 30, Direction: DirectionLatest}},
		{"limit above max", ListRequest{Limit: ptr(200)}, Page{Limit: 100, Direction: DirectionLatest}},
		{"zero limit", ListRequest{Limit: ptr(0)}, Page{Limit: 1, Direction: DirectionLatest}},
		{"negative limit", ListRequest{Limit: ptr(-5)}, Page{Limit: 1, Direction: DirectionLatest}},
		{"before cursor", ListRequest{BeforeID: "m1"}, Page{Limit: 30, Direction: DirectionBefore, Cursor: "m1"}},
		{"after cursor", ListRequest{AfterID: "m2"}, Page{Limit: 30, Direction: DirectionAfter, Cursor: "m2"}},
		{"before wins over after", ListRequest{BeforeID: "m1", AfterID: "m2"}, Page{Limit: 30, Direction: DirectionBefore, Cursor: "m1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, NormalizePage(tt.in))
		})
	}
}
