package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBusinessName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Sveriges Television AB", "sveriges television"},
		{"Acme, Inc.", "acme"},
		{"Acme Holdings AB", "acme"},
		{"Globex Corp", "globex"},
		{"Initech GmbH", "initech"},
		{"Nestlé S.A.", "nestlé"},
		{"Eyevinn Technology", "eyevinn technology"},
		{"Group", "group"},
		{"AB", "ab"},
		{"Abba", "abba"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeBusinessName(tt.in))
		})
	}
}

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://svt.se", "svt.se"},
		{"http://www.svt.se", "svt.se"},
		{"WWW.SVT.SE/nyheter", "svt.se"},
		{"svt.se", "svt.se"},
		{"https://www.eyevinn.se:8443/about?x=1", "eyevinn.se"},
		{"  ", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractDomain(tt.in))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jonas@eyevinn.se", NormalizeEmail("  Jonas@Eyevinn.SE "))
}
