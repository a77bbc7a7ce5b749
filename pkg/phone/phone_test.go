package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer("")
	assert.Equal(t, "BR", n.Region())

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "Success - national mobile", input: "(11) 96123-4567", want: "+5511961234567"},
		{name: "Success - national fixed line", input: "11 2345-6789", want: "+551123456789"},
		{name: "Success - international overrides region", input: "+1 201-555-0123", want: "+12015550123"},
		{name: "Error - empty", input: "", wantErr: true},
		{name: "Error - letters", input: "not a phone", wantErr: true},
		{name: "Error - too short", input: "123", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescribe(t *testing.T) {
	d, err := NewNormalizer("BR").Describe("11961234567")
	require.NoError(t, err)
	assert.Equal(t, "+5511961234567", d.E164)
	assert.Equal(t, "BR", d.Region)
	assert.True(t, d.Mobile)
	assert.Contains(t, d.International, "+55")
}
