package postgres

import (
	"testing"

	"gogrid/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChange(t *testing.T) {
	change, err := ParseChange(`{"key":"jsonRawData","origin":"0192-abc","version":7}`)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultGridKey, change.Key)
	assert.Equal(t, core.InstanceID("0192-abc"), change.Origin)
	assert.Equal(t, int64(7), change.Version)
}

func TestParseChangeRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "jsonRawData"},
		{"missing key", `{"origin":"x"}`},
		{"blank key", `{"key":"  "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseChange(tt.payload)
			assert.Error(t, err)
		})
	}
}
