package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    VersionTag
		wantErr bool
	}{
		{in: "3.10.1", want: V(3, 10, 1)},
		{in: "3.11", want: V(3, 11, 0)},
		{in: " 3.9.0 ", want: V(3, 9, 0)},
		{in: "3", wantErr: true},
		{in: "3.x.0", wantErr: true},
		{in: "3.10.1.2", wantErr: true},
		{in: "-1.0.0", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVersion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersionTag_Compare(t *testing.T) {
	assert.Equal(t, 0, V(3, 10, 1).Compare(V(3, 10, 1)))
	assert.Equal(t, -1, V(3, 10, 1).Compare(V(3, 11, 0)))
	assert.Equal(t, 1, V(4, 0, 0).Compare(V(3, 99, 99)))
	assert.Equal(t, -1, V(3, 10, 0).Compare(V(3, 10, 1)))

	// Numeric, not lexical: 3.9 sorts before 3.10.
	assert.True(t, V(3, 9, 0).Less(V(3, 10, 0)))
	assert.False(t, V(3, 10, 0).Less(V(3, 9, 0)))
}

func TestVersionTag_String(t *testing.T) {
	assert.Equal(t, "3.10.1", V(3, 10, 1).String())
	assert.Equal(t, "0.0.0", VersionTag{}.String())
	assert.True(t, VersionTag{}.IsZero())
	assert.False(t, V(0, 0, 1).IsZero())
}

func TestVersionTag_TextRoundTrip(t *testing.T) {
	type doc struct {
		From VersionTag `json:"from"`
	}

	data, err := json.Marshal(map[string]VersionTag{"from": V(3, 10, 1)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"3.10.1"}`, string(data))

	var d doc
	require.NoError(t, json.Unmarshal([]byte(`{"from":"3.11.0"}`), &d))
	assert.Equal(t, V(3, 11, 0), d.From)

	assert.Error(t, json.Unmarshal([]byte(`{"from":"nope"}`), &d))
}

func TestMustParseVersion_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParseVersion("bad") })
	assert.Equal(t, V(3, 8, 0), MustParseVersion("3.8.0"))
}
