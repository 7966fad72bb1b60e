package json

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snippet struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

func TestMarshalUnmarshal(t *testing.T) {
	in := snippet{Text: "石猴从石卵中迸出", Source: "西游记 第1页"}
	b, err := Marshal(in)
	require.NoError(t, err)

	var out snippet
	require.NoError(t, Unmarshal(b, &out))
	assert.Equal(t, in, out)
}

func TestNewDecoder(t *testing.T) {
	var out snippet
	require.NoError(t, NewDecoder(bytes.NewBufferString(`{"text":"花果山"}`)).Decode(&out))
	assert.Equal(t, "花果山", out.Text)
}

func TestConvert(t *testing.T) {
	src := map[string]any{"text": "水帘洞", "source": "第2页"}
	var dst snippet
	require.NoError(t, Convert(src, &dst))
	assert.Equal(t, "水帘洞", dst.Text)
	assert.Equal(t, "第2页", dst.Source)
}
