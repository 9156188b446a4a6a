package prediction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	data, err = Encode([]Prediction{{Content: "X (salt: 42)", Timestamp: 1000, Hash: "abc"}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"content":"X (salt: 42)","timestamp":1000,"hash":"abc"}]`, string(data))

	data, err = Encode([]Prediction{{Content: "Y", Timestamp: 1, Hash: "h", TxHash: "0xdead"}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"txHash":"0xdead"`)
}

func TestDecode(t *testing.T) {
	list, err := Decode(nil)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	list, err = Decode([]byte("null"))
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	list, err = Decode([]byte(`[{"content":"a","timestamp":1,"hash":"h1"},{"content":"b","timestamp":2,"hash":"h2","txHash":"0x1"}]`))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].Content)
	assert.Equal(t, "0x1", list[1].TxHash)

	_, err = Decode([]byte("{not json"))
	assert.ErrorIs(t, err, ErrDecode)

	_, err = Decode([]byte(`{"content":"a"}`))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestAppendDoesNotMutate(t *testing.T) {
	base := make([]Prediction, 1, 4)
	base[0] = Prediction{Content: "first"}

	a := Append(base, Prediction{Content: "a"})
	b := Append(base, Prediction{Content: "b"})

	assert.Len(t, base, 1)
	assert.Equal(t, "a", a[1].Content)
	assert.Equal(t, "b", b[1].Content)

	empty := Append(nil, Prediction{Content: "only"})
	assert.Len(t, empty, 1)
}

func TestClone(t *testing.T) {
	assert.Nil(t, Clone(nil))
	src := []Prediction{{Content: "a"}}
	dst := Clone(src)
	dst[0].Content = "b"
	assert.Equal(t, "a", src[0].Content)
	assert.NotNil(t, Clone([]Prediction{}))
}
