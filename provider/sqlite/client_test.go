package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/foretell-app/foretell/provider/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryClient(t *testing.T) *Client {
	cfg := NewConfig()
	cfg.Path = MemoryPath
	client, err := NewClient(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestConfigValidate(t *testing.T) {
	cfg := NewConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Path = " "
	assert.ErrorIs(t, cfg.Validate(), ErrEmptyPath)

	cfg = NewConfig()
	cfg.Table = "kv; DROP TABLE x"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidTable)

	cfg = NewConfig()
	cfg.TimeoutMs = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidTimeout)
}

func TestClientImplementsKV(t *testing.T) {
	var _ kv.KV = newMemoryClient(t)
}

func TestClientSetGetDelete(t *testing.T) {
	client := newMemoryClient(t)

	v, err := client.Get("predictions")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, client.Set("predictions", []byte(`[]`)))
	v, err = client.Get("predictions")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(v))

	// overwrite replaces the whole value
	require.NoError(t, client.Set("predictions", []byte(`[{"content":"a"}]`)))
	v, err = client.Get("predictions")
	require.NoError(t, err)
	assert.Equal(t, `[{"content":"a"}]`, string(v))

	binary := []byte{0x00, 0xff, 0x27, 0x22, 0x00}
	require.NoError(t, client.Set("bin", binary))
	v, err = client.Get("bin")
	require.NoError(t, err)
	assert.Equal(t, binary, v)

	require.NoError(t, client.Delete("predictions"))
	v, err = client.Get("predictions")
	require.NoError(t, err)
	assert.Nil(t, v)

	assert.ErrorIs(t, client.Set("", nil), kv.ErrEmptyKey)
}

func TestClientTTL(t *testing.T) {
	client := newMemoryClient(t)
	now := time.UnixMilli(1_000_000)
	client.now = func() time.Time { return now }

	require.NoError(t, client.SetTTL("short", []byte("1"), time.Second))
	require.NoError(t, client.SetTTL("long", []byte("2"), time.Hour))
	require.NoError(t, client.Set("forever", []byte("3")))

	now = now.Add(2 * time.Second)
	v, err := client.Get("short")
	require.NoError(t, err)
	assert.Nil(t, v)

	now = now.Add(2 * time.Hour)
	require.NoError(t, client.Prune())

	var count int
	require.NoError(t, client.Db().Get(&count, "SELECT COUNT(*) FROM "+DefaultTable))
	assert.Equal(t, 1, count)

	v, err = client.Get("forever")
	require.NoError(t, err)
	assert.Equal(t, "3", string(v))
}

func TestClientFilePersistence(t *testing.T) {
	cfg := NewConfig()
	cfg.Path = filepath.Join(t.TempDir(), "foretell.db")

	client, err := NewClient(cfg)
	require.NoError(t, err)
	require.NoError(t, client.Set("prediction_auth", []byte(`{"credentialId":"x"}`)))
	require.NoError(t, client.Close())

	client, err = NewClient(cfg)
	require.NoError(t, err)
	defer client.Close()
	v, err := client.Get("prediction_auth")
	require.NoError(t, err)
	assert.Equal(t, `{"credentialId":"x"}`, string(v))
}
