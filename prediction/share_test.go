package prediction

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeAgo(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	ts := now.UnixMilli()

	tests := []struct {
		elapsed time.Duration
		want    string
	}{
		{0, "just now"},
		{59 * time.Second, "just now"},
		{-time.Hour, "just now"},
		{time.Minute, "1 minute ago"},
		{90 * time.Minute, "1 hour ago"},
		{5 * time.Hour, "5 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{13 * 24 * time.Hour, "1 week ago"},
		{45 * 24 * time.Hour, "1 month ago"},
		{800 * 24 * time.Hour, "2 years ago"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, TimeAgo(ts-tt.elapsed.Milliseconds(), now))
		})
	}
}

func TestShareMessage(t *testing.T) {
	cfg := NewShareConfig()
	require.NoError(t, cfg.Validate())
	now := time.UnixMilli(1_700_000_000_000)

	p := Prediction{Content: "rain (salt: 7)", Timestamp: now.Add(-3 * 24 * time.Hour).UnixMilli(), Hash: "h", TxHash: "0xabc"}
	assert.Equal(t, `I predicted "rain (salt: 7)" 3 days ago. Verified on Base blockchain: https://basescan.org/tx/0xabc`,
		cfg.Message(p, now))

	p.TxHash = ""
	assert.True(t, strings.HasSuffix(cfg.Message(p, now), "Verified on Base blockchain: https://base.org"))
}

func TestShareIntentLink(t *testing.T) {
	cfg := NewShareConfig()
	msg := `I predicted "a+b & c" just now`
	link := cfg.IntentLink(msg)

	require.True(t, strings.HasPrefix(link, DefaultIntentURL))
	assert.NotContains(t, link, " ")
	assert.NotContains(t, link[len(DefaultIntentURL):], "+")

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, msg, u.Query().Get("text"))
}

func TestShareConfigValidate(t *testing.T) {
	cfg := NewShareConfig()
	cfg.ExplorerTxURL = " "
	assert.ErrorIs(t, cfg.Validate(), ErrMissingExplorerURL)

	cfg = NewShareConfig()
	cfg.IntentURL = ""
	assert.ErrorIs(t, cfg.Validate(), ErrMissingIntentURL)
}
