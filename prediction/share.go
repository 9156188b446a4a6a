package prediction

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/foretell-app/foretell/utils"
)

const (
	DefaultExplorerTxURL = "https://basescan.org/tx/"
	DefaultNetworkURL    = "https://base.org"
	DefaultIntentURL     = "https://twitter.com/intent/tweet?text="

	ErrMissingExplorerURL = utils.Error("missing explorer url")
	ErrMissingIntentURL   = utils.Error("missing share intent url")
)

// ShareConfig links a shared prediction to its transaction
type ShareConfig struct {
	ExplorerTxURL string `json:"explorerTxUrl"` // ExplorerTxURL is prefixed to the transaction reference
	NetworkURL    string `json:"networkUrl"`    // NetworkURL is linked when a prediction has no transaction
	IntentURL     string `json:"intentUrl"`     // IntentURL receives the escaped message
}

func NewShareConfig() *ShareConfig {
	return &ShareConfig{
		ExplorerTxURL: DefaultExplorerTxURL,
		NetworkURL:    DefaultNetworkURL,
		IntentURL:     DefaultIntentURL,
	}
}

func (c *ShareConfig) Validate() error {
	if strings.TrimSpace(c.ExplorerTxURL) == "" || strings.TrimSpace(c.NetworkURL) == "" {
		return ErrMissingExplorerURL
	}
	if strings.TrimSpace(c.IntentURL) == "" {
		return ErrMissingIntentURL
	}
	return nil
}

var timeUnits = []struct {
	name    string
	seconds int64
}{
	{"year", 31536000},
	{"month", 2592000},
	{"week", 604800},
	{"day", 86400},
	{"hour", 3600},
	{"minute", 60},
}

// TimeAgo returns the largest whole unit elapsed between timestamp (epoch ms) and now, e.g. "3 days ago";
// less than a minute, or a timestamp in the future, is "just now"
func TimeAgo(timestamp int64, now time.Time) string {
	seconds := (now.UnixMilli() - timestamp) / 1000
	for _, u := range timeUnits {
		n := seconds / u.seconds
		if n >= 1 {
			if n == 1 {
				return fmt.Sprintf("1 %s ago", u.name)
			}
			return fmt.Sprintf("%d %ss ago", n, u.name)
		}
	}
	return "just now"
}

// TxLink returns the explorer link of p, or the network link when p has no transaction
func (c *ShareConfig) TxLink(p Prediction) string {
	if p.TxHash == "" {
		return c.NetworkURL
	}
	return c.ExplorerTxURL + p.TxHash
}

// Message is the public statement revealing p; the salted content is shared as stored so it can be verified
func (c *ShareConfig) Message(p Prediction, now time.Time) string {
	return fmt.Sprintf("I predicted \"%s\" %s. Verified on Base blockchain: %s", p.Content, TimeAgo(p.Timestamp, now), c.TxLink(p))
}

// IntentLink returns the share intent url carrying message
func (c *ShareConfig) IntentLink(message string) string {
	return c.IntentURL + strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
}
