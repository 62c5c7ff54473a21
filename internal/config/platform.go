package config

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Network is the chain the sign-in message is bound to.
type Network struct {
	Name    string
	ChainID int64
}

var MonadTestnet = Network{
	Name:    "Monad Testnet",
	ChainID: 10143,
}

func (c Config) Network() Network {
	if c.ChainID == MonadTestnet.ChainID || c.ChainID == 0 {
		return MonadTestnet
	}
	return Network{Name: "Custom", ChainID: c.ChainID}
}

// Domain is the host part of the platform URL, as placed in the sign-in
// message.
func (c Config) Domain() string {
	u, err := url.Parse(c.PlatformURL)
	if err != nil || u.Host == "" {
		return strings.TrimPrefix(strings.TrimPrefix(c.PlatformURL, "https://"), "http://")
	}
	return u.Host
}

// CookieFile is where an account's cookies persist between runs, or ""
// to keep them in memory.
func (c Config) CookieFile(address string) string {
	if strings.TrimSpace(c.CookiesDir) == "" || address == "" {
		return ""
	}
	return filepath.Join(c.CookiesDir, strings.ToLower(address)+".json")
}
