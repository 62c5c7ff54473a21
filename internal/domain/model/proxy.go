package model

import (
	"net/url"
	"strings"
)

// ProxyAssignment is the egress binding of one account run.
type ProxyAssignment struct {
	URL string
}

func (p ProxyAssignment) Empty() bool {
	return strings.TrimSpace(p.URL) == ""
}

// Host returns the proxy host without credentials, for display.
func (p ProxyAssignment) Host() string {
	if p.Empty() {
		return "No Proxy"
	}
	if u, err := url.Parse(p.URL); err == nil && u.Host != "" {
		return u.Host
	}
	s := p.URL
	if at := strings.LastIndex(s, "@"); at != -1 {
		s = s[at+1:]
	}
	return s
}
