package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// cookieJar keeps one account's session cookies across every call made
// through a client. With a path it also persists them between runs.
type cookieJar struct {
	mu      sync.Mutex
	path    string
	entries map[string][]*http.Cookie // keyed by canonical domain
}

type persistedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires"`
	Secure   bool      `json:"secure"`
	HttpOnly bool      `json:"httpOnly"`
}

func newCookieJar(path string) (*cookieJar, error) {
	jar := &cookieJar{
		path:    path,
		entries: make(map[string][]*http.Cookie),
	}
	if err := jar.load(); err != nil {
		return nil, err
	}
	return jar, nil
}

func (j *cookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	if len(cookies) == 0 || u == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	for _, c := range cookies {
		domain := cookieDomain(c.Domain, u.Host)
		path := normalizePath(c.Path)
		list := j.entries[domain]

		idx := -1
		for i, existing := range list {
			if existing.Name == c.Name && existing.Path == path {
				idx = i
				break
			}
		}

		expired := c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now))
		switch {
		case expired && idx >= 0:
			list = append(list[:idx], list[idx+1:]...)
		case expired:
		case idx >= 0:
			list[idx] = storedCopy(c, path, now)
		default:
			list = append(list, storedCopy(c, path, now))
		}
		j.entries[domain] = list
	}

	_ = j.save()
}

func (j *cookieJar) Cookies(u *url.URL) []*http.Cookie {
	if u == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	host := canonicalHost(u.Host)
	reqPath := normalizePath(u.Path)
	now := time.Now()

	var out []*http.Cookie
	for domain, list := range j.entries {
		if !domainMatches(host, domain) {
			continue
		}
		live := list[:0]
		for _, c := range list {
			if !c.Expires.IsZero() && c.Expires.Before(now) {
				continue
			}
			live = append(live, c)
			if c.Secure && u.Scheme != "https" {
				continue
			}
			if strings.HasPrefix(reqPath, c.Path) {
				out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
			}
		}
		j.entries[domain] = live
	}
	return out
}

func (j *cookieJar) HasCookies() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, list := range j.entries {
		if len(list) > 0 {
			return true
		}
	}
	return false
}

func (j *cookieJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = make(map[string][]*http.Cookie)
	if j.path == "" {
		return nil
	}
	if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (j *cookieJar) load() error {
	if j.path == "" {
		return nil
	}
	data, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	var stored map[string][]persistedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return err
	}
	for domain, list := range stored {
		for _, pc := range list {
			j.entries[domain] = append(j.entries[domain], &http.Cookie{
				Name:     pc.Name,
				Value:    pc.Value,
				Path:     normalizePath(pc.Path),
				Expires:  pc.Expires,
				Secure:   pc.Secure,
				HttpOnly: pc.HttpOnly,
			})
		}
	}
	return nil
}

func (j *cookieJar) save() error {
	if j.path == "" {
		return nil
	}

	stored := make(map[string][]persistedCookie, len(j.entries))
	for domain, list := range j.entries {
		for _, c := range list {
			stored[domain] = append(stored[domain], persistedCookie{
				Name:     c.Name,
				Value:    c.Value,
				Path:     c.Path,
				Expires:  c.Expires,
				Secure:   c.Secure,
				HttpOnly: c.HttpOnly,
			})
		}
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(j.path, data, 0o600)
}

// storedCopy resolves Max-Age into an absolute expiry.
func storedCopy(c *http.Cookie, path string, now time.Time) *http.Cookie {
	cp := *c
	cp.Path = path
	if c.MaxAge > 0 {
		cp.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	}
	cp.MaxAge = 0
	cp.Raw = ""
	cp.Unparsed = nil
	return &cp
}

func canonicalHost(host string) string {
	host = strings.ToLower(host)
	if h, _, ok := strings.Cut(host, ":"); ok {
		return h
	}
	return host
}

func cookieDomain(domain, host string) string {
	if domain != "" {
		return canonicalHost(strings.TrimPrefix(domain, "."))
	}
	return canonicalHost(host)
}

func domainMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func normalizePath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	return p
}
