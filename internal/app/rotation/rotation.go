// Package rotation assigns a proxy to each account of a cycle.
package rotation

import (
	"math/rand"

	"github.com/ohmynofan/questline-bot/internal/domain/model"
)

const (
	ModeSequential = "sequential"
	ModeRandom     = "random"
)

// Selector picks the proxy for the account at a 0-based position in the
// cycle. The position is the only cursor; nothing is shared between calls.
type Selector struct {
	Mode        string
	SwitchAfter int
	Proxies     []string
	Intn        func(n int) int
}

func NewSelector(mode string, switchAfter int, proxies []string) Selector {
	return Selector{Mode: mode, SwitchAfter: switchAfter, Proxies: proxies, Intn: rand.Intn}
}

// Select holds each proxy for SwitchAfter consecutive accounts in
// sequential mode and draws uniformly in random mode. With no proxies the
// assignment is empty (direct connection).
func (s Selector) Select(position int) model.ProxyAssignment {
	n := len(s.Proxies)
	if n == 0 {
		return model.ProxyAssignment{}
	}
	if s.Mode == ModeRandom {
		intn := s.Intn
		if intn == nil {
			intn = rand.Intn
		}
		return model.ProxyAssignment{URL: s.Proxies[intn(n)]}
	}

	switchAfter := s.SwitchAfter
	if switchAfter < 1 {
		switchAfter = 1
	}
	if position < 0 {
		position = 0
	}
	return model.ProxyAssignment{URL: s.Proxies[(position/switchAfter)%n]}
}
