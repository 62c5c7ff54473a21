package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ohmynofan/questline-bot/internal/domain/model"
	"github.com/pterm/pterm"
)

var (
	multi    *pterm.MultiPrinter
	spinners = make(map[int]*pterm.SpinnerPrinter)
	mu       sync.Mutex
)

func StartUISystem() {
	mu.Lock()
	defer mu.Unlock()
	m, _ := pterm.DefaultMultiPrinter.Start()
	multi = m
}

func StopUISystem() {
	mu.Lock()
	defer mu.Unlock()
	if multi != nil {
		_, _ = multi.Stop()
		multi = nil
	}
}

func UpdateStatus(state model.AccountState, status string, remainingDelay time.Duration) {
	mu.Lock()
	defer mu.Unlock()
	render(state, status, remainingDelay)
}

func SetSpinnerSuccess(state model.AccountState, finalMessage string) {
	mu.Lock()
	defer mu.Unlock()
	if spinner, ok := spinners[state.Index]; ok {
		render(state, finalMessage, 0)
		spinner.Success()
		delete(spinners, state.Index)
	}
}

func SetSpinnerError(state model.AccountState, finalMessage string) {
	mu.Lock()
	defer mu.Unlock()
	if spinner, ok := spinners[state.Index]; ok {
		render(state, finalMessage, 0)
		spinner.Fail()
		delete(spinners, state.Index)
	}
}

func render(state model.AccountState, status string, remainingDelay time.Duration) {
	if multi == nil {
		return
	}

	content := fmt.Sprintf(`
=============== Account %d ================
Address       : %s
Proxy         : %s
Session       : %s

Daily Reward  : %s
Minigame      : %s (%d played)
Credits       : %d

Status   : %s
Delay    : %s
===========================================`,
		state.Index+1,
		state.Address,
		defaultString(state.Proxy, "-"),
		strings.ToUpper(string(state.SessionKind)),
		defaultString(state.DailyRewardStatus, "WAITING"),
		defaultString(state.MinigameStatus, "WAITING"),
		state.GamesPlayed,
		state.Credits,
		status,
		FormatDelay(remainingDelay))

	if spinner, ok := spinners[state.Index]; ok {
		spinner.UpdateText(content)
		return
	}
	spinner, err := pterm.DefaultSpinner.
		WithWriter(multi.NewWriter()).
		WithRemoveWhenDone(false).
		Start(content)
	if err == nil {
		spinners[state.Index] = spinner
	}
}

func FormatDelay(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d H %02d M %02d S", h, m, s)
}

// Summary prints the end-of-cycle table.
func Summary(results []model.AccountResult) {
	data := pterm.TableData{{"#", "Address", "Session", "Quests", "Credits", "Error"}}
	for _, r := range results {
		data = append(data, []string{
			fmt.Sprintf("%d", r.Index+1),
			r.Address,
			string(r.SessionKind),
			fmt.Sprintf("%d", len(r.CompletedQuests)),
			fmt.Sprintf("%d", r.Credits()),
			shorten(r.ErrorString(), 60),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func defaultString(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}

func shorten(msg string, maxLen int) string {
	runes := []rune(msg)
	if len(runes) <= maxLen {
		return msg
	}
	return string(runes[:maxLen-1]) + "…"
}
