package model

// AccountState is the live view of one account run. It backs the console
// status line and the per-account logger.
type AccountState struct {
	Index             int
	Address           string
	Proxy             string
	SessionKind       SessionKind
	DailyRewardStatus string
	MinigameStatus    string
	GamesPlayed       int
	Credits           int64
}

func NewAccountState(index int) *AccountState {
	return &AccountState{
		Index:             index,
		Address:           "-",
		Proxy:             "-",
		SessionKind:       SessionNone,
		DailyRewardStatus: "WAITING",
		MinigameStatus:    "WAITING",
	}
}
