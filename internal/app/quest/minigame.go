package quest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ohmynofan/questline-bot/internal/adapters/platform"
	"github.com/ohmynofan/questline-bot/internal/domain/model"
)

var errNoMoreGames = errors.New("no more games today")

type startMetadata struct {
	Action     string `json:"action"`
	Difficulty string `json:"difficulty"`
}

type clickMetadata struct {
	Action string `json:"action"`
	MoveID string `json:"moveId"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
}

type gameData struct {
	Board    [][]int `json:"board"`
	MoveID   string  `json:"moveId"`
	GameOver bool    `json:"gameOver"`
	Exploded bool    `json:"exploded"`
	Credits  int64   `json:"credits"`
}

// GamesPlayedToday counts today's history records of the minigame quest,
// whatever their status. A failed fetch counts as zero.
func (e *Engine) GamesPlayedToday(ctx context.Context, questID string) int {
	history, err := e.gw.UserQuests(ctx)
	if err != nil {
		e.log.Warnf("Could not fetch quest history, assuming no games played: %v", err)
		return 0
	}
	today := model.Today(e.now())
	n := 0
	for _, r := range history {
		if r.QuestID == questID && r.Day() == today {
			n++
		}
	}
	return n
}

// PlayMinigame plays the remaining games of the day and returns their
// summed credits. A daily-limit answer ends the session quietly.
func (e *Engine) PlayMinigame(ctx context.Context) (*model.QuestResult, error) {
	opts := e.opts.Minigame
	q, err := e.findQuest(ctx, opts.Title)
	if err != nil {
		e.setMinigame(statusFailed)
		return nil, err
	}
	if q == nil {
		e.log.Warnf("Quest %q is not available for this account", opts.Title)
		e.setMinigame(statusMissing)
		return nil, nil
	}

	played := e.GamesPlayedToday(ctx, q.ID)
	e.setGames(played)
	res := completedResult(q)

	var playErr error
	for played < opts.DailyGames {
		credits, err := e.playGame(ctx, q.ID)
		if errors.Is(err, errNoMoreGames) || platform.IsDailyLimit(err) {
			res.Credits += credits
			e.log.Info("Minigame daily limit reached")
			break
		}
		if err != nil {
			playErr = fmt.Errorf("game %d: %w", played+1, err)
			break
		}
		played++
		res.Credits += credits
		e.setGames(played)
		e.log.Successf("Game %d/%d finished, +%d credits", played, opts.DailyGames, credits)
	}

	if playErr != nil {
		e.setMinigame(statusFailed)
		if res.Credits > 0 {
			return e.record(res), playErr
		}
		return nil, playErr
	}
	return e.record(res), nil
}

func (e *Engine) setGames(played int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.GamesPlayed = played
	e.state.MinigameStatus = fmt.Sprintf("%d/%d", played, e.opts.Minigame.DailyGames)
}

// playGame runs one game from start to a terminal state or the move cap.
func (e *Engine) playGame(ctx context.Context, questID string) (int64, error) {
	opts := e.opts.Minigame
	sub, err := e.gw.SubmitQuest(ctx, questID, startMetadata{Action: "start", Difficulty: opts.Difficulty})
	if err != nil {
		return 0, fmt.Errorf("start: %w", err)
	}
	if sub.AlreadyDone {
		return 0, errNoMoreGames
	}
	data, err := decodeGame(sub)
	if err != nil {
		return 0, err
	}

	game := model.NewGameState(data.Board, data.MoveID)
	game.GameOver = data.GameOver
	game.Credits = data.Credits
	for !game.GameOver && game.Moves < opts.MoveCap {
		cells := game.Unexplored()
		if len(cells) == 0 {
			break
		}
		cell := cells[e.intn(len(cells))]
		game.MarkExplored(cell)
		game.Moves++

		if err := e.log.Wait(ctx, opts.MoveDelay, fmt.Sprintf("Revealing (%d,%d)", cell.Row, cell.Col)); err != nil {
			return 0, err
		}
		sub, err := e.gw.SubmitQuest(ctx, questID, clickMetadata{
			Action: "click",
			MoveID: game.MoveID,
			Row:    cell.Row,
			Col:    cell.Col,
		})
		if err != nil {
			return 0, fmt.Errorf("move %d: %w", game.Moves, err)
		}
		if sub.AlreadyDone {
			return game.Credits, errNoMoreGames
		}
		data, err := decodeGame(sub)
		if err != nil {
			return 0, err
		}

		game.Apply(data.Board)
		if data.MoveID != "" {
			game.MoveID = data.MoveID
		}
		game.GameOver = data.GameOver
		game.Exploded = data.Exploded
		game.Credits = data.Credits
		if game.Credits == 0 {
			game.Credits = sub.Credits
		}
	}

	switch {
	case game.Exploded:
		e.log.Warnf("Mine hit after %d moves", game.Moves)
	case !game.GameOver:
		e.log.Warnf("Game stopped after %d moves without a terminal state", game.Moves)
	}
	return game.Credits, nil
}

func decodeGame(sub *model.QuestSubmission) (gameData, error) {
	var data gameData
	if len(sub.Data) == 0 {
		return data, errors.New("minigame response has no game data")
	}
	if err := json.Unmarshal(sub.Data, &data); err != nil {
		return data, fmt.Errorf("decode game data: %w", err)
	}
	return data, nil
}
