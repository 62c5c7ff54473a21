package model

// CellHidden marks an unexplored cell on a minigame board.
const CellHidden = -1

type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// GameState is the client-side view of one minigame. Cells are write-once:
// a cell revealed or clicked once is never offered for selection again.
type GameState struct {
	Board    [][]int
	MoveID   string
	GameOver bool
	Exploded bool
	Credits  int64
	Moves    int

	explored map[Cell]bool
}

func NewGameState(board [][]int, moveID string) *GameState {
	g := &GameState{MoveID: moveID, explored: make(map[Cell]bool)}
	g.Apply(board)
	return g
}

// Apply replaces the board with the server's latest view while keeping
// every cell that was already explored locally marked as explored.
func (g *GameState) Apply(board [][]int) {
	if g.explored == nil {
		g.explored = make(map[Cell]bool)
	}
	g.Board = board
	for r, row := range board {
		for c, v := range row {
			if v != CellHidden {
				g.explored[Cell{Row: r, Col: c}] = true
			}
		}
	}
}

// MarkExplored records a cell the client has clicked.
func (g *GameState) MarkExplored(cell Cell) {
	if g.explored == nil {
		g.explored = make(map[Cell]bool)
	}
	g.explored[cell] = true
}

func (g *GameState) IsExplored(cell Cell) bool {
	return g.explored[cell]
}

// Unexplored lists the cells that are hidden on the board and were never
// explored, in row-major order.
func (g *GameState) Unexplored() []Cell {
	var cells []Cell
	for r, row := range g.Board {
		for c, v := range row {
			cell := Cell{Row: r, Col: c}
			if v == CellHidden && !g.explored[cell] {
				cells = append(cells, cell)
			}
		}
	}
	return cells
}
