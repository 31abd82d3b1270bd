package game

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/udisondev/jeux/internal/constants"
)

// Role designates a participant in a game. FIRST moves first. NONE doubles
// as the "no winner" outcome of a drawn game.
type Role uint8

const (
	None Role = iota
	First
	Second
)

// Other returns the opposing role. Other(None) is None.
func (r Role) Other() Role {
	switch r {
	case First:
		return Second
	case Second:
		return First
	default:
		return None
	}
}

func (r Role) String() string {
	switch r {
	case None:
		return "NONE"
	case First:
		return "FIRST"
	case Second:
		return "SECOND"
	default:
		return "INVALID"
	}
}

// Valid reports whether r is one of the three defined roles.
func (r Role) Valid() bool {
	return r <= Second
}

// Move is an immutable parsed move: a cell, the role making it, and the
// symbol that role plays.
type Move struct {
	cell   int
	role   Role
	symbol byte
}

// Cell returns the 1..9 row-major board index of the move.
func (m Move) Cell() int { return m.cell }

// Role returns the role making the move.
func (m Move) Role() Role { return m.role }

// Symbol returns the symbol ('X' or 'O') of the move.
func (m Move) Symbol() byte { return m.symbol }

// String renders the move in the long wire form, from which ParseMove can
// recover it.
func (m Move) String() string {
	return fmt.Sprintf("%d<-%c", m.cell, m.symbol)
}

// Errors reported by move application and resignation.
var (
	ErrGameOver     = errors.New("game is over")
	ErrWrongTurn    = errors.New("not this role's turn")
	ErrWrongSymbol  = errors.New("symbol does not match role")
	ErrBadCell      = errors.New("cell out of range")
	ErrCellOccupied = errors.New("cell already occupied")
)

// Game is the state of one tic-tac-toe match. The board is indexed 1..9
// row-major. Symbols are bound to roles lazily by the first parsed moves.
// All methods are safe for concurrent use.
type Game struct {
	mu           sync.Mutex
	board        [10]Role // index 0 unused
	expectedTurn Role
	firstSym     byte
	secondSym    byte
	over         bool
	winner       Role
}

// New returns an empty game with FIRST to move and no symbols assigned.
func New() *Game {
	return &Game{expectedTurn: First}
}

// ParseMove interprets s as a move by role. Accepted forms are a single
// digit "d" (1..9) and the four-character "d<-S" with S being literally 'X'
// or 'O'. Parsing may bind a symbol to the role (the first mover to parse a
// short-form move takes X; the other side takes the remaining symbol) but
// never touches the board.
func (g *Game) ParseMove(role Role, s string) (Move, error) {
	if role == None || !role.Valid() {
		return Move{}, fmt.Errorf("parse move: role %s cannot move", role)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	switch len(s) {
	case 1:
		cell, err := parseCell(s[0])
		if err != nil {
			return Move{}, err
		}
		return Move{cell: cell, role: role, symbol: g.assignSymbol(role)}, nil

	case 4:
		if s[1] != '<' || s[2] != '-' {
			return Move{}, fmt.Errorf("parse move: malformed %q", s)
		}
		sym := s[3]
		if sym != 'X' && sym != 'O' {
			return Move{}, fmt.Errorf("parse move: symbol %q is not X or O", sym)
		}
		cell, err := parseCell(s[0])
		if err != nil {
			return Move{}, err
		}
		current := g.symbolOf(role)
		if current == 0 {
			g.setSymbol(role, sym)
		} else if current != sym {
			return Move{}, fmt.Errorf("parse move: %s plays %c, not %c", role, current, sym)
		}
		return Move{cell: cell, role: role, symbol: sym}, nil

	default:
		return Move{}, fmt.Errorf("parse move: malformed %q", s)
	}
}

func parseCell(c byte) (int, error) {
	if c < '1' || c > '9' {
		return 0, fmt.Errorf("parse move: cell %q out of range", c)
	}
	return int(c - '0'), nil
}

// assignSymbol returns role's symbol, binding one first if needed: the
// default is X, unless the opponent already took it.
func (g *Game) assignSymbol(role Role) byte {
	if sym := g.symbolOf(role); sym != 0 {
		return sym
	}
	sym := byte('X')
	if g.symbolOf(role.Other()) == 'X' {
		sym = 'O'
	}
	g.setSymbol(role, sym)
	return sym
}

func (g *Game) symbolOf(role Role) byte {
	if role == First {
		return g.firstSym
	}
	return g.secondSym
}

func (g *Game) setSymbol(role Role, sym byte) {
	if role == First {
		g.firstSym = sym
	} else {
		g.secondSym = sym
	}
}

// Apply plays a parsed move. It fails if the game is over, the role is not
// on the move, the symbol disagrees with the role's binding, or the cell is
// out of range or occupied. A completing move latches the terminal state.
func (g *Game) Apply(m Move) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.over {
		return ErrGameOver
	}
	if m.role != g.expectedTurn {
		return ErrWrongTurn
	}
	if current := g.symbolOf(m.role); current != 0 && current != m.symbol {
		return ErrWrongSymbol
	} else if current == 0 {
		g.setSymbol(m.role, m.symbol)
	}
	if m.cell < 1 || m.cell > 9 {
		return ErrBadCell
	}
	if g.board[m.cell] != None {
		return ErrCellOccupied
	}

	g.board[m.cell] = m.role
	g.expectedTurn = m.role.Other()

	if g.hasLine(m.role) {
		g.over = true
		g.winner = m.role
	} else if g.full() {
		g.over = true
		g.winner = None
	}
	return nil
}

// lines are the eight winning triples in 1..9 cell numbering.
var lines = [8][3]int{
	{1, 2, 3}, {4, 5, 6}, {7, 8, 9}, // rows
	{1, 4, 7}, {2, 5, 8}, {3, 6, 9}, // columns
	{1, 5, 9}, {3, 5, 7}, // diagonals
}

func (g *Game) hasLine(role Role) bool {
	for _, ln := range lines {
		if g.board[ln[0]] == role && g.board[ln[1]] == role && g.board[ln[2]] == role {
			return true
		}
	}
	return false
}

func (g *Game) full() bool {
	for cell := 1; cell <= 9; cell++ {
		if g.board[cell] == None {
			return false
		}
	}
	return true
}

// Resign terminates the game in favor of role's opponent. It fails if the
// game already terminated or role is NONE.
func (g *Game) Resign(role Role) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if role == None || !role.Valid() {
		return fmt.Errorf("resign: role %s cannot resign", role)
	}
	if g.over {
		return ErrGameOver
	}
	g.over = true
	g.winner = role.Other()
	return nil
}

// Over reports whether the game has terminated.
func (g *Game) Over() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.over
}

// Winner returns the winning role of a terminated game, or NONE for a draw
// or a game still in progress.
func (g *Game) Winner() Role {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.winner
}

// ExpectedTurn returns the role on the move.
func (g *Game) ExpectedTurn() Role {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.expectedTurn
}

// RoleAt returns the role occupying cell, or NONE. Cells outside 1..9 are
// NONE.
func (g *Game) RoleAt(cell int) Role {
	if cell < 1 || cell > 9 {
		return None
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.board[cell]
}

// UnparseState renders the board for human users: three rows of "C|C|C\n"
// where C is the occupying symbol or a space. The result is always
// constants.GameStateSize bytes.
func (g *Game) UnparseState() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var b strings.Builder
	b.Grow(constants.GameStateSize)
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			cell := row*3 + col + 1
			switch g.board[cell] {
			case First:
				b.WriteByte(g.renderSym(g.firstSym))
			case Second:
				b.WriteByte(g.renderSym(g.secondSym))
			default:
				b.WriteByte(' ')
			}
			if col != 2 {
				b.WriteByte('|')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func (g *Game) renderSym(sym byte) byte {
	if sym == 0 {
		return ' '
	}
	return sym
}
