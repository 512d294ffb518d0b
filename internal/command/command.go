// Package command interprets the text commands received on the serial line.
package command

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/sweeney/traffic-light/internal/logic"
)

// LineEnding terminates every reply.
const LineEnding = "\r\n"

// LevelStore is the intensity state the interpreter reads and overrides.
type LevelStore interface {
	Level(d logic.Direction) logic.Level
	SetLevel(d logic.Direction, lvl logic.Level)
}

type action func(s LevelStore) string

// Interpreter maps complete command lines to intensity changes and replies.
// Matching is exact and case-sensitive.
type Interpreter struct {
	store    LevelStore
	table    map[string]action
	executed atomic.Uint32
	unknown  atomic.Uint32
}

// levelWords are the command spellings of each level.
var levelWords = []struct {
	word  string
	level logic.Level
}{
	{"Low", logic.Normal},
	{"Medium", logic.Intense},
	{"High", logic.HighIntense},
}

// New creates an Interpreter acting on store.
func New(store LevelStore) *Interpreter {
	in := &Interpreter{store: store, table: make(map[string]action)}
	for _, d := range logic.Directions {
		for _, w := range levelWords {
			in.table[d.String()+" "+w.word] = setLevel(d, w.level)
		}
	}
	in.table["reset"] = func(s LevelStore) string {
		s.SetLevel(logic.Left, logic.Normal)
		s.SetLevel(logic.Right, logic.Normal)
		return "Traffic intensity reset to Normal"
	}
	in.table["status"] = func(s LevelStore) string {
		return fmt.Sprintf("Left: %s, Right: %s", s.Level(logic.Left), s.Level(logic.Right))
	}
	in.table["help"] = func(LevelStore) string {
		return Help
	}
	return in
}

func setLevel(d logic.Direction, lvl logic.Level) action {
	return func(s LevelStore) string {
		s.SetLevel(d, lvl)
		return fmt.Sprintf("%s intensity set to %s", d, lvl)
	}
}

// Help is the reply to the help command, without the final line ending.
var Help = strings.Join([]string{
	"Commands:",
	"  Left Low | Left Medium | Left High     set left traffic intensity",
	"  Right Low | Right Medium | Right High  set right traffic intensity",
	"  reset                                  set both directions to Normal",
	"  status                                 show current intensity",
	"  help                                   show this list",
}, LineEnding)

// Execute runs line and returns exactly one reply terminated by LineEnding.
func (in *Interpreter) Execute(line string) string {
	in.executed.Add(1)
	act, ok := in.table[line]
	if !ok {
		in.unknown.Add(1)
		return "Unknown command: " + line + LineEnding
	}
	return act(in.store) + LineEnding
}

// Counts returns the number of executed and unrecognized lines.
func (in *Interpreter) Counts() (executed, unknown int) {
	return int(in.executed.Load()), int(in.unknown.Load())
}
