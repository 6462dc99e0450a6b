package weft

// Code in this file was split out for readability.
// No behavior changes intended.

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// UnitState is a unit node's position in the Async state machine:
// Waiting -> Ready -> Running -> Done | Failed.
type UnitState int

const (
	Waiting UnitState = iota
	Ready
	Running
	Done
	Failed
)

func (s UnitState) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return "?"
	}
}

// StatusBoard is a purely observational full-screen dashboard for the
// Async strategy: it renders each unit's current state in a live table and
// never influences scheduling.
type StatusBoard struct {
	mu     sync.Mutex
	states map[UnitId]UnitState
	order  []UnitId

	app   *tview.Application
	table *tview.Table
}

func NewStatusBoard(tagged []TaggedUnit) *StatusBoard {
	sb := &StatusBoard{states: make(map[UnitId]UnitState, len(tagged))}
	for _, t := range tagged {
		sb.states[t.Unit.PuId] = Waiting
		sb.order = append(sb.order, t.Unit.PuId)
	}
	sort.Slice(sb.order, func(i, j int) bool { return sb.order[i] < sb.order[j] })
	return sb
}

// SetState records id's new state and, if the full-screen dashboard is
// running, schedules a redraw on tview's event loop. Otherwise it rewrites
// a single progress line in place with the current counts — the "live
// status line" default mode.
func (sb *StatusBoard) SetState(id UnitId, state UnitState) {
	sb.mu.Lock()
	sb.states[id] = state
	sb.mu.Unlock()

	if sb.app != nil {
		sb.app.QueueUpdateDraw(sb.redraw)
		return
	}
	if logLevel >= Normal {
		fmt.Print("\r" + sb.summaryLine() + "   ")
	}
}

// Run builds and drives the tview application until Stop is called or the
// user quits with 'q'/Ctrl-C. Intended to run on its own goroutine while
// the Async executor drives the real build on others.
func (sb *StatusBoard) Run() error {
	sb.table = tview.NewTable().SetBorders(false)
	sb.table.SetTitle(" weft build status ").SetBorder(true)
	sb.app = tview.NewApplication().SetRoot(sb.table, true)
	sb.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Rune() == 'q' {
			sb.app.Stop()
			return nil
		}
		return event
	})
	sb.redraw()
	return sb.app.Run()
}

func (sb *StatusBoard) Stop() {
	if sb.app != nil {
		sb.app.Stop()
	}
}

func (sb *StatusBoard) redraw() {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.table.Clear()
	sb.table.SetCell(0, 0, tview.NewTableCell("UNIT").SetSelectable(false).SetTextColor(tcell.ColorYellow))
	sb.table.SetCell(0, 1, tview.NewTableCell("STATE").SetSelectable(false).SetTextColor(tcell.ColorYellow))

	for i, id := range sb.order {
		state := sb.states[id]
		sb.table.SetCell(i+1, 0, tview.NewTableCell(string(id)))
		sb.table.SetCell(i+1, 1, tview.NewTableCell(state.String()).SetTextColor(colorFor(state)))
	}
}

func colorFor(s UnitState) tcell.Color {
	switch s {
	case Done:
		return tcell.ColorGreen
	case Failed:
		return tcell.ColorRed
	case Running:
		return tcell.ColorYellow
	default:
		return tcell.ColorWhite
	}
}

// summaryLine renders a one-line counts summary, used when --dashboard is
// not requested and the executor logs plain progress instead.
func (sb *StatusBoard) summaryLine() string {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	var done, failed, running, total int
	for _, s := range sb.states {
		total++
		switch s {
		case Done:
			done++
		case Failed:
			failed++
		case Running:
			running++
		}
	}
	return fmt.Sprintf("%d/%d done, %d running, %d failed", done, total, running, failed)
}
