// progress.go - Terminal-Progress-Rendering
// Haupttypen: Progress, State; Hauptfunktionen: NewProgress, Add, Stop, StopAndClear
package progress

import (
	"bufio"
	"fmt"
	"io"
	"sync"
	"time"
)

// State ist eine einzelne anzeigbare Zeile (Spinner o.ae.)
type State interface {
	String() string
}

// Progress rendert eine Liste von States periodisch auf einen Writer
type Progress struct {
	mu sync.Mutex
	w  io.Writer

	pos int

	ticker *time.Ticker
	states []State
}

// NewProgress startet das Rendering auf w
func NewProgress(w io.Writer) *Progress {
	p := &Progress{w: w}
	go p.start()
	return p
}

func (p *Progress) stop() bool {
	for _, state := range p.states {
		if spinner, ok := state.(*Spinner); ok {
			spinner.Stop()
		}
	}

	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
		p.render()
		return true
	}

	return false
}

// Stop haelt das Rendering an, die letzte Ausgabe bleibt stehen
func (p *Progress) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	stopped := p.stop()
	if stopped {
		fmt.Fprint(p.w, "\n")
	}
	return stopped
}

// StopAndClear haelt das Rendering an und loescht die Ausgabe
func (p *Progress) StopAndClear() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprint(p.w, "\033[?25l")
	defer fmt.Fprint(p.w, "\033[?25h")

	stopped := p.stop()
	if stopped {
		// Zeilen zurueckgehen und loeschen
		for range p.states {
			fmt.Fprint(p.w, "\033[A\033[2K\033[1G")
		}
	}

	return stopped
}

// Add haengt einen neuen State an
func (p *Progress) Add(_ string, state State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.states = append(p.states, state)
}

func (p *Progress) render() {
	fmt.Fprint(p.w, "\033[?25l")
	defer fmt.Fprint(p.w, "\033[?25h")

	// Vorherige Zeilen loeschen
	for i := range p.pos {
		if i > 0 {
			fmt.Fprint(p.w, "\033[A")
		}
		fmt.Fprint(p.w, "\033[2K\033[1G")
	}

	buf := bufio.NewWriter(p.w)
	for _, state := range p.states {
		fmt.Fprintln(buf, state.String())
	}
	buf.Flush()

	p.pos = len(p.states)
}

func (p *Progress) start() {
	p.ticker = time.NewTicker(100 * time.Millisecond)
	for range p.ticker.C {
		p.mu.Lock()
		p.render()
		p.mu.Unlock()
	}
}
