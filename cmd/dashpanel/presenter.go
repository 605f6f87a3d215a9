package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/marketdash/dash-assistant-go/internal/panel"
)

var (
	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	unknownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	answerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).PaddingLeft(2)
	metaStyle    = lipgloss.NewStyle().Faint(true)
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
)

// terminalPresenter renders panel state to the terminal. Monitor ticks and
// chat outcomes arrive from different goroutines, so all writes go through
// one mutex.
type terminalPresenter struct {
	mu sync.Mutex
}

func (p *terminalPresenter) ShowStatus(av panel.Availability, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var badge string
	switch av {
	case panel.AvailabilityOnline:
		badge = onlineStyle.Render("● online")
	case panel.AvailabilityOffline:
		badge = offlineStyle.Render("● offline")
	default:
		badge = unknownStyle.Render("● unknown")
	}
	fmt.Printf("\r%s %s\n", badge, metaStyle.Render(message))
	p.prompt()
}

func (p *terminalPresenter) ShowLoading() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Println(metaStyle.Render("thinking..."))
}

func (p *terminalPresenter) ShowAnswer(ans *panel.Answer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Println(answerStyle.Render(ans.Text))
	meta := ""
	if ans.Model != "" {
		meta = "model: " + ans.Model
	}
	if ans.SnapshotUsed != "" {
		if meta != "" {
			meta += "  "
		}
		meta += "snapshot: " + ans.SnapshotUsed
	}
	if meta != "" {
		fmt.Println(metaStyle.Render(meta))
	}
	p.prompt()
}

func (p *terminalPresenter) ShowError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(os.Stderr, errorStyle.Render(message))
	p.prompt()
}

func (p *terminalPresenter) ShowNotice(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Println(noticeStyle.Render(message))
	p.prompt()
}

func (p *terminalPresenter) ShowSnapshotReady(snapshotID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Println(noticeStyle.Render("snapshot " + snapshotID + " will be attached to your next question"))
	p.prompt()
}

func (p *terminalPresenter) SetInputEnabled(enabled bool) {
	if enabled {
		p.mu.Lock()
		p.prompt()
		p.mu.Unlock()
	}
}

func (p *terminalPresenter) prompt() {
	fmt.Print(promptStyle.Render("> "))
}
