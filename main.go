//go:build !gui

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fable/internal/config"
	"fable/internal/engine"
	"fable/internal/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	controlsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00"))

	pageStyle = lipgloss.NewStyle().
			Padding(1, 2)
)

func (i tocItem) Title() string {
	return strings.Repeat("  ", i.level) + i.entry.Title
}

func (i tocItem) Description() string { return i.entry.Href }
func (i tocItem) FilterValue() string { return i.entry.Title }

type model struct {
	host     *host
	spinner  spinner.Model
	viewport viewport.Model
	tocList  list.Model
	showTOC  bool
	quitting bool
	width    int
	height   int
}

type loadedMsg struct {
	err error
}

type sessionEventMsg struct {
	ev engine.Event
	ok bool
}

type prefsAppliedMsg struct{}

func newTUIModel(a *host, showTOC bool) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	vp := viewport.New(80, 22)
	return model{
		host:     a,
		spinner:  sp,
		viewport: vp,
		tocList:  newTOCList(nil, 80, 22),
		showTOC:  showTOC,
		width:    80,
		height:   24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadCmd())
}

func (m model) loadCmd() tea.Cmd {
	return func() tea.Msg {
		err := m.host.ctrl.Load(context.Background(), m.host.source, m.host.initial)
		return loadedMsg{err: err}
	}
}

func (m model) waitEventCmd() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.host.ctrl.Events()
		return sessionEventMsg{ev: ev, ok: ok}
	}
}

func (m model) applyCmd(p engine.Preferences) tea.Cmd {
	return func() tea.Msg {
		_ = m.host.ctrl.ApplyPreferences(context.Background(), p)
		return prefsAppliedMsg{}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = bodyHeight(msg.Height)
		m.tocList.SetSize(msg.Width, bodyHeight(msg.Height))
		m.refreshPage()
		return m, nil

	case spinner.TickMsg:
		if m.host.ctrl.State() == session.StateLoading || m.host.ctrl.State() == session.StateIdle {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			return m, nil
		}
		m.tocList = newTOCList(m.host.ctrl.TOC(), m.width, bodyHeight(m.height))
		if len(m.host.ctrl.TOC()) == 0 {
			m.showTOC = false
		}
		m.refreshPage()
		return m, m.waitEventCmd()

	case sessionEventMsg:
		if !msg.ok {
			return m, nil
		}
		if msg.ev.Kind == engine.EventLocationChanged {
			m.refreshPage()
		}
		return m, m.waitEventCmd()

	case prefsAppliedMsg:
		m.refreshPage()
		return m, nil
	}

	return m, nil
}

func (m model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showTOC {
		switch msg.String() {
		case "enter":
			if item, ok := m.tocList.SelectedItem().(tocItem); ok {
				m.showTOC = false
				entry := item.entry
				return m, func() tea.Msg {
					_ = m.host.ctrl.NavigateTo(context.Background(), entry)
					return nil
				}
			}
			return m, nil
		case "t", "esc":
			m.showTOC = false
			return m, nil
		case "q", "ctrl+c":
			return m.quit()
		}
		var cmd tea.Cmd
		m.tocList, cmd = m.tocList.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "right", "l", " ", "pgdown":
		ctrl := m.host.ctrl
		return m, func() tea.Msg {
			_ = ctrl.PageForward(context.Background())
			return nil
		}

	case "left", "h", "pgup":
		ctrl := m.host.ctrl
		return m, func() tea.Msg {
			_ = ctrl.PageBack(context.Background())
			return nil
		}

	case "+", "=":
		return m, m.applyCmd(m.host.ctrl.Preferences().Larger())

	case "-":
		return m, m.applyCmd(m.host.ctrl.Preferences().Smaller())

	case "t":
		if len(m.host.ctrl.TOC()) > 0 && m.host.ctrl.State() == session.StateReady {
			m.showTOC = true
		}
		return m, nil

	case "q", "Q", "ctrl+c", "esc":
		return m.quit()
	}

	return m, nil
}

func (m model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.host.finish()
	return m, tea.Quit
}

func (m *model) refreshPage() {
	if m.host.ctrl.State() != session.StateReady {
		return
	}
	page := m.host.ctrl.Page()
	text := pageStyle.Width(m.width).Render(page.Text)
	m.viewport.SetContent(text)
	m.viewport.GotoTop()
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	switch m.host.ctrl.State() {
	case session.StateIdle, session.StateLoading:
		return loadingStyle.Render(fmt.Sprintf("\n  %s Opening %s...\n", m.spinner.View(), m.host.source))

	case session.StateFailed:
		msg := "Something went wrong."
		if f := m.host.ctrl.Failure(); f != nil {
			msg = f.Message()
		}
		return errorStyle.Render("\n  "+msg) + controlsStyle.Render("\n\n  Q: close\n")
	}

	if m.showTOC {
		return m.tocList.View()
	}

	page := m.host.ctrl.Page()
	status := statusStyle.Render(statusLine(page, m.host.ctrl))

	tocHint := ""
	if len(m.host.ctrl.TOC()) > 0 {
		tocHint = "  T: contents"
	}
	controls := controlsStyle.Render("←/→: page  +/-: font" + tocHint + "  Q: quit")

	var sb strings.Builder
	sb.WriteString(status)
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(controls)
	return sb.String()
}

func statusLine(page engine.Page, ctrl *session.Controller) string {
	title := page.ChapterTitle
	if title != "" {
		title = titleStyle.Render(title) + " | "
	}
	progress := ""
	if loc := ctrl.CurrentLocation(); loc != nil {
		progress = fmt.Sprintf(" | %.0f%%", loc.TotalProgression*100)
	}
	return fmt.Sprintf("%sPage %d/%d%s | Font: %.2fx",
		title, page.Number, page.Count, progress, ctrl.Preferences().FontScale)
}

func newTOCList(entries []engine.TOCEntry, width, height int) list.Model {
	flat := flattenTOC(entries, 0)
	items := make([]list.Item, 0, len(flat))
	for _, it := range flat {
		items = append(items, it)
	}
	l := list.New(items, list.NewDefaultDelegate(), width, height)
	l.Title = "Table of Contents"
	l.SetShowStatusBar(false)
	return l
}

// bodyHeight reserves one line each for the status and controls bars.
func bodyHeight(total int) int {
	h := total - 2
	if h < 1 {
		h = 1
	}
	return h
}

func main() {
	showVersion := flag.Bool("v", false, "Show version information")
	showVersionLong := flag.Bool("version", false, "Show version information")
	showTOC := flag.Bool("toc", false, "Show table of contents at startup")
	freshStart := flag.Bool("fresh", false, "Ignore saved reading position")
	configPath := flag.String("config", config.DefaultPath(), "Config file location")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Fable - Terminal Book Reader\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  fable [options] <file or URL>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  fable book.epub                     Read a local book\n")
		fmt.Fprintf(os.Stderr, "  fable https://example.com/book.epub Download (cached) and read\n")
		fmt.Fprintf(os.Stderr, "  fable --toc book.epub               Open the contents sheet first\n")
		fmt.Fprintf(os.Stderr, "  fable --fresh book.epub             Start from the beginning\n")
		fmt.Fprintf(os.Stderr, "\nControls:\n")
		fmt.Fprintf(os.Stderr, "  ←/→      Previous/next page\n")
		fmt.Fprintf(os.Stderr, "  +/-      Font size\n")
		fmt.Fprintf(os.Stderr, "  T        Table of contents\n")
		fmt.Fprintf(os.Stderr, "  Q        Quit\n")
	}
	flag.Parse()

	if *showVersion || *showVersionLong {
		fmt.Printf("fable %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: No book provided.")
		fmt.Fprintln(os.Stderr, "Try: fable -h")
		os.Exit(1)
	}
	source := flag.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	h := newHost(source, cfg, *freshStart, log)
	m := newTUIModel(h, *showTOC)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
