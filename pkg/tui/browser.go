// Package tui is an interactive terminal browser for saved projects.
package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/folish/folish/pkg/canvas"
	"github.com/folish/folish/pkg/commands"
	"github.com/folish/folish/pkg/export"
	"github.com/folish/folish/pkg/projectstore"
)

// copyToClipboard is replaced in tests.
var copyToClipboard = clipboard.WriteAll

// projectItem is one row of the project list.
type projectItem struct {
	info projectstore.Info
}

func (i projectItem) FilterValue() string {
	return i.info.Name
}

func (i projectItem) Title() string {
	return i.info.Name
}

func (i projectItem) Description() string {
	return fmt.Sprintf("%s · saved %s", humanSize(i.info.Size), i.info.ModTime.Format("2006-01-02 15:04"))
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

type keyMap struct {
	Open   key.Binding
	Yank   key.Binding
	Export key.Binding
	Reload key.Binding
	Back   key.Binding
}

var keys = keyMap{
	Open:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
	Yank:   key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy path")),
	Export: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "export pdf")),
	Reload: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
	Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
}

// Messages produced by the browser's commands.
type (
	projectsLoadedMsg struct {
		items []list.Item
		err   error
	}
	documentLoadedMsg struct {
		info projectstore.Info
		doc  canvas.State
		err  error
	}
	statusMsg struct {
		text string
		err  error
	}
)

// Model is the bubbletea model of the project browser.
type Model struct {
	svc       *commands.Service
	exportDir string

	list   list.Model
	width  int
	height int

	detail *documentLoadedMsg
	status string
	err    error
}

// New creates a browser over svc. PDF exports are written to exportDir.
func New(svc *commands.Service, exportDir string) Model {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(salmonPink).
		BorderForeground(salmonPink)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(mutedGray).
		BorderForeground(salmonPink)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Folish projects"
	l.Styles.Title = titleStyle
	l.SetShowStatusBar(true)
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Open, keys.Yank, keys.Export, keys.Reload}
	}

	return Model{svc: svc, exportDir: exportDir, list: l}
}

// Init loads the project list.
func (m Model) Init() tea.Cmd {
	return m.loadProjects
}

func (m Model) loadProjects() tea.Msg {
	names, err := m.svc.ListCanvases()
	if err != nil {
		return projectsLoadedMsg{err: err}
	}
	items := make([]list.Item, 0, len(names))
	for _, name := range names {
		info, err := m.svc.Store().Stat(name)
		if err != nil {
			// Deleted since the listing
			continue
		}
		items = append(items, projectItem{info: info})
	}
	return projectsLoadedMsg{items: items}
}

func (m Model) loadDocument(info projectstore.Info) tea.Cmd {
	return func() tea.Msg {
		doc, err := m.svc.LoadCanvas(info.Name)
		return documentLoadedMsg{info: info, doc: doc, err: err}
	}
}

func (m Model) exportDocument(info projectstore.Info) tea.Cmd {
	return func() tea.Msg {
		doc, err := m.svc.LoadCanvas(info.Name)
		if err != nil {
			return statusMsg{err: err}
		}
		out := filepath.Join(m.exportDir, info.Name+".pdf")
		opts := export.DefaultOptions()
		opts.Title = info.Name
		if err := export.PDFFile(out, doc, opts); err != nil {
			return statusMsg{err: err}
		}
		return statusMsg{text: "exported " + out}
	}
}

func yank(path string) tea.Cmd {
	return func() tea.Msg {
		if err := copyToClipboard(path); err != nil {
			return statusMsg{err: fmt.Errorf("clipboard: %w", err)}
		}
		return statusMsg{text: "copied " + path}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.SetSize(msg.Width, msg.Height-1)
		return m, nil

	case projectsLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = fmt.Sprintf("%d projects", len(msg.items))
			cmd := m.list.SetItems(msg.items)
			return m, cmd
		}
		return m, nil

	case documentLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.detail = &msg
		m.err = nil
		return m, nil

	case statusMsg:
		m.status, m.err = msg.text, msg.err
		return m, nil

	case tea.KeyMsg:
		if m.detail != nil {
			switch {
			case key.Matches(msg, keys.Back), msg.String() == "q":
				m.detail = nil
				return m, nil
			case key.Matches(msg, keys.Yank):
				return m, yank(m.detail.info.Path)
			case key.Matches(msg, keys.Export):
				return m, m.exportDocument(m.detail.info)
			}
			return m, nil
		}
		if m.list.FilterState() == list.Filtering {
			break
		}
		item, selected := m.list.SelectedItem().(projectItem)
		switch {
		case key.Matches(msg, keys.Open) && selected:
			return m, m.loadDocument(item.info)
		case key.Matches(msg, keys.Yank) && selected:
			return m, yank(item.info.Path)
		case key.Matches(msg, keys.Export) && selected:
			return m, m.exportDocument(item.info)
		case key.Matches(msg, keys.Reload):
			m.status = "reloading"
			return m, m.loadProjects
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	var footer string
	switch {
	case m.err != nil:
		footer = errorStyle.Render(m.err.Error())
	case m.status != "":
		footer = statusStyle.Render(m.status)
	}

	if m.detail != nil {
		return lipgloss.JoinVertical(lipgloss.Left, m.detailView(), footer)
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), footer)
}

func (m Model) detailView() string {
	d := m.detail
	stats := d.doc.Stats()

	var b strings.Builder
	b.WriteString(titleStyle.Render(d.info.Name))
	b.WriteString("\n\n")
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}
	row("Path", d.info.Path)
	row("Size", humanSize(d.info.Size))
	row("Layers", fmt.Sprint(stats.Layers))
	row("Strokes", fmt.Sprint(stats.Strokes))
	row("Points", fmt.Sprint(stats.Points))
	row("Camera", fmt.Sprintf("(%g, %g) zoom %g", d.doc.Camera.X, d.doc.Camera.Y, d.doc.Camera.Zoom))
	row("Tool", fmt.Sprintf("%s %s width %g", d.doc.ActiveTool, d.doc.ActiveColor, d.doc.ActiveWidth))

	b.WriteString("\n")
	for _, l := range d.doc.Layers {
		marker := "●"
		if !l.Visible {
			marker = "○"
		}
		lock := ""
		if l.Locked {
			lock = " (locked)"
		}
		fmt.Fprintf(&b, "%s %s%s: %d strokes, opacity %g\n", marker, l.Name, lock, len(l.StrokeIDs), l.Opacity)
	}
	b.WriteString("\n")
	b.WriteString(labelStyle.Render("esc back · y copy path · p export pdf"))

	box := detailBoxStyle
	if m.width > 4 {
		box = box.Width(m.width - 4)
	}
	return box.Render(b.String())
}

// Run starts the browser on the terminal.
func Run(svc *commands.Service, exportDir string) error {
	p := tea.NewProgram(New(svc, exportDir), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
