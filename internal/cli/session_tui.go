package cli

import (
	"fmt"
	"strings"

	"github.com/brianndofor/cloudguard/internal/store"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type sessionMode int

const (
	sessionModeList sessionMode = iota
	sessionModeAction
)

type sessionResult struct {
	Item   store.ReviewContext
	Action string
}

type sessionModel struct {
	allItems []store.ReviewContext
	list     list.Model
	search   textinput.Model
	mode     sessionMode
	query    string
	notice   string
	result   sessionResult
	width    int
	height   int
}

type contextItem struct {
	rc store.ReviewContext
}

func (i contextItem) Title() string {
	return fmt.Sprintf("%s [%s]", i.rc.ServiceName, i.rc.Status)
}

func (i contextItem) Description() string {
	return fmt.Sprintf("%s/%s#%s  Controls: %d  Updated: %s", i.rc.RepoOwner, i.rc.RepoName, i.rc.ProposalID, len(i.rc.Controls), i.rc.LastUpdated.Format("2006-01-02 15:04"))
}

func (i contextItem) FilterValue() string {
	return strings.ToLower(i.rc.ServiceName)
}

func newSessionModel(items []store.ReviewContext, notice string) sessionModel {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	listModel := list.New([]list.Item{}, delegate, 0, 0)
	listModel.Title = "cloudguard session"
	listModel.SetShowStatusBar(false)
	listModel.SetShowHelp(false)
	listModel.SetFilteringEnabled(false)

	search := textinput.New()
	search.Placeholder = "type to search"
	search.Prompt = "Search: "
	search.Focus()

	m := sessionModel{
		allItems: items,
		list:     listModel,
		search:   search,
		mode:     sessionModeList,
		notice:   notice,
	}
	m.applyFilter()
	return m
}

func (m *sessionModel) applyFilter() {
	query := strings.ToLower(strings.TrimSpace(m.search.Value()))
	filtered := make([]list.Item, 0, len(m.allItems))
	for _, rc := range m.allItems {
		if query == "" || strings.Contains(strings.ToLower(rc.ServiceName), query) {
			filtered = append(filtered, contextItem{rc: rc})
		}
	}
	m.list.SetItems(filtered)
	if len(filtered) > 0 {
		m.list.Select(0)
	}
	m.query = m.search.Value()
}

func (m sessionModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m sessionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := lipgloss.Height(m.headerView())
		footerHeight := lipgloss.Height(m.footerView())
		listHeight := msg.Height - headerHeight - footerHeight - 3
		if listHeight < 4 {
			listHeight = 4
		}
		m.list.SetSize(msg.Width, listHeight)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			if m.mode == sessionModeAction {
				return m, tea.Quit
			}
		}
		if m.mode == sessionModeAction {
			switch msg.String() {
			case "esc", "backspace":
				m.mode = sessionModeList
				return m, nil
			case "enter", "s":
				return m.chooseAction("sync"), tea.Quit
			case "t":
				return m.chooseAction("terraform"), tea.Quit
			case "e":
				return m.chooseAction("export"), tea.Quit
			case "o":
				return m.chooseAction("open"), tea.Quit
			}
			return m, nil
		}
		if msg.String() == "esc" {
			return m, tea.Quit
		}
	}

	if m.mode == sessionModeList {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		if m.search.Value() != m.query {
			m.applyFilter()
		}
		var listCmd tea.Cmd
		m.list, listCmd = m.list.Update(msg)
		if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
			if len(m.list.Items()) == 0 {
				return m, nil
			}
			m.mode = sessionModeAction
		}
		return m, tea.Batch(cmd, listCmd)
	}

	return m, nil
}

func (m sessionModel) chooseAction(action string) sessionModel {
	selected, ok := m.list.SelectedItem().(contextItem)
	if !ok {
		return m
	}
	m.result = sessionResult{Item: selected.rc, Action: action}
	return m
}

func (m sessionModel) View() string {
	header := m.headerView()
	footer := m.footerView()
	content := m.list.View()
	if len(m.list.Items()) == 0 {
		content = "No services match your search."
	}
	parts := []string{header}
	if m.notice != "" {
		parts = append(parts, lipgloss.NewStyle().Faint(true).Render(m.notice))
	}
	parts = append(parts, m.search.View(), content)
	if m.mode == sessionModeAction {
		parts = append(parts, m.actionView())
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m sessionModel) headerView() string {
	return lipgloss.NewStyle().Bold(true).Render("cloudguard session")
}

func (m sessionModel) footerView() string {
	if m.mode == sessionModeAction {
		return "Press ESC to go back, or choose an action."
	}
	return "Type to search • ↑/↓ to move • Enter for actions • Esc to quit"
}

func (m sessionModel) actionView() string {
	style := lipgloss.NewStyle().Bold(true)
	return style.Render("Actions: [s]ync [t]erraform [e]xport [o]pen [esc] back [q]uit")
}

func runSessionTUI(items []store.ReviewContext, notice string) (sessionResult, error) {
	model := newSessionModel(items, notice)
	program := tea.NewProgram(model, tea.WithAltScreen())
	finalModel, err := program.Run()
	if err != nil {
		return sessionResult{}, err
	}
	finalSession, ok := finalModel.(sessionModel)
	if !ok {
		return sessionResult{}, fmt.Errorf("unexpected TUI model")
	}
	return finalSession.result, nil
}
