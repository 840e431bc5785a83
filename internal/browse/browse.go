// Package browse is an interactive terminal browser for search results.
package browse

import (
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/akarpov/jobscout/internal/model"
)

// Lines per record in the list view (title + subtitle + blank separator).
const recordItemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	selectedTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("24"))

	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Width(16)

	staleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

type browseModel struct {
	records []model.JobRecord
	result  model.AggregatedResult

	view   viewState
	cursor int
	width  int
	height int
	ready  bool
	list   viewport.Model
	detail viewport.Model
}

// Run opens the interactive browser over an aggregated result.
func Run(result model.AggregatedResult) error {
	m := browseModel{
		records: result.Records,
		result:  result,
	}
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m browseModel) Init() tea.Cmd {
	return nil
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list = viewport.New(m.width, m.height-2)
		m.detail = viewport.New(m.width, m.height-2)
		m.list.SetContent(m.renderList())
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}
	return m, nil
}

func (m browseModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		m.list.SetContent(m.renderList())
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		if m.cursor < len(m.records)-1 {
			m.cursor++
		}
		m.list.SetContent(m.renderList())
		m.ensureCursorVisible()
		return m, nil
	case "o":
		if m.cursor < len(m.records) {
			openURL(m.records[m.cursor].URL)
		}
		return m, nil
	case "enter":
		if len(m.records) == 0 {
			return m, nil
		}
		m.view = viewDetail
		m.detail.SetContent(m.renderDetail(m.records[m.cursor]))
		m.detail.GotoTop()
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m browseModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "b", "backspace":
		m.view = viewList
		return m, nil
	case "o":
		openURL(m.records[m.cursor].URL)
		return m, nil
	}

	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m *browseModel) ensureCursorVisible() {
	top := m.cursor * recordItemHeight
	bottom := top + recordItemHeight
	if top < m.list.YOffset {
		m.list.SetYOffset(top)
	} else if bottom > m.list.YOffset+m.list.Height {
		m.list.SetYOffset(bottom - m.list.Height)
	}
}

func (m browseModel) View() string {
	if !m.ready {
		return "loading…"
	}

	var body string
	var hint string
	if m.view == viewDetail {
		body = m.detail.View()
		hint = "esc back · o open · q quit"
	} else {
		body = m.list.View()
		hint = "↑/↓ move · enter detail · o open · q quit"
	}

	header := headerStyle.Render(fmt.Sprintf("jobscout — %d vacancies", len(m.records)))
	status := statusBarStyle.Width(m.width).Render(m.statusLine() + "  " + hint)
	return header + "\n" + body + "\n" + status
}

// statusLine summarizes per-source outcomes, e.g. "hh ok(10) · geekjob timed_out".
func (m browseModel) statusLine() string {
	sites := make([]string, 0, len(m.result.Sources))
	for site := range m.result.Sources {
		sites = append(sites, site)
	}
	sort.Strings(sites)

	parts := make([]string, 0, len(sites))
	for _, site := range sites {
		st := m.result.Sources[site]
		if st.State == model.StateOK {
			parts = append(parts, fmt.Sprintf("%s ok(%d)", site, st.Records))
		} else {
			parts = append(parts, fmt.Sprintf("%s %s", site, st.State))
		}
	}
	line := strings.Join(parts, " · ")
	if m.result.LocationStale {
		line += staleStyle.Render(" · stale location")
	}
	return line
}

func (m browseModel) renderList() string {
	if len(m.records) == 0 {
		return subtitleStyle.Render("no results")
	}

	var b strings.Builder
	for i, r := range m.records {
		title := titleStyle
		subtitle := subtitleStyle
		if i == m.cursor {
			title = selectedTitleStyle
			subtitle = selectedSubtitleStyle
		}

		b.WriteString(title.Render(r.Title))
		b.WriteString("\n")
		b.WriteString(subtitle.Render(listSubtitle(r)))
		b.WriteString("\n\n")
	}
	return b.String()
}

func listSubtitle(r model.JobRecord) string {
	parts := []string{r.SourceID}
	if r.Company != "" {
		parts = append(parts, r.Company)
	}
	if r.Location != "" {
		parts = append(parts, r.Location)
	}
	if r.Salary != "" {
		parts = append(parts, r.Salary)
	}
	return strings.Join(parts, " · ")
}

func (m browseModel) renderDetail(r model.JobRecord) string {
	var b strings.Builder
	row := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}

	b.WriteString(titleStyle.Render(r.Title))
	b.WriteString("\n\n")
	row("Company", r.Company)
	row("Location", r.Location)
	row("Salary", r.Salary)
	if r.PublishedAt != nil {
		row("Published", r.PublishedAt.Format("02.01.2006"))
	}
	row("Source", r.SourceID)
	row("Link", r.URL)
	if r.Requirements != "" {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Requirements"))
		b.WriteString("\n")
		b.WriteString(r.Requirements)
		b.WriteString("\n")
	}
	if r.Responsibilities != "" {
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Responsibilities"))
		b.WriteString("\n")
		b.WriteString(r.Responsibilities)
		b.WriteString("\n")
	}
	return b.String()
}

// openURL opens the URL with the platform's default browser. Errors are
// ignored: this is a convenience, not a contract.
func openURL(url string) {
	if url == "" {
		return
	}
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err == nil {
		go func() { _ = cmd.Wait() }()
	}
}
