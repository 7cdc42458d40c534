// Package board renders the latest scores and forecasts as an interactive
// terminal scoreboard.
package board

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/hiringradar/internal/model"
)

// Lines per company item in the list view (name + subtitle + blank separator).
const rowItemHeight = 3

type viewState int

const (
	viewList viewState = iota
	viewDetail
)

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39"))

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	rowTitleStyle = lipgloss.NewStyle().
			Bold(true)

	rowSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedRowTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedRowSubtitleStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("252")).
					Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(18)

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				MarginBottom(1)

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Italic(true)
)

// Row joins a company's latest score and forecast.
type Row struct {
	CompanyID   int64
	Company     string
	Score       int
	ScoredAt    time.Time
	Details     map[string]any
	DetailsErr  string
	HasForecast bool
	ProbNext8W  float64
	LikelyMonth string
	Method      string
}

// Data is everything the board shows on open.
type Data struct {
	RoleFamily string
	Scores     []model.HiringScore
	Forecasts  []model.Forecast
}

// PostingLoader fetches the open postings shown in the detail view.
type PostingLoader func(ctx context.Context, companyID int64) ([]model.JobPosting, error)

// BuildRows merges scores and forecasts by company. Companies with only a
// forecast get a zero score.
func BuildRows(scores []model.HiringScore, forecasts []model.Forecast) []Row {
	byID := make(map[int64]*Row)
	var order []int64
	get := func(id int64, name string) *Row {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &Row{CompanyID: id, Company: name}
		byID[id] = r
		order = append(order, id)
		return r
	}

	for _, s := range scores {
		r := get(s.CompanyID, s.CompanyName)
		r.Score = s.Score
		r.ScoredAt = s.ComputedAt
		if len(s.Details) > 0 {
			// Undecodable details leave Details nil; the row itself still shows.
			var details map[string]any
			if err := json.Unmarshal(s.Details, &details); err != nil {
				r.DetailsErr = err.Error()
			} else {
				r.Details = details
			}
		}
	}
	for _, f := range forecasts {
		r := get(f.CompanyID, f.CompanyName)
		r.HasForecast = true
		r.ProbNext8W = f.ProbNext8W
		r.LikelyMonth = f.LikelyMonth
		r.Method = f.Method
	}

	rows := make([]Row, 0, len(order))
	for _, id := range order {
		rows = append(rows, *byID[id])
	}
	return rows
}

func sortByScore(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Company < rows[j].Company
	})
}

func sortByForecast(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ProbNext8W != rows[j].ProbNext8W {
			return rows[i].ProbNext8W > rows[j].ProbNext8W
		}
		return rows[i].Company < rows[j].Company
	})
}

// postingsLoadedMsg is sent when an async postings fetch completes.
type postingsLoadedMsg struct {
	companyID int64
	postings  []model.JobPosting
	err       error
}

type boardModel struct {
	roleFamily    string
	byScore       []Row
	byForecast    []Row
	leftViewport  viewport.Model
	rightViewport viewport.Model
	activePane    int // 0=scores, 1=forecasts
	leftCursor    int
	rightCursor   int
	width         int
	height        int
	ready         bool

	view           viewState
	detailRow      Row
	detailLoading  bool
	detailError    string
	detailPostings []model.JobPosting
	detailViewport viewport.Model
	loadPostings   PostingLoader
}

func newBoardModel(data Data, loader PostingLoader) boardModel {
	rows := BuildRows(data.Scores, data.Forecasts)
	byScore := append([]Row(nil), rows...)
	sortByScore(byScore)

	var byForecast []Row
	for _, r := range rows {
		if r.HasForecast {
			byForecast = append(byForecast, r)
		}
	}
	sortByForecast(byForecast)

	return boardModel{
		roleFamily:   data.RoleFamily,
		byScore:      byScore,
		byForecast:   byForecast,
		loadPostings: loader,
	}
}

func (m boardModel) Init() tea.Cmd {
	return nil
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		if m.view == viewDetail {
			m.detailViewport.Width = m.width - 4
			m.detailViewport.Height = m.height - 4
			m.detailViewport.SetContent(m.renderDetail())
		}
		return m, nil

	case postingsLoadedMsg:
		if msg.companyID != m.detailRow.CompanyID {
			return m, nil
		}
		m.detailLoading = false
		if msg.err != nil {
			m.detailError = fmt.Sprintf("failed to load postings: %v", msg.err)
		} else {
			m.detailError = ""
			m.detailPostings = msg.postings
		}
		m.detailViewport.SetContent(m.renderDetail())
		return m, nil

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetailView(msg)
		}
		return m.updateListView(msg)
	}

	return m, nil
}

func (m boardModel) updateListView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "tab", "left", "right":
		m.activePane = 1 - m.activePane
		m.recalcContent()
		return m, nil
	case "up", "k":
		m.moveCursor(-1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "down", "j":
		m.moveCursor(1)
		m.recalcContent()
		m.ensureCursorVisible()
		return m, nil
	case "enter":
		return m.openDetailView()
	}

	var cmd tea.Cmd
	if m.activePane == 0 {
		m.leftViewport, cmd = m.leftViewport.Update(msg)
	} else {
		m.rightViewport, cmd = m.rightViewport.Update(msg)
	}
	return m, cmd
}

func (m boardModel) updateDetailView(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "backspace":
		m.view = viewList
		return m, nil
	}

	var cmd tea.Cmd
	m.detailViewport, cmd = m.detailViewport.Update(msg)
	return m, cmd
}

func (m *boardModel) moveCursor(delta int) {
	if m.activePane == 0 {
		m.leftCursor = clamp(m.leftCursor+delta, 0, max(len(m.byScore)-1, 0))
	} else {
		m.rightCursor = clamp(m.rightCursor+delta, 0, max(len(m.byForecast)-1, 0))
	}
}

func (m *boardModel) ensureCursorVisible() {
	vp, cursor := &m.leftViewport, m.leftCursor
	if m.activePane == 1 {
		vp, cursor = &m.rightViewport, m.rightCursor
	}

	cursorTop := cursor * rowItemHeight
	cursorBottom := cursorTop + rowItemHeight - 1

	if cursorTop < vp.YOffset {
		vp.SetYOffset(cursorTop)
	} else if cursorBottom >= vp.YOffset+vp.Height {
		vp.SetYOffset(cursorBottom - vp.Height + 1)
	}
}

func (m boardModel) openDetailView() (tea.Model, tea.Cmd) {
	rows, cursor := m.byScore, m.leftCursor
	if m.activePane == 1 {
		rows, cursor = m.byForecast, m.rightCursor
	}
	if len(rows) == 0 {
		return m, nil
	}

	m.view = viewDetail
	m.detailRow = rows[cursor]
	m.detailError = ""
	m.detailPostings = nil
	m.detailViewport = viewport.New(max(m.width-4, 20), max(m.height-4, 5))

	var cmd tea.Cmd
	if m.loadPostings != nil {
		m.detailLoading = true
		cmd = m.loadPostingsCmd(m.detailRow.CompanyID)
	}
	m.detailViewport.SetContent(m.renderDetail())
	return m, cmd
}

func (m boardModel) loadPostingsCmd(companyID int64) tea.Cmd {
	load := m.loadPostings
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		postings, err := load(ctx, companyID)
		return postingsLoadedMsg{companyID: companyID, postings: postings, err: err}
	}
}

func (m *boardModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes.
	paneWidth := max((m.width-5)/2, 20)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.leftViewport = viewport.New(paneWidth, paneHeight)
		m.rightViewport = viewport.New(paneWidth, paneHeight)
		m.ready = true
	} else {
		m.leftViewport.Width = paneWidth
		m.leftViewport.Height = paneHeight
		m.rightViewport.Width = paneWidth
		m.rightViewport.Height = paneHeight
	}

	m.recalcContent()
}

func (m *boardModel) recalcContent() {
	m.leftViewport.SetContent(renderRows(m.byScore, m.leftCursor, m.activePane == 0, scoreSubtitle))
	m.rightViewport.SetContent(renderRows(m.byForecast, m.rightCursor, m.activePane == 1, forecastSubtitle))
}

func (m boardModel) View() string {
	if !m.ready {
		return "Initializing..."
	}
	if m.view == viewDetail {
		return m.viewDetail()
	}
	return m.viewList()
}

func (m boardModel) viewList() string {
	paneWidth := m.leftViewport.Width

	leftHeader := fmt.Sprintf(" Scores · %s (%d)", m.roleFamily, len(m.byScore))
	rightHeader := fmt.Sprintf(" Forecasts · next 8 weeks (%d)", len(m.byForecast))

	leftHeaderRendered, rightHeaderRendered := activeHeaderStyle.Render(leftHeader), inactiveHeaderStyle.Render(rightHeader)
	leftBorder, rightBorder := activeBorderStyle.Width(paneWidth), inactiveBorderStyle.Width(paneWidth)
	if m.activePane == 1 {
		leftHeaderRendered, rightHeaderRendered = inactiveHeaderStyle.Render(leftHeader), activeHeaderStyle.Render(rightHeader)
		leftBorder, rightBorder = inactiveBorderStyle.Width(paneWidth), activeBorderStyle.Width(paneWidth)
	}

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(paneWidth+2).Render(leftHeaderRendered),
		" ",
		lipgloss.NewStyle().Width(paneWidth+2).Render(rightHeaderRendered),
	)
	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		leftBorder.Render(m.leftViewport.View()), " ", rightBorder.Render(m.rightViewport.View()))

	statusText := fmt.Sprintf(" %d companies    ←/→/Tab switch  ↑/↓ cursor  Enter detail  q quit", len(m.byScore))
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func (m boardModel) viewDetail() string {
	title := detailTitleStyle.Render(m.detailRow.Company)
	if m.detailLoading {
		title += "  (loading...)"
	}
	content := activeBorderStyle.Width(m.width - 2).Render(m.detailViewport.View())
	statusBar := statusBarStyle.Width(m.width).Render(" esc/backspace back  ↑/↓ scroll  q quit")
	return title + "\n" + content + "\n" + statusBar
}

func (m boardModel) renderDetail() string {
	r := m.detailRow
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(value)
		b.WriteByte('\n')
	}

	addField("Score", fmt.Sprintf("%d", r.Score))
	if !r.ScoredAt.IsZero() {
		addField("Computed At", r.ScoredAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	if r.HasForecast {
		addField("P(next 8 weeks)", fmt.Sprintf("%.2f", r.ProbNext8W))
		addField("Likely Month", r.LikelyMonth)
		addField("Method", r.Method)
	}

	if r.DetailsErr != "" {
		b.WriteByte('\n')
		b.WriteString(divider("── Score Details ", m.width) + "\n")
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("⚠ unreadable: "+r.DetailsErr) + "\n")
	} else if len(r.Details) > 0 {
		b.WriteByte('\n')
		b.WriteString(divider("── Score Details ", m.width) + "\n")
		keys := make([]string, 0, len(r.Details))
		for k := range r.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			addField(k, fmt.Sprint(r.Details[k]))
		}
	}

	b.WriteByte('\n')
	b.WriteString(divider("── Open Postings ", m.width) + "\n")
	switch {
	case m.detailError != "":
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("⚠ "+m.detailError) + "\n")
	case m.detailLoading:
		b.WriteString(hintStyle.Render("  loading postings...") + "\n")
	case len(m.detailPostings) == 0:
		b.WriteString(hintStyle.Render("  no open postings") + "\n")
	default:
		for _, p := range m.detailPostings {
			line := fmt.Sprintf("  • %s", p.Title)
			if p.Location != "" {
				line += " · " + p.Location
			}
			line += " · " + p.UpdatedAt.Format("2006-01-02")
			b.WriteString(line + "\n")
		}
	}

	return b.String()
}

func divider(label string, width int) string {
	fill := strings.Repeat("─", max(width-8-len(label), 3))
	return dividerStyle.Render(label + fill)
}

func scoreSubtitle(r Row) string {
	if r.ScoredAt.IsZero() {
		return "not scored"
	}
	return fmt.Sprintf("score %d · %s", r.Score, r.ScoredAt.Format("2006-01-02"))
}

func forecastSubtitle(r Row) string {
	return fmt.Sprintf("p=%.2f · %s · %s", r.ProbNext8W, r.LikelyMonth, r.Method)
}

func renderRows(rows []Row, cursor int, isActive bool, subtitle func(Row) string) string {
	if len(rows) == 0 {
		return "  (no companies)"
	}

	var b strings.Builder
	for i, r := range rows {
		titleSt, subtitleSt, prefix := rowTitleStyle, rowSubtitleStyle, "  "
		if isActive && i == cursor {
			titleSt, subtitleSt, prefix = selectedRowTitleStyle, selectedRowSubtitleStyle, "> "
		}

		b.WriteString(prefix)
		b.WriteString(titleSt.Render(fmt.Sprintf("%d. %s", i+1, r.Company)))
		b.WriteByte('\n')
		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(subtitle(r)))
		b.WriteByte('\n')

		if i < len(rows)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Run launches the split-pane scoreboard. loader may be nil, in which case
// the detail view shows scores only.
func Run(data Data, loader PostingLoader) error {
	p := tea.NewProgram(newBoardModel(data, loader), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
