package ui

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"tendo/internal/config"
	"tendo/internal/lifecycle"
	"tendo/internal/repo"
	"tendo/internal/task"
)

type mode int

const (
	modeList mode = iota
	modeAdd
	modeMetadata
	modeSearch
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	doneStyle    = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle  = lipgloss.NewStyle().Faint(true)
)

type metaState struct {
	taskID     uuid.UUID
	notes      string
	priority   string
	due        string
	recurrence string
	category   string
	index      int
}

// snapshotMsg carries a fresh committed snapshot pushed by the
// repository subscription.
type snapshotMsg []task.Task

type Model struct {
	repo       *repo.Repository
	cfg        config.Config
	sub        <-chan []task.Task
	all        []task.Task
	tasks      []task.Task
	cursor     int
	mode       mode
	input      textinput.Model
	status     string
	filter     string
	query      string
	confirmDel bool
	pendingDel *task.Task
	meta       *metaState
}

func Run(ctx context.Context, r *repo.Repository, cfg config.Config) error {
	ti := textinput.New()
	ti.Placeholder = "Task title"
	ti.CharLimit = 256
	ti.Width = 40

	m := Model{
		repo:   r,
		cfg:    cfg,
		sub:    r.Subscribe(ctx),
		status: "Press 'a' to add, space to toggle, 'd' to delete.",
		input:  ti,
		mode:   modeList,
		filter: strings.ToLower(cfg.DefaultFilter),
	}

	program := tea.NewProgram(m)
	_, err := program.Run()
	return err
}

func listen(sub <-chan []task.Task) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-sub
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

func (m Model) Init() tea.Cmd {
	return listen(m.sub)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.all = msg
		m.applyFilter()
		m.cursor = clampCursor(m.cursor, len(m.tasks))
		return m, listen(m.sub)
	case tea.KeyMsg:
		if m.meta != nil {
			return m.updateMetadataMode(msg.String(), msg)
		}
		if m.confirmDel {
			return m.updateDeleteConfirm(msg.String())
		}
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.input.Width = msg.Width - 10
	}
	return m, nil
}

func (m *Model) applyFilter() {
	filtered := make([]task.Task, 0, len(m.all))
	for _, t := range m.all {
		switch m.filter {
		case "active":
			if t.Completed {
				continue
			}
		case "done":
			if !t.Completed {
				continue
			}
		}
		if m.query != "" && !t.Matches(m.query) {
			continue
		}
		filtered = append(filtered, t)
	}
	m.tasks = filtered
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch m.mode {
	case modeAdd:
		return m.updateAddMode(key, msg)
	case modeSearch:
		return m.updateSearchMode(key, msg)
	}
	return m.updateListMode(key)
}

func (m Model) updateAddMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel:
		m.mode = modeList
		m.input.SetValue("")
		m.status = "Cancelled"
		return m, nil
	case m.cfg.Keys.Confirm:
		title := strings.TrimSpace(m.input.Value())
		if title == "" {
			m.status = "Title cannot be empty"
			return m, nil
		}
		if _, err := m.repo.CreateTask(context.Background(), lifecycle.CreateFields{Title: title}); err != nil {
			m.status = fmt.Sprintf("save failed: %v", err)
			return m, nil
		}
		m.status = "Added task"
		m.input.SetValue("")
		m.input.Blur()
		m.mode = modeList
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) updateSearchMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel:
		m.query = ""
		m.mode = modeList
		m.input.SetValue("")
		m.input.Blur()
		m.applyFilter()
		m.status = "Search cleared"
		return m, nil
	case m.cfg.Keys.Confirm:
		m.query = strings.TrimSpace(m.input.Value())
		m.mode = modeList
		m.input.Blur()
		m.applyFilter()
		m.cursor = clampCursor(m.cursor, len(m.tasks))
		m.status = fmt.Sprintf("Filtering by %q", m.query)
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c", m.cfg.Keys.Quit:
		return m, tea.Quit
	case m.cfg.Keys.Down, "down":
		if len(m.tasks) == 0 {
			return m, nil
		}
		m.cursor = clampCursor(m.cursor+1, len(m.tasks))
	case m.cfg.Keys.Up, "up":
		if m.cursor > 0 {
			m.cursor = clampCursor(m.cursor-1, len(m.tasks))
		}
	case m.cfg.Keys.Add:
		m.mode = modeAdd
		m.input.Placeholder = "Task title"
		m.input.SetValue("")
		m.input.Focus()
		m.status = "Add mode: type a title and press Enter"
	case m.cfg.Keys.Search:
		m.mode = modeSearch
		m.input.Placeholder = "Search title or notes"
		m.input.SetValue(m.query)
		m.input.Focus()
		m.status = "Search: type a query and press Enter"
	case m.cfg.Keys.Filter:
		switch m.filter {
		case "all":
			m.filter = "active"
		case "active":
			m.filter = "done"
		default:
			m.filter = "all"
		}
		m.applyFilter()
		m.cursor = clampCursor(m.cursor, len(m.tasks))
		m.status = "Filter: " + m.filter
	case m.cfg.Keys.Toggle:
		if len(m.tasks) == 0 {
			return m, nil
		}
		t := m.tasks[m.cursor]
		if _, err := m.repo.ToggleCompletion(context.Background(), t.ID); err != nil {
			m.status = fmt.Sprintf("toggle failed: %v", err)
			return m, nil
		}
		m.status = "Toggled task"
	case m.cfg.Keys.Delete:
		if len(m.tasks) == 0 {
			return m, nil
		}
		t := m.tasks[m.cursor]
		m.confirmDel = true
		m.pendingDel = &t
		m.status = fmt.Sprintf("Delete %q? y/n", t.Title)
	case m.cfg.Keys.Detail:
		if len(m.tasks) == 0 {
			m.status = "No tasks"
			return m, nil
		}
		t := m.tasks[m.cursor]
		info := fmt.Sprintf("%s • %s • %s", t.Title, humanDone(t.Completed), t.Priority)
		if t.Due.Valid {
			info += " • due:" + t.Due.Time.Format("2006-01-02")
		}
		if t.IsRecurring() {
			info += " • repeats " + string(t.Recurrence)
		}
		if name := m.categoryName(t.CategoryID); name != "" {
			info += " • " + name
		}
		m.status = info
	case m.cfg.Keys.Edit:
		if len(m.tasks) == 0 {
			m.status = "No tasks to edit"
			return m, nil
		}
		return m.startMetadataEdit(m.tasks[m.cursor])
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("tendo"))
	b.WriteString("  " + statusStyle.Render("filter: "+m.filter))
	if m.query != "" {
		b.WriteString("  " + statusStyle.Render("search: "+m.query))
	}
	b.WriteString("\n\n")

	if len(m.tasks) == 0 {
		b.WriteString("No tasks. Press 'a' to add one.")
	} else {
		b.WriteString(m.renderTaskList())
	}

	b.WriteString("\n---\n")

	if m.meta != nil {
		b.WriteString("Metadata editor (tab to move, enter to save/next, esc to cancel)")
		b.WriteString("\n\n")
		b.WriteString(m.renderMetaBox())
		b.WriteString("\n")
		b.WriteString("Field: " + m.currentMetaLabel())
		b.WriteString("\n")
		b.WriteString(m.input.View())
	} else {
		b.WriteString(m.renderMetadataPanel())
	}

	if m.mode == modeAdd || m.mode == modeSearch {
		b.WriteString("\n")
		b.WriteString(m.input.View())
	}

	b.WriteString("\n\n")
	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(statusStyle.Render(renderHelp(m.cfg.Keys)))

	return b.String()
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N":
		m.status = "Delete cancelled"
		m.confirmDel = false
		m.pendingDel = nil
		return m, nil
	case "y", "Y":
		if m.pendingDel == nil {
			m.status = "Nothing to delete"
			m.confirmDel = false
			return m, nil
		}
		if err := m.repo.DeleteTask(context.Background(), m.pendingDel.ID); err != nil {
			m.status = fmt.Sprintf("delete failed: %v", err)
		} else {
			m.status = "Deleted task"
		}
		m.confirmDel = false
		m.pendingDel = nil
		return m, nil
	default:
		return m, nil
	}
}

func renderHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s move • %s add • %s detail • %s toggle • %s delete • %s edit • %s filter • %s search • %s quit",
		k.Up, k.Down, k.Add, k.Detail, k.Toggle, k.Delete, k.Edit, k.Filter, k.Search, k.Quit)
}

func (m Model) renderTaskList() string {
	now := time.Now()
	var b strings.Builder
	for i, t := range m.tasks {
		cursor := " "
		if m.cursor == i && m.mode == modeList {
			cursor = ">"
		}

		checkbox := "[ ]"
		if t.Completed {
			checkbox = "[x]"
		}

		line := t.Title
		if t.Due.Valid {
			line += " (" + t.Due.Time.Format("2006-01-02") + ")"
		}
		switch {
		case t.Completed:
			line = doneStyle.Render(line)
		case t.Overdue(now):
			line = overdueStyle.Render(line)
		}

		b.WriteString(fmt.Sprintf("%s %s %s", cursor, checkbox, line))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) startMetadataEdit(t task.Task) (tea.Model, tea.Cmd) {
	m.meta = &metaState{
		taskID:     t.ID,
		notes:      t.Notes,
		priority:   t.Priority.String(),
		due:        formatDate(t.Due),
		recurrence: string(t.Recurrence),
		category:   m.categoryName(t.CategoryID),
		index:      0,
	}
	m.input.SetValue(m.meta.currentValue())
	m.input.Placeholder = m.meta.currentLabel()
	m.input.Focus()
	m.mode = modeMetadata
	m.status = "Edit metadata: tab to move, enter to save/next, esc to cancel"
	return m, nil
}

func (m Model) updateMetadataMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel, "esc":
		m.meta = nil
		m.mode = modeList
		m.input.Blur()
		m.status = "Edit cancelled"
		return m, nil
	case "tab", "down":
		if m.meta == nil {
			return m, nil
		}
		m.meta.setCurrentValue(m.input.Value())
		m.meta.index = wrapIndex(m.meta.index+1, len(metaFields()))
		m.input.SetValue(m.meta.currentValue())
		m.input.Placeholder = m.meta.currentLabel()
		m.status = m.metaPrompt()
		return m, nil
	case "shift+tab", "up":
		if m.meta == nil {
			return m, nil
		}
		m.meta.setCurrentValue(m.input.Value())
		m.meta.index = wrapIndex(m.meta.index-1, len(metaFields()))
		m.input.SetValue(m.meta.currentValue())
		m.input.Placeholder = m.meta.currentLabel()
		m.status = m.metaPrompt()
		return m, nil
	case m.cfg.Keys.Confirm, "enter":
		if m.meta == nil {
			return m, nil
		}
		m.meta.setCurrentValue(m.input.Value())
		if m.meta.index >= len(metaFields())-1 {
			return m.saveMetadata()
		}
		m.meta.index++
		m.input.SetValue(m.meta.currentValue())
		m.input.Placeholder = m.meta.currentLabel()
		m.status = m.metaPrompt()
		return m, nil
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
}

func (m Model) saveMetadata() (tea.Model, tea.Cmd) {
	if m.meta == nil {
		return m, nil
	}
	priority, err := task.ParsePriority(m.meta.priority)
	if err != nil {
		m.status = fmt.Sprintf("priority invalid: %v", err)
		return m, nil
	}
	due, err := parseDate(m.meta.due)
	if err != nil {
		m.status = fmt.Sprintf("due date invalid: %v", err)
		return m, nil
	}
	recurrence, err := task.ParseRecurrence(m.meta.recurrence)
	if err != nil {
		m.status = fmt.Sprintf("recurrence invalid: %v", err)
		return m, nil
	}
	categoryID, err := m.resolveCategory(m.meta.category)
	if err != nil {
		m.status = fmt.Sprintf("category: %v", err)
		return m, nil
	}

	notes := m.meta.notes
	fields := lifecycle.UpdateFields{
		Notes:      &notes,
		Priority:   &priority,
		Due:        &due,
		Recurrence: &recurrence,
		CategoryID: &categoryID,
	}
	if _, err := m.repo.UpdateTask(context.Background(), m.meta.taskID, fields); err != nil {
		m.status = fmt.Sprintf("save failed: %v", err)
		return m, nil
	}
	m.meta = nil
	m.mode = modeList
	m.input.Blur()
	m.status = "Metadata saved"
	return m, nil
}

// resolveCategory maps a name to a category id, creating the category on
// first use. An empty name clears the reference.
func (m Model) resolveCategory(name string) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, nil
	}
	for _, c := range m.repo.Categories() {
		if strings.EqualFold(c.Name, name) {
			return c.ID, nil
		}
	}
	c, err := m.repo.CreateCategory(context.Background(), name, "", "")
	if err != nil {
		return uuid.Nil, err
	}
	return c.ID, nil
}

func (m Model) categoryName(id uuid.UUID) string {
	if id == uuid.Nil {
		return ""
	}
	if c, ok := m.repo.Category(id); ok {
		return c.Name
	}
	return ""
}

func metaFields() []string {
	return []string{"notes", "priority (low/medium/high)", "due date (YYYY-MM-DD)", "recurrence (none/daily/weekly/monthly/yearly)", "category"}
}

func (ms metaState) currentLabel() string {
	return metaFields()[ms.index]
}

func (ms metaState) currentValue() string {
	switch ms.index {
	case 0:
		return ms.notes
	case 1:
		return ms.priority
	case 2:
		return ms.due
	case 3:
		return ms.recurrence
	case 4:
		return ms.category
	default:
		return ""
	}
}

func (ms *metaState) setCurrentValue(v string) {
	switch ms.index {
	case 0:
		ms.notes = v
	case 1:
		ms.priority = v
	case 2:
		ms.due = v
	case 3:
		ms.recurrence = v
	case 4:
		ms.category = v
	}
}

func (m Model) metaPrompt() string {
	if m.meta == nil {
		return ""
	}
	return fmt.Sprintf("Editing %s (field %d of %d). Enter to advance, Esc to cancel, tab to move.",
		m.meta.currentLabel(), m.meta.index+1, len(metaFields()))
}

func parseDate(v string) (sql.NullTime, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return sql.NullTime{}, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return sql.NullTime{}, err
	}
	return sql.NullTime{Time: t, Valid: true}, nil
}

func formatDate(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.Format("2006-01-02")
}

func (m Model) currentMetaLabel() string {
	if m.meta == nil {
		return ""
	}
	return m.meta.currentLabel()
}

func (m Model) renderMetaBox() string {
	if m.meta == nil {
		return ""
	}
	fields := metaFields()
	values := []string{
		m.meta.notes,
		m.meta.priority,
		m.meta.due,
		m.meta.recurrence,
		m.meta.category,
	}
	var b strings.Builder
	for i, name := range fields {
		prefix := " "
		if i == m.meta.index {
			prefix = ">"
		}
		val := values[i]
		if strings.TrimSpace(val) == "" {
			val = "(empty)"
		}
		b.WriteString(fmt.Sprintf("%s %-44s : %s\n", prefix, name, val))
	}
	return b.String()
}

func wrapIndex(idx, n int) int {
	if n <= 0 {
		return 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

func (m Model) renderMetadataPanel() string {
	if len(m.tasks) == 0 {
		return "No task selected"
	}
	t := m.tasks[clampCursor(m.cursor, len(m.tasks))]
	var b strings.Builder
	b.WriteString("Metadata\n")
	b.WriteString(fmt.Sprintf("Title      : %s\n", t.Title))
	b.WriteString(fmt.Sprintf("State      : %s\n", humanDone(t.Completed)))
	b.WriteString(fmt.Sprintf("Notes      : %s\n", emptyPlaceholder(t.Notes)))
	b.WriteString(fmt.Sprintf("Priority   : %s\n", t.Priority))
	b.WriteString(fmt.Sprintf("Due        : %s\n", emptyPlaceholder(formatDate(t.Due))))
	b.WriteString(fmt.Sprintf("Recurrence : %s\n", t.Recurrence))
	b.WriteString(fmt.Sprintf("Category   : %s\n", emptyPlaceholder(m.categoryName(t.CategoryID))))
	return b.String()
}

func emptyPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(empty)"
	}
	return v
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}

func humanDone(done bool) string {
	if done {
		return "done"
	}
	return "open"
}
