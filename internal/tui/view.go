package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/ragdesk/internal/session"
)

func (m *model) View() string {
	switch m.stage {
	case stageFiles:
		return m.viewFiles()
	case stageUploadEntry:
		return m.viewUploadEntry()
	default:
		return m.viewChat()
	}
}

func (m *model) viewChat() string {
	m.refreshViewportIfDirty()
	parts := []string{m.headerView(), m.viewport.View()}
	if m.querying {
		parts = append(parts, helperStyle.Render(fmt.Sprintf("%s Thinking…", m.spinner.View())))
	}
	parts = append(parts, m.composer.View())
	if m.errorMessage != "" {
		parts = append(parts, errorStyle.Render(m.errorMessage))
	}
	if m.infoMessage != "" {
		parts = append(parts, helperStyle.Render(m.infoMessage))
	}
	if m.helpVisible {
		parts = append(parts, m.helpView())
	}
	return joinNonEmpty(parts)
}

func (m *model) viewFiles() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Knowledge Base Files"))
	b.WriteRune('\n')
	if len(m.documents) == 0 {
		b.WriteString(helperStyle.Render("No files in knowledge base"))
		b.WriteRune('\n')
	}
	for i, doc := range m.documents {
		cursor := " "
		if i == m.fileCursor {
			cursor = ">"
		}
		details := formatFileSize(doc.SizeBytes)
		if doc.ChunkCount > 0 {
			details += fmt.Sprintf(" · %d chunks", doc.ChunkCount)
		}
		if !doc.AddedAt.IsZero() {
			details += " · " + doc.AddedAt.Format("2006-01-02")
		}
		row := fmt.Sprintf(" %s %s", cursor, doc.Name)
		if i == m.fileCursor {
			row = currentLineStyle.Render(row)
		}
		b.WriteString(row)
		b.WriteRune('\n')
		b.WriteString(helperStyle.Render("     " + details))
		b.WriteRune('\n')
	}
	if m.deleting || m.uploading {
		b.WriteRune('\n')
		b.WriteString(helperStyle.Render(fmt.Sprintf("%s Working…", m.spinner.View())))
		b.WriteRune('\n')
	}
	if m.showChunks && len(m.lastChunks) > 0 {
		b.WriteRune('\n')
		b.WriteString(sectionHeaderStyle.Render(fmt.Sprintf("Chunks From Last Upload (%d)", len(m.lastChunks))))
		b.WriteRune('\n')
		wrap := m.wrapWidth(6)
		for _, chunk := range m.lastChunks {
			b.WriteString(fmt.Sprintf(" %s)\n", chunk.ID.String()))
			b.WriteString(indentMultiline(wordwrap.String(chunk.Text, wrap), "     "))
			b.WriteRune('\n')
		}
	}
	parts := []string{m.headerView(), b.String()}
	if m.errorMessage != "" {
		parts = append(parts, errorStyle.Render(m.errorMessage))
	}
	if m.infoMessage != "" {
		parts = append(parts, helperStyle.Render(m.infoMessage))
	}
	parts = append(parts, helperStyle.Render("u upload · d delete · c chunks · r refresh · Esc back"))
	return joinNonEmpty(parts)
}

func (m *model) viewUploadEntry() string {
	var b strings.Builder
	b.WriteString(sectionHeaderStyle.Render("Upload File"))
	b.WriteRune('\n')
	b.WriteString(m.pathInput.View())
	b.WriteRune('\n')
	b.WriteString(helperStyle.Render("Only .txt and .pdf files are accepted. Enter to upload, Esc to cancel."))
	return joinNonEmpty([]string{m.headerView(), b.String()})
}

func (m *model) headerView() string {
	mode := "chat"
	modeStyle := toggleOffStyle
	if m.config.Session.Toggle().Enabled() {
		mode = "retrieval"
		modeStyle = toggleOnStyle
	}
	stats := []string{
		titleStyle.Render("ragdesk"),
		helperStyle.Render(m.config.BackendHost),
		modeStyle.Render(mode),
		helperStyle.Render("model " + m.config.Session.Model()),
		helperStyle.Render(fmt.Sprintf("%d docs", len(m.documents))),
	}
	return statusBarStyle.Render(strings.Join(stats, "  •  "))
}

func (m *model) helpView() string {
	lines := []string{
		sectionHeaderStyle.Render("Keys"),
		helperStyle.Render("• Enter sends the composer text; one question at a time."),
		helperStyle.Render("• Ctrl+K toggles retrieval mode; it refuses while the store is empty."),
		helperStyle.Render("• Ctrl+F opens the file manager (u upload, d delete, c chunks)."),
		helperStyle.Render("• Ctrl+S saves the transcript, Ctrl+C quits."),
	}
	return helpBoxStyle.Render(strings.Join(lines, "\n"))
}

func (m *model) refreshViewportIfDirty() {
	if !m.viewportDirty {
		return
	}
	m.viewportDirty = false
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.buildTranscript())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

func (m *model) buildTranscript() string {
	messages := m.config.Session.Log().Messages()
	if len(messages) == 0 {
		return helperStyle.Render("No messages yet. The conversation will appear here.")
	}
	wrap := m.wrapWidth(4)
	var b strings.Builder
	now := time.Now()
	for _, msg := range messages {
		if noticeExpired(msg, now) {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(renderMessage(msg, wrap))
	}
	return b.String()
}

// noticeExpired hides system notices past their advisory TTL. The entries
// stay in the log; only the rendering fades.
func noticeExpired(msg session.Message, now time.Time) bool {
	return msg.Role == session.RoleSystem && msg.AutoExpire > 0 && now.Sub(msg.CreatedAt) > msg.AutoExpire
}

func renderMessage(msg session.Message, wrap int) string {
	switch msg.Role {
	case session.RoleUser:
		return userLabelStyle.Render("You") + "\n" + indentMultiline(wordwrap.String(msg.Text, wrap), "  ")
	case session.RoleAssistant:
		var b strings.Builder
		b.WriteString(assistantLabelStyle.Render("Assistant"))
		if msg.Confidence != nil {
			b.WriteString(helperStyle.Render(fmt.Sprintf("  (confidence %.0f%%)", *msg.Confidence*100)))
		}
		b.WriteRune('\n')
		b.WriteString(indentMultiline(wordwrap.String(msg.Text, wrap), "  "))
		if msg.Reflection != nil && msg.Reflection.Understanding != "" {
			b.WriteRune('\n')
			b.WriteString(helperStyle.Render(indentMultiline(wordwrap.String("Reflection: "+msg.Reflection.Understanding, wrap), "  ")))
		}
		if len(msg.Sources) > 0 {
			b.WriteRune('\n')
			b.WriteString(helperStyle.Render("  Sources:"))
			for _, source := range msg.Sources {
				line := "   - " + source.Label
				if source.Excerpt != "" {
					line += ": " + source.Excerpt
				}
				b.WriteRune('\n')
				b.WriteString(helperStyle.Render(wordwrap.String(line, wrap)))
			}
		}
		return b.String()
	case session.RoleError:
		return errorStyle.Render(indentMultiline(wordwrap.String("Error: "+msg.Text, wrap), ""))
	default:
		return systemStyle.Render(indentMultiline(wordwrap.String(msg.Text, wrap), ""))
	}
}

func (m *model) wrapWidth(padding int) int {
	width := m.viewport.Width
	if width <= 0 {
		width = 80
	}
	available := width - padding
	if available < 20 {
		available = 20
	}
	return available
}

func indentMultiline(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

func joinNonEmpty(parts []string) string {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		filtered = append(filtered, part)
	}
	return strings.Join(filtered, "\n\n")
}

func formatFileSize(size int64) string {
	units := []string{"B", "KB", "MB", "GB"}
	value := float64(size)
	idx := 0
	for value >= 1024 && idx < len(units)-1 {
		value /= 1024
		idx++
	}
	if idx == 0 {
		return fmt.Sprintf("%d %s", size, units[idx])
	}
	return fmt.Sprintf("%.1f %s", value, units[idx])
}

var (
	titleStyle          = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	sectionHeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	errorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helperStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	systemStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("110")).Italic(true)
	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	statusBarStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6")).Padding(0, 1)
	toggleOnStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#a3be8c")).Padding(0, 1)
	toggleOffStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#d8dee9")).Padding(0, 1)
	currentLineStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#0f0f0f")).Background(lipgloss.Color("#8ecae6"))
	helpBoxStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#56526e")).Padding(1, 2)
)
