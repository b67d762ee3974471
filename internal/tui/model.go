// Package tui is the terminal host for a RAG chat session. It renders the
// session's transcript and drives the core exclusively through its exported
// methods; all orchestration rules live in internal/session.
package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/ragdesk/internal/backend"
	"github.com/csheth/ragdesk/internal/session"
)

// Config wires runtime options into the TUI program.
type Config struct {
	Session        *session.Session
	BackendHost    string
	TranscriptPath string
}

type stage int

const (
	stageChat stage = iota
	stageFiles
	stageUploadEntry
)

const (
	minViewportWidth          = 40
	viewportHorizontalPadding = 4
)

type model struct {
	config Config
	stage  stage

	composer  textinput.Model
	pathInput textinput.Model
	spinner   spinner.Model
	viewport  viewport.Model

	documents  []backend.Document
	fileCursor int
	lastChunks []backend.Chunk
	showChunks bool

	querying      bool
	uploading     bool
	deleting      bool
	viewportDirty bool
	infoMessage   string
	errorMessage  string
	helpVisible   bool
}

// New returns a tea.Model ready to be mounted into a Program.
func New(config Config) tea.Model {
	composer := textinput.New()
	composer.Placeholder = "Ask a question…"
	composer.Focus()
	composer.CharLimit = 500
	composer.Width = 70

	pathInput := textinput.New()
	pathInput.Placeholder = "Path to a .txt or .pdf file…"
	pathInput.CharLimit = 250
	pathInput.Width = 70

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	return &model{
		config:        config,
		stage:         stageChat,
		composer:      composer,
		pathInput:     pathInput,
		spinner:       spin,
		viewport:      vp,
		viewportDirty: true,
		infoMessage:   "Type a question and press Enter. Ctrl+K toggles retrieval, Ctrl+F manages files.",
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, healthCmd(m.config.Session), refreshFilesCmd(m.config.Session), noticeTick())
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.querying || m.uploading || m.deleting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.markViewportDirty()
			return m, cmd
		}
		return m, nil
	case noticeTickMsg:
		// System notices fade after their TTL; re-render while any are
		// still visible.
		m.markViewportDirty()
		return m, noticeTick()
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case submitResultMsg:
		m.querying = false
		m.errorMessage = ""
		if msg.err != nil {
			// The session already logged transport and backend errors;
			// only caller-side rejections need the status line.
			var validationErr *backend.ValidationError
			var busyErr *backend.BusyError
			if errors.As(msg.err, &validationErr) || errors.As(msg.err, &busyErr) {
				m.errorMessage = msg.err.Error()
			}
		} else {
			m.infoMessage = "Answer received."
		}
		m.markViewportDirty()
		m.scrollToLatest()
		return m, nil
	case uploadResultMsg:
		m.uploading = false
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			m.markViewportDirty()
			return m, nil
		}
		m.errorMessage = ""
		m.lastChunks = msg.chunks
		m.infoMessage = "Uploaded " + msg.doc.Name + ". Press c to inspect chunks."
		m.markViewportDirty()
		return m, refreshFilesCmd(m.config.Session)
	case removeResultMsg:
		m.deleting = false
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			m.markViewportDirty()
			return m, nil
		}
		m.errorMessage = ""
		m.infoMessage = "Deleted " + msg.id + "."
		m.markViewportDirty()
		return m, refreshFilesCmd(m.config.Session)
	case filesResultMsg:
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			m.markViewportDirty()
			return m, nil
		}
		m.documents = msg.docs
		if m.fileCursor >= len(m.documents) {
			m.fileCursor = len(m.documents) - 1
		}
		if m.fileCursor < 0 {
			m.fileCursor = 0
		}
		m.markViewportDirty()
		return m, nil
	case toggleResultMsg:
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
		} else {
			m.errorMessage = ""
		}
		m.markViewportDirty()
		return m, nil
	case healthResultMsg:
		// Advisory: the session already appended a notice on failure.
		m.markViewportDirty()
		return m, nil
	case saveResultMsg:
		if msg.err != nil {
			m.errorMessage = "transcript save failed: " + msg.err.Error()
		} else {
			m.errorMessage = ""
			m.infoMessage = "Transcript saved to " + msg.path + "."
		}
		m.markViewportDirty()
		return m, nil
	case tea.WindowSizeMsg:
		newWidth := msg.Width - viewportHorizontalPadding
		if newWidth < minViewportWidth {
			newWidth = minViewportWidth
		}
		m.viewport.Width = newWidth
		height := msg.Height - 8
		if height < 5 {
			height = 5
		}
		m.viewport.Height = height
		m.markViewportDirty()
		return m, nil
	}
	return m, nil
}

func (m *model) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		switch m.stage {
		case stageUploadEntry:
			m.stage = stageFiles
			m.pathInput.SetValue("")
			m.pathInput.Blur()
			return m, nil
		case stageFiles:
			m.stage = stageChat
			m.composer.Focus()
			m.markViewportDirty()
			return m, nil
		default:
			return m, tea.Quit
		}
	}

	switch m.stage {
	case stageChat:
		return m.handleChatKey(key)
	case stageFiles:
		return m.handleFilesKey(key)
	case stageUploadEntry:
		return m.handleUploadKey(key)
	default:
		return m, nil
	}
}

func (m *model) handleChatKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyCtrlK:
		return m, toggleCmd(m.config.Session)
	case tea.KeyCtrlF:
		m.stage = stageFiles
		m.composer.Blur()
		m.markViewportDirty()
		return m, refreshFilesCmd(m.config.Session)
	case tea.KeyCtrlS:
		if m.config.TranscriptPath == "" {
			m.infoMessage = "No transcript path configured (-transcript)."
			return m, nil
		}
		return m, saveTranscriptCmd(m.config.Session, m.config.TranscriptPath, m.config.BackendHost)
	case tea.KeyEnter:
		text := strings.TrimSpace(m.composer.Value())
		if text == "" {
			return m, nil
		}
		if m.querying {
			m.infoMessage = "Still waiting on the previous answer."
			return m, nil
		}
		m.composer.SetValue("")
		m.querying = true
		m.errorMessage = ""
		m.infoMessage = "Thinking…"
		m.markViewportDirty()
		return m, tea.Batch(m.spinner.Tick, submitCmd(m.config.Session, text))
	}
	if key.String() == "?" && m.composer.Value() == "" {
		m.helpVisible = !m.helpVisible
		m.markViewportDirty()
		return m, nil
	}
	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(key)
	return m, cmd
}

func (m *model) handleFilesKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.String() {
	case "up", "k":
		if m.fileCursor > 0 {
			m.fileCursor--
			m.markViewportDirty()
		}
	case "down", "j":
		if m.fileCursor < len(m.documents)-1 {
			m.fileCursor++
			m.markViewportDirty()
		}
	case "r":
		return m, refreshFilesCmd(m.config.Session)
	case "u":
		m.stage = stageUploadEntry
		m.pathInput.SetValue("")
		m.pathInput.Focus()
		return m, textinput.Blink
	case "d":
		if m.deleting {
			m.infoMessage = "Delete already running."
			return m, nil
		}
		if m.fileCursor >= 0 && m.fileCursor < len(m.documents) {
			m.deleting = true
			m.infoMessage = "Deleting…"
			m.markViewportDirty()
			return m, tea.Batch(m.spinner.Tick, removeCmd(m.config.Session, m.documents[m.fileCursor].ID))
		}
	case "c":
		if len(m.lastChunks) > 0 {
			m.showChunks = !m.showChunks
			m.markViewportDirty()
		} else {
			m.infoMessage = "No chunks to show; upload a file first."
		}
	}
	return m, nil
}

func (m *model) handleUploadKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Type == tea.KeyEnter {
		path := strings.TrimSpace(m.pathInput.Value())
		m.pathInput.SetValue("")
		m.pathInput.Blur()
		m.stage = stageFiles
		if path == "" {
			m.infoMessage = "Upload canceled."
			return m, nil
		}
		if m.uploading {
			m.infoMessage = "Upload already running."
			return m, nil
		}
		m.uploading = true
		m.errorMessage = ""
		m.infoMessage = "Uploading " + path + "…"
		m.markViewportDirty()
		return m, tea.Batch(m.spinner.Tick, uploadCmd(m.config.Session, path))
	}
	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(key)
	return m, cmd
}

func (m *model) markViewportDirty() {
	m.viewportDirty = true
}

func (m *model) scrollToLatest() {
	m.refreshViewportIfDirty()
	m.viewport.GotoBottom()
}
