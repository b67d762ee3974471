package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/ragdesk/internal/backend"
	"github.com/csheth/ragdesk/internal/session"
	"github.com/csheth/ragdesk/internal/transcript"
)

// Async results flowing back into Update. Every command owns its context;
// the session enforces its own query timeout underneath.
type submitResultMsg struct {
	err error
}

type uploadResultMsg struct {
	doc    backend.Document
	chunks []backend.Chunk
	err    error
}

type removeResultMsg struct {
	id  string
	err error
}

type filesResultMsg struct {
	docs []backend.Document
	err  error
}

type toggleResultMsg struct {
	enabled bool
	err     error
}

type healthResultMsg struct {
	err error
}

type saveResultMsg struct {
	path  string
	count int
	err   error
}

type noticeTickMsg struct{}

const (
	storeOpTimeout  = 45 * time.Second
	uploadOpTimeout = 2 * time.Minute
	noticeTickEvery = time.Second
)

func submitCmd(s *session.Session, text string) tea.Cmd {
	return func() tea.Msg {
		return submitResultMsg{err: s.Submit(context.Background(), text)}
	}
}

func uploadCmd(s *session.Session, path string) tea.Cmd {
	return func() tea.Msg {
		file, err := session.LoadFile(path)
		if err != nil {
			return uploadResultMsg{err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), uploadOpTimeout)
		defer cancel()
		doc, chunks, err := s.Upload(ctx, file)
		return uploadResultMsg{doc: doc, chunks: chunks, err: err}
	}
}

func removeCmd(s *session.Session, id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
		defer cancel()
		return removeResultMsg{id: id, err: s.Remove(ctx, id)}
	}
}

func refreshFilesCmd(s *session.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
		defer cancel()
		docs, err := s.Store().Documents(ctx)
		return filesResultMsg{docs: docs, err: err}
	}
}

func toggleCmd(s *session.Session) tea.Cmd {
	return func() tea.Msg {
		if s.Toggle().Enabled() {
			s.Toggle().Disable()
			return toggleResultMsg{enabled: false}
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
		defer cancel()
		err := s.Toggle().Enable(ctx)
		return toggleResultMsg{enabled: s.Toggle().Enabled(), err: err}
	}
}

func healthCmd(s *session.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
		defer cancel()
		return healthResultMsg{err: s.CheckHealth(ctx)}
	}
}

func saveTranscriptCmd(s *session.Session, path, host string) tea.Cmd {
	return func() tea.Msg {
		messages := s.Log().Messages()
		err := transcript.Save(path, transcript.Snapshot{
			Backend:   host,
			Model:     s.Model(),
			Retrieval: s.Toggle().Enabled(),
			Messages:  messages,
		})
		return saveResultMsg{path: path, count: len(messages), err: err}
	}
}

func noticeTick() tea.Cmd {
	return tea.Tick(noticeTickEvery, func(time.Time) tea.Msg {
		return noticeTickMsg{}
	})
}
