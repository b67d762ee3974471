package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/ragdesk/internal/backend"
	"github.com/csheth/ragdesk/internal/session"
	"github.com/csheth/ragdesk/internal/tui"
)

func main() {
	endpoint := flag.String("backend", "", "knowledge backend address (default $RAGDESK_BACKEND or http://127.0.0.1:8080)")
	model := flag.String("model", "", "model role for the direct-chat path (default $RAGDESK_MODEL or assistant)")
	transcriptPath := flag.String("transcript", "", "path to the transcript archive (default $RAGDESK_TRANSCRIPT or ./transcripts.json)")
	noAutoEnable := flag.Bool("no-auto-enable", false, "do not enable retrieval automatically after uploading into an empty store")
	noAltScreen := flag.Bool("no-alt-screen", false, "disable the alternate screen buffer")
	flag.Parse()

	chatModel := *model
	if chatModel == "" {
		if env := os.Getenv("RAGDESK_MODEL"); env != "" {
			chatModel = env
		} else {
			chatModel = "assistant"
		}
	}

	archive := *transcriptPath
	if archive == "" {
		if env := os.Getenv("RAGDESK_TRANSCRIPT"); env != "" {
			archive = env
		} else {
			archive = filepath.Join(".", "transcripts.json")
		}
	}
	absArchive, err := filepath.Abs(archive)
	if err != nil {
		fmt.Println("failed to resolve transcript path:", err)
		os.Exit(1)
	}

	client := backend.NewFromEnv(backend.Config{Endpoint: *endpoint})
	chat := session.New(session.Config{
		Backend:           client,
		Model:             chatModel,
		DisableAutoEnable: *noAutoEnable,
	})

	opts := []tea.ProgramOption{}
	if !*noAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(
		tui.New(tui.Config{
			Session:        chat,
			BackendHost:    client.Host(),
			TranscriptPath: absArchive,
		}),
		opts...,
	)

	if _, err := program.Run(); err != nil {
		fmt.Println("program error:", err)
		os.Exit(1)
	}
}
