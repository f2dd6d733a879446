// blablachat is the terminal chat client. It connects to a blablachatd
// daemon (BLABLACHAT_SERVER, default ws://localhost:8080/ws) and runs the
// fullscreen TUI.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/tassianasc/blablachat/internal/logging"
	"github.com/tassianasc/blablachat/internal/store"
	"github.com/tassianasc/blablachat/internal/ui"
)

const dialTimeout = 10 * time.Second

func main() {
	godotenv.Load()
	log := logging.NewFromEnv()

	url := os.Getenv("BLABLACHAT_SERVER")
	if url == "" {
		url = "ws://localhost:8080/ws"
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	remote, err := store.Dial(ctx, url, log)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot reach %s: %v\n", url, err)
		os.Exit(1)
	}
	defer remote.Close()

	app := ui.NewApp(remote, log)
	app.SetDownloadDir(os.Getenv("BLABLACHAT_DOWNLOADS"))
	p := tea.NewProgram(app, tea.WithAltScreen())
	app.SetSend(p.Send)

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "ui error: %v\n", err)
		os.Exit(1)
	}
}
