package cmd

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live progress events",
	Long:  `Connect to the progress WebSocket and print events as they arrive. Interrupt to stop.`,
	RunE:  runWatch,
}

func runWatch(_ *cobra.Command, _ []string) error {
	if flagUser == "" {
		return fmt.Errorf("--user is required for watch")
	}

	wsURL, err := progressURL(flagServerURL, flagUser)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", wsURL, err)
	}
	defer conn.Close()

	if flagVerbose {
		fmt.Fprintln(os.Stderr, "connected to", wsURL)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			fmt.Println(string(data))
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-done:
		return nil
	case <-interrupt:
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		<-done
		return nil
	}
}

// progressURL converts the API base URL into the tenant's stream URL.
func progressURL(base, tenant string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/progress/ws/" + url.PathEscape(tenant)
	return u.String(), nil
}
