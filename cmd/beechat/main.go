// beechat - AI email design assistant bridge
//
// A demo bridge that lets a chat UI drive an AI agent editing an email
// template in the Beefree drag-and-drop editor.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "beechat",
	Short: "beechat - AI email design assistant bridge",
	Long: `beechat bridges a browser chat UI to an AI email-design agent.

  beechat serve    Start the bridge server

The bridge serves the demo page, proxies Beefree SDK authentication,
maintains the agent WebSocket connection, and owns the streamed-message
transcript: chunk reconciliation, Markdown rendering, and persistence.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
