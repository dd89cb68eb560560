package cmd

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message to Friday, or start an interactive session without arguments",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		if len(args) > 0 {
			return send(strings.Join(args, " "))
		}
		return interactive()
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func send(message string) error {
	var resp struct {
		Reply string `json:"reply"`
	}
	err := call(http.MethodPost, "/api/v1/messages", map[string]string{
		"message":  message,
		"user_id":  userID,
		"platform": platform,
	}, &resp)
	if err != nil {
		return err
	}
	fmt.Println(resp.Reply)
	return nil
}

func interactive() error {
	fmt.Println("Chatting with Friday. Type /help for commands, Ctrl-D to quit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := send(line); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
}
