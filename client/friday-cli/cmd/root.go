package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	userID    string
	platform  string
	token     string
)

var rootCmd = &cobra.Command{
	Use:   "friday-cli",
	Short: "A CLI client to talk to the Friday assistant service",
	Long:  `A command-line interface for chatting with Friday, fetching the daily report and checking your statistics.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your CLI: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "assistant service base URL")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", os.Getenv("USER"), "user id sent with every request")
	rootCmd.PersistentFlags().StringVar(&platform, "platform", "cli", "platform name used for subscriptions")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("FRIDAY_TOKEN"), "bearer token, required when the server sets jwtSecret")
}

var httpClient = &http.Client{Timeout: 2 * time.Minute}

// call 发送请求并把 JSON 响应解码到 out。非 2xx 时返回服务端给出的 error 字段。
func call(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error creating JSON payload: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, strings.TrimRight(serverURL, "/")+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error contacting %s: %w", serverURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error == "" {
			e.Error = resp.Status
		}
		return fmt.Errorf("request failed (%d): %s", resp.StatusCode, e.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}

func requireUser() error {
	if userID == "" {
		return fmt.Errorf("no user id, pass --user")
	}
	return nil
}
