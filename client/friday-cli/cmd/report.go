package cmd

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print today's daily report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		var resp struct {
			Report string `json:"report"`
		}
		path := fmt.Sprintf("/api/v1/reports/%s/%s", url.PathEscape(platform), url.PathEscape(userID))
		if err := call(http.MethodPost, path, nil, &resp); err != nil {
			return err
		}
		fmt.Println(resp.Report)
		return nil
	},
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Receive the daily report every morning",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		if err := call(http.MethodPost, "/api/v1/subscriptions", map[string]string{
			"user_id":  userID,
			"platform": platform,
		}, nil); err != nil {
			return err
		}
		fmt.Println("Subscribed to the daily report.")
		return nil
	},
}

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe",
	Short: "Stop the daily report",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		path := fmt.Sprintf("/api/v1/subscriptions/%s/%s", url.PathEscape(platform), url.PathEscape(userID))
		if err := call(http.MethodDelete, path, nil, nil); err != nil {
			return err
		}
		fmt.Println("Unsubscribed from the daily report.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(subscribeCmd)
	reportCmd.AddCommand(unsubscribeCmd)
}
