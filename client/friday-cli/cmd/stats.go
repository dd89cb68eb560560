package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

var historyLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show your records, subscriptions and task statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		var stats map[string]interface{}
		if err := call(http.MethodGet, "/api/v1/users/"+url.PathEscape(userID)+"/stats", nil, &stats); err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Show suggestions based on your to-dos and subscriptions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		var resp struct {
			Suggestions []string `json:"suggestions"`
		}
		if err := call(http.MethodGet, "/api/v1/suggestions/"+url.PathEscape(userID), nil, &resp); err != nil {
			return err
		}
		if len(resp.Suggestions) == 0 {
			fmt.Println("Nothing to suggest right now.")
			return nil
		}
		for _, s := range resp.Suggestions {
			fmt.Println("- " + s)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show your most recent task executions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireUser(); err != nil {
			return err
		}
		var resp map[string]interface{}
		path := fmt.Sprintf("/api/v1/history/%s?limit=%d", url.PathEscape(userID), historyLimit)
		if err := call(http.MethodGet, path, nil, &resp); err != nil {
			return err
		}
		return printJSON(resp)
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.AddCommand(suggestCmd)
	statsCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of executions to show")
}

// printJSON pretty prints v.
func printJSON(v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return err
	}
	fmt.Println(pretty.String())
	return nil
}
