package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status SESSION_ID",
		Short: "Query the visual streaming status of a session once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.client().VisualStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					SessionID string `json:"session_id"`
					Ready     bool   `json:"ready"`
					Status    any    `json:"status"`
				}{args[0], st.Ready(), st})
			}

			fmt.Fprintf(out, "Session:           %s\n", args[0])
			fmt.Fprintf(out, "Streaming ready:   %t\n", st.StreamingReady)
			fmt.Fprintf(out, "Streaming active:  %t\n", st.StreamingActive)
			fmt.Fprintf(out, "Browser ready:     %t\n", st.BrowserReady)
			fmt.Fprintf(out, "Events processed:  %d\n", st.EventsProcessed)
			fmt.Fprintf(out, "Ready:             %t\n", st.Ready())
			return nil
		},
	}
}
