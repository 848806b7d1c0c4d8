package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	cerrors "github.com/ariel-frischer/appgen/internal/errors"
	"github.com/ariel-frischer/appgen/internal/events"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs <execution-id>",
	Short: "Print or follow the event log of an execution",
	Long: `Print the recorded events of an execution from its JSONL event log under
<state_dir>/logs. With --follow, wait for new events until the workflow
finishes; this works for runs started by another appgen process, including
'appgen serve'.`,
	Example: `  appgen logs 6f1c2a9e-4b7d-4f0e-9a43-2c1d5e8f7a10
  appgen logs 6f1c2a9e-4b7d-4f0e-9a43-2c1d5e8f7a10 -f
  appgen logs 6f1c2a9e-4b7d-4f0e-9a43-2c1d5e8f7a10 --json | jq .type`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		id := strings.TrimSpace(args[0])
		follow, _ := cmd.Flags().GetBool("follow")
		jsonOut, _ := cmd.Flags().GetBool("json")

		path := events.LogPath(a.cfg.LogDir(), id)
		if !follow {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				return cerrors.LogNotFound(id, path)
			}
		}

		tailer, err := events.NewTailer(path)
		if err != nil {
			return err
		}
		a.own(tailer)
		a.debugLog("tailing %s (follow=%v)", path, follow)

		out := cmd.OutOrStdout()
		for ev := range tailer.Tail(cmd.Context(), follow) {
			if err := printEvent(out, ev, jsonOut); err != nil {
				return err
			}
		}
		return cmd.Context().Err()
	},
}

func init() {
	logsCmd.GroupID = GroupInspect
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().BoolP("follow", "f", false, "Wait for new events until the workflow finishes")
	logsCmd.Flags().Bool("json", false, "Print events as JSON lines")
}

func printEvent(out io.Writer, ev events.Event, jsonOut bool) error {
	if jsonOut {
		data, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encoding event: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	line := fmt.Sprintf("%s  %-18s", ev.Timestamp.Local().Format("15:04:05.000"), ev.Type)
	if ev.Stage.Valid() {
		line += " " + ev.Stage.String()
	}
	if ev.Message != "" {
		line += "  " + ev.Message
	}
	_, err := fmt.Fprintln(out, line)
	return err
}
