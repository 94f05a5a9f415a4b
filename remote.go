package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/dgnsrekt/readaloud/internal/bridge"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const remoteGroup = "remote"

var (
	follow bool

	statusCmd = &cobra.Command{
		Use:     "status",
		Short:   "Show what a running server is reading",
		Example: paragraph("readaloud status\nreadaloud status --follow"),
		GroupID: remoteGroup,
		Args:    cobra.NoArgs,
		RunE:    runStatus,
	}
)

func init() {
	statusCmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing notifications")
}

func remoteClient() *bridge.Client {
	return bridge.NewClient(viper.GetString("serve.addr"))
}

// remoteCmds returns the commands that drive the transport of a running
// serve.
func remoteCmds() []*cobra.Command {
	simple := []struct {
		action, short string
	}{
		{"pause", "Pause the running server"},
		{"resume", "Resume the running server"},
		{"stop", "Stop the running server's session"},
		{"replay", "Restart the current segment"},
	}
	counted := []struct {
		action, short string
	}{
		{"forward", "Skip ahead N segments (default 1)"},
		{"rewind", "Go back N segments (default 1)"},
	}

	var cmds []*cobra.Command
	for _, c := range simple {
		cmds = append(cmds, &cobra.Command{
			Use:     c.action,
			Short:   c.short,
			GroupID: remoteGroup,
			Args:    cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return control(cmd.Context(), c.action, 0)
			},
		})
	}
	for _, c := range counted {
		cmds = append(cmds, &cobra.Command{
			Use:     c.action + " [N]",
			Short:   c.short,
			GroupID: remoteGroup,
			Args:    cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				n := 1
				if len(args) == 1 {
					var err error
					if n, err = strconv.Atoi(args[0]); err != nil || n < 1 {
						return fmt.Errorf("N must be a positive number, got %q", args[0])
					}
				}
				return control(cmd.Context(), c.action, n)
			},
		})
	}
	return cmds
}

func control(ctx context.Context, action string, n int) error {
	ok, err := remoteClient().Control(ctx, action, n)
	if err != nil {
		return err //nolint:wrapcheck
	}
	if !ok {
		fmt.Println(faint(fmt.Sprintf("Nothing to %s.", action)))
	}
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	client := remoteClient()

	st, err := client.Status(cmd.Context())
	if err != nil {
		return err //nolint:wrapcheck
	}
	fmt.Println(statusLine(st.State.State.String(), st.Index, st.Total, st.Text))
	if !follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	events, err := client.Watch(ctx)
	if err != nil {
		return err //nolint:wrapcheck
	}
	for ev := range events {
		switch ev.Type {
		case "error":
			fmt.Println(faint(fmt.Sprintf("segment %d skipped: %s", ev.Index+1, ev.Reason)))
		case "finished":
			fmt.Println(heading("finished"), faint(fmt.Sprintf("%d segments", ev.Total)))
		default:
			fmt.Println(statusLine(ev.State, ev.Index, ev.Total, ev.Text))
		}
	}
	return nil
}

func statusLine(state string, index, total int, text string) string {
	line := heading(state)
	if total > 0 {
		line += " " + faint(fmt.Sprintf("%d/%d", min(index+1, total), total))
	}
	if text != "" {
		line += "  " + text
	}
	return line
}
