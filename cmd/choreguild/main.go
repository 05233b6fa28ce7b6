package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/choreguild/choreguild/internal/daemon"
)

var version = "dev"

func main() {
	app := kingpin.New("choreguild", "Recurring chore lifecycle daemon and client.")
	app.Version(version)

	addr := app.Flag("addr", "Daemon address for client commands.").
		Envar("CHOREGUILD_ADDR").Default("http://localhost:3200").String()

	startCmd := app.Command("start", "Start the chore daemon.")

	claimCmd := app.Command("claim", "Claim a chore for an assignee.")
	claimChore := claimCmd.Arg("chore", "Chore ID.").Required().String()
	claimAssignee := claimCmd.Arg("assignee", "Assignee ID.").Required().String()

	approveCmd := app.Command("approve", "Approve a claimed chore.")
	approveChore := approveCmd.Arg("chore", "Chore ID.").Required().String()
	approveAssignee := approveCmd.Arg("assignee", "Assignee ID.").Required().String()
	approver := approveCmd.Flag("approver", "Name recorded as the approver.").Default("cli").String()

	disapproveCmd := app.Command("disapprove", "Reject a claimed chore.")
	disapproveChore := disapproveCmd.Arg("chore", "Chore ID.").Required().String()
	disapproveAssignee := disapproveCmd.Arg("assignee", "Assignee ID.").Required().String()
	disapprover := disapproveCmd.Flag("approver", "Name recorded as the reviewer.").Default("cli").String()
	reason := disapproveCmd.Flag("reason", "Rejection reason.").String()

	undoCmd := app.Command("undo", "Reverse an approval and reclaim its points.")
	undoChore := undoCmd.Arg("chore", "Chore ID.").Required().String()
	undoAssignee := undoCmd.Arg("assignee", "Assignee ID.").Required().String()

	skipCmd := app.Command("skip", "Skip the current cycle.")
	skipChore := skipCmd.Arg("chore", "Chore ID.").Required().String()
	skipAssignee := skipCmd.Arg("assignee", "Assignee ID.").Required().String()

	resetCmd := app.Command("reset", "Manually return instances to pending.")
	resetChore := resetCmd.Arg("chore", "Chore ID.").Required().String()
	resetAssignee := resetCmd.Arg("assignee", "Assignee ID (all assignees when omitted).").String()

	rescheduleCmd := app.Command("reschedule", "Recompute the due date and reopen the cycle.")
	rescheduleChore := rescheduleCmd.Arg("chore", "Chore ID.").Required().String()
	rescheduleAssignee := rescheduleCmd.Arg("assignee", "Assignee ID (all assignees when omitted).").String()

	listCmd := app.Command("list", "List chores and their instance states.")
	statsCmd := app.Command("stats", "Show per-assignee counters and point balances.")

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	if cmd == startCmd.FullCommand() {
		if err := runDaemon(); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	cli := newClient(*addr)
	var err error
	switch cmd {
	case claimCmd.FullCommand():
		err = cli.claim(*claimChore, *claimAssignee)
	case approveCmd.FullCommand():
		err = cli.approve(*approveChore, *approveAssignee, *approver)
	case disapproveCmd.FullCommand():
		err = cli.disapprove(*disapproveChore, *disapproveAssignee, *disapprover, *reason)
	case undoCmd.FullCommand():
		err = cli.undo(*undoChore, *undoAssignee)
	case skipCmd.FullCommand():
		err = cli.skip(*skipChore, *skipAssignee)
	case resetCmd.FullCommand():
		err = cli.reset(*resetChore, *resetAssignee)
	case rescheduleCmd.FullCommand():
		err = cli.reschedule(*rescheduleChore, *rescheduleAssignee)
	case listCmd.FullCommand():
		err = cli.list()
	case statsCmd.FullCommand():
		err = cli.stats()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runDaemon() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := daemon.New(ctx)
	if err != nil {
		return err
	}
	return d.Run(ctx)
}
