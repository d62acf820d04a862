package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tasklist/internal/storage"
	"tasklist/internal/tasklist"
	"tasklist/internal/ui"
)

// printer shows the task the controller was asked to open.
type printer struct {
	w io.Writer
}

func (p printer) OpenTask(c storage.Category, t storage.Task) {
	done := "pending"
	if t.Done {
		done = "done"
	}
	fmt.Fprintf(p.w, "Task #%d • %s • %s • category:%s • position:%d • created:%s\n",
		t.ID, t.Title, done, c.Title, t.Position, t.CreatedAt.Format("2006-01-02"))
}

// taskAction runs fn against a loaded controller for the category in
// args[0], then prints the list unless quiet is set.
func taskAction(opts *options, quiet bool, fn func(ctx context.Context, ctrl *tasklist.Controller, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		categoryID, err := parseID(args[0])
		if err != nil {
			return err
		}
		e, err := openEnv(opts, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer e.close()

		adapter := ui.NewAdapter()
		ctrl := tasklist.New(e.store, adapter, printer{w: cmd.OutOrStdout()}, e.log, categoryID)
		if err := ctrl.Load(cmd.Context()); err != nil {
			return err
		}
		if err := fn(cmd.Context(), ctrl, args[1:]); err != nil {
			return err
		}
		if !quiet {
			printRows(cmd.OutOrStdout(), adapter)
		}
		return nil
	}
}

func printRows(w io.Writer, adapter *ui.Adapter) {
	lines := adapter.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(w, "(no tasks)")
		return
	}
	for i, line := range lines {
		fmt.Fprintf(w, "%2d %s\n", i, line)
	}
}

func newTaskCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage the tasks of a category",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list <category-id>",
		Short: "List tasks in display order",
		Args:  cobra.ExactArgs(1),
		RunE: taskAction(opts, false, func(context.Context, *tasklist.Controller, []string) error {
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <category-id> <title>",
		Short: "Append a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: taskAction(opts, false, func(ctx context.Context, ctrl *tasklist.Controller, args []string) error {
			_, err := ctrl.Add(ctx, strings.Join(args, " "))
			return err
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "done <category-id> <index>",
		Short: "Toggle the done flag of a task",
		Args:  cobra.ExactArgs(2),
		RunE: taskAction(opts, false, func(ctx context.Context, ctrl *tasklist.Controller, args []string) error {
			i, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return ctrl.Check(ctx, i)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "swap <category-id> <index> <index>",
		Short: "Swap the positions of two tasks",
		Args:  cobra.ExactArgs(3),
		RunE: taskAction(opts, false, func(ctx context.Context, ctrl *tasklist.Controller, args []string) error {
			a, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			b, err := parseIndex(args[1])
			if err != nil {
				return err
			}
			return ctrl.MoveTo(ctx, a, b)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <category-id> <index> <title>",
		Short: "Change the title of a task",
		Args:  cobra.MinimumNArgs(3),
		RunE: taskAction(opts, false, func(ctx context.Context, ctrl *tasklist.Controller, args []string) error {
			i, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return ctrl.Rename(ctx, i, strings.Join(args[1:], " "))
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <category-id> <index>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(2),
		RunE: taskAction(opts, false, func(ctx context.Context, ctrl *tasklist.Controller, args []string) error {
			i, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return ctrl.DeleteAt(ctx, i)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <category-id> <index>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(2),
		RunE: taskAction(opts, true, func(_ context.Context, ctrl *tasklist.Controller, args []string) error {
			i, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			return ctrl.Open(i)
		}),
	})
	return cmd
}

func parseID(v string) (int64, error) {
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", v, err)
	}
	return id, nil
}

func parseIndex(v string) (int, error) {
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q: %w", v, err)
	}
	return i, nil
}
