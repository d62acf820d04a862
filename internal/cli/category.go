package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newCategoryCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "category",
		Aliases: []string{"cat"},
		Short:   "Manage categories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <title>",
		Short: "Create a category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args, " "))
			if title == "" {
				return fmt.Errorf("title cannot be empty")
			}
			e, err := openEnv(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			c, err := e.store.CreateCategory(cmd.Context(), title)
			if err != nil {
				return err
			}
			e.log.Info().Int64("category_id", c.ID).Msg("category added")
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", c.ID, c.Title)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			categories, err := e.store.FindCategories(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range categories {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", c.ID, c.Title)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <category-id>",
		Short: "Delete a category and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.store.DeleteCategory(cmd.Context(), id); err != nil {
				return err
			}
			e.log.Info().Int64("category_id", id).Msg("category deleted")
			return nil
		},
	})
	return cmd
}
