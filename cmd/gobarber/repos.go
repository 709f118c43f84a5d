package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func reposCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repos",
		Short: "Explore GitHub repositories",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <owner/name>",
		Short: "Look up a repository and save it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			e, err := a.explorer()
			if err != nil {
				return err
			}
			var input string
			if len(args) == 1 {
				input = args[0]
			}
			r, err := e.Add(cmd.Context(), input)
			if err != nil {
				return err
			}
			renderRepository(a.out, r)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved repositories, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			e, err := a.explorer()
			if err != nil {
				return err
			}
			repos := e.List()
			if len(repos) == 0 {
				fmt.Fprintln(a.out, "No saved repositories. Add one with: gobarber repos add <owner/name>")
				return nil
			}
			for _, r := range repos {
				renderRepository(a.out, r)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <owner/name>",
		Short: "Remove a saved repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			e, err := a.explorer()
			if err != nil {
				return err
			}
			if err := e.Remove(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Removed %s\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "refresh",
		Short: "Refetch every saved repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			e, err := a.explorer()
			if err != nil {
				return err
			}
			if err := e.Refresh(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Refreshed %d repositories\n", len(e.List()))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <owner/name>",
		Short: "Show a repository and its latest issues",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			e, err := a.explorer()
			if err != nil {
				return err
			}
			d, err := e.Details(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderDetails(a.out, d)
			return nil
		},
	})

	return cmd
}
