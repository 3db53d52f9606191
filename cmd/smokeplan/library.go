package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"smokeplan/internal/repository/sqlite"
	"smokeplan/internal/service"
)

func (a *app) libraryCmd() *cobra.Command {
	var dbPath string
	open := func() (*sqlite.Repository, error) {
		path := dbPath
		if path == "" {
			path = a.cfg.Database.Path
		}
		return sqlite.New(path)
	}

	cmd := &cobra.Command{
		Use:   "library",
		Short: "Keep projects in a local SQLite library",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "library database (default from config)")

	var id string
	save := &cobra.Command{
		Use:   "save <project>",
		Short: "Store a project file in the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scene, err := readProject(cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			repo, err := open()
			if err != nil {
				return err
			}
			defer repo.Close()

			stored, err := repo.SaveProject(cmd.Context(), id, scene.Snapshot())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stored)
			return nil
		},
	}
	save.Flags().StringVar(&id, "id", "", "replace the project stored under this id")

	load := &cobra.Command{
		Use:   "load <id> <project>",
		Short: "Write a stored project to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), open, func(ctx context.Context, repo *sqlite.Repository) error {
				scene, err := repo.LoadProject(ctx, args[0])
				if err != nil {
					return err
				}
				if err := service.WriteProject(args[1], scene.Snapshot()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", styleOK.Render("wrote"), args[1])
				return nil
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List stored projects, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), open, func(ctx context.Context, repo *sqlite.Repository) error {
				projects, err := repo.ListProjects(ctx)
				if err != nil {
					return err
				}
				if len(projects) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), styleDim.Render("library is empty"))
					return nil
				}
				rows := make([][]string, 0, len(projects))
				for _, p := range projects {
					rows = append(rows, []string{
						p.ID,
						p.Name,
						strconv.Itoa(p.Detectors),
						strconv.Itoa(p.Connections),
						p.UpdatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), table([]string{"ID", "Name", "Detectors", "Connections", "Updated"}, rows))
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a stored project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), open, func(ctx context.Context, repo *sqlite.Repository) error {
				return repo.DeleteProject(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(save, load, list, del)
	return cmd
}

func withRepo(ctx context.Context, open func() (*sqlite.Repository, error), fn func(context.Context, *sqlite.Repository) error) error {
	repo, err := open()
	if err != nil {
		return err
	}
	defer repo.Close()
	return fn(ctx, repo)
}
