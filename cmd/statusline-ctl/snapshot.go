package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotRetain int

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Take a compressed snapshot of the store and upload it",
	Args:  cobra.NoArgs,
	RunE:  runSnapshot,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <object> <dest>",
	Short: "Download a snapshot and write the database to dest",
	Args:  cobra.ExactArgs(2),
	RunE:  runRestore,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploaded snapshots, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	snapshotCmd.Flags().IntVar(&snapshotRetain, "retain", 0, "Keep only the newest N snapshots (0 keeps all)")
	rootCmd.AddCommand(snapshotCmd, restoreCmd, listCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	s, err := newSnapshotter(cmd.Context(), store, snapshotRetain)
	if err != nil {
		return err
	}
	info, err := s.Take(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Snapshot %s (%d bytes)\n", info.ObjectPath, info.SizeBytes)
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	s, err := newSnapshotter(cmd.Context(), nil, 0)
	if err != nil {
		return err
	}
	if err := s.Restore(cmd.Context(), args[0], args[1]); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Restored %s to %s\n", args[0], args[1])
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := newSnapshotter(cmd.Context(), nil, 0)
	if err != nil {
		return err
	}
	objects, err := s.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, obj := range objects {
		fmt.Fprintln(cmd.OutOrStdout(), obj)
	}
	return nil
}
