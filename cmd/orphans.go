package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"flacshare/cache"
	"flacshare/storage"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "管理回滚失败后残留的对象",
	Long:  `上传回滚时删除失败的对象会记入 Redis 残留账本，这里可以查看并重试删除。`,
}

var orphansListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出残留对象",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cache.ConnectRedis(cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		orphans, err := cache.NewOrphanLedger(client).List(context.Background())
		if err != nil {
			return err
		}
		if len(orphans) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "没有残留对象")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "OBJECT\tRECORDED\tCAUSE")
		for _, o := range orphans {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", storage.ObjectName(o.Namespace, o.Key), humanize.Time(o.RecordedAt), o.Cause)
		}
		return tw.Flush()
	},
}

var orphansSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "重试删除所有残留对象",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cache.ConnectRedis(cfg)
		if err != nil {
			return err
		}
		defer client.Close()

		store, err := storage.NewMinioBlobStore(cfg)
		if err != nil {
			return err
		}

		res, err := cache.NewOrphanLedger(client).Sweep(cmd.Context(), store)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "已删除 %d 个对象，%d 个仍然失败\n", res.Deleted, res.Failed)
		return nil
	},
}

func init() {
	orphansCmd.AddCommand(orphansListCmd, orphansSweepCmd)
	rootCmd.AddCommand(orphansCmd)
}
