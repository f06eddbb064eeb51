package cmd

import (
	"context"
	"errors"
	"fmt"

	"flacshare/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix    string
	minioStats     bool
	minioRecursive bool
	minioDelete    bool
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `查看和管理MinIO存储桶中的音频与封面对象，支持按前缀列出文件、查看统计信息、删除前缀下的全部对象。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := storage.NewMinioBlobStore(cfg)
		if err != nil {
			return err
		}
		ctx := context.Background()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, store.Bucket())

		if minioDelete {
			if minioPrefix == "" {
				return errors.New("删除操作需要指定前缀 (-p)")
			}
			n, err := store.DeletePrefix(ctx, minioPrefix)
			if err != nil {
				return fmt.Errorf("删除失败: %w", err)
			}
			fmt.Fprintf(out, "成功删除 %s 下的 %d 个文件\n", minioPrefix, n)
			return nil
		}

		// -s 只看统计，-r 列出每个对象
		verbose := minioRecursive || !minioStats
		return store.PrintBucketStatus(ctx, out, minioPrefix, verbose)
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件或指定要删除的前缀")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "只显示存储桶统计信息")
	minioCmd.Flags().BoolVarP(&minioRecursive, "recursive", "r", false, "列出前缀下的每个对象")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "删除指定前缀下的所有对象")

	minioCmd.Example = `  # 列出所有文件
  flacshare minio

  # 只看音频命名空间的统计
  flacshare minio -s -p "audio/"

  # 删除某个用户的全部封面
  flacshare minio -d -p "cover/7/"`
}
