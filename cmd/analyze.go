package cmd

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"flacshare/core/audio"
	"flacshare/model"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "分析本地音频文件",
	Long:  `对本地文件运行与上传相同的分析流程，输出时长、采样率、声道、码率与预填字段。`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("读取文件失败: %w", err)
		}

		file := &model.FileHandle{
			Name:        filepath.Base(path),
			ContentType: mime.TypeByExtension(filepath.Ext(path)),
			Data:        data,
		}
		result, err := audio.NewAnalyzer(audio.NewDecoder()).Analyze(cmd.Context(), file)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		s, f := result.Stats, result.Fields
		fmt.Fprintf(out, "文件:   %s (%s)\n", file.Name, humanize.IBytes(uint64(file.Size())))
		fmt.Fprintf(out, "格式:   %s\n", s.Format)
		fmt.Fprintf(out, "时长:   %.2fs\n", s.DurationSeconds)
		fmt.Fprintf(out, "采样率: %s Hz\n", humanize.Comma(int64(s.SampleRateHz)))
		fmt.Fprintf(out, "声道:   %d\n", s.ChannelCount)
		fmt.Fprintf(out, "码率:   %d kbps\n", s.BitrateKbps)
		fmt.Fprintf(out, "标题:   %s\n", f.Title)
		fmt.Fprintf(out, "艺术家: %s\n", f.Artist)
		fmt.Fprintf(out, "专辑:   %s\n", f.Album)
		if art := result.Artwork; art != nil {
			fmt.Fprintf(out, "内嵌封面: %s %dx%d (%s)\n", art.MIMEType, art.Width, art.Height, humanize.IBytes(uint64(art.Size)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
