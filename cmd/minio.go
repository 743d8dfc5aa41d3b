package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"RPGMixer/core/catalog"
	"RPGMixer/storage"

	"github.com/spf13/cobra"
)

var (
	minioPrefix    string
	minioStats     bool
	minioRecursive bool
	minioDelete    bool
	minioUpload    string
)

var minioCmd = &cobra.Command{
	Use:   "minio",
	Short: "MinIO存储桶管理",
	Long:  `查看和管理存放音频资源的MinIO存储桶，支持列出文件、查看统计信息、上传本地资源目录、删除目录等功能。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("MinIO配置: %s, Bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)
		if err := storage.InitMinio(cfg); err != nil {
			log.Fatalf("无法连接到MinIO: %v", err)
		}
		store := storage.GetMinio()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		switch {
		case minioUpload != "":
			fmt.Printf("\n上传目录: %s\n", minioUpload)
			n, err := store.UploadTree(ctx, minioUpload)
			if err != nil {
				log.Fatalf("上传失败（已上传 %d 个文件）: %v", n, err)
			}
			fmt.Printf("已上传 %d 个文件\n", n)

		case minioDelete:
			if minioPrefix == "" {
				log.Fatal("删除操作需要指定目录前缀")
			}
			objects, _, err := store.List(ctx, minioPrefix, true)
			if err != nil {
				log.Fatalf("列出文件失败: %v", err)
			}
			for _, o := range objects {
				if err := store.Remove(ctx, o.Key); err != nil {
					log.Fatalf("删除 %s 失败: %v", o.Key, err)
				}
			}
			fmt.Printf("已删除 %d 个文件\n", len(objects))

		default:
			objects, stats, err := store.List(ctx, minioPrefix, minioRecursive)
			if err != nil {
				log.Fatalf("列出文件失败: %v", err)
			}
			if !minioStats {
				for _, o := range objects {
					fmt.Printf("%-60s %10s  %s\n", o.Key, storage.FormatSize(o.Size), o.LastModified.Format("2006-01-02 15:04"))
				}
			}
			fmt.Printf("\n文件总数: %d\n总大小: %s\n", stats.TotalObjects, storage.FormatSize(stats.TotalSize))
			if !stats.LastModified.IsZero() {
				fmt.Printf("最后修改: %s\n", stats.LastModified.Format(time.RFC3339))
			}
			if minioStats {
				keys, err := store.AudioKeys(ctx)
				if err != nil {
					log.Fatalf("列出音频失败: %v", err)
				}
				fmt.Printf("可识别曲目: %d\n", len(catalog.FromPaths(keys)))
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(minioCmd)

	minioCmd.Flags().StringVarP(&minioPrefix, "prefix", "p", "", "按前缀过滤文件或指定要操作的目录")
	minioCmd.Flags().BoolVarP(&minioStats, "stats", "s", false, "只显示存储桶统计信息")
	minioCmd.Flags().BoolVarP(&minioRecursive, "recursive", "r", false, "递归列出子目录")
	minioCmd.Flags().BoolVarP(&minioDelete, "delete", "d", false, "删除指定目录及其下的所有文件")
	minioCmd.Flags().StringVarP(&minioUpload, "upload", "u", "", "把本地资源目录上传到存储桶")

	minioCmd.Example = `  # 列出所有文件
  rpgmixer minio -r

  # 按前缀过滤文件
  rpgmixer minio -r -p "music/"

  # 显示存储桶统计信息
  rpgmixer minio -s

  # 上传本地资源目录
  rpgmixer minio -u ./assets

  # 删除目录及其下的所有文件
  rpgmixer minio -d -p "sfx/"`
}
