package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"RPGMixer/core/catalog"
	"RPGMixer/db"
	"RPGMixer/repository"

	"github.com/spf13/cobra"
)

var (
	scanDir  string
	scanSave bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "扫描本地音频目录",
	Long:  `按 {music|ambience|sfx}/分类/子分类/文件 的目录结构扫描音频资源，可选写入数据库。`,
	Run: func(cmd *cobra.Command, args []string) {
		dir := scanDir
		if dir == "" {
			dir = cfg.AssetsDir
		}
		tracks, err := catalog.Scanner{Root: dir}.Scan()
		if err != nil {
			log.Fatalf("扫描失败: %v", err)
		}
		for _, t := range tracks {
			fmt.Printf("%-9s %-14s %-14s %-40s %s\n", t.Type, t.Category, t.Subcategory, t.Name, t.URL)
		}
		fmt.Printf("\n共 %d 首\n", len(tracks))

		if !scanSave {
			return
		}
		if err := db.ConnectGormDB(cfg); err != nil {
			log.Fatalf("无法连接数据库: %v", err)
		}
		defer db.CloseGormDB()
		if err := db.Migrate(); err != nil {
			log.Fatalf("数据库迁移失败: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := repository.NewGormTrackRepository(db.GormDB).SaveAll(ctx, tracks); err != nil {
			log.Fatalf("保存曲目失败: %v", err)
		}
		fmt.Println("已写入数据库")
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVar(&scanDir, "dir", "", "资源目录，默认 ASSETS_DIR")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "把扫描结果写入数据库")
}
