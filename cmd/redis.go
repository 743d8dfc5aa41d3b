package cmd

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"RPGMixer/cache"
	"RPGMixer/db"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Redis连接测试",
	Long:  `测试Redis连接是否成功，并列出保存的播放列表顺序。`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Redis配置: %s:%s, DB: %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		if err := db.ConnectRedis(cfg); err != nil {
			log.Fatalf("无法连接到Redis: %v", err)
		}
		defer func() {
			if err := db.CloseRedis(); err != nil {
				log.Printf("关闭Redis连接时发生错误: %v", err)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.CheckRedis(ctx); err != nil {
			log.Fatalf("Redis操作测试失败: %v", err)
		}
		fmt.Println("Redis连接成功！")

		orders, err := cache.NewOrderCache(db.RedisClient).All(ctx)
		if err != nil {
			log.Fatalf("读取播放列表顺序失败: %v", err)
		}
		keys := make([]string, 0, len(orders))
		for k := range orders {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Printf("\n播放列表顺序: %d 个\n", len(keys))
		for _, k := range keys {
			fmt.Printf("  %-50s %d 首\n", k, len(orders[k]))
		}
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
