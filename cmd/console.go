package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"RPGMixer/core/audio"
	"RPGMixer/core/auth"
	"RPGMixer/core/catalog"
	"RPGMixer/core/console"
	"RPGMixer/core/mixer"
	"RPGMixer/core/persist"
	"RPGMixer/logger"
	"RPGMixer/model"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var (
	consoleToken        string
	consoleRemoteAssets bool
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "在本机声卡上运行混音器的交互控制台",
	Long: `启动本地混音引擎并打开交互控制台。曲目、预设、设置和播放顺序
从 BACKEND_URL 的持久化服务加载，修改会异步写回。服务不可用时
退回到扫描 ASSETS_DIR，修改不会被保存。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		token := consoleToken
		if token == "" && cfg.JWTSecret != "" {
			t, err := auth.GenerateToken(cfg.JWTSecret, cfg.AdminUser, cfg.TokenTTL)
			if err != nil {
				return fmt.Errorf("生成Token失败: %w", err)
			}
			token = t
		}
		client := persist.NewClient(cfg.BackendURL, token, persist.DefaultTimeout)
		defer client.Close()

		snap := loadSnapshot(client)

		web := audio.NewHTTPOpener()
		var fallback audio.Opener = audio.FileOpener{Root: cfg.AssetsDir}
		if consoleRemoteAssets {
			remote := web
			remote.BaseURL = strings.TrimRight(cfg.BackendURL, "/") + "/assets/"
			fallback = remote
		}
		opener := audio.MultiOpener{
			Schemes:  map[string]audio.Opener{"http": web, "https": web},
			Fallback: fallback,
		}

		var backend audio.Backend
		if cfg.AudioOutput == "none" {
			backend = audio.NewMock()
		} else {
			b, err := audio.NewBeepBackend(opener, cfg.AudioSampleRate, cfg.AudioBufferSize, cfg.AudioSFXCache)
			if err != nil {
				return fmt.Errorf("打开声卡失败: %w", err)
			}
			defer b.Close()
			backend = b
		}

		m := mixer.New(backend, client, cfg.FrameInterval())
		if err := m.Start(snap); err != nil {
			return err
		}
		defer m.Close()

		rl, err := readline.NewEx(&readline.Config{
			Prompt:          "♫ ",
			InterruptPrompt: "^C",
			EOFPrompt:       "quit",
		})
		if err != nil {
			return err
		}
		defer rl.Close()

		c := console.New(m, rl.Stdout())
		rl.Config.AutoComplete = c.Completer()
		if err := c.Follow(); err != nil {
			return err
		}
		return c.Run(rl)
	},
}

// loadSnapshot hydrates from the persistence service, or from the local
// asset tree when the service cannot be reached.
func loadSnapshot(client *persist.Client) mixer.Snapshot {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap := mixer.Snapshot{Settings: model.DefaultSettings(cfg.DefaultContext)}
	tracks, err := client.FetchTracks(ctx)
	if err != nil {
		logger.Warn("persistence service unavailable, scanning local assets",
			logger.String("url", cfg.BackendURL), logger.ErrorField(err))
		tracks, err = catalog.Scanner{Root: cfg.AssetsDir}.Scan()
		if err != nil {
			log.Fatalf("扫描失败: %v", err)
		}
		snap.Tracks = tracks
		return snap
	}
	snap.Tracks = tracks

	if presets, err := client.FetchPresets(ctx); err != nil {
		logger.Warn("load presets", logger.ErrorField(err))
	} else {
		snap.Presets = presets
	}
	if s, err := client.FetchSettings(ctx); err != nil {
		logger.Warn("load settings", logger.ErrorField(err))
	} else {
		snap.Settings = s
	}
	if orders, err := client.FetchOrders(ctx); err != nil {
		logger.Warn("load playlist orders", logger.ErrorField(err))
	} else {
		snap.Orders = orders
	}
	return snap
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().StringVar(&consoleToken, "token", "", "持久化服务的 Token，默认用 JWT_SECRET 签发")
	consoleCmd.Flags().BoolVar(&consoleRemoteAssets, "remote-assets", false, "从服务器的 /assets/ 下载音频而不是读取本地 ASSETS_DIR")
}
