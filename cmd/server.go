package cmd

import (
	"RPGMixer/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动混音服务器",
	Long:  `启动混音引擎和HTTP服务器，提供持久化API、控制API和WebSocket状态推送`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
