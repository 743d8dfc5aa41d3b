package cmd

import (
	"fmt"
	"log"

	"RPGMixer/core/auth"

	"github.com/spf13/cobra"
)

var (
	tokenOperator string
	tokenHash     string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "签发操作员 Token 或生成密码哈希",
	Long: `使用 JWT_SECRET 为操作员签发 Token，供控制台或远程面板使用。
使用 --hash 时只输出 ADMIN_PASSWORD_HASH 所需的 bcrypt 哈希。`,
	Run: func(cmd *cobra.Command, args []string) {
		if tokenHash != "" {
			hash, err := auth.HashPassword(tokenHash)
			if err != nil {
				log.Fatal(err)
			}
			fmt.Println(hash)
			return
		}
		if cfg.JWTSecret == "" {
			log.Fatal("JWT_SECRET 未设置，服务器不需要 Token")
		}
		operator := tokenOperator
		if operator == "" {
			operator = cfg.AdminUser
		}
		token, err := auth.GenerateToken(cfg.JWTSecret, operator, cfg.TokenTTL)
		if err != nil {
			log.Fatalf("生成Token失败: %v", err)
		}
		fmt.Println(token)
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().StringVar(&tokenOperator, "operator", "", "操作员名称，默认 ADMIN_USER")
	tokenCmd.Flags().StringVar(&tokenHash, "hash", "", "要哈希的密码")
}
