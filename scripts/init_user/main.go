package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/threadlog/internal/config"
	"github.com/threadlog/internal/db"
)

func main() {
	email := flag.String("email", "admin@example.com", "account email")
	password := flag.String("password", "admin123", "account password")
	firstName := flag.String("first-name", "Admin", "profile first name")
	lastName := flag.String("last-name", "User", "profile last name")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatal("failed to load .env: ", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("配置加载失败: ", err)
	}

	// 初始化数据库
	if err := db.Init(cfg.DatabaseDriver, cfg.DatabaseDSN); err != nil {
		log.Fatal("数据库初始化失败: ", err)
	}
	defer db.Close(db.DB)

	if err := db.EnsureUser(*email, *password, *firstName, *lastName); err != nil {
		log.Fatal("创建用户失败: ", err)
	}

	fmt.Println("账号已就绪")
	fmt.Println("邮箱:", *email)
}
