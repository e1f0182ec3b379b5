package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/inkpost/internal/config"
	"github.com/inkpost/internal/db"
)

func main() {
	cfg := config.Load()

	var email, password string
	flag.StringVar(&email, "email", "admin@example.com", "login email of the user to create")
	flag.StringVar(&password, "password", "admin123", "initial password")
	flag.Parse()

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	if err := db.EnsureUser(db.DB, email, password); err != nil {
		log.Fatal("创建用户失败:", err)
	}

	fmt.Println("用户已就绪")
	fmt.Println("邮箱:", email)
}
