package main

import (
	"context"
	"fmt"
	"log"

	"github.com/inkpost/internal/config"
	"github.com/inkpost/internal/db"
	"github.com/inkpost/internal/service"
	"gorm.io/gorm"
)

type seedSummary struct {
	Posts    int
	Versions int
	Deleted  int
	Archived int
}

type seedPost struct {
	title      string
	content    string
	excerpt    string
	categories []string
	tags       []string
	revisions  []string
	deleted    bool
	archived   bool
}

var seedCategories = []string{"Engineering", "Life", "Go", "Web", "Databases"}

var seedPosts = []seedPost{
	{
		title:      "Go 并发编程实践",
		content:    "## goroutine 与 channel\n\n从一个简单的 worker pool 开始。",
		excerpt:    "用 goroutine 和 channel 构建 worker pool",
		categories: []string{"Engineering", "Go"},
		tags:       []string{"go", "concurrency"},
		revisions:  []string{"补充了 errgroup 的用法。", "补充了 context 取消的例子。"},
	},
	{
		title:      "SQLite 在小型服务中的应用",
		content:    "WAL 模式、共享缓存与备份策略。",
		categories: []string{"Databases"},
		tags:       []string{"sqlite"},
		revisions:  []string{"更新了 WAL checkpoint 的说明。"},
	},
	{
		title:      "周末徒步记录",
		content:    "山顶的风很大。",
		categories: []string{"Life"},
		tags:       []string{"hiking"},
		archived:   true,
	},
	{
		title:      "Gin 中间件设计",
		content:    "trace id、访问日志与认证中间件的顺序。",
		categories: []string{"Engineering", "Web"},
		tags:       []string{"go", "gin"},
	},
	{
		title:   "待删除的草稿",
		content: "这篇文章会被软删除。",
		tags:    []string{"draft"},
		deleted: true,
	},
}

// 测试数据生成器
func main() {
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成测试数据...")
	summary, err := seed(context.Background(), db.DB)
	if err != nil {
		log.Fatal("生成测试数据失败:", err)
	}

	fmt.Println("测试数据生成完成！")
	fmt.Println("用户: admin@example.com (密码: admin123)")
	fmt.Printf("文章: %d 篇，版本: %d 条，已删除: %d，已归档: %d\n",
		summary.Posts, summary.Versions, summary.Deleted, summary.Archived)
}

// seed 通过服务层写入数据，保证 slug、版本历史和分类关联与线上路径一致。
func seed(ctx context.Context, gdb *gorm.DB) (seedSummary, error) {
	var summary seedSummary

	if err := db.EnsureUser(gdb, "admin@example.com", "admin123"); err != nil {
		return summary, err
	}
	var admin db.User
	if err := gdb.Where("email = ?", "admin@example.com").First(&admin).Error; err != nil {
		return summary, err
	}

	categories := service.NewCategoryService(gdb)
	categoryIDs := make(map[string]string, len(seedCategories))
	existing, err := categories.List(ctx)
	if err != nil {
		return summary, err
	}
	for _, c := range existing {
		categoryIDs[c.Name] = c.ID
	}
	for _, name := range seedCategories {
		if _, ok := categoryIDs[name]; ok {
			continue
		}
		created, err := categories.Create(ctx, name)
		if err != nil {
			return summary, fmt.Errorf("create category %s: %w", name, err)
		}
		categoryIDs[name] = created.ID
	}

	posts := service.NewPostService(gdb, categories)
	for _, item := range seedPosts {
		ids := make([]string, 0, len(item.categories))
		for _, name := range item.categories {
			ids = append(ids, categoryIDs[name])
		}

		post, err := posts.Create(ctx, service.CreatePostInput{
			Title:       item.title,
			Content:     item.content,
			Excerpt:     item.excerpt,
			CategoryIDs: ids,
			Tags:        item.tags,
			AuthorID:    admin.ID,
		})
		if err != nil {
			return summary, fmt.Errorf("create post %s: %w", item.title, err)
		}
		summary.Posts++

		content := item.content
		for _, revision := range item.revisions {
			content += "\n\n" + revision
			next := content
			if _, err := posts.Edit(ctx, post.ID, service.EditPostInput{Content: &next, ActorID: admin.ID}); err != nil {
				return summary, fmt.Errorf("edit post %s: %w", item.title, err)
			}
			summary.Versions++
		}

		if item.archived {
			if _, err := posts.Archive(ctx, post.ID, admin.ID); err != nil {
				return summary, err
			}
			summary.Archived++
		}
		if item.deleted {
			if _, err := posts.SoftDelete(ctx, post.ID, admin.ID); err != nil {
				return summary, err
			}
			summary.Deleted++
		}
	}

	return summary, nil
}
