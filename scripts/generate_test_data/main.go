package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/threadlog/internal/config"
	"github.com/threadlog/internal/db"
)

const seedPassword = "secret123"

type seedOptions struct {
	Users           int
	PostsPerUser    int
	CommentsPerPost int
	Seed            uint64
}

type seedSummary struct {
	Users    int
	Posts    int
	Comments int
}

// 测试数据生成器
func main() {
	opts := seedOptions{}
	flag.IntVar(&opts.Users, "users", 3, "number of users")
	flag.IntVar(&opts.PostsPerUser, "posts", 12, "posts per user")
	flag.IntVar(&opts.CommentsPerPost, "comments", 8, "comments per post")
	flag.Uint64Var(&opts.Seed, "seed", 0, "random seed, 0 for a random one")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatal("failed to load .env: ", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("配置加载失败: ", err)
	}
	if err := db.Init(cfg.DatabaseDriver, cfg.DatabaseDSN); err != nil {
		log.Fatal("数据库初始化失败: ", err)
	}
	defer db.Close(db.DB)

	fmt.Println("开始生成测试数据...")
	summary, err := seed(db.DB, gofakeit.New(opts.Seed), opts)
	if err != nil {
		log.Fatal("生成测试数据失败: ", err)
	}
	fmt.Printf("测试数据生成完成！用户 %d，文章 %d，评论 %d\n", summary.Users, summary.Posts, summary.Comments)
	fmt.Printf("所有用户的密码: %s\n", seedPassword)
}

func seed(gdb *gorm.DB, faker *gofakeit.Faker, opts seedOptions) (seedSummary, error) {
	var summary seedSummary

	hashed, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return summary, err
	}

	err = gdb.Transaction(func(tx *gorm.DB) error {
		users := make([]db.User, 0, opts.Users)
		for i := 0; i < opts.Users; i++ {
			first, last := faker.FirstName(), faker.LastName()
			user := db.User{
				Email:    fmt.Sprintf("%s.%s.%d@example.com", strings.ToLower(first), strings.ToLower(last), i),
				Password: string(hashed),
			}
			if err := tx.Create(&user).Error; err != nil {
				return err
			}
			if err := tx.Create(&db.Profile{ID: user.ID, FirstName: first, LastName: last}).Error; err != nil {
				return err
			}
			users = append(users, user)
		}
		summary.Users = len(users)
		if len(users) == 0 {
			return nil
		}

		start := time.Now().Add(-time.Duration(opts.PostsPerUser*len(users)) * time.Hour)
		for i, author := range users {
			for p := 0; p < opts.PostsPerUser; p++ {
				created := start.Add(time.Duration(i*opts.PostsPerUser+p) * time.Hour)
				blog := db.Blog{
					Title:     strings.TrimSuffix(faker.Sentence(faker.Number(3, 7)), "."),
					Content:   faker.Paragraph(faker.Number(1, 3), 4, 12, "\n\n"),
					AuthorID:  author.ID,
					CreatedAt: created,
					UpdatedAt: created,
				}
				if err := tx.Create(&blog).Error; err != nil {
					return err
				}
				summary.Posts++

				n, err := seedComments(tx, faker, blog, users, opts.CommentsPerPost)
				if err != nil {
					return err
				}
				summary.Comments += n
			}
		}
		return nil
	})
	return summary, err
}

// seedComments 生成一棵评论树：每条评论要么是顶层评论，要么回复更早的一条。
func seedComments(tx *gorm.DB, faker *gofakeit.Faker, blog db.Blog, users []db.User, count int) (int, error) {
	created := make([]db.BlogComment, 0, count)
	for c := 0; c < count; c++ {
		content := faker.Sentence(faker.Number(4, 16))
		at := blog.CreatedAt.Add(time.Duration(c+1) * time.Minute)
		comment := db.BlogComment{
			BlogID:    blog.ID,
			UserID:    users[faker.Number(0, len(users)-1)].ID,
			Content:   &content,
			CreatedAt: at,
			UpdatedAt: at,
		}
		if len(created) > 0 && faker.Bool() {
			parent := created[faker.Number(0, len(created)-1)].ID
			comment.ParentCommentID = &parent
		}
		if err := tx.Create(&comment).Error; err != nil {
			return len(created), err
		}
		created = append(created, comment)
	}
	return len(created), nil
}
