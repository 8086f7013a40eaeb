// Package testutil provides shared databases and fixtures for backend tests.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync/atomic"
	"testing"

	"inkwell/internal/database"
	"inkwell/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with the full schema applied. A single
// connection keeps the database alive for the whole test and serializes writers.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

var userSeq atomic.Uint64

// TestPassword is the plain-text password of every fixture user.
const TestPassword = "secret123"

var testPasswordHash = func() string {
	h, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(h)
}()

// CreateUser inserts a user with fake but unique identity fields.
func CreateUser(t testing.TB, db *gorm.DB) *models.User {
	t.Helper()

	n := userSeq.Add(1)
	user := &models.User{
		Name:         gofakeit.Name(),
		Email:        fmt.Sprintf("user%d@example.com", n),
		Username:     fmt.Sprintf("user%d", n),
		Description:  "Writes things",
		Password:     testPasswordHash,
		ProfileImage: models.DefaultProfileImage,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

// CreateImage stores a tiny PNG uploaded by uploaderID.
func CreateImage(t testing.TB, db *gorm.DB, uploaderID uint) *models.Image {
	t.Helper()

	img := &models.Image{
		Data:        TinyPNG(t, 2, 2),
		ContentType: "image/png",
		FileName:    "tiny.png",
		UploaderID:  uploaderID,
	}
	if err := db.Create(img).Error; err != nil {
		t.Fatalf("create image: %v", err)
	}
	return img
}

// CreatePost inserts a published post without going through the counters.
func CreatePost(t testing.TB, db *gorm.DB, author *models.User, title string, images ...string) *models.Post {
	t.Helper()

	if images == nil {
		images = []string{}
	}
	post := &models.Post{
		Title:     title,
		Body:      "<p>" + gofakeit.Sentence(12) + "</p>",
		Images:    images,
		AuthorID:  author.ID,
		Slug:      fmt.Sprintf("%s-%d", strings.ToLower(strings.ReplaceAll(title, " ", "-")), userSeq.Add(1)),
		Tags:      []string{},
		Published: true,
	}
	if err := db.Omit("Author").Create(post).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return post
}

// TinyPNG returns a valid w x h PNG.
func TinyPNG(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
