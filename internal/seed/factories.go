// Package seed fills a database with demo authors, posts and interactions. It writes through
// the service layer, so seeded data obeys the same rules as data created over the API.
package seed

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"

	"inkwell/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

// Password is shared by every seeded account.
const Password = "password123"

var topics = []string{
	"go", "databases", "travel", "cooking", "gardening", "music", "books",
	"photography", "design", "running", "history", "science", "startups", "homelab",
}

// Factory builds realistic inputs from a seeded faker so runs are reproducible.
type Factory struct {
	faker *gofakeit.Faker
}

func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// Registration returns a sign-up for the n-th seeded user. The index keeps usernames unique.
func (f *Factory) Registration(n int) service.RegisterInput {
	first, last := f.faker.FirstName(), f.faker.LastName()
	base := strings.ToLower(first)
	base = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r
		}
		return -1
	}, base)
	if len(base) > 10 {
		base = base[:10]
	}
	if base == "" {
		base = "writer"
	}
	return service.RegisterInput{
		Name:        first + " " + last,
		Email:       fmt.Sprintf("%s.%d@example.com", base, n),
		Username:    fmt.Sprintf("%s%d", base, n),
		Password:    Password,
		Description: truncate(f.faker.Sentence(6), 100),
	}
}

// Post returns a post draft with a sanitizable HTML body, a few tags and up to imageCount images.
func (f *Factory) Post(imageCount int) service.CreatePostInput {
	paragraphs := make([]string, f.faker.Number(1, 4))
	for i := range paragraphs {
		paragraphs[i] = "<p>" + f.faker.Paragraph(1, f.faker.Number(2, 5), 12, " ") + "</p>"
	}
	if f.faker.Bool() {
		paragraphs = append(paragraphs, "<h2>"+f.faker.HipsterSentence(4)+"</h2><ul><li>"+
			f.faker.Phrase()+"</li><li>"+f.faker.Phrase()+"</li></ul>")
	}

	images := make([]service.Upload, 0, imageCount)
	for i := range imageCount {
		images = append(images, service.Upload{
			FileName: fmt.Sprintf("cover-%d.png", i),
			Data:     f.Image(),
		})
	}

	return service.CreatePostInput{
		Title:     truncate(strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 8)), "."), 100),
		Body:      strings.Join(paragraphs, ""),
		Tags:      f.tags(),
		Published: f.faker.Number(1, 10) > 1,
		Images:    images,
	}
}

func (f *Factory) tags() []string {
	n := f.faker.Number(0, 3)
	tags := make([]string, 0, n)
	for range n {
		tags = append(tags, topics[f.faker.Number(0, len(topics)-1)])
	}
	return tags
}

func (f *Factory) Comment() service.CreateCommentInput {
	return service.CreateCommentInput{Content: f.faker.Sentence(f.faker.Number(4, 16))}
}

func (f *Factory) Reply(to string) service.CreateReplyInput {
	return service.CreateReplyInput{Content: f.faker.Sentence(f.faker.Number(3, 10)), To: to}
}

// Image renders a small two-tone PNG so seeded posts carry real, decodable images.
func (f *Factory) Image() []byte {
	const size = 32
	top := color.RGBA{R: f.faker.Uint8(), G: f.faker.Uint8(), B: f.faker.Uint8(), A: 255}
	bottom := color.RGBA{R: f.faker.Uint8(), G: f.faker.Uint8(), B: f.faker.Uint8(), A: 255}

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := range size {
		c := top
		if y >= size/2 {
			c = bottom
		}
		for x := range size {
			img.Set(x, y, c)
		}
	}
	buf := new(bytes.Buffer)
	_ = png.Encode(buf, img)
	return buf.Bytes()
}

// Intn exposes the factory's deterministic source to the seeder.
func (f *Factory) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return f.faker.Number(0, n-1)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
