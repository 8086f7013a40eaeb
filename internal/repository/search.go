package repository

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"inkwell/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The PostgreSQL vectors must stay identical to the GIN expression indexes in
// database/migrations/000002_search_indexes.up.sql or the planner will not use them.
const (
	postVector = "setweight(to_tsvector('english', coalesce(title, '')), 'A') || " +
		"setweight(to_tsvector('english', coalesce(tags, '')), 'B') || " +
		"setweight(to_tsvector('english', coalesce(body, '')), 'C')"
	postQuery = "plainto_tsquery('english', ?)"

	userVector = "setweight(to_tsvector('simple', coalesce(name, '')), 'A') || " +
		"setweight(to_tsvector('simple', coalesce(username, '')), 'A') || " +
		"setweight(to_tsvector('english', coalesce(description, '')), 'C')"
	userQuery = "plainto_tsquery('simple', ?)"
)

// SearchRepository answers ranked, substring and prefix lookups over posts and users.
// Post lookups only ever return published posts.
type SearchRepository interface {
	RankedPosts(ctx context.Context, q string, offset, limit int) ([]models.Post, int64, error)
	FallbackPosts(ctx context.Context, q string, offset, limit int) ([]models.Post, int64, error)
	RankedUsers(ctx context.Context, q string, offset, limit int) ([]models.User, int64, error)
	FallbackUsers(ctx context.Context, q string, offset, limit int) ([]models.User, int64, error)
	AutocompletePosts(ctx context.Context, prefix string, limit int) ([]models.Post, error)
	AutocompleteUsers(ctx context.Context, prefix string, limit int) ([]models.User, error)
}

type searchRepository struct {
	db *gorm.DB
}

// NewSearchRepository returns a new SearchRepository implementation.
func NewSearchRepository(db *gorm.DB) SearchRepository {
	return &searchRepository{db: db}
}

// weightedField is a column and its relevance weight in the portable scorer.
type weightedField struct {
	column string
	weight int
	// jsonList marks a JSON array column, matched element-wise.
	jsonList bool
}

var (
	postFields = []weightedField{{"title", 4, false}, {"tags", 2, true}, {"body", 1, false}}
	userFields = []weightedField{{"name", 4, false}, {"username", 4, false}, {"description", 1, false}}
)

// wordSeparators are SQL literals folded to spaces before whole-word matching. A literal
// question mark would be taken for a placeholder, hence char(63). char() is
// SQLite; the portable scorer never runs on PostgreSQL.
var wordSeparators = []string{
	"','", "'.'", "'!'", "':'", "';'", "'('", "')'", "'\"'", "'<'", "'>'", "'/'",
	"char(63)", "char(10)", "char(9)",
}

// normalizedColumn lowercases col and replaces punctuation with spaces, padded with a space at
// each end so whole words can be matched with LIKE '% word %'.
func normalizedColumn(col string) string {
	expr := "LOWER(COALESCE(" + col + ", ''))"
	for _, sep := range wordSeparators {
		expr = "REPLACE(" + expr + ", " + sep + ", ' ')"
	}
	return "(' ' || " + expr + " || ' ')"
}

// searchTokens splits q into lowercase letter/digit words, de-duplicated.
func searchTokens(q string) []string {
	words := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(words))
	out := words[:0]
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// portableScore builds a relevance expression that works on any SQL dialect: every whole-word
// hit of a query token in a field adds the field's weight.
func portableScore(fields []weightedField, tokens []string) (string, []any) {
	var parts []string
	var args []any
	for _, f := range fields {
		for _, tok := range tokens {
			if f.jsonList {
				parts = append(parts, "CASE WHEN LOWER(COALESCE("+f.column+", '')) LIKE ? THEN "+strconv.Itoa(f.weight)+" ELSE 0 END")
				args = append(args, `%"`+tok+`"%`)
				continue
			}
			parts = append(parts, "CASE WHEN "+normalizedColumn(f.column)+" LIKE ? THEN "+strconv.Itoa(f.weight)+" ELSE 0 END")
			args = append(args, "% "+tok+" %")
		}
	}
	return "(" + strings.Join(parts, " + ") + ")", args
}

// orderBy renders a parameterized ORDER BY expression.
func orderBy(sql string, args []any) clause.OrderBy {
	return clause.OrderBy{Expression: clause.Expr{SQL: sql, Vars: args, WithoutParentheses: true}}
}

// escapeLike escapes LIKE wildcards so user input matches literally with ESCAPE '\'.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// substringMatch ORs a case-insensitive contains test across columns.
func substringMatch(columns []string, q string) (string, []any) {
	pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
	parts := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		parts[i] = "LOWER(COALESCE(" + col + ", '')) LIKE ? ESCAPE '\\'"
		args[i] = pattern
	}
	return "(" + strings.Join(parts, " OR ") + ")", args
}

func (r *searchRepository) RankedPosts(ctx context.Context, q string, offset, limit int) ([]models.Post, int64, error) {
	db := r.db.WithContext(ctx)
	base := db.Model(&models.Post{}).Where("published = ?", true)

	var where, order string
	var whereArgs, orderArgs []any
	if isPostgres(db) {
		where = "(" + postVector + ") @@ " + postQuery
		whereArgs = []any{q}
		order = "ts_rank(" + postVector + ", " + postQuery + ") DESC, date_written DESC, id DESC"
		orderArgs = []any{q}
	} else {
		tokens := searchTokens(q)
		if len(tokens) == 0 {
			return []models.Post{}, 0, nil
		}
		score, args := portableScore(postFields, tokens)
		where = score + " > 0"
		whereArgs = args
		order = score + " DESC, date_written DESC, id DESC"
		orderArgs = args
	}

	var total int64
	if err := base.Where(where, whereArgs...).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	if total == 0 {
		return []models.Post{}, 0, nil
	}

	var posts []models.Post
	err := db.Preload("Author").
		Where("published = ?", true).
		Where(where, whereArgs...).
		Clauses(orderBy(order, orderArgs)).
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

func (r *searchRepository) FallbackPosts(ctx context.Context, q string, offset, limit int) ([]models.Post, int64, error) {
	db := r.db.WithContext(ctx)
	match, args := substringMatch([]string{"title", "body", "tags"}, q)

	var total int64
	if err := db.Model(&models.Post{}).Where("published = ?", true).Where(match, args...).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var posts []models.Post
	err := db.Preload("Author").
		Where("published = ?", true).
		Where(match, args...).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

func (r *searchRepository) RankedUsers(ctx context.Context, q string, offset, limit int) ([]models.User, int64, error) {
	db := r.db.WithContext(ctx)

	var where, order string
	var whereArgs, orderArgs []any
	if isPostgres(db) {
		where = "(" + userVector + ") @@ " + userQuery
		whereArgs = []any{q}
		order = "ts_rank(" + userVector + ", " + userQuery + ") DESC, id ASC"
		orderArgs = []any{q}
	} else {
		tokens := searchTokens(q)
		if len(tokens) == 0 {
			return []models.User{}, 0, nil
		}
		score, args := portableScore(userFields, tokens)
		where = score + " > 0"
		whereArgs = args
		order = score + " DESC, id ASC"
		orderArgs = args
	}

	var total int64
	if err := db.Model(&models.User{}).Where(where, whereArgs...).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	if total == 0 {
		return []models.User{}, 0, nil
	}

	var users []models.User
	err := db.Where(where, whereArgs...).
		Clauses(orderBy(order, orderArgs)).
		Offset(offset).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}

func (r *searchRepository) FallbackUsers(ctx context.Context, q string, offset, limit int) ([]models.User, int64, error) {
	db := r.db.WithContext(ctx)
	match, args := substringMatch([]string{"name", "username", "description"}, q)

	var total int64
	if err := db.Model(&models.User{}).Where(match, args...).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var users []models.User
	err := db.Where(match, args...).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}

func (r *searchRepository) AutocompletePosts(ctx context.Context, prefix string, limit int) ([]models.Post, error) {
	p := escapeLike(strings.ToLower(prefix))
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("published = ?", true).
		Where("LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(body) LIKE ? ESCAPE '\\' OR LOWER(COALESCE(tags, '')) LIKE ? ESCAPE '\\'",
			p+"%", p+"%", `%"`+p+"%").
		Order("date_written DESC, id DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

func (r *searchRepository) AutocompleteUsers(ctx context.Context, prefix string, limit int) ([]models.User, error) {
	p := escapeLike(strings.ToLower(prefix)) + "%"
	var users []models.User
	err := r.db.WithContext(ctx).
		Where("LOWER(username) LIKE ? ESCAPE '\\' OR LOWER(name) LIKE ? ESCAPE '\\'", p, p).
		Order("username ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
