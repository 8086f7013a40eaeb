package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"inkwell/internal/content"
	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

const (
	MaxPostImages = 5
	// slugAttempts bounds retries when a concurrent writer takes the slug we picked.
	slugAttempts = 5
)

type CreatePostInput struct {
	Title     string   `json:"title" validate:"required,notblank,min=3,max=100"`
	Body      string   `json:"body" validate:"required,min=4,max=10000"`
	Tags      []string `json:"tags" validate:"max=20,dive,max=40"`
	Published bool     `json:"published"`
	Images    []Upload `json:"-" validate:"max=5"`
}

// UpdatePostInput carries an edit. Nil fields are left unchanged.
type UpdatePostInput struct {
	Title        *string  `json:"title" validate:"omitempty,notblank,min=3,max=100"`
	Body         *string  `json:"body" validate:"omitempty,min=4,max=10000"`
	Tags         []string `json:"tags" validate:"omitempty,max=20,dive,max=40"`
	SetTags      bool     `json:"-"`
	Published    *bool    `json:"published"`
	RemoveImages []string `json:"removeImages"`
	Images       []Upload `json:"-"`
}

type PostService struct {
	posts         repository.PostRepository
	users         repository.UserRepository
	follows       repository.FollowRepository
	images        *ImageService
	notifications *NotificationService
}

func NewPostService(
	posts repository.PostRepository,
	users repository.UserRepository,
	follows repository.FollowRepository,
	images *ImageService,
	notifications *NotificationService,
) *PostService {
	return &PostService{
		posts:         posts,
		users:         users,
		follows:       follows,
		images:        images,
		notifications: notifications,
	}
}

// Create stores the images, then creates the post referencing them. If the post cannot be
// created the images are deleted again.
func (s *PostService) Create(ctx context.Context, authorID uint, in CreatePostInput) (*models.PostView, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Tags = content.NormalizeTags(in.Tags)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	body, err := sanitizedBody(in.Body)
	if err != nil {
		return nil, err
	}

	stored, err := s.images.StoreAll(ctx, authorID, in.Images)
	if err != nil {
		return nil, err
	}
	refs := make([]string, 0, len(stored))
	for _, img := range stored {
		refs = append(refs, img.URL())
	}

	post := &models.Post{
		Title:     in.Title,
		Body:      body,
		Images:    refs,
		AuthorID:  authorID,
		Tags:      in.Tags,
		Published: in.Published,
	}
	if err := s.createWithFreshSlug(ctx, post); err != nil {
		s.images.Compensate(ctx, "create_post", imageIDs(stored))
		return nil, err
	}

	created, err := s.posts.GetBySlug(ctx, post.Slug)
	if err != nil {
		return nil, err
	}
	if created.Published {
		s.notifyFollowers(ctx, created)
	}

	views, err := s.decorate(ctx, authorID, []models.Post{*created})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *PostService) createWithFreshSlug(ctx context.Context, post *models.Post) error {
	base := content.BaseSlug(post.Title)
	var err error
	for range slugAttempts {
		post.Slug, err = content.UniqueSlug(ctx, base, s.posts.SlugExists)
		if err != nil {
			return models.NewInternalError(err)
		}
		err = s.posts.Create(ctx, post)
		if !isSlugConflict(err) {
			return err
		}
	}
	return err
}

func isSlugConflict(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == models.CodeConflict
}

func (s *PostService) notifyFollowers(ctx context.Context, post *models.Post) {
	followers, err := s.follows.FollowerIDs(ctx, post.AuthorID)
	if err != nil || len(followers) == 0 {
		return
	}
	s.notifications.NotifyMany(ctx, followers, models.NotificationNewPost,
		fmt.Sprintf("%s published a new post: %s", post.Author.Name, post.Title),
		map[string]string{"slug": post.Slug})
}

// Get returns a post. Drafts are only visible to their author.
func (s *PostService) Get(ctx context.Context, slug string, viewerID uint) (*models.PostView, error) {
	post, err := s.visiblePost(ctx, slug, viewerID)
	if err != nil {
		return nil, err
	}
	views, err := s.decorate(ctx, viewerID, []models.Post{*post})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *PostService) visiblePost(ctx context.Context, slug string, viewerID uint) (*models.Post, error) {
	if !validation.ValidSlug(slug) {
		return nil, models.NewValidationError("Invalid slug")
	}
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !post.Published && post.AuthorID != viewerID {
		return nil, models.NewNotFoundError("Post", slug)
	}
	return post, nil
}

// Feed pages every published post, newest first.
func (s *PostService) Feed(ctx context.Context, viewerID uint, p pagination.Params) (pagination.Page[models.PostView], error) {
	return s.list(ctx, viewerID, repository.PostFilter{}, p)
}

// Mine pages the caller's posts including drafts.
func (s *PostService) Mine(ctx context.Context, userID uint, p pagination.Params) (pagination.Page[models.PostView], error) {
	return s.list(ctx, userID, repository.PostFilter{AuthorID: userID, IncludeDrafts: true}, p)
}

// ByAuthor pages a user's published posts. The author sees their drafts too.
func (s *PostService) ByAuthor(ctx context.Context, username string, viewerID uint, p pagination.Params) (pagination.Page[models.PostView], error) {
	author, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return pagination.Page[models.PostView]{}, err
	}
	filter := repository.PostFilter{AuthorID: author.ID, IncludeDrafts: author.ID == viewerID}
	return s.list(ctx, viewerID, filter, p)
}

func (s *PostService) Favourites(ctx context.Context, userID uint, p pagination.Params) (pagination.Page[models.PostView], error) {
	posts, total, err := s.posts.ListFavourites(ctx, userID, p.Offset(), p.Limit)
	if err != nil {
		return pagination.Page[models.PostView]{}, err
	}
	views, err := s.decorate(ctx, userID, posts)
	if err != nil {
		return pagination.Page[models.PostView]{}, err
	}
	return pagination.NewPage(views, p, total), nil
}

func (s *PostService) list(ctx context.Context, viewerID uint, filter repository.PostFilter, p pagination.Params) (pagination.Page[models.PostView], error) {
	posts, total, err := s.posts.List(ctx, filter, p.Offset(), p.Limit)
	if err != nil {
		return pagination.Page[models.PostView]{}, err
	}
	views, err := s.decorate(ctx, viewerID, posts)
	if err != nil {
		return pagination.Page[models.PostView]{}, err
	}
	return pagination.NewPage(views, p, total), nil
}

func (s *PostService) decorate(ctx context.Context, viewerID uint, posts []models.Post) ([]models.PostView, error) {
	return postViews(ctx, s.posts, viewerID, posts)
}

// postViews attaches author cards and the viewer's like and favourite state.
func postViews(ctx context.Context, repo repository.PostRepository, viewerID uint, posts []models.Post) ([]models.PostView, error) {
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	liked, favourites, err := repo.ViewerState(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.PostView, 0, len(posts))
	for _, p := range posts {
		views = append(views, models.PostView{
			Post:        p,
			Author:      p.Author.Public(),
			Liked:       liked[p.ID],
			IsFavourite: favourites[p.ID],
			IsOwner:     viewerID != 0 && p.AuthorID == viewerID,
		})
	}
	return views, nil
}

// Update applies an author's edit. New images follow the same two-phase pattern as Create;
// removed images are deleted in the same transaction as the post update.
func (s *PostService) Update(ctx context.Context, slug string, userID uint, in UpdatePostInput) (*models.PostView, error) {
	if in.Title != nil {
		trimmed := strings.TrimSpace(*in.Title)
		if trimmed == "" {
			return nil, models.NewValidationError("title is required")
		}
		in.Title = &trimmed
	}
	if in.Body != nil && strings.TrimSpace(*in.Body) == "" {
		return nil, models.NewValidationError("body is required")
	}
	if in.SetTags {
		in.Tags = content.NormalizeTags(in.Tags)
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	post, err := s.ownedPost(ctx, slug, userID)
	if err != nil {
		return nil, err
	}

	kept, removed, err := detachImages(post.Images, in.RemoveImages)
	if err != nil {
		return nil, err
	}
	if len(kept)+len(in.Images) > MaxPostImages {
		return nil, models.NewValidationError(fmt.Sprintf("A post can have at most %d images", MaxPostImages))
	}

	if in.Body != nil {
		body, err := sanitizedBody(*in.Body)
		if err != nil {
			return nil, err
		}
		post.Body = body
	}
	if in.SetTags {
		post.Tags = in.Tags
	}
	if in.Published != nil {
		post.Published = *in.Published
	}
	retitled := in.Title != nil && content.BaseSlug(*in.Title) != content.BaseSlug(post.Title)
	if in.Title != nil {
		post.Title = *in.Title
	}

	stored, err := s.images.StoreAll(ctx, userID, in.Images)
	if err != nil {
		return nil, err
	}
	for _, img := range stored {
		kept = append(kept, img.URL())
	}
	post.Images = kept
	post.DateUpdated = time.Now()

	if err := s.saveWithSlug(ctx, post, retitled, models.ImageIDs(removed)); err != nil {
		s.images.Compensate(ctx, "update_post", imageIDs(stored))
		return nil, err
	}
	s.images.Forget(ctx, models.ImageIDs(removed))

	updated, err := s.posts.GetBySlug(ctx, post.Slug)
	if err != nil {
		return nil, err
	}
	views, err := s.decorate(ctx, userID, []models.Post{*updated})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *PostService) saveWithSlug(ctx context.Context, post *models.Post, reslug bool, removedIDs []uint) error {
	if !reslug {
		return s.posts.Update(ctx, post, removedIDs)
	}
	base := content.BaseSlug(post.Title)
	var err error
	for range slugAttempts {
		post.Slug, err = content.UniqueSlug(ctx, base, s.posts.SlugExists)
		if err != nil {
			return models.NewInternalError(err)
		}
		err = s.posts.Update(ctx, post, removedIDs)
		if !isSlugConflict(err) {
			return err
		}
	}
	return err
}

// detachImages splits refs into the ones kept and the ones named in remove. Naming an image
// the post does not have is a validation error.
func detachImages(refs, remove []string) (kept, removed []string, err error) {
	for _, r := range remove {
		if !slices.Contains(refs, r) {
			return nil, nil, models.NewValidationError(fmt.Sprintf("Image %s does not belong to this post", r))
		}
	}
	kept = make([]string, 0, len(refs))
	for _, ref := range refs {
		if slices.Contains(remove, ref) {
			removed = append(removed, ref)
			continue
		}
		kept = append(kept, ref)
	}
	return kept, removed, nil
}

func (s *PostService) ownedPost(ctx context.Context, slug string, userID uint) (*models.Post, error) {
	if !validation.ValidSlug(slug) {
		return nil, models.NewValidationError("Invalid slug")
	}
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, models.NewNotFoundError("Post", slug)
	}
	return post, nil
}

// Delete removes the author's post with its comments and images.
func (s *PostService) Delete(ctx context.Context, slug string, userID uint) error {
	if !validation.ValidSlug(slug) {
		return models.NewValidationError("Invalid slug")
	}
	post, err := s.posts.Delete(ctx, slug, userID)
	if err != nil {
		return err
	}
	s.images.Forget(ctx, models.ImageIDs(post.Images))
	return nil
}

// Like records the caller's like and notifies the author unless they liked their own post.
func (s *PostService) Like(ctx context.Context, slug string, userID uint) (int64, error) {
	post, err := s.visiblePost(ctx, slug, userID)
	if err != nil {
		return 0, err
	}
	count, err := s.posts.Like(ctx, post.ID, userID)
	if err != nil {
		return 0, err
	}
	if post.AuthorID != userID {
		if liker, err := s.users.GetByID(ctx, userID); err == nil {
			s.notifications.Notify(ctx, post.AuthorID, models.NotificationNewLike,
				fmt.Sprintf("%s liked your post: %s", liker.Username, post.Title),
				map[string]string{"slug": post.Slug})
		}
	}
	return count, nil
}

func (s *PostService) Unlike(ctx context.Context, slug string, userID uint) (int64, error) {
	post, err := s.visiblePost(ctx, slug, userID)
	if err != nil {
		return 0, err
	}
	return s.posts.Unlike(ctx, post.ID, userID)
}

func (s *PostService) Favourite(ctx context.Context, slug string, userID uint) error {
	post, err := s.visiblePost(ctx, slug, userID)
	if err != nil {
		return err
	}
	return s.posts.Favourite(ctx, userID, post.ID)
}

func (s *PostService) Unfavourite(ctx context.Context, slug string, userID uint) error {
	if !validation.ValidSlug(slug) {
		return models.NewValidationError("Invalid slug")
	}
	post, err := s.posts.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	return s.posts.Unfavourite(ctx, userID, post.ID)
}

func sanitizedBody(raw string) (string, error) {
	body := strings.TrimSpace(content.SanitizeBody(raw))
	if body == "" {
		return "", models.NewValidationError("body is required")
	}
	return body, nil
}
