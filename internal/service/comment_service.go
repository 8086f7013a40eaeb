package service

import (
	"context"
	"fmt"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/pagination"
	"inkwell/internal/repository"
	"inkwell/internal/validation"
)

type CreateCommentInput struct {
	Content string `json:"content" validate:"required,notblank,max=5000"`
}

type CreateReplyInput struct {
	Content string `json:"content" validate:"required,notblank,max=3000"`
	To      string `json:"to" validate:"omitempty,max=15,username"`
}

type CommentService struct {
	comments      repository.CommentRepository
	posts         *PostService
	users         repository.UserRepository
	notifications *NotificationService
}

func NewCommentService(
	comments repository.CommentRepository,
	posts *PostService,
	users repository.UserRepository,
	notifications *NotificationService,
) *CommentService {
	return &CommentService{comments: comments, posts: posts, users: users, notifications: notifications}
}

// List pages a post's comments, most liked first.
func (s *CommentService) List(ctx context.Context, slug string, viewerID uint, p pagination.Params) (pagination.Page[models.CommentView], error) {
	post, err := s.posts.visiblePost(ctx, slug, viewerID)
	if err != nil {
		return pagination.Page[models.CommentView]{}, err
	}
	comments, total, err := s.comments.ListByPost(ctx, post.ID, p.Offset(), p.Limit)
	if err != nil {
		return pagination.Page[models.CommentView]{}, err
	}

	ids := make([]uint, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	liked, err := s.comments.LikedIDs(ctx, viewerID, ids)
	if err != nil {
		return pagination.Page[models.CommentView]{}, err
	}

	views := make([]models.CommentView, 0, len(comments))
	for _, c := range comments {
		views = append(views, commentView(c, liked[c.ID]))
	}
	return pagination.NewPage(views, p, total), nil
}

func commentView(c models.Comment, liked bool) models.CommentView {
	return models.CommentView{
		Comment:      c,
		Author:       c.Author.Public(),
		Liked:        liked,
		RepliesCount: len(c.Replies),
	}
}

// Create adds a comment and notifies the post's author.
func (s *CommentService) Create(ctx context.Context, slug string, userID uint, in CreateCommentInput) (*models.CommentView, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	post, err := s.posts.visiblePost(ctx, slug, userID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{Content: in.Content, AuthorID: userID, PostID: post.ID}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	created, err := s.comments.GetByID(ctx, post.ID, comment.ID)
	if err != nil {
		return nil, err
	}

	if post.AuthorID != userID {
		s.notifications.Notify(ctx, post.AuthorID, models.NotificationNewComment,
			fmt.Sprintf("%s commented on your post: %s", created.Author.Username, post.Title),
			map[string]string{"slug": post.Slug})
	}

	view := commentView(*created, false)
	return &view, nil
}

func (s *CommentService) comment(ctx context.Context, slug string, commentID, viewerID uint) (*models.Post, *models.Comment, error) {
	post, err := s.posts.visiblePost(ctx, slug, viewerID)
	if err != nil {
		return nil, nil, err
	}
	comment, err := s.comments.GetByID(ctx, post.ID, commentID)
	if err != nil {
		return nil, nil, err
	}
	return post, comment, nil
}

func (s *CommentService) Like(ctx context.Context, slug string, commentID, userID uint) (int64, error) {
	if _, _, err := s.comment(ctx, slug, commentID, userID); err != nil {
		return 0, err
	}
	return s.comments.Like(ctx, commentID, userID)
}

func (s *CommentService) Unlike(ctx context.Context, slug string, commentID, userID uint) (int64, error) {
	if _, _, err := s.comment(ctx, slug, commentID, userID); err != nil {
		return 0, err
	}
	return s.comments.Unlike(ctx, commentID, userID)
}

// Replies pages a comment's replies in the order they were written.
func (s *CommentService) Replies(ctx context.Context, slug string, commentID, viewerID uint, p pagination.Params) (pagination.Page[models.ReplyView], error) {
	_, comment, err := s.comment(ctx, slug, commentID, viewerID)
	if err != nil {
		return pagination.Page[models.ReplyView]{}, err
	}

	offset := p.Offset()
	window := pagination.Slice(comment.Replies, p)

	authorIDs := make([]uint, 0, len(window))
	for _, r := range window {
		authorIDs = append(authorIDs, r.AuthorID)
	}
	authors, err := s.users.GetByIDs(ctx, authorIDs)
	if err != nil {
		return pagination.Page[models.ReplyView]{}, err
	}

	views := make([]models.ReplyView, 0, len(window))
	for i, r := range window {
		author := authors[r.AuthorID]
		views = append(views, replyView(offset+i, r, author.Public(), viewerID))
	}
	return pagination.NewPage(views, p, int64(len(comment.Replies))), nil
}

func replyView(index int, r models.Reply, author models.PublicUser, viewerID uint) models.ReplyView {
	return models.ReplyView{
		Index:       index,
		Content:     r.Content,
		Author:      author,
		To:          r.To,
		LikesCount:  len(r.Likes),
		Liked:       viewerID != 0 && r.LikedBy(viewerID),
		DateWritten: r.DateWritten,
	}
}

// Reply appends a reply to a comment and notifies the comment's author.
func (s *CommentService) Reply(ctx context.Context, slug string, commentID, userID uint, in CreateReplyInput) (*models.ReplyView, error) {
	in.Content = strings.TrimSpace(in.Content)
	in.To = strings.TrimPrefix(strings.TrimSpace(in.To), "@")
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	post, comment, err := s.comment(ctx, slug, commentID, userID)
	if err != nil {
		return nil, err
	}
	author, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	reply := models.Reply{Content: in.Content, AuthorID: userID, To: in.To, Likes: []uint{}}
	index, err := s.comments.AddReply(ctx, comment.ID, reply)
	if err != nil {
		return nil, err
	}

	if comment.AuthorID != userID {
		s.notifications.Notify(ctx, comment.AuthorID, models.NotificationNewReply,
			fmt.Sprintf("%s replied to your comment on: %s", author.Username, post.Title),
			map[string]string{"slug": post.Slug})
	}

	stored, err := s.comments.GetByID(ctx, post.ID, comment.ID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(stored.Replies) {
		return nil, models.NewNotFoundError("Reply", index)
	}
	view := replyView(index, stored.Replies[index], author.Public(), userID)
	return &view, nil
}

func (s *CommentService) LikeReply(ctx context.Context, slug string, commentID uint, index int, userID uint) (int, error) {
	if _, _, err := s.comment(ctx, slug, commentID, userID); err != nil {
		return 0, err
	}
	return s.comments.LikeReply(ctx, commentID, index, userID)
}

func (s *CommentService) UnlikeReply(ctx context.Context, slug string, commentID uint, index int, userID uint) (int, error) {
	if _, _, err := s.comment(ctx, slug, commentID, userID); err != nil {
		return 0, err
	}
	return s.comments.UnlikeReply(ctx, commentID, index, userID)
}
