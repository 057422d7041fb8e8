package content

import (
	"context"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/class"
	"github.com/quransn/academy/core/notification"
	"github.com/quransn/academy/core/user"
)

var ErrNotFound = core.NewNotFoundError("content not found")

func Get(tx core.DBTx, id string) (Content, error) {
	c, err := core.GetRecord[Content](tx, Collection, id)
	if err == core.ErrRecordNotFound {
		return Content{}, ErrNotFound
	}
	return c, err
}

func List(tx core.DBTx, keep func(Content) bool) ([]Content, error) {
	return core.ListRecords(tx, Collection, keep)
}

type Service struct {
	db        core.DB
	validate  *validator.Validate
	notifier  notification.Notifier
	maxUpload int64
	viewXP    int
	commentXP int
}

func NewService(db core.DB, validate *validator.Validate, notifier notification.Notifier, conf *core.Config) *Service {
	return &Service{
		db:        db,
		validate:  validate,
		notifier:  notifier,
		maxUpload: conf.Content.MaxUploadBytes,
		viewXP:    conf.Gamification.ContentViewXP,
		commentXP: conf.Gamification.CommentXP,
	}
}

func dataURLError(field string, err error) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}

// Upload stores a content and tells every student of its class.
func (svc *Service) Upload(ctx context.Context, nc NewContent) (Content, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Content{}, err
	}
	p, err := parseDataURL(nc.DataURL, svc.maxUpload)
	if err != nil {
		return Content{}, dataURLError("data_url", err)
	}
	if err = p.check(nc.Type); err != nil {
		return Content{}, dataURLError("data_url", err)
	}

	var c Content
	err = svc.db.Update(ctx, func(tx core.DBTx) error {
		cls, err := class.Get(tx, nc.ClassID)
		if err != nil {
			return err
		}
		c = Content{
			ID:          core.NewID(),
			ClassID:     cls.ID,
			Title:       nc.Title,
			Description: nc.Description,
			Type:        nc.Type,
			MimeType:    p.detected,
			DataURL:     nc.DataURL,
			FileName:    nc.FileName,
			Size:        p.size,
			CreatedAt:   core.NowFunc(),
			Comments:    []Comment{},
		}
		if err = core.PutRecord(tx, Collection, c.ID, c); err != nil {
			return err
		}

		rcpts := make([]notification.Recipient, 0, len(cls.StudentIDs))
		for _, sid := range cls.StudentIDs {
			rcpts = append(rcpts, notification.Recipient{UserID: sid})
		}
		if len(rcpts) == 0 {
			return nil
		}
		return notification.Publish(tx, notification.Event{
			Kind:       notification.KindContentPublished,
			Recipients: rcpts,
			Subject:    c.Title,
			Context:    cls.Name,
		})
	})
	if err != nil {
		return Content{}, err
	}
	svc.notifier.Notify(ctx)
	return c, nil
}

// Delete removes a content and its view records.
func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.db.Update(ctx, func(tx core.DBTx) error {
		if _, err := Get(tx, id); err != nil {
			return err
		}
		views, err := core.ListRecords(tx, ProgressCollection, func(v ViewProgress) bool { return v.ContentID == id })
		if err != nil {
			return err
		}
		for _, v := range views {
			if err = tx.Delete(ProgressCollection, progressKey(v.UserID, v.ContentID)); err != nil {
				return err
			}
		}
		return tx.Delete(Collection, id)
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Content, error) {
	var c Content
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		c, err = Get(tx, id)
		return err
	})
	return c, err
}

// Query returns the matching contents in upload order.
func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Content, error) {
	var contents []Content
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		contents, err = List(tx, filter.match)
		return err
	})
	return contents, err
}

// AddComment appends a comment by `authorID` and awards the comment xp.
// The author unlocks the Commenter badge with their 10th comment.
func (svc *Service) AddComment(ctx context.Context, contentID, authorID string, nc NewComment) (Comment, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Comment{}, err
	}
	if nc.AudioDataURL != "" {
		if err := CheckAudio(nc.AudioDataURL, svc.maxUpload); err != nil {
			return Comment{}, dataURLError("audio_data_url", err)
		}
	}

	var cmt Comment
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		c, err := Get(tx, contentID)
		if err != nil {
			return err
		}
		author, err := user.Get(tx, authorID)
		if err != nil {
			return err
		}

		cmt = Comment{
			ID:        core.NewID(),
			UserID:    author.ID,
			UserName:  author.FullName(),
			Text:      nc.Text,
			AudioURL:  nc.AudioDataURL,
			CreatedAt: core.NowFunc(),
		}
		c.Comments = append(c.Comments, cmt)
		if err = core.PutRecord(tx, Collection, c.ID, c); err != nil {
			return err
		}
		if err = notification.Publish(tx, notification.Event{
			Kind:    notification.KindCommentPosted,
			Actor:   cmt.UserName,
			Subject: c.Title,
		}); err != nil {
			return err
		}

		if _, err = user.AwardXP(tx, author.ID, svc.commentXP); err != nil {
			return err
		}
		written, err := countComments(tx, author.ID)
		if err != nil {
			return err
		}
		if written >= user.CommenterComments {
			_, err = user.UnlockBadge(tx, author.ID, user.BadgeCommenter)
		}
		return err
	})
	if err != nil {
		return Comment{}, err
	}
	svc.notifier.Notify(ctx)
	return cmt, nil
}

func countComments(tx core.DBTx, authorID string) (int, error) {
	var n int
	err := tx.ForEach(Collection, func(_ string, data []byte) error {
		var c Content
		if core.DecodeRecord(data, &c) != nil {
			return nil
		}
		for _, cmt := range c.Comments {
			if cmt.UserID == authorID {
				n++
			}
		}
		return nil
	})
	return n, err
}

// MarkViewed records the first view of a content by a user and awards the view xp.
// Later views change nothing and report false.
func (svc *Service) MarkViewed(ctx context.Context, userID, contentID string) (bool, error) {
	var first bool
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		first = false
		key := progressKey(userID, contentID)
		seen, err := core.RecordExists(tx, ProgressCollection, key)
		if err != nil || seen {
			return err
		}
		c, err := Get(tx, contentID)
		if err != nil {
			return err
		}
		if _, err = user.AwardXP(tx, userID, svc.viewXP); err != nil {
			return err
		}
		first = true
		return core.PutRecord(tx, ProgressCollection, key, ViewProgress{
			UserID:    userID,
			ContentID: contentID,
			ClassID:   c.ClassID,
			ViewedAt:  core.NowFunc(),
		})
	})
	if err != nil {
		return false, err
	}
	if first {
		svc.notifier.Notify(ctx)
	}
	return first, nil
}

// ViewedContentIDs lists the contents viewed by `userID`.
func (svc *Service) ViewedContentIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		views, err := core.ListRecords(tx, ProgressCollection, func(v ViewProgress) bool { return v.UserID == userID })
		ids = make([]string, 0, len(views))
		for _, v := range views {
			ids = append(ids, v.ContentID)
		}
		return err
	})
	return ids, err
}

// ClassProgress is the rounded percentage of the contents of `classID` viewed by `userID`,
// 0 for a class without content.
func (svc *Service) ClassProgress(ctx context.Context, userID, classID string) (int, error) {
	var pct int
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		contents, err := List(tx, func(c Content) bool { return c.ClassID == classID })
		if err != nil {
			return err
		}
		if len(contents) == 0 {
			pct = 0
			return nil
		}
		var viewed int
		for _, c := range contents {
			seen, err := core.RecordExists(tx, ProgressCollection, progressKey(userID, c.ID))
			if err != nil {
				return err
			}
			if seen {
				viewed++
			}
		}
		pct = progressPercent(viewed, len(contents))
		return nil
	})
	return pct, err
}

func progressPercent(viewed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(viewed) * 100 / float64(total)))
}
