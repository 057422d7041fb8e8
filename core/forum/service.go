package forum

import (
	"context"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/user"
)

var ErrNotFound = core.NewNotFoundError("forum post not found")

// WelcomePostID is the id of the post opening the forum.
const WelcomePostID = "f1"

func get(tx core.DBTx, id string) (Post, error) {
	rec, err := core.GetRecord[record](tx, Collection, id)
	if err != nil {
		if err == core.ErrRecordNotFound {
			return Post{}, ErrNotFound
		}
		return Post{}, err
	}
	return rec.toPost(), nil
}

func save(tx core.DBTx, p Post) error {
	return core.PutRecord(tx, Collection, p.ID, record{Post: p, LikedBy: p.LikedBy})
}

func (r record) toPost() Post {
	p := r.Post
	p.LikedBy = r.LikedBy
	return p
}

type Service struct {
	db       core.DB
	validate *validator.Validate
	postXP   int
}

func NewService(db core.DB, validate *validator.Validate, conf *core.Config) *Service {
	return &Service{db: db, validate: validate, postXP: conf.Gamification.ForumPostXP}
}

// Seed opens the forum with a welcome post by `author` unless the forum already has posts.
func Seed(tx core.DBTx, author user.User) (bool, error) {
	n, err := core.CountRecords[record](tx, Collection, nil)
	if err != nil || n > 0 {
		return false, err
	}
	return true, save(tx, Post{
		ID:        WelcomePostID,
		UserID:    author.ID,
		UserName:  author.FullName(),
		Title:     "Bienvenue sur le forum",
		Content:   "Posez vos questions ici.",
		Category:  CategoryGeneral,
		Likes:     10,
		Replies:   []Reply{},
		CreatedAt: core.NowFunc(),
	})
}

// List returns the posts, newest first.
func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Post, error) {
	var posts []Post
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		recs, err := core.ListRecords(tx, Collection, func(r record) bool {
			return filter.Category == "" || r.Category == filter.Category
		})
		posts = make([]Post, 0, len(recs))
		for _, r := range recs {
			posts = append(posts, r.toPost())
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	return posts, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Post, error) {
	var p Post
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		p, err = get(tx, id)
		return err
	})
	return p, err
}

// Create publishes a post by `authorID` and awards the forum xp.
func (svc *Service) Create(ctx context.Context, authorID string, np NewPost) (Post, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Post{}, err
	}
	var p Post
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		author, err := user.Get(tx, authorID)
		if err != nil {
			return err
		}
		p = Post{
			ID:        core.NewID(),
			UserID:    author.ID,
			UserName:  author.FullName(),
			Title:     np.Title,
			Content:   np.Content,
			Category:  np.Category,
			Replies:   []Reply{},
			CreatedAt: core.NowFunc(),
		}
		if err = save(tx, p); err != nil {
			return err
		}
		_, err = user.AwardXP(tx, author.ID, svc.postXP)
		return err
	})
	return p, err
}

func (svc *Service) Reply(ctx context.Context, postID, authorID string, nr NewReply) (Reply, error) {
	if err := nr.Validate(svc.validate); err != nil {
		return Reply{}, err
	}
	var r Reply
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		p, err := get(tx, postID)
		if err != nil {
			return err
		}
		author, err := user.Get(tx, authorID)
		if err != nil {
			return err
		}
		r = Reply{
			ID:        core.NewID(),
			UserID:    author.ID,
			UserName:  author.FullName(),
			Text:      nr.Text,
			CreatedAt: core.NowFunc(),
		}
		p.Replies = append(p.Replies, r)
		return save(tx, p)
	})
	return r, err
}

// Like counts the like of `userID` on a post, once per user.
func (svc *Service) Like(ctx context.Context, postID, userID string) (Post, error) {
	var p Post
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		var err error
		if p, err = get(tx, postID); err != nil {
			return err
		}
		if p.likedBy(userID) {
			return nil
		}
		p.LikedBy = append(p.LikedBy, userID)
		p.Likes++
		return save(tx, p)
	})
	return p, err
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.db.Update(ctx, func(tx core.DBTx) error {
		if _, err := get(tx, id); err != nil {
			return err
		}
		return tx.Delete(Collection, id)
	})
}
