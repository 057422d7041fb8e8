package forum

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/quransn/academy/core"
)

const Collection = "forum"

const (
	CategoryGeneral = "General"
	CategoryTajwid  = "Tajwid"
	CategoryFiqh    = "Fiqh"
)

var Categories = []string{CategoryGeneral, CategoryTajwid, CategoryFiqh}

type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Likes     int       `json:"likes"`
	LikedBy   []string  `json:"-"`
	Replies   []Reply   `json:"replies"`
	CreatedAt time.Time `json:"created_at"`
}

// record keeps who liked a post, which the API does not show.
type record struct {
	Post
	LikedBy []string `json:"liked_by"`
}

func (p Post) likedBy(userID string) bool {
	for _, id := range p.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

type Reply struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type NewPost struct {
	Title    string `json:"title" validate:"required,max=200"`
	Content  string `json:"content" validate:"required,max=10000"`
	Category string `json:"category" validate:"omitempty,oneof=General Tajwid Fiqh"`
}

func (np *NewPost) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Content = core.CleanString(np.Content)
	if np.Category == "" {
		np.Category = CategoryGeneral
	}
	return validate.Struct(np)
}

type NewReply struct {
	Text string `json:"text" validate:"required,max=5000"`
}

func (nr *NewReply) Validate(validate *validator.Validate) error {
	nr.Text = core.CleanString(nr.Text)
	return validate.Struct(nr)
}

type QueryFilter struct {
	Category string `query:"category"`
}
