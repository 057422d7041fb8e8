package content

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/quransn/academy/core"
)

const (
	Collection         = "contents"
	ProgressCollection = "progress"
)

type Type string

const (
	TypeVideo    Type = "VIDEO"
	TypeAudio    Type = "AUDIO"
	TypeDocument Type = "DOCUMENT"
)

var Types = []Type{TypeVideo, TypeAudio, TypeDocument}

type Content struct {
	ID          string    `json:"id"`
	ClassID     string    `json:"class_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        Type      `json:"type"`
	MimeType    string    `json:"mime_type"`
	DataURL     string    `json:"data_url"`
	FileName    string    `json:"file_name"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	Comments    []Comment `json:"comments"`
}

type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Text      string    `json:"text,omitempty"`
	AudioURL  string    `json:"audio_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ViewProgress records the first view of a content by a user.
type ViewProgress struct {
	UserID    string    `json:"user_id"`
	ContentID string    `json:"content_id"`
	ClassID   string    `json:"class_id"`
	ViewedAt  time.Time `json:"viewed_at"`
}

func progressKey(userID, contentID string) string {
	return userID + ":" + contentID
}

type NewContent struct {
	ClassID     string `json:"class_id" validate:"required"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Type        Type   `json:"type" validate:"required,oneof=VIDEO AUDIO DOCUMENT"`
	DataURL     string `json:"data_url" validate:"required"`
	FileName    string `json:"file_name" validate:"max=255"`
}

func (nc *NewContent) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.FileName = core.CleanString(nc.FileName)
	return validate.Struct(nc)
}

// NewComment needs a text, a voice recording, or both.
type NewComment struct {
	Text         string `json:"text" validate:"required_without=AudioDataURL,max=2000"`
	AudioDataURL string `json:"audio_data_url" validate:"required_without=Text"`
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Text = core.CleanString(nc.Text)
	return validate.Struct(nc)
}

type QueryFilter struct {
	ClassID string `query:"class_id"`
	Type    Type   `query:"type"`
	Search  string `query:"search"`
}

func (qf QueryFilter) match(c Content) bool {
	if qf.ClassID != "" && c.ClassID != qf.ClassID {
		return false
	}
	if qf.Type != "" && c.Type != qf.Type {
		return false
	}
	if s := core.CleanString(qf.Search); s != "" && !core.ContainsFold(c.Title, s) && !core.ContainsFold(c.Description, s) {
		return false
	}
	return true
}
