// Package library holds the reading resources offered to every student.
package library

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/quransn/academy/core"
)

const Collection = "resources"

type Category string

const (
	CategoryTafsir  Category = "TAFSIR"
	CategoryTajwid  Category = "TAJWID"
	CategoryDua     Category = "DUA"
	CategoryHistory Category = "HISTORY"
)

var Categories = []Category{CategoryTafsir, CategoryTajwid, CategoryDua, CategoryHistory}

var ErrNotFound = core.NewNotFoundError("resource not found")

type Resource struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  Category  `json:"category"`
	Content   string    `json:"content"`
	MediaURL  string    `json:"media_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type NewResource struct {
	Title    string   `json:"title" validate:"required,max=200"`
	Category Category `json:"category" validate:"required,oneof=TAFSIR TAJWID DUA HISTORY"`
	Content  string   `json:"content" validate:"required"`
	MediaURL string   `json:"media_url" validate:"omitempty,url"`
}

func (nr *NewResource) Validate(validate *validator.Validate) error {
	nr.Title = core.CleanString(nr.Title)
	nr.Content = core.CleanString(nr.Content)
	nr.MediaURL = core.CleanString(nr.MediaURL)
	return validate.Struct(nr)
}

var seed = []Resource{
	{ID: "r1", Title: "Sourate Al-Fatiha Tafsir", Category: CategoryTafsir, Content: "Explication détaillée des 7 versets de la mère du livre..."},
	{ID: "r2", Title: "Règles du Nun Sakina", Category: CategoryTajwid, Content: "Les 4 règles principales : Izhar, Idgham, Iqlab, Ikhfa..."},
	{ID: "r3", Title: "Doua de protection", Category: CategoryDua, Content: "Bismillahi alladhi la yadurru ma'asmihi..."},
	{ID: "r4", Title: "Histoire de Moussa (AS)", Category: CategoryHistory, Content: "Le prophète qui a parlé à Allah..."},
}

// Seed stores the default resources when the library is empty and returns how many were added.
func Seed(tx core.DBTx) (int, error) {
	n, err := core.CountRecords[Resource](tx, Collection, nil)
	if err != nil || n > 0 {
		return 0, err
	}
	now := core.NowFunc()
	for i, r := range seed {
		r.CreatedAt = now.Add(time.Duration(i) * time.Millisecond)
		if err = core.PutRecord(tx, Collection, r.ID, r); err != nil {
			return 0, err
		}
	}
	return len(seed), nil
}

type Service struct {
	db       core.DB
	validate *validator.Validate
}

func NewService(db core.DB, validate *validator.Validate) *Service {
	return &Service{db: db, validate: validate}
}

// List returns the resources of `category` (all when empty) in the order they were added.
func (svc *Service) List(ctx context.Context, category Category) ([]Resource, error) {
	var resources []Resource
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		resources, err = core.ListRecords(tx, Collection, func(r Resource) bool {
			return category == "" || r.Category == category
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(resources, func(i, j int) bool { return resources[i].CreatedAt.Before(resources[j].CreatedAt) })
	return resources, nil
}

func (svc *Service) Create(ctx context.Context, nr NewResource) (Resource, error) {
	if err := nr.Validate(svc.validate); err != nil {
		return Resource{}, err
	}
	r := Resource{
		ID:        core.NewID(),
		Title:     nr.Title,
		Category:  nr.Category,
		Content:   nr.Content,
		MediaURL:  nr.MediaURL,
		CreatedAt: core.NowFunc(),
	}
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		return core.PutRecord(tx, Collection, r.ID, r)
	})
	if err != nil {
		return Resource{}, err
	}
	return r, nil
}

func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.db.Update(ctx, func(tx core.DBTx) error {
		ok, err := core.RecordExists(tx, Collection, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotFound
		}
		return tx.Delete(Collection, id)
	})
}
