package class

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/quransn/academy/core"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("class not found")
	ErrHasStudents = core.NewConflictError("the class still has students")
)

// Get loads the class `id` within tx.
func Get(tx core.DBTx, id string) (Class, error) {
	cls, err := core.GetRecord[Class](tx, Collection, id)
	if err == core.ErrRecordNotFound {
		return Class{}, ErrNotFound
	}
	return cls, err
}

// List loads the classes accepted by keep (nil keeps all), in creation order.
func List(tx core.DBTx, keep func(Class) bool) ([]Class, error) {
	return core.ListRecords(tx, Collection, keep)
}

// Save stores cls within tx.
func Save(tx core.DBTx, cls Class) error {
	return core.PutRecord(tx, Collection, cls.ID, cls)
}

type Service struct {
	db       core.DB
	validate *validator.Validate
}

func NewService(db core.DB, validate *validator.Validate) *Service {
	return &Service{db: db, validate: validate}
}

func (svc *Service) Create(ctx context.Context, nc NewClass) (Class, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Class{}, err
	}
	now := core.NowFunc()
	cls := Class{
		ID:          core.NewID(),
		Name:        nc.Name,
		Description: nc.Description,
		Level:       nc.Level,
		Gender:      nc.Gender,
		Capacity:    nc.Capacity,
		Schedule:    nc.Schedule,
		StudentIDs:  []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		return Save(tx, cls)
	})
	return cls, err
}

// Update replaces the editable fields of the class `id`. The roster is kept.
func (svc *Service) Update(ctx context.Context, id string, nc NewClass) (Class, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Class{}, err
	}
	var cls Class
	err := svc.db.Update(ctx, func(tx core.DBTx) error {
		var err error
		if cls, err = Get(tx, id); err != nil {
			return err
		}
		cls.Name = nc.Name
		cls.Description = nc.Description
		cls.Level = nc.Level
		cls.Gender = nc.Gender
		cls.Capacity = nc.Capacity
		cls.Schedule = nc.Schedule
		cls.UpdatedAt = core.NowFunc()
		return Save(tx, cls)
	})
	return cls, err
}

// Delete removes an empty class.
func (svc *Service) Delete(ctx context.Context, id string) error {
	return svc.db.Update(ctx, func(tx core.DBTx) error {
		cls, err := Get(tx, id)
		if err != nil {
			return err
		}
		if len(cls.StudentIDs) > 0 {
			return ErrHasStudents
		}
		return tx.Delete(Collection, id)
	})
}

func (svc *Service) GetByID(ctx context.Context, id string) (Class, error) {
	var cls Class
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		cls, err = Get(tx, id)
		return err
	})
	return cls, err
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Class, error) {
	var classes []Class
	err := svc.db.View(ctx, func(tx core.DBTx) error {
		var err error
		classes, err = List(tx, filter.match)
		return err
	})
	return classes, err
}
