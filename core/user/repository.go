package user

import (
	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/notification"
)

// Get loads the user `id` within tx.
func Get(tx core.DBTx, id string) (User, error) {
	rec, err := core.GetRecord[record](tx, Collection, id)
	if err != nil {
		if err == core.ErrRecordNotFound {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return rec.toUser(), nil
}

// List loads the users accepted by keep (nil keeps all), in creation order.
func List(tx core.DBTx, keep func(User) bool) ([]User, error) {
	recs, err := core.ListRecords[record](tx, Collection, nil)
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(recs))
	for _, rec := range recs {
		if usr := rec.toUser(); keep == nil || keep(usr) {
			users = append(users, usr)
		}
	}
	return users, nil
}

// Recipient is the notification address of usr.
func Recipient(usr User) notification.Recipient {
	return notification.Recipient{UserID: usr.ID, Name: usr.FirstName, Email: usr.Email}
}

func save(tx core.DBTx, usr User) error {
	return core.PutRecord(tx, Collection, usr.ID, toRecord(usr))
}

func findByEmail(tx core.DBTx, email string) (User, error) {
	users, err := List(tx, func(u User) bool { return u.Email == email })
	if err != nil {
		return User{}, err
	}
	if len(users) == 0 {
		return User{}, ErrNotFound
	}
	return users[0], nil
}

func findByReferralCode(tx core.DBTx, code string) (User, error) {
	users, err := List(tx, func(u User) bool { return u.ReferralCode == code })
	if err != nil {
		return User{}, err
	}
	if len(users) == 0 {
		return User{}, ErrNotFound
	}
	return users[0], nil
}

func findByGoogleSub(tx core.DBTx, sub string) (User, error) {
	if sub == "" {
		return User{}, ErrNotFound
	}
	users, err := List(tx, func(u User) bool { return u.GoogleSub == sub })
	if err != nil {
		return User{}, err
	}
	if len(users) == 0 {
		return User{}, ErrNotFound
	}
	return users[0], nil
}

// Put stores usr as is, bypassing registration rules. Used to load fixtures.
func Put(tx core.DBTx, usr User) error {
	return save(tx, usr)
}
