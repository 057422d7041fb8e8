// Package quran reads surahs from the alquran.cloud API.
package quran

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/services/rest"
)

const SurahCount = 114

// ErrUnavailable is returned whenever the Quran API cannot serve a surah.
var ErrUnavailable = errors.New("the Quran text is unavailable, please try again later")

type Ayah struct {
	Number        int    `json:"number"`
	NumberInSurah int    `json:"numberInSurah"`
	Text          string `json:"text"`
	Juz           int    `json:"juz"`
	Page          int    `json:"page"`
}

type Surah struct {
	Number                 int    `json:"number"`
	Name                   string `json:"name"`
	EnglishName            string `json:"englishName"`
	EnglishNameTranslation string `json:"englishNameTranslation"`
	RevelationType         string `json:"revelationType"`
	NumberOfAyahs          int    `json:"numberOfAyahs"`
	Ayahs                  []Ayah `json:"ayahs"`
	Edition                string `json:"edition"`
}

type surahResponse struct {
	Code int `json:"code"`
	Data struct {
		Number                 int    `json:"number"`
		Name                   string `json:"name"`
		EnglishName            string `json:"englishName"`
		EnglishNameTranslation string `json:"englishNameTranslation"`
		RevelationType         string `json:"revelationType"`
		NumberOfAyahs          int    `json:"numberOfAyahs"`
		Ayahs                  []Ayah `json:"ayahs"`
		Edition                struct {
			Identifier string `json:"identifier"`
		} `json:"edition"`
	} `json:"data"`
}

type Client struct {
	http     *resty.Client
	editions []string
	logger   core.Logger
}

func NewClient(conf *core.Config, logger core.Logger) *Client {
	return &Client{
		http:     rest.New(conf.Quran.BaseURL, conf.Quran.Timeout, nil),
		editions: conf.Quran.Editions,
		logger:   logger,
	}
}

// Editions lists the editions that can be requested; the first one is the default.
func (c *Client) Editions() []string {
	return c.editions
}

func (c *Client) checkEdition(edition string) (string, error) {
	if edition == "" && len(c.editions) > 0 {
		return c.editions[0], nil
	}
	for _, e := range c.editions {
		if e == edition {
			return e, nil
		}
	}
	err := errors.New("unknown edition")
	return "", core.NewValidationError(err, core.FieldError{Field: "edition", Error: err.Error()})
}

// Surah returns the surah `number` (1-114) in `edition` (the default edition when empty).
func (c *Client) Surah(ctx context.Context, number int, edition string) (Surah, error) {
	if number < 1 || number > SurahCount {
		err := errors.New("surah number must be between 1 and 114")
		return Surah{}, core.NewValidationError(err, core.FieldError{Field: "number", Error: err.Error()})
	}
	edition, err := c.checkEdition(edition)
	if err != nil {
		return Surah{}, err
	}

	var res surahResponse
	err = rest.Check(c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{"number": strconv.Itoa(number), "edition": edition}).
		SetResult(&res).
		Get("/surah/{number}/{edition}"))
	if err == nil && len(res.Data.Ayahs) == 0 {
		err = fmt.Errorf("empty surah (code %d)", res.Code)
	}
	if err != nil {
		c.logger.Warn(fmt.Sprintf("fetching surah %d (%s): %v", number, edition, err))
		return Surah{}, ErrUnavailable
	}
	d := res.Data
	return Surah{
		Number:                 d.Number,
		Name:                   d.Name,
		EnglishName:            d.EnglishName,
		EnglishNameTranslation: d.EnglishNameTranslation,
		RevelationType:         d.RevelationType,
		NumberOfAyahs:          d.NumberOfAyahs,
		Ayahs:                  d.Ayahs,
		Edition:                d.Edition.Identifier,
	}, nil
}
