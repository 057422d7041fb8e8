// Package prayer fetches the daily prayer times of the configured city from aladhan.com.
package prayer

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/services/rest"
)

const dateFormat = "02-01-2006"

// Timings maps a prayer name (Fajr, Dhuhr, ...) to its time, "HH:MM".
type Timings map[string]string

type Schedule struct {
	Date     string  `json:"date"`
	City     string  `json:"city"`
	Timings  Timings `json:"timings"`
	Fallback bool    `json:"fallback"` // default timings served, the API was unreachable
}

type timingsResponse struct {
	Code int `json:"code"`
	Data struct {
		Timings Timings `json:"timings"`
	} `json:"data"`
}

type Client struct {
	http     *resty.Client
	city     string
	country  string
	method   int
	defaults Timings
	logger   core.Logger
}

func NewClient(conf *core.Config, logger core.Logger) *Client {
	return &Client{
		http:     rest.New(conf.Prayer.BaseURL, conf.Prayer.Timeout, nil),
		city:     conf.Prayer.City,
		country:  conf.Prayer.Country,
		method:   conf.Prayer.Method,
		defaults: conf.Prayer.Defaults,
		logger:   logger,
	}
}

// Timings returns the prayer times of `date`. Any failure serves the configured default timings.
func (c *Client) Timings(ctx context.Context, date time.Time) Schedule {
	sched := Schedule{Date: date.Format(dateFormat), City: c.city}

	var res timingsResponse
	err := rest.Check(c.http.R().
		SetContext(ctx).
		SetPathParam("date", sched.Date).
		SetQueryParams(map[string]string{
			"city":    c.city,
			"country": c.country,
			"method":  strconv.Itoa(c.method),
		}).
		SetResult(&res).
		Get("/timingsByCity/{date}"))
	if err == nil && len(res.Data.Timings) == 0 {
		err = fmt.Errorf("no timings in response (code %d)", res.Code)
	}
	if err != nil {
		c.logger.Warn(fmt.Sprintf("fetching prayer times: %v", err))
		sched.Timings = make(Timings, len(c.defaults))
		for k, v := range c.defaults {
			sched.Timings[k] = v
		}
		sched.Fallback = true
		return sched
	}
	sched.Timings = res.Data.Timings
	return sched
}
