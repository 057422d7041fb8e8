// Package calendar opens Google Meet rooms by inserting Google Calendar events.
package calendar

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/quransn/academy/core"
	"github.com/quransn/academy/core/live"
	"github.com/quransn/academy/services/rest"
)

const (
	Scope = "https://www.googleapis.com/auth/calendar.events"

	summaryPrefix = "[Quran SN] "
)

var errNoLink = errors.New("event created without a meeting link")

type (
	eventTime struct {
		DateTime string `json:"dateTime"`
	}
	event struct {
		Summary        string    `json:"summary"`
		Description    string    `json:"description,omitempty"`
		Start          eventTime `json:"start"`
		End            eventTime `json:"end"`
		ConferenceData struct {
			CreateRequest struct {
				RequestID             string `json:"requestId"`
				ConferenceSolutionKey struct {
					Type string `json:"type"`
				} `json:"conferenceSolutionKey"`
			} `json:"createRequest"`
		} `json:"conferenceData"`
	}
	eventResponse struct {
		HTMLLink       string `json:"htmlLink"`
		ConferenceData struct {
			EntryPoints []struct {
				EntryPointType string `json:"entryPointType"`
				URI            string `json:"uri"`
			} `json:"entryPoints"`
		} `json:"conferenceData"`
	}
)

// Service creates calendar events on behalf of the platform's Google account.
type Service struct {
	http       *resty.Client
	calendarID string
}

var _ live.MeetingProvider = (*Service)(nil)

// Configured reports whether conf holds the credentials the calendar service needs.
func Configured(conf *core.Config) bool {
	c := conf.Calendar
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// NewService returns a service authenticated with the configured refresh token.
func NewService(conf *core.Config) *Service {
	oauthConf := &oauth2.Config{
		ClientID:     conf.Calendar.ClientID,
		ClientSecret: conf.Calendar.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: conf.Calendar.TokenURL},
		Scopes:       []string{Scope},
	}
	ts := oauthConf.TokenSource(context.Background(), &oauth2.Token{RefreshToken: conf.Calendar.RefreshToken})
	return newService(conf, oauth2.NewClient(context.Background(), ts))
}

func newService(conf *core.Config, httpClient *http.Client) *Service {
	return &Service{
		http:       rest.New(conf.Calendar.BaseURL, conf.Calendar.Timeout, httpClient),
		calendarID: conf.Calendar.CalendarID,
	}
}

// CreateMeeting inserts an event with a Meet conference and returns the room link,
// or the event page when Google did not attach a conference.
func (svc *Service) CreateMeeting(ctx context.Context, m live.Meeting) (string, error) {
	ev := event{
		Summary:     summaryPrefix + m.Title,
		Description: m.Description,
		Start:       eventTime{DateTime: m.Start.Format(time.RFC3339)},
		End:         eventTime{DateTime: m.Start.Add(m.Duration).Format(time.RFC3339)},
	}
	ev.ConferenceData.CreateRequest.RequestID = uuid.NewString()
	ev.ConferenceData.CreateRequest.ConferenceSolutionKey.Type = "hangoutsMeet"

	var res eventResponse
	err := rest.Check(svc.http.R().
		SetContext(ctx).
		SetPathParam("calendarID", svc.calendarID).
		SetQueryParam("conferenceDataVersion", "1").
		SetBody(ev).
		SetResult(&res).
		Post("/calendars/{calendarID}/events"))
	if err != nil {
		return "", errors.Wrap(err, "inserting calendar event")
	}

	for _, ep := range res.ConferenceData.EntryPoints {
		if ep.EntryPointType == "video" && ep.URI != "" {
			return ep.URI, nil
		}
	}
	if res.HTMLLink != "" {
		return res.HTMLLink, nil
	}
	return "", errNoLink
}
