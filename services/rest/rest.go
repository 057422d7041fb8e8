// Package rest builds the HTTP clients of the external APIs the platform talks to.
package rest

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

// New returns a JSON client for baseURL. A nil httpClient uses http.DefaultClient's transport.
func New(baseURL string, timeout time.Duration, httpClient *http.Client) *resty.Client {
	var c *resty.Client
	if httpClient != nil {
		c = resty.NewWithClient(httpClient)
	} else {
		c = resty.New()
	}
	return c.
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Check turns a failed call or an error response into an error.
func Check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		body := resp.String()
		if len(body) > 200 {
			body = body[:200]
		}
		return &StatusError{Status: resp.StatusCode(), Body: body}
	}
	return nil
}
