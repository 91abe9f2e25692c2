// Package cas validates login tickets against the campus Central
// Authentication Service.  The protocol is a single HTTPS GET to the
// serviceValidate endpoint; the server answers with a small XML
// document in the http://www.yale.edu/tp/cas namespace naming the
// authenticated netid or a failure code.
package cas

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrTicketInvalid is returned when the CAS server rejects the ticket.
var ErrTicketInvalid = errors.New("cas: ticket rejected")

// Client talks to one CAS server.  BaseURL must end in a slash, e.g.
// https://fed.princeton.edu/cas/.
type Client struct {
	BaseURL string
	http    *http.Client
}

// New returns a Client for the CAS server at baseURL with a bounded
// request timeout, matching the timeout applied to every other
// outbound call in the service.
func New(baseURL string) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		BaseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// serviceResponse mirrors the CAS 2.0 serviceValidate XML body.
type serviceResponse struct {
	XMLName xml.Name `xml:"serviceResponse"`
	Success *struct {
		User string `xml:"user"`
	} `xml:"authenticationSuccess"`
	Failure *struct {
		Code    string `xml:"code,attr"`
		Message string `xml:",chardata"`
	} `xml:"authenticationFailure"`
}

// ValidateTicket checks a login ticket with the CAS server and returns
// the authenticated netid.  A rejected ticket yields ErrTicketInvalid;
// transport and decoding problems surface as ordinary errors so the
// handler can report the CAS dependency as unavailable.
func (c *Client) ValidateTicket(ctx context.Context, ticket, service string) (string, error) {
	validateURL := fmt.Sprintf("%sserviceValidate?service=%s&ticket=%s",
		c.BaseURL, url.QueryEscape(service), url.QueryEscape(ticket))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, validateURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cas: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}

	var sr serviceResponse
	if err := xml.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("cas: decode response: %w", err)
	}
	if sr.Success != nil && sr.Success.User != "" {
		return strings.ToLower(strings.TrimSpace(sr.Success.User)), nil
	}
	if sr.Failure != nil {
		return "", fmt.Errorf("%w: %s", ErrTicketInvalid, strings.TrimSpace(sr.Failure.Code))
	}
	return "", ErrTicketInvalid
}

// LoginURL builds the CAS login redirect for a service URL.  The
// frontend sends the browser here; CAS bounces back with ?ticket=.
func (c *Client) LoginURL(service string) string {
	return fmt.Sprintf("%slogin?service=%s", c.BaseURL, url.QueryEscape(service))
}

// LogoutURL builds the CAS logout redirect.
func (c *Client) LogoutURL() string {
	return c.BaseURL + "logout"
}

// StripTicket removes the ticket query parameter CAS appended to a
// service URL so the URL used for validation matches the one the
// ticket was issued for.
func StripTicket(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Del("ticket")
	u.RawQuery = q.Encode()
	return u.String()
}
