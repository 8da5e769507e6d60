package client

import (
	"net/url"
)

const bookingsPath = "/api/v1/bookings"

type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(baseUrl string) *BookingClient {
	return &BookingClient{httpClient: NewHttpClient(baseUrl)}
}

// Create submits a booking request. The body is sent as-is so tests can post
// deliberately malformed payloads.
func (c *BookingClient) Create(body any) (*Response, error) {
	return c.httpClient.POST(bookingsPath, body)
}

// CreateIdempotent retries safely: the server replays the first answer for a
// repeated key.
func (c *BookingClient) CreateIdempotent(body any, key string) (*Response, error) {
	return c.httpClient.POSTWithHeaders(bookingsPath, body, map[string]string{
		headerIdempotencyKey: key,
	})
}

func (c *BookingClient) Latest(renterID string) (*Response, error) {
	return c.httpClient.GET(bookingsPath + "/latest?" + renterQuery(renterID))
}

func (c *BookingClient) History(renterID string) (*Response, error) {
	return c.httpClient.GET(bookingsPath + "?" + renterQuery(renterID))
}

func (c *BookingClient) GetByID(id string) (*Response, error) {
	return c.httpClient.GET(bookingsPath + "/id/" + url.PathEscape(id))
}

func renterQuery(renterID string) string {
	return url.Values{"renter_id": {renterID}}.Encode()
}
