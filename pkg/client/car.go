package client

import (
	"net/url"
)

type CarClient struct {
	httpClient *HttpClient
}

func NewCarClient(baseUrl string) *CarClient {
	return &CarClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

func (c *CarClient) List(category string) (*Response, error) {
	path := "/api/v1/cars"
	if category != "" {
		path += "?category=" + url.QueryEscape(category)
	}
	return c.httpClient.GET(path)
}

func (c *CarClient) GetByID(id string) (*Response, error) {
	return c.httpClient.GET("/api/v1/cars/id/" + url.PathEscape(id))
}

func (c *CarClient) Release(id string) (*Response, error) {
	return c.httpClient.POST("/api/v1/cars/id/"+url.PathEscape(id)+"/release", nil)
}
