package client

import (
	"net/url"
)

type ChatClient struct {
	httpClient *HttpClient
}

func NewChatClient(baseUrl string) *ChatClient {
	return &ChatClient{
		httpClient: NewHttpClient(baseUrl),
	}
}

func (c *ChatClient) History(roomID string) (*Response, error) {
	return c.httpClient.GET("/api/v1/chats/history?room_id=" + url.QueryEscape(roomID))
}

func (c *ChatClient) Summaries(userID string) (*Response, error) {
	return c.httpClient.GET("/api/v1/chats?user_id=" + url.QueryEscape(userID))
}

func (c *ChatClient) MarkRead(roomID, userID string) (*Response, error) {
	return c.httpClient.POST("/api/v1/chats/read", map[string]string{
		"room_id": roomID,
		"user_id": userID,
	})
}
