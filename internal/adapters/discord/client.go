package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"discord-archive-bot/internal/domain"
	"discord-archive-bot/internal/infra/metrics"
)

const defaultBaseURL = "https://discord.com/api/v10"

const reactionUsersPage = 100

// Client выполняет REST-запросы к платформе от имени бота.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

var _ domain.HistorySource = (*Client)(nil)

// NewClient создаёт REST-клиента.
func NewClient(token, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		token:   token,
	}
}

func (c *Client) get(ctx context.Context, operation, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.ObserveNetworkRequest("discord", operation, "rest", start, err)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// FetchHistory возвращает страницу истории канала по одну сторону от boundaryID.
// Страница нормализуется так, чтобы последний элемент был границей следующего
// запроса: для before — старейшее сообщение, для after — новейшее.
func (c *Client) FetchHistory(ctx context.Context, channelID, boundaryID int64, dir domain.HistoryDirection, limit int) ([]domain.RemoteMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if boundaryID != 0 {
		params.Set(string(dir), strconv.FormatInt(boundaryID, 10))
	}
	path := fmt.Sprintf("/channels/%d/messages?%s", channelID, params.Encode())

	var page []wireMessage
	if err := c.get(ctx, "messages_history", path, &page); err != nil {
		return nil, fmt.Errorf("история канала %d: %w", channelID, err)
	}

	messages := make([]domain.RemoteMessage, 0, len(page))
	for _, m := range page {
		messages = append(messages, m.toDomain())
	}
	// REST отдаёт страницу от новых к старым; для обхода вперёд разворачиваем
	if dir == domain.HistoryAfter {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	return messages, nil
}

// FetchMessage возвращает одно сообщение по id.
func (c *Client) FetchMessage(ctx context.Context, channelID, messageID int64) (domain.RemoteMessage, error) {
	var msg wireMessage
	path := fmt.Sprintf("/channels/%d/messages/%d", channelID, messageID)
	if err := c.get(ctx, "message_get", path, &msg); err != nil {
		return domain.RemoteMessage{}, fmt.Errorf("сообщение %d: %w", messageID, err)
	}
	return msg.toDomain(), nil
}

// FetchReactionUsers перечисляет всех пользователей, поставивших реакцию.
func (c *Client) FetchReactionUsers(ctx context.Context, channelID, messageID int64, emoji domain.Emoji) ([]int64, error) {
	var userIDs []int64
	after := int64(0)
	for {
		params := url.Values{}
		params.Set("limit", strconv.Itoa(reactionUsersPage))
		if after != 0 {
			params.Set("after", strconv.FormatInt(after, 10))
		}
		path := fmt.Sprintf("/channels/%d/messages/%d/reactions/%s?%s",
			channelID, messageID, emojiPath(emoji), params.Encode())

		var page []wireUser
		if err := c.get(ctx, "reaction_users", path, &page); err != nil {
			return nil, fmt.Errorf("участники реакции %q: %w", emoji.Name, err)
		}
		for _, u := range page {
			if id := parseSnowflake(u.ID); id != 0 {
				userIDs = append(userIDs, id)
				after = id
			}
		}
		if len(page) < reactionUsersPage {
			return userIDs, nil
		}
	}
}

// emojiPath кодирует эмодзи для URL: кастомные — name:id, юникодные — сам символ.
func emojiPath(e domain.Emoji) string {
	if e.Custom() {
		return url.PathEscape(fmt.Sprintf("%s:%d", e.Name, e.ID))
	}
	return url.PathEscape(e.Name)
}
