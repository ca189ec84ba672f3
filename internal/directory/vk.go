package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ekoval/pairbot/internal/domain"
)

// Directory error codes worth distinguishing.
const (
	codeAuthFailed    = 5
	codeGroupAuth     = 27
	codeAppAuth       = 28
	codeInvalidUserID = 113
)

const profileAlbum = "profile"

// HTTPClient talks to the VK-style method API.
type HTTPClient struct {
	baseURL string
	version string
	client  *http.Client
}

// NewHTTPClient creates a directory client for the given API host.
func NewHTTPClient(baseURL, version string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// OpenSession binds a token to the client. The token is not validated here.
func (c *HTTPClient) OpenSession(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token: %w", ErrAuth)
	}
	return &httpSession{client: c, token: token}, nil
}

type apiError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

type envelope struct {
	Response json.RawMessage `json:"response"`
	Error    *apiError       `json:"error"`
}

func (c *HTTPClient) call(ctx context.Context, token, method string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", token)
	params.Set("v", c.version)

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/method/"+method,
		strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrAPI, method, resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Error != nil {
		switch env.Error.Code {
		case codeAuthFailed, codeGroupAuth, codeAppAuth:
			return fmt.Errorf("%w: %s (code %d)", ErrAuth, env.Error.Message, env.Error.Code)
		case codeInvalidUserID:
			return fmt.Errorf("%w: %s", ErrNotFound, env.Error.Message)
		default:
			return fmt.Errorf("%w: %s (code %d)", ErrAPI, env.Error.Message, env.Error.Code)
		}
	}
	if out != nil {
		if err := json.Unmarshal(env.Response, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", method, err)
		}
	}
	return nil
}

type httpSession struct {
	client *HTTPClient
	token  string
}

func (s *httpSession) LookupProfile(ctx context.Context, ident string, fields []string) (domain.Profile, error) {
	params := url.Values{"user_ids": {ident}}
	if len(fields) > 0 {
		params.Set("fields", strings.Join(fields, ","))
	}
	var profiles []domain.Profile
	if err := s.client.call(ctx, s.token, "users.get", params, &profiles); err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, ident)
	}
	return profiles[0], nil
}

type searchResponse struct {
	Count int      `json:"count"`
	Items []Person `json:"items"`
}

func (s *httpSession) SearchByText(ctx context.Context, query string) ([]Person, error) {
	params := url.Values{
		"q":     {query},
		"count": {"1"},
	}
	var result searchResponse
	if err := s.client.call(ctx, s.token, "users.search", params, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

func (s *httpSession) SearchByFilter(ctx context.Context, filter SearchFilter) ([]Person, error) {
	params := url.Values{
		"q":        {""},
		"hometown": {filter.Hometown},
		"age_from": {strconv.Itoa(filter.AgeFrom)},
		"age_to":   {strconv.Itoa(filter.AgeTo)},
		"sex":      {strconv.Itoa(filter.Sex)},
		"status":   {strconv.Itoa(filter.Status)},
	}
	var result searchResponse
	if err := s.client.call(ctx, s.token, "users.search", params, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

type photosResponse struct {
	Count int `json:"count"`
	Items []struct {
		ID      int64 `json:"id"`
		OwnerID int64 `json:"owner_id"`
		Likes   struct {
			Count int `json:"count"`
		} `json:"likes"`
		Comments struct {
			Count int `json:"count"`
		} `json:"comments"`
		Sizes []PhotoSize `json:"sizes"`
	} `json:"items"`
}

func (s *httpSession) ListPhotos(ctx context.Context, ownerID int64) ([]Photo, error) {
	params := url.Values{
		"owner_id": {strconv.FormatInt(ownerID, 10)},
		"album_id": {profileAlbum},
		"extended": {"1"},
		"rev":      {"1"},
	}
	var result photosResponse
	if err := s.client.call(ctx, s.token, "photos.get", params, &result); err != nil {
		return nil, err
	}
	photos := make([]Photo, 0, len(result.Items))
	for _, item := range result.Items {
		photos = append(photos, Photo{
			ID:       item.ID,
			OwnerID:  item.OwnerID,
			Likes:    item.Likes.Count,
			Comments: item.Comments.Count,
			Sizes:    item.Sizes,
		})
	}
	return photos, nil
}

func (s *httpSession) SendMessage(ctx context.Context, recipientID int64, text string, attachments []string) error {
	params := url.Values{
		"user_id":   {strconv.FormatInt(recipientID, 10)},
		"message":   {text},
		"random_id": {strconv.Itoa(rand.Intn(1e7))},
	}
	if len(attachments) > 0 {
		params.Set("attachment", strings.Join(attachments, ","))
	}
	return s.client.call(ctx, s.token, "messages.send", params, nil)
}
