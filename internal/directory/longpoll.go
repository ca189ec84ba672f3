package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Long-poll failure codes returned by the events endpoint.
const (
	PollTSOutdated = 1 // resume from the ts in the response
	PollKeyExpired = 2
	PollInfoLost   = 3 // both require a fresh server handle
)

// LongPollServer is the events endpoint handed out by the directory.
type LongPollServer struct {
	Key    string `json:"key"`
	Server string `json:"server"`
	TS     string `json:"ts"`
}

// Event is one inbound long-poll update.
type Event struct {
	Type    string `json:"type"`
	Message struct {
		FromID int64  `json:"from_id"`
		Text   string `json:"text"`
	}
}

// EventMessageNew is the inbound chat message event type.
const EventMessageNew = "message_new"

// PollResult carries one long-poll batch.
type PollResult struct {
	TS     string  `json:"ts"`
	Failed int     `json:"failed"`
	Events []Event `json:"-"`
}

// LongPollServer fetches a fresh events endpoint for the group.
func (c *HTTPClient) LongPollServer(ctx context.Context, token string, groupID int64) (*LongPollServer, error) {
	params := url.Values{"group_id": {strconv.FormatInt(groupID, 10)}}
	var srv LongPollServer
	if err := c.call(ctx, token, "groups.getLongPollServer", params, &srv); err != nil {
		return nil, err
	}
	return &srv, nil
}

type pollResponse struct {
	TS      string `json:"ts"`
	Failed  int    `json:"failed"`
	Updates []struct {
		Type   string          `json:"type"`
		Object json.RawMessage `json:"object"`
	} `json:"updates"`
}

// Poll waits up to wait seconds for events on the given server handle.
// A non-zero Failed in the result means the handle or ts needs refreshing.
func (c *HTTPClient) Poll(ctx context.Context, srv *LongPollServer, ts string, wait int) (*PollResult, error) {
	params := url.Values{
		"act":  {"a_check"},
		"key":  {srv.Key},
		"ts":   {ts},
		"wait": {strconv.Itoa(wait)},
	}
	req, err := http.NewRequestWithContext(ctx, "GET", srv.Server+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create poll request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: poll returned status %d", ErrAPI, resp.StatusCode)
	}

	var raw pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode poll response: %w", err)
	}

	result := &PollResult{TS: raw.TS, Failed: raw.Failed}
	for _, update := range raw.Updates {
		if update.Type != EventMessageNew {
			continue
		}
		var obj struct {
			Message struct {
				FromID int64  `json:"from_id"`
				Text   string `json:"text"`
			} `json:"message"`
		}
		if err := json.Unmarshal(update.Object, &obj); err != nil {
			continue
		}
		event := Event{Type: update.Type}
		event.Message.FromID = obj.Message.FromID
		event.Message.Text = obj.Message.Text
		result.Events = append(result.Events, event)
	}
	return result, nil
}
