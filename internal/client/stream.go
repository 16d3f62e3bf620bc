package client

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// StreamEvents reads GET /v1/events/stream and calls fn for each complete
// event. Returning an error from fn stops the stream with that error. A
// cancelled ctx ends the stream without error.
func (c *HTTPClient) StreamEvents(ctx context.Context, req *StreamRequest, fn func(*StreamEvent) error) error {
	path := "/v1/events/stream"
	if req != nil && len(req.Topics) > 0 {
		path += "?topics=" + url.QueryEscape(strings.Join(req.Topics, ","))
	}
	httpReq, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Cache-Control", "no-cache")
	if req != nil && req.LastEventID != "" {
		httpReq.Header.Set("Last-Event-ID", req.LastEventID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, body)
	}

	err = readEvents(resp.Body, fn)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// readEvents parses the text/event-stream framing written by the server:
// id, event and data fields terminated by a blank line. Comment lines
// (keepalives) are skipped.
func readEvents(r io.Reader, fn func(*StreamEvent) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var evt StreamEvent
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			evt.ID = strings.TrimPrefix(line, "id:")
		case strings.HasPrefix(line, "event:"):
			evt.Topic = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(line, "data:"))
		case line == "" && len(data) > 0:
			evt.Data = []byte(strings.Join(data, "\n"))
			out := evt
			if err := fn(&out); err != nil {
				return err
			}
			evt = StreamEvent{}
			data = nil
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
