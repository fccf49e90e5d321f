package pinterest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/eerkela/pinsync/internal/collection"
	pserrors "github.com/eerkela/pinsync/internal/errors"
)

// endBookmark is the bookmark value some API responses use to signal
// the final page, in addition to simply returning an empty data array.
const endBookmark = "-end-"

// BoardInfo is one board from the remote listing.
type BoardInfo struct {
	ID   string
	Name string
}

// SectionInfo is one section of a board from the remote listing.
type SectionInfo struct {
	ID    string
	Title string
}

// Boards lists every board of the authenticated user, draining
// pagination. Board name-to-id mappings are remembered for later
// container listings.
func (c *Client) Boards(ctx context.Context) ([]BoardInfo, error) {
	var boards []BoardInfo

	err := c.drain(ctx, "/v3/boards", func(rec gjson.Result) {
		id := rec.Get("id").String()
		name := rec.Get("name").String()

		if id == "" || name == "" {
			return
		}

		boards = append(boards, BoardInfo{ID: id, Name: name})

		c.mu.Lock()
		c.boardIDs[name] = id
		c.mu.Unlock()
	})
	if err != nil {
		return nil, fmt.Errorf("listing boards: %w", err)
	}

	return boards, nil
}

// Sections lists the sections of a board by name. The board must have
// appeared in a previous Boards call.
func (c *Client) Sections(ctx context.Context, board string) ([]SectionInfo, error) {
	boardID, err := c.boardID(board)
	if err != nil {
		return nil, err
	}

	var sections []SectionInfo

	err = c.drain(ctx, "/v3/boards/"+url.PathEscape(boardID)+"/sections", func(rec gjson.Result) {
		id := rec.Get("id").String()
		title := rec.Get("title").String()

		if id == "" || title == "" {
			return
		}

		sections = append(sections, SectionInfo{ID: id, Title: title})

		c.mu.Lock()
		c.sectionIDs[board+"/"+title] = id
		c.mu.Unlock()
	})
	if err != nil {
		return nil, fmt.Errorf("listing sections of %s: %w", board, err)
	}

	return sections, nil
}

// ListItems drains the container's paginated feed into RemoteItems.
// Records missing required fields are silently skipped: partial remote
// corruption must not abort the whole listing.
func (c *Client) ListItems(ctx context.Context, container *collection.Container) ([]collection.RemoteItem, error) {
	endpoint, err := c.feedEndpoint(container)
	if err != nil {
		return nil, err
	}

	var items []collection.RemoteItem

	err = c.drain(ctx, endpoint, func(rec gjson.Result) {
		if item, ok := parsePin(rec, container.Section); ok {
			items = append(items, item)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("listing items of %s: %w", container.Name(), err)
	}

	return items, nil
}

// DeleteItem removes an item from the remote service. Returns an error
// wrapping ErrItemNotFound when the id does not exist remotely.
func (c *Client) DeleteItem(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/v3/pins/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("deleting item %s: %w", id, err)
	}

	return nil
}

// FetchPayload streams an item's binary payload. The caller owns the
// returned reader and must close it.
func (c *Client) FetchPayload(ctx context.Context, item collection.RemoteItem) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating payload request for %s: %w", item.ID, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransientError{Err: fmt.Errorf("fetching payload for %s: %w", item.ID, err)}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("payload for %s: %w", item.ID, pserrors.ErrItemNotFound)
		}

		err := fmt.Errorf("payload for %s returned status %d", item.ID, resp.StatusCode)
		if isTransientStatus(resp.StatusCode) {
			return nil, &TransientError{Err: err}
		}

		return nil, err
	}

	return resp.Body, nil
}

// drain requests pages from endpoint until an empty page is returned,
// invoking visit for every raw record.
func (c *Client) drain(ctx context.Context, endpoint string, visit func(gjson.Result)) error {
	bookmark := ""

	for {
		pageEndpoint := endpoint
		if bookmark != "" {
			pageEndpoint += "?bookmark=" + url.QueryEscape(bookmark)
		}

		raw, err := c.doRaw(ctx, http.MethodGet, pageEndpoint, nil)
		if err != nil {
			return err
		}

		records := gjson.GetBytes(raw, "data").Array()
		if len(records) == 0 {
			return nil
		}

		for _, rec := range records {
			visit(rec)
		}

		bookmark = gjson.GetBytes(raw, "bookmark").String()
		if bookmark == "" || bookmark == endBookmark {
			return nil
		}
	}
}

// feedEndpoint resolves the container's feed path from the id mappings
// discovered during Boards/Sections calls.
func (c *Client) feedEndpoint(container *collection.Container) (string, error) {
	if container.IsSection() {
		id, err := c.sectionID(container.Board, container.Section)
		if err != nil {
			return "", err
		}

		return "/v3/sections/" + url.PathEscape(id) + "/feed", nil
	}

	id, err := c.boardID(container.Board)
	if err != nil {
		return "", err
	}

	return "/v3/boards/" + url.PathEscape(id) + "/feed", nil
}

func (c *Client) boardID(board string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.boardIDs[board]
	if !ok {
		return "", fmt.Errorf("%q: %w", board, pserrors.ErrBoardNotFound)
	}

	return id, nil
}

func (c *Client) sectionID(board, section string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, ok := c.sectionIDs[board+"/"+section]
	if !ok {
		return "", fmt.Errorf("%s/%s: %w", board, section, pserrors.ErrSectionNotFound)
	}

	return id, nil
}

// parsePin builds a RemoteItem from one raw feed record. Returns false
// when any required field is missing or malformed; the listing loop
// collects only successes.
func parsePin(rec gjson.Result, section string) (collection.RemoteItem, bool) {
	id := rec.Get("id").String()
	board := rec.Get("board.name").String()
	imageURL := rec.Get("images.orig.url").String()
	height := rec.Get("images.orig.height")
	width := rec.Get("images.orig.width")

	if id == "" || board == "" || imageURL == "" || !height.Exists() || !width.Exists() {
		return collection.RemoteItem{}, false
	}

	ext := extensionFromURL(imageURL)
	if ext == "" {
		return collection.RemoteItem{}, false
	}

	return collection.RemoteItem{
		ID:          id,
		Title:       rec.Get("title").String(),
		Description: rec.Get("description").String(),
		Board:       board,
		Section:     section,
		URL:         imageURL,
		Extension:   ext,
		Height:      int(height.Int()),
		Width:       int(width.Int()),
	}, true
}

// extensionFromURL derives the file extension from the payload URL's
// path suffix.
func extensionFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	ext := path.Ext(u.Path)
	if ext == "." || !strings.HasPrefix(ext, ".") {
		return ""
	}

	return strings.ToLower(ext)
}
