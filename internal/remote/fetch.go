// Package remote fetches the developer list from a JSON feed and keeps the
// settings store in sync with it.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/standardbeagle/gnm/internal/dictionary"
)

var (
	// ErrNoURL is returned when no feed URL is configured.
	ErrNoURL = errors.New("no JSON URL configured")

	// ErrMalformedPayload is returned when the feed isn't JSON or lacks the
	// data.list array.
	ErrMalformedPayload = errors.New("malformed payload: missing data.list array")

	// ErrHTTPStatus is returned for a non-2xx response.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
)

// maxPayload bounds how much of a response is read.
const maxPayload = 16 << 20

// Fetch downloads and normalizes the feed at url.
func Fetch(ctx context.Context, client *http.Client, url string) ([]dictionary.RawEntry, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrNoURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrHTTPStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return Parse(body)
}

// Parse normalizes a feed payload of the form {"data":{"list":[...]}}.
// Items may use either field convention; items without an identifier, or
// with neither a nickname nor a domain, are dropped.
func Parse(body []byte) ([]dictionary.RawEntry, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedPayload
	}
	list := gjson.GetBytes(body, "data.list")
	if !list.IsArray() {
		return nil, ErrMalformedPayload
	}
	return normalizeList(list), nil
}

// ExtractRules pulls entries out of a rule import file. It accepts a bare
// array, or an object carrying localRules, rules, developers or data.list.
func ExtractRules(body []byte) ([]dictionary.RawEntry, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedPayload
	}
	root := gjson.ParseBytes(body)
	if root.IsArray() {
		return normalizeList(root), nil
	}
	for _, path := range []string{"localRules", "rules", "developers", "data.list"} {
		if r := root.Get(path); r.IsArray() {
			return normalizeList(r), nil
		}
	}
	return nil, nil
}

func normalizeList(list gjson.Result) []dictionary.RawEntry {
	out := []dictionary.RawEntry{}
	list.ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		e := dictionary.RawEntry{
			GithubName: pick(item, "account", "github_name"),
			Nick:       pick(item, "nickname", "nick"),
			Domain:     strings.TrimSpace(item.Get("domain").String()),
			GithubAcc:  pick(item, "email", "github_acc"),
		}
		if e.GithubName == "" || (e.Nick == "" && e.Domain == "") {
			return true
		}
		out = append(out, e)
		return true
	})
	return out
}

// pick returns the first non-empty string field.
func pick(item gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(item.Get(k).String()); v != "" {
			return v
		}
	}
	return ""
}
