/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package feedproto

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// FilterPath is the request target of a filtered status stream.
const FilterPath = "/1.1/statuses/filter.json"

// Subscription is the server-side view of a subscribe request.
type Subscription struct {
	Track       []string
	ConsumerKey string
	Token       string
}

// Matches reports whether text contains any tracked term, ignoring case.
// An empty track list matches everything.
func (s Subscription) Matches(text string) bool {
	if len(s.Track) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, term := range s.Track {
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// SubscribeRequest builds the raw request that opens a filtered stream.
// The Authorization header carries the key fields only; signing is left to
// a gateway.
func SubscribeRequest(host string, track []string, c Credentials) []byte {
	body := url.Values{"track": {strings.Join(track, ",")}}.Encode()

	var b strings.Builder
	b.WriteString("POST " + FilterPath + " HTTP/1.1\r\n")
	b.WriteString("Host: " + host + "\r\n")
	if c.ConsumerKey != "" || c.Token != "" {
		fmt.Fprintf(&b, "Authorization: OAuth oauth_consumer_key=%q, oauth_token=%q\r\n",
			url.QueryEscape(c.ConsumerKey), url.QueryEscape(c.Token))
	}
	b.WriteString("Content-Type: application/x-www-form-urlencoded\r\n")
	b.WriteString("Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// ReadSubscription reads one subscribe request from r.
func ReadSubscription(r *bufio.Reader) (Subscription, error) {
	req, err := http.ReadRequest(r)
	if err != nil {
		return Subscription{}, fmt.Errorf("read subscribe request: %w", err)
	}
	defer req.Body.Close()

	if req.URL.Path != FilterPath {
		return Subscription{}, fmt.Errorf("unexpected request path %q", req.URL.Path)
	}
	if err := req.ParseForm(); err != nil {
		return Subscription{}, fmt.Errorf("parse subscribe form: %w", err)
	}

	sub := Subscription{}
	for _, term := range strings.Split(req.Form.Get("track"), ",") {
		if term = strings.TrimSpace(term); term != "" {
			sub.Track = append(sub.Track, term)
		}
	}
	sub.ConsumerKey, sub.Token = parseAuthorization(req.Header.Get("Authorization"))
	return sub, nil
}

func parseAuthorization(h string) (consumerKey, token string) {
	rest, ok := strings.CutPrefix(h, "OAuth ")
	if !ok {
		return "", ""
	}
	for _, field := range strings.Split(rest, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(field), "=")
		if !ok {
			continue
		}
		v, err := strconv.Unquote(v)
		if err != nil {
			continue
		}
		if uv, err := url.QueryUnescape(v); err == nil {
			v = uv
		}
		switch k {
		case "oauth_consumer_key":
			consumerKey = v
		case "oauth_token":
			token = v
		}
	}
	return consumerKey, token
}
