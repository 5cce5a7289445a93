/*
 * Copyright (c) 2026 by easiwriter.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/easiwriter/WritingShedPro-sub015/internal/annotation"
	"github.com/easiwriter/WritingShedPro-sub015/internal/config"
)

// DeviceHeader names the pushing device so the server can attribute sync
// writes.
const DeviceHeader = "X-Device"

// Document is the listing projection the server returns for synced
// documents. Annotations counts live (non-deleted) records.
type Document struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	UpdatedAt   time.Time `json:"updated_at"`
	Annotations int       `json:"annotations"`
}

// Annotation is the wire form of one annotation record.
type Annotation struct {
	ID      string    `json:"id"`
	Anchor  int       `json:"anchor"`
	Number  int       `json:"number"`
	Text    string    `json:"text"`
	Deleted bool      `json:"deleted"`
	Created time.Time `json:"created"`
}

// AnnotationSet is the pull envelope for one document.
type AnnotationSet struct {
	DocumentID  string       `json:"document_id"`
	Count       int          `json:"count"`
	Annotations []Annotation `json:"annotations"`
}

// PushRequest carries an upsert batch. Title is optional and names the
// document on first contact; empty leaves the stored title alone.
type PushRequest struct {
	Title       string       `json:"title,omitempty"`
	Annotations []Annotation `json:"annotations"`
}

// PushResponse reports how many records the server took.
type PushResponse struct {
	DocumentID string `json:"document_id"`
	Upserted   int    `json:"upserted"`
}

func fromRecord(r annotation.Record) Annotation {
	return Annotation{
		ID:      string(r.ID),
		Anchor:  r.Anchor,
		Number:  r.Number,
		Text:    r.Text,
		Deleted: r.Deleted,
		Created: r.Created,
	}
}

func (a Annotation) toRecord() annotation.Record {
	return annotation.Record{
		ID:      annotation.ID(a.ID),
		Anchor:  a.Anchor,
		Number:  a.Number,
		Text:    a.Text,
		Deleted: a.Deleted,
		Created: a.Created,
	}
}

// Client talks to the sync server with a bearer token.
type Client struct {
	BaseURL string
	Token   string // bearer token
	Device  string // sent on requests via DeviceHeader when non-empty
	client  *http.Client
}

// NewClient creates a client. baseURL may include a trailing slash; it is
// normalized away.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientFromConfig builds a client from the backend section of the app
// configuration: base URL, timeout, device name and the TLS escape hatch
// for self-signed development servers.
func NewClientFromConfig(bc config.BackendConfig, token string) *Client {
	c := NewClient(bc.BaseURL, token)
	c.Device = bc.EffectiveDevice()
	if d, err := time.ParseDuration(bc.EffectiveTimeout()); err == nil && d > 0 {
		c.client.Timeout = d
	}
	if bc.TLSInsecure {
		c.client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return c
}

// doJSON performs one JSON round trip. body may be nil for GET; dest may
// be nil when the response payload does not matter.
func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.Device != "" {
		req.Header.Set(DeviceHeader, c.Device)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// RequestToken asks the server for a signed bearer token.
func (c *Client) RequestToken(ctx context.Context, subject string, ttl time.Duration) (string, error) {
	req := map[string]any{"subject": subject, "ttl_seconds": int64(ttl / time.Second)}
	var resp struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expires_at"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", req, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// ListDocuments returns the documents known to the server.
func (c *Client) ListDocuments(ctx context.Context) ([]Document, error) {
	var list []Document
	if err := c.doJSON(ctx, http.MethodGet, "/api/documents", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// PullAnnotations fetches the full annotation set of a document.
func (c *Client) PullAnnotations(ctx context.Context, documentID string) ([]annotation.Record, error) {
	var set AnnotationSet
	p := "/api/documents/" + url.PathEscape(documentID) + "/annotations"
	if err := c.doJSON(ctx, http.MethodGet, p, nil, &set); err != nil {
		return nil, err
	}
	recs := make([]annotation.Record, 0, len(set.Annotations))
	for _, a := range set.Annotations {
		recs = append(recs, a.toRecord())
	}
	return recs, nil
}

// PushAnnotations upserts a batch of records, attributing the write to the
// client's device. It returns the number of records the server took.
func (c *Client) PushAnnotations(ctx context.Context, documentID, title string, recs []annotation.Record) (int, error) {
	req := PushRequest{Title: title, Annotations: make([]Annotation, 0, len(recs))}
	for _, r := range recs {
		req.Annotations = append(req.Annotations, fromRecord(r))
	}
	var resp PushResponse
	p := "/api/documents/" + url.PathEscape(documentID) + "/annotations"
	if err := c.doJSON(ctx, http.MethodPut, p, req, &resp); err != nil {
		return 0, err
	}
	return resp.Upserted, nil
}
