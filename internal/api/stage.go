// Copyright (c) 2025 Frostline
// Licensed under the MIT License. See LICENSE file in the project root for details.

package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// stagePathURL builds the stage file URL for a stage-relative path like
// "@mystage/dir/file.csv". The leading "@" is protocol decoration, not part
// of the path.
func (c *Client) stagePathURL(stagePath string) string {
	p := strings.TrimPrefix(strings.TrimSpace(stagePath), "@")
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return c.baseURL + c.endpoints.Stage + "/" + strings.Join(segs, "/")
}

// UploadFile streams one local file body to a stage path.
func (c *Client) UploadFile(ctx context.Context, stagePath string, body io.Reader, size int64, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.stagePathURL(stagePath), body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", "Bearer "+token)
	if size >= 0 {
		req.ContentLength = size
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("stage upload returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// DownloadFile streams one stage file into w and returns the byte count.
func (c *Client) DownloadFile(ctx context.Context, stagePath string, w io.Writer, token string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.stagePathURL(stagePath), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, fmt.Errorf("stage download returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return io.Copy(w, resp.Body)
}
