package sdk

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"

	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// Upload sends a file to the server's object storage and returns its URL.
// Uploads happen before the message referencing them is sent, so a failed
// upload never leaves a half-sent message behind.
func (c *Client) Upload(ctx context.Context, filename, contentType string, reader io.Reader) (*UploadResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart: %w", err)
	}
	if _, err := io.Copy(part, reader); err != nil {
		return nil, fmt.Errorf("failed to buffer upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req := &protocol.Request{}
	resp := &protocol.Response{}

	req.SetMethod(consts.MethodPost)
	req.SetRequestURI(c.baseURL + "/upload")
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.SetBody(buf.Bytes())

	if err := c.httpClient.Do(ctx, req, resp); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	var result UploadResult
	if err := decodeResponse(resp.Body(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
