package cloudsign

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// The service address is kept hex encoded so it does not show up as a plain
// string in the binary.
const endpointHex = "68747470733a2f2f636c6f75647369676e2e61796672652e636f6d2f"

var serviceEndpoint = mustDecodeHex(endpointHex)

func mustDecodeHex(s string) string {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("cloudsign: bad endpoint encoding: %v", err))
	}
	return string(b)
}

const defaultTimeout = 30 * time.Second

// Transport delivers one request to the game service and returns the raw
// text body.
type Transport interface {
	Send(ctx context.Context, req CommandRequest) (string, error)
}

type Client struct {
	http     *resty.Client
	endpoint string
}

func NewClient() *Client {
	return newClient(serviceEndpoint)
}

func newClient(endpoint string) *Client {
	return &Client{
		http: resty.New().
			SetTimeout(defaultTimeout).
			SetRetryCount(0),
		endpoint: endpoint,
	}
}

// Send posts req as a form once. Any transport error or non-2xx status is
// returned as an error; there is no retry.
func (c *Client) Send(ctx context.Context, req CommandRequest) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(req.FormData()).
		Post(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("post command: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("game service returned status %d", resp.StatusCode())
	}
	// resp.String() trims the body; the sentinel checks need it untouched.
	return string(resp.Body()), nil
}
