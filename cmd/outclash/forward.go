package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// instanceClient talks to the embedded server of an already running instance.
type instanceClient struct {
	http *resty.Client
}

func newInstanceClient(addr string, timeout time.Duration) *instanceClient {
	return &instanceClient{
		http: resty.New().
			SetBaseURL("http://" + addr).
			SetTimeout(timeout),
	}
}

// alive reports whether an outclash instance answers on the address.
func (c *instanceClient) alive() bool {
	resp, err := c.http.R().Get("/commands/ping")
	if err != nil {
		return false
	}
	return resp.IsSuccess() && strings.TrimSpace(resp.String()) == "ok"
}

// forward hands the deep link, or a request to show the window when there
// is none, to the running instance.
func (c *instanceClient) forward(link string) error {
	req := c.http.R()
	path := "/commands/visible"
	if link != "" {
		req.SetQueryParam("param", link)
		path = "/commands/scheme"
	}
	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("failed to reach running instance: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("running instance answered %s", resp.Status())
	}
	return nil
}
