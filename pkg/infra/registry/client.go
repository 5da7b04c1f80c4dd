package registry

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/slipway/pkg/domain/interfaces"
	"github.com/m-mizutani/slipway/pkg/domain/model"
	"github.com/m-mizutani/slipway/pkg/domain/types"
)

// DefaultBaseURL points at the public crates.io registry
const DefaultBaseURL = "https://crates.io"

// Client publishes packages to a crates.io-compatible registry. Publication
// is a single PUT; the registry either accepts the whole submission or
// rejects it, so there is never partial state to roll back.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option is a functional option for Client configuration
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for registry requests
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a registry client. The token authorizes publication and is
// never logged.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ interfaces.RegistryClient = (*Client)(nil)

// publishMetadata is the JSON envelope of the crates.io publish API. Only
// the fields the registry requires are populated; dependency metadata is
// carried inside the crate tarball's own manifest.
type publishMetadata struct {
	Name        string              `json:"name"`
	Vers        string              `json:"vers"`
	Deps        []json.RawMessage   `json:"deps"`
	Features    map[string][]string `json:"features"`
	Description string              `json:"description,omitempty"`
}

type errorResponse struct {
	Errors []struct {
		Detail string `json:"detail"`
	} `json:"errors"`
}

// Publish submits the crate tarball and its metadata to the registry. A
// version that already exists fails with types.ErrVersionExists; the
// registry enforces version immutability.
func (c *Client) Publish(ctx context.Context, manifest *model.PackageManifest, crate []byte) (*model.RegistryPackage, error) {
	meta, err := json.Marshal(publishMetadata{
		Name:        manifest.Name,
		Vers:        manifest.Version,
		Deps:        []json.RawMessage{},
		Features:    map[string][]string{},
		Description: manifest.Description,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode publish metadata", goerr.T(types.ErrTagRegistry))
	}

	// The publish API body is length-prefixed: u32 LE metadata length, the
	// JSON metadata, u32 LE crate length, then the crate bytes.
	body := &bytes.Buffer{}
	if err := binary.Write(body, binary.LittleEndian, uint32(len(meta))); err != nil {
		return nil, goerr.Wrap(err, "failed to frame publish body")
	}
	body.Write(meta)
	if err := binary.Write(body, binary.LittleEndian, uint32(len(crate))); err != nil {
		return nil, goerr.Wrap(err, "failed to frame publish body")
	}
	body.Write(crate)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/api/v1/crates/new", body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create publish request", goerr.T(types.ErrTagRegistry))
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to submit package to registry",
			goerr.V("name", manifest.Name),
			goerr.V("version", manifest.Version),
			goerr.T(types.ErrTagRegistry))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.publishError(resp, manifest)
	}

	return &model.RegistryPackage{
		Name:    manifest.Name,
		Version: manifest.Version,
	}, nil
}

// publishError maps a rejected publish response to a typed error
func (c *Client) publishError(resp *http.Response, manifest *model.PackageManifest) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var detail string
	var errResp errorResponse
	if err := json.Unmarshal(raw, &errResp); err == nil && len(errResp.Errors) > 0 {
		detail = errResp.Errors[0].Detail
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return goerr.New("registry rejected credential",
			goerr.V("status", resp.StatusCode),
			goerr.V("detail", detail),
			goerr.T(types.ErrTagRegistry))
	case strings.Contains(detail, "already uploaded") || strings.Contains(detail, "already exists"):
		return goerr.Wrap(types.ErrVersionExists, "registry refused duplicate version",
			goerr.V("name", manifest.Name),
			goerr.V("version", manifest.Version))
	default:
		return goerr.New("registry rejected package submission",
			goerr.V("status", resp.StatusCode),
			goerr.V("detail", detail),
			goerr.V("name", manifest.Name),
			goerr.V("version", manifest.Version),
			goerr.T(types.ErrTagRegistry))
	}
}
