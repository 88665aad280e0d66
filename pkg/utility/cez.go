package utility

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/cezhdo/pkg/common"
	"github.com/raterudder/cezhdo/pkg/hdo"
	"github.com/raterudder/cezhdo/pkg/log"
	"golang.org/x/sync/singleflight"
)

// maxPayloadBytes caps a single HDO response. Real payloads are a few KB.
const maxPayloadBytes = 1 << 20

// Fetcher retrieves the schedule of a command code that is not a preset.
type Fetcher interface {
	// Fetch returns the parsed schedule along with the raw payload so it can
	// be persisted as the last known good copy.
	Fetch(ctx context.Context, region, code string) (hdo.Schedule, []byte, error)
}

// CEZ implements Fetcher against the CEZ Distribuce HDO endpoint.
type CEZ struct {
	apiURL string
	client *http.Client

	group singleflight.Group
}

var _ Fetcher = (*CEZ)(nil)

// configuredCEZ sets up flags for the CEZ endpoint and returns the instance.
func configuredCEZ() *CEZ {
	c := &CEZ{
		client: common.HTTPClient(10 * time.Second),
	}
	apiURL := lflag.String("cez-api-url", "https://www.cezdistribuce.cz/webpublic/distHdo/adam/containers", "Base URL of the CEZ Distribuce HDO containers endpoint")

	lflag.Do(func() {
		c.apiURL = *apiURL
	})

	return c
}

// Validate ensures the configuration is valid.
func (c *CEZ) Validate() error {
	if c.apiURL == "" {
		return fmt.Errorf("cez-api-url is required")
	}
	if _, err := url.Parse(c.apiURL); err != nil {
		return fmt.Errorf("failed to parse cez url (%s): %w", c.apiURL, err)
	}
	return nil
}

func (c *CEZ) url(region, code string) string {
	// the endpoint expects the literal "?&code=" query
	return strings.TrimSuffix(c.apiURL, "/") + "/" + url.PathEscape(region) + "?&code=" + url.QueryEscape(code)
}

type fetchResult struct {
	schedule hdo.Schedule
	payload  []byte
}

// Fetch downloads and parses the schedule for region and code. Concurrent
// calls for the same pair share one request.
func (c *CEZ) Fetch(ctx context.Context, region, code string) (hdo.Schedule, []byte, error) {
	u := c.url(region, code)
	v, err, shared := c.group.Do(region+"_"+code, func() (any, error) {
		log.Ctx(ctx).DebugContext(ctx, "fetching hdo schedule", slog.String("url", u))

		body, err := common.Get(ctx, c.client, u, maxPayloadBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch hdo schedule: %w", err)
		}
		s, err := hdo.ParsePayload(body)
		if err != nil {
			log.Ctx(ctx).ErrorContext(
				ctx,
				"failed to parse hdo payload",
				slog.String("url", u),
				slog.Any("error", err),
			)
			return nil, fmt.Errorf("failed to parse hdo schedule: %w", err)
		}
		return fetchResult{schedule: s, payload: body}, nil
	})
	if err != nil {
		return nil, nil, err
	}

	res := v.(fetchResult)
	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched hdo schedule",
		slog.String("region", region),
		slog.String("code", code),
		slog.Int("entries", len(res.schedule)),
		slog.Bool("shared", shared),
	)
	// shared results must not alias each other
	return res.schedule.Clone(), append([]byte(nil), res.payload...), nil
}
