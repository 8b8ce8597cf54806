package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fundedlabs/backend-checkout/internal/obs"
	"github.com/fundedlabs/backend-checkout/internal/resilience"
)

// Client reads program and coupon snapshots from the headless CMS HTTP API.
// It implements ProgramRepository and CouponRepository. Programs are cached
// briefly; coupon records are always read fresh so a deactivated code stops
// applying immediately.
type Client struct {
	BaseURL string
	Token   string
	HTTP    resilience.HTTPClient
	Cache   *Cache
	Logger  *zerolog.Logger
}

type programEnvelope struct {
	Data Program `json:"data"`
}

type couponListEnvelope struct {
	Data []Coupon `json:"data"`
}

// GetProgram fetches a program snapshot by id.
func (c *Client) GetProgram(ctx context.Context, id string) (Program, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Program{}, ErrProgramNotFound
	}
	cacheKey := "catalog:program:" + id
	var cached Program
	if hit, err := c.Cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
		recordFetch("program", "cache")
		return cached, nil
	} else if err != nil && c.Logger != nil {
		c.Logger.Warn().Err(err).Str("program_id", id).Msg("catalog cache read failed")
	}

	var envelope programEnvelope
	status, err := c.getJSON(ctx, "/api/programs/"+url.PathEscape(id), nil, &envelope)
	if err != nil {
		return Program{}, err
	}
	if status == http.StatusNotFound {
		return Program{}, ErrProgramNotFound
	}
	if status != http.StatusOK {
		return Program{}, fmt.Errorf("catalog: program fetch returned status %d", status)
	}
	if err := c.Cache.SetJSON(ctx, cacheKey, envelope.Data); err != nil && c.Logger != nil {
		c.Logger.Warn().Err(err).Str("program_id", id).Msg("catalog cache write failed")
	}
	recordFetch("program", "cms")
	return envelope.Data, nil
}

// GetCouponByCode looks up a single coupon record by its code. Unknown codes
// report found=false without error.
func (c *Client) GetCouponByCode(ctx context.Context, code string) (Coupon, bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Coupon{}, false, nil
	}
	var envelope couponListEnvelope
	status, err := c.getJSON(ctx, "/api/coupons", url.Values{"code": {strings.ToUpper(code)}}, &envelope)
	if err != nil {
		return Coupon{}, false, err
	}
	if status == http.StatusNotFound || len(envelope.Data) == 0 {
		return Coupon{}, false, nil
	}
	if status != http.StatusOK {
		return Coupon{}, false, fmt.Errorf("catalog: coupon fetch returned status %d", status)
	}
	recordFetch("coupon", "cms")
	return envelope.Data[0], true, nil
}

// ListActiveCoupons retrieves the catalog of currently active coupons used for
// automatic resolution.
func (c *Client) ListActiveCoupons(ctx context.Context) ([]Coupon, error) {
	var envelope couponListEnvelope
	status, err := c.getJSON(ctx, "/api/coupons", url.Values{"status": {string(CouponActive)}}, &envelope)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("catalog: coupon list returned status %d", status)
	}
	recordFetch("coupon_list", "cms")
	return envelope.Data, nil
}

func recordFetch(resource, source string) {
	if obs.CatalogFetchTotal != nil {
		obs.CatalogFetchTotal.WithLabelValues(resource, source).Inc()
	}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dst any) (int, error) {
	endpoint := strings.TrimRight(c.BaseURL, "/") + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("catalog: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return resp.StatusCode, fmt.Errorf("catalog: decode response: %w", err)
	}
	return resp.StatusCode, nil
}
