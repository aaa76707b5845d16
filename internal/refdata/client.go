// Package refdata fetches the merchant's products, categories, customer
// groups and coupons from the commerce platform. The constraint service uses
// it to reject references to ids that do not exist.
package refdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	dErrors "storegate/pkg/domain-errors"
)

type Product struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id"`
}

type CustomerGroup struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Coupon struct {
	Code     string `json:"code"`
	IsActive bool   `json:"is_active"`
}

// Client talks to the platform's catalog and customers APIs.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// pageEnvelope is the platform's paginated list body.
type pageEnvelope[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

const pageSize = 100

// getPaged follows page/page_size pagination until total_pages is exhausted.
func getPaged[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("page_size", strconv.Itoa(pageSize))
		var env pageEnvelope[T]
		if err := c.get(ctx, path, q, &env); err != nil {
			return nil, err
		}
		all = append(all, env.Items...)
		if len(env.Items) == 0 || page >= env.TotalPages {
			return all, nil
		}
	}
}

func (c *Client) Products(ctx context.Context) ([]Product, error) {
	return getPaged[Product](ctx, c, "/catalog/api/products")
}

func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	return getPaged[Category](ctx, c, "/catalog/api/categories/list")
}

func (c *Client) CustomerGroups(ctx context.Context) ([]CustomerGroup, error) {
	var out []CustomerGroup
	return out, c.get(ctx, "/api/customers/groups", nil, &out)
}

func (c *Client) Coupons(ctx context.Context) ([]Coupon, error) {
	var out []Coupon
	return out, c.get(ctx, "/api/marketing/coupons", nil, &out)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("refdata: build url: %w", err)
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("refdata: build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "reference data unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return dErrors.New(dErrors.CodeInternal,
			fmt.Sprintf("reference data request %s returned %d", path, resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("refdata: decode %s: %w", path, err)
	}
	return nil
}

// Snapshot is one consistent pull of all reference data.
type Snapshot struct {
	Products       map[int64]Product
	Categories     map[int64]Category
	CustomerGroups map[int64]CustomerGroup
	Coupons        map[string]Coupon

	FetchedAt time.Time
}

// FetchSnapshot pulls all four datasets concurrently.
func (c *Client) FetchSnapshot(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		Products:       make(map[int64]Product),
		Categories:     make(map[int64]Category),
		CustomerGroups: make(map[int64]CustomerGroup),
		Coupons:        make(map[string]Coupon),
		FetchedAt:      time.Now(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		products, err := c.Products(ctx)
		if err != nil {
			return err
		}
		for _, p := range products {
			snap.Products[p.ID] = p
		}
		return nil
	})
	g.Go(func() error {
		categories, err := c.Categories(ctx)
		if err != nil {
			return err
		}
		for _, cat := range categories {
			snap.Categories[cat.ID] = cat
		}
		return nil
	})
	g.Go(func() error {
		groups, err := c.CustomerGroups(ctx)
		if err != nil {
			return err
		}
		for _, grp := range groups {
			snap.CustomerGroups[grp.ID] = grp
		}
		return nil
	})
	g.Go(func() error {
		coupons, err := c.Coupons(ctx)
		if err != nil {
			return err
		}
		for _, cp := range coupons {
			snap.Coupons[cp.Code] = cp
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Snapshot) HasProduct(id int64) bool        { _, ok := s.Products[id]; return ok }
func (s *Snapshot) HasCategory(id int64) bool       { _, ok := s.Categories[id]; return ok }
func (s *Snapshot) HasCustomerGroup(id int64) bool  { _, ok := s.CustomerGroups[id]; return ok }
func (s *Snapshot) HasCoupon(code string) bool      { _, ok := s.Coupons[code]; return ok }
