package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EnvSandbox     = "sandbox"
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

var envURLs = map[string]string{
	EnvSandbox:     "https://sandbox.plaid.com",
	EnvDevelopment: "https://development.plaid.com",
	EnvProduction:  "https://production.plaid.com",
}

// defaultPageSize is the number of transactions requested per sync page.
const defaultPageSize = 100

// Config configures HTTPClient.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // sandbox (default), development or production
	BaseURL     string // overrides Environment when set
	HTTPClient  *http.Client
}

// HTTPClient implements Client against the provider's JSON API.
type HTTPClient struct {
	baseURL  string
	clientID string
	secret   string
	http     *http.Client
}

// New returns an HTTPClient, or ErrMissingCredentials.
func New(cfg Config) (*HTTPClient, error) {
	if cfg.ClientID == "" || cfg.Secret == "" {
		return nil, ErrMissingCredentials
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		env := strings.ToLower(strings.TrimSpace(cfg.Environment))
		if env == "" {
			env = EnvSandbox
		}
		u, ok := envURLs[env]
		if !ok {
			return nil, fmt.Errorf("unknown feed environment %q", cfg.Environment)
		}
		base = u
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPClient{baseURL: base, clientID: cfg.ClientID, secret: cfg.Secret, http: hc}, nil
}

type syncRequest struct {
	AccessToken string `json:"access_token"`
	Cursor      string `json:"cursor,omitempty"`
	Count       int    `json:"count"`
}

type syncResponse struct {
	Added      []wireTransaction `json:"added"`
	NextCursor string            `json:"next_cursor"`
	HasMore    bool              `json:"has_more"`
}

type wireTransaction struct {
	TransactionID    string          `json:"transaction_id"`
	AccountID        string          `json:"account_id"`
	Amount           decimal.Decimal `json:"amount"`
	ISOCurrencyCode  *string         `json:"iso_currency_code"`
	Date             string          `json:"date"`
	MerchantName     *string         `json:"merchant_name"`
	Name             *string         `json:"name"`
	Pending          bool            `json:"pending"`
	Category         []string        `json:"category"`
	PersonalCategory *struct {
		Primary string `json:"primary"`
	} `json:"personal_finance_category"`
}

// maxAmountExponent bounds the decimal exponent accepted from the wire.
// JSON numbers may use exponent notation and a huge exponent would expand
// into an arbitrarily long amount.
const maxAmountExponent = 12

func (w wireTransaction) toTransaction() (Transaction, error) {
	if e := w.Amount.Exponent(); e > maxAmountExponent || e < -maxAmountExponent {
		return Transaction{}, fmt.Errorf("transaction %s: amount exponent %d out of range", w.TransactionID, e)
	}
	d, err := time.Parse("2006-01-02", w.Date)
	if err != nil {
		return Transaction{}, fmt.Errorf("transaction %s: parsing date %q: %w", w.TransactionID, w.Date, err)
	}
	t := Transaction{
		ID:           w.TransactionID,
		AccountID:    w.AccountID,
		Date:         d,
		Amount:       w.Amount,
		Currency:     deref(w.ISOCurrencyCode),
		MerchantName: deref(w.MerchantName),
		Name:         deref(w.Name),
		Pending:      w.Pending,
	}
	switch {
	case w.PersonalCategory != nil && w.PersonalCategory.Primary != "":
		c := w.PersonalCategory.Primary
		t.Category = &c
	case len(w.Category) > 0:
		c := w.Category[0]
		t.Category = &c
	}
	return t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// TransactionsSync fetches one page of added transactions.
func (c *HTTPClient) TransactionsSync(ctx context.Context, credential, cursor string) (Page, error) {
	var resp syncResponse
	req := syncRequest{AccessToken: credential, Cursor: cursor, Count: defaultPageSize}
	if err := c.post(ctx, "/transactions/sync", req, &resp); err != nil {
		return Page{}, err
	}

	page := Page{HasMore: resp.HasMore, NextCursor: resp.NextCursor}
	for _, w := range resp.Added {
		t, err := w.toTransaction()
		if err != nil {
			return Page{}, err
		}
		page.Added = append(page.Added, t)
	}
	return page, nil
}

type accountsResponse struct {
	Accounts []struct {
		AccountID    string  `json:"account_id"`
		Name         string  `json:"name"`
		OfficialName *string `json:"official_name"`
		Mask         *string `json:"mask"`
	} `json:"accounts"`
	Item struct {
		ItemID          string  `json:"item_id"`
		InstitutionName *string `json:"institution_name"`
	} `json:"item"`
}

// Accounts lists the item's accounts.
func (c *HTTPClient) Accounts(ctx context.Context, credential string) (Item, error) {
	var resp accountsResponse
	if err := c.post(ctx, "/accounts/get", map[string]string{"access_token": credential}, &resp); err != nil {
		return Item{}, err
	}

	item := Item{ID: resp.Item.ItemID, InstitutionName: deref(resp.Item.InstitutionName)}
	for _, a := range resp.Accounts {
		item.Accounts = append(item.Accounts, Account{
			ID:           a.AccountID,
			Name:         a.Name,
			OfficialName: deref(a.OfficialName),
			Mask:         deref(a.Mask),
		})
	}
	return item, nil
}

// ExchangePublicToken swaps a link token for an access credential.
func (c *HTTPClient) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	var resp struct {
		AccessToken string `json:"access_token"`
		ItemID      string `json:"item_id"`
	}
	if err := c.post(ctx, "/item/public_token/exchange", map[string]string{"public_token": publicToken}, &resp); err != nil {
		return "", "", err
	}
	return resp.AccessToken, resp.ItemID, nil
}

type errorResponse struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	RequestID    string `json:"request_id"`
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("PLAID-CLIENT-ID", c.clientID)
	req.Header.Set("PLAID-SECRET", c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(data, &er) == nil {
			apiErr.Type = er.ErrorType
			apiErr.Code = er.ErrorCode
			apiErr.Message = er.ErrorMessage
			apiErr.RequestID = er.RequestID
		}
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
