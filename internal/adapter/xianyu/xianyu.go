// Package xianyu implements adapter.Adapter against a Taobao/Xianyu-shaped
// marketplace search endpoint: a GET request signed with an MD5 digest of
// the token seed, a millisecond timestamp, the app key, and the JSON
// payload, the same signing shape the original Java source used (spec.md
// §4.1, §4.2). Grounded on the teacher's internal/gitprovider.GitHubProvider
// doJSON helper for request construction and status-code classification
// (http.NewRequestWithContext, an explicit client Timeout, a status-code
// switch instead of exception-style error sniffing).
package xianyu

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joestump/marketwatch/internal/adapter"
	"github.com/joestump/marketwatch/internal/model"
	"github.com/joestump/marketwatch/internal/sessiontoken"
)

const (
	searchAPI  = "mtop.taobao.idlemessage.pc.search.number"
	apiVersion = "1.0"
)

// Config carries everything the adapter needs to build and sign a
// request that isn't part of the per-call Search arguments.
type Config struct {
	BaseURL        string
	AppKey         string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	RequestDelayMS int
}

// Adapter implements adapter.Adapter against the xianyu search API.
type Adapter struct {
	cfg    Config
	client *http.Client
}

// New returns an Adapter built from cfg. A single *http.Client is reused
// across calls, the same shape the teacher's GitHubProvider uses.
func New(cfg Config) *Adapter {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	return &Adapter{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.ConnectTimeout + cfg.ReadTimeout,
		},
	}
}

// RequestDelay is the minimum spacing between requests this adapter
// requires to avoid tripping the upstream's informal rate limit.
func (a *Adapter) RequestDelay() time.Duration {
	if a.cfg.RequestDelayMS <= 0 {
		return 800 * time.Millisecond
	}
	return time.Duration(a.cfg.RequestDelayMS) * time.Millisecond
}

// searchPayload is the JSON body embedded (as a query parameter, per the
// mtop calling convention) in the signed request.
type searchPayload struct {
	KeyWord   string `json:"keyword"`
	PageNum   int    `json:"pageNumber"`
	RowsNum   int    `json:"rowsPerPage"`
}

// Search issues one page of query against the xianyu search API and
// returns the items found, or a tagged *adapter.Error.
func (a *Adapter) Search(ctx context.Context, query string, page, rows int, token sessiontoken.Snapshot) ([]model.Item, error) {
	if !token.Valid() {
		return nil, &adapter.Error{Kind: adapter.KindAuth, Op: "xianyu.Search", Err: fmt.Errorf("no valid session token")}
	}

	payload, err := json.Marshal(searchPayload{KeyWord: query, PageNum: page, RowsNum: rows})
	if err != nil {
		return nil, &adapter.Error{Kind: adapter.KindTransient, Op: "xianyu.Search", Err: fmt.Errorf("marshal payload: %w", err)}
	}

	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	sign := signRequest(token.Seed, ts, a.cfg.AppKey, string(payload))

	req, err := a.buildRequest(ctx, ts, sign, string(payload), token.Cookie)
	if err != nil {
		return nil, &adapter.Error{Kind: adapter.KindTransient, Op: "xianyu.Search", Err: err}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &adapter.Error{Kind: adapter.KindTransient, Op: "xianyu.Search", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &adapter.Error{Kind: adapter.KindTransient, Op: "xianyu.Search", Err: fmt.Errorf("read body: %w", err)}
	}

	return classifyAndParse(resp.StatusCode, body)
}

func (a *Adapter) buildRequest(ctx context.Context, ts, sign, payload, cookie string) (*http.Request, error) {
	q := url.Values{}
	q.Set("jsv", "2.7.2")
	q.Set("appKey", a.cfg.AppKey)
	q.Set("t", ts)
	q.Set("sign", sign)
	q.Set("api", searchAPI)
	q.Set("v", apiVersion)
	q.Set("data", payload)

	u := strings.TrimRight(a.cfg.BaseURL, "/") + "/h5/" + searchAPI + "/" + apiVersion + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Cookie", "_m_h5_tk="+cookie)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// signRequest computes the mtop sign parameter: md5(seed_ts_appkey_payload).
func signRequest(seed, ts, appKey, payload string) string {
	raw := seed + "_" + ts + "_" + appKey + "_" + payload
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// apiEnvelope is the common mtop response shape: a ret code/message pair
// plus a data payload whose shape depends on the endpoint.
type apiEnvelope struct {
	Ret  []string        `json:"ret"`
	Data json.RawMessage `json:"data"`
}

type searchResultData struct {
	ResultList []searchResultItem `json:"resultList"`
}

type searchResultItem struct {
	ItemID      string `json:"itemId"`
	Title       string `json:"title"`
	Price       string `json:"price"`
	PicURL      string `json:"picUrl"`
	SellerID    string `json:"sellerId"`
	PublishTime string `json:"publishTime"` // epoch milliseconds, empty on some listings
}

func classifyAndParse(status int, body []byte) ([]model.Item, error) {
	switch {
	case status == http.StatusOK:
		// fall through to envelope classification below
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, &adapter.Error{Kind: adapter.KindAuth, Op: "xianyu.Search", Err: fmt.Errorf("http status %d", status)}
	case status == http.StatusTooManyRequests:
		return nil, &adapter.Error{Kind: adapter.KindBlocked, Op: "xianyu.Search", Err: fmt.Errorf("http status %d", status)}
	case status >= 500:
		return nil, &adapter.Error{Kind: adapter.KindTransient, Op: "xianyu.Search", Err: fmt.Errorf("http status %d", status)}
	default:
		return nil, &adapter.Error{Kind: adapter.KindTransient, Op: "xianyu.Search", Err: fmt.Errorf("unexpected http status %d", status)}
	}

	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &adapter.Error{Kind: adapter.KindTransient, Op: "xianyu.Search", Err: fmt.Errorf("decode envelope: %w", err)}
	}

	if len(env.Ret) > 0 {
		switch {
		case strings.Contains(env.Ret[0], "FAIL_SYS_SESSION_EXPIRED"), strings.Contains(env.Ret[0], "FAIL_SYS_TOKEN_EXOIRED"):
			return nil, &adapter.Error{Kind: adapter.KindAuth, Op: "xianyu.Search", Err: fmt.Errorf("%s", env.Ret[0])}
		case strings.Contains(env.Ret[0], "FAIL_SYS_USER_VALIDATE"), strings.Contains(env.Ret[0], "RGV587_ERROR"):
			return nil, &adapter.Error{Kind: adapter.KindBlocked, Op: "xianyu.Search", Err: fmt.Errorf("%s", env.Ret[0])}
		case !strings.Contains(env.Ret[0], "SUCCESS"):
			return nil, &adapter.Error{Kind: adapter.KindTransient, Op: "xianyu.Search", Err: fmt.Errorf("%s", env.Ret[0])}
		}
	}

	var data searchResultData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, &adapter.Error{Kind: adapter.KindTransient, Op: "xianyu.Search", Err: fmt.Errorf("decode data: %w", err)}
		}
	}

	if len(data.ResultList) == 0 {
		return nil, &adapter.Error{Kind: adapter.KindEmptyPage, Op: "xianyu.Search"}
	}

	items := make([]model.Item, 0, len(data.ResultList))
	now := time.Now()
	for _, r := range data.ResultList {
		items = append(items, model.Item{
			ID:        r.ItemID,
			Title:     r.Title,
			Price:     r.Price,
			URL:       "https://www.goofish.com/item.htm?id=" + r.ItemID,
			ImageURL:  r.PicURL,
			SellerID:  r.SellerID,
			PostedAt:  parsePublishTime(r.PublishTime),
			FetchedAt: now,
		})
	}
	return items, nil
}

// parsePublishTime parses the upstream's epoch-millisecond listing
// timestamp. A missing or malformed value parses to the zero time, which
// model.Item.AgeMinutes treats as age zero rather than as unbounded age.
func parsePublishTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
