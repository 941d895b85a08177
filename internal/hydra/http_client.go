package hydra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// HTTPClient is the concrete bearer-token client.
type HTTPClient struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// Options configures the HTTP client.
type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewHTTPClient builds a client against the metadata service.
func NewHTTPClient(opts Options) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		http:    &http.Client{Timeout: opts.Timeout},
		logger:  opts.Logger,
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build hydra request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("hydra %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hydra %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("hydra %s: decode: %w", path, err)
	}
	return nil
}

type dataEnvelope struct {
	Data json.RawMessage `json:"data"`
}

func (c *HTTPClient) getData(ctx context.Context, path string, query url.Values, out interface{}) error {
	var env dataEnvelope
	if err := c.get(ctx, path, query, &env); err != nil {
		return err
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("hydra %s: decode data: %w", path, err)
	}
	return nil
}

// Translations resolves translation keys for a language.
func (c *HTTPClient) Translations(ctx context.Context, keys []string, lang string) (map[string]string, error) {
	q := url.Values{}
	q.Set("lang", lang)
	q.Set("keys", strings.Join(keys, ","))
	out := map[string]string{}
	if err := c.getData(ctx, "/manage/v1/translations", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) extraFields(ctx context.Context, entity string) ([]ExtraField, error) {
	var out []ExtraField
	if err := c.getData(ctx, "/manage/v1/"+entity+"/extra_fields", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UserExtraFields lists user custom fields.
func (c *HTTPClient) UserExtraFields(ctx context.Context) ([]ExtraField, error) {
	return c.extraFields(ctx, "user")
}

// CourseExtraFields lists course custom fields.
func (c *HTTPClient) CourseExtraFields(ctx context.Context) ([]ExtraField, error) {
	return c.extraFields(ctx, "course")
}

// EnrollmentExtraFields lists enrollment custom fields.
func (c *HTTPClient) EnrollmentExtraFields(ctx context.Context) ([]ExtraField, error) {
	return c.extraFields(ctx, "enrollment")
}

func (c *HTTPClient) idList(ctx context.Context, path string, query url.Values) ([]int64, error) {
	var out []int64
	if err := c.getData(ctx, path, query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BranchDescendants expands a branch to its subtree of branch ids.
func (c *HTTPClient) BranchDescendants(ctx context.Context, branchID int64) ([]int64, error) {
	return c.idList(ctx, "/manage/v1/branches/"+strconv.FormatInt(branchID, 10)+"/descendants", nil)
}

// GroupMembers lists the user ids of a group.
func (c *HTTPClient) GroupMembers(ctx context.Context, groupID int64) ([]int64, error) {
	return c.idList(ctx, "/manage/v1/groups/"+strconv.FormatInt(groupID, 10)+"/members", nil)
}

// PowerUserUsers lists the users a power user administers.
func (c *HTTPClient) PowerUserUsers(ctx context.Context, userID int64) ([]int64, error) {
	return c.idList(ctx, "/manage/v1/poweruser/"+strconv.FormatInt(userID, 10)+"/users", nil)
}

// PowerUserCourses lists the courses a power user administers.
func (c *HTTPClient) PowerUserCourses(ctx context.Context, userID int64) ([]int64, error) {
	return c.idList(ctx, "/manage/v1/poweruser/"+strconv.FormatInt(userID, 10)+"/courses", nil)
}

// UserIDsByManager lists users reporting to a manager.
func (c *HTTPClient) UserIDsByManager(ctx context.Context, managerID int64, managerType int) ([]int64, error) {
	q := url.Values{}
	q.Set("manager_type", strconv.Itoa(managerType))
	return c.idList(ctx, "/manage/v1/managers/"+strconv.FormatInt(managerID, 10)+"/users", q)
}

var _ Client = (*HTTPClient)(nil)
