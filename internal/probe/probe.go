// Package probe drives a fixed sequence of HTTP checks against a running
// AgentHub deployment. It exists for manual smoke testing: each step issues
// one request, compares the status code against the expected one, and the
// runner reports how many steps passed. There are no retries.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/agenthub-dev/agenthub/internal/util"
)

const defaultRequestTimeout = 15 * time.Second

// Runner executes the probe sequence against one base URL.
type Runner struct {
	baseURL  string
	username string
	password string
	client   *http.Client

	accessToken string
}

// NewRunner constructs a Runner. Credentials may be empty, in which case
// only the unauthenticated steps run.
func NewRunner(baseURL, username, password string) *Runner {
	return &Runner{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		username: username,
		password: password,
		client:   &http.Client{Timeout: defaultRequestTimeout},
	}
}

// Result records the outcome of a single probe step.
type Result struct {
	Name     string
	Method   string
	Path     string
	Expected int
	Actual   int
	Err      error
}

// Passed reports whether the step returned the expected status.
func (r Result) Passed() bool {
	return r.Err == nil && r.Actual == r.Expected
}

// Report aggregates probe step results.
type Report struct {
	Results []Result
}

// Failed counts the steps that did not pass.
func (rep Report) Failed() int {
	failed := 0
	for _, result := range rep.Results {
		if !result.Passed() {
			failed++
		}
	}
	return failed
}

// Run executes the full probe sequence and logs each step.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	if r.baseURL == "" {
		return Report{}, fmt.Errorf("probe: base URL is required")
	}

	report := Report{}
	steps := r.steps()
	for _, step := range steps {
		result := step.run(ctx, r)
		report.Results = append(report.Results, result)
		logResult(result)
		if result.Err != nil && ctx.Err() != nil {
			return report, ctx.Err()
		}
	}

	log.Infof("probe: %d/%d steps passed", len(report.Results)-report.Failed(), len(report.Results))
	return report, nil
}

// step is one request in the probe sequence.
type step struct {
	name     string
	method   string
	path     string
	expected int
	authed   bool
	body     func(r *Runner) (contentType string, payload io.Reader)
	after    func(r *Runner, resp *http.Response, body []byte)
}

func (s step) run(ctx context.Context, r *Runner) Result {
	result := Result{Name: s.name, Method: s.method, Path: s.path, Expected: s.expected}

	var payload io.Reader
	contentType := ""
	if s.body != nil {
		contentType, payload = s.body(r)
	}
	req, errReq := http.NewRequestWithContext(ctx, s.method, r.baseURL+s.path, payload)
	if errReq != nil {
		result.Err = errReq
		return result
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.authed && r.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.accessToken)
	}

	resp, errDo := r.client.Do(req)
	if errDo != nil {
		result.Err = errDo
		return result
	}
	defer func() { _ = resp.Body.Close() }()
	body, errRead := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if errRead != nil {
		result.Err = errRead
		return result
	}

	result.Actual = resp.StatusCode
	if s.after != nil && resp.StatusCode == s.expected {
		s.after(r, resp, body)
	}
	return result
}

// steps builds the fixed probe sequence. Order matters: the login step
// captures the bearer token used by every later authenticated step.
func (r *Runner) steps() []step {
	loginBody := func(r *Runner) (string, io.Reader) {
		form := url.Values{}
		form.Set("username", r.username)
		form.Set("password", r.password)
		return "application/x-www-form-urlencoded", strings.NewReader(form.Encode())
	}
	captureToken := func(r *Runner, _ *http.Response, body []byte) {
		var parsed struct {
			AccessToken string `json:"access_token"`
		}
		if errDecode := json.Unmarshal(body, &parsed); errDecode == nil {
			r.accessToken = parsed.AccessToken
		}
	}

	steps := []step{
		{name: "health", method: http.MethodGet, path: "/healthz", expected: http.StatusOK},
		{name: "me without credentials", method: http.MethodGet, path: "/api/auth/users/me", expected: http.StatusUnauthorized},
		{name: "login with bad credentials", method: http.MethodPost, path: "/api/auth/jwt/login", expected: http.StatusUnauthorized,
			body: func(*Runner) (string, io.Reader) {
				form := url.Values{}
				form.Set("username", "nobody")
				form.Set("password", "wrong-password")
				return "application/x-www-form-urlencoded", strings.NewReader(form.Encode())
			}},
	}
	if r.username == "" || r.password == "" {
		return steps
	}

	steps = append(steps,
		step{name: "login", method: http.MethodPost, path: "/api/auth/jwt/login", expected: http.StatusOK, body: loginBody, after: captureToken},
		step{name: "me", method: http.MethodGet, path: "/api/auth/users/me", expected: http.StatusOK, authed: true},
		step{name: "teams", method: http.MethodGet, path: "/api/teams", expected: http.StatusOK, authed: true},
		step{name: "teams trailing slash", method: http.MethodGet, path: "/api/teams/", expected: http.StatusOK, authed: true},
		step{name: "options config", method: http.MethodGet, path: "/api/options/config", expected: http.StatusOK, authed: true},
		step{name: "options models", method: http.MethodGet, path: "/api/options/models", expected: http.StatusOK, authed: true},
		step{name: "options agents", method: http.MethodGet, path: "/api/options/agents", expected: http.StatusOK, authed: true},
		step{name: "options security analyzers", method: http.MethodGet, path: "/api/options/security-analyzers", expected: http.StatusOK, authed: true},
		step{name: "settings", method: http.MethodGet, path: "/api/settings", expected: http.StatusOK, authed: true},
		step{name: "new conversation", method: http.MethodPost, path: "/api/conversation", expected: http.StatusCreated, authed: true,
			body: func(*Runner) (string, io.Reader) {
				return "application/json", strings.NewReader(`{"title":"probe"}`)
			}},
	)
	return steps
}

func logResult(result Result) {
	target := result.Path
	if parsed, errParse := url.Parse(target); errParse == nil && parsed.RawQuery != "" {
		parsed.RawQuery = util.MaskSensitiveQuery(parsed.RawQuery)
		target = parsed.String()
	}
	switch {
	case result.Err != nil:
		log.Errorf("probe: FAIL %-28s %s %s: %v", result.Name, result.Method, target, result.Err)
	case result.Passed():
		log.Infof("probe: ok   %-28s %s %s -> %d", result.Name, result.Method, target, result.Actual)
	default:
		log.Errorf("probe: FAIL %-28s %s %s -> %d (expected %d)", result.Name, result.Method, target, result.Actual, result.Expected)
	}
}
