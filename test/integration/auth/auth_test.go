// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nori Contributors

//go:build integration

package auth_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type apiResponse struct {
	code    int
	status  int
	data    map[string]string
	kind    string
	cookies []*http.Cookie
	header  http.Header
}

func uniqueName(prefix string) string {
	return prefix + "_" + strings.ToLower(ulid.Make().String())
}

func post(path string, body any, cookie *http.Cookie) apiResponse {
	GinkgoHelper()
	var reader *bytes.Reader
	if s, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(s))
	} else {
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(env.ctx, http.MethodPost, env.server.URL+path, reader)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return do(req)
}

func getSession(cookie *http.Cookie, bearer string) apiResponse {
	GinkgoHelper()
	req, err := http.NewRequestWithContext(env.ctx, http.MethodGet, env.server.URL+"/api/session", nil)
	Expect(err).NotTo(HaveOccurred())
	if cookie != nil {
		req.AddCookie(cookie)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return do(req)
}

func do(req *http.Request) apiResponse {
	GinkgoHelper()
	resp, err := env.server.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var envelope struct {
		Status int               `json:"status"`
		Data   map[string]string `json:"data"`
		Error  string            `json:"error"`
	}
	Expect(json.NewDecoder(resp.Body).Decode(&envelope)).To(Succeed())
	Expect(resp.Header.Get("Content-Type")).To(HavePrefix("application/json"))
	Expect(resp.Header.Get("Cache-Control")).To(Equal("no-store"))

	return apiResponse{
		code:    resp.StatusCode,
		status:  envelope.Status,
		data:    envelope.Data,
		kind:    envelope.Error,
		cookies: resp.Cookies(),
		header:  resp.Header,
	}
}

// sessionCookie returns the session cookie set by resp.
func sessionCookie(resp apiResponse) *http.Cookie {
	GinkgoHelper()
	for _, c := range resp.cookies {
		if c.Name == "session" {
			return &http.Cookie{Name: c.Name, Value: c.Value}
		}
	}
	Fail("response set no session cookie")
	return nil
}

func credentials(username, password string, remember bool) map[string]any {
	return map[string]any{"username": username, "password": password, "remember": remember}
}

var _ = Describe("Registration", func() {
	It("creates a user and a resolvable session", func() {
		username := uniqueName("alice")

		resp := post("/register", credentials(username, "hunter2", false), nil)
		Expect(resp.code).To(Equal(http.StatusCreated))
		Expect(resp.status).To(Equal(http.StatusCreated))

		cookie := sessionCookie(resp)
		Expect(resp.data["session_id"]).To(Equal(cookie.Value))
		Expect(cookie.Value).To(HaveLen(64))

		setCookie := resp.header.Get("Set-Cookie")
		Expect(setCookie).To(ContainSubstring("HttpOnly"))
		Expect(setCookie).To(ContainSubstring("Secure"))
		Expect(setCookie).To(ContainSubstring("SameSite=Strict"))

		session := getSession(cookie, "")
		Expect(session.code).To(Equal(http.StatusOK))
		Expect(session.data["session_id"]).To(Equal(cookie.Value))
		Expect(session.data["user_id"]).NotTo(BeEmpty())
	})

	It("rejects a taken username with 409", func() {
		username := uniqueName("bob")
		Expect(post("/api/register", credentials(username, "pw-one", false), nil).code).To(Equal(http.StatusCreated))

		resp := post("/api/register", credentials(username, "pw-two", false), nil)
		Expect(resp.code).To(Equal(http.StatusConflict))
		Expect(resp.kind).To(Equal("UserAlreadyExists"))
		Expect(resp.cookies).To(BeEmpty())
	})

	It("treats usernames as case-sensitive", func() {
		username := uniqueName("Carol")
		Expect(post("/register", credentials(username, "pw", false), nil).code).To(Equal(http.StatusCreated))
		Expect(post("/register", credentials(strings.ToUpper(username), "pw", false), nil).code).To(Equal(http.StatusCreated))
	})

	It("lets exactly one of many concurrent registrations win", func() {
		username := uniqueName("race")
		const attempts = 8

		codes := make(chan int, attempts)
		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()
				codes <- post("/register", credentials(username, fmt.Sprintf("pw-%d", i), false), nil).code
			}(i)
		}
		wg.Wait()
		close(codes)

		counts := map[int]int{}
		for code := range codes {
			counts[code]++
		}
		Expect(counts).To(Equal(map[int]int{
			http.StatusCreated:  1,
			http.StatusConflict: attempts - 1,
		}))
	})

	It("rejects malformed bodies with 400", func() {
		for _, body := range []any{
			`{"username":`,
			map[string]any{"username": "", "password": "pw"},
			map[string]any{"username": uniqueName("dave")},
			map[string]any{"username": uniqueName("erin"), "password": "pw", "admin": true},
		} {
			resp := post("/register", body, nil)
			Expect(resp.code).To(Equal(http.StatusBadRequest), "body %v", body)
			Expect(resp.kind).To(Equal("InvalidRequest"))
		}
	})
})

var _ = Describe("Login", func() {
	var username string

	BeforeEach(func() {
		username = uniqueName("frank")
		Expect(post("/register", credentials(username, "correct horse", false), nil).code).To(Equal(http.StatusCreated))
	})

	It("issues a new session for the right password", func() {
		resp := post("/login", credentials(username, "correct horse", false), nil)
		Expect(resp.code).To(Equal(http.StatusOK))
		Expect(resp.status).To(Equal(http.StatusOK))
		Expect(getSession(sessionCookie(resp), "").code).To(Equal(http.StatusOK))
	})

	It("returns IncorrectCredentials for a wrong password", func() {
		resp := post("/api/login", credentials(username, "battery staple", false), nil)
		Expect(resp.code).To(Equal(http.StatusUnauthorized))
		Expect(resp.kind).To(Equal("IncorrectCredentials"))
		Expect(resp.cookies).To(BeEmpty())
	})

	It("returns InvalidCredentials for an unknown user", func() {
		resp := post("/api/login", credentials(uniqueName("nobody"), "correct horse", false), nil)
		Expect(resp.code).To(Equal(http.StatusUnauthorized))
		Expect(resp.kind).To(Equal("InvalidCredentials"))
	})

	It("counts attempts by outcome", func() {
		before := testutil.ToFloat64(env.metrics.AuthAttemptsTotal.WithLabelValues("login", "IncorrectCredentials"))
		post("/login", credentials(username, "nope", false), nil)
		after := testutil.ToFloat64(env.metrics.AuthAttemptsTotal.WithLabelValues("login", "IncorrectCredentials"))
		Expect(after - before).To(Equal(1.0))
	})
})

var _ = Describe("Session expiry", func() {
	var username string

	BeforeEach(func() {
		username = uniqueName("grace")
		Expect(post("/register", credentials(username, "pw", false), nil).code).To(Equal(http.StatusCreated))
	})

	It("expires short sessions after the TTL", func() {
		cookie := sessionCookie(post("/login", credentials(username, "pw", false), nil))

		env.clock.Advance(9 * time.Second)
		Expect(getSession(cookie, "").code).To(Equal(http.StatusOK))

		env.clock.Advance(time.Second)
		resp := getSession(cookie, "")
		Expect(resp.code).To(Equal(http.StatusUnauthorized))
		Expect(resp.kind).To(Equal("SessionExpired"))
	})

	It("keeps remembered sessions alive with a far-future cookie", func() {
		resp := post("/login", credentials(username, "pw", true), nil)
		Expect(resp.header.Get("Set-Cookie")).To(ContainSubstring("Expires=Thu, 31 Dec 2037 23:55:55 GMT"))
		cookie := sessionCookie(resp)

		env.clock.Advance(365 * 24 * time.Hour)
		Expect(getSession(cookie, "").code).To(Equal(http.StatusOK))
	})

	It("purges only expired sessions", func() {
		short := sessionCookie(post("/login", credentials(username, "pw", false), nil))
		long := sessionCookie(post("/login", credentials(username, "pw", true), nil))

		env.clock.Advance(time.Minute)
		n, err := env.sessions.PurgeExpired(env.ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeNumerically(">=", 1))

		Expect(getSession(short, "").kind).To(Equal("SessionNotFound"))
		Expect(getSession(long, "").code).To(Equal(http.StatusOK))
	})

	It("accepts the session id as a bearer token", func() {
		cookie := sessionCookie(post("/login", credentials(username, "pw", true), nil))
		resp := getSession(nil, cookie.Value)
		Expect(resp.code).To(Equal(http.StatusOK))
		Expect(resp.data["session_id"]).To(Equal(cookie.Value))
	})
})

var _ = Describe("Logout", func() {
	It("revokes the session and clears the cookie", func() {
		username := uniqueName("heidi")
		cookie := sessionCookie(post("/register", credentials(username, "pw", true), nil))

		resp := post("/logout", nil, cookie)
		Expect(resp.code).To(Equal(http.StatusOK))
		Expect(resp.header.Get("Set-Cookie")).To(ContainSubstring("Max-Age=0"))

		Expect(getSession(cookie, "").kind).To(Equal("SessionNotFound"))

		again := post("/api/logout", nil, cookie)
		Expect(again.code).To(Equal(http.StatusUnauthorized))
		Expect(again.kind).To(Equal("SessionNotFound"))
	})

	It("returns 401 without a session", func() {
		resp := post("/logout", nil, nil)
		Expect(resp.code).To(Equal(http.StatusUnauthorized))
		Expect(resp.kind).To(Equal("SessionNotFound"))
	})
})
