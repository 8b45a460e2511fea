// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package router

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, body)
	}
}

func serve(t *testing.T, r *Router, method, target string) *http.Response {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	r.Handle(w, req)
	return w.Result()
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

var (
	healthTag = TagOf("/health")
	rootTag   = TagOf("/")
)

func TestTagOf(t *testing.T) {
	t.Run("will be deterministic", func(t *testing.T) {
		assert.Equal(t, TagOf("/redfish/v1"), TagOf("/redfish/v1"))
	})

	t.Run("will differ for different patterns", func(t *testing.T) {
		assert.NotEqual(t, TagOf("/redfish/v1"), TagOf("/redfish/v1/"))
	})

	t.Run("will render as hex", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(healthTag.String(), "0x"))
	})
}

func TestRouter_Validate(t *testing.T) {
	t.Run("will return a TagConflictError", func(t *testing.T) {
		t.Run("if the same tag is registered with a different pattern", func(t *testing.T) {
			r := New()
			r.NewRuleTagged(healthTag, "/health").HandlerFunc(ok("health"))
			r.NewRuleTagged(healthTag, "/healthz").HandlerFunc(ok("healthz"))

			err := r.Validate()

			var terr TagConflictError
			if !assert.ErrorAs(t, err, &terr) {
				return
			}
			if !assert.Equal(t, "/healthz", terr.Pattern) {
				return
			}
			if !assert.Equal(t, "/health", terr.Existing) {
				return
			}
			if !assert.False(t, r.Validated()) {
				return
			}
		})
	})

	t.Run("will return a TagMismatchError", func(t *testing.T) {
		t.Run("if the tag is not the hash of the pattern", func(t *testing.T) {
			r := New()
			r.NewRuleTagged(healthTag, "/status").HandlerFunc(ok("status"))

			err := r.Validate()

			var terr TagMismatchError
			if !assert.ErrorAs(t, err, &terr) {
				return
			}
			if !assert.Equal(t, "/status", terr.Pattern) {
				return
			}
		})
	})

	t.Run("will not share tags between routers", func(t *testing.T) {
		a := New()
		a.NewRuleTagged(healthTag, "/health").HandlerFunc(ok("a"))

		b := New()
		b.NewRuleTagged(healthTag, "/health").HandlerFunc(ok("b"))

		if !assert.Nil(t, a.Validate()) {
			return
		}
		if !assert.Nil(t, b.Validate()) {
			return
		}
	})

	t.Run("will return a MissingHandlerError", func(t *testing.T) {
		t.Run("if a rule has no handler", func(t *testing.T) {
			r := New()
			r.NewRuleDynamic("/redfish/v1")

			err := r.Validate()

			var merr MissingHandlerError
			if !assert.ErrorAs(t, err, &merr) {
				return
			}
			if !assert.Equal(t, "/redfish/v1", merr.Pattern) {
				return
			}
		})
	})

	t.Run("will return an InvalidPatternError", func(t *testing.T) {
		testCases := []struct {
			Name    string
			Pattern string
		}{
			{Name: "if the pattern is empty", Pattern: ""},
			{Name: "if the pattern is relative", Pattern: "redfish"},
			{Name: "if the pattern contains a method", Pattern: "/x GET"},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				r := New()
				r.NewRuleDynamic(testCase.Pattern).HandlerFunc(ok(""))

				err := r.Validate()

				var perr InvalidPatternError
				if !assert.ErrorAs(t, err, &perr) {
					return
				}
			})
		}
	})

	t.Run("will return a RuleConflictError", func(t *testing.T) {
		t.Run("if the same method and pattern are registered twice", func(t *testing.T) {
			r := New()
			r.NewRuleDynamic("/redfish/v1").HandlerFunc(ok("one"))
			r.NewRuleDynamic("/redfish/v1").HandlerFunc(ok("two"))

			err := r.Validate()

			var cerr RuleConflictError
			if !assert.ErrorAs(t, err, &cerr) {
				return
			}
			if !assert.Equal(t, http.MethodGet, cerr.Method) {
				return
			}
		})

		t.Run("if the pattern is malformed for the dispatcher", func(t *testing.T) {
			r := New()
			r.NewRuleDynamic("/systems/{id").HandlerFunc(ok(""))

			err := r.Validate()

			var cerr RuleConflictError
			if !assert.ErrorAs(t, err, &cerr) {
				return
			}
		})
	})

	t.Run("will join every problem", func(t *testing.T) {
		r := New()
		r.NewRuleDynamic("/a")
		r.NewRuleDynamic("b").HandlerFunc(ok(""))

		err := r.Validate()

		var merr MissingHandlerError
		if !assert.ErrorAs(t, err, &merr) {
			return
		}
		var perr InvalidPatternError
		if !assert.ErrorAs(t, err, &perr) {
			return
		}
	})

	t.Run("will return ErrAlreadyValidated", func(t *testing.T) {
		t.Run("if called twice", func(t *testing.T) {
			r := New()
			require.NoError(t, r.Validate())

			err := r.Validate()
			if !assert.ErrorIs(t, err, ErrAlreadyValidated) {
				return
			}
		})
	})

	t.Run("will panic", func(t *testing.T) {
		t.Run("if a rule is registered after validation", func(t *testing.T) {
			r := New()
			require.NoError(t, r.Validate())

			assert.PanicsWithValue(t, ErrRegistrationClosed, func() {
				r.NewRuleDynamic("/late")
			})
		})
	})
}

func TestRouter_Handle(t *testing.T) {
	t.Run("will return 503", func(t *testing.T) {
		t.Run("if the router has not been validated", func(t *testing.T) {
			r := New()
			r.NewRuleTagged(rootTag, "/").HandlerFunc(ok("root"))

			resp := serve(t, r, http.MethodGet, "/")
			if !assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode) {
				return
			}
		})
	})

	t.Run("will dispatch to the matching rule", func(t *testing.T) {
		r := New()
		r.NewRuleTagged(rootTag, "/").HandlerFunc(ok("root"))
		r.NewRuleTagged(healthTag, "/health").HandlerFunc(ok("healthy"))
		r.NewRuleDynamic("/redfish/v1/Systems/{id}").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			io.WriteString(w, req.PathValue("id"))
		})
		r.NewRuleDynamic("/redfish/v1/").HandlerFunc(ok("service root"))
		r.NewRuleDynamic("/redfish/v1/Sessions").Methods("post").HandlerFunc(ok("created"))
		require.NoError(t, r.Validate())

		testCases := []struct {
			Name   string
			Method string
			Target string
			Status int
			Body   string
		}{
			{Name: "if the path is the root", Method: http.MethodGet, Target: "/", Status: http.StatusOK, Body: "root"},
			{Name: "if the path is static", Method: http.MethodGet, Target: "/health", Status: http.StatusOK, Body: "healthy"},
			{Name: "if the path has a wildcard", Method: http.MethodGet, Target: "/redfish/v1/Systems/system", Status: http.StatusOK, Body: "system"},
			{Name: "if the path ends with a slash", Method: http.MethodGet, Target: "/redfish/v1/", Status: http.StatusOK, Body: "service root"},
			{Name: "if the method was restricted", Method: http.MethodPost, Target: "/redfish/v1/Sessions", Status: http.StatusOK, Body: "created"},
			{Name: "if HEAD is sent to a GET rule", Method: http.MethodHead, Target: "/health", Status: http.StatusOK},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				resp := serve(t, r, testCase.Method, testCase.Target)
				if !assert.Equal(t, testCase.Status, resp.StatusCode) {
					return
				}
				if testCase.Body == "" {
					return
				}
				if !assert.Equal(t, testCase.Body, readBody(t, resp)) {
					return
				}
			})
		}

		t.Run("will return 404 if a trailing slash pattern is asked for a sub path", func(t *testing.T) {
			resp := serve(t, r, http.MethodGet, "/redfish/v1/Managers")
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		})

		t.Run("will return 404 if the root pattern is asked for a sub path", func(t *testing.T) {
			resp := serve(t, r, http.MethodGet, "/missing")
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		})

		t.Run("will return 405 if the method is not registered", func(t *testing.T) {
			resp := serve(t, r, http.MethodDelete, "/health")
			assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		})
	})

	t.Run("will return 426", func(t *testing.T) {
		t.Run("if a rule only handles upgrades", func(t *testing.T) {
			r := New()
			r.NewRuleDynamic("/console").Upgrade(UpgradeHandlerFunc(func(ctx context.Context, conn *websocket.Conn, req *http.Request) {}))
			require.NoError(t, r.Validate())

			resp := serve(t, r, http.MethodGet, "/console")
			if !assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode) {
				return
			}
			if !assert.Equal(t, "websocket", resp.Header.Get("Upgrade")) {
				return
			}
		})
	})

	t.Run("will use the custom fallback handlers", func(t *testing.T) {
		r := New(
			NotFoundHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			})),
			MethodNotAllowedHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(http.StatusConflict)
			})),
		)
		r.NewRuleDynamic("/health").HandlerFunc(ok("healthy"))
		require.NoError(t, r.Validate())

		if !assert.Equal(t, http.StatusTeapot, serve(t, r, http.MethodGet, "/nope").StatusCode) {
			return
		}
		if !assert.Equal(t, http.StatusConflict, serve(t, r, http.MethodPost, "/health").StatusCode) {
			return
		}
		if !assert.Equal(t, http.StatusOK, serve(t, r, http.MethodHead, "/health").StatusCode) {
			return
		}
	})
}

func TestRouter_HandleUpgrade(t *testing.T) {
	newServer := func(t *testing.T, r *Router) *httptest.Server {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if websocket.IsWebSocketUpgrade(req) {
				r.HandleUpgrade(w, req)
				return
			}
			r.Handle(w, req)
		}))
		t.Cleanup(srv.Close)
		return srv
	}

	wsURL := func(srv *httptest.Server, path string) string {
		return "ws" + strings.TrimPrefix(srv.URL, "http") + path
	}

	t.Run("will hand the connection to the upgrade handler", func(t *testing.T) {
		r := New()
		r.NewRuleDynamic("/console").Upgrade(UpgradeHandlerFunc(func(ctx context.Context, conn *websocket.Conn, req *http.Request) {
			for {
				typ, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				err = conn.WriteMessage(typ, append([]byte("echo: "), msg...))
				if err != nil {
					return
				}
			}
		}))
		require.NoError(t, r.Validate())

		srv := newServer(t, r)

		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/console"), nil)
		if !assert.Nil(t, err) {
			return
		}
		defer conn.Close()

		err = conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		if !assert.Nil(t, err) {
			return
		}
		_, msg, err := conn.ReadMessage()
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, "echo: hello", string(msg)) {
			return
		}
	})

	t.Run("will expose wildcard path values to the upgrade handler", func(t *testing.T) {
		r := New()
		r.NewRuleDynamic("/ws/{id}").Upgrade(UpgradeHandlerFunc(func(ctx context.Context, conn *websocket.Conn, req *http.Request) {
			conn.WriteMessage(websocket.TextMessage, []byte(req.PathValue("id")))
		}))
		require.NoError(t, r.Validate())

		srv := newServer(t, r)

		conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/abc"), nil)
		if !assert.Nil(t, err) {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if !assert.Nil(t, err) {
			return
		}
		if !assert.Equal(t, "abc", string(msg)) {
			return
		}
	})

	t.Run("will return 404", func(t *testing.T) {
		r := New()
		r.NewRuleDynamic("/health").HandlerFunc(ok("healthy"))
		require.NoError(t, r.Validate())

		srv := newServer(t, r)

		testCases := []struct {
			Name string
			Path string
		}{
			{Name: "if the rule has no upgrade handler", Path: "/health"},
			{Name: "if no rule matches", Path: "/missing"},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, testCase.Path), nil)
				if !assert.ErrorIs(t, err, websocket.ErrBadHandshake) {
					return
				}
				if !assert.Equal(t, http.StatusNotFound, resp.StatusCode) {
					return
				}
			})
		}
	})
}

func TestRouter_Routes(t *testing.T) {
	r := New()
	r.NewRuleTagged(rootTag, "/").HandlerFunc(ok("root"))
	r.NewRuleTagged(healthTag, "/health").HandlerFunc(ok("healthy"))
	r.NewRuleDynamic("/redfish/v1").HandlerFunc(ok(""))
	r.NewRuleDynamic("/redfish/v1/Systems").HandlerFunc(ok(""))
	r.NewRuleDynamic("/redfish/v1/Systems").Methods(http.MethodPost).HandlerFunc(ok(""))

	t.Run("will return every pattern in registration order", func(t *testing.T) {
		t.Run("if the parent is empty", func(t *testing.T) {
			assert.Equal(t, []string{"/", "/health", "/redfish/v1", "/redfish/v1/Systems"}, r.Routes(""))
		})
	})

	t.Run("will return only patterns under the parent", func(t *testing.T) {
		assert.Equal(t, []string{"/redfish/v1", "/redfish/v1/Systems"}, r.Routes("/redfish"))
	})

	t.Run("will return an empty list", func(t *testing.T) {
		t.Run("if nothing matches the parent", func(t *testing.T) {
			assert.Empty(t, r.Routes("/nope"))
		})
	})
}

func TestRouter_DebugPrint(t *testing.T) {
	t.Run("will log every rule at debug level", func(t *testing.T) {
		var buf bytes.Buffer
		r := New(LogHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
		r.NewRuleTagged(healthTag, "/health").HandlerFunc(ok("healthy"))
		r.NewRuleDynamic("/console").Upgrade(UpgradeHandlerFunc(func(context.Context, *websocket.Conn, *http.Request) {}))

		r.DebugPrint(context.Background())

		out := buf.String()
		if !assert.Equal(t, 2, strings.Count(out, "level=DEBUG")) {
			return
		}
		if !assert.Contains(t, out, "route_tag="+healthTag.String()) {
			return
		}
		if !assert.Contains(t, out, "upgrade=true") {
			return
		}
	})
}
