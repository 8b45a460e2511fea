// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/z5labs/hearth"
	"github.com/z5labs/hearth/pkg/logging"
	"github.com/z5labs/hearth/pkg/slogfield"
	"github.com/z5labs/hearth/router"
	"github.com/z5labs/hearth/server"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var (
	rootTag        = router.TagOf("/")
	healthTag      = router.TagOf("/health")
	serviceRootTag = router.TagOf("/redfish/v1/")
	systemsTag     = router.TagOf("/redfish/v1/Systems")
	echoTag        = router.TagOf("/ws/echo")
)

// systemID is the only system this server describes.
const systemID = "system"

type odataID struct {
	ID string `json:"@odata.id"`
}

func registerRoutes(app *hearth.App, log *slog.Logger) {
	app.Route(rootTag, "/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "hearth\n")
	})

	app.Route(healthTag, "/health").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": app.State().String()})
	})

	app.Route(serviceRootTag, "/redfish/v1/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			odataID
			ID      string  `json:"Id"`
			Name    string  `json:"Name"`
			Systems odataID `json:"Systems"`
		}{
			odataID: odataID{ID: "/redfish/v1/"},
			ID:      "RootService",
			Name:    "Root Service",
			Systems: odataID{ID: "/redfish/v1/Systems"},
		})
	})

	app.Route(systemsTag, "/redfish/v1/Systems").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			odataID
			Name    string    `json:"Name"`
			Count   int       `json:"Members@odata.count"`
			Members []odataID `json:"Members"`
		}{
			odataID: odataID{ID: "/redfish/v1/Systems"},
			Name:    "Computer System Collection",
			Count:   1,
			Members: []odataID{{ID: "/redfish/v1/Systems/" + systemID}},
		})
	})

	app.RouteDynamic("/redfish/v1/Systems/{id}").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		log.DebugContext(
			r.Context(),
			"looking up system",
			slogfield.String("system_id", id),
			slogfield.RequestID(server.RequestID(r.Context())),
		)
		if id != systemID {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			odataID
			ID   string `json:"Id"`
			Name string `json:"Name"`
		}{
			odataID: odataID{ID: "/redfish/v1/Systems/" + id},
			ID:      id,
			Name:    "hearth",
		})
	})

	app.Route(echoTag, "/ws/echo").Upgrade(router.UpgradeHandlerFunc(echo(log)))
}

func echo(log *slog.Logger) func(context.Context, *websocket.Conn, *http.Request) {
	return func(ctx context.Context, conn *websocket.Conn, r *http.Request) {
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.WarnContext(ctx, "echo connection failed", slogfield.Error(err))
				}
				return
			}
			err = conn.WriteMessage(mt, msg)
			if err != nil {
				log.WarnContext(ctx, "failed to echo message", slogfield.Error(err))
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newRoutesCmd(opts *globalOptions) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "routes [prefix]",
		Short: "Validate the route table and print the registered patterns",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := readConfig(opts.configPath, opts.envFile)
			if err != nil {
				return err
			}

			var logHandler slog.Handler = logging.DiscardHandler{}
			if debug {
				logHandler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
			}

			app := newApp(cfg, logHandler)
			err = app.Validate()
			if err != nil {
				return hearth.ValidationError{Cause: err}
			}
			app.DebugPrint(cmd.Context())

			var prefix string
			if len(args) > 0 {
				prefix = args[0]
			}
			for _, pattern := range app.Routes(prefix) {
				fmt.Fprintln(cmd.OutOrStdout(), pattern)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&debug, "debug", false, "log every rule at debug level to stderr")
	return cmd
}
