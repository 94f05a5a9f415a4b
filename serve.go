package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/bridge"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge for browser and editor integrations",
	Long: paragraph(fmt.Sprintf("\nServe the speech transport over HTTP on %s. Other readaloud commands such as %s and %s control it, and %s streams its notifications.",
		keyword(bridge.DefaultAddr), keyword("pause"), keyword("forward"), keyword("GET /events"))),
	Example: paragraph("readaloud serve\nREADALOUD_SERVE_ADDR=127.0.0.1:9000 readaloud serve"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		store, err := settingsStore()
		if err != nil {
			return err
		}

		server := bridge.NewServer(a.transport, bridge.Options{
			Voices:   a.adapter,
			Reader:   newReader(),
			Settings: store,
			History:  a.history,
			Voice:    a.cfg.Voice,
			Logger:   log.Default().WithPrefix("bridge"),
		})
		// Registered last so that it shuts down first.
		a.lifecycle.Register(server)
		a.lifecycle.Start()

		addr := viper.GetString("serve.addr")
		fmt.Println("Listening on", addr)
		log.Info("Bridge listening", "addr", addr, "engine", a.adapter.Name())

		serveErr := server.ListenAndServe(addr)
		if err := a.close(); err != nil {
			log.Warn("Shutdown incomplete", "error", err)
		}
		return serveErr //nolint:wrapcheck
	},
}
