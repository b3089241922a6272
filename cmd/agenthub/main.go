package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/agenthub-dev/agenthub/internal/app"
	"github.com/agenthub-dev/agenthub/internal/config"
	dbpkg "github.com/agenthub-dev/agenthub/internal/db"
	"github.com/agenthub-dev/agenthub/internal/probe"
	"github.com/agenthub-dev/agenthub/internal/storage"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "agenthub",
		Short:         "AgentHub backend service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFile, "path to the configuration file")

	root.AddCommand(serveCmd(), migrateCmd(), probeCmd(), storageCmd())

	if err := root.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

// loadConfig resolves and loads the shared configuration, then applies its
// logging section.
func loadConfig() (*config.Config, error) {
	cfg, errLoad := config.Load(config.ResolveConfigPath(configPath))
	if errLoad != nil {
		return nil, errLoad
	}
	config.SetupLogging(cfg.Logging)
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, errLoad := loadConfig()
			if errLoad != nil {
				return errLoad
			}
			ctx, cancel := signalContext()
			defer cancel()
			return app.RunServer(ctx, cfg)
		},
	}
}

func migrateCmd() *cobra.Command {
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Manage schema revisions",
	}

	migrate.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending schema revisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, errLoad := loadConfig()
			if errLoad != nil {
				return errLoad
			}
			conn, errOpen := dbpkg.Open(cfg.Database.DSN)
			if errOpen != nil {
				return errOpen
			}
			if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
				return errMigrate
			}
			log.Info("migrate: schema is up to date")
			return nil
		},
	})

	var downTarget string
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert schema revisions down to, but not including, the target",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, errLoad := loadConfig()
			if errLoad != nil {
				return errLoad
			}
			conn, errOpen := dbpkg.Open(cfg.Database.DSN)
			if errOpen != nil {
				return errOpen
			}
			if errDown := dbpkg.Downgrade(conn, downTarget); errDown != nil {
				return errDown
			}
			if downTarget == "" {
				log.Info("migrate: all revisions reverted")
			} else {
				log.Infof("migrate: reverted down to %s", downTarget)
			}
			return nil
		},
	}
	down.Flags().StringVar(&downTarget, "target", "", "revision to stop at (empty reverts everything)")
	migrate.AddCommand(down)

	migrate.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show each schema revision and whether it is applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, errLoad := loadConfig()
			if errLoad != nil {
				return errLoad
			}
			conn, errOpen := dbpkg.Open(cfg.Database.DSN)
			if errOpen != nil {
				return errOpen
			}
			statuses, errStatus := dbpkg.Status(conn)
			if errStatus != nil {
				return errStatus
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REVISION\tAPPLIED\tAPPLIED AT")
			for _, status := range statuses {
				appliedAt := "-"
				if status.Applied {
					appliedAt = status.AppliedAt.Format("2006-01-02 15:04:05")
				}
				fmt.Fprintf(w, "%s\t%t\t%s\n", status.ID, status.Applied, appliedAt)
			}
			return w.Flush()
		},
	})

	return migrate
}

func probeCmd() *cobra.Command {
	var baseURL, username, password string
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Run the HTTP smoke checks against a live deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner := probe.NewRunner(baseURL, username, password)
			report, errRun := runner.Run(cmd.Context())
			if errRun != nil {
				return errRun
			}
			if failed := report.Failed(); failed > 0 {
				return fmt.Errorf("probe: %d steps failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:3000", "deployment base URL")
	cmd.Flags().StringVar(&username, "username", "", "login username (skips authenticated steps when empty)")
	cmd.Flags().StringVar(&password, "password", "", "login password")
	return cmd
}

func storageCmd() *cobra.Command {
	storageRoot := &cobra.Command{
		Use:   "storage",
		Short: "Inspect the S3-compatible object store",
	}

	var prefix string
	var limit int
	ls := &cobra.Command{
		Use:   "ls",
		Short: "List objects in the configured bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, errLoad := loadConfig()
			if errLoad != nil {
				return errLoad
			}
			inspector, errInspector := storage.NewInspector(cfg.Storage)
			if errInspector != nil {
				return errInspector
			}
			objects, errList := inspector.List(cmd.Context(), prefix, limit)
			if errList != nil {
				return errList
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tSIZE\tLAST MODIFIED")
			for _, object := range objects {
				fmt.Fprintf(w, "%s\t%d\t%s\n", object.Key, object.Size, object.LastModified.Format("2006-01-02 15:04:05"))
			}
			if errFlush := w.Flush(); errFlush != nil {
				return errFlush
			}
			log.Infof("storage: %d objects in bucket %s", len(objects), inspector.Bucket())
			return nil
		},
	}
	ls.Flags().StringVar(&prefix, "prefix", "", "only list keys under this prefix")
	ls.Flags().IntVar(&limit, "limit", 0, "maximum objects to list (0 = unlimited)")
	storageRoot.AddCommand(ls)

	return storageRoot
}
