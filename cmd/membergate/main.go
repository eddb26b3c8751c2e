package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/PaulFidika/membergate/jobs"
	migrations "github.com/PaulFidika/membergate/migrations/postgres"
	"github.com/PaulFidika/membergate/password"
	"github.com/spf13/cobra"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "membergate",
	Short:         "Subscription gate for a members-only video site",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML/TOML/JSON config file")
	hashSecretCmd.Flags().String("algo", "bcrypt", "bcrypt or argon2id")
	migrateCmd.Flags().Bool("down", false, "roll back the last applied schema group")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(hashSecretCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "membergate %s\n", Version)
		if GitCommit != "unknown" {
			fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", GitCommit)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server, job workers and the subscription sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema and job-queue migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Postgres.URI == "" {
			return fmt.Errorf("postgres.uri is required to migrate")
		}
		pool, err := openPool(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer pool.Close()

		db := migrations.OpenBun(pool)
		defer db.Close()

		if down, _ := cmd.Flags().GetBool("down"); down {
			group, err := migrations.Down(ctx, db)
			if err != nil {
				return err
			}
			if group == nil || group.IsZero() {
				log.Info("nothing to roll back")
			} else {
				log.WithField("group", group.String()).Info("schema rolled back")
			}
			return nil
		}

		group, err := migrations.Up(ctx, db)
		if err != nil {
			return err
		}
		if group == nil {
			log.Info("schema already current")
		} else {
			log.WithField("group", group.String()).Info("schema migrated")
		}
		if err := jobs.Migrate(ctx, pool); err != nil {
			return err
		}
		log.Info("job queue migrated")
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <checkout_session_id>",
	Short: "Copy one completed checkout into the subscription store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := buildApp(ctx, cfg, log, false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.svc.Reconcile.Reconcile(ctx, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

var hashSecretCmd = &cobra.Command{
	Use:   "hash-secret <secret>",
	Short: "Hash an operator secret for admin.secret",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		algo, _ := cmd.Flags().GetString("algo")
		h, err := password.HashSecret(algo, strings.TrimSpace(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), h)
		return nil
	},
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
