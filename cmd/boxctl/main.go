// Package main is boxctl, the operator tool of the box catalog: it applies
// migrations, provisions users, exports the catalog and generates
// development TLS certificates.
package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atinyakov/boxcatalog/internal/certgen"
	"github.com/atinyakov/boxcatalog/internal/config"
	"github.com/atinyakov/boxcatalog/internal/db"
	"github.com/atinyakov/boxcatalog/internal/models"
	"github.com/atinyakov/boxcatalog/internal/repository"
	"github.com/atinyakov/boxcatalog/internal/service"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v3"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}
	if err := newApp(os.Stdin, os.Stdout).Run(context.Background(), args); err != nil {
		fmt.Fprintln(os.Stderr, "boxctl:", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Interactive input is read from in and
// all output goes to out.
func newApp(in io.Reader, out io.Writer) *cli.Command {
	defaults := config.Default()

	return &cli.Command{
		Name:    "boxctl",
		Usage:   "Box catalog administration",
		Version: fmt.Sprintf("%s (built %s)", cmp.Or(version, "N/A"), cmp.Or(buildDate, "N/A")),
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "driver",
				Value:   defaults.DatabaseDriver,
				Usage:   "database driver (sqlite3|postgres)",
				Sources: cli.EnvVars("DATABASE_DRIVER"),
			},
			&cli.StringFlag{
				Name:    "dsn",
				Value:   defaults.DatabaseDSN,
				Usage:   "database connection string",
				Sources: cli.EnvVars("DATABASE_DSN"),
			},
		},
		Commands: []*cli.Command{
			migrateCommand(out),
			userCommand(in, out),
			exportCommand(out),
			certgenCommand(out),
		},
	}
}

// openDB connects using the global flags and applies pending migrations.
func openDB(cmd *cli.Command) (*sqlx.DB, error) {
	return db.Init(cmd.String("driver"), cmd.String("dsn"))
}

func migrateCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations and align the triple sequence",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			conn, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer conn.Close()

			last, err := repository.NewCatalogRepository(conn).SyncSequence(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "database is up to date, last triple number %d\n", last)
			return nil
		},
	}
}

func userCommand(in io.Reader, out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "user",
		Usage: "Manage catalog users",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create a user; prompts for the password when --password is omitted",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Required: true},
					&cli.StringFlag{Name: "password"},
					&cli.StringFlag{Name: "role", Value: string(models.RoleUser), Usage: "user or admin"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					role := models.Role(strings.ToLower(cmd.String("role")))
					if !role.Valid() {
						return fmt.Errorf("unknown role %q, want user or admin", cmd.String("role"))
					}

					password := cmd.String("password")
					if password == "" {
						var err error
						if password, err = promptPassword(in, out); err != nil {
							return err
						}
					}

					conn, err := openDB(cmd)
					if err != nil {
						return err
					}
					defer conn.Close()

					auth := service.NewAuthService(repository.NewAuthRepository(conn), 0, nil)
					if err := auth.CreateUser(ctx, cmd.String("username"), password, role); err != nil {
						return err
					}
					fmt.Fprintf(out, "user %s created with role %s\n", cmd.String("username"), role)
					return nil
				},
			},
		},
	}
}

func exportCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write the catalog as CSV",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file (default stdout)"},
			&cli.BoolFlag{Name: "bom", Usage: "prefix a UTF-8 byte order mark"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			conn, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer conn.Close()

			w := out
			if path := cmd.String("out"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			catalog := service.NewCatalogService(repository.NewCatalogRepository(conn), nil)
			return catalog.ExportCSV(ctx, w, service.ExportOptions{ExcelBOM: cmd.Bool("bom")})
		},
	}
}

func certgenCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "certgen",
		Usage: "Generate a self-signed server certificate for HTTPS",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "certs", Usage: "output directory"},
			&cli.StringSliceFlag{Name: "host", Value: []string{"localhost", "127.0.0.1"}, Usage: "DNS name or IP (repeatable)"},
			&cli.DurationFlag{Name: "valid-for", Value: 365 * 24 * time.Hour},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			certPEM, keyPEM, err := certgen.GenerateServerCertificate(cmd.StringSlice("host"), cmd.Duration("valid-for"))
			if err != nil {
				return err
			}
			certPath, keyPath, err := certgen.WriteKeyPair(cmd.String("dir"), certPEM, keyPEM)
			if err != nil {
				return err
			}
			cert, err := certgen.LoadCertificate(certPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "wrote %s and %s (valid until %s)\n", certPath, keyPath, cert.NotAfter.Format(time.RFC3339))
			fmt.Fprintf(out, "start the server with TLS_CERT=%s TLS_KEY=%s\n", certPath, keyPath)
			return nil
		},
	}
}
