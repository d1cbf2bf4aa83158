// ABOUTME: Entry point for academy-gateway, the chess academy site backend
// ABOUTME: Serves the gallery, form relay and admin API; bootstraps the first admin

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/2389/academy-gateway/internal/auth"
	"github.com/2389/academy-gateway/internal/client"
	"github.com/2389/academy-gateway/internal/config"
	"github.com/2389/academy-gateway/internal/server"
	"github.com/2389/academy-gateway/internal/store"
)

// Version is set at build time.
var version = "dev"

const banner = `
                      _
  __ _  ___ __ _  __| | ___ _ __ ___  _   _
 / _' |/ __/ _' |/ _' |/ _ \ '_ ' _ \| | | |
| (_| | (_| (_| | (_| |  __/ | | | | | |_| |
 \__,_|\___\__,_|\__,_|\___|_| |_| |_|\__, |
                                      |___/
`

// passwordEnvVar lets bootstrap run without a terminal.
const passwordEnvVar = "ACADEMY_ADMIN_PASSWORD"

// getDataPath returns the path to the academy data directory.
// Priority: XDG_DATA_HOME/academy > ~/.local/share/academy
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "academy")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: academy-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                        Start the HTTP server")
		fmt.Println("  init                         Write a config file with a fresh JWT secret")
		fmt.Println("  bootstrap --username NAME    Create the first admin and save a session token")
		fmt.Println("  health                       Check server readiness")
		os.Exit(1)
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "bootstrap":
		err = runBootstrap(ctx, os.Args[2:])
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.Path()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s (%s)\n", cfg.Database.Path, cfg.Database.Driver)
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}
	if len(cfg.Proxy.AllowedHosts) == 0 {
		color.New(color.FgYellow).Println("    ! proxy.allowed_hosts is empty; form relay accepts any host")
	}
	fmt.Println()

	logger.Info("starting academy-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"version", version,
	)

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}

// generateSecret returns a random base64 secret long enough for auth.MinSecretLength.
func generateSecret() (string, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(secretBytes), nil
}

func configTemplate(dbPath, jwtSecret string) string {
	return fmt.Sprintf(`# academy-gateway configuration

server:
  http_addr: "localhost:8080"

database:
  path: "%s"
  driver: "sqlite"

auth:
  jwt_secret: "%s"
  session_ttl: "24h"
  cookie_secure: false

proxy:
  allowed_hosts:
    - "script.google.com"
    - ".googleusercontent.com"
  timeout: "15s"
  duplicate_window: "1m"

logging:
  level: "info"
  format: "text"

metrics:
  enabled: true
  path: "/metrics"
`, dbPath, jwtSecret)
}

// writeDefaultConfig creates the config file if missing and reports whether it did.
func writeDefaultConfig(configPath string) (bool, error) {
	if _, err := os.Stat(configPath); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("checking config file: %w", err)
	}

	jwtSecret, err := generateSecret()
	if err != nil {
		return false, err
	}

	dataPath := getDataPath()
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return false, fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return false, fmt.Errorf("creating data directory: %w", err)
	}

	content := configTemplate(filepath.Join(dataPath, "academy.db"), jwtSecret)
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		return false, fmt.Errorf("writing config file: %w", err)
	}
	return true, nil
}

func runInit() error {
	configPath := config.Path()
	created, err := writeDefaultConfig(configPath)
	if err != nil {
		return err
	}
	if !created {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	color.New(color.FgGreen).Printf("  ✓ Created config: %s\n", configPath)
	fmt.Println("\nNext:")
	fmt.Println("  academy-gateway bootstrap --username <name>")
	return nil
}

type bootstrapArgs struct {
	username    string
	displayName string
}

// parseBootstrapArgs accepts "--flag value" and "--flag=value".
func parseBootstrapArgs(args []string) (bootstrapArgs, error) {
	var out bootstrapArgs
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		var dst *string
		switch name {
		case "--username", "-u":
			dst = &out.username
		case "--name", "-n":
			dst = &out.displayName
		default:
			if strings.HasPrefix(arg, "-") {
				return out, fmt.Errorf("unknown flag: %s", arg)
			}
			return out, fmt.Errorf("unexpected argument: %s", arg)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return out, fmt.Errorf("%s requires a value", name)
			}
			value = args[i+1]
			i++
		}
		*dst = strings.TrimSpace(value)
	}

	if out.username == "" {
		return out, fmt.Errorf("--username flag is required")
	}
	if len(out.username) > 64 {
		return out, fmt.Errorf("username exceeds maximum length of 64 characters")
	}
	if out.displayName == "" {
		out.displayName = out.username
	}
	return out, nil
}

// readPassword prompts without echo on a terminal, otherwise reads one line
// from stdin. ACADEMY_ADMIN_PASSWORD takes precedence.
func readPassword(prompt string) (string, error) {
	if pw := os.Getenv(passwordEnvVar); pw != "" {
		return pw, nil
	}

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Print(prompt)
		pw, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// runBootstrap performs first-time setup:
// 1. Creates config file with random JWT secret (if not exists)
// 2. Creates the database and the first admin user
// 3. Logs that admin in and saves the session token for academy-admin
func runBootstrap(ctx context.Context, args []string) error {
	opts, err := parseBootstrapArgs(args)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	configPath := config.Path()
	created, err := writeDefaultConfig(configPath)
	if err != nil {
		return err
	}
	if created {
		green.Printf("  ✓ Created config: %s\n", configPath)
	} else {
		cyan.Printf("  Using existing config: %s\n", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: cfg.Logging.Format})

	password, err := readPassword("  Password for " + opts.username + ": ")
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	s, err := store.Open(store.Options{
		Path:        cfg.Database.Path,
		Driver:      cfg.Database.Driver,
		BusyTimeout: cfg.Database.BusyTimeout,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	green.Printf("  ✓ Database: %s\n", cfg.Database.Path)

	user := &store.AdminUser{
		Username:     opts.username,
		PasswordHash: hash,
		DisplayName:  opts.displayName,
	}
	if err := s.BootstrapAdmin(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyBootstrapped) {
			return fmt.Errorf("bootstrap already complete: an admin user exists")
		}
		return fmt.Errorf("creating admin user: %w", err)
	}
	green.Printf("  ✓ Created admin: %s\n", opts.username)

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}
	res, err := auth.NewIssuer(s, verifier, cfg.Auth.SessionTTL, logger).Login(ctx, opts.username, password)
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	tokenPath, err := client.DefaultTokenPath()
	if err != nil {
		return err
	}
	if err := (client.FileToken{Path: tokenPath}).Save(res.Token); err != nil {
		return err
	}
	green.Printf("  ✓ Saved token: %s\n", tokenPath)

	fmt.Println()
	green.Println("  Bootstrap complete!")
	fmt.Println()
	cyan.Println("  Admin")
	cyan.Println("  -----")
	fmt.Printf("  ID:           %s\n", user.ID)
	fmt.Printf("  Username:     %s\n", user.Username)
	fmt.Printf("  Display Name: %s\n", user.DisplayName)
	fmt.Printf("  Session:      expires %s\n", res.ExpiresAt.Local().Format(time.RFC1123))
	fmt.Println()

	yellow.Println("  Ready to go:")
	fmt.Println("    academy-gateway serve    # start the server")
	fmt.Println("    academy-admin me         # verify your identity")
	fmt.Println()

	return nil
}
