// ABOUTME: Admin CLI for academy-gateway sessions, settings and gallery
// ABOUTME: Talks to the HTTP admin API with the token saved by login or bootstrap

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/2389/academy-gateway/internal/client"
)

const banner = `
                      _                                _           _
  __ _  ___ __ _  __| | ___ _ __ ___  _   _        __ _| |_ __ ___ (_)_ __
 / _' |/ __/ _' |/ _' |/ _ \ '_ ' _ \| | | |_____ / _' | | '_ ' _ \| | '_ \
| (_| | (_| (_| | (_| |  __/ | | | | | |_| |_____| (_| | | | | | | | | | | |
 \__,_|\___\__,_|\__,_|\___|_| |_| |_|\__, |      \__,_|_|_| |_| |_|_|_| |_|
                                      |___/
`

// app bundles what every command needs.
type app struct {
	cfg    *Config
	tokens client.FileToken
	client *client.Client
	out    io.Writer
}

func newApp(cfg *Config, out io.Writer) *app {
	tokens := client.FileToken{Path: cfg.TokenFile}
	return &app{
		cfg:    cfg,
		tokens: tokens,
		client: client.New(cfg.BaseURL, client.WithTokenProvider(client.Chain(client.EnvToken(""), tokens))),
		out:    out,
	}
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	cfg, err := loadConfig(configPath())
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := newApp(cfg, os.Stdout)

	switch cmd {
	case "login":
		err = a.cmdLogin(ctx, args)
	case "logout":
		err = a.cmdLogout(ctx)
	case "me":
		err = a.cmdMe(ctx)
	case "settings":
		err = a.cmdSettings(ctx, args)
	case "gallery":
		err = a.cmdGallery(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: academy-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  login [username]             Log in and save the session token")
	fmt.Println("  logout                       Revoke the session and forget the token")
	fmt.Println("  me                           Show the logged-in admin")
	fmt.Println("  settings get <key>           Print a stored setting")
	fmt.Println("  settings set <key> <json>    Store a setting (use - to read stdin)")
	fmt.Println("  gallery list [category]      List active gallery images")
	fmt.Println("  gallery add <url> [title] [category]")
	fmt.Println("                               Add a gallery image")
	fmt.Println("  gallery remove <id>          Hide a gallery image")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  ACADEMY_URL             Gateway URL (default: http://localhost:8080)")
	fmt.Println("  ACADEMY_TOKEN           Session token (overrides the token file)")
	fmt.Println("  ACADEMY_ADMIN_CONFIG    Config file (default: ~/.config/academy/admin.toml)")
	fmt.Println()
}

// readPassword prompts without echo on a terminal, otherwise reads one line from stdin.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
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

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		fmt.Fprint(os.Stderr, "Username: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("reading username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}

	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	return a.login(ctx, username, password)
}

func (a *app) login(ctx context.Context, username, password string) error {
	res, err := a.client.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := a.tokens.Save(res.Token); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Fprintf(a.out, "✓ Logged in as %s\n", res.User.Username)
	fmt.Fprintf(a.out, "  Session expires %s\n", res.ExpiresAt.Local().Format(time.RFC1123))
	fmt.Fprintf(a.out, "  Token saved to %s\n", a.tokens.Path)
	return nil
}

func (a *app) cmdLogout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		var apiErr *client.APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
			return fmt.Errorf("logout failed: %w", err)
		}
	}
	if err := a.tokens.Clear(); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintln(a.out, "✓ Logged out")
	return nil
}

func (a *app) cmdMe(ctx context.Context) error {
	res := a.client.CheckAuth(ctx)
	if !res.Success {
		return fmt.Errorf("not authenticated: %s", res.Error)
	}

	cyan := color.New(color.FgCyan)
	fmt.Fprintln(a.out)
	cyan.Fprintln(a.out, "  Identity")
	cyan.Fprintln(a.out, "  --------")
	fmt.Fprintf(a.out, "  User ID:        %s\n", res.User.ID)
	fmt.Fprintf(a.out, "  Username:       %s\n", res.User.Username)
	fmt.Fprintf(a.out, "  Display Name:   %s\n", res.User.DisplayName)
	fmt.Fprintf(a.out, "  Gateway:        %s\n", a.client.BaseURL())
	fmt.Fprintln(a.out)
	return nil
}

func (a *app) cmdSettings(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: academy-admin settings get <key> | set <key> <json>")
	}

	switch args[0] {
	case "get":
		raw, err := a.client.GetSetting(ctx, args[1])
		if err != nil {
			return err
		}
		var pretty strings.Builder
		enc := json.NewEncoder(&pretty)
		enc.SetIndent("", "  ")
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("decoding setting: %w", err)
		}
		if err := enc.Encode(v); err != nil {
			return err
		}
		fmt.Fprint(a.out, pretty.String())
		return nil

	case "set":
		if len(args) < 3 {
			return fmt.Errorf("usage: academy-admin settings set <key> <json>")
		}
		value := args[2]
		if value == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			value = string(data)
		}
		if !json.Valid([]byte(value)) {
			return fmt.Errorf("value is not valid JSON")
		}
		if err := a.client.PutSetting(ctx, args[1], json.RawMessage(value)); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(a.out, "✓ Saved %s\n", args[1])
		return nil

	default:
		return fmt.Errorf("unknown settings command: %s", args[0])
	}
}

type galleryImage struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ImageURL  string    `json:"image_url"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

func (a *app) cmdGallery(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: academy-admin gallery list|add|remove")
	}

	switch args[0] {
	case "list":
		path := "/api/gallery"
		if len(args) > 1 {
			path += "?category=" + url.QueryEscape(args[1])
		}
		var images []galleryImage
		if err := a.doJSON(ctx, http.MethodGet, path, nil, &images); err != nil {
			return err
		}
		if len(images) == 0 {
			fmt.Fprintln(a.out, "No images.")
			return nil
		}
		for _, img := range images {
			fmt.Fprintf(a.out, "%-36s  %-12s  %s  %s\n", img.ID, img.Category, img.CreatedAt.Format("2006-01-02"), truncate(img.Title, 40))
		}
		return nil

	case "add":
		if len(args) < 2 {
			return fmt.Errorf("usage: academy-admin gallery add <url> [title] [category]")
		}
		body := map[string]string{"image_url": args[1]}
		if len(args) > 2 {
			body["title"] = args[2]
		}
		if len(args) > 3 {
			body["category"] = args[3]
		}
		var img galleryImage
		if err := a.doJSON(ctx, http.MethodPost, "/api/admin/gallery", body, &img); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(a.out, "✓ Added %s\n", img.ID)
		return nil

	case "remove":
		if len(args) < 2 {
			return fmt.Errorf("usage: academy-admin gallery remove <id>")
		}
		if err := a.doJSON(ctx, http.MethodDelete, "/api/admin/gallery/"+args[1], nil, nil); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(a.out, "✓ Removed %s\n", args[1])
		return nil

	default:
		return fmt.Errorf("unknown gallery command: %s", args[0])
	}
}

// doJSON sends body as JSON through Fetch and decodes a 2xx reply into result.
func (a *app) doJSON(ctx context.Context, method, path string, body, result any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		r = strings.NewReader(string(data))
	}

	resp, err := a.client.Fetch(ctx, method, path, r, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &client.APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
