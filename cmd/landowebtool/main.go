package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"landowebtool/internal/adapter/tool"
	"landowebtool/internal/infra/config"
)

func main() {
	args := stripConfigFlag(os.Args[1:])
	if len(args) == 0 {
		showUsage(os.Stderr)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := dispatch(ctx, args, os.Stdout)
	cancel()

	var exit exitError
	switch {
	case err == nil:
	case errors.As(err, &exit):
		os.Exit(int(exit))
	default:
		fmt.Fprintf(os.Stderr, "%s: %v\n", args[0], err)
		os.Exit(1)
	}
}

// exitError ends the process with a status code and no extra message; the
// command has already written its own output.
type exitError int

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func dispatch(ctx context.Context, args []string, stdout io.Writer) error {
	switch args[0] {
	case "--help", "-h", "help":
		showUsage(stdout)
		return nil
	case "search":
		return runTool(ctx, tool.SearchToolName, "query", args[1:], stdout)
	case "scrape":
		return runTool(ctx, tool.ScrapeToolName, "url", args[1:], stdout)
	case "validate-key":
		return runValidateKey(ctx, stdout)
	case "serve":
		return runServe(ctx)
	case "encrypt":
		return runEncrypt(args[1:], stdout)
	case "doctor":
		return runDoctor(stdout)
	default:
		return fmt.Errorf("unknown command %q; run 'landowebtool help' for usage", args[0])
	}
}

func showUsage(w io.Writer) {
	fmt.Fprintln(w, `landowebtool - Serper web search and scraping tools

USAGE:
    landowebtool [--config PATH] COMMAND [ARGS]

COMMANDS:
    search <query>   Run a web search and print the JSON result
    scrape <url>     Scrape a page and print the JSON result
    validate-key     Check the configured Serper API key
    serve            Expose the tools to an MCP client over stdio
    encrypt <value>  Encrypt a secret for config.yaml (needs LANDOWEBTOOL_CONFIG_KEY)
    doctor           Run health checks on your setup
    help             Show this help message

CONFIGURATION:
    Config file: ./config.yaml, or --config PATH, or LANDOWEBTOOL_CONFIG
    Environment: LANDOWEBTOOL_* variables override config;
                 SERPER_API_KEY is used when no key is configured`)
}

// runTool executes one tool the way the host would and prints its JSON content.
// A tool failure still prints the error document and exits with status 1.
func runTool(ctx context.Context, name, param string, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: landowebtool %s <%s>", name, param)
	}

	a, err := newApp(ctx, configPath(), false)
	if err != nil {
		return err
	}
	defer a.Close()

	registry := tool.NewRegistry(a.log)
	if err := a.manage(ctx, registry).Sync(ctx); err != nil {
		return err
	}
	t, err := registry.Get(name)
	if err != nil {
		return fmt.Errorf("%s is not available: check that an API key is configured and tools are enabled", name)
	}

	params, err := json.Marshal(map[string]string{param: strings.Join(args, " ")})
	if err != nil {
		return err
	}
	result, err := t.Execute(ctx, params)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, result.Content)
	if result.IsError {
		return exitError(1)
	}
	return nil
}

func runEncrypt(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: landowebtool encrypt <value>")
	}
	passphrase := os.Getenv(config.EnvPrefix + "CONFIG_KEY")
	if passphrase == "" {
		return fmt.Errorf("set %sCONFIG_KEY to the passphrase used to decrypt the config", config.EnvPrefix)
	}
	enc, err := config.EncryptValue(args[0], passphrase)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, enc)
	return nil
}

// configPath resolves the config file from --config, then LANDOWEBTOOL_CONFIG.
func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv(config.EnvPrefix + "CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// stripConfigFlag removes --config and its value so commands see only their own args.
func stripConfigFlag(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config":
			i++
		case strings.HasPrefix(args[i], "--config="):
		default:
			out = append(out, args[i])
		}
	}
	return out
}
