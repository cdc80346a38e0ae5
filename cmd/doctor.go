package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arin/streamrows/internal/ai"
	"github.com/arin/streamrows/internal/config"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const probeTimeout = 20 * time.Second

var skipProbe bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration and endpoint health",
	Long: `Run a health check on your streamrows setup.
Verifies the config file, the API key, the endpoint URL and that the
endpoint actually streams a completion back.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		fail := doctor(ctx, cfg, newLogger(cfg), cmd.ErrOrStderr(), !skipProbe)
		if fail > 0 {
			return fmt.Errorf("%d check(s) failed", fail)
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&skipProbe, "offline", false, "Skip the live streaming probe")
}

// errWarn marks a check that is worth fixing but does not fail the run.
type errWarn string

func (e errWarn) Error() string { return string(e) }

// doctor runs every check against cfg and returns the number of failures.
func doctor(ctx context.Context, cfg *config.Config, log zerolog.Logger, w io.Writer, probe bool) int {
	red := color.New(color.FgRed)

	cyan.Fprintf(w, "\n  streamrows doctor\n\n")

	pass, fail, warn := 0, 0, 0

	check := func(name string, fn func() (string, error)) {
		detail, err := fn()
		switch err.(type) {
		case nil:
			green.Fprintf(w, "  ✓ %s", name)
			if detail != "" {
				dim.Fprintf(w, "  %s", detail)
			}
			fmt.Fprintln(w)
			pass++
		case errWarn:
			yellow.Fprintf(w, "  ⚠ %s\n", name)
			dim.Fprintf(w, "    %s\n", err.Error())
			warn++
		default:
			red.Fprintf(w, "  ✗ %s\n", name)
			dim.Fprintf(w, "    %s\n", err.Error())
			fail++
		}
	}

	check("Config directory", func() (string, error) {
		dir := config.Dir()
		info, err := os.Stat(dir)
		if os.IsNotExist(err) {
			return "", errWarn("not created yet, run: streamrows config set-key <key>")
		}
		if err != nil {
			return "", err
		}
		if !info.IsDir() {
			return "", fmt.Errorf("%s is not a directory", dir)
		}
		if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
			return dir, nil
		}
		return filepath.Join(dir, "config.json"), nil
	})

	check("API key", func() (string, error) {
		if cfg.APIKey == "" {
			return "", errWarn("no key set, run: streamrows config set-key <key>")
		}
		return cfg.MaskedAPIKey(), nil
	})

	endpointOK := false
	check("Endpoint URL", func() (string, error) {
		u, err := url.Parse(cfg.Endpoint)
		if err != nil {
			return "", fmt.Errorf("invalid URL %q: %w", cfg.Endpoint, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", fmt.Errorf("expected an http(s) URL, got %q", cfg.Endpoint)
		}
		if u.Host == "" {
			return "", fmt.Errorf("missing host in %q", cfg.Endpoint)
		}
		endpointOK = true
		return cfg.Endpoint, nil
	})

	check("Rows", func() (string, error) {
		return fmt.Sprintf("%d × %s, max %d tokens", cfg.Rows, cfg.Model, cfg.MaxTokens), nil
	})

	if probe && endpointOK {
		check("Streaming probe", func() (string, error) {
			return probeEndpoint(ctx, cfg, log)
		})
	}

	fmt.Fprintln(w)
	dim.Fprintf(w, "  %d passed, %d warnings, %d failed\n\n", pass, warn, fail)
	return fail
}

// probeEndpoint streams one short completion through a throwaway row.
func probeEndpoint(ctx context.Context, cfg *config.Config, log zerolog.Logger) (string, error) {
	probeCfg := *cfg
	probeCfg.MaxTokens = 5
	if probeCfg.Timeout == 0 || probeCfg.Timeout > probeTimeout {
		probeCfg.Timeout = probeTimeout
	}

	client := ai.NewClient("probe", &probeCfg, ai.WithLogger(log))
	defer client.Close()

	ch, err := client.Generate(ctx, "Reply with the single word OK.")
	if err != nil {
		return "", err
	}
	o := <-ch
	switch o.Result {
	case ai.Completed:
		reply := strings.TrimSpace(o.Text)
		if reply == "" {
			return "", errWarn("stream ended without any text")
		}
		return fmt.Sprintf("%q in %s", reply, o.Elapsed.Round(time.Millisecond)), nil
	case ai.Aborted:
		return "", errWarn("aborted")
	}
	return "", o.Err
}
