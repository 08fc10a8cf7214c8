package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"swiftget/downloader"
	"swiftget/engine"
	"swiftget/internal"
	"swiftget/utils"
)

var (
	outputPath   string
	connections  int
	rateLimit    string
	headers      []string
	userAgent    string
	proxyURL     string
	checksum     string
	cookieJar    string
	resume       bool
	quiet        bool
	verbose      bool
	noProgress   bool
	insecure     bool
	debug        bool
	logLevel     string
	logFile      string
	extractAfter bool
	revealAfter  bool
	config       *internal.Config
)

var rootCmd = &cobra.Command{
	Use:     "swiftget [OPTIONS] <URL>",
	Short:   "Download files over HTTP(S) with segmented, parallel connections",
	Version: "v1.0.0",
	Long: `swiftget is a command-line download manager that transfers files over
HTTP(S) using multiple parallel range requests, reassembles them atomically,
verifies integrity, and applies coordinated bandwidth control across every
concurrent transfer.

Examples:
  swiftget https://example.com/file.iso
  swiftget -o out.iso -t 16 https://example.com/file.iso
  swiftget -r 5M --proxy http://proxy:8080 https://example.com/file.iso
  swiftget -c https://example.com/file.iso
  swiftget --checksum sha256:deadbeef... https://example.com/file.iso

Environment Variables:
  SWIFTGET_CONNECTIONS  Default number of connections (1-32)
  SWIFTGET_TIMEOUT      HTTP timeout in seconds
  SWIFTGET_RATE_LIMIT   Default rate limit (e.g., 5M)
  SWIFTGET_PROXY        Proxy URL
  SWIFTGET_DEBUG        Enable debug logging
  SWIFTGET_LOG_LEVEL    Log level (debug, info, warn, error)
  SWIFTGET_LOG_FILE     Write logs to file instead of stderr`,
	Args: cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfiguration(); err != nil {
			return fmt.Errorf("configuration error: %v", err)
		}

		if err := internal.InitLogger(config); err != nil {
			return fmt.Errorf("failed to initialize logger: %v", err)
		}

		internal.LogInfo("swiftget starting up")
		internal.LogDebug("Configuration loaded: connections=%d, timeout=%d, debug=%v, quiet=%v",
			config.DefaultConnections, config.DefaultTimeout, config.EnableDebug, config.QuietMode)

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]

		if err := validateArguments(url); err != nil {
			internal.LogError("Argument validation failed: %v", err)
			return exitError{code: 2, err: err}
		}

		validator := utils.NewURLValidator()
		urlInfo, err := validator.ParseURL(url)
		if err != nil {
			validationErr := internal.NewInvalidURLError(url, err.Error())
			internal.LogDownloadError(validationErr)
			return exitError{code: 2, err: fmt.Errorf("invalid URL: %v", err)}
		}

		var rateLimitBytes int64
		if rateLimit != "" {
			rateLimitBytes, err = utils.ParseRateLimit(rateLimit)
			if err != nil {
				validationErr := internal.NewValidationErrorWithValue("rate_limit", "invalid format", rateLimit).
					WithSuggestion("Use formats like 1M (1 MB/s), 500K (500 KB/s), 2G (2 GB/s), or 1024 (1024 bytes/s)")
				internal.LogValidationError(validationErr)
				return exitError{code: 2, err: fmt.Errorf("invalid rate limit format: %v", err)}
			}
		} else if config.LimitRate != "" {
			rateLimitBytes, _ = utils.ParseRateLimit(config.LimitRate)
		}

		var digest *internal.ExpectedDigest
		if checksum != "" {
			digest, err = parseChecksum(checksum)
			if err != nil {
				validationErr := internal.NewValidationErrorWithValue("checksum", err.Error(), checksum).
					WithSuggestion("Use the form algorithm:hex, e.g. sha256:deadbeef...")
				internal.LogValidationError(validationErr)
				return exitError{code: 2, err: err}
			}
		}

		if outputPath == "" {
			outputPath = urlInfo.DefaultFilename()
		}
		if err := validateOutputPath(outputPath); err != nil {
			validationErr := internal.NewValidationErrorWithValue("output_path", err.Error(), outputPath)
			internal.LogValidationError(validationErr)
			return exitError{code: 2, err: fmt.Errorf("invalid output path: %v", err)}
		}
		if !resume && utils.NewFileOperations().FileExists(outputPath) {
			fileErr := internal.NewFileExistsError(outputPath)
			internal.LogDownloadError(fileErr)
			return exitError{code: fileErr.ExitCode(), err: fileErr}
		}

		if proxyURL == "" {
			proxyURL = config.ProxyURL()
		}

		headerMap, err := parseHeaders(headers)
		if err != nil {
			return exitError{code: 2, err: err}
		}

		if cookieJar != "" {
			cookieHeader, err := downloader.NewCookieJarLoader().Load(cookieJar)
			if err != nil {
				validationErr := internal.NewValidationErrorWithValue("cookie_jar", err.Error(), cookieJar)
				internal.LogValidationError(validationErr)
				return exitError{code: 2, err: fmt.Errorf("invalid cookie jar: %v", err)}
			}
			headerMap["Cookie"] = cookieHeader
		}

		effectiveQuiet := quiet && !verbose

		if !effectiveQuiet {
			fmt.Printf("Downloading from: %s\n", url)
			fmt.Printf("Output path: %s\n", outputPath)
			fmt.Printf("Connections: %d\n", connections)
			if rateLimitBytes > 0 {
				fmt.Printf("Rate limit: %s (%d bytes/sec)\n", rateLimit, rateLimitBytes)
			}
			if proxyURL != "" {
				fmt.Printf("Using proxy: %s\n", proxyURL)
			}
			fmt.Println()
		}

		spec := &internal.TransferSpec{
			URL:            url,
			Destination:    outputPath,
			ExpectedDigest: digest,
			Headers:        headerMap,
			UserAgent:      userAgent,
			Connections:    connections,
			MaxBytesPerSec: rateLimitBytes,
			Resume:         resume,
			VerifyTLS:      !insecure,
			ProxyURL:       proxyURL,
		}

		showProgress := !noProgress && !effectiveQuiet
		return runDownload(spec, effectiveQuiet, showProgress)
	},
}

// exitError carries the CLI's stable exit-code contract: 0 on success, 1
// on any per-URL failure, 2 on argument/validation error.
type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string { return e.err.Error() }

func runDownload(spec *internal.TransferSpec, quiet bool, showProgress bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		internal.LogInfo("received signal %v, shutting down gracefully", sig)
		if !quiet {
			fmt.Printf("\nReceived %v signal, shutting down gracefully...\n", sig)
		}
		cancel()
	}()

	httpClient := utils.NewHTTPClientWithConfig(&utils.HTTPClientConfig{
		Timeout:            time.Duration(config.DefaultTimeout) * time.Second,
		ProxyURL:           spec.ProxyURL,
		InsecureSkipVerify: !spec.VerifyTLS,
	})
	if spec.UserAgent != "" {
		httpClient.SetUserAgent(spec.UserAgent)
	} else {
		httpClient.SetUserAgent(config.UserAgent)
	}

	retryPolicy := downloader.NewRetryPolicy(downloader.WithMaxRetries(config.MaxRetries))
	eng := engine.New(httpClient, spec.MaxBytesPerSec, retryPolicy, !showProgress)

	if !quiet {
		fmt.Println("Starting download...")
	}

	resultErr := make(chan error, 1)
	go func() {
		_, err := eng.Download(ctx, spec)
		resultErr <- err
	}()

	select {
	case err := <-resultErr:
		if err != nil {
			internal.LogDownloadError(toDownloadError(err))
			if !quiet {
				color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "Download failed")
			}
			return exitError{code: 1, err: err}
		}
		internal.LogInfo("download completed successfully: %s", spec.Destination)
		if !quiet {
			color.New(color.FgGreen, color.Bold).Println("Download completed successfully!")
			fmt.Printf("File saved to: %s\n", spec.Destination)
		}
		return nil

	case <-ctx.Done():
		internal.LogInfo("download cancelled")
		if !quiet {
			color.New(color.FgYellow).Println("Download cancelled.")
		}
		return exitError{code: 1, err: fmt.Errorf("download cancelled")}
	}
}

func toDownloadError(err error) *internal.DownloadError {
	if de, ok := err.(*internal.DownloadError); ok {
		return de
	}
	return internal.NewDownloadErrorWithCause(internal.ErrUnknown, err.Error(), err)
}

// loadConfiguration loads configuration from environment variables and merges with CLI flags
func loadConfiguration() error {
	config = internal.DefaultConfig()
	config.LoadFromEnv()

	if connections == 0 {
		connections = config.DefaultConnections
	}

	if debug {
		config.EnableDebug = true
		config.LogLevel = "debug"
	}
	if quiet {
		config.QuietMode = true
	}
	if logLevel != "" {
		config.LogLevel = logLevel
	}
	if logFile != "" {
		config.LogFile = logFile
	}

	return config.ValidateConfig()
}

func validateArguments(url string) error {
	if url == "" {
		return fmt.Errorf("URL is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("URL must start with http:// or https://")
	}
	if connections < 1 || connections > 64 {
		return fmt.Errorf("connections must be between 1 and 64, got %d", connections)
	}
	return nil
}

func validateOutputPath(path string) error {
	if path == "" {
		return fmt.Errorf("output path cannot be empty")
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("output directory does not exist: %s", dir)
		}
	}
	return nil
}

func parseHeaders(raw []string) (map[string]string, error) {
	out := make(map[string]string, len(raw))
	for _, h := range raw {
		idx := strings.Index(h, ":")
		if idx <= 0 {
			return nil, fmt.Errorf("invalid --header %q, expected \"Key: Value\"", h)
		}
		key := strings.TrimSpace(h[:idx])
		val := strings.TrimSpace(h[idx+1:])
		out[key] = val
	}
	return out, nil
}

func parseChecksum(raw string) (*internal.ExpectedDigest, error) {
	idx := strings.Index(raw, ":")
	if idx <= 0 {
		return nil, fmt.Errorf("invalid --checksum %q, expected algorithm:hex", raw)
	}
	alg := strings.ToLower(raw[:idx])
	hex := raw[idx+1:]
	if hex == "" {
		return nil, fmt.Errorf("checksum hex digest cannot be empty")
	}

	var algorithm internal.DigestAlgorithm
	switch alg {
	case "md5":
		algorithm = internal.DigestMD5
	case "sha1":
		algorithm = internal.DigestSHA1
	case "sha256":
		algorithm = internal.DigestSHA256
	default:
		return nil, fmt.Errorf("unknown checksum algorithm %q, expected md5, sha1, or sha256", alg)
	}

	return &internal.ExpectedDigest{Algorithm: algorithm, Hex: hex}, nil
}

func init() {
	config = internal.DefaultConfig()

	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path")
	rootCmd.Flags().IntVarP(&connections, "connections", "t", 0, fmt.Sprintf("Number of parallel connections (1-64) (env: SWIFTGET_CONNECTIONS) (default %d)", config.DefaultConnections))
	rootCmd.Flags().StringVarP(&rateLimit, "limit-rate", "r", "", "Bandwidth limit (e.g., 5M for 5MB/s) (env: SWIFTGET_RATE_LIMIT)")
	rootCmd.Flags().StringArrayVar(&headers, "header", nil, "Additional request header \"Key: Value\" (repeatable)")
	rootCmd.Flags().StringVarP(&userAgent, "user-agent", "A", "", "Override the User-Agent header")
	rootCmd.Flags().StringVar(&proxyURL, "proxy", "", "HTTP/SOCKS proxy URL (env: SWIFTGET_PROXY)")
	rootCmd.Flags().StringVar(&checksum, "checksum", "", "Expected checksum as algorithm:hex (md5, sha1, sha256)")
	rootCmd.Flags().StringVar(&cookieJar, "cookie-jar", "", "Load cookies from a Netscape-format cookie file and send them as a Cookie header")
	rootCmd.Flags().BoolVarP(&resume, "continue", "c", false, "Resume a partially downloaded file")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress bar output")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output, overrides --quiet")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar without silencing other output")
	rootCmd.Flags().BoolVarP(&insecure, "insecure", "k", false, "Skip TLS certificate verification")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging with file and line information (env: SWIFTGET_DEBUG)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Set log level (debug, info, warn, error) (env: SWIFTGET_LOG_LEVEL)")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to file instead of stderr (env: SWIFTGET_LOG_FILE)")
	rootCmd.Flags().BoolVar(&extractAfter, "extract-after", false, "Extract the downloaded archive after completion (not yet implemented)")
	rootCmd.Flags().BoolVar(&revealAfter, "reveal-after", false, "Reveal the downloaded file in the system file manager after completion (not yet implemented)")
}

// Execute runs the root command and returns the process exit code: 0 on
// success, 1 on any per-URL transfer failure, 2 on argument/validation
// errors.
func Execute() int {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true

	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	errPrefix := color.New(color.FgRed, color.Bold).SprintFunc()
	if ee, ok := err.(exitError); ok {
		fmt.Fprintln(os.Stderr, errPrefix("Error:"), ee.Error())
		return ee.code
	}

	fmt.Fprintln(os.Stderr, errPrefix("Error:"), err)
	return 2
}
