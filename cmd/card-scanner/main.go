package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/card-scanner/internal/card"
	"github.com/zombor/card-scanner/internal/scan"
	"github.com/zombor/card-scanner/internal/scanning"
	"github.com/zombor/card-scanner/internal/source"
	"github.com/zombor/card-scanner/internal/telegram"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// Exit codes for the one-shot modes
const (
	exitFound    = 0
	exitFailed   = 1
	exitNotFound = 2
)

type config struct {
	mode           string
	port           int
	image          string
	recognizer     string
	tesseractLang  string
	geminiKey      string
	geminiModel    string
	ollamaURL      string
	ollamaModel    string
	brands         string
	gallery        string
	cameraCommand  string
	cameraDevice   string
	captureTimeout time.Duration
	telegramToken  string
	authUser       string
	authPass       string
	authPassHash   string
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("card-scanner")
	var (
		mode           = fs.StringLong("mode", "serve", "Run mode: serve, scan, capture, watch or telegram")
		port           = fs.IntLong("port", 8080, "HTTP server port")
		imagePath      = fs.StringLong("image", "", "Image file to scan in scan mode")
		recognizerType = fs.StringLong("recognizer", "tesseract", "Text recognizer: 'tesseract', 'gemini' or 'ollama'")
		tesseractLang  = fs.StringLong("tesseract-lang", "eng", "Comma separated tesseract languages")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama vision model name (e.g., llava, qwen2-vl)")
		brandSet       = fs.StringLong("brands", "all", "Accepted card brands: 'all' or 'visa'")
		galleryPath    = fs.StringLong("gallery", "", "Directory of images to pick from (serve) or to watch (watch)")
		cameraCommand  = fs.StringLong("camera-command", "", "Capture command for the server camera, e.g. fswebcam (optional)")
		cameraDevice   = fs.StringLong("camera-device", "/dev/video0", "Video device passed to the capture command")
		captureTimeout = fs.DurationLong("capture-timeout", 15*time.Second, "Maximum time for one camera capture")
		telegramToken  = fs.StringLong("telegram-token", "", "Telegram bot token for telegram mode")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		authPassHash   = fs.StringLong("auth-pass-hash", "", "Basic auth bcrypt password hash, used instead of --auth-pass (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("CARD_SCANNER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg := config{
		mode:           *mode,
		port:           *port,
		image:          *imagePath,
		recognizer:     *recognizerType,
		tesseractLang:  *tesseractLang,
		geminiKey:      *geminiKey,
		geminiModel:    *geminiModel,
		ollamaURL:      *ollamaURL,
		ollamaModel:    *ollamaModel,
		brands:         *brandSet,
		gallery:        *galleryPath,
		cameraCommand:  *cameraCommand,
		cameraDevice:   *cameraDevice,
		captureTimeout: *captureTimeout,
		telegramToken:  *telegramToken,
		authUser:       *authUser,
		authPass:       *authPass,
		authPassHash:   *authPassHash,
	}

	brands, ok := card.BrandSetByName(cfg.brands)
	if !ok {
		slog.Error("Invalid brand set", "brands", cfg.brands, "valid", "all or visa")
		os.Exit(1)
	}

	recognizer, err := newRecognizer(cfg)
	if err != nil {
		slog.Error("Failed to initialize recognizer", "recognizer", cfg.recognizer, "error", err)
		os.Exit(1)
	}

	service := scan.NewService(recognizer, brands)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var code int
	switch cfg.mode {
	case "serve":
		code = serve(ctx, cfg, service)
	case "scan":
		code = report(service.Process(ctx, source.File{Path: cfg.image}))
	case "capture":
		code = report(service.Process(ctx, newCamera(cfg)))
	case "watch":
		code = watch(ctx, cfg, service)
	case "telegram":
		code = runTelegram(ctx, cfg, service)
	default:
		slog.Error("Invalid mode", "mode", cfg.mode, "valid", "serve, scan, capture, watch or telegram")
		code = exitFailed
	}

	stop()
	recognizer.Close()
	os.Exit(code)
}

func newRecognizer(cfg config) (scanning.Recognizer, error) {
	switch cfg.recognizer {
	case "tesseract":
		langs := strings.Split(cfg.tesseractLang, ",")
		for i := range langs {
			langs[i] = strings.TrimSpace(langs[i])
		}
		slog.Info("Initializing Tesseract recognizer...", "languages", langs)
		return scanning.NewTesseract(scanning.TesseractConfig{Languages: langs}), nil
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := cfg.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini recognizer...", "model", cfg.geminiModel)
		return scanning.NewGemini(apiKey, cfg.geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama recognizer...", "url", cfg.ollamaURL, "model", cfg.ollamaModel)
		return scanning.NewOllama(cfg.ollamaURL, cfg.ollamaModel)
	default:
		return nil, fmt.Errorf("unknown recognizer %q, want tesseract, gemini or ollama", cfg.recognizer)
	}
}

func newCamera(cfg config) scan.Camera {
	if cfg.cameraCommand == "" {
		return source.NoCamera{}
	}
	camera := source.NewCamera(source.CameraConfig{
		Command: cfg.cameraCommand,
		Device:  cfg.cameraDevice,
		Timeout: cfg.captureTimeout,
	})
	if err := camera.Access(); err != nil {
		slog.Warn("Camera not usable", "command", cfg.cameraCommand, "device", cfg.cameraDevice, "error", err)
	}
	return camera
}

// report prints a one-shot outcome and picks the exit code
func report(outcome *scan.Outcome) int {
	switch outcome.Status {
	case scan.StatusFound:
		fmt.Println(outcome.Display)
		return exitFound
	case scan.StatusNotFound, scan.StatusCancelled:
		fmt.Fprintln(os.Stderr, outcome.Message)
		return exitNotFound
	default:
		fmt.Fprintln(os.Stderr, outcome.Message)
		return exitFailed
	}
}

func serve(ctx context.Context, cfg config, service *scan.Service) int {
	opts := scan.ServerOptions{
		Auth: scan.BasicAuth{
			Username:     cfg.authUser,
			Password:     cfg.authPass,
			PasswordHash: cfg.authPassHash,
		},
	}
	if cfg.cameraCommand != "" {
		opts.Camera = newCamera(cfg)
	}
	if cfg.gallery != "" {
		slog.Info("Initializing gallery...", "path", cfg.gallery)
		gallery, err := source.NewLocalGallery(cfg.gallery)
		if err != nil {
			slog.Error("Failed to initialize gallery", "error", err)
			return exitFailed
		}
		opts.Gallery = gallery
	}

	server := scan.NewServer(service, opts)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", cfg.port)
	errc := make(chan error, 1)
	go func() {
		errc <- server.Start(addr)
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if opts.Auth.Enabled() {
		slog.Info("Basic auth enabled", "user", cfg.authUser)
	}

	select {
	case err := <-errc:
		slog.Error("Server error", "error", err)
		return exitFailed
	case <-ctx.Done():
		slog.Info("Shutting down...")
		return exitFound
	}
}

func watch(ctx context.Context, cfg config, service *scan.Service) int {
	if cfg.gallery == "" {
		slog.Error("Watch mode needs a directory, set --gallery")
		return exitFailed
	}
	paths, err := source.Watch(ctx, source.WatchConfig{Dir: cfg.gallery})
	if err != nil {
		slog.Error("Failed to watch gallery", "error", err)
		return exitFailed
	}
	slog.Info("Watching for card photos", "path", cfg.gallery)

	for path := range paths {
		fmt.Println(watchLine(path, service.Process(ctx, source.File{Path: path})))
	}
	slog.Info("Shutting down...")
	return exitFound
}

// watchLine is the output for one watched file. The name comes from the path
// because a failed read leaves the outcome without one.
func watchLine(path string, outcome *scan.Outcome) string {
	text := outcome.Message
	if outcome.Found() {
		text = outcome.Display
	}
	return fmt.Sprintf("%s\t%s", filepath.Base(path), text)
}

func runTelegram(ctx context.Context, cfg config, service *scan.Service) int {
	if cfg.telegramToken == "" {
		slog.Error("Telegram mode needs a bot token, set --telegram-token")
		return exitFailed
	}
	bot, err := telegram.New(cfg.telegramToken, service)
	if err != nil {
		slog.Error("Failed to initialize telegram bot", "error", err)
		return exitFailed
	}
	slog.Info("Telegram bot started")
	if err := bot.Run(ctx); err != nil {
		slog.Error("Telegram bot error", "error", err)
		return exitFailed
	}
	slog.Info("Shutting down...")
	return exitFound
}
