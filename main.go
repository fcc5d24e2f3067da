package main

import (
	"bufio"
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/iancoleman/strcase"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/attribute"

	"github.com/mcncl/schemagen/internal/config"
	"github.com/mcncl/schemagen/internal/errors"
	"github.com/mcncl/schemagen/internal/inference"
	"github.com/mcncl/schemagen/internal/logging"
	"github.com/mcncl/schemagen/internal/models"
	"github.com/mcncl/schemagen/internal/parser"
	"github.com/mcncl/schemagen/internal/schema"
	"github.com/mcncl/schemagen/internal/store"
	"github.com/mcncl/schemagen/internal/telemetry"
)

// CLI defines the command-line interface
var CLI struct {
	Input       []string `help:"Path to input JSON file. Repeat to fold several documents into one schema. If not specified, reads from stdin." short:"i"`
	Output      string   `help:"Path to output schema file. If not specified, writes to stdout." short:"o" type:"path"`
	Config      string   `help:"Path to config file. If not specified, searches for .schemagen.yml in the current and parent directories." short:"c" type:"path"`
	Title       string   `help:"Title of the root schema. Defaults to a name derived from the first input file." short:"t"`
	Description string   `help:"Description of the root schema."`
	Policy      string   `help:"How values of different types at one position merge: union (anyOf) or any ({})."`
	Store       string   `help:"Schema store to accumulate into across runs: a SQLite path or a postgres:// URL."`
	Name        string   `help:"Name of the running schema inside the store. Defaults to the snake_case title."`
	NDJSON      bool     `help:"Treat each input as a stream of JSON values, one document per value." name:"ndjson"`
	List        bool     `help:"List the schemas held in the store and exit."`
	Forget      bool     `help:"Delete the named schema from the store and exit."`
	Debug       bool     `help:"Enable debug logging." short:"d"`
	Version     bool     `help:"Show version information." short:"v"`
	Interactive bool     `help:"Run in interactive mode, allowing direct JSON input with Ctrl+D to process." short:"I"`
}

// Context holds the runtime context
type Context struct {
	Debug  bool
	Config *config.Config
}

// Version information
const (
	Version = "0.1.0"
)

// defaultTitle is used when neither the config, the flags, nor an input file
// name provide one
const defaultTitle = "Root"

func main() {
	// Values from .env feed the environment overrides in config.ApplyEnv
	_ = godotenv.Load()

	// Parse CLI arguments with Kong
	app := kong.Must(&CLI,
		kong.Name("schemagen"),
		kong.Description("A tool to infer JSON Schema documents from example JSON"),
		kong.UsageOnError(),
	)

	// Check if no arguments provided and set interactive mode by default
	if len(os.Args) == 1 {
		CLI.Interactive = true
	}

	if _, err := app.Parse(os.Args[1:]); err != nil {
		// If there's an error parsing arguments, the usage will already be shown by kong.UsageOnError()
		os.Exit(1)
	}

	// Show version and exit if requested
	if CLI.Version {
		fmt.Printf("schemagen version %s\n", Version)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))
		os.Exit(1)
	}
	if cfg.Dev.Debug {
		logging.SetLogLevel(slog.LevelDebug)
	}

	err = run(&Context{Debug: cfg.Dev.Debug, Config: cfg})
	if err != nil {
		// Use our custom error handling to provide user-friendly error messages
		fmt.Fprintf(os.Stderr, "%s\n", errors.UserFriendlyError(err))

		// Show help on error
		fmt.Fprintf(os.Stderr, "\nFor help, run: schemagen --help\n")

		os.Exit(1)
	}
}

// loadConfig resolves the configuration: defaults < config file < environment < flags
func loadConfig() (*config.Config, error) {
	configPath := CLI.Config
	if configPath == "" {
		configPath = config.FindConfigFile()
	}
	if configPath != "" {
		logging.Logger().Debug("using config file", "path", configPath)
	}

	cfg, err := config.LoadConfigWithCLI(configPath, config.CLIOverrides{
		Title:       CLI.Title,
		Description: CLI.Description,
		Policy:      CLI.Policy,
		StoreDSN:    CLI.Store,
		StoreName:   CLI.Name,
		NDJSON:      CLI.NDJSON,
		Debug:       CLI.Debug,
	})
	if err != nil {
		return nil, errors.NewConfigError(err.Error(), err)
	}
	return cfg, nil
}

// run executes the main program logic
func run(ctx *Context) error {
	cfg := ctx.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	background := context.Background()
	logger := logging.Logger()

	// Store-only operations do not read any input
	if CLI.List || CLI.Forget {
		return runStoreCommand(background, cfg)
	}

	// 1. Parse JSON input
	docs, err := parseInput(cfg.Input.NDJSON)
	if err != nil {
		return err
	}

	// 2. Prepare the generator, seeded from the store when it holds a schema
	generator, err := inference.NewGeneratorWithConfig(cfg)
	if err != nil {
		return errors.NewConfigError(err.Error(), err)
	}

	title := resolveTitle(cfg, docs)
	var st *store.Store
	var name string
	if cfg.Store.DSN != "" {
		st, err = store.Open(background, cfg.Store.DSN, store.WithCacheSize(cfg.Store.CacheSize))
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		name = storeName(cfg, title)
		rec, err := st.Get(background, name)
		switch {
		case err == nil:
			generator.Seed(rec.Schema, rec.Documents)
			logger.Debug("seeded from store", "name", name, "documents", rec.Documents)
		case stderrors.Is(err, store.ErrNotFound):
			logger.Debug("starting new stored schema", "name", name)
		default:
			return err
		}
	}

	// 3. Fold every document into the running schema
	instrumentation, shutdown := newInstrumentation(cfg)
	defer func() {
		if err := shutdown(background); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	for _, doc := range docs {
		err := instrumentation.InferDocument(background, doc.Source, doc.Index, func(ctx context.Context) error {
			if err := generator.ExpandSchema(doc.Root); err != nil {
				return err
			}
			telemetry.AddEvent(ctx, "schema expanded",
				attribute.Int("schemagen.documents", generator.Documents()),
				attribute.String("schemagen.root_type", string(generator.Schema().Type())),
			)
			return nil
		})
		if err != nil {
			logger.Error("schema inference failed", "source", doc.Source, "document", doc.Index, "error", err)
			return err
		}
		logger.Debug("document folded into schema", "source", doc.Source, "document", doc.Index)
	}

	root := generator.Schema()
	if root == nil {
		return errors.NewInferenceError("no documents to infer a schema from", errors.ErrNoInput)
	}

	// 4. Persist the raw running schema before decorating it for output
	if st != nil {
		err := st.Put(background, store.Record{
			Name:      name,
			Schema:    root,
			Documents: generator.Documents(),
		})
		if err != nil {
			return err
		}
		logger.Info("stored running schema", "name", name, "documents", generator.Documents())
	}

	// 5. Output the result
	out, err := renderDocument(cfg, root, title)
	if err != nil {
		return err
	}
	return writeOutput(out)
}

// renderDocument applies descriptions and root metadata and encodes the
// schema document
func renderDocument(cfg *config.Config, root schema.Schema, title string) ([]byte, error) {
	if len(cfg.Descriptions) > 0 {
		root = schema.Describe(root, cfg.FindDescription)
	}

	md := *root.Meta()
	md.Title = title
	if cfg.Description != "" {
		md.Description = cfg.Description
	}
	root = schema.WithMetadata(root, md)

	out, err := schema.Indent(schema.Document{SchemaURI: cfg.SchemaURI, Root: root})
	if err != nil {
		return nil, errors.NewOutputError("failed to encode schema document", err)
	}
	return out, nil
}

// resolveTitle picks the root title: configured title, else the first input
// file name in CamelCase
func resolveTitle(cfg *config.Config, docs []models.IntermediateRepresentation) string {
	if cfg.Title != "" {
		return cfg.Title
	}
	for _, doc := range docs {
		if doc.Source == "" || doc.Source == parser.SourceStdin || doc.Source == parser.SourceString {
			continue
		}
		base := filepath.Base(doc.Source)
		base = strings.TrimSuffix(base, filepath.Ext(base))
		if title := strcase.ToCamel(base); title != "" {
			return title
		}
	}
	return defaultTitle
}

// storeName is the key of the running schema inside the store
func storeName(cfg *config.Config, title string) string {
	if cfg.Store.Name != "" {
		return cfg.Store.Name
	}
	return strcase.ToSnake(title)
}

func newInstrumentation(cfg *config.Config) (*telemetry.Instrumentation, func(context.Context) error) {
	if cfg.Telemetry.Enabled {
		return telemetry.NewLogging(logging.Logger(), cfg.Telemetry.ServiceName)
	}
	return telemetry.New(telemetry.WithServiceName(cfg.Telemetry.ServiceName)), func(context.Context) error { return nil }
}

// runStoreCommand lists or deletes stored schemas
func runStoreCommand(ctx context.Context, cfg *config.Config) error {
	if cfg.Store.DSN == "" {
		return errors.NewConfigError("no schema store configured: use --store or SCHEMAGEN_STORE", nil)
	}
	st, err := store.Open(ctx, cfg.Store.DSN, store.WithCacheSize(cfg.Store.CacheSize))
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if CLI.Forget {
		if cfg.Store.Name == "" {
			return errors.NewConfigError("--forget needs --name", nil)
		}
		if err := st.Delete(ctx, cfg.Store.Name); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Deleted stored schema %s\n", cfg.Store.Name)
		return nil
	}

	records, err := st.List(ctx)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, rec := range records {
		fmt.Fprintf(&buf, "%s\t%d documents\t%s\n", rec.Name, rec.Documents, rec.UpdatedAt.Format(time.RFC3339))
	}
	return writeOutput(buf.Bytes())
}

// parseInput reads JSON documents from the input files or stdin
func parseInput(ndjson bool) ([]models.IntermediateRepresentation, error) {
	if len(CLI.Input) > 0 {
		var docs []models.IntermediateRepresentation
		for _, path := range CLI.Input {
			if ndjson {
				stream, err := parser.ParseFileStream(path)
				if err != nil {
					return nil, err
				}
				docs = append(docs, stream...)
				continue
			}
			ir, err := parser.ParseFile(path)
			if err != nil {
				return nil, err
			}
			docs = append(docs, ir)
		}
		return docs, nil
	}

	// Check if stdin has data
	stdinInfo, err := os.Stdin.Stat()
	if err != nil {
		return nil, errors.NewInputError("failed to access stdin", err)
	}

	var jsonData []byte
	if (stdinInfo.Mode() & os.ModeCharDevice) != 0 {
		// Terminal is interactive (not piped)
		if !CLI.Interactive {
			return nil, errors.NewInputError("no input provided", errors.ErrNoInput)
		}
		jsonData, err = readInteractiveInput()
	} else {
		jsonData, err = io.ReadAll(os.Stdin)
		if err != nil {
			err = errors.NewInputError("failed to read from stdin", err)
		}
	}
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(jsonData)) == 0 {
		return nil, errors.NewInputError("empty input received from stdin", errors.ErrEmptyInput)
	}

	if ndjson {
		return parser.ParseStream(bytes.NewReader(jsonData), parser.SourceStdin)
	}
	ir, err := parser.ParseString(string(jsonData))
	if err != nil {
		return nil, err
	}
	ir.Source = parser.SourceStdin
	return []models.IntermediateRepresentation{ir}, nil
}

// writeOutput writes the rendered document to file or stdout
func writeOutput(data []byte) error {
	if CLI.Output != "" {
		// Write to file
		err := os.WriteFile(CLI.Output, data, 0o644)
		if err != nil {
			return errors.NewOutputError(fmt.Sprintf("failed to write to file '%s'", CLI.Output), err)
		}
		fmt.Fprintf(os.Stderr, "Schema written to %s\n", CLI.Output)
		return nil
	}

	// Write to stdout
	if _, err := os.Stdout.Write(data); err != nil {
		return errors.NewOutputError("failed to write to stdout", err)
	}
	return nil
}

// readInteractiveInput provides an interactive mode for users to paste JSON
// and signal completion with Ctrl+D (EOF)
func readInteractiveInput() ([]byte, error) {
	fmt.Fprintln(os.Stderr, "schemagen Interactive Mode")
	fmt.Fprintln(os.Stderr, "Paste your JSON below and press Ctrl+D (or Ctrl+Z on Windows) when done:")

	// Read all input until EOF (Ctrl+D)
	reader := bufio.NewReader(os.Stdin)
	var jsonBuilder bytes.Buffer

	for {
		line, err := reader.ReadString('\n')
		jsonBuilder.WriteString(line)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewInputError("error reading input", err)
		}
	}

	fmt.Fprintln(os.Stderr, "\nProcessing JSON...")
	return jsonBuilder.Bytes(), nil
}
