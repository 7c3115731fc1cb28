package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/sitewalk/internal/artifact"
	"github.com/nao1215/sitewalk/internal/auth"
	"github.com/nao1215/sitewalk/internal/browser"
	"github.com/nao1215/sitewalk/internal/config"
	"github.com/nao1215/sitewalk/internal/crawler"
	"github.com/nao1215/sitewalk/internal/database"
	"github.com/nao1215/sitewalk/internal/log"
	"github.com/nao1215/sitewalk/internal/model"
	"github.com/nao1215/sitewalk/internal/pipeline"
	"github.com/nao1215/sitewalk/internal/progress"
	"github.com/nao1215/sitewalk/internal/report"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// overridableFlags are the flags whose explicit value beats the site
// section of the configuration file.
var overridableFlags = []string{"depth", "max-pages", "scope", "order", "login-url", "username"}

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Walk a website from a seed URL",
		Long: `Crawl visits every in-scope page reachable from each seed URL.

Pages are visited once each, up to the depth and page limits, in a
headless Chrome. Each page is screenshotted and probed: a form gets a
test email and a submit click, otherwise the first button is clicked.
Links of successful pages are followed; failed pages are recorded and
skipped.

The scope is the origin of the seed unless --scope narrows it to a URL
prefix. With --login-url the login form is filled in first; a rejected
login stops the run without a report.

Examples:
  # Walk a site with the defaults (depth 3, 50 pages)
  sitewalk crawl https://shop.example.com

  # Walk only the catalog, breadth-first
  sitewalk crawl --scope https://shop.example.com/catalog --order bfs https://shop.example.com/catalog

  # Log in first (password from SITEWALK_PASSWORD or a prompt)
  sitewalk crawl --login-url https://shop.example.com/login --username me@example.com https://shop.example.com

  # Walk two sites in parallel and also write Markdown reports
  sitewalk crawl -b 2 -f json -f csv -f markdown https://a.example https://b.example

Configuration file (.sitewalk) example:
  defaults:
    ignorePatterns: ["/logout*"]
  sites:
    shop.example.com:
      depth: 2
      loginUrl: "https://shop.example.com/login"
      username: "me@example.com"`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Traversal limits
	cmd.Flags().IntP("depth", "d", config.DefaultMaxDepth,
		"Maximum link depth from the seed (default 2 with --login-url)")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages,
		"Maximum number of pages to visit per seed (0 = unbounded)")
	cmd.Flags().StringP("scope", "s", "",
		"URL prefix pages must start with (default: the seed origin)")
	cmd.Flags().String("order", config.DefaultOrder,
		"Traversal order: dfs or bfs")
	cmd.Flags().Bool("keep-query", false,
		"Treat URLs that differ only in their query string as different pages")

	// Timeouts
	cmd.Flags().Duration("nav-timeout", config.DefaultNavTimeout,
		"Navigation timeout for each page")
	cmd.Flags().Duration("run-timeout", config.DefaultRunTimeout,
		"Timeout for the whole walk of one seed (0 = none)")

	// Output
	cmd.Flags().String("screenshots", config.DefaultScreenshotDir,
		"Screenshot directory (empty disables screenshots)")
	cmd.Flags().StringP("output", "o", config.DefaultOutputDir,
		"Report directory")
	cmd.Flags().StringSliceP("format", "f", config.DefaultFormats,
		"Report format: json, csv, markdown or text (repeatable)")

	// Login
	cmd.Flags().String("login-url", "",
		"Login page to sign in on before walking")
	cmd.Flags().String("username", "",
		"Login username (default: $"+auth.DefaultUsernameEnv+" or a prompt)")
	cmd.Flags().String("password-env", auth.DefaultPasswordEnv,
		"Environment variable holding the login password")

	// Browser
	cmd.Flags().Bool("headful", false,
		"Show the browser window")
	cmd.Flags().String("user-data-dir", "",
		"Persistent browser profile directory")
	cmd.Flags().Bool("no-probe", false,
		"Do not fill forms or click buttons")

	// Run control
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds walked concurrently")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .sitewalk in current or home directory)")
	cmd.Flags().Bool("no-history", false,
		"Do not store the run in the history database")
	cmd.Flags().Bool("no-progress", false,
		"Do not show the progress spinner")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, explicit, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if len(cfg.Seeds) == 0 {
		seed, err := promptSeed(cmd.InOrStdin(), cmd.ErrOrStderr(), isTerminal(os.Stdin))
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		cfg.Seeds = []string{seed}
	}
	normalizeSeeds(cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	plans, err := planSeeds(cfg, explicit)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.NewLogger(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cmd.OutOrStdout(), cfg, plans, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the
// configuration file. The returned set holds the overridable flags the
// user gave explicitly.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, map[string]bool, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.MaxDepth, err = flags.GetInt("depth"); err != nil {
		return nil, nil, err
	}
	if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
		return nil, nil, err
	}
	if cfg.ScopePrefix, err = flags.GetString("scope"); err != nil {
		return nil, nil, err
	}
	if cfg.Order, err = flags.GetString("order"); err != nil {
		return nil, nil, err
	}
	if cfg.KeepQuery, err = flags.GetBool("keep-query"); err != nil {
		return nil, nil, err
	}
	if cfg.NavTimeout, err = flags.GetDuration("nav-timeout"); err != nil {
		return nil, nil, err
	}
	if cfg.RunTimeout, err = flags.GetDuration("run-timeout"); err != nil {
		return nil, nil, err
	}
	if cfg.ScreenshotDir, err = flags.GetString("screenshots"); err != nil {
		return nil, nil, err
	}
	if cfg.OutputDir, err = flags.GetString("output"); err != nil {
		return nil, nil, err
	}
	if cfg.Formats, err = flags.GetStringSlice("format"); err != nil {
		return nil, nil, err
	}
	if cfg.LoginURL, err = flags.GetString("login-url"); err != nil {
		return nil, nil, err
	}
	if cfg.Username, err = flags.GetString("username"); err != nil {
		return nil, nil, err
	}
	if cfg.PasswordEnv, err = flags.GetString("password-env"); err != nil {
		return nil, nil, err
	}
	if cfg.Headful, err = flags.GetBool("headful"); err != nil {
		return nil, nil, err
	}
	if cfg.UserDataDir, err = flags.GetString("user-data-dir"); err != nil {
		return nil, nil, err
	}
	noProbe, err := flags.GetBool("no-probe")
	if err != nil {
		return nil, nil, err
	}
	cfg.ProbeEnabled = !noProbe
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, nil, err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, nil, err
	}
	cfg.SaveToDB = !noHistory
	noProgress, err := flags.GetBool("no-progress")
	if err != nil {
		return nil, nil, err
	}
	cfg.ShowProgress = !noProgress
	cfg.Verbose = getVerboseFlag(cmd)

	// An explicit config path must exist; a missing default file is fine.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	explicit := make(map[string]bool)
	for _, name := range overridableFlags {
		if flags.Changed(name) {
			explicit[name] = true
		}
	}

	cfg.Seeds = append([]string(nil), args...)
	return cfg, explicit, nil
}

// promptSeed asks for a seed URL on a terminal.
func promptSeed(in io.Reader, out io.Writer, interactive bool) (string, error) {
	if !interactive {
		return "", config.ErrNoSeed
	}
	fmt.Fprint(out, "Seed URL: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	seed := strings.TrimSpace(line)
	if seed == "" {
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read seed: %w", err)
		}
		return "", config.ErrNoSeed
	}
	return seed, nil
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// normalizeSeeds completes bare hosts to https URLs and drops seeds that
// normalize to one already listed. Seeds that cannot be normalized are
// kept as given so that Validate reports them.
func normalizeSeeds(cfg *config.Config) {
	seen := make(map[string]bool, len(cfg.Seeds))
	seeds := make([]string, 0, len(cfg.Seeds))
	for _, raw := range cfg.Seeds {
		seed, err := crawler.NormalizeSeed(raw)
		if err != nil {
			seeds = append(seeds, raw)
			continue
		}
		key := crawler.Normalize(seed)
		if seen[key] {
			continue
		}
		seen[key] = true
		seeds = append(seeds, seed)
	}
	cfg.Seeds = seeds
}

// seedPlan is the effective configuration of one seed.
type seedPlan struct {
	seed      string
	cfg       *config.Config
	site      config.SiteConfig
	reportDir string
}

// planSeeds resolves the per-site settings of every seed and validates the
// result. With more than one seed each gets its own report subdirectory.
func planSeeds(cfg *config.Config, explicit map[string]bool) ([]seedPlan, error) {
	plans := make([]seedPlan, 0, len(cfg.Seeds))
	for _, seed := range cfg.Seeds {
		var site config.SiteConfig
		if cfg.SiteConfigs != nil {
			site = cfg.SiteConfigs.GetSiteConfig(config.SiteKey(seed))
		}

		sc := *cfg
		sc.Seeds = []string{seed}
		sc.ApplySite(seed, explicit)
		if sc.LoginURL != "" && !explicit["depth"] && site.Depth == nil {
			sc.MaxDepth = config.DefaultLoginMaxDepth
		}
		if err := sc.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", seed, err)
		}
		scope, err := sc.Scope()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", seed, err)
		}
		sc.ScopePrefix = scope

		dir := cfg.OutputDir
		if len(cfg.Seeds) > 1 {
			dir = filepath.Join(dir, seedDirName(seed))
		}
		plans = append(plans, seedPlan{seed: seed, cfg: &sc, site: site, reportDir: dir})
	}
	return plans, nil
}

// seedDirName turns a seed into a directory name.
func seedDirName(seed string) string {
	return strings.TrimSuffix(artifact.FileName(crawler.Normalize(seed)), artifact.Extension)
}

// runCrawl starts the browser and walks every planned seed.
func runCrawl(ctx context.Context, out io.Writer, cfg *config.Config, plans []seedPlan, logger *slog.Logger) error {
	logger.Info("starting crawl",
		"seeds", cfg.Seeds,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	var history *database.HistoryDB
	if cfg.SaveToDB {
		var err error
		history, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer history.Close()
		logger.Info("history database opened", "path", history.Path())
	}

	b := browser.New(
		browser.WithHeadless(!cfg.Headful),
		browser.WithUserDataDir(cfg.UserDataDir),
		browser.WithLogger(logger),
	)
	if err := b.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()

	openTab := func(context.Context) (browser.Page, func(), error) {
		tab, err := b.NewTab()
		if err != nil {
			return nil, nil, err
		}
		return tab, tab.Close, nil
	}

	var progressOut io.Writer
	if cfg.ShowProgress && cfg.BatchSize == 1 && isTerminal(os.Stderr) {
		progressOut = os.Stderr
	}

	runner := newCrawlRunner(out, plans, history, progressOut, logger)
	return runner.run(ctx, openTab, cfg.BatchSize)
}

// crawlRunner builds one pipeline per seed and prints each finished run.
type crawlRunner struct {
	out         io.Writer
	plans       map[string]seedPlan
	seeds       []string
	store       pipeline.RunStore
	progressOut io.Writer
	logger      *slog.Logger

	// newCredentials builds the provider for one login identity.
	newCredentials func(cfg *config.Config) auth.CredentialsProvider

	mu          sync.Mutex
	reports     map[string]*pipeline.ReportStep
	credentials map[credentialsKey]auth.CredentialsProvider
}

// credentialsKey identifies where a seed's login credentials come from.
// Seeds with the same key share one provider.
type credentialsKey struct {
	username    string
	passwordEnv string
}

// newCrawlRunner creates a crawlRunner. history may be nil.
func newCrawlRunner(out io.Writer, plans []seedPlan, history *database.HistoryDB, progressOut io.Writer, logger *slog.Logger) *crawlRunner {
	r := &crawlRunner{
		out:         out,
		plans:       make(map[string]seedPlan, len(plans)),
		seeds:       make([]string, 0, len(plans)),
		progressOut:    progressOut,
		logger:         logger,
		newCredentials: newCredentials,
		reports:        make(map[string]*pipeline.ReportStep),
		credentials:    make(map[credentialsKey]auth.CredentialsProvider),
	}
	for _, p := range plans {
		r.plans[p.seed] = p
		r.seeds = append(r.seeds, p.seed)
	}
	if history != nil {
		r.store = history
	}
	return r
}

// run walks all seeds with at most concurrency tabs open. Authentication
// and other pipeline errors make the command fail; an interrupted or timed
// out walk does not, since its partial report was written.
func (r *crawlRunner) run(ctx context.Context, openTab pipeline.TabOpener, concurrency int) error {
	bp := pipeline.NewBatchProcessor(openTab, r.newPipeline,
		pipeline.WithConcurrency(concurrency),
		pipeline.WithBatchLogger(r.logger),
	)

	startTime := time.Now()
	var failed []error

	err := bp.ProcessBatchWithCallback(ctx, r.seeds, func(run *model.Run, err error, index int) {
		r.mu.Lock()
		defer r.mu.Unlock()

		if len(r.seeds) > 1 {
			fmt.Fprintf(r.out, "[%d/%d] ", index+1, len(r.seeds))
		}
		r.printRun(run, err)

		if err != nil && !isInterruption(err) {
			failed = append(failed, fmt.Errorf("%s: %w", r.seeds[index], err))
		}
	})

	if len(r.seeds) > 1 {
		fmt.Fprintf(r.out, "\nWalked %d seeds in %s\n", len(r.seeds), time.Since(startTime).Round(time.Millisecond))
	}

	if len(failed) > 0 {
		return errors.Join(failed...)
	}
	if err != nil && !isInterruption(err) {
		return err
	}
	if ctx.Err() != nil {
		fmt.Fprintln(r.out, "Interrupted: partial results were reported.")
	}
	return nil
}

// isInterruption reports whether err only says the walk was cut short.
func isInterruption(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// newPipeline is the pipeline.Factory of the runner.
func (r *crawlRunner) newPipeline(page browser.Page, seed string) *pipeline.Pipeline {
	plan, ok := r.plans[seed]
	if !ok {
		// Unknown seeds still get a pipeline so RunSeed reports them.
		plan = seedPlan{seed: seed, cfg: config.NewConfig(), reportDir: config.DefaultOutputDir}
	}

	r.mu.Lock()
	fmt.Fprintf(r.out, "Walking %s...\n", seed)
	r.mu.Unlock()

	var creds auth.CredentialsProvider
	if plan.cfg.LoginURL != "" {
		creds = r.credentialsFor(plan.cfg)
	}
	p, reportStep := buildPipeline(page, plan, creds, r.store, r.progressOut, r.logger)

	r.mu.Lock()
	r.reports[seed] = reportStep
	r.mu.Unlock()

	return p
}

// credentialsFor returns the provider shared by every seed that logs in
// with the same identity, so the user is asked at most once per identity.
func (r *crawlRunner) credentialsFor(cfg *config.Config) auth.CredentialsProvider {
	key := credentialsKey{username: cfg.Username, passwordEnv: cfg.PasswordEnv}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.credentials[key]; ok {
		return p
	}
	p := auth.Once(r.newCredentials(cfg))
	r.credentials[key] = p
	return p
}

// printRun writes the summary of a finished run and where its reports went.
func (r *crawlRunner) printRun(run *model.Run, err error) {
	if run == nil {
		return
	}

	var authErr *auth.Error
	if errors.As(err, &authErr) {
		fmt.Fprintf(r.out, "Login failed for %s: %v\nNo report was written.\n", run.Seed, authErr)
		return
	}

	if _, werr := report.NewSimpleWriter(r.out).WriteSummary(model.NewSummary(run)); werr != nil {
		r.logger.Error("failed to print summary", "seed", run.Seed, "error", werr)
	}

	if step := r.reports[run.Seed]; step != nil {
		for _, path := range step.Written() {
			fmt.Fprintf(r.out, "Report written: %s\n", path)
		}
	}
	fmt.Fprintln(r.out)
}

// buildPipeline assembles the steps for one seed: login when configured,
// then the walk, the report files and the history record. creds is only
// used when the plan has a login URL. store and progressOut may be nil.
func buildPipeline(page browser.Page, plan seedPlan, creds auth.CredentialsProvider, store pipeline.RunStore, progressOut io.Writer, logger *slog.Logger) (*pipeline.Pipeline, *pipeline.ReportStep) {
	sc := plan.cfg
	p := pipeline.New(pipeline.WithLogger(logger))

	var shots *artifact.Store
	if sc.ScreenshotDir != "" {
		shots = artifact.NewStore(sc.ScreenshotDir)
	}

	if sc.LoginURL != "" {
		authOpts := []auth.Option{
			auth.WithSelectors(plan.site.LoginSelectors),
			auth.WithFailurePhrases(plan.site.FailurePhrases),
			auth.WithLogger(logger),
		}
		if shots != nil {
			authOpts = append(authOpts, auth.WithArtifactStore(shots))
		}
		if creds == nil {
			creds = newCredentials(sc)
		}
		authenticator := auth.New(creds, authOpts...)
		p.AddStep(pipeline.NewLoginStep(authenticator, page, sc.LoginURL, pipeline.WithLoginLogger(logger)))
	}

	var captures crawler.ArtifactStore
	if shots != nil {
		captures = shots
	}
	visitor := crawler.NewVisitor(captures,
		crawler.WithNavTimeout(sc.NavTimeout),
		crawler.WithProbe(sc.ProbeEnabled),
		crawler.WithProbeEmail(sc.ProbeEmail),
		crawler.WithVisitorNormalizer(crawler.Normalizer{KeepQuery: sc.KeepQuery}),
		crawler.WithVisitorLogger(logger),
	)

	// Validate has accepted the order already.
	order, _ := crawler.ParseOrder(sc.Order)
	spiderOpts := []crawler.SpiderOption{
		crawler.WithMaxDepth(sc.MaxDepth),
		crawler.WithMaxPages(sc.MaxPages),
		crawler.WithScopePrefix(sc.ScopePrefix),
		crawler.WithOrder(order),
		crawler.WithKeepQuery(sc.KeepQuery),
		crawler.WithIgnorePatterns(sc.IgnorePatterns),
		crawler.WithFollowPatterns(sc.FollowPatterns),
		crawler.WithLogger(logger),
	}

	var walker pipeline.Crawler
	if progressOut != nil {
		tracker := progress.New(progressOut, plan.seed, sc.MaxPages)
		spiderOpts = append(spiderOpts, crawler.WithOnVisit(tracker.Observe))
		walker = &trackedCrawler{Crawler: crawler.NewSpider(visitor, spiderOpts...), tracker: tracker}
	} else {
		walker = crawler.NewSpider(visitor, spiderOpts...)
	}
	p.AddStep(pipeline.NewCrawlStep(walker, page,
		pipeline.WithRunTimeout(sc.RunTimeout),
		pipeline.WithCrawlLogger(logger),
	))

	// Validate has accepted the formats already.
	formats, _ := report.ParseFormats(sc.Formats)
	reportStep := pipeline.NewReportStep(plan.reportDir, formats, getVersion(), pipeline.WithReportLogger(logger))
	p.AddStep(reportStep)

	if store != nil {
		p.AddStep(pipeline.NewPersistStep(store, logger))
	}

	return p, reportStep
}

// newCredentials reads the login credentials from the environment first
// and falls back to a terminal prompt.
func newCredentials(cfg *config.Config) auth.CredentialsProvider {
	env := auth.Env()
	env.Username = cfg.Username
	if cfg.PasswordEnv != "" {
		env.PasswordVar = cfg.PasswordEnv
	}
	return auth.FirstOf(env, auth.Prompt(cfg.Username))
}

// trackedCrawler shows a spinner while the wrapped crawler runs.
type trackedCrawler struct {
	pipeline.Crawler
	tracker *progress.Tracker
}

// Crawl implements pipeline.Crawler.
func (c *trackedCrawler) Crawl(ctx context.Context, page browser.Page, seed string) ([]*model.VisitRecord, error) {
	c.tracker.Start()
	defer c.tracker.Stop()
	return c.Crawler.Crawl(ctx, page, seed)
}
