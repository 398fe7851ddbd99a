package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/wikiedits/internal/cache"
	"github.com/ppiankov/wikiedits/internal/crawler"
	"github.com/ppiankov/wikiedits/internal/model"
	"github.com/ppiankov/wikiedits/internal/util"
	"github.com/ppiankov/wikiedits/internal/wiki"
	"github.com/ppiankov/wikiedits/internal/worker"
)

// crawlCmd represents the crawl command
var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl revision histories of the configured categories",
	Long: `Crawl lists the pages of every category of the main category, fetches
their revisions inside the time window and appends each revision paired
with its parent to data/<domain>/raw/<main_category>/raw_revisions_<category>.json.

A category whose membership query keeps failing is ended early and the
other categories continue. Minor edits are skipped unless --keep-minor is set.

Example:
  wikiedits crawl --domain wikipedia --main-category philosophy
  wikiedits crawl --domain wikinews --main-category all --years-back 2
  wikiedits crawl --categories Ethics,Logic --concurrency 2`,
	Args: cobra.NoArgs,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	crawlCmd.Flags().Int("years-back", 0, "length of the crawl window in years")
	crawlCmd.Flags().Int("concurrency", 0, "categories crawled at once")
	crawlCmd.Flags().Int("page-workers", 0, "pages crawled at once per category")
	crawlCmd.Flags().Bool("keep-minor", false, "keep revisions flagged as minor")
	crawlCmd.Flags().StringSlice("categories", nil, "explicit category list (overrides the main category)")
	crawlCmd.Flags().Bool("respect-robots", false, "check robots.txt before querying the API")
	crawlCmd.Flags().String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	crawlCmd.Flags().String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
	crawlCmd.Flags().Bool("no-cache", false, "disable the revision content cache")

	_ = viper.BindPFlag("crawl.years_back", crawlCmd.Flags().Lookup("years-back"))
	_ = viper.BindPFlag("crawl.concurrency", crawlCmd.Flags().Lookup("concurrency"))
	_ = viper.BindPFlag("crawl.page_workers", crawlCmd.Flags().Lookup("page-workers"))
	_ = viper.BindPFlag("crawl.categories", crawlCmd.Flags().Lookup("categories"))
	_ = viper.BindPFlag("http.respect_robots", crawlCmd.Flags().Lookup("respect-robots"))
	_ = viper.BindPFlag("http.http_proxy", crawlCmd.Flags().Lookup("http-proxy"))
	_ = viper.BindPFlag("http.https_proxy", crawlCmd.Flags().Lookup("https-proxy"))
}

func runCrawl(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if keep, _ := cmd.Flags().GetBool("keep-minor"); keep {
		cfg.Crawl.SkipMinor = false
	}
	if off, _ := cmd.Flags().GetBool("no-cache"); off {
		cfg.Cache.Enabled = false
	}

	client, err := newWikiClient(cfg)
	if err != nil {
		return err
	}
	c, err := crawler.New(client, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	log.Info().Str("main_category", cfg.MainCategory).Str("api", client.APIURL()).Msg("crawl starting")
	stats, err := c.Run(ctx)

	fmt.Printf("✓ Crawled %d categories: %d pages, %d revisions written (%d minor, %d skipped, %d page errors, %d truncated)\n",
		stats.Categories, stats.Pages, stats.Written, stats.Minor, stats.Skipped, stats.PageErrors, stats.Truncated)
	fmt.Printf("  Output: %s\n", cfg.RawDir())
	return err
}

// newWikiClient wires transport, rate limiter, content cache and robots check for the configured domain
func newWikiClient(cfg model.Config) (*wiki.Client, error) {
	settings, ok := model.LookupDomain(cfg.Domain)
	if !ok {
		return nil, fmt.Errorf("unknown domain %q", cfg.Domain)
	}

	transport := util.NewTransport(cfg.HTTP.HTTPProxy, cfg.HTTP.HTTPSProxy, cfg.HTTP.NoProxy,
		cfg.Crawl.Concurrency*cfg.Crawl.PageWorkers)

	var robots *util.RobotsChecker
	if cfg.HTTP.RespectRobots {
		robots = util.NewRobotsChecker(cfg.HTTP.UserAgent, &http.Client{
			Timeout:   cfg.HTTP.Timeout,
			Transport: transport,
		})
	}

	return wiki.NewClient(wiki.Options{
		APIURL:     settings.APIURL,
		UserAgent:  cfg.HTTP.UserAgent,
		Timeout:    cfg.HTTP.Timeout,
		MaxRetries: cfg.HTTP.MaxRetries,
		RetryBase:  cfg.HTTP.RetryBase,
		Transport:  transport,
		Limiter:    worker.NewLimiter(cfg.HTTP.RequestsPerSecond, cfg.HTTP.Burst),
		Cache:      cache.New(cfg),
		Robots:     robots,
	}), nil
}
