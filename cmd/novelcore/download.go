package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/go-novel/novelcore/internal/bookinfo"
	"github.com/go-novel/novelcore/internal/config"
	"github.com/go-novel/novelcore/internal/home"
	"github.com/go-novel/novelcore/internal/novel"
	"github.com/go-novel/novelcore/internal/pipeline"
	"github.com/go-novel/novelcore/internal/session"
	"github.com/go-novel/novelcore/internal/sitesupport/biquge"
	"github.com/go-novel/novelcore/internal/sitesupport/yamibo"
	"github.com/go-novel/novelcore/internal/store/badger"
)

var (
	downloadSite    string
	downloadStartID string
	downloadEndID   string
)

var downloadCmd = &cobra.Command{
	Use:   "download <book-id>",
	Short: "Download a book's chapters from a supported site",
	Args:  cobra.ExactArgs(1),
	RunE:  runDownload,
}

func init() {
	downloadCmd.Flags().StringVar(&downloadSite, "site", "biquge", "site to download from (biquge, yamibo)")
	downloadCmd.Flags().StringVar(&downloadStartID, "start", "", "inclusive starting chapter ID")
	downloadCmd.Flags().StringVar(&downloadEndID, "end", "", "inclusive ending chapter ID")
}

func runDownload(cmd *cobra.Command, args []string) error {
	bookID := args[0]

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: GetLogLevel()}))

	dir, err := home.New(homeDir)
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	if err := dir.EnsureExists(downloadSite); err != nil {
		return fmt.Errorf("create home directories: %w", err)
	}

	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := mgr.Get()

	pcfg, err := cfg.ToPipelineConfig(downloadSite)
	if err != nil {
		return err
	}
	pcfg.RawDataDir = filepath.Join(dir.Path(), home.RawDirName)
	pcfg.CacheDir = filepath.Join(dir.Path(), home.CacheDirName)

	site, _ := cfg.Site(downloadSite)
	fetcher, parser, err := buildSiteAdapters(downloadSite, pcfg, dir.StatePath(downloadSite), site.BlacklistWords)
	if err != nil {
		return err
	}

	chapterStore, err := badger.Open(badger.Config{
		Dir:       dir.CachePath(downloadSite) + "/chapters",
		Logger:    logger,
		BatchSize: pcfg.StorageBatchSize,
	})
	if err != nil {
		return fmt.Errorf("open chapter store: %w", err)
	}
	defer chapterStore.Close()

	sessions := session.NewStore(dir.StatePath(downloadSite), logger)
	info := bookinfo.New(downloadSite, pcfg.RawDataDir, pcfg.CacheDir, pcfg.SaveHTML, logger)

	pl := pipeline.New(pcfg, fetcher, parser, chapterStore, sessions, info, logger)

	username, password := cfg.Credentials(downloadSite)
	book := novel.BookConfig{BookID: bookID, StartID: downloadStartID, EndID: downloadEndID}
	opts := pipeline.Options{
		Username: username,
		Password: password,
		Progress: func(completed, total int) {
			fmt.Fprintf(cmd.OutOrStdout(), "\r%d/%d chapters", completed, total)
		},
	}

	if err := pl.Download(cmd.Context(), book, opts); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout())
	return nil
}

func buildSiteAdapters(site string, pcfg pipeline.Config, stateDir string, blacklist []string) (novel.Fetcher, novel.Parser, error) {
	switch site {
	case "biquge":
		f, err := biquge.New(biquge.Config{RetryTimes: uint(pcfg.RetryTimes), RetryBackoff: pcfg.BackoffFactor})
		if err != nil {
			return nil, nil, err
		}
		return f, biquge.Parser{Blacklist: blacklist}, nil
	case "yamibo":
		f, err := yamibo.New(yamibo.Config{RetryTimes: uint(pcfg.RetryTimes), RetryBackoff: pcfg.BackoffFactor, StateDir: stateDir})
		if err != nil {
			return nil, nil, err
		}
		return f, yamibo.Parser{Blacklist: blacklist}, nil
	default:
		return nil, nil, fmt.Errorf("unknown site %q", site)
	}
}
