package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jeovahfialho/tradejournal/internal/auth"
	"github.com/jeovahfialho/tradejournal/internal/config"
	"github.com/jeovahfialho/tradejournal/internal/domain"
	"github.com/jeovahfialho/tradejournal/internal/ingestion"
	"github.com/jeovahfialho/tradejournal/internal/service"
	"github.com/jeovahfialho/tradejournal/internal/storage"
	"github.com/jeovahfialho/tradejournal/internal/storage/cache"
	pkglogger "github.com/jeovahfialho/tradejournal/pkg/logger"
)

var owner string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "journal",
		Short: "Trade journal CLI",
		Long: `CLI for the trade journal.
Records trades with screenshots, imports CSV journals and prints summaries.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&owner, "owner", "u", os.Getenv("JOURNAL_OWNER"), "Owner id the journal is scoped to")

	// migrate
	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Creates the journal tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate()
		},
	}

	// add
	var raw domain.RawTrade
	var screenshots []string
	var addCmd = &cobra.Command{
		Use:   "add",
		Short: "Records a trade",
		Long: `Records a trade. Without --pnl the result is estimated from the entry and
exit prices, size and fees.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return addTrade(raw, screenshots)
		},
	}
	addCmd.Flags().StringVar(&raw.Market, "market", domain.DefaultMarket, "Market ("+strings.Join(domain.KnownMarkets, ", ")+")")
	addCmd.Flags().StringVarP(&raw.Symbol, "symbol", "s", "", "Symbol")
	addCmd.Flags().StringVarP(&raw.Direction, "direction", "d", "long", "long or short")
	addCmd.Flags().StringVar(&raw.EntryTime, "entry-time", "", "Entry time (2006-01-02T15:04)")
	addCmd.Flags().StringVar(&raw.ExitTime, "exit-time", "", "Exit time (2006-01-02T15:04)")
	addCmd.Flags().StringVar(&raw.EntryPrice, "entry", "", "Entry price")
	addCmd.Flags().StringVar(&raw.ExitPrice, "exit", "", "Exit price")
	addCmd.Flags().StringVar(&raw.Size, "size", "", "Position size")
	addCmd.Flags().StringVar(&raw.Fees, "fees", "", "Fees")
	addCmd.Flags().StringVar(&raw.PnL, "pnl", "", "Realized pnl, overrides the estimate")
	addCmd.Flags().StringVar(&raw.RMultiple, "r", "", "R multiple")
	addCmd.Flags().StringVar(&raw.Setup, "setup", "", "Setup name")
	addCmd.Flags().StringVar(&raw.Tags, "tags", "", "Comma separated tags")
	addCmd.Flags().StringVar(&raw.Notes, "notes", "", "Notes")
	addCmd.Flags().StringVar(&raw.Mood, "mood", "", "Mood (1-5)")
	addCmd.Flags().StringVar(&raw.SleepHours, "sleep", "", "Hours slept")
	addCmd.Flags().StringVar(&raw.RuleBreaks, "rule-breaks", "", "Comma separated rule breaks")
	addCmd.Flags().StringSliceVar(&screenshots, "screenshot", nil, "Screenshot file, repeatable")
	_ = addCmd.MarkFlagRequired("symbol")

	// list
	var listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists the newest trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return listTrades(limit)
		},
	}
	listCmd.Flags().IntP("limit", "n", 20, "Number of trades")

	// show
	var showCmd = &cobra.Command{
		Use:   "show [id]",
		Short: "Shows a trade and links to its screenshots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, _ := cmd.Flags().GetDuration("ttl")
			return showTrade(args[0], ttl)
		},
	}
	showCmd.Flags().Duration("ttl", 0, "Link lifetime, defaults to JOURNAL_SIGNED_URL_TTL")

	// summary
	var summaryCmd = &cobra.Command{
		Use:   "summary",
		Short: "Summarizes the newest trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return printSummary(limit)
		},
	}
	summaryCmd.Flags().IntP("limit", "n", domain.DefaultSummaryWindow, "Number of trades, -1 for all")

	// import
	var importCmd = &cobra.Command{
		Use:   "import [files...]",
		Short: "Imports journal CSV files",
		Long: `Imports journal CSV files. The header row names the columns; symbol is
required, side/direction accepts buy and sell. Accepts several files and shell
wildcards (e.g. exports/*.csv).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			delimiter, _ := cmd.Flags().GetString("delimiter")
			return importFiles(args, delimiter)
		},
	}
	importCmd.Flags().String("delimiter", ",", "Field delimiter")

	// token
	var tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issues a bearer token for the owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			ttl, _ := cmd.Flags().GetDuration("ttl")
			return issueToken(ttl)
		},
	}
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime, defaults to JOURNAL_TOKEN_TTL")

	// health
	var healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Checks database, object storage and cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkHealth()
		},
	}

	rootCmd.AddCommand(migrateCmd, addCmd, listCmd, showCmd, summaryCmd, importCmd, tokenCmd, healthCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	cfg       *config.Config
	db        *storage.Database
	cache     cache.Store
	trades    *service.TradeService
	analytics *service.AnalyticsService
}

func (a *app) Close() {
	_ = a.cache.Close()
	a.db.Close()
	pkglogger.Close()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := pkglogger.Init(cfg.LogLevel, cfg.Development()); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	db, err := storage.OpenDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	objs, err := storage.OpenObjects(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open object storage: %w", err)
	}

	c := storage.OpenCache(cfg)
	analytics := service.NewAnalyticsService(db.Repo, c)
	attachments := service.NewAttachmentManager(db.Repo, objs.Store).WithLinkTTL(cfg.SignedURLTTL)

	return &app{
		cfg:       cfg,
		db:        db,
		cache:     c,
		trades:    service.NewTradeService(db.Repo, attachments, analytics),
		analytics: analytics,
	}, nil
}

func requireOwner() (domain.Owner, error) {
	if strings.TrimSpace(owner) == "" {
		return "", fmt.Errorf("--owner or JOURNAL_OWNER is required")
	}
	return domain.Owner(owner), nil
}

func migrate() error {
	ctx := context.Background()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := storage.OpenDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Printf("🔄 Applying schema (%s)...\n", db.Driver)
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	fmt.Println("✅ Schema up to date")
	return nil
}

func addTrade(raw domain.RawTrade, screenshots []string) error {
	ctx := context.Background()
	o, err := requireOwner()
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	uploads := make([]domain.Upload, 0, len(screenshots))
	for _, path := range screenshots {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		uploads = append(uploads, domain.Upload{FileName: filepath.Base(path), Data: data})
	}

	result, err := a.trades.Save(ctx, o, raw, uploads)
	if err != nil {
		return err
	}

	fmt.Printf("✅ Trade %s saved\n", result.Trade.ID)
	fmt.Printf("├─ %s %s %s\n", result.Trade.Market, result.Trade.Symbol, result.Trade.Direction)
	fmt.Printf("└─ PnL: %s\n", formatDecimal(result.Trade.PnL))

	for _, att := range result.Attachments {
		fmt.Printf("📎 %s\n", att.Path)
	}
	if result.UploadErr != nil {
		fmt.Printf("⚠️  Trade saved, but screenshot %d (%s) failed: %v\n",
			result.UploadErr.Index+1, result.UploadErr.FileName, result.UploadErr.Err)
		return result.UploadErr
	}

	return nil
}

func listTrades(limit int) error {
	ctx := context.Background()
	o, err := requireOwner()
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	trades, err := a.trades.List(ctx, o, limit)
	if err != nil {
		return err
	}

	if len(trades) == 0 {
		fmt.Println("❌ No trades recorded")
		fmt.Println("💡 Use 'add' or 'import' to record trades")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tMARKET\tSYMBOL\tSIDE\tPNL\tR\tTAGS")
	for _, t := range trades {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID,
			t.CreatedAt.Local().Format("2006-01-02 15:04"),
			t.Market,
			t.Symbol,
			t.Direction,
			formatDecimal(t.PnL),
			formatDecimal(t.RMultiple),
			strings.Join(t.Tags, ","))
	}
	return w.Flush()
}

func showTrade(id string, ttl time.Duration) error {
	ctx := context.Background()
	o, err := requireOwner()
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	detail, err := a.trades.Get(ctx, o, id, ttl)
	if err != nil {
		return err
	}

	t := detail.Trade
	fmt.Printf("📊 %s %s (%s)\n", t.Symbol, t.Direction, t.Market)
	fmt.Printf("├─ Entry: %s", formatDecimal(t.EntryPrice))
	if t.EntryTime != nil {
		fmt.Printf(" at %s", t.EntryTime.Format(time.RFC3339))
	}
	fmt.Printf("\n├─ Exit: %s", formatDecimal(t.ExitPrice))
	if t.ExitTime != nil {
		fmt.Printf(" at %s", t.ExitTime.Format(time.RFC3339))
	}
	fmt.Printf("\n├─ Size: %s  Fees: %s\n", formatDecimal(t.Size), formatDecimal(t.Fees))
	fmt.Printf("├─ PnL: %s  R: %s\n", formatDecimal(t.PnL), formatDecimal(t.RMultiple))
	if t.Setup != nil {
		fmt.Printf("├─ Setup: %s\n", *t.Setup)
	}
	if len(t.Tags) > 0 {
		fmt.Printf("├─ Tags: %s\n", strings.Join(t.Tags, ", "))
	}
	if len(t.RuleBreaks) > 0 {
		fmt.Printf("├─ Rule breaks: %s\n", strings.Join(t.RuleBreaks, ", "))
	}
	if t.Mood != nil {
		fmt.Printf("├─ Mood: %d\n", *t.Mood)
	}
	if t.Notes != nil {
		fmt.Printf("├─ Notes: %s\n", *t.Notes)
	}
	fmt.Printf("└─ Screenshots: %d\n", len(detail.Attachments))

	for _, v := range detail.Attachments {
		if v.URL == nil {
			fmt.Printf("   - %s (unavailable)\n", filepath.Base(v.Path))
			continue
		}
		fmt.Printf("   - %s\n     %s\n", filepath.Base(v.Path), *v.URL)
	}

	return nil
}

func printSummary(limit int) error {
	ctx := context.Background()
	o, err := requireOwner()
	if err != nil {
		return err
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.analytics.Summary(ctx, o, limit)
	if err != nil {
		return err
	}

	window := fmt.Sprintf("last %d trades", limit)
	if limit < 0 {
		window = "all trades"
	}

	fmt.Printf("📈 Summary (%s):\n", window)
	fmt.Printf("├─ Trades: %d (%d wins, %d losses)\n", s.Count, s.Wins, s.Losses)
	fmt.Printf("├─ Total PnL: %s\n", s.TotalPnL.StringFixed(2))
	fmt.Printf("├─ Win rate: %.1f%%\n", s.WinRate)
	fmt.Printf("└─ Average R: %s\n", s.AverageR.StringFixed(2))
	return nil
}

func importFiles(patterns []string, delimiter string) error {
	ctx := context.Background()
	o, err := requireOwner()
	if err != nil {
		return err
	}

	var files []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			return fmt.Errorf("bad pattern %s: %w", p, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return fmt.Errorf("no files match %s", strings.Join(patterns, " "))
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	parser := ingestion.NewParser(100, a.cfg.Workers)
	if r := []rune(delimiter); len(r) == 1 {
		parser.WithComma(r[0])
	}
	loader := ingestion.NewLoader(a.db.Repo)

	workerPool := ingestion.NewWorkerPool(a.cfg.Workers, parser, loader)
	workerPool.Start(ctx)
	defer workerPool.Stop()

	results := make(chan ingestion.JobResult, len(files))

	fmt.Printf("📥 Importing %d file(s)...\n\n", len(files))

	for _, file := range files {
		workerPool.Submit(ingestion.Job{
			FilePath: file,
			Owner:    o,
			Result:   results,
		})
	}

	var totalRecords int64
	failed := 0
	for i := 0; i < len(files); i++ {
		result := <-results
		totalRecords += result.RecordsCount

		if result.Error != nil {
			failed++
			fmt.Printf("❌ %s: %v (%d trades stored before the error)\n", result.FilePath, result.Error, result.RecordsCount)
		} else {
			fmt.Printf("✅ %d trades from %s (%s)\n", result.RecordsCount, result.FilePath, fileSize(result.FilePath))
		}
		for _, skipped := range result.Skipped {
			fmt.Printf("   ⚠️  skipped %v\n", skipped)
		}
	}

	if totalRecords > 0 {
		a.analytics.Invalidate(ctx, o)
	}

	fmt.Printf("\n📊 Total: %d trades imported\n", totalRecords)
	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

func issueToken(ttl time.Duration) error {
	o, err := requireOwner()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer pkglogger.Close()

	if ttl <= 0 {
		ttl = cfg.TokenTTL
	}

	token, expiresAt, err := auth.New(cfg.APIKey, ttl).Sign(o)
	if err != nil {
		return err
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Local().Format(time.RFC3339))
	return nil
}

func checkHealth() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer pkglogger.Close()

	fmt.Println("🏥 Checking system health...")
	fmt.Println()

	healthy := true

	fmt.Print("Database: ")
	db, err := storage.OpenDatabase(cfg)
	if err != nil {
		healthy = false
		fmt.Printf("❌ %v\n", err)
	} else {
		defer db.Close()
		if err := db.HealthCheck(ctx); err != nil {
			healthy = false
			fmt.Printf("❌ %v\n", err)
		} else {
			fmt.Printf("✅ OK (%s)\n", db.Driver)
		}
	}

	fmt.Print("Object storage: ")
	objs, err := storage.OpenObjects(ctx, cfg)
	if err == nil {
		err = objs.HealthCheck(ctx)
	}
	if err != nil {
		healthy = false
		fmt.Printf("❌ %v\n", err)
	} else {
		fmt.Printf("✅ OK (%s)\n", cfg.StorageDriver)
	}

	fmt.Print("Cache: ")
	c := storage.OpenCache(cfg)
	defer c.Close()
	if err := c.HealthCheck(ctx); err != nil {
		fmt.Printf("⚠️  %v\n", err)
	} else if _, ok := c.(*cache.MemoryCache); ok {
		fmt.Println("✅ OK (in-process)")
	} else {
		fmt.Println("✅ OK (redis)")
	}

	fmt.Println()
	if !healthy {
		return fmt.Errorf("health check failed")
	}
	fmt.Println("✅ All checks passed")
	return nil
}

func formatDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.String()
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	return formatBytes(info.Size())
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
