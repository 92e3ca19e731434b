package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/sdvlabs/campusbot/internal/types"
	"github.com/sdvlabs/campusbot/pkg/agent"
	"github.com/sdvlabs/campusbot/pkg/config"
	"github.com/sdvlabs/campusbot/pkg/export"
	"github.com/sdvlabs/campusbot/pkg/ingest"
	"github.com/sdvlabs/campusbot/pkg/llm"
	"github.com/sdvlabs/campusbot/pkg/processor"
	"github.com/sdvlabs/campusbot/pkg/scraper"
	"github.com/sdvlabs/campusbot/pkg/store"
	"github.com/sdvlabs/campusbot/server"
)

var (
	configFile string
	verbose    bool
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "campusbot",
		Short: "Campusbot - Multi-agent assistant for the Sup de Vinci school",
		Long: `Campusbot answers questions about the school from its website and
documentation, and collects contact details from prospective students.
It keeps its knowledge base fresh by scraping the school website into a
pgvector store.`,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	var skipIndex bool
	var scrapeCmd = &cobra.Command{
		Use:   "scrape [url]",
		Short: "Scrape the school website into the knowledge base",
		Long: `Crawl the school website (or the given URL), save every page as
markdown and index the content in the web collection of the vector store.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(args, skipIndex)
		},
	}
	scrapeCmd.Flags().BoolVar(&skipIndex, "skip-index", false, "save markdown only, do not index")

	var ingestCmd = &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Index a directory of documentation files",
		Long:  `Read every .md and .txt file in the directory and index it in the documentation collection of the vector store.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(args[0])
		},
	}

	var chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
	}

	var serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the WebSocket chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	var statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show lead collection statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats()
		},
	}

	rootCmd.AddCommand(scrapeCmd, ingestCmd, chatCmd, serveCmd, statsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func validateLLM(cfg *config.Config) error {
	var problems []string
	for _, e := range cfg.Validate() {
		problems = append(problems, e.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}

func newStore(cfg *config.Config) (*store.VectorStore, *llm.Embedder, error) {
	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Endpoint:   cfg.LLM.Endpoint,
		APIKey:     cfg.LLM.APIKey,
		APIVersion: cfg.LLM.APIVersion,
		Model:      cfg.LLM.EmbeddingModel,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	vectorStore, err := store.NewWithConfig(store.VectorStoreConfig{
		ConnString:  cfg.Database.URL,
		Collections: []string{cfg.Web.Collection, cfg.Docs.Collection},
		VectorDim:   cfg.Database.VectorDim,
		BatchSize:   cfg.Database.BatchSize,
	}, embedder)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}

	return vectorStore, embedder, nil
}

func newRouter(cfg *config.Config, vectorStore *store.VectorStore, embedder *llm.Embedder, leads *export.ExcelWriter) (*agent.Router, error) {
	llmConfig := llmConfigFrom(cfg)

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Endpoint:    cfg.LLM.Endpoint,
		APIKey:      cfg.LLM.APIKey,
		APIVersion:  cfg.LLM.APIVersion,
		Deployment:  cfg.LLM.Deployment,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	webAgent, err := agent.NewWebAgent(agent.WebAgentConfig{
		Store:       vectorStore,
		Embedder:    embedder,
		Collection:  cfg.Web.Collection,
		SearchLimit: cfg.Web.SearchLimit,
		LLM:         llmConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize web agent: %w", err)
	}

	docAgent, err := agent.NewDocAgent(agent.DocAgentConfig{
		Store:       vectorStore,
		Embedder:    embedder,
		Collection:  cfg.Docs.Collection,
		SearchLimit: cfg.Docs.SearchLimit,
		MaxTokens:   cfg.Docs.MaxTokens,
		LLM:         llmConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize doc agent: %w", err)
	}

	return agent.NewRouter(agent.RouterConfig{
		Chat: chatEngine,
		Web:  webAgent,
		Doc:  docAgent,
		Form: agent.NewFormAgent(leads),
	}), nil
}

func llmConfigFrom(cfg *config.Config) types.LLMConfig {
	return types.LLMConfig{
		Endpoint:       cfg.LLM.Endpoint,
		APIKey:         cfg.LLM.APIKey,
		APIVersion:     cfg.LLM.APIVersion,
		Deployment:     cfg.LLM.Deployment,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		MaxTokens:      cfg.LLM.MaxTokens,
		Temperature:    cfg.LLM.Temperature,
	}
}

func scraperConfigFrom(cfg *config.Config) scraper.ScraperConfig {
	return scraper.ScraperConfig{
		BaseURL:        cfg.Scraper.BaseURL,
		MaxDepth:       cfg.Scraper.MaxDepth,
		MaxPages:       cfg.Scraper.MaxPages,
		RateLimit:      cfg.Scraper.RateLimit,
		IgnorePatterns: cfg.Scraper.IgnorePatterns,
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived signal, shutting down gracefully...")
		cancel()
	}()

	return ctx, cancel
}

func runScrape(args []string, skipIndex bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	scraperConfig := scraperConfigFrom(cfg)
	if len(args) > 0 {
		scraperConfig.BaseURL = args[0]
	}

	ctx, cancel := signalContext()
	defer cancel()

	color.Blue("\nScraping %s\n", scraperConfig.BaseURL)

	var scrapedCount int32
	scraperConfig.OnProgress = func(string) {
		atomic.AddInt32(&scrapedCount, 1)
	}

	sc, err := scraper.NewWithConfig(scraperConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize scraper: %w", err)
	}

	scrapingBar := getProgressBar(-1, "Scraping website...")
	startTime := time.Now()
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(100 * time.Millisecond):
				count := atomic.LoadInt32(&scrapedCount)
				scrapingBar.Set(int(count))
				elapsed := time.Since(startTime).Seconds()
				if elapsed > 0 {
					scrapingBar.Describe(color.BlueString(
						"Scraping website... (%.1f pages/sec)", float64(count)/elapsed))
				}
			}
		}
	}()

	docs, err := sc.Scrape(ctx, scraperConfig.BaseURL)
	close(done)
	scrapingBar.Finish()
	if err != nil {
		return fmt.Errorf("failed to scrape: %w", err)
	}
	color.Green("\n✓ Scraped %d pages\n", len(docs))

	if err := scraper.SaveMarkdown(cfg.Scraper.OutputDir, docs); err != nil {
		return fmt.Errorf("failed to save markdown: %w", err)
	}
	color.Green("✓ Saved markdown to %s\n", cfg.Scraper.OutputDir)

	if skipIndex {
		return nil
	}

	if err := validateLLM(cfg); err != nil {
		return err
	}

	vectorStore, _, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer vectorStore.Close()

	proc := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Web.ChunkSize,
		ChunkOverlap: cfg.Web.ChunkOverlap,
	})

	storageBar := getProgressBar(-1, "Indexing pages...")
	pipeline := &ingest.Pipeline{
		Processor:  &proc,
		Store:      vectorStore,
		Collection: cfg.Web.Collection,
		BatchSize:  cfg.Database.BatchSize,
		OnBatch:    func(stored int) { storageBar.Add(stored) },
	}

	chunks, err := pipeline.Run(ctx, docs)
	storageBar.Finish()
	if err != nil {
		return fmt.Errorf("failed to index pages: %w", err)
	}

	color.Green("\n✓ Indexed %d pages into %d chunks\n", len(docs), chunks)
	return nil
}

func runIngest(dir string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := validateLLM(cfg); err != nil {
		return err
	}

	docs, err := ingest.LoadDirectory(dir)
	if err != nil {
		return err
	}
	color.Blue("\nIngesting %d files from %s\n", len(docs), dir)

	vectorStore, _, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer vectorStore.Close()

	proc := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Docs.ChunkSize,
		ChunkOverlap: cfg.Docs.ChunkOverlap,
	})

	ctx, cancel := signalContext()
	defer cancel()

	storageBar := getProgressBar(-1, "Indexing documents...")
	pipeline := &ingest.Pipeline{
		Processor:  &proc,
		Store:      vectorStore,
		Collection: cfg.Docs.Collection,
		BatchSize:  cfg.Database.BatchSize,
		OnBatch:    func(stored int) { storageBar.Add(stored) },
	}

	chunks, err := pipeline.Run(ctx, docs)
	storageBar.Finish()
	if err != nil {
		return fmt.Errorf("failed to index documents: %w", err)
	}

	color.Green("\n✓ Indexed %d files into %d chunks\n", len(docs), chunks)
	return nil
}

func runChat() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := validateLLM(cfg); err != nil {
		return err
	}

	vectorStore, embedder, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer vectorStore.Close()

	leads := export.NewExcelWriter(cfg.Export.ExcelPath)
	router, err := newRouter(cfg, vectorStore, embedder, leads)
	if err != nil {
		return err
	}

	color.Cyan("\nAssistant Sup de Vinci (tapez 'exit' pour quitter, '/reset' pour recommencer)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nVous : ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if strings.ToLower(query) == "exit" || strings.ToLower(query) == "quit" {
			break
		}
		if query == "/reset" {
			router.ClearHistory()
			if form := router.Form(); form != nil {
				form.Reset()
			}
			color.Yellow("Conversation réinitialisée.")
			continue
		}

		spinner := getSpinner("Recherche...")
		reply, stream, err := router.RouteStream(context.Background(), query)
		spinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Erreur : %v\n", err)
			continue
		}

		assistantPrompt("Assistant : ")
		for chunk := range stream {
			assistantPrompt("%s", chunk)
		}
		fmt.Print("\n")

		if verbose {
			fmt.Printf("[%s -> %s]\n", reply.Intent, reply.TargetAgent)
		}
	}

	return nil
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := validateLLM(cfg); err != nil {
		return err
	}

	vectorStore, embedder, err := newStore(cfg)
	if err != nil {
		return err
	}
	defer vectorStore.Close()

	leads := export.NewExcelWriter(cfg.Export.ExcelPath)
	router, err := newRouter(cfg, vectorStore, embedder, leads)
	if err != nil {
		return err
	}

	proc := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    cfg.Web.ChunkSize,
		ChunkOverlap: cfg.Web.ChunkOverlap,
	})

	srv, err := server.NewWSServer(server.Config{
		Addr:       cfg.Server.Addr,
		Streaming:  cfg.Server.Streaming,
		Collection: cfg.Web.Collection,
		BatchSize:  cfg.Database.BatchSize,
		Router:     router,
		Leads:      leads,
		Scraper:    scraperConfigFrom(cfg),
		Processor:  &proc,
		Store:      vectorStore,
	})
	if err != nil {
		return err
	}

	return srv.Start()
}

func runStats() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	leads := export.NewExcelWriter(cfg.Export.ExcelPath)
	stats, err := leads.Stats()
	if err != nil {
		return fmt.Errorf("failed to read lead workbook: %w", err)
	}

	color.Cyan("Lead statistics (%s)", leads.Path())
	fmt.Printf("Total leads: %d\n", stats.Total)
	fmt.Printf("Collected today: %d\n", stats.Today)
	return nil
}
