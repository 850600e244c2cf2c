package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/whitover/whitoverbot/internal/bot"
	"github.com/whitover/whitoverbot/internal/config"
	"github.com/whitover/whitoverbot/internal/flow"
	"github.com/whitover/whitoverbot/internal/importer"
	"github.com/whitover/whitoverbot/internal/service"
	"github.com/whitover/whitoverbot/internal/storage"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:          "whitoverbot",
		Short:        "Whitover community bot: residents, the WVR bank and the task board",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfgPath)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	return cmd
}

func run(ctx context.Context, cfgPath string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer log.Sync()

	civilDB, err := storage.OpenCivilianDB(ctx, cfg.CivilianDB)
	if err != nil {
		return err
	}
	defer civilDB.Close()
	bankDB, err := storage.OpenBankDB(ctx, cfg.BankDB)
	if err != nil {
		return err
	}
	defer bankDB.Close()
	tasksDB, err := storage.OpenTasksDB(ctx, cfg.TasksDB)
	if err != nil {
		return err
	}
	defer tasksDB.Close()

	dir := storage.NewDirectory(civilDB, log)
	ledger := storage.NewLedger(bankDB, dir, log)
	board := storage.NewTaskBoard(tasksDB)
	black := storage.NewBlacklist(cfg.BlacklistFile, log)
	apps, err := storage.NewApplications(cfg.ApplicationsDir, log)
	if err != nil {
		return err
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	notifier := bot.NewNotifier(api)
	bank := service.NewBank(ledger, dir, notifier, log)
	registry := service.NewRegistry(dir, apps, ledger, black, notifier, log)

	engine := flow.NewEngine(log)
	flows := bot.Flows{
		Registration: flow.NewRegistrationFlow(registry),
		Transfer:     flow.NewTransferFlow(dir, bank),
		Deposit:      flow.NewDepositFlow(dir, bank),
		Withdraw:     flow.NewWithdrawFlow(dir, bank),
		Exchange:     flow.NewExchangeFlow(dir, bank),
		TaskCreate:   flow.NewTaskCreateFlow(board),
		TaskEdit:     flow.NewTaskEditFlow(board),
	}
	b := bot.New(api, engine, dir, ledger, board, black, bank, registry, flows, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(ctx) })
	if cfg.FeedSnapshot != "" {
		sync := importer.NewSyncer(importer.NewCSVSource(cfg.FeedSnapshot), dir, log)
		g.Go(func() error { return sync.Run(ctx, cfg.SyncInterval) })
	}

	log.Info("whitoverbot started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
