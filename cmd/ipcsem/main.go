package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/neekrasov/ipcsem/internal/application"
	"github.com/neekrasov/ipcsem/internal/bench"
	"github.com/neekrasov/ipcsem/internal/config"
	"github.com/neekrasov/ipcsem/internal/shell"
	"github.com/neekrasov/ipcsem/pkg/ipcsem/spin"
	"github.com/neekrasov/ipcsem/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitHash   = "unset"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ipcsem",
		Short: "Busy-wait semaphore in shared memory and its benchmark",
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ipcsem version %s\nbuild time: %s\nhash: %s\n",
				version, buildTime, gitHash)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "size",
		Short: "Print the bytes one spin semaphore needs",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(spin.RequiredSize())
		},
	})

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Ping-pong benchmark of the named and spin semaphores",
		Run: func(cmd *cobra.Command, args []string) {
			configPath, _ := cmd.Flags().GetString("config")
			inProcess, _ := cmd.Flags().GetBool("in-process")
			startBench(configPath, inProcess)
		},
	}
	benchCmd.Flags().StringP("config", "c", "config.yml", "Path to config file")
	benchCmd.Flags().Bool("in-process", false, "Run the peer as a goroutine instead of a process")
	rootCmd.AddCommand(benchCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:    "peer",
		Short:  "Benchmark peer, started by bench",
		Hidden: true,
		Run: func(cmd *cobra.Command, args []string) {
			startPeer()
		},
	})

	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive prompt over one semaphore",
		Run: func(cmd *cobra.Command, args []string) {
			var target shell.Target
			target.Backend, _ = cmd.Flags().GetString("backend")
			target.Name, _ = cmd.Flags().GetString("name")
			target.Directory, _ = cmd.Flags().GetString("dir")
			target.Slot, _ = cmd.Flags().GetInt("slot")
			target.Create, _ = cmd.Flags().GetBool("create")
			target.Initial, _ = cmd.Flags().GetInt("initial")
			logLevel, _ := cmd.Flags().GetString("log-level")
			startShell(target, logLevel)
		},
	}
	shellCmd.Flags().String("backend", bench.BackendSpin, "Semaphore backend: spin or named")
	shellCmd.Flags().String("name", "", "Segment or semaphore name")
	shellCmd.Flags().String("dir", "", "Directory of the shared memory objects")
	shellCmd.Flags().Int("slot", 0, "Slot of a spin semaphore inside its segment")
	shellCmd.Flags().Bool("create", false, "Create the semaphore, removing it on exit")
	shellCmd.Flags().Int("initial", 0, "Initial permits of a created semaphore")
	shellCmd.Flags().String("log-level", "warn", "Log level")
	_ = shellCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(shellCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func startBench(cfgPath string, inProcess bool) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGABRT)
	defer cancel()

	cfg, err := config.GetConfig(cfgPath)
	if err != nil {
		log.Fatalf("failed to get config: %s", err)
	}

	if inProcess {
		if cfg.Bench == nil {
			cfg.Bench = &config.BenchConfig{}
		}
		cfg.Bench.InProcess = true
	}

	executable, err := os.Executable()
	if err != nil {
		log.Fatalf("failed to resolve executable: %s", err)
	}

	app := application.New(&cfg, application.WithPeerCommand(executable, "peer"))
	if err := app.Start(ctx); err != nil {
		log.Fatalf("application error: %s", err)
	}
}

func startPeer() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// stdout carries the report
	logger.InitStderrLogger(os.Getenv(application.LogLevelEnv), "")

	if err := bench.RunPeer(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Fatal("peer failed", zap.Error(err))
	}
}

func startShell(target shell.Target, logLevel string) {
	logger.InitStderrLogger(logLevel, "")
	target.Backoff = spin.DefaultBackoff()

	sem, closeFn, err := target.Open()
	if err != nil {
		log.Fatalf("failed to open semaphore: %s", err)
	}
	defer func() {
		if err := closeFn(); err != nil {
			logger.Error("close semaphore", zap.Error(err))
		}
	}()

	rl, err := shell.NewReadline(target.Backend + ":" + target.Name)
	if err != nil {
		log.Fatalf("failed to init readline: %s", err)
	}

	if err := shell.New(sem).Run(context.Background(), rl); err != nil {
		logger.Error("shell stopped", zap.Error(err))
	}
}
