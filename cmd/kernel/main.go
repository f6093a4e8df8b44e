// Command kernel is the thin entrypoint: parse flags, load
// configuration, assemble a kernel.Kernel, and feed it lines read
// interactively. Grounded on the teacher's main.go (same shape: load
// config, build a client, build a registry, build an agent, loop on
// stdin) with flag/bufio replaced by cobra/readline per SPEC_FULL.md §1:
// the REPL stays out of scope, and each input line becomes one
// k.Converse(ctx, line) call.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/kaiho/agentkernel/background"
	"github.com/kaiho/agentkernel/bus"
	"github.com/kaiho/agentkernel/config"
	"github.com/kaiho/agentkernel/kernel"
	"github.com/kaiho/agentkernel/llm"
	"github.com/kaiho/agentkernel/logging"
	"github.com/kaiho/agentkernel/skills"
	"github.com/kaiho/agentkernel/taskboard"
	"github.com/kaiho/agentkernel/todo"
	"github.com/kaiho/agentkernel/ui"
)

var version = "dev"

func main() {
	var provider, model, workDir string

	root := &cobra.Command{
		Use:   "kernel",
		Short: "Multi-agent coding kernel",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(provider, model, workDir)
		},
	}
	root.Flags().StringVar(&provider, "provider", "", `LLM provider ("anthropic" or "openai")`)
	root.Flags().StringVar(&model, "model", "", "Model name override")
	root.Flags().StringVar(&workDir, "workdir", "", "Working directory (default: current directory)")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(provider, model, workDir string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("getwd: %w", err)
		}
	}

	cfg, err := config.Load(provider, workDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if model != "" {
		cfg.Model = model
	}

	logger, err := logging.New(workDir, "lead", true)
	if err != nil {
		return fmt.Errorf("open lead log: %w", err)
	}

	client := llm.NewHTTPClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.MaxTokens)

	skillCatalog, err := skills.Load(workDir + "/skills")
	if err != nil {
		logger.Warn().Err(err).Msg("no skill catalog loaded")
		skillCatalog = &skills.Catalog{}
	}

	k := kernel.NewKernel(kernel.Config{
		Name:       "lead",
		WorkDir:    workDir,
		Client:     client,
		Log:        logger,
		Todo:       todo.New(),
		Board:      taskboard.New(workDir + "/.tasks"),
		Bus:        bus.New(workDir + "/.team/inbox"),
		Background: background.New(workDir),
		Skills:     skillCatalog,

		LeadSystemPrompt: "Skills available (load with load_skill):\n" + skillCatalog.Descriptions(),
	})

	term := ui.NewTerminal()
	term.PrintBanner(cfg.Model, workDir, version)

	rl, err := readline.New(term.Prompt())
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			fmt.Println()
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		reply, err := k.Converse(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Println("\nInterrupted.")
				break
			}
			term.PrintError(err)
			continue
		}
		fmt.Println(reply)
	}
	return nil
}
