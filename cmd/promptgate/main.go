package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/zen-systems/promptgate/pkg/command"
	"github.com/zen-systems/promptgate/pkg/imagen"
	"github.com/zen-systems/promptgate/pkg/metrics"
	"github.com/zen-systems/promptgate/pkg/orchestrator"
	"github.com/zen-systems/promptgate/pkg/registry"
	"github.com/zen-systems/promptgate/pkg/server"
)

var configFile string

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "promptgate",
		Short: "Request classification, routing, and safety gateway for AI backends",
		Long: `Promptgate classifies inbound requests, routes them to the most
	appropriate backend model, screens input and output through a safety
	gate, and falls back across providers when a backend fails.`,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(imagineCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(routesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configFile, metrics.New(prometheus.DefaultRegisterer))
			if err != nil {
				return err
			}
			defer app.Close()

			srv := server.New(
				app.cfg.Server.Addr,
				app.orch,
				app.registry,
				app.metrics,
				app.log,
				app.cfg.Server.ShutdownTimeout,
				server.WithImagePipeline(app.pipeline),
				server.WithImageFS(app.fs, app.cfg.Storage.Root),
			)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}
}

func askCmd() *cobra.Command {
	var modelFlag string
	var categoryFlag string
	var userFlag string

	cmd := &cobra.Command{
		Use:   "ask [message]",
		Short: "Send one message through the gateway",
		Long: `Runs a single message through the full lifecycle: safety check,
	classification, routing, generation with fallback, output check.
	Directives like "/solve 2+2" are honored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configFile, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			category := registry.Category(categoryFlag)
			if categoryFlag != "" && !category.Valid() {
				return fmt.Errorf("unknown category %q", categoryFlag)
			}

			res, err := app.orch.Chat(cmd.Context(), orchestrator.ChatRequest{
				Message:  args[0],
				UserID:   userFlag,
				Model:    modelFlag,
				Category: category,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "model=%s autoRouted=%v fallback=%v category=%s (%.2f) in %s\n",
				res.ModelUsed, res.AutoRouted, res.FallbackUsed,
				res.Classification.Category, res.Classification.Confidence, res.ResponseTime)
			fmt.Println(res.Content)
			return nil
		},
	}

	cmd.Flags().StringVar(&modelFlag, "model", "", "explicit model ID (default: auto-route)")
	cmd.Flags().StringVar(&categoryFlag, "category", "", "preferred category (coding, math, conversation, multimodal, general)")
	cmd.Flags().StringVar(&userFlag, "user", "", "user ID for violation tracking")

	return cmd
}

func imagineCmd() *cobra.Command {
	var styleFlag string
	var userFlag string

	cmd := &cobra.Command{
		Use:   "imagine [prompt]",
		Short: "Generate an image through the enhance/render/persist pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configFile, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			if app.pipeline == nil {
				return fmt.Errorf("no image providers configured (set GOOGLE_API_KEY or HUGGINGFACE_API_KEY)")
			}

			res, err := app.pipeline.Generate(cmd.Context(), imagen.Request{
				Prompt: args[0],
				UserID: userFlag,
				Style:  imagen.Style(styleFlag),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "rendered by %s/%s in %s\n", res.Provider, res.Model, res.Elapsed)
			fmt.Fprintf(os.Stderr, "enhanced prompt: %s\n", res.EnhancedPrompt)
			fmt.Println(res.Path)
			return nil
		},
	}

	cmd.Flags().StringVar(&styleFlag, "style", "", "style guide (realistic, artistic, anime, sketch)")
	cmd.Flags().StringVar(&userFlag, "user", "", "owner ID for the stored image")

	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the model catalog and availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configFile, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			def := app.registry.Default()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPROVIDER\tCATEGORY\tSTATUS")
			for _, m := range app.registry.All() {
				status := "no key"
				if m.Available {
					status = "ready"
				}
				if m.ID == def.ID {
					status += " (default)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", m.ID, m.Name, m.Provider, m.Category, status)
			}
			return w.Flush()
		},
	}
}

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Show category and command routing",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp(configFile, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CATEGORY\tMODELS (priority order)")
			for _, cat := range registry.Categories() {
				models := app.registry.ByCategory(cat)
				names := make([]string, len(models))
				for i, m := range models {
					names[i] = m.ID
				}
				line := "-"
				if len(names) > 0 {
					line = joinComma(names)
				}
				fmt.Fprintf(w, "%s\t%s\n", cat, line)
			}

			fmt.Fprintln(w)
			fmt.Fprintln(w, "COMMAND\tPREFERRED\tFALLBACK")
			for _, kind := range []command.Kind{command.KindSolve, command.KindSearch, command.KindSummarize} {
				route, _ := command.RouteFor(kind)
				fmt.Fprintf(w, "/%s\t%s\t%s\n", kind, route.PreferredCategory, route.FallbackCategory)
			}

			fmt.Fprintln(w)
			fmt.Fprintf(w, "DEFAULT\t%s\n", app.registry.Default().ID)
			return w.Flush()
		},
	}
}

func joinComma(items []string) string {
	out := items[0]
	for _, item := range items[1:] {
		out += ", " + item
	}
	return out
}
