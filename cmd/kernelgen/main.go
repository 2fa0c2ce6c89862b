package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lucksec/kernelgen/internal/config"
	"github.com/lucksec/kernelgen/internal/domain"
	"github.com/lucksec/kernelgen/internal/logger"
	"github.com/lucksec/kernelgen/internal/repository"
	"github.com/lucksec/kernelgen/internal/service"
)

// options are the persistent flags, applied over the config file
type options struct {
	configPath    string
	descriptorDir string
	savePath      string
	staticPath    string
	logLevel      string
	onError       string
}

// app wires config, logger, repositories and services once flags are parsed
type app struct {
	opts options

	cfg          *config.Config
	log          logger.Logger
	descriptors  repository.DescriptorRepository
	kernelRepo   repository.KernelRepository
	conda        service.CondaService
	installer    service.InstallerService
	kernels      service.KernelService
	orchestrator service.OrchestratorService
}

func main() {
	a := &app{}
	rootCmd := newRootCmd(a)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.GetLogger().Error("%v", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "kernelgen",
		Short: "kernelgen provisions conda environments and registers them as Jupyter kernels",
		Long: `kernelgen reads one YAML descriptor per environment, creates a conda
environment pinned to the requested python version, installs its dependencies
with pip or poetry and writes a kernel.json so Jupyter can launch it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.ensure(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.opts.configPath, "config", "", "config file (default ./"+config.FileName+" or ~/.kernelgen/"+config.FileName+")")
	flags.StringVar(&a.opts.descriptorDir, "descriptors", "", "directory holding the environment descriptors")
	flags.StringVar(&a.opts.savePath, "save-path", "", "kernels directory manifests are written to, empty to skip writing")
	flags.StringVar(&a.opts.staticPath, "static-path", "", "directory whose files are copied next to every kernel.json")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "log level: debug, info, warning, error")
	flags.StringVar(&a.opts.onError, "on-error", "", "what a failed command does: raise (exit) or return")

	rootCmd.AddCommand(generateCmd(a))

	descriptorsCmd := &cobra.Command{
		Use:   "descriptors",
		Short: "Inspect environment descriptors",
	}
	descriptorsCmd.AddCommand(listDescriptorsCmd(a))
	descriptorsCmd.AddCommand(showDescriptorCmd(a))
	rootCmd.AddCommand(descriptorsCmd)

	kernelsCmd := &cobra.Command{
		Use:   "kernels",
		Short: "Inspect registered kernels",
	}
	kernelsCmd.AddCommand(listKernelsCmd(a))
	rootCmd.AddCommand(kernelsCmd)

	rootCmd.AddCommand(manifestCmd(a))
	rootCmd.AddCommand(installCmd(a))

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the kernelgen config file",
	}
	configCmd.AddCommand(initConfigCmd(a))
	rootCmd.AddCommand(configCmd)

	rootCmd.AddCommand(newConsoleCmd(a))

	setupDynamicCompletion(rootCmd, a)

	return rootCmd
}

// ensure loads config, applies flag overrides and builds the services. Safe to call twice.
func (a *app) ensure(cmd *cobra.Command) error {
	if a.cfg != nil {
		return nil
	}

	cfg, err := config.LoadConfig(a.opts.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("descriptors") {
		cfg.DescriptorDir = a.opts.descriptorDir
	}
	if flags.Changed("save-path") {
		cfg.SavePath = a.opts.savePath
	}
	if flags.Changed("static-path") {
		cfg.StaticPath = a.opts.staticPath
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = a.opts.logLevel
	}
	if flags.Changed("on-error") {
		cfg.Runner.OnError = a.opts.onError
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logConfig, err := cfg.LoggerConfig()
	if err != nil {
		return err
	}
	log, err := logger.InitLogger(logConfig)
	if err != nil {
		return err
	}

	policy, err := service.ParsePolicy(cfg.Runner.OnError)
	if err != nil {
		return err
	}

	runner := service.NewCommandRunner(log, policy)
	a.descriptors = repository.NewDescriptorRepository(cfg)
	a.kernelRepo = repository.NewKernelRepository(cfg)
	a.conda = service.NewCondaService(cfg, runner, log)
	a.installer = service.NewInstallerService(cfg, a.conda, runner, log)
	a.kernels = service.NewKernelService(a.conda, a.kernelRepo, runner, log)
	a.orchestrator = service.NewOrchestratorService(cfg, a.descriptors, a.conda, a.installer, a.kernels, log)
	a.log = log
	a.cfg = cfg

	if cfg.Path != "" {
		log.Debug("Loaded config from %s", cfg.Path)
	}
	return nil
}

// generateCmd runs the full provision, install, register flow
func generateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [name]",
		Short: "Create environments and kernels from descriptors",
		Long: `Create one conda environment and kernel per descriptor, in file name order.
The first failure stops the run. With a name, only that descriptor is processed.`,
		Example: `  # everything under ./kernels
  kernelgen generate

  # only kernels/demo.yaml, manifests into a scratch directory
  kernelgen generate demo --save-path /tmp/kernels`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				kernel, err := a.orchestrator.Generate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printGenerated(a, []*domain.Kernel{kernel})
				return nil
			}

			kernels, err := a.orchestrator.GenerateAll(cmd.Context())
			if err != nil {
				return err
			}
			printGenerated(a, kernels)
			return nil
		},
	}
	return cmd
}

func printGenerated(a *app, kernels []*domain.Kernel) {
	for _, k := range kernels {
		if k.Dir != "" {
			a.log.Info("Kernel %s (%s) written to %s, run %s", k.Name, k.Manifest.DisplayName, k.Dir, k.RunID)
		} else {
			a.log.Info("Kernel %s (%s) built, not saved, run %s", k.Name, k.Manifest.DisplayName, k.RunID)
		}
	}
}

func listDescriptorsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List descriptors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			descriptors, err := a.descriptors.ListDescriptors()
			if err != nil {
				return err
			}

			if len(descriptors) == 0 {
				fmt.Printf("No descriptors found in %s\n", a.cfg.DescriptorDir)
				return nil
			}

			fmt.Printf("Descriptors in %s:\n", a.cfg.DescriptorDir)
			for _, d := range descriptors {
				fmt.Printf("  - %s\n", describe(d))
			}
			return nil
		},
	}
	return cmd
}

func showDescriptorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show one descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.descriptors.GetDescriptor(args[0])
			if err != nil {
				return err
			}
			printDescriptor(d)
			return nil
		},
	}
	return cmd
}

func describe(d *domain.Descriptor) string {
	return fmt.Sprintf("%s (%s, python %s, %s, %d dependencies)",
		d.Name, d.DisplayName, d.PythonVersion, d.Strategy(), len(d.Dependencies))
}

func printDescriptor(d *domain.Descriptor) {
	fmt.Printf("Name:           %s\n", d.Name)
	fmt.Printf("Display name:   %s\n", d.DisplayName)
	fmt.Printf("Python version: %s\n", d.PythonVersion)
	fmt.Printf("Installer:      %s\n", d.Strategy())
	fmt.Printf("File:           %s\n", d.Path)
	if len(d.Dependencies) == 0 {
		fmt.Println("Dependencies:   none")
		return
	}
	fmt.Printf("Dependencies:   %s\n", strings.Join(d.Dependencies, ", "))
}

func listKernelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List kernels present in the save path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.SavePath == "" {
				return fmt.Errorf("no save path configured")
			}
			kernels, err := a.kernelRepo.ListKernels()
			if err != nil {
				return err
			}

			if len(kernels) == 0 {
				fmt.Printf("No kernels in %s\n", a.cfg.SavePath)
				return nil
			}

			fmt.Printf("Kernels in %s:\n", a.cfg.SavePath)
			for _, k := range kernels {
				python := ""
				if len(k.Manifest.Argv) > 0 {
					python = k.Manifest.Argv[0]
				}
				fmt.Printf("  - %s (%s) %s\n", k.Name, k.Manifest.DisplayName, python)
			}
			return nil
		},
	}
	return cmd
}

// manifestCmd prints a manifest without writing anything
func manifestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest <name>",
		Short: "Print the kernel.json of an existing environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.descriptors.GetDescriptor(args[0])
			if err != nil {
				return err
			}
			manifest, err := a.kernels.CreateManifest(cmd.Context(), d.Name, d.DisplayName, "", "")
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(manifest, "", "    ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
	return cmd
}

// installCmd registers the environment via `python -m ipykernel install --user`
func installCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install <name>",
		Short: "Register an existing environment with ipykernel install --user",
		Long: `Register the environment through ipykernel's own install command instead of
writing kernel.json into the save path. The environment must already exist.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.descriptors.GetDescriptor(args[0])
			if err != nil {
				return err
			}
			return a.kernels.InstallKernel(cmd.Context(), d.Name, d.DisplayName)
		},
	}
	return cmd
}

func initConfigCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the effective settings to a config file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.FileName
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			if err := a.cfg.Save(path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}
