package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	prompt "github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"

	"github.com/lucksec/kernelgen/internal/domain"
)

// console is the interactive REPL, go-prompt with Tab completion
type console struct {
	app *app
	ctx context.Context
}

func newConsoleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Start the interactive console",
		Long: `Start an interactive console for descriptors and kernels.

Commands available inside the console:
  help                     show help
  list                     list descriptors
  show <name>              show a descriptor
  manifest <name>          print the kernel.json of an existing environment
  generate [name]          create environments and kernels
  install <name>           ipykernel install --user for an environment
  kernels                  list kernels in the save path
  exit / quit              leave the console`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &console{
				app: a,
				ctx: cmd.Context(),
			}
			return c.run()
		},
	}
	return cmd
}

func (c *console) run() error {
	c.printWelcome()

	p := prompt.New(
		c.executor,
		c.completer,
		prompt.OptionPrefix("kernelgen> "),
		prompt.OptionTitle("kernelgen console"),
		prompt.OptionSuggestionBGColor(prompt.DarkGray),
		prompt.OptionSuggestionTextColor(prompt.White),
		prompt.OptionSelectedSuggestionBGColor(prompt.Blue),
		prompt.OptionSelectedSuggestionTextColor(prompt.White),
	)

	// blocks until Ctrl+D
	p.Run()
	fmt.Println("\nBye.")
	return nil
}

func (c *console) executor(in string) {
	line := strings.TrimSpace(in)
	if line == "" {
		return
	}
	if err := c.handleCommand(line); err != nil {
		fmt.Printf("Error: %v\n", err)
	}
}

var consoleCommands = []prompt.Suggest{
	{Text: "help", Description: "Show help"},
	{Text: "list", Description: "List descriptors"},
	{Text: "show", Description: "Show a descriptor"},
	{Text: "manifest", Description: "Print the kernel.json of an environment"},
	{Text: "generate", Description: "Create environments and kernels"},
	{Text: "install", Description: "ipykernel install --user"},
	{Text: "kernels", Description: "List kernels in the save path"},
	{Text: "exit", Description: "Leave the console"},
	{Text: "quit", Description: "Leave the console"},
}

func (c *console) completer(d prompt.Document) []prompt.Suggest {
	text := d.TextBeforeCursor()
	parts := strings.Fields(text)

	current := ""
	if text != "" && !strings.HasSuffix(text, " ") {
		current = parts[len(parts)-1]
	}

	// still typing the command itself
	if len(parts) == 0 || (len(parts) == 1 && current != "") {
		return prompt.FilterHasPrefix(consoleCommands, current, true)
	}

	argIndex := len(parts) - 1
	if current != "" {
		argIndex--
	}
	if argIndex != 0 {
		return []prompt.Suggest{}
	}

	switch parts[0] {
	case "show", "manifest", "generate", "install":
		return c.completeDescriptorNames(current)
	default:
		return []prompt.Suggest{}
	}
}

func (c *console) completeDescriptorNames(current string) []prompt.Suggest {
	descriptors, err := c.app.descriptors.ListDescriptors()
	if err != nil {
		return []prompt.Suggest{}
	}
	var res []prompt.Suggest
	for _, d := range descriptors {
		if strings.HasPrefix(d.Name, current) {
			res = append(res, prompt.Suggest{Text: d.Name, Description: d.DisplayName})
		}
	}
	return res
}

func (c *console) printWelcome() {
	fmt.Println("kernelgen console")
	fmt.Printf("descriptors: %s  save path: %s\n", c.app.cfg.DescriptorDir, c.app.cfg.SavePath)
	fmt.Println("Type 'help' for commands, 'exit' to leave. Tab completes commands and names.")
	fmt.Println()
}

func (c *console) handleCommand(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}
	args := parts[1:]

	switch parts[0] {
	case "help", "h", "?":
		c.printHelp()
		return nil
	case "exit", "quit", "q":
		fmt.Println("Bye.")
		os.Exit(0)
	case "list":
		return c.cmdList()
	case "show":
		if len(args) != 1 {
			fmt.Println("usage: show <name>")
			return nil
		}
		return c.cmdShow(args[0])
	case "manifest":
		if len(args) != 1 {
			fmt.Println("usage: manifest <name>")
			return nil
		}
		return c.cmdManifest(args[0])
	case "generate":
		if len(args) > 1 {
			fmt.Println("usage: generate [name]")
			return nil
		}
		return c.cmdGenerate(args)
	case "install":
		if len(args) != 1 {
			fmt.Println("usage: install <name>")
			return nil
		}
		return c.cmdInstall(args[0])
	case "kernels":
		return c.cmdKernels()
	default:
		fmt.Println("Unknown command. Type 'help' for the list.")
	}
	return nil
}

func (c *console) cmdList() error {
	descriptors, err := c.app.descriptors.ListDescriptors()
	if err != nil {
		return err
	}
	if len(descriptors) == 0 {
		fmt.Println("No descriptors.")
		return nil
	}
	for _, d := range descriptors {
		fmt.Printf("  - %s\n", describe(d))
	}
	return nil
}

func (c *console) cmdShow(name string) error {
	d, err := c.app.descriptors.GetDescriptor(name)
	if err != nil {
		return err
	}
	printDescriptor(d)
	return nil
}

func (c *console) cmdManifest(name string) error {
	d, err := c.app.descriptors.GetDescriptor(name)
	if err != nil {
		return err
	}
	manifest, err := c.app.kernels.CreateManifest(c.ctx, d.Name, d.DisplayName, "", "")
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(manifest, "", "    ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func (c *console) cmdGenerate(args []string) error {
	if len(args) == 1 {
		kernel, err := c.app.orchestrator.Generate(c.ctx, args[0])
		if err != nil {
			return err
		}
		printGenerated(c.app, []*domain.Kernel{kernel})
		return nil
	}
	kernels, err := c.app.orchestrator.GenerateAll(c.ctx)
	if err != nil {
		return err
	}
	printGenerated(c.app, kernels)
	return nil
}

func (c *console) cmdInstall(name string) error {
	d, err := c.app.descriptors.GetDescriptor(name)
	if err != nil {
		return err
	}
	return c.app.kernels.InstallKernel(c.ctx, d.Name, d.DisplayName)
}

func (c *console) cmdKernels() error {
	kernels, err := c.app.kernelRepo.ListKernels()
	if err != nil {
		return err
	}
	if len(kernels) == 0 {
		fmt.Println("No kernels.")
		return nil
	}
	for _, k := range kernels {
		fmt.Printf("  - %s (%s)\n", k.Name, k.Manifest.DisplayName)
	}
	return nil
}

func (c *console) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  help                     show this help")
	fmt.Println("  exit | quit              leave the console")
	fmt.Println()
	fmt.Println("  list                     list descriptors")
	fmt.Println("  show <name>              show a descriptor")
	fmt.Println("  manifest <name>          print the kernel.json of an existing environment")
	fmt.Println("  generate [name]          create environments and kernels")
	fmt.Println("  install <name>           ipykernel install --user for an environment")
	fmt.Println("  kernels                  list kernels in the save path")
}
